// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// =============================================================================
// TransportError
// =============================================================================

// TransportError means no response was received: DNS, connection refused,
// timeout, cancellation.
//
// # Description
//
// Distinguished from ResponseError by having no status and no body. Callers
// treat it as "service down" or "operation failed" and never retry.
//
// # Example
//
//	var te *api.TransportError
//	if errors.As(err, &te) {
//	    fmt.Println("Network error:", te.Err)
//	}
type TransportError struct {
	// Method and Path identify the request.
	Method string
	Path   string

	// Err is the underlying network or context error.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ResponseError
// =============================================================================

// ResponseError is a non-2xx response. The body is kept verbatim.
//
// # Description
//
// Error returns the raw payload so it can be surfaced to the user as-is.
// Log extracts a server-provided "log" field when the payload has one.
//
// # Example
//
//	var re *api.ResponseError
//	if errors.As(err, &re) && re.Status == http.StatusBadRequest {
//	    fmt.Println(re.Payload()) // {"error":"invalid email"}
//	}
type ResponseError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

// Error returns the raw payload, or the status when the body is empty.
func (e *ResponseError) Error() string {
	if p := e.Payload(); p != "" {
		return p
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Status)
}

// Payload returns the trimmed response body.
func (e *ResponseError) Payload() string {
	return string(bytes.TrimSpace(e.Body))
}

// Log returns the "log" string field of a JSON object body.
func (e *ResponseError) Log() (string, bool) {
	return ExtractLog(e.Body)
}

// =============================================================================
// DecodeError
// =============================================================================

// DecodeError means a 2xx response whose body could not be decoded into the
// expected shape.
type DecodeError struct {
	Path string
	Body []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Helpers
// =============================================================================

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// AsResponse returns the ResponseError in err's chain, if any.
func AsResponse(err error) (*ResponseError, bool) {
	var re *ResponseError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// ExtractLog returns the "log" field of body when body is a JSON object
// carrying a string under that key.
func ExtractLog(body []byte) (string, bool) {
	var payload struct {
		Log *string `json:"log"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Log == nil {
		return "", false
	}
	return *payload.Log, true
}
