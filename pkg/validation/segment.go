// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for values that end up in
// storefront request paths.
//
// Order ids and endpoint segments are interpolated into URLs such as
// /orders/{id} and /stop/{service}. Rejecting anything outside a narrow
// character set keeps user input from reshaping the request path.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxSegmentLength bounds a single path segment.
const MaxSegmentLength = 64

var (
	segmentPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	orderIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ValidatePathSegment checks that s is safe to use as one URL path segment.
//
// # Description
//
// Accepts letters, digits, dot, underscore and hyphen, up to
// MaxSegmentLength characters. The relative segments "." and ".." are
// rejected even though their characters are allowed.
//
// # Inputs
//
//   - s: The segment to check. Not trimmed.
//
// # Outputs
//
//   - error: nil if valid, otherwise a description of the problem.
//
// # Examples
//
//	ValidatePathSegment("message-broker") // nil
//	ValidatePathSegment("..")             // error
//	ValidatePathSegment("a/b")            // error
func ValidatePathSegment(s string) error {
	if s == "" {
		return fmt.Errorf("path segment cannot be empty")
	}
	if len(s) > MaxSegmentLength {
		return fmt.Errorf("path segment too long: %d characters (max %d)", len(s), MaxSegmentLength)
	}
	if s == "." || s == ".." {
		return fmt.Errorf("path segment %q is not allowed", s)
	}
	if !segmentPattern.MatchString(s) {
		return fmt.Errorf("invalid path segment %q: must contain only letters, digits, '.', '_' or '-'", s)
	}
	return nil
}

// ValidateOrderID checks an order id as returned by the storefront.
func ValidateOrderID(id string) error {
	if id == "" {
		return fmt.Errorf("order id cannot be empty")
	}
	if len(id) > MaxSegmentLength {
		return fmt.Errorf("order id too long: %d characters (max %d)", len(id), MaxSegmentLength)
	}
	if !orderIDPattern.MatchString(id) {
		return fmt.Errorf("invalid order id %q: must contain only letters, digits, '_' or '-'", id)
	}
	return nil
}

// SanitizeOrderID normalizes user input such as " #42 " and validates it.
//
// # Inputs
//
//   - input: The raw id. Surrounding whitespace and one leading '#' are
//     removed.
//
// # Outputs
//
//   - string: The normalized id.
//   - error: Non-nil if the normalized id is invalid.
//
// # Examples
//
//	id, err := SanitizeOrderID("#42")
//	// id == "42", err == nil
func SanitizeOrderID(input string) (string, error) {
	id := strings.TrimPrefix(strings.TrimSpace(input), "#")
	if err := ValidateOrderID(id); err != nil {
		return "", err
	}
	return id, nil
}
