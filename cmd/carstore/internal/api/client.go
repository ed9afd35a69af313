// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api is the HTTP transport for the storefront REST endpoints.
//
// # Description
//
// Client issues one request per call and never retries. Every call:
//
//   - waits on the client-side rate limiter
//   - is bounded by the configured timeout and by the caller's context
//   - carries an X-Request-ID and the session cookies from the jar
//   - classifies failures as TransportError, ResponseError or DecodeError
//
// Session identity travels only in cookies; the client never puts a
// session id on a write except in the checkout body, which the server
// contract requires.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/util"
	"github.com/jinterlante1206/carstore/pkg/logging"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultBaseURL is the storefront API root used when none is configured.
	DefaultBaseURL = "http://localhost:8000/api"

	// RequestIDHeader carries a per-request UUID for server-side correlation.
	RequestIDHeader = "X-Request-ID"

	// maxBodyBytes caps how much of a response is read.
	maxBodyBytes = 4 << 20

	defaultUserAgent = "carstore"
)

// =============================================================================
// Interfaces
// =============================================================================

// Recorder observes completed requests. status is 0 when no response was
// received.
type Recorder interface {
	ObserveRequest(endpoint, method string, status int, elapsed time.Duration)
}

// =============================================================================
// Config and Options
// =============================================================================

// Config holds transport settings.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:8000/api".
	BaseURL string

	// Timeout bounds each request. Raised to util.MinRequestTimeout.
	Timeout time.Duration

	// RequestsPerSecond limits outgoing requests. Zero disables limiting.
	RequestsPerSecond float64

	// Burst is the limiter burst size. Defaults to 1 when limiting.
	Burst int

	// UserAgent is sent on every request.
	UserAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Its Jar is replaced
// when WithCookieJar is also given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithCookieJar sets the jar that carries the session cookie.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.jar = jar
	}
}

// WithRecorder sets the request metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithTracerProvider wraps the transport so every request produces a
// client span.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

type timeoutKey struct{}

// WithRequestTimeout returns a context that overrides the client timeout
// for calls made with it. Service control actions use it to wait longer
// than reads. Values below util.MinRequestTimeout are raised.
func WithRequestTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, timeoutKey{}, util.EnforceMinTimeout(d, util.MinRequestTimeout))
}

// =============================================================================
// Client
// =============================================================================

// Client talks to the storefront API.
//
// # Thread Safety
//
// Safe for concurrent use.
type Client struct {
	base      string
	timeout   time.Duration
	userAgent string

	http     *http.Client
	jar      http.CookieJar
	limiter  *rate.Limiter
	recorder Recorder
	tracer   trace.TracerProvider
	logger   *logging.Logger
}

// NewClient creates a Client.
//
// # Description
//
// Validates the base URL, applies options, enforces the minimum timeout,
// and wraps the transport with OpenTelemetry instrumentation when a
// tracer provider is configured.
//
// # Inputs
//
//   - cfg: Transport settings. Empty BaseURL uses DefaultBaseURL.
//   - opts: Optional collaborators.
//
// # Outputs
//
//   - *Client: Ready to use.
//   - error: Non-nil if BaseURL is not an absolute http(s) URL.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be an absolute http(s) URL", base)
	}

	c := &Client{
		base:      base,
		timeout:   util.EnforceMinTimeout(cfg.Timeout, util.MinRequestTimeout),
		userAgent: cfg.UserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	hc := *c.http
	if c.jar != nil {
		hc.Jar = c.jar
	}
	if c.tracer != nil {
		transport := hc.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		hc.Transport = otelhttp.NewTransport(transport,
			otelhttp.WithTracerProvider(c.tracer),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
	c.http = &hc

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

// BaseURL returns the normalised API root.
func (c *Client) BaseURL() string {
	return c.base
}

// =============================================================================
// Endpoints
// =============================================================================

// ListCars returns the catalog.
func (c *Client) ListCars(ctx context.Context) ([]Car, error) {
	var cars []Car
	if _, err := c.do(ctx, http.MethodGet, "/cars", "/cars", nil, &cars); err != nil {
		return nil, err
	}
	return cars, nil
}

// GetCart reads the session cart. The server creates the session on first
// access and sets its cookie.
func (c *Client) GetCart(ctx context.Context) (Cart, error) {
	var cart Cart
	if _, err := c.do(ctx, http.MethodGet, "/cart", "/cart", nil, &cart); err != nil {
		return Cart{}, err
	}
	return cart, nil
}

// AddToCart adds quantity of carID to the session cart. The response body
// is not consumed.
func (c *Client) AddToCart(ctx context.Context, carID int64, quantity int) error {
	body := AddItemRequest{CarID: carID, Quantity: quantity}
	_, err := c.do(ctx, http.MethodPost, "/cart", "/cart", body, nil)
	return err
}

// ClearCart empties the session cart.
func (c *Client) ClearCart(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/cart", "/cart", nil, nil)
	return err
}

// Checkout places an order for the session cart.
func (c *Client) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error) {
	var resp CheckoutResponse
	if _, err := c.do(ctx, http.MethodPost, "/checkout", "/checkout", req, &resp); err != nil {
		return CheckoutResponse{}, err
	}
	return resp, nil
}

// GetOrder reads a placed order.
func (c *Client) GetOrder(ctx context.Context, id string) (OrderDetail, error) {
	var detail OrderDetail
	path := "/orders/" + url.PathEscape(id)
	if _, err := c.do(ctx, http.MethodGet, path, "/orders/{id}", nil, &detail); err != nil {
		return OrderDetail{}, err
	}
	return detail, nil
}

// ServiceStatus reads /status/{name} and returns the raw body. A non-2xx
// response is a *ResponseError whose Body still holds the payload.
func (c *Client) ServiceStatus(ctx context.Context, name string) ([]byte, error) {
	path := "/status/" + url.PathEscape(name)
	return c.do(ctx, http.MethodGet, path, "/status/{service}", nil, nil)
}

// ServiceAction posts /service/{name}/{action} and returns the raw body.
func (c *Client) ServiceAction(ctx context.Context, name, action string) ([]byte, error) {
	path := "/service/" + url.PathEscape(name) + "/" + url.PathEscape(action)
	return c.do(ctx, http.MethodPost, path, "/service/{service}/{action}", nil, nil)
}

// =============================================================================
// Request plumbing
// =============================================================================

// do performs one request and returns the raw body of a 2xx response.
//
// # Description
//
// endpoint is the path template used as the metrics label. When out is
// non-nil the body is decoded into it; an empty or malformed body is a
// DecodeError.
func (c *Client) do(ctx context.Context, method, path, endpoint string, in, out any) ([]byte, error) {
	start := time.Now()
	status := 0
	defer func() {
		if c.recorder != nil {
			c.recorder.ObserveRequest(endpoint, method, status, time.Since(start))
		}
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Method: method, Path: path, Err: err}
		}
	}

	timeout := c.timeout
	if d, ok := ctx.Value(timeoutKey{}).(time.Duration); ok {
		timeout = d
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", path, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: fmt.Errorf("read body: %w", err)}
	}
	status = resp.StatusCode

	c.logger.Debug("request completed",
		"method", method,
		"path", path,
		"status", status,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if status < 200 || status > 299 {
		return body, &ResponseError{Method: method, Path: path, Status: status, Body: body}
	}

	if out != nil {
		if len(bytes.TrimSpace(body)) == 0 {
			return body, &DecodeError{Path: path, Body: body, Err: io.ErrUnexpectedEOF}
		}
		if err := json.Unmarshal(body, out); err != nil {
			return body, &DecodeError{Path: path, Body: body, Err: err}
		}
	}
	return body, nil
}
