// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package util holds small helpers shared by the carstore internals.
package util

import "time"

// =============================================================================
// Constants
// =============================================================================

// Timeout constants bound every storefront call.
//
// A zero or negative configured timeout would otherwise mean "wait
// forever", which leaves a pending LED stuck in Unknown.
const (
	// MinRequestTimeout is the absolute minimum for any storefront request.
	MinRequestTimeout = 1 * time.Second

	// MinRefreshInterval is the shortest dashboard auto-refresh period.
	MinRefreshInterval = 2 * time.Second

	// DefaultRequestTimeout is the standard timeout for reads and writes.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultDispatchTimeout is the standard timeout for service control
	// actions, which start or stop a backend and take longer than reads.
	DefaultDispatchTimeout = 60 * time.Second

	// DefaultRefreshInterval is the dashboard auto-refresh period.
	DefaultRefreshInterval = 10 * time.Second
)

// =============================================================================
// TimeoutConfig Struct
// =============================================================================

// TimeoutConfig holds the per-call timeouts.
//
// # Description
//
// Use NewTimeoutConfig for defaults and Validated before use.
//
// # Thread Safety
//
// Safe for concurrent reads.
type TimeoutConfig struct {
	// Request bounds catalog, cart, checkout and status calls.
	Request time.Duration

	// Dispatch bounds service control actions.
	Dispatch time.Duration

	// Refresh is the dashboard auto-refresh period in the console.
	Refresh time.Duration
}

// Validated returns a copy with all values at least at their minimums.
//
// # Description
//
// Any value below its minimum is raised to the minimum. Dispatch is never
// shorter than Request. The receiver is not modified.
//
// # Outputs
//
//   - TimeoutConfig: A validated copy.
func (c *TimeoutConfig) Validated() TimeoutConfig {
	request := EnforceMinTimeout(c.Request, MinRequestTimeout)
	return TimeoutConfig{
		Request:  request,
		Dispatch: EnforceMinTimeout(c.Dispatch, request),
		Refresh:  EnforceMinTimeout(c.Refresh, MinRefreshInterval),
	}
}

// NewTimeoutConfig returns the default timeouts.
func NewTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Request:  DefaultRequestTimeout,
		Dispatch: DefaultDispatchTimeout,
		Refresh:  DefaultRefreshInterval,
	}
}

// =============================================================================
// Utility Functions
// =============================================================================

// EnforceMinTimeout returns at least the minimum timeout.
//
// # Description
//
// If the requested timeout is zero, negative, or below the minimum,
// returns the minimum instead.
//
// # Inputs
//
//   - requested: The timeout value requested by the caller
//   - minimum: The absolute minimum acceptable timeout
//
// # Outputs
//
//   - time.Duration: The requested timeout if valid, otherwise the minimum
//
// # Example
//
//	timeout := util.EnforceMinTimeout(cfg.Timeout, util.MinRequestTimeout)
func EnforceMinTimeout(requested, minimum time.Duration) time.Duration {
	if requested <= 0 || requested < minimum {
		return minimum
	}
	return requested
}

// EnforceDefaultTimeout returns defaultVal if requested is zero or negative.
func EnforceDefaultTimeout(requested, defaultVal time.Duration) time.Duration {
	if requested <= 0 {
		return defaultVal
	}
	return requested
}
