// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides client-side metrics and tracing for carstore.
//
// # Description
//
// Prometheus metrics cover:
//   - Storefront requests (by endpoint template, method and HTTP status)
//   - Request latency histograms
//   - LED state per monitored service
//   - Dispatch and checkout outcomes
//
// Metrics are exposed on an optional /metrics listener (see Serve). Tracing
// wraps the API transport with OpenTelemetry spans exported to a file.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every method is a no-op on a nil *Metrics.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/led"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const metricsNamespace = "carstore"

const clientSubsystem = "client"

// Outcome labels for dispatch and checkout counters.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeNetwork  = "network_error"
	OutcomeBusy     = "in_flight"
	OutcomeWarning  = "success_with_warning"
)

// Metrics holds all Prometheus metrics for the storefront client.
//
// # Fields
//
//   - RequestsTotal: Requests by method, endpoint and http_status ("0" when
//     no response was received)
//   - RequestLatency: Request latency by endpoint
//   - ServiceState: One-hot LED state per service
//   - DispatchesTotal: Service control dispatches by service, action, outcome
//   - CheckoutsTotal: Checkout attempts by outcome
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestLatency  *prometheus.HistogramVec
	ServiceState    *prometheus.GaugeVec
	DispatchesTotal *prometheus.CounterVec
	CheckoutsTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with reg.
//
// # Inputs
//
//   - reg: Registry to register with. Tests pass prometheus.NewRegistry();
//     the CLI passes prometheus.DefaultRegisterer.
//
// # Limitations
//
//   - Panics if called twice with the same registry (duplicate registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "requests_total",
				Help:      "Total storefront requests by method, endpoint and HTTP status",
			},
			[]string{"method", "endpoint", "http_status"},
		),

		RequestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "request_latency_seconds",
				Help:      "Storefront request latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),

		ServiceState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "dashboard",
				Name:      "service_state",
				Help:      "Last known LED state per service (1 for the current state, 0 otherwise)",
			},
			[]string{"service", "state"},
		),

		DispatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "dashboard",
				Name:      "dispatches_total",
				Help:      "Service control dispatches by service, action and outcome",
			},
			[]string{"service", "action", "outcome"},
		),

		CheckoutsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "checkout",
				Name:      "attempts_total",
				Help:      "Checkout attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// ObserveRequest records one completed storefront request.
func (m *Metrics) ObserveRequest(endpoint, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.RequestLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// SetServiceState records the LED state of a service.
func (m *Metrics) SetServiceState(s led.ServiceState) {
	if m == nil {
		return
	}
	for _, st := range []led.State{led.Unknown, led.Up, led.Down} {
		v := 0.0
		if st == s.State {
			v = 1
		}
		m.ServiceState.WithLabelValues(string(s.Service), st.String()).Set(v)
	}
}

// RecordDispatch counts a service control dispatch.
func (m *Metrics) RecordDispatch(service led.Service, action, outcome string) {
	if m == nil {
		return
	}
	m.DispatchesTotal.WithLabelValues(string(service), action, outcome).Inc()
}

// RecordCheckout counts a checkout attempt.
func (m *Metrics) RecordCheckout(outcome string) {
	if m == nil {
		return
	}
	m.CheckoutsTotal.WithLabelValues(outcome).Inc()
}
