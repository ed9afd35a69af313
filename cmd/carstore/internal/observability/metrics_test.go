// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/led"
)

// ============================================================================
// Metrics
// ============================================================================

func TestObserveRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveRequest("/cart", "GET", 200, 30*time.Millisecond)
	m.ObserveRequest("/cart", "GET", 200, 10*time.Millisecond)
	m.ObserveRequest("/status/{service}", "GET", 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/cart", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/status/{service}", "0")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestLatency))
}

func TestSetServiceState_OneHot(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetServiceState(led.ServiceState{Service: led.CacheService, State: led.Up})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ServiceState.WithLabelValues("cache-service", "UP")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ServiceState.WithLabelValues("cache-service", "DOWN")))

	m.SetServiceState(led.ServiceState{Service: led.CacheService, State: led.Down})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ServiceState.WithLabelValues("cache-service", "UP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ServiceState.WithLabelValues("cache-service", "DOWN")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ServiceState.WithLabelValues("cache-service", "UNKNOWN")))
}

func TestRecordDispatchAndCheckout(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordDispatch(led.MessageBroker, "stop", OutcomeSuccess)
	m.RecordDispatch(led.MessageBroker, "stop", OutcomeBusy)
	m.RecordCheckout(OutcomeRejected)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchesTotal.WithLabelValues("message-broker", "stop", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchesTotal.WithLabelValues("message-broker", "stop", OutcomeBusy)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckoutsTotal.WithLabelValues(OutcomeRejected)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("/cars", "GET", 200, time.Millisecond)
		m.SetServiceState(led.ServiceState{Service: led.OrderStore, State: led.Up})
		m.RecordDispatch(led.OrderStore, "start", OutcomeSuccess)
		m.RecordCheckout(OutcomeSuccess)
	})
}

// ============================================================================
// Tracing and listener
// ============================================================================

func TestInitTracing_Disabled(t *testing.T) {
	tp, shutdown, err := InitTracing(TracingConfig{})
	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_WritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, shutdown, err := InitTracing(TracingConfig{Writer: &buf, ServiceVersion: "test"})
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "GET /api/cars")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), "GET /api/cars")
}

func TestServe_BadAddress(t *testing.T) {
	_, _, err := Serve(context.Background(), "256.0.0.1:bad", prometheus.NewRegistry(), nil)
	require.Error(t, err)
}

func TestMetricsHandlerContent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ObserveRequest("/cars", "GET", 200, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, stop, err := Serve(ctx, "127.0.0.1:0", reg, nil)
	require.NoError(t, err)
	defer func() { _ = stop(context.Background()) }()

	var body []byte
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr.String() + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ = io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	assert.Contains(t, string(body), `carstore_client_requests_total{endpoint="/cars",http_status="200",method="GET"} 1`)
}
