// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/api"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/led"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/observability"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/storefronttest"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 678_000_000, time.UTC)

const fixedStamp = "[2025-01-02T03:04:05.678Z]"

type fixture struct {
	srv     *storefronttest.Server
	board   *led.Board
	ctrl    *Controller
	metrics *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := storefronttest.New(t)
	client, err := api.NewClient(api.Config{BaseURL: srv.BaseURL(), Timeout: 2 * time.Second})
	require.NoError(t, err)

	board := led.NewBoard()
	m := observability.NewMetrics(prometheus.NewRegistry())
	return &fixture{
		srv:   srv,
		board: board,
		ctrl: New(client, board, nil,
			WithMetrics(m),
			WithClock(func() time.Time { return fixedNow }),
			WithDispatchTimeout(5*time.Second),
		),
		metrics: m,
	}
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" START ")
	require.NoError(t, err)
	assert.Equal(t, ActionStart, a)

	_, err = ParseAction("restart")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

// TestPoll_Sentinels checks each service LED follows its status body.
func TestPoll_Sentinels(t *testing.T) {
	tests := []struct {
		svc        led.Service
		statusName string
		up         bool
		want       led.State
		diagnostic string
	}{
		{led.CacheService, "redis", true, led.Up, `"redis": "OK"`},
		{led.CacheService, "redis", false, led.Down, `"redis": "DOWN"`},
		{led.MessageBroker, "rabbit", true, led.Up, `"rabbitmq": "OK"`},
		{led.MessageBroker, "rabbit", false, led.Down, `"rabbitmq": "DOWN"`},
		{led.OrderStore, "orders", true, led.Up, `"orders": []`},
		{led.OrderStore, "orders", false, led.Down, `"error"`},
	}
	for _, tt := range tests {
		t.Run(string(tt.svc)+"/"+tt.want.String(), func(t *testing.T) {
			f := newFixture(t)
			f.srv.SetHealthy(tt.statusName, tt.up)

			slot, err := f.ctrl.Poll(context.Background(), tt.svc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, slot.State)
			assert.Contains(t, slot.Diagnostic, tt.diagnostic)
			assert.Equal(t, slot, f.board.Get(tt.svc))
		})
	}
}

func TestPoll_SentinelMismatchIsDown(t *testing.T) {
	f := newFixture(t)
	f.srv.FailNext("/status/redis", http.StatusOK, `{"redis":"DEGRADED"}`)

	slot, err := f.ctrl.Poll(context.Background(), led.CacheService)
	require.NoError(t, err)
	assert.Equal(t, led.Down, slot.State)
}

func TestPoll_OrderStoreErrorFieldIsDown(t *testing.T) {
	f := newFixture(t)
	f.srv.FailNext("/status/orders", http.StatusOK, `{"error":"timeout"}`)

	slot, err := f.ctrl.Poll(context.Background(), led.OrderStore)
	require.NoError(t, err)
	assert.Equal(t, led.Down, slot.State)
}

func TestPoll_UndecodableBodyIsDown(t *testing.T) {
	f := newFixture(t)
	f.srv.FailNext("/status/rabbit", http.StatusOK, `<html>gateway</html>`)

	slot, err := f.ctrl.Poll(context.Background(), led.MessageBroker)
	require.NoError(t, err)
	assert.Equal(t, led.Down, slot.State)
	assert.True(t, strings.HasPrefix(slot.Diagnostic, "Error contacting message-broker"))
}

func TestPoll_NetworkFailureIsDown(t *testing.T) {
	stub := &stubAPI{statusErr: &api.TransportError{Method: "GET", Path: "/status/redis", Err: errors.New("connection refused")}}
	board := led.NewBoard()
	c := New(stub, board, nil)

	slot, err := c.Poll(context.Background(), led.CacheService)
	require.NoError(t, err)
	assert.Equal(t, led.Down, slot.State)
	assert.Contains(t, slot.Diagnostic, "Error contacting cache-service")
	assert.Contains(t, slot.Diagnostic, "connection refused")
}

func TestPoll_CancelledLeavesSlot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubAPI{statusErr: &api.TransportError{Err: context.Canceled}, onCall: cancel}
	board := led.NewBoard()
	board.Set(led.CacheService, led.Up, "fine")
	c := New(stub, board, nil)

	_, err := c.Poll(ctx, led.CacheService)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, led.Up, board.Get(led.CacheService).State)
	assert.Equal(t, "fine", board.Get(led.CacheService).Diagnostic)
}

func TestPoll_UnknownService(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.Poll(context.Background(), led.Service("search"))
	assert.ErrorIs(t, err, ErrUnknownService)
}

// TestPollAll_IndependentSlots checks one failing service does not affect
// the others.
func TestPollAll_IndependentSlots(t *testing.T) {
	f := newFixture(t)
	f.srv.SetHealthy("rabbit", false)

	require.NoError(t, f.ctrl.PollAll(context.Background()))

	got := map[led.Service]led.State{}
	for _, s := range f.ctrl.Snapshot() {
		got[s.Service] = s.State
	}
	assert.Equal(t, map[led.Service]led.State{
		led.CacheService:  led.Up,
		led.MessageBroker: led.Down,
		led.OrderStore:    led.Up,
	}, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		f.metrics.ServiceState.WithLabelValues(string(led.MessageBroker), led.Down.String())))
}

func TestDispatch_StopThenStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot, err := f.ctrl.Dispatch(ctx, led.CacheService, ActionStop)
	require.NoError(t, err)
	assert.Equal(t, led.Down, slot.State)
	assert.True(t, strings.HasPrefix(slot.Diagnostic, fixedStamp+" "), slot.Diagnostic)
	assert.Contains(t, slot.Diagnostic, "Container stopped.")
	assert.False(t, f.srv.Healthy("redis"))

	slot, err = f.ctrl.Dispatch(ctx, led.CacheService, ActionStart)
	require.NoError(t, err)
	assert.Equal(t, led.Up, slot.State)
	assert.Contains(t, slot.Diagnostic, "Container started.")
	assert.True(t, f.srv.Healthy("redis"))

	assert.Equal(t, 1.0, testutil.ToFloat64(
		f.metrics.DispatchesTotal.WithLabelValues(string(led.CacheService), "stop", observability.OutcomeSuccess)))
}

func TestDispatch_UsesControlName(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.Dispatch(context.Background(), led.OrderStore, ActionStop)
	require.NoError(t, err)
	assert.Equal(t, 1, f.srv.Calls(http.MethodPost, "/service/postgres/stop"))
	assert.False(t, f.srv.Healthy("orders"))
}

func TestDispatch_ErrorResponseIsDown(t *testing.T) {
	f := newFixture(t)
	f.srv.SetHealthy("rabbit", false)

	slot, err := f.ctrl.Dispatch(context.Background(), led.MessageBroker, ActionStatus)
	require.NoError(t, err)
	assert.Equal(t, led.Down, slot.State)
	assert.True(t, strings.HasPrefix(slot.Diagnostic, fixedStamp+" ERROR:\n"), slot.Diagnostic)
	assert.Contains(t, slot.Diagnostic, "container not running")
}

func TestDispatch_ErrorWithoutLogShowsBody(t *testing.T) {
	f := newFixture(t)
	f.srv.FailNext("/service/redis/start", http.StatusBadGateway, `{"detail":"upstream"}`)

	slot, err := f.ctrl.Dispatch(context.Background(), led.CacheService, ActionStart)
	require.NoError(t, err)
	assert.Equal(t, led.Down, slot.State)
	assert.Equal(t, fixedStamp+" ERROR:\n{\n  \"detail\": \"upstream\"\n}", slot.Diagnostic)
}

func TestDispatch_NetworkErrorIsDown(t *testing.T) {
	stub := &stubAPI{actionErr: &api.TransportError{Method: "POST", Path: "/service/redis/start", Err: errors.New("no route to host")}}
	board := led.NewBoard()
	c := New(stub, board, nil, WithClock(func() time.Time { return fixedNow }))

	slot, err := c.Dispatch(context.Background(), led.CacheService, ActionStart)
	require.NoError(t, err)
	assert.Equal(t, led.Down, slot.State)
	assert.True(t, strings.HasPrefix(slot.Diagnostic, fixedStamp+" Network error: "), slot.Diagnostic)
	assert.Contains(t, slot.Diagnostic, "no route to host")
}

// TestDispatch_InFlightGuard holds a dispatch open and checks a second one
// for the same service is rejected while another service proceeds.
func TestDispatch_InFlightGuard(t *testing.T) {
	f := newFixture(t)
	release := f.srv.HoldActions()
	defer release()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(map[led.Service]led.ServiceState)
	var mu sync.Mutex
	for _, svc := range []led.Service{led.CacheService, led.MessageBroker} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot, err := f.ctrl.Dispatch(ctx, svc, ActionStop)
			assert.NoError(t, err)
			mu.Lock()
			results[svc] = slot
			mu.Unlock()
		}()
	}

	require.Eventually(t, func() bool {
		return f.board.Get(led.CacheService).Diagnostic != "" && f.board.Get(led.MessageBroker).Diagnostic != ""
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, f.ctrl.InFlight(led.CacheService))
	assert.True(t, f.ctrl.InFlight(led.MessageBroker))

	pending := f.board.Get(led.CacheService)
	assert.Equal(t, led.Unknown, pending.State)
	assert.Equal(t, fixedStamp+" Running STOP on cache-service...", pending.Diagnostic)

	_, err := f.ctrl.Dispatch(ctx, led.CacheService, ActionStart)
	assert.ErrorIs(t, err, ErrDispatchInFlight)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		f.metrics.DispatchesTotal.WithLabelValues(string(led.CacheService), "start", observability.OutcomeBusy)))

	release()
	wg.Wait()

	assert.Equal(t, led.Down, results[led.CacheService].State)
	assert.Equal(t, led.Down, results[led.MessageBroker].State)
	assert.False(t, f.ctrl.InFlight(led.CacheService))

	slot, err := f.ctrl.Dispatch(ctx, led.CacheService, ActionStart)
	require.NoError(t, err)
	assert.Equal(t, led.Up, slot.State)
}

func TestDispatch_CancelledRestoresSlot(t *testing.T) {
	f := newFixture(t)
	release := f.srv.HoldActions()
	defer release()

	_, err := f.ctrl.Poll(context.Background(), led.CacheService)
	require.NoError(t, err)
	before := f.board.Get(led.CacheService)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.ctrl.Dispatch(ctx, led.CacheService, ActionStop)
		done <- err
	}()

	require.Eventually(t, func() bool { return f.ctrl.InFlight(led.CacheService) }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not return after cancel")
	}

	after := f.board.Get(led.CacheService)
	assert.Equal(t, before.State, after.State)
	assert.Equal(t, before.Diagnostic, after.Diagnostic)
	assert.False(t, f.ctrl.InFlight(led.CacheService))
}

// TestPoll_DuringDispatchKeepsPendingSlot polls a service while its
// dispatch is held open: the pending lamp must survive until the dispatch
// resolves.
func TestPoll_DuringDispatchKeepsPendingSlot(t *testing.T) {
	f := newFixture(t)
	release := f.srv.HoldActions()
	defer release()
	ctx := context.Background()

	done := make(chan led.ServiceState, 1)
	go func() {
		slot, err := f.ctrl.Dispatch(ctx, led.CacheService, ActionStop)
		assert.NoError(t, err)
		done <- slot
	}()
	require.Eventually(t, func() bool { return f.ctrl.InFlight(led.CacheService) }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return f.board.Get(led.CacheService).Diagnostic != "" }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, f.ctrl.PollAll(ctx))

	pending := f.board.Get(led.CacheService)
	assert.Equal(t, led.Unknown, pending.State)
	assert.Equal(t, fixedStamp+" Running STOP on cache-service...", pending.Diagnostic)
	assert.Equal(t, led.Up, f.board.Get(led.MessageBroker).State, "other services are still polled")

	slot, err := f.ctrl.Poll(ctx, led.CacheService)
	require.NoError(t, err)
	assert.Equal(t, pending.Diagnostic, slot.Diagnostic)

	release()
	select {
	case slot := <-done:
		assert.Equal(t, led.Down, slot.State)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not finish")
	}

	slot, err = f.ctrl.Poll(ctx, led.CacheService)
	require.NoError(t, err)
	assert.Equal(t, led.Down, slot.State, "polls write again once the dispatch is done")
}

// TestDispatch_CancelledKeepsNewerSlot checks a cancelled dispatch only
// restores over its own pending value.
func TestDispatch_CancelledKeepsNewerSlot(t *testing.T) {
	f := newFixture(t)
	release := f.srv.HoldActions()
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.ctrl.Dispatch(ctx, led.CacheService, ActionStop)
		done <- err
	}()
	require.Eventually(t, func() bool {
		return f.board.Get(led.CacheService).State == led.Unknown && f.board.Get(led.CacheService).Diagnostic != ""
	}, 2*time.Second, 5*time.Millisecond)

	f.board.Set(led.CacheService, led.Up, "newer")
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not return after cancel")
	}
	assert.Equal(t, "newer", f.board.Get(led.CacheService).Diagnostic)
}

func TestDispatch_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.Dispatch(ctx, led.Service("search"), ActionStart)
	assert.ErrorIs(t, err, ErrUnknownService)

	_, err = f.ctrl.Dispatch(ctx, led.CacheService, Action("reboot"))
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Equal(t, led.Unknown, f.board.Get(led.CacheService).State, "rejected dispatch does not touch the LED")
}

func TestNew_CustomServices(t *testing.T) {
	stub := &stubAPI{statusBody: []byte(`{"cache":"PONG"}`)}
	c := New(stub, led.NewBoard(), []ServiceConfig{
		{Service: led.CacheService, StatusName: "cache", ControlName: "cache", SentinelField: "cache", SentinelValue: "PONG"},
		{Service: led.Service("bogus"), StatusName: "bogus"},
	})

	slot, err := c.Poll(context.Background(), led.CacheService)
	require.NoError(t, err)
	assert.Equal(t, led.Up, slot.State)
	assert.Equal(t, "cache", stub.lastName)

	_, ok := c.Service(led.MessageBroker)
	assert.False(t, ok)
	_, ok = c.Service(led.Service("bogus"))
	assert.False(t, ok)
}

func TestSetServices_SwapsEndpoints(t *testing.T) {
	stub := &stubAPI{statusBody: []byte(`{"cache":"PONG"}`)}
	c := New(stub, led.NewBoard(), []ServiceConfig{
		{Service: led.CacheService, StatusName: "redis", ControlName: "redis", SentinelField: "cache", SentinelValue: "PONG"},
	})

	_, err := c.Poll(context.Background(), led.CacheService)
	require.NoError(t, err)
	assert.Equal(t, "redis", stub.lastName)

	c.SetServices([]ServiceConfig{
		{Service: led.CacheService, StatusName: "cache-v2", ControlName: "cache-v2", SentinelField: "cache", SentinelValue: "PONG"},
		{Service: led.OrderStore, StatusName: "orders"},
	})

	slot, err := c.Poll(context.Background(), led.CacheService)
	require.NoError(t, err)
	assert.Equal(t, led.Up, slot.State)
	assert.Equal(t, "cache-v2", stub.lastName)

	_, ok := c.Service(led.OrderStore)
	assert.True(t, ok)

	c.SetServices(nil)
	sc, ok := c.Service(led.MessageBroker)
	require.True(t, ok)
	assert.Equal(t, DefaultServices()[1], sc)
}

type stubAPI struct {
	statusBody []byte
	statusErr  error
	actionBody []byte
	actionErr  error
	onCall     func()
	lastName   string
}

func (s *stubAPI) ServiceStatus(_ context.Context, name string) ([]byte, error) {
	s.lastName = name
	if s.onCall != nil {
		s.onCall()
	}
	return s.statusBody, s.statusErr
}

func (s *stubAPI) ServiceAction(_ context.Context, name, _ string) ([]byte, error) {
	s.lastName = name
	if s.onCall != nil {
		s.onCall()
	}
	return s.actionBody, s.actionErr
}
