// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dashboard polls the three backend services and dispatches
// start/stop/status control actions against them.
//
// # Description
//
// Every poll and dispatch writes exactly one led.Board slot, the one of
// the service it targets. No aggregate health is computed.
//
// A poll maps the decoded status body onto Up or Down through a
// per-service sentinel. A dispatch marks the slot Unknown while pending and
// resolves it from the control response. Diagnostics carry the raw server
// output so operators see what the backend said.
//
// A call cancelled by its context (view navigation) leaves the slot as it
// was before the call.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/api"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/led"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/observability"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/util"
	"github.com/jinterlante1206/carstore/pkg/logging"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrUnknownService is returned for a service with no configuration.
	ErrUnknownService = errors.New("unknown service")

	// ErrUnknownAction is returned for an action other than start, stop or
	// status.
	ErrUnknownAction = errors.New("unknown action")

	// ErrDispatchInFlight is returned when the service already has a
	// dispatch pending.
	ErrDispatchInFlight = errors.New("dispatch already in flight")
)

// =============================================================================
// Actions
// =============================================================================

// Action is a service control verb.
type Action string

const (
	ActionStart  Action = "start"
	ActionStop   Action = "stop"
	ActionStatus Action = "status"
)

// ParseAction returns the Action named s.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionStart, ActionStop, ActionStatus:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// resolved returns the LED state left by a successful dispatch.
func (a Action) resolved() led.State {
	if a == ActionStop {
		return led.Down
	}
	return led.Up
}

// =============================================================================
// Service configuration
// =============================================================================

// ServiceConfig maps a monitored service onto its backend endpoints and
// health sentinel.
type ServiceConfig struct {
	Service led.Service

	// StatusName is the {service} segment of GET /status/{service}.
	StatusName string

	// ControlName is the {service} segment of POST /service/{service}/{action}.
	ControlName string

	// SentinelField names the body field checked by a poll. When empty the
	// service is Up whenever the body is a JSON object with no "error" field.
	SentinelField string

	// SentinelValue is the value SentinelField must hold for Up. When empty
	// the field only has to be present.
	SentinelValue string
}

// healthy applies the sentinel to a decoded status body.
func (sc ServiceConfig) healthy(body map[string]any) bool {
	if sc.SentinelField == "" {
		_, failed := body["error"]
		return !failed
	}
	v, ok := body[sc.SentinelField]
	if !ok {
		return false
	}
	if sc.SentinelValue == "" {
		return true
	}
	s, ok := v.(string)
	return ok && s == sc.SentinelValue
}

// DefaultServices returns the endpoint names and sentinels of the
// reference storefront backend.
func DefaultServices() []ServiceConfig {
	return []ServiceConfig{
		{Service: led.CacheService, StatusName: "redis", ControlName: "redis", SentinelField: "redis", SentinelValue: "OK"},
		{Service: led.MessageBroker, StatusName: "rabbit", ControlName: "rabbit", SentinelField: "rabbitmq", SentinelValue: "OK"},
		{Service: led.OrderStore, StatusName: "orders", ControlName: "postgres"},
	}
}

// =============================================================================
// Controller
// =============================================================================

// API is the transport surface the controller needs.
type API interface {
	ServiceStatus(ctx context.Context, name string) ([]byte, error)
	ServiceAction(ctx context.Context, name, action string) ([]byte, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithDispatchTimeout bounds each control request. Control actions start
// or stop containers and usually need longer than reads.
func WithDispatchTimeout(d time.Duration) Option {
	return func(c *Controller) { c.dispatchTimeout = d }
}

// WithClock replaces time.Now for diagnostic timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller drives the service dashboard.
//
// # Thread Safety
//
// Safe for concurrent use. At most one dispatch per service is in flight,
// and a dispatch owns its slot until it resolves: polls that land in the
// meantime do not overwrite it.
type Controller struct {
	api   API
	board *led.Board

	svcMu    sync.RWMutex
	services map[led.Service]ServiceConfig

	metrics         *observability.Metrics
	logger          *logging.Logger
	dispatchTimeout time.Duration
	now             func() time.Time

	mu       sync.Mutex
	inFlight map[led.Service]string
}

// New creates a Controller.
//
// # Inputs
//
//   - client: Status and control transport.
//   - board: The LED board written by polls and dispatches.
//   - services: Endpoint configuration. Nil uses DefaultServices; entries
//     for unknown services are ignored.
//   - opts: Optional collaborators.
//
// # Outputs
//
//   - *Controller: Ready to use.
func New(client API, board *led.Board, services []ServiceConfig, opts ...Option) *Controller {
	if services == nil {
		services = DefaultServices()
	}
	c := &Controller{
		api:             client,
		board:           board,
		services:        serviceMap(services),
		dispatchTimeout: util.DefaultDispatchTimeout,
		now:             time.Now,
		inFlight:        make(map[led.Service]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	c.logger = c.logger.With("component", "dashboard")
	return c
}

// Snapshot returns the three LED slots in display order.
func (c *Controller) Snapshot() []led.ServiceState {
	return c.board.Snapshot()
}

// Service returns the configuration of svc.
func (c *Controller) Service(svc led.Service) (ServiceConfig, bool) {
	c.svcMu.RLock()
	defer c.svcMu.RUnlock()
	sc, ok := c.services[svc]
	return sc, ok
}

// SetServices replaces the endpoint configuration, e.g. after the config
// file changed. Nil restores DefaultServices. Requests already sent keep
// the endpoint they started with.
func (c *Controller) SetServices(services []ServiceConfig) {
	if services == nil {
		services = DefaultServices()
	}
	m := serviceMap(services)
	c.svcMu.Lock()
	c.services = m
	c.svcMu.Unlock()
	c.logger.Info("service endpoints updated", "services", len(m))
}

func serviceMap(services []ServiceConfig) map[led.Service]ServiceConfig {
	m := make(map[led.Service]ServiceConfig, len(services))
	for _, sc := range services {
		if _, ok := led.ParseService(string(sc.Service)); ok {
			m[sc.Service] = sc
		}
	}
	return m
}

// =============================================================================
// Polling
// =============================================================================

// Poll refreshes the LED of one service from its status endpoint.
//
// # Description
//
// A body that decodes as a JSON object is judged by the service sentinel,
// whatever the HTTP status; the diagnostic is the body re-indented. No
// response or an undecodable body sets Down with an error diagnostic.
// While a dispatch for the service is pending the result is dropped and
// the pending slot is returned unchanged.
//
// # Outputs
//
//   - led.ServiceState: The slot written by this poll, or the pending slot
//     of a dispatch.
//   - error: ErrUnknownService, or ctx.Err() when cancelled. Backend
//     failures are not errors; they are reported through the slot.
func (c *Controller) Poll(ctx context.Context, svc led.Service) (led.ServiceState, error) {
	sc, ok := c.Service(svc)
	if !ok {
		return led.ServiceState{}, fmt.Errorf("%w: %q", ErrUnknownService, svc)
	}

	body, err := c.api.ServiceStatus(ctx, sc.StatusName)
	if err != nil && ctx.Err() != nil {
		return c.board.Get(svc), ctx.Err()
	}
	if err != nil {
		if _, isResp := api.AsResponse(err); !isResp {
			c.logger.Debug("status poll failed", "service", svc, "error", err)
			return c.setPolled(svc, led.Down, fmt.Sprintf("Error contacting %s: %v", svc, err)), nil
		}
	}

	var decoded map[string]any
	if jerr := json.Unmarshal(body, &decoded); jerr != nil || decoded == nil {
		if jerr == nil {
			jerr = errors.New("body is not a JSON object")
		}
		return c.setPolled(svc, led.Down, fmt.Sprintf("Error contacting %s: %v", svc, jerr)), nil
	}
	return c.setPolled(svc, led.FromBool(sc.healthy(decoded)), indent(body)), nil
}

// PollAll polls every configured service concurrently. Each poll writes
// only its own slot; a failure of one never affects the others.
func (c *Controller) PollAll(ctx context.Context) error {
	var g errgroup.Group
	for _, svc := range led.Services {
		if _, ok := c.Service(svc); !ok {
			continue
		}
		g.Go(func() error {
			_, err := c.Poll(ctx, svc)
			return err
		})
	}
	return g.Wait()
}

// =============================================================================
// Dispatch
// =============================================================================

// Dispatch runs a control action against one service.
//
// # Description
//
// The slot goes Unknown with a "Running" diagnostic while the request is
// pending, then resolves:
//
//   - 2xx: Up for start and status, Down for stop; diagnostic is the
//     server log (or raw body) under a completion timestamp
//   - non-2xx: Down; diagnostic is "ERROR:" plus the log or raw body
//   - no response: Down with a network error diagnostic
//
// # Outputs
//
//   - led.ServiceState: The resolved slot.
//   - error: ErrUnknownService, ErrUnknownAction, ErrDispatchInFlight, or
//     ctx.Err() when cancelled (the slot is restored). Backend failures are
//     reported through the slot, not as errors.
//
// # Thread Safety
//
// A second dispatch for a service with one pending is rejected; different
// services proceed independently.
func (c *Controller) Dispatch(ctx context.Context, svc led.Service, action Action) (led.ServiceState, error) {
	sc, ok := c.Service(svc)
	if !ok {
		return led.ServiceState{}, fmt.Errorf("%w: %q", ErrUnknownService, svc)
	}
	if _, err := ParseAction(string(action)); err != nil {
		return led.ServiceState{}, err
	}

	token, ok := c.acquire(svc)
	if !ok {
		c.metrics.RecordDispatch(svc, string(action), observability.OutcomeBusy)
		return c.board.Get(svc), fmt.Errorf("%w: %s", ErrDispatchInFlight, svc)
	}
	defer c.release(svc, token)

	previous := c.board.Get(svc)
	pending := c.set(svc, led.Unknown, fmt.Sprintf("[%s] Running %s on %s...", c.stamp(), strings.ToUpper(string(action)), svc))
	c.logger.Info("dispatching", "service", svc, "action", action, "token", token)

	body, err := c.api.ServiceAction(api.WithRequestTimeout(ctx, c.dispatchTimeout), sc.ControlName, string(action))
	switch {
	case err != nil && ctx.Err() != nil:
		return c.restore(svc, pending, previous), ctx.Err()

	case err == nil:
		c.metrics.RecordDispatch(svc, string(action), observability.OutcomeSuccess)
		return c.set(svc, action.resolved(), fmt.Sprintf("[%s] %s", c.stamp(), output(body))), nil
	}

	if re, isResp := api.AsResponse(err); isResp {
		c.metrics.RecordDispatch(svc, string(action), observability.OutcomeRejected)
		c.logger.Warn("dispatch rejected", "service", svc, "action", action, "status", re.Status)
		return c.set(svc, led.Down, fmt.Sprintf("[%s] ERROR:\n%s", c.stamp(), output(re.Body))), nil
	}

	c.metrics.RecordDispatch(svc, string(action), observability.OutcomeNetwork)
	c.logger.Warn("dispatch failed", "service", svc, "action", action, "error", err)
	return c.set(svc, led.Down, fmt.Sprintf("[%s] Network error: %v", c.stamp(), err)), nil
}

// InFlight reports whether svc has a dispatch pending.
func (c *Controller) InFlight(svc led.Service) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, busy := c.inFlight[svc]
	return busy
}

func (c *Controller) acquire(svc led.Service) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[svc]; busy {
		return "", false
	}
	token := uuid.NewString()
	c.inFlight[svc] = token
	return token, true
}

func (c *Controller) release(svc led.Service, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[svc] == token {
		delete(c.inFlight, svc)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func (c *Controller) set(svc led.Service, state led.State, diagnostic string) led.ServiceState {
	slot := c.board.Set(svc, state, diagnostic)
	c.metrics.SetServiceState(slot)
	return slot
}

// setPolled writes a poll result unless a dispatch holds the slot. The
// in-flight check runs under the board lock; a dispatch marks itself in
// flight before writing its pending slot, so the two cannot interleave.
func (c *Controller) setPolled(svc led.Service, state led.State, diagnostic string) led.ServiceState {
	slot, written := c.board.SetIf(svc, func(led.ServiceState) bool {
		return !c.InFlight(svc)
	}, state, diagnostic)
	if !written {
		c.logger.Debug("poll result dropped during dispatch", "service", svc)
		return slot
	}
	c.metrics.SetServiceState(slot)
	return slot
}

// restore puts back the pre-dispatch slot, but only over the dispatch's
// own pending value.
func (c *Controller) restore(svc led.Service, pending, previous led.ServiceState) led.ServiceState {
	slot, written := c.board.SetIf(svc, func(cur led.ServiceState) bool {
		return cur.State == pending.State && cur.Diagnostic == pending.Diagnostic && cur.UpdatedAt.Equal(pending.UpdatedAt)
	}, previous.State, previous.Diagnostic)
	if written {
		c.metrics.SetServiceState(slot)
	}
	return slot
}

// stamp formats the current time as UTC ISO-8601 with milliseconds.
func (c *Controller) stamp() string {
	return c.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// output returns the log field of a control response, or the body
// re-indented when there is none.
func output(body []byte) string {
	if log, ok := api.ExtractLog(body); ok {
		return log
	}
	return indent(body)
}

// indent re-indents a JSON body with two spaces. Non-JSON is returned
// trimmed.
func indent(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(body), "", "  "); err != nil {
		return string(bytes.TrimSpace(body))
	}
	return buf.String()
}
