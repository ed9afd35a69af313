// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package led holds the tri-state health indicator for each monitored
// backend service.
//
// The model is pure data: no I/O happens here. Each of the three service
// slots is written only by its own service's poll and dispatch flow, so the
// Board mutex never sees cross-service contention in practice; it exists
// so renderers can take consistent snapshots while writes land.
package led

import (
	"fmt"
	"sync"
	"time"
)

// State is the last-known health of a monitored service.
type State int

const (
	// Unknown is the initial state and the state while a dispatch is pending.
	Unknown State = iota

	// Up means the last poll or dispatch reported the service healthy.
	Up

	// Down means the last poll or dispatch reported the service unhealthy
	// or unreachable.
	Down
)

// String returns "UNKNOWN", "UP" or "DOWN".
func (s State) String() string {
	switch s {
	case Unknown:
		return "UNKNOWN"
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// FromBool maps a health predicate onto Up/Down.
func FromBool(up bool) State {
	if up {
		return Up
	}
	return Down
}

// Service identifies one of the three monitored backends.
type Service string

const (
	CacheService  Service = "cache-service"
	MessageBroker Service = "message-broker"
	OrderStore    Service = "order-store"
)

// Services lists the monitored backends in display order.
var Services = []Service{CacheService, MessageBroker, OrderStore}

// ParseService returns the Service named s, or false when s is not one of
// the three monitored identities.
func ParseService(s string) (Service, bool) {
	for _, svc := range Services {
		if string(svc) == s {
			return svc, true
		}
	}
	return "", false
}

// ServiceState is one LED slot: the indicator plus free-form diagnostic text.
type ServiceState struct {
	Service    Service
	State      State
	Diagnostic string
	UpdatedAt  time.Time
}

// Board holds one ServiceState per monitored service.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Board struct {
	mu       sync.RWMutex
	slots    map[Service]ServiceState
	now      func() time.Time
	onChange func(ServiceState)
}

// NewBoard returns a board with every service in the Unknown state.
func NewBoard() *Board {
	b := &Board{
		slots: make(map[Service]ServiceState, len(Services)),
		now:   time.Now,
	}
	for _, svc := range Services {
		b.slots[svc] = ServiceState{Service: svc, State: Unknown}
	}
	return b
}

// OnChange registers fn to be called after every Set with the new slot
// value. It is called outside the board lock.
func (b *Board) OnChange(fn func(ServiceState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// Set records a new state and diagnostic for service and returns the
// stored slot.
func (b *Board) Set(service Service, state State, diagnostic string) ServiceState {
	b.mu.Lock()
	slot := ServiceState{
		Service:    service,
		State:      state,
		Diagnostic: diagnostic,
		UpdatedAt:  b.now(),
	}
	b.slots[service] = slot
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn(slot)
	}
	return slot
}

// SetIf records a new state and diagnostic for service only when keep
// returns true for the current slot. The check and the write happen under
// the board lock, so no other Set can land between them.
//
// # Outputs
//
//   - ServiceState: The stored slot, or the unchanged current slot.
//   - bool: True when the slot was written.
func (b *Board) SetIf(service Service, keep func(current ServiceState) bool, state State, diagnostic string) (ServiceState, bool) {
	b.mu.Lock()
	current, ok := b.slots[service]
	if !ok {
		current = ServiceState{Service: service, State: Unknown}
	}
	if !keep(current) {
		b.mu.Unlock()
		return current, false
	}
	slot := ServiceState{
		Service:    service,
		State:      state,
		Diagnostic: diagnostic,
		UpdatedAt:  b.now(),
	}
	b.slots[service] = slot
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn(slot)
	}
	return slot, true
}

// Get returns the current slot for service. Unregistered services report
// Unknown.
func (b *Board) Get(service Service) ServiceState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	slot, ok := b.slots[service]
	if !ok {
		return ServiceState{Service: service, State: Unknown}
	}
	return slot
}

// Snapshot returns every slot in Services order.
func (b *Board) Snapshot() []ServiceState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ServiceState, 0, len(Services))
	for _, svc := range Services {
		out = append(out, b.slots[svc])
	}
	return out
}
