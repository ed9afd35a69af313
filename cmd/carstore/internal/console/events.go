// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package console

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/cart"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/catalog"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/checkout"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/led"
)

// =============================================================================
// Messages
// =============================================================================

// CatalogMsg carries a catalog (re)load.
type CatalogMsg struct {
	Cars []catalog.Car
	Err  error
}

// CartMsg carries a priced cart read.
type CartMsg struct {
	View cart.View
	Err  error
}

// CountMsg carries a refreshed badge count.
type CountMsg struct{ N int }

// ServiceMsg carries one LED slot change.
type ServiceMsg struct{ State led.ServiceState }

// OrderMsg announces a placed order.
type OrderMsg struct{ Order checkout.Order }

// WarnMsg carries a non-blocking warning.
type WarnMsg struct{ Text string }

// ReloadMsg announces a config reload. Refresh is the new auto-refresh
// interval.
type ReloadMsg struct{ Refresh time.Duration }

// =============================================================================
// Events
// =============================================================================

// Events is a storefront.Renderer that turns state changes into tea
// messages for the console model.
//
// # Thread Safety
//
// Renderer methods may be called from any goroutine. After Close they
// drop their event instead of blocking.
type Events struct {
	ch   chan tea.Msg
	done chan struct{}
	once sync.Once
}

// NewEvents creates an event queue.
func NewEvents() *Events {
	return &Events{
		ch:   make(chan tea.Msg, 256),
		done: make(chan struct{}),
	}
}

// Close stops delivery. Pending senders return.
func (e *Events) Close() {
	e.once.Do(func() { close(e.done) })
}

// Wait returns a command that delivers the next event.
func (e *Events) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-e.ch:
			return msg
		case <-e.done:
			return nil
		}
	}
}

// Pending drains the queued events without blocking.
func (e *Events) Pending() []tea.Msg {
	var out []tea.Msg
	for {
		select {
		case msg := <-e.ch:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func (e *Events) send(msg tea.Msg) {
	select {
	case e.ch <- msg:
	case <-e.done:
	}
}

func (e *Events) CatalogLoaded(cars []catalog.Car, err error) { e.send(CatalogMsg{cars, err}) }
func (e *Events) CartChanged(v cart.View, err error) { e.send(CartMsg{v, err}) }
func (e *Events) ItemCountChanged(n int) { e.send(CountMsg{n}) }
func (e *Events) ServiceChanged(s led.ServiceState) { e.send(ServiceMsg{s}) }
func (e *Events) OrderPlaced(o checkout.Order) { e.send(OrderMsg{o}) }
func (e *Events) Warn(msg string) { e.send(WarnMsg{msg}) }

// ConfigReloaded is called by the config watcher, not by the storefront.
func (e *Events) ConfigReloaded(refresh time.Duration) { e.send(ReloadMsg{refresh}) }
