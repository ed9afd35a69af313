// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package checkout turns the session cart plus customer details into an
// order.
//
// # Description
//
// A successful order runs a fixed post-success workflow, in order:
//
//  1. Notifier.OrderPlaced (the success message is shown first)
//  2. clear the server cart
//  3. re-derive the item count from a fresh read
//
// Steps 2 and 3 cannot undo step 1. If either fails, the order still
// stands: the failure becomes a Result warning and a Notifier.Warn call.
//
// A rejected order (non-2xx) returns the *api.ResponseError unwrapped so
// its payload reaches the user verbatim. The cart is left untouched so the
// user can retry. Nothing is retried automatically.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/api"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/cart"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/observability"
	"github.com/jinterlante1206/carstore/pkg/logging"
)

// ErrNoActiveSession means no session id was known and none could be
// obtained from a cart read.
var ErrNoActiveSession = errors.New("no active session")

// API places orders.
type API interface {
	Checkout(ctx context.Context, req api.CheckoutRequest) (api.CheckoutResponse, error)
}

// Carts is the cart synchronizer surface the orchestrator drives.
type Carts interface {
	Fetch(ctx context.Context) (cart.Snapshot, error)
	Clear(ctx context.Context) error
	ItemCount(ctx context.Context) (int, error)
}

// Notifier receives the user-visible outcomes of the post-success workflow.
type Notifier interface {
	OrderPlaced(order Order)
	ItemCountChanged(n int)
	Warn(message string)
}

// Order is a placed order. It is returned for display and not retained.
type Order struct {
	OrderID       string
	CustomerName  string
	CustomerEmail string
}

// Message is the success text shown to the user.
func (o Order) Message() string {
	return fmt.Sprintf("Order #%s created!", o.OrderID)
}

// Result is the outcome of a successful checkout.
type Result struct {
	Order Order

	// ItemCount is the refreshed badge count; valid when CountRefreshed.
	ItemCount      int
	CountRefreshed bool

	// Warnings lists non-blocking failures of the post-success workflow.
	Warnings []string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets the outcome notifier.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// Orchestrator runs checkouts.
//
// # Thread Safety
//
// Safe for concurrent use. Concurrent checkouts of the same session are
// not serialised here; the server decides which one finds a cart.
type Orchestrator struct {
	api      API
	carts    Carts
	notifier Notifier
	metrics  *observability.Metrics
	logger   *logging.Logger
}

// New creates an Orchestrator.
func New(client API, carts Carts, opts ...Option) *Orchestrator {
	o := &Orchestrator{api: client, carts: carts}
	for _, opt := range opts {
		opt(o)
	}
	if o.notifier == nil {
		o.notifier = nopNotifier{}
	}
	if o.logger == nil {
		o.logger = logging.Nop()
	}
	o.logger = o.logger.With("component", "checkout")
	return o
}

// Checkout places an order for the session cart.
//
// # Description
//
// With an empty sessionID the cart is read first to obtain one. Name and
// email are trimmed; empty values are sent as-is since validation belongs
// to the server.
//
// # Inputs
//
//   - ctx: Bounds the session lookup and the order request. The
//     post-success clear and count run detached from ctx cancellation
//     so leaving the view does not abandon them.
//   - sessionID: Last known session id, may be empty.
//   - name, email: Customer details.
//
// # Outputs
//
//   - Result: The order and any post-success warnings.
//   - error: ErrNoActiveSession (wrapping the read failure, if any), the
//     *api.ResponseError of a rejected order, or a wrapped transport or
//     decode error.
func (o *Orchestrator) Checkout(ctx context.Context, sessionID, name, email string) (Result, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		snap, err := o.carts.Fetch(ctx)
		if err != nil {
			o.metrics.RecordCheckout(observability.OutcomeFailed)
			return Result{}, fmt.Errorf("%w: %w", ErrNoActiveSession, err)
		}
		if snap.SessionID == "" {
			o.metrics.RecordCheckout(observability.OutcomeFailed)
			return Result{}, ErrNoActiveSession
		}
		sessionID = snap.SessionID
	}

	req := api.CheckoutRequest{
		SessionID:     sessionID,
		CustomerName:  strings.TrimSpace(name),
		CustomerEmail: strings.TrimSpace(email),
	}
	resp, err := o.api.Checkout(ctx, req)
	if err != nil {
		if re, ok := api.AsResponse(err); ok {
			o.metrics.RecordCheckout(observability.OutcomeRejected)
			o.logger.Info("checkout rejected", "status", re.Status)
			return Result{}, re
		}
		if api.IsTransport(err) {
			o.metrics.RecordCheckout(observability.OutcomeNetwork)
		} else {
			o.metrics.RecordCheckout(observability.OutcomeFailed)
		}
		return Result{}, fmt.Errorf("checkout: %w", err)
	}

	order := Order{
		OrderID:       string(resp.OrderID),
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
	}
	res := Result{Order: order}
	o.logger.Info("order placed", "order_id", order.OrderID)

	// 1. success is shown before anything else can fail
	o.notifier.OrderPlaced(order)

	after := context.WithoutCancel(ctx)

	// 2. clear
	if err := o.carts.Clear(after); err != nil {
		res.Warnings = append(res.Warnings, o.warn(
			fmt.Sprintf("Order #%s was placed but the cart could not be cleared: %v", order.OrderID, err)))
	}

	// 3. count
	n, err := o.carts.ItemCount(after)
	if err != nil {
		res.Warnings = append(res.Warnings, o.warn(
			fmt.Sprintf("Could not refresh cart count: %v", err)))
	} else {
		res.ItemCount = n
		res.CountRefreshed = true
		o.notifier.ItemCountChanged(n)
	}

	if len(res.Warnings) > 0 {
		o.metrics.RecordCheckout(observability.OutcomeWarning)
	} else {
		o.metrics.RecordCheckout(observability.OutcomeSuccess)
	}
	return res, nil
}

func (o *Orchestrator) warn(msg string) string {
	o.logger.Warn(msg)
	o.notifier.Warn(msg)
	return msg
}

type nopNotifier struct{}

func (nopNotifier) OrderPlaced(Order) {}
func (nopNotifier) ItemCountChanged(int) {}
func (nopNotifier) Warn(string) {}
