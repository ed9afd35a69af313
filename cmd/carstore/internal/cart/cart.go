// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cart mediates every read and write of the server-side cart.
//
// # Description
//
// The server is the only authority on cart contents. The Synchronizer
// keeps no item list between calls: every count and every rendered line
// is computed from a response fetched for that purpose. Writes never
// return the cart; callers re-read.
//
// The one piece of state a read produces is the session id, which is
// handed to a SessionRecorder (last write wins).
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/api"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/catalog"
	"github.com/jinterlante1206/carstore/pkg/logging"
)

// ErrUnknownCar marks a cart line whose car is not in the catalog.
var ErrUnknownCar = errors.New("car not in catalog")

// Item is one cart line as served.
type Item = api.CartItem

// API is the subset of the storefront client the synchronizer needs.
type API interface {
	GetCart(ctx context.Context) (api.Cart, error)
	AddToCart(ctx context.Context, carID int64, quantity int) error
	ClearCart(ctx context.Context) error
}

// SessionRecorder receives the session id from every successful read.
type SessionRecorder interface {
	SetSessionID(id string)
}

// Snapshot is the result of one fresh cart read.
type Snapshot struct {
	SessionID string
	Items     []Item
}

// Count returns the sum of quantities.
func (s Snapshot) Count() int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

// Empty reports whether the cart has no items.
func (s Snapshot) Empty() bool {
	return len(s.Items) == 0
}

// Synchronizer reads and writes the session cart.
//
// # Thread Safety
//
// Safe for concurrent use; it holds no mutable state of its own.
type Synchronizer struct {
	api      API
	sessions SessionRecorder
	logger   *logging.Logger
}

// New creates a Synchronizer. sessions and logger may be nil.
func New(client API, sessions SessionRecorder, logger *logging.Logger) *Synchronizer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Synchronizer{api: client, sessions: sessions, logger: logger.With("component", "cart")}
}

// Fetch reads the cart from the server.
//
// # Description
//
// Always performs a network read. On success the session id is recorded.
// Failures are returned as-is (wrapped) with no retry.
func (s *Synchronizer) Fetch(ctx context.Context) (Snapshot, error) {
	c, err := s.api.GetCart(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch cart: %w", err)
	}
	if s.sessions != nil && c.SessionID != "" {
		s.sessions.SetSessionID(c.SessionID)
	}
	items := c.Items
	if items == nil {
		items = []Item{}
	}
	return Snapshot{SessionID: c.SessionID, Items: items}, nil
}

// Add adds quantity of carID to the session cart. A quantity below 1 is
// sent as 1. The new cart is not returned.
func (s *Synchronizer) Add(ctx context.Context, carID int64, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}
	if err := s.api.AddToCart(ctx, carID, quantity); err != nil {
		return fmt.Errorf("add car %d: %w", carID, err)
	}
	s.logger.Debug("item added", "car_id", carID, "quantity", quantity)
	return nil
}

// ItemCount returns the total quantity from a fresh read. Never cached.
func (s *Synchronizer) ItemCount(ctx context.Context) (int, error) {
	snap, err := s.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	return snap.Count(), nil
}

// Clear empties the session cart.
func (s *Synchronizer) Clear(ctx context.Context) error {
	if err := s.api.ClearCart(ctx); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Line is one cart item joined with its catalog entry.
type Line struct {
	Item     Item
	Car      catalog.Car
	Subtotal decimal.Decimal

	// Err is ErrUnknownCar (wrapped with the id) when the car is missing
	// from the catalog. Car and Subtotal are zero in that case.
	Err error
}

// View is a priced rendering of a fresh cart read.
type View struct {
	Snapshot
	Lines   []Line
	Total   decimal.Decimal
	Unknown int
}

// Lines reads the cart and prices each line against cat.
//
// # Description
//
// A line whose car is not in cat is kept with Err set rather than
// dropped, so the renderer can show a degraded row. Unknown lines do not
// contribute to Total.
//
// # Outputs
//
//   - View: The priced cart.
//   - error: The fetch error, if any.
func (s *Synchronizer) Lines(ctx context.Context, cat *catalog.Catalog) (View, error) {
	snap, err := s.Fetch(ctx)
	if err != nil {
		return View{}, err
	}

	v := View{Snapshot: snap, Lines: make([]Line, 0, len(snap.Items)), Total: decimal.Zero}
	for _, it := range snap.Items {
		car, ok := cat.Lookup(it.CarID)
		if !ok {
			v.Unknown++
			v.Lines = append(v.Lines, Line{Item: it, Err: fmt.Errorf("car %d: %w", it.CarID, ErrUnknownCar)})
			continue
		}
		sub := car.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		v.Total = v.Total.Add(sub)
		v.Lines = append(v.Lines, Line{Item: it, Car: car, Subtotal: sub})
	}
	if v.Unknown > 0 {
		s.logger.Warn("cart references cars missing from catalog", "count", v.Unknown)
	}
	return v, nil
}
