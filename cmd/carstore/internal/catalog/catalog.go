// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog holds the read-only car catalog for one process.
//
// Cars live in an arena (a slice in server order) with an id index. The
// arena is replaced wholesale on Load and never mutated in place, so a
// Car handed out by Lookup stays valid for the life of the process.
package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/api"
)

// Car is one catalog entry.
type Car = api.Car

// Lister fetches the full catalog.
type Lister interface {
	ListCars(ctx context.Context) ([]api.Car, error)
}

// Catalog is the in-memory car arena.
//
// # Thread Safety
//
// Safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	cars   []Car
	index  map[int64]int
	loaded bool
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{index: make(map[int64]int)}
}

// Load replaces the catalog with a fresh server read.
//
// # Description
//
// On failure the previous contents are kept. Duplicate ids keep the first
// occurrence.
//
// # Outputs
//
//   - int: Number of cars now in the catalog.
//   - error: The fetch error, wrapped.
func (c *Catalog) Load(ctx context.Context, src Lister) (int, error) {
	cars, err := src.ListCars(ctx)
	if err != nil {
		return 0, fmt.Errorf("load catalog: %w", err)
	}
	c.Replace(cars)
	return len(cars), nil
}

// Replace installs cars as the catalog contents.
func (c *Catalog) Replace(cars []Car) {
	arena := make([]Car, 0, len(cars))
	index := make(map[int64]int, len(cars))
	for _, car := range cars {
		if _, dup := index[car.ID]; dup {
			continue
		}
		index[car.ID] = len(arena)
		arena = append(arena, car)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cars = arena
	c.index = index
	c.loaded = true
}

// EnsureLoaded loads the catalog if it has never been loaded.
func (c *Catalog) EnsureLoaded(ctx context.Context, src Lister) error {
	if c.Loaded() {
		return nil
	}
	_, err := c.Load(ctx, src)
	return err
}

// Loaded reports whether a Load or Replace has succeeded.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Lookup returns the car with id.
func (c *Catalog) Lookup(id int64) (Car, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return Car{}, false
	}
	return c.cars[i], true
}

// All returns the cars in server order. The slice is a copy.
func (c *Catalog) All() []Car {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Car, len(c.cars))
	copy(out, c.cars)
	return out
}

// Len returns the number of cars.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cars)
}

// imageCDN renders a stock photo from make and model.
const imageCDN = "https://cdn.imagin.studio/getImage"

// ImageURL returns the car's image, falling back to a front-angle CDN
// rendering keyed by make and model when the server sent none.
func ImageURL(car Car) string {
	if strings.TrimSpace(car.Image) != "" {
		return car.Image
	}
	q := url.Values{}
	q.Set("customer", "img")
	q.Set("make", car.Make)
	q.Set("model", car.Model)
	q.Set("angle", "front")
	return imageCDN + "?" + q.Encode()
}

// Title returns "Year Make Model".
func Title(car Car) string {
	return strings.TrimSpace(fmt.Sprintf("%d %s %s", car.Year, car.Make, car.Model))
}
