// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/api"
)

type fakeLister struct {
	cars  []api.Car
	err   error
	calls int
}

func (f *fakeLister) ListCars(context.Context) ([]api.Car, error) {
	f.calls++
	return f.cars, f.err
}

func volvo() Car {
	return Car{ID: 1, Make: "Volvo", Model: "XC60", Year: 2022, Price: decimal.NewFromInt(45000)}
}

func TestLoadAndLookup(t *testing.T) {
	c := New()
	assert.False(t, c.Loaded())

	n, err := c.Load(context.Background(), &fakeLister{cars: []Car{
		volvo(),
		{ID: 2, Make: "Audi", Model: "A4"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, c.Loaded())

	car, ok := c.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "XC60", car.Model)

	_, ok = c.Lookup(99)
	assert.False(t, ok)
}

func TestLoad_FailureKeepsPrevious(t *testing.T) {
	c := New()
	c.Replace([]Car{volvo()})

	boom := errors.New("connection refused")
	_, err := c.Load(context.Background(), &fakeLister{err: boom})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 1, c.Len())
}

func TestReplace_DuplicateIDsKeepFirst(t *testing.T) {
	c := New()
	c.Replace([]Car{volvo(), {ID: 1, Make: "Saab"}})

	car, _ := c.Lookup(1)
	assert.Equal(t, "Volvo", car.Make)
	assert.Equal(t, 1, c.Len())
}

func TestAll_ReturnsCopyInOrder(t *testing.T) {
	c := New()
	c.Replace([]Car{{ID: 3}, {ID: 1}, {ID: 2}})

	all := c.All()
	require.Len(t, all, 3)
	assert.Equal(t, []int64{3, 1, 2}, []int64{all[0].ID, all[1].ID, all[2].ID})

	all[0].Make = "mutated"
	car, _ := c.Lookup(3)
	assert.Empty(t, car.Make)
}

func TestEnsureLoaded_FetchesOnce(t *testing.T) {
	c := New()
	src := &fakeLister{cars: []Car{volvo()}}

	require.NoError(t, c.EnsureLoaded(context.Background(), src))
	require.NoError(t, c.EnsureLoaded(context.Background(), src))
	assert.Equal(t, 1, src.calls)
}

func TestEnsureLoaded_EmptyCatalogCountsAsLoaded(t *testing.T) {
	c := New()
	src := &fakeLister{cars: nil}

	require.NoError(t, c.EnsureLoaded(context.Background(), src))
	require.NoError(t, c.EnsureLoaded(context.Background(), src))
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 0, c.Len())
}

func TestImageURL(t *testing.T) {
	withImage := volvo()
	withImage.Image = "https://example.com/xc60.png"
	assert.Equal(t, "https://example.com/xc60.png", ImageURL(withImage))

	u := ImageURL(Car{Make: "Land Rover", Model: "Range Rover"})
	assert.Contains(t, u, "cdn.imagin.studio")
	assert.Contains(t, u, "make=Land+Rover")
	assert.Contains(t, u, "model=Range+Rover")
	assert.Contains(t, u, "angle=front")
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "2022 Volvo XC60", Title(volvo()))
}
