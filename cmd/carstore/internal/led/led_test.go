// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package led

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_String(t *testing.T) {
	assert.Equal(t, "UNKNOWN", Unknown.String())
	assert.Equal(t, "UP", Up.String())
	assert.Equal(t, "DOWN", Down.String())
	assert.Equal(t, "STATE(7)", State(7).String())
}

func TestFromBool(t *testing.T) {
	assert.Equal(t, Up, FromBool(true))
	assert.Equal(t, Down, FromBool(false))
}

func TestParseService(t *testing.T) {
	for _, svc := range Services {
		got, ok := ParseService(string(svc))
		require.True(t, ok, svc)
		assert.Equal(t, svc, got)
	}

	_, ok := ParseService("redis")
	assert.False(t, ok)
}

func TestNewBoard_StartsUnknown(t *testing.T) {
	b := NewBoard()

	snap := b.Snapshot()
	require.Len(t, snap, 3)
	for i, slot := range snap {
		assert.Equal(t, Services[i], slot.Service)
		assert.Equal(t, Unknown, slot.State)
		assert.Empty(t, slot.Diagnostic)
	}
}

func TestBoard_SetAndGet(t *testing.T) {
	b := NewBoard()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	stored := b.Set(CacheService, Up, `{"redis":"OK"}`)

	assert.Equal(t, Up, stored.State)
	assert.Equal(t, fixed, stored.UpdatedAt)
	assert.Equal(t, stored, b.Get(CacheService))
	assert.Equal(t, Unknown, b.Get(MessageBroker).State, "other slots untouched")
}

func TestBoard_GetUnregistered(t *testing.T) {
	b := NewBoard()
	slot := b.Get(Service("search"))
	assert.Equal(t, Unknown, slot.State)
}

func TestBoard_OnChange(t *testing.T) {
	b := NewBoard()
	var seen []ServiceState
	b.OnChange(func(s ServiceState) { seen = append(seen, s) })

	b.Set(OrderStore, Down, "Error contacting order-store")

	require.Len(t, seen, 1)
	assert.Equal(t, OrderStore, seen[0].Service)
	assert.Equal(t, Down, seen[0].State)
}

func TestBoard_IndependentSlotsConcurrently(t *testing.T) {
	b := NewBoard()

	var wg sync.WaitGroup
	for i, svc := range Services {
		wg.Add(1)
		go func(svc Service, up bool) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Set(svc, FromBool(up), "")
			}
		}(svc, i%2 == 0)
	}
	wg.Wait()

	assert.Equal(t, Up, b.Get(CacheService).State)
	assert.Equal(t, Down, b.Get(MessageBroker).State)
	assert.Equal(t, Up, b.Get(OrderStore).State)
}

func TestBoard_SetIf(t *testing.T) {
	b := NewBoard()
	var notified []ServiceState
	b.OnChange(func(s ServiceState) { notified = append(notified, s) })

	b.Set(OrderStore, Unknown, "pending")

	slot, ok := b.SetIf(OrderStore, func(cur ServiceState) bool { return cur.Diagnostic != "pending" }, Up, "polled")
	assert.False(t, ok)
	assert.Equal(t, "pending", slot.Diagnostic)
	assert.Equal(t, "pending", b.Get(OrderStore).Diagnostic)
	require.Len(t, notified, 1, "a skipped write does not notify")

	slot, ok = b.SetIf(OrderStore, func(cur ServiceState) bool { return cur.Diagnostic == "pending" }, Down, "restored")
	assert.True(t, ok)
	assert.Equal(t, Down, slot.State)
	assert.Equal(t, "restored", b.Get(OrderStore).Diagnostic)
	require.Len(t, notified, 2)
	assert.Equal(t, slot, notified[1])
}
