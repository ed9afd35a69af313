// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpenInMemory verifies in-memory database creation works.
func TestOpenInMemory(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Put(ctx, "nav/active_view", "cart"))

	got, ok, err := db.Get(ctx, "nav/active_view")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cart", got)
	assert.Empty(t, db.Path())
}

// TestOpenPersistent verifies values survive close and reopen.
func TestOpenPersistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, db.Put(ctx, "nav/active_view", "dashboard"))
	require.NoError(t, db.Close())

	db2, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer db2.Close()

	got, ok, err := db2.Get(ctx, "nav/active_view")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dashboard", got)
	assert.Equal(t, dir, db2.Path())
}

// TestOpenRequiresPath verifies that persistent mode requires a path.
func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestGet_Missing(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	got, ok, err := db.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestPut_Overwrites(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Put(ctx, "k", "catalog"))
	require.NoError(t, db.Put(ctx, "k", "cart"))

	got, _, err := db.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "cart", got)
}

func TestDelete(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Put(ctx, "cookies/localhost", "[]"))
	require.NoError(t, db.Delete(ctx, "cookies/localhost"))
	require.NoError(t, db.Delete(ctx, "never-set"))

	_, ok, err := db.Get(ctx, "cookies/localhost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCancelledContext(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = db.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, db.Put(ctx, "k", "v"), context.Canceled)
	assert.ErrorIs(t, db.Delete(ctx, "k"), context.Canceled)
}
