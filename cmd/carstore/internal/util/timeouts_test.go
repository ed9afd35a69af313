// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// EnforceMinTimeout Tests
// =============================================================================

func TestEnforceMinTimeout(t *testing.T) {
	tests := []struct {
		name      string
		requested time.Duration
		minimum   time.Duration
		want      time.Duration
	}{
		{"requested equals minimum", 5 * time.Second, 5 * time.Second, 5 * time.Second},
		{"requested above minimum", 10 * time.Second, 5 * time.Second, 10 * time.Second},
		{"requested below minimum", 100 * time.Millisecond, time.Second, time.Second},
		{"zero", 0, time.Second, time.Second},
		{"negative", -time.Second, time.Second, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EnforceMinTimeout(tt.requested, tt.minimum))
		})
	}
}

func TestEnforceDefaultTimeout(t *testing.T) {
	assert.Equal(t, 3*time.Second, EnforceDefaultTimeout(3*time.Second, time.Minute))
	assert.Equal(t, time.Minute, EnforceDefaultTimeout(0, time.Minute))
	assert.Equal(t, time.Minute, EnforceDefaultTimeout(-1, time.Minute))
}

// =============================================================================
// TimeoutConfig Tests
// =============================================================================

func TestNewTimeoutConfig(t *testing.T) {
	cfg := NewTimeoutConfig()
	assert.Equal(t, DefaultRequestTimeout, cfg.Request)
	assert.Equal(t, DefaultDispatchTimeout, cfg.Dispatch)
	assert.Equal(t, DefaultRefreshInterval, cfg.Refresh)
}

func TestTimeoutConfig_Validated(t *testing.T) {
	t.Run("zero values raised to minimums", func(t *testing.T) {
		cfg := TimeoutConfig{}
		got := cfg.Validated()
		assert.Equal(t, MinRequestTimeout, got.Request)
		assert.Equal(t, MinRequestTimeout, got.Dispatch)
		assert.Equal(t, MinRefreshInterval, got.Refresh)
	})

	t.Run("dispatch never shorter than request", func(t *testing.T) {
		cfg := TimeoutConfig{Request: 30 * time.Second, Dispatch: 5 * time.Second}
		got := cfg.Validated()
		assert.Equal(t, 30*time.Second, got.Dispatch)
	})

	t.Run("original not modified", func(t *testing.T) {
		cfg := TimeoutConfig{}
		_ = cfg.Validated()
		assert.Zero(t, cfg.Request)
	})
}
