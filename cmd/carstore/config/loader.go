// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the file is read.
const (
	EnvConfig  = "CARSTORE_CONFIG"
	EnvBaseURL = "CARSTORE_BASE_URL"
	EnvTimeout = "CARSTORE_TIMEOUT"
)

// notice receives the first-run message.
var notice io.Writer = os.Stderr

// DefaultPath returns ~/.carstore/carstore.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".carstore", "carstore.yaml"), nil
}

// ResolvePath returns path, or CARSTORE_CONFIG, or DefaultPath, whichever
// is set first, as an absolute path.
func ResolvePath(path string) (string, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return "", err
		}
		path = p
	}
	return filepath.Abs(path)
}

// LoadFile reads, overrides and validates the config at path, creating it
// with defaults on first run. An empty path uses CARSTORE_CONFIG, then
// ~/.carstore/carstore.yaml.
//
// # Description
//
// Values missing from the file keep their defaults. Environment overrides
// are applied before validation.
//
// # Outputs
//
//   - CarstoreConfig: The effective configuration.
//   - error: Non-nil on read, parse, override or validation failure.
func LoadFile(path string) (CarstoreConfig, error) {
	path, err := ResolvePath(path)
	if err != nil {
		return CarstoreConfig{}, err
	}

	// create it if it doesn't exist
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(notice, " First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return CarstoreConfig{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return CarstoreConfig{}, fmt.Errorf("failed to read the config file %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CarstoreConfig{}, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return CarstoreConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return CarstoreConfig{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from the environment. CARSTORE_TIMEOUT accepts a
// Go duration ("15s") or a number of seconds.
func ApplyEnv(cfg *CarstoreConfig, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvBaseURL)); v != "" {
		cfg.API.BaseURL = v
	}
	if v := strings.TrimSpace(getenv(EnvTimeout)); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.API.Timeout = d
	}
	return nil
}

func parseTimeout(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	var secs float64
	if _, err := fmt.Sscanf(v, "%g", &secs); err != nil || secs < 0 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
