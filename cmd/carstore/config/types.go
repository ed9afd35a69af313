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
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/api"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/dashboard"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/led"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/util"
	"github.com/jinterlante1206/carstore/pkg/logging"
	"github.com/jinterlante1206/carstore/pkg/validation"
)

// CurrentConfigVersion is written to new config files.
const CurrentConfigVersion = "1"

type CarstoreConfig struct {
	Meta MetaConfig `yaml:"meta"`

	// API: where the storefront lives and how hard to hit it
	API APIConfig `yaml:"api"`

	// Services: backend names and health sentinels for the dashboard
	Services ServicesConfig `yaml:"services"`

	Dashboard DashboardConfig `yaml:"dashboard"`

	// State: where the active view and session cookie are kept
	State StateConfig `yaml:"state"`

	Observability ObservabilityConfig `yaml:"observability"`
}

type MetaConfig struct {
	Version string `yaml:"version"`
}

type APIConfig struct {
	BaseURL           string        `yaml:"base_url" validate:"required,url"` // e.g. http://localhost:8000/api
	Timeout           time.Duration `yaml:"timeout" validate:"gte=0"`
	DispatchTimeout   time.Duration `yaml:"dispatch_timeout" validate:"gte=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int           `yaml:"burst" validate:"gte=0"`
}

// ServiceEndpoint names one backend in the storefront URL space.
type ServiceEndpoint struct {
	PathName      string `yaml:"path_name" validate:"required,pathsegment"`    // GET /status/{path_name}
	ControlName   string `yaml:"control_name" validate:"required,pathsegment"` // POST /service/{control_name}/{action}
	SentinelField string `yaml:"sentinel_field,omitempty"`
	SentinelValue string `yaml:"sentinel_value,omitempty"`
}

type ServicesConfig struct {
	CacheService  ServiceEndpoint `yaml:"cache_service"`
	MessageBroker ServiceEndpoint `yaml:"message_broker"`
	OrderStore    ServiceEndpoint `yaml:"order_store"`
}

type DashboardConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"gte=0"`
}

type StateConfig struct {
	// Dir holds the badger state database. Empty disables persistence.
	Dir string `yaml:"dir"`
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metrics_addr,omitempty" validate:"omitempty,hostname_port"`
	TraceFile   string `yaml:"trace_file,omitempty"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() CarstoreConfig {
	var services []ServiceEndpoint
	for _, sc := range dashboard.DefaultServices() {
		services = append(services, ServiceEndpoint{
			PathName:      sc.StatusName,
			ControlName:   sc.ControlName,
			SentinelField: sc.SentinelField,
			SentinelValue: sc.SentinelValue,
		})
	}
	return CarstoreConfig{
		Meta: MetaConfig{Version: CurrentConfigVersion},
		API: APIConfig{
			BaseURL:         api.DefaultBaseURL,
			Timeout:         util.DefaultRequestTimeout,
			DispatchTimeout: util.DefaultDispatchTimeout,
		},
		Services: ServicesConfig{
			CacheService:  services[0],
			MessageBroker: services[1],
			OrderStore:    services[2],
		},
		Dashboard: DashboardConfig{RefreshInterval: util.DefaultRefreshInterval},
		State:     StateConfig{Dir: "~/.carstore/state"},
	}
}

// =============================================================================
// Derived settings
// =============================================================================

// Timeouts returns the validated per-call timeouts.
func (c CarstoreConfig) Timeouts() util.TimeoutConfig {
	t := util.TimeoutConfig{
		Request:  util.EnforceDefaultTimeout(c.API.Timeout, util.DefaultRequestTimeout),
		Dispatch: util.EnforceDefaultTimeout(c.API.DispatchTimeout, util.DefaultDispatchTimeout),
		Refresh:  util.EnforceDefaultTimeout(c.Dashboard.RefreshInterval, util.DefaultRefreshInterval),
	}
	return t.Validated()
}

// DashboardServices maps the services section onto dashboard endpoints.
func (c CarstoreConfig) DashboardServices() []dashboard.ServiceConfig {
	pairs := []struct {
		svc led.Service
		ep  ServiceEndpoint
	}{
		{led.CacheService, c.Services.CacheService},
		{led.MessageBroker, c.Services.MessageBroker},
		{led.OrderStore, c.Services.OrderStore},
	}
	out := make([]dashboard.ServiceConfig, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, dashboard.ServiceConfig{
			Service:       p.svc,
			StatusName:    p.ep.PathName,
			ControlName:   p.ep.ControlName,
			SentinelField: p.ep.SentinelField,
			SentinelValue: p.ep.SentinelValue,
		})
	}
	return out
}

// StateDir returns the expanded state directory, or "" when disabled.
func (c CarstoreConfig) StateDir() string {
	if c.State.Dir == "" {
		return ""
	}
	return logging.ExpandPath(c.State.Dir)
}

// =============================================================================
// Validation
// =============================================================================

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("pathsegment", validatePathSegment)
}

// validatePathSegment accepts a single URL path segment.
func validatePathSegment(fl validator.FieldLevel) bool {
	return validation.ValidatePathSegment(fl.Field().String()) == nil
}

// Validate checks the configuration against its struct tags.
//
// # Outputs
//
//   - error: Non-nil naming the first failing field.
func (c CarstoreConfig) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
