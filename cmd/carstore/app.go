// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jinterlante1206/carstore/cmd/carstore/config"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/api"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/observability"
	badgerstore "github.com/jinterlante1206/carstore/cmd/carstore/internal/storage/badger"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/storefront"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/util"
	"github.com/jinterlante1206/carstore/pkg/logging"
	"github.com/jinterlante1206/carstore/pkg/ux"
)

// sessionCookie is the cookie the storefront uses to identify a cart.
const sessionCookie = "session_id"

// app holds the collaborators of one command invocation.
type app struct {
	cfg      config.CarstoreConfig
	timeouts util.TimeoutConfig
	logger   *logging.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	db       *badgerstore.DB
	jar      *api.PersistentJar
	client   *api.Client
	sc       *storefront.Context

	closers []func(context.Context) error
}

type appOptions struct {
	// renderer receives storefront events. Nil prints warnings to stderr.
	renderer storefront.Renderer

	// quietLog keeps logs off stderr, e.g. while the console owns the screen.
	quietLog bool
}

// newApp loads configuration and wires the storefront context.
//
// # Description
//
// Order matters: config, logger, metrics, tracing, state database, cookie
// jar, client, storefront. Every resource acquired before a failure is
// released before returning the error.
//
// # Inputs
//
//   - ctx: The command context. Cancelling it stops in-flight work.
//   - cmd: Supplies the output streams.
//   - opts: Renderer and logging overrides.
//
// # Outputs
//
//   - *app: Ready to use. Caller must Close it.
//   - error: Non-nil if any collaborator cannot be built.
func newApp(ctx context.Context, cmd *cobra.Command, opts appOptions) (a *app, err error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	if requestTimeout > 0 {
		cfg.API.Timeout = requestTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(logLevel),
		LogDir:  logDir,
		Service: "carstore",
		JSON:    logJSON,
		Quiet:   opts.quietLog,
		Output:  cmd.ErrOrStderr(),
	})

	a = &app{cfg: cfg, timeouts: cfg.Timeouts(), logger: logger}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	a.registry = prometheus.NewRegistry()
	a.metrics = observability.NewMetrics(a.registry)

	tp, shutdown, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "carstore",
		ServiceVersion: version,
		File:           logging.ExpandPath(cfg.Observability.TraceFile),
	})
	if err != nil {
		return a, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		bound, stop, err := observability.Serve(ctx, addr, a.registry, logger)
		if err != nil {
			return a, err
		}
		a.closers = append(a.closers, stop)
		logger.Info("serving metrics", "addr", bound.String())
	}

	if dir := cfg.StateDir(); dir != "" {
		dbCfg := badgerstore.DefaultConfig(dir)
		dbCfg.Logger = logger.Slog()
		a.db, err = badgerstore.Open(dbCfg)
	} else {
		a.db, err = badgerstore.OpenInMemory()
	}
	if err != nil {
		return a, err
	}

	a.jar, err = api.NewPersistentJar(ctx, a.db, cfg.API.BaseURL, logger)
	if err != nil {
		return a, err
	}

	a.client, err = api.NewClient(api.Config{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           a.timeouts.Request,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		UserAgent:         "carstore/" + version,
	},
		api.WithCookieJar(a.jar),
		api.WithRecorder(a.metrics),
		api.WithTracerProvider(tp),
		api.WithLogger(logger),
	)
	if err != nil {
		return a, err
	}

	renderer := opts.renderer
	if renderer == nil {
		renderer = cliRenderer{w: cmd.ErrOrStderr()}
	}
	a.sc, err = storefront.New(ctx, storefront.Options{
		Client:          a.client,
		Store:           a.db,
		Services:        cfg.DashboardServices(),
		DispatchTimeout: a.timeouts.Dispatch,
		Renderer:        renderer,
		Metrics:         a.metrics,
		Logger:          logger,
	})
	if err != nil {
		return a, err
	}
	if id, ok := a.jar.Cookie(a.client.BaseURL(), sessionCookie); ok {
		a.sc.SetSessionID(id)
	}
	return a, nil
}

// Close releases everything newApp acquired, in reverse order.
func (a *app) Close() {
	if a.sc != nil {
		a.sc.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown incomplete", "error", err)
	}
	_ = a.logger.Close()
}

// withApp runs fn with a fresh app bound to the command context.
func withApp(cmd *cobra.Command, opts appOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// cliRenderer prints storefront warnings for one-shot commands. Results
// are printed by the commands themselves.
type cliRenderer struct {
	storefront.NopRenderer
	w io.Writer
}

func (r cliRenderer) Warn(msg string) {
	ux.Warning(r.w, msg)
}
