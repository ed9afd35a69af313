// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jinterlante1206/carstore/pkg/logging"
)

// TracingConfig controls span export.
type TracingConfig struct {
	// ServiceName identifies this client in exported spans.
	ServiceName string

	// ServiceVersion is the build version.
	ServiceVersion string

	// File receives one JSON span per line. Empty disables tracing.
	File string

	// Writer overrides File. Used by tests.
	Writer io.Writer
}

// InitTracing builds a TracerProvider exporting to the configured file.
//
// # Description
//
// When neither File nor Writer is set, returns a no-op provider so callers
// can wire tracing unconditionally.
//
// # Outputs
//
//   - trace.TracerProvider: The provider to hand to api.WithTracerProvider.
//   - func(context.Context) error: Flushes spans and closes the file. Must be called.
//   - error: Non-nil if the file or exporter cannot be created.
func InitTracing(cfg TracingConfig) (trace.TracerProvider, func(context.Context) error, error) {
	if cfg.File == "" && cfg.Writer == nil {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	w := cfg.Writer
	var file *os.File
	if w == nil {
		path := logging.ExpandPath(cfg.File)
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, nil, fmt.Errorf("create trace directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return nil, nil, fmt.Errorf("open trace file: %w", err)
		}
		file = f
		w = f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, nil, fmt.Errorf("create exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "carstore"
	}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", name),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	shutdown := func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if file != nil {
			err = errors.Join(err, file.Close())
		}
		return err
	}
	return tp, shutdown, nil
}

// Serve exposes gatherer on addr at /metrics until ctx is cancelled.
//
// # Description
//
// Binds synchronously so a bad address fails fast, then serves in the
// background. Returns the bound address and a function that stops the
// listener.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *logging.Logger) (net.Addr, func(context.Context) error, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics listener stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	logger.Debug("metrics listener started", "addr", ln.Addr().String())
	return ln.Addr(), srv.Shutdown, nil
}
