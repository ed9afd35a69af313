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

	"github.com/spf13/cobra"

	"github.com/jinterlante1206/carstore/cmd/carstore/config"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/console"
	"github.com/jinterlante1206/carstore/pkg/ux"
)

var errNotInteractive = errors.New("the console needs an interactive terminal; use the catalog, cart and dashboard commands instead")

func runConsole(cmd *cobra.Command, args []string) error {
	if !ux.IsInteractive() {
		return errNotInteractive
	}

	events := console.NewEvents()
	defer events.Close()

	// stderr belongs to the console; logs go to --log-dir only.
	return withApp(cmd, appOptions{renderer: events, quietLog: true}, func(ctx context.Context, a *app) error {
		a.logger.Info("console started", "base_url", a.client.BaseURL())
		if w := watchConfig(a, events); w != nil {
			go w.Run(ctx)
			defer w.Close()
		}
		return console.Run(ctx, a.sc, events, a.timeouts.Refresh)
	})
}

// watchConfig hot-reloads the dashboard endpoints and refresh interval.
// The base URL and timeouts are bound to the client and need a restart.
// A watcher that cannot start is logged and skipped.
func watchConfig(a *app, events *console.Events) *config.Watcher {
	w, err := config.NewWatcher(configPath, config.DefaultReloadDebounce, func(cfg config.CarstoreConfig) {
		a.sc.Dashboard.SetServices(cfg.DashboardServices())
		events.ConfigReloaded(cfg.Timeouts().Refresh)
	}, a.logger)
	if err != nil {
		a.logger.Warn("config reload disabled", "error", err)
		return nil
	}
	return w
}
