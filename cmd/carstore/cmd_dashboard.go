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
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/dashboard"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/led"
	"github.com/jinterlante1206/carstore/pkg/ux"
)

// dashboardActionCmds builds the start, stop and status subcommands.
func dashboardActionCmds() []*cobra.Command {
	actions := []struct {
		action dashboard.Action
		short  string
	}{
		{dashboard.ActionStart, "Start a backing service"},
		{dashboard.ActionStop, "Stop a backing service"},
		{dashboard.ActionStatus, "Ask a backing service for its status"},
	}
	cmds := make([]*cobra.Command, 0, len(actions))
	for _, a := range actions {
		action := a.action
		cmds = append(cmds, &cobra.Command{
			Use:       string(action) + " [service]",
			Short:     a.short,
			Args:      cobra.ExactArgs(1),
			ValidArgs: serviceNames(),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDashboardAction(cmd, action, args[0])
			},
		})
	}
	return cmds
}

func serviceNames() []string {
	names := make([]string, len(led.Services))
	for i, s := range led.Services {
		names[i] = string(s)
	}
	return names
}

func parseService(s string) (led.Service, error) {
	svc, ok := led.ParseService(strings.ToLower(strings.TrimSpace(s)))
	if !ok {
		return "", fmt.Errorf("%w: %q (want one of %s)", dashboard.ErrUnknownService, s, strings.Join(serviceNames(), ", "))
	}
	return svc, nil
}

func runDashboardPoll(cmd *cobra.Command, args []string) error {
	var target led.Service
	if len(args) == 1 {
		svc, err := parseService(args[0])
		if err != nil {
			return err
		}
		target = svc
	}

	return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
		w := cmd.OutOrStdout()
		if target != "" {
			state, err := a.sc.Poll(ctx, target)
			if err != nil {
				return err
			}
			printServiceState(w, state)
			return nil
		}

		if err := a.sc.PollAll(ctx); err != nil {
			return err
		}
		ux.Title(w, "Services")
		for _, state := range a.sc.Board.Snapshot() {
			printServiceState(w, state)
		}
		return nil
	})
}

func runDashboardAction(cmd *cobra.Command, action dashboard.Action, name string) error {
	svc, err := parseService(name)
	if err != nil {
		return err
	}

	return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
		var state led.ServiceState
		err := ux.WithElapsedSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Running %s on %s...", action, svc), time.Second, func() error {
			var err error
			state, err = a.sc.Dispatch(ctx, svc, action)
			return err
		})
		if err != nil {
			return err
		}
		printServiceState(cmd.OutOrStdout(), state)
		return nil
	})
}

// printServiceState prints one LED slot: the lamp line, then the
// diagnostic indented beneath it.
func printServiceState(w io.Writer, s led.ServiceState) {
	fmt.Fprintf(w, "%s %-16s %s\n", ux.Lamp(s.State.String()), s.Service, s.State)
	if s.Diagnostic == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(s.Diagnostic, "\n"), "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
}
