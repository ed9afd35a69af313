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
	"strings"

	"github.com/spf13/cobra"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/nav"
	"github.com/jinterlante1206/carstore/pkg/ux"
)

func runNavShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
		saved, ok, err := a.db.Get(ctx, nav.StorageKey)
		if err != nil {
			return fmt.Errorf("read active view: %w", err)
		}
		view := nav.Catalog
		if ok {
			view = nav.ParseView(saved)
		}
		fmt.Fprintln(cmd.OutOrStdout(), view)
		return nil
	})
}

func runNavSet(cmd *cobra.Command, args []string) error {
	view, err := parseView(args[0])
	if err != nil {
		return err
	}

	return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
		// The view is persisted before its refresh runs, so a refresh
		// failure only warns.
		if err := a.sc.Navigate(ctx, view); err != nil {
			ux.Warning(cmd.ErrOrStderr(), err.Error())
		}
		ux.Success(cmd.OutOrStdout(), fmt.Sprintf("Active view: %s", view))
		return nil
	})
}

// parseView is stricter than nav.ParseView: a typo is an error rather than
// a silent switch to the catalog.
func parseView(s string) (nav.View, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, v := range nav.Views {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown view %q (want catalog, cart or dashboard)", s)
}
