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
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/cart"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/catalog"
	"github.com/jinterlante1206/carstore/pkg/ux"
)

func runCartShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
		view, err := a.sc.CartView(ctx)
		if err != nil {
			return err
		}
		printCart(cmd, view)
		return nil
	})
}

func printCart(cmd *cobra.Command, view cart.View) {
	w := cmd.OutOrStdout()
	if view.Empty() {
		ux.Info(w, "Your cart is empty.")
		return
	}

	ux.Title(w, "Cart")
	rows := make([][]string, 0, len(view.Lines)+1)
	for _, line := range view.Lines {
		id := strconv.FormatInt(line.Item.CarID, 10)
		qty := strconv.Itoa(line.Item.Quantity)
		if line.Err != nil {
			rows = append(rows, []string{id, fmt.Sprintf("Unknown car #%d", line.Item.CarID), qty, "-"})
			continue
		}
		rows = append(rows, []string{id, catalog.Title(line.Car), qty, formatPrice(line.Subtotal)})
	}
	rows = append(rows, []string{"", "Total", strconv.Itoa(view.Count()), formatPrice(view.Total)})
	ux.Table(w, []string{"ID", "CAR", "QTY", "SUBTOTAL"}, rows)

	if view.Unknown > 0 {
		ux.Warning(cmd.ErrOrStderr(), fmt.Sprintf("%d line(s) reference cars missing from the catalog", view.Unknown))
	}
	ux.Hint(w, "carstore checkout to place the order")
}

func runCartAdd(cmd *cobra.Command, args []string) error {
	carID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid car id %q", args[0])
	}
	if quantity < 1 {
		return fmt.Errorf("quantity must be at least 1, got %d", quantity)
	}

	return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
		n, err := a.sc.AddToCart(ctx, carID, quantity)
		if err != nil {
			return err
		}
		ux.Success(cmd.OutOrStdout(), fmt.Sprintf("Added car %d x%d (cart: %d)", carID, quantity, n))
		return nil
	})
}

func runCartClear(cmd *cobra.Command, args []string) error {
	return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
		if err := a.sc.ClearCart(ctx); err != nil {
			return err
		}
		ux.Success(cmd.OutOrStdout(), "Cart cleared")
		return nil
	})
}

func runCartCount(cmd *cobra.Command, args []string) error {
	return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
		n, err := a.sc.RefreshCount(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	})
}
