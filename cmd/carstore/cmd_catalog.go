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

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/catalog"
	"github.com/jinterlante1206/carstore/pkg/ux"
)

func runCatalog(cmd *cobra.Command, args []string) error {
	return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
		w := cmd.OutOrStdout()
		cars, err := a.sc.Cars(ctx)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		if len(cars) == 0 {
			ux.Info(w, "No cars available.")
			return nil
		}

		ux.Title(w, "Catalog")
		header := []string{"ID", "CAR", "PRICE"}
		if showImages {
			header = append(header, "IMAGE")
		}
		rows := make([][]string, 0, len(cars))
		for _, car := range cars {
			row := []string{strconv.FormatInt(car.ID, 10), catalog.Title(car), formatPrice(car.Price)}
			if showImages {
				row = append(row, catalog.ImageURL(car))
			}
			rows = append(rows, row)
		}
		ux.Table(w, header, rows)
		ux.Hint(w, "carstore cart add ID to add a car to your cart")
		return nil
	})
}

func formatPrice(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
