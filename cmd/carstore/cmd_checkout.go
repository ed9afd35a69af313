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
	"net/mail"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/catalog"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/checkout"
	"github.com/jinterlante1206/carstore/pkg/ux"
	"github.com/jinterlante1206/carstore/pkg/validation"
)

var errMissingCustomer = errors.New("--name and --email are required when not running interactively")

func runCheckout(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(customerName)
	email := strings.TrimSpace(customerEmail)
	if name == "" || email == "" {
		if !ux.IsInteractive() {
			return errMissingCustomer
		}
		if err := promptCustomer(cmd.Context(), &name, &email); err != nil {
			return err
		}
	}

	return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
		w := cmd.OutOrStdout()
		var res checkout.Result
		err := ux.WithSpinner(cmd.ErrOrStderr(), "Placing order...", func() error {
			var err error
			res, err = a.sc.PlaceOrder(ctx, name, email)
			return err
		})
		if err != nil {
			return fmt.Errorf("checkout failed: %w", err)
		}
		ux.Success(w, res.Order.Message())
		if res.CountRefreshed {
			ux.Muted(w, fmt.Sprintf("Cart now holds %d item(s)", res.ItemCount))
		}
		ux.Hint(w, "carstore order show "+res.Order.OrderID)
		return nil
	})
}

// promptCustomer asks for the missing customer fields.
func promptCustomer(ctx context.Context, name, email *string) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Email").
				Value(email).
				Validate(validateEmail),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("checkout cancelled")
		}
		return err
	}
	*name = strings.TrimSpace(*name)
	*email = strings.TrimSpace(*email)
	return nil
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("invalid email %q", s)
	}
	return nil
}

func runOrderShow(cmd *cobra.Command, args []string) error {
	id, err := validation.SanitizeOrderID(args[0])
	if err != nil {
		return err
	}

	return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
		w := cmd.OutOrStdout()
		detail, err := a.sc.Order(ctx, id)
		if err != nil {
			return err
		}

		// Titles are best effort; the order stands on its own.
		if _, err := a.sc.Cars(ctx); err != nil {
			a.logger.Debug("catalog unavailable for order view", "error", err)
		}

		o := detail.Order
		summary := fmt.Sprintf("Customer: %s <%s>\nTotal:    %s", o.CustomerName, o.CustomerEmail, formatPrice(o.Total))
		if o.CreatedAt != "" {
			summary += "\nPlaced:   " + o.CreatedAt
		}
		ux.Box(w, "Order #"+id, summary)

		rows := make([][]string, 0, len(detail.Items))
		for _, it := range detail.Items {
			title := fmt.Sprintf("car #%d", it.CarID)
			if car, ok := a.sc.Catalog.Lookup(it.CarID); ok {
				title = catalog.Title(car)
			}
			rows = append(rows, []string{strconv.FormatInt(it.CarID, 10), title, strconv.Itoa(it.Quantity), formatPrice(it.Price)})
		}
		if len(rows) > 0 {
			ux.Table(w, []string{"ID", "CAR", "QTY", "PRICE"}, rows)
		}
		return nil
	})
}
