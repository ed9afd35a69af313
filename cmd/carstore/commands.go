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
	"time"

	"github.com/spf13/cobra"

	"github.com/jinterlante1206/carstore/pkg/ux"
)

// --- Global Command Variables ---
var (
	configPath       string
	baseURL          string
	requestTimeout   time.Duration
	logLevel         string
	logDir           string
	logJSON          bool
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	showImages    bool
	quantity      int
	customerName  string
	customerEmail string

	rootCmd = &cobra.Command{
		Use:   "carstore",
		Short: "A client for the car storefront",
		Long: `carstore browses the car catalog, manages the session cart, places
orders and operates the storefront's backing services.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ux.InitPersonality(personalityLevel)
		},
	}

	// --- Catalog ---
	catalogCmd = &cobra.Command{
		Use:     "catalog",
		Short:   "List the cars for sale",
		Aliases: []string{"cars"},
		Args:    cobra.NoArgs,
		RunE:    runCatalog, // Defined in cmd_catalog.go
	}

	// --- Cart ---
	cartCmd = &cobra.Command{
		Use:   "cart",
		Short: "Inspect and change the session cart",
	}
	cartShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the priced cart",
		Args:  cobra.NoArgs,
		RunE:  runCartShow, // Defined in cmd_cart.go
	}
	cartAddCmd = &cobra.Command{
		Use:   "add [car_id]",
		Short: "Add a car to the cart",
		Args:  cobra.ExactArgs(1),
		RunE:  runCartAdd, // Defined in cmd_cart.go
	}
	cartClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE:  runCartClear, // Defined in cmd_cart.go
	}
	cartCountCmd = &cobra.Command{
		Use:   "count",
		Short: "Print the number of items in the cart",
		Args:  cobra.NoArgs,
		RunE:  runCartCount, // Defined in cmd_cart.go
	}

	// --- Checkout / Orders ---
	checkoutCmd = &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		Args:  cobra.NoArgs,
		RunE:  runCheckout, // Defined in cmd_checkout.go
	}
	orderCmd = &cobra.Command{
		Use:   "order",
		Short: "Look up placed orders",
	}
	orderShowCmd = &cobra.Command{
		Use:   "show [order_id]",
		Short: "Show a placed order",
		Args:  cobra.ExactArgs(1),
		RunE:  runOrderShow, // Defined in cmd_checkout.go
	}

	// --- Dashboard ---
	dashboardCmd = &cobra.Command{
		Use:     "dashboard",
		Short:   "Check and control the storefront's backing services",
		Aliases: []string{"dash"},
	}
	dashboardPollCmd = &cobra.Command{
		Use:   "poll [service]",
		Short: "Poll the health of one or all services",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDashboardPoll, // Defined in cmd_dashboard.go
	}

	// --- Navigation ---
	navCmd = &cobra.Command{
		Use:   "nav",
		Short: "Show or change the persisted active view",
	}
	navShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the persisted active view",
		Args:  cobra.NoArgs,
		RunE:  runNavShow, // Defined in cmd_nav.go
	}
	navSetCmd = &cobra.Command{
		Use:   "set [catalog|cart|dashboard]",
		Short: "Activate and persist a view",
		Args:  cobra.ExactArgs(1),
		RunE:  runNavSet, // Defined in cmd_nav.go
	}

	// --- Console ---
	consoleCmd = &cobra.Command{
		Use:   "console",
		Short: "Open the interactive storefront console",
		Args:  cobra.NoArgs,
		RunE:  runConsole, // Defined in cmd_console.go
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default $CARSTORE_CONFIG or ~/.carstore/carstore.yaml)")
	pf.StringVar(&baseURL, "base-url", "", "Storefront API root, e.g. http://localhost:8000/api")
	pf.DurationVar(&requestTimeout, "timeout", 0, "Per-request timeout (default from config)")
	pf.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	pf.StringVar(&logDir, "log-dir", "", "Also write JSON logs to this directory")
	pf.BoolVar(&logJSON, "log-json", false, "Write stderr logs as JSON")
	pf.StringVar(&personalityLevel, "personality", "",
		"Output style: full, standard, minimal, or machine (scripting)")

	rootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().BoolVar(&showImages, "images", false, "Include the image URL of each car")

	rootCmd.AddCommand(cartCmd)
	cartCmd.AddCommand(cartShowCmd)
	cartCmd.AddCommand(cartAddCmd)
	cartCmd.AddCommand(cartClearCmd)
	cartCmd.AddCommand(cartCountCmd)
	cartAddCmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "Number of cars to add")

	rootCmd.AddCommand(checkoutCmd)
	checkoutCmd.Flags().StringVar(&customerName, "name", "", "Customer name (prompted when omitted)")
	checkoutCmd.Flags().StringVar(&customerEmail, "email", "", "Customer email (prompted when omitted)")

	rootCmd.AddCommand(orderCmd)
	orderCmd.AddCommand(orderShowCmd)

	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.AddCommand(dashboardPollCmd)
	for _, c := range dashboardActionCmds() {
		dashboardCmd.AddCommand(c)
	}

	rootCmd.AddCommand(navCmd)
	navCmd.AddCommand(navShowCmd)
	navCmd.AddCommand(navSetCmd)

	rootCmd.AddCommand(consoleCmd)
}
