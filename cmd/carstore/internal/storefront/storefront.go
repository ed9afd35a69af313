// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storefront owns the client-side state of one storefront session
// and wires the controllers together.
//
// # Description
//
// Context replaces process-wide globals: it holds the catalog arena, the
// LED board, the last-known session id and the navigation controller, and
// it registers the view refresh hooks:
//
//   - catalog: load the catalog once
//   - cart: ensure the catalog is loaded, then read and price the cart
//   - dashboard: poll the three services
//
// Renderers observe state through the Renderer interface and never reach
// into the controllers.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/api"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/cart"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/catalog"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/checkout"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/dashboard"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/led"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/nav"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/observability"
	"github.com/jinterlante1206/carstore/pkg/logging"
)

// =============================================================================
// Renderer
// =============================================================================

// Renderer receives state changes. Methods may be called from any
// goroutine and must not block.
type Renderer interface {
	CatalogLoaded(cars []catalog.Car, err error)
	CartChanged(view cart.View, err error)
	ItemCountChanged(n int)
	ServiceChanged(state led.ServiceState)
	OrderPlaced(order checkout.Order)
	Warn(message string)
}

// NopRenderer ignores every change.
type NopRenderer struct{}

func (NopRenderer) CatalogLoaded([]catalog.Car, error) {}
func (NopRenderer) CartChanged(cart.View, error) {}
func (NopRenderer) ItemCountChanged(int) {}
func (NopRenderer) ServiceChanged(led.ServiceState) {}
func (NopRenderer) OrderPlaced(checkout.Order) {}
func (NopRenderer) Warn(string) {}

// notifier forwards checkout outcomes to the renderer.
type notifier struct{ r Renderer }

func (n notifier) OrderPlaced(o checkout.Order) { n.r.OrderPlaced(o) }
func (n notifier) ItemCountChanged(count int) { n.r.ItemCountChanged(count) }
func (n notifier) Warn(msg string) { n.r.Warn(msg) }

// =============================================================================
// Context
// =============================================================================

// Options configures a Context.
type Options struct {
	// Client is the storefront transport. Required.
	Client *api.Client

	// Store persists the active view. Nil keeps it in memory.
	Store nav.Store

	// Services overrides the dashboard endpoint configuration.
	Services []dashboard.ServiceConfig

	// DispatchTimeout bounds control actions. Zero uses the default.
	DispatchTimeout time.Duration

	Renderer Renderer
	Metrics  *observability.Metrics
	Logger   *logging.Logger
}

// Context is the orchestration root for one storefront session.
//
// # Thread Safety
//
// Safe for concurrent use. The session id is last-write-wins.
type Context struct {
	Client    *api.Client
	Catalog   *catalog.Catalog
	Board     *led.Board
	Nav       *nav.Controller
	Carts     *cart.Synchronizer
	Checkout  *checkout.Orchestrator
	Dashboard *dashboard.Controller

	renderer Renderer
	logger   *logging.Logger

	mu        sync.RWMutex
	sessionID string
}

// New builds a Context and registers the view refresh hooks. The active
// view is Catalog until Start or Navigate is called.
//
// # Inputs
//
//   - root: Parent of every view context. Cancelling it stops all work.
//   - opts: Collaborators; Client is required.
//
// # Outputs
//
//   - *Context: Ready to use. Call Close when done.
//   - error: Non-nil if opts.Client is nil.
func New(root context.Context, opts Options) (*Context, error) {
	if opts.Client == nil {
		return nil, errors.New("storefront: client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = NopRenderer{}
	}

	c := &Context{
		Client:   opts.Client,
		Catalog:  catalog.New(),
		Board:    led.NewBoard(),
		renderer: renderer,
		logger:   logger,
	}
	c.Board.OnChange(renderer.ServiceChanged)
	c.Nav = nav.New(root, opts.Store, logger)
	c.Carts = cart.New(opts.Client, c, logger)
	c.Checkout = checkout.New(opts.Client, c.Carts,
		checkout.WithNotifier(notifier{renderer}),
		checkout.WithMetrics(opts.Metrics),
		checkout.WithLogger(logger),
	)

	dashOpts := []dashboard.Option{dashboard.WithMetrics(opts.Metrics), dashboard.WithLogger(logger)}
	if opts.DispatchTimeout > 0 {
		dashOpts = append(dashOpts, dashboard.WithDispatchTimeout(opts.DispatchTimeout))
	}
	c.Dashboard = dashboard.New(opts.Client, c.Board, opts.Services, dashOpts...)

	c.Nav.OnActivate(nav.Catalog, c.refreshCatalog)
	c.Nav.OnActivate(nav.Cart, c.refreshCart)
	c.Nav.OnActivate(nav.Dashboard, c.Dashboard.PollAll)
	return c, nil
}

// Close cancels in-flight view work.
func (c *Context) Close() {
	c.Nav.Close()
}

// SessionID returns the last session id seen on a cart read.
func (c *Context) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// SetSessionID records the session id from a cart read.
func (c *Context) SetSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != "" && id != c.sessionID {
		c.logger.Debug("session id changed", "session_id", id)
	}
	c.sessionID = id
}

// =============================================================================
// Navigation
// =============================================================================

// Start restores the persisted view and refreshes the cart badge, the
// way a freshly opened storefront does.
//
// # Outputs
//
//   - nav.View: The restored view.
//   - error: The first of the view refresh and count refresh errors.
func (c *Context) Start(ctx context.Context) (nav.View, error) {
	view, err := c.Nav.Restore(ctx)
	if _, cerr := c.RefreshCount(ctx); err == nil {
		err = cerr
	}
	return view, err
}

// Navigate activates view and runs its refresh hook.
func (c *Context) Navigate(ctx context.Context, view nav.View) error {
	return c.Nav.Activate(ctx, view)
}

func (c *Context) refreshCatalog(ctx context.Context) error {
	err := c.Catalog.EnsureLoaded(ctx, c.Client)
	c.renderer.CatalogLoaded(c.Catalog.All(), err)
	return err
}

func (c *Context) refreshCart(ctx context.Context) error {
	if err := c.Catalog.EnsureLoaded(ctx, c.Client); err != nil {
		// The cart still renders; its lines degrade to unknown cars.
		c.logger.Warn("catalog unavailable for cart view", "error", err)
	}
	view, err := c.Carts.Lines(ctx, c.Catalog)
	c.renderer.CartChanged(view, err)
	return err
}

// =============================================================================
// Catalog and cart
// =============================================================================

// ReloadCatalog forces a fresh catalog read.
func (c *Context) ReloadCatalog(ctx context.Context) ([]catalog.Car, error) {
	_, err := c.Catalog.Load(ctx, c.Client)
	cars := c.Catalog.All()
	c.renderer.CatalogLoaded(cars, err)
	return cars, err
}

// Cars returns the catalog, loading it on first use.
func (c *Context) Cars(ctx context.Context) ([]catalog.Car, error) {
	if err := c.Catalog.EnsureLoaded(ctx, c.Client); err != nil {
		return nil, err
	}
	return c.Catalog.All(), nil
}

// AddToCart adds quantity of carID and refreshes the badge count. When the
// cart view is active it is re-rendered too.
func (c *Context) AddToCart(ctx context.Context, carID int64, quantity int) (int, error) {
	if err := c.Carts.Add(ctx, carID, quantity); err != nil {
		return 0, err
	}
	n, err := c.RefreshCount(ctx)
	c.rerenderCart(ctx)
	return n, err
}

// ClearCart empties the cart and refreshes the badge count.
func (c *Context) ClearCart(ctx context.Context) error {
	if err := c.Carts.Clear(ctx); err != nil {
		return err
	}
	_, err := c.RefreshCount(ctx)
	c.rerenderCart(ctx)
	return err
}

// RefreshCount re-derives the badge count from a fresh cart read.
func (c *Context) RefreshCount(ctx context.Context) (int, error) {
	n, err := c.Carts.ItemCount(ctx)
	if err != nil {
		return 0, err
	}
	c.renderer.ItemCountChanged(n)
	return n, nil
}

// CartView reads and prices the cart, loading the catalog first if it is
// still empty.
func (c *Context) CartView(ctx context.Context) (cart.View, error) {
	if err := c.Catalog.EnsureLoaded(ctx, c.Client); err != nil {
		c.logger.Warn("catalog unavailable for cart view", "error", err)
	}
	return c.Carts.Lines(ctx, c.Catalog)
}

func (c *Context) rerenderCart(ctx context.Context) {
	if !c.Nav.IsActive(nav.Cart) {
		return
	}
	vctx, cancel := c.bindView(ctx)
	defer cancel()
	_ = c.refreshCart(vctx)
}

// =============================================================================
// Checkout and orders
// =============================================================================

// PlaceOrder checks out the session cart. The cart view is re-rendered
// after a successful order when it is active.
func (c *Context) PlaceOrder(ctx context.Context, name, email string) (checkout.Result, error) {
	res, err := c.Checkout.Checkout(ctx, c.SessionID(), name, email)
	if err != nil {
		return res, err
	}
	c.rerenderCart(ctx)
	return res, nil
}

// Order reads a placed order.
func (c *Context) Order(ctx context.Context, id string) (api.OrderDetail, error) {
	detail, err := c.Client.GetOrder(ctx, id)
	if err != nil {
		return api.OrderDetail{}, fmt.Errorf("order %s: %w", id, err)
	}
	return detail, nil
}

// =============================================================================
// Dashboard
// =============================================================================

// Poll refreshes one service LED. The poll is abandoned when the active
// view changes.
func (c *Context) Poll(ctx context.Context, svc led.Service) (led.ServiceState, error) {
	ctx, cancel := c.bindView(ctx)
	defer cancel()
	return c.Dashboard.Poll(ctx, svc)
}

// PollAll refreshes every service LED.
func (c *Context) PollAll(ctx context.Context) error {
	ctx, cancel := c.bindView(ctx)
	defer cancel()
	return c.Dashboard.PollAll(ctx)
}

// Dispatch runs a control action. It is abandoned when the active view
// changes.
func (c *Context) Dispatch(ctx context.Context, svc led.Service, action dashboard.Action) (led.ServiceState, error) {
	ctx, cancel := c.bindView(ctx)
	defer cancel()
	return c.Dashboard.Dispatch(ctx, svc, action)
}

// bindView derives a context from ctx that is also cancelled when the
// currently active view is deactivated.
func (c *Context) bindView(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.Nav.ViewContext(), cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

var _ cart.SessionRecorder = (*Context)(nil)
