// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package nav tracks which of the three mutually exclusive views is active
// and persists the choice so the next start resumes the same view.
//
// # Description
//
// Exactly one View is active at any time. Activating a view:
//
//  1. cancels the context handed to the previously active view, which
//     abandons its in-flight requests (dashboard polls, cart reads)
//  2. records the new view and persists its identifier under StorageKey
//  3. runs the view's refresh hook synchronously with a fresh view context
//
// Refreshing is part of activation, not deferred: switching to the cart
// re-reads the server cart and switching to the dashboard re-polls all
// three services before Activate returns.
//
// # Thread Safety
//
// Controller is safe for concurrent use. Hooks run without the controller
// lock held, so a hook may call Active or ViewContext.
package nav

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jinterlante1206/carstore/pkg/logging"
)

// StorageKey is the fixed key under which the active view is persisted.
const StorageKey = "nav/active_view"

// View is one of the three top-level screens.
type View string

const (
	Catalog   View = "catalog"
	Cart      View = "cart"
	Dashboard View = "dashboard"
)

// Views lists every view in display order.
var Views = []View{Catalog, Cart, Dashboard}

// ParseView maps s onto a View. Unknown or empty input yields Catalog.
func ParseView(s string) View {
	switch View(strings.ToLower(strings.TrimSpace(s))) {
	case Cart:
		return Cart
	case Dashboard:
		return Dashboard
	default:
		return Catalog
	}
}

// Store is durable client-local key/value storage.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

// RefreshFunc reloads a view's data. ctx is cancelled when the view is
// deactivated.
type RefreshFunc func(ctx context.Context) error

// Controller owns the active view.
type Controller struct {
	root   context.Context
	store  Store
	logger *logging.Logger

	mu      sync.Mutex
	active  View
	gen     uint64
	viewCtx context.Context
	cancel  context.CancelFunc
	hooks   map[View]RefreshFunc

	// persistMu orders writes to store; only the latest activation is written.
	persistMu sync.Mutex
}

// New creates a Controller with Catalog active.
//
// # Inputs
//
//   - root: Parent of every view context; cancelling it cancels the active
//     view's work. Usually the command's context.
//   - store: Durable storage for the active view. May be nil, in which
//     case nothing is persisted.
//   - logger: May be nil.
func New(root context.Context, store Store, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Nop()
	}
	viewCtx, cancel := context.WithCancel(root)
	return &Controller{
		root:    root,
		store:   store,
		logger:  logger.With("component", "nav"),
		active:  Catalog,
		viewCtx: viewCtx,
		cancel:  cancel,
		hooks:   make(map[View]RefreshFunc),
	}
}

// OnActivate registers the refresh hook for view, replacing any previous
// hook. Catalog usually has none: the catalog is loaded once per process.
func (c *Controller) OnActivate(view View, fn RefreshFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks[view] = fn
}

// Activate makes view the only active view.
//
// # Description
//
// Cancels the previous view's context, records and persists view, then
// runs view's refresh hook with the new view context. A view outside
// Views is treated as Catalog. Persistence failures are logged and do not
// fail the switch: the in-memory state is authoritative for this process.
//
// # Outputs
//
//   - error: The refresh hook's error, if any. The view is active either way.
//
// # Thread Safety
//
// Overlapping calls are ordered by the moment they take the controller
// lock. The store always ends up holding the view of the last activation:
// an activation that was overtaken before persisting skips its write.
func (c *Controller) Activate(ctx context.Context, view View) error {
	view = ParseView(string(view))

	c.mu.Lock()
	c.cancel()
	viewCtx, cancel := context.WithCancel(c.root)
	c.active = view
	c.gen++
	gen := c.gen
	c.viewCtx = viewCtx
	c.cancel = cancel
	hook := c.hooks[view]
	c.mu.Unlock()

	c.logger.Debug("view activated", "view", string(view))

	c.persist(ctx, gen, view)

	if hook == nil {
		return nil
	}
	if err := hook(viewCtx); err != nil {
		return fmt.Errorf("refresh %s view: %w", view, err)
	}
	return nil
}

// persist writes view unless a later activation has already happened.
func (c *Controller) persist(ctx context.Context, gen uint64, view View) {
	if c.store == nil {
		return
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	stale := gen != c.gen
	c.mu.Unlock()
	if stale {
		c.logger.Debug("skip persisting superseded view", "view", string(view))
		return
	}
	if err := c.store.Put(ctx, StorageKey, string(view)); err != nil {
		c.logger.Warn("persist active view failed", "view", string(view), "error", err)
	}
}

// Restore activates the persisted view.
//
// # Description
//
// Reads StorageKey; an absent, unreadable or unrecognised value restores
// Catalog. The restored view is activated through Activate, so its refresh
// hook runs.
//
// # Outputs
//
//   - View: The view that is now active.
//   - error: The refresh hook's error, if any.
func (c *Controller) Restore(ctx context.Context) (View, error) {
	view := Catalog
	if c.store != nil {
		saved, ok, err := c.store.Get(ctx, StorageKey)
		switch {
		case err != nil:
			c.logger.Warn("read persisted view failed", "error", err)
		case ok:
			view = ParseView(saved)
		}
	}
	return view, c.Activate(ctx, view)
}

// Active returns the active view.
func (c *Controller) Active() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// IsActive reports whether view is the active view.
func (c *Controller) IsActive(view View) bool {
	return c.Active() == view
}

// Flags returns the active flag of every view. Exactly one entry is true.
func (c *Controller) Flags() map[View]bool {
	active := c.Active()
	flags := make(map[View]bool, len(Views))
	for _, v := range Views {
		flags[v] = v == active
	}
	return flags
}

// ViewContext returns the context of the active view. It is cancelled as
// soon as another view is activated.
func (c *Controller) ViewContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewCtx
}

// Close cancels the active view's context.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel()
}

// MemoryStore is an in-process Store used by tests and by commands that
// run without a state directory.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
