// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package console provides the interactive three-view storefront console.
//
// # Description
//
// The console renders the catalog, cart and service dashboard views of a
// storefront.Context with bubbletea. State flows one way: the Context
// reports changes through an Events renderer, and the model redraws from
// those messages. Key presses start storefront operations as commands.
//
// While the dashboard is active its LEDs are re-polled on a fixed
// interval. Leaving the dashboard stops the refresh.
//
// # Thread Safety
//
// The model is single-threaded within the bubbletea event loop. Storefront
// operations run in commands on other goroutines and report back through
// messages.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/cart"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/catalog"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/checkout"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/dashboard"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/led"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/nav"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/storefront"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/util"
)

// =============================================================================
// Internal messages
// =============================================================================

type startDoneMsg struct {
	view nav.View
	err  error
}

type navDoneMsg struct {
	view nav.View
	err  error
}

type opDoneMsg struct {
	text string
	err  error
}

type dispatchDoneMsg struct {
	service led.Service
	action  dashboard.Action
	state   led.ServiceState
	err     error
}

type checkoutDoneMsg struct {
	result checkout.Result
	err    error
}

type tickMsg struct{ gen int }

// refreshDoneMsg ends an auto-refresh poll. It is not counted in pending.
type refreshDoneMsg struct{ err error }

// =============================================================================
// Checkout form
// =============================================================================

type checkoutForm struct {
	active bool
	focus  int
	name   textinput.Model
	email  textinput.Model
	err    string
}

func newCheckoutForm() checkoutForm {
	name := textinput.New()
	name.Placeholder = "Jane Doe"
	name.Prompt = "Name:  "
	name.CharLimit = 120

	email := textinput.New()
	email.Placeholder = "jane@example.com"
	email.Prompt = "Email: "
	email.CharLimit = 254

	return checkoutForm{name: name, email: email}
}

func (f *checkoutForm) open() tea.Cmd {
	f.active = true
	f.err = ""
	f.focus = 0
	f.email.Blur()
	return f.name.Focus()
}

func (f *checkoutForm) close() {
	f.active = false
	f.name.Blur()
	f.email.Blur()
}

func (f *checkoutForm) toggle() tea.Cmd {
	if f.focus == 0 {
		f.focus = 1
		f.name.Blur()
		return f.email.Focus()
	}
	f.focus = 0
	f.email.Blur()
	return f.name.Focus()
}

// =============================================================================
// Model
// =============================================================================

// Model is the bubbletea model of the console.
type Model struct {
	ctx     context.Context
	sc      *storefront.Context
	events  *Events
	refresh time.Duration

	view       nav.View
	cars       []catalog.Car
	catalogErr error
	cursor     int
	cart       cart.View
	cartErr    error
	count      int
	services   map[led.Service]led.ServiceState
	svcCursor  int

	form    checkoutForm
	spin    spinner.Model
	pending int
	tickGen int

	// navBusy is set while a Navigate (or the startup restore) runs. Keys
	// pressed meanwhile only move view; the latest view is activated when
	// the running one finishes.
	navBusy   bool
	navigated bool

	status    string
	statusErr bool

	width    int
	quitting bool
}

// New creates the console model.
//
// # Inputs
//
//   - ctx: Bounds every storefront operation started by the console.
//   - sc: The storefront context. Its renderer must be events.
//   - events: Event queue feeding the model.
//   - refresh: Dashboard auto-refresh interval. Raised to util.MinRefreshInterval.
//
// # Outputs
//
//   - Model: Ready for tea.NewProgram.
func New(ctx context.Context, sc *storefront.Context, events *Events, refresh time.Duration) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = spinnerStyle

	services := make(map[led.Service]led.ServiceState, len(led.Services))
	for _, s := range sc.Board.Snapshot() {
		services[s.Service] = s
	}

	return Model{
		ctx:      ctx,
		sc:       sc,
		events:   events,
		refresh:  util.EnforceMinTimeout(refresh, util.MinRefreshInterval),
		view:     nav.Catalog,
		services: services,
		form:     newCheckoutForm(),
		spin:     spin,
		pending:  1,
		navBusy:  true,
	}
}

// Init implements tea.Model. It restores the last view.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.start(), m.events.Wait(), m.spin.Tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		if m.form.active {
			return m.handleFormKey(msg)
		}
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case CatalogMsg:
		m.cars, m.catalogErr = msg.Cars, msg.Err
		if m.cursor >= len(m.cars) {
			m.cursor = max(len(m.cars)-1, 0)
		}
		return m, m.events.Wait()

	case CartMsg:
		m.cart, m.cartErr = msg.View, msg.Err
		return m, m.events.Wait()

	case CountMsg:
		m.count = msg.N
		return m, m.events.Wait()

	case ServiceMsg:
		m.services[msg.State.Service] = msg.State
		return m, m.events.Wait()

	case OrderMsg:
		m.flash(msg.Order.Message(), false)
		return m, m.events.Wait()

	case WarnMsg:
		m.flash(msg.Text, true)
		return m, m.events.Wait()

	case ReloadMsg:
		m.refresh = util.EnforceMinTimeout(msg.Refresh, util.MinRefreshInterval)
		m.flash("Configuration reloaded", false)
		if m.navBusy || m.view != nav.Dashboard {
			return m, m.events.Wait()
		}
		// restart the tick at the new interval and poll the new endpoints
		cmd := m.startRefresh()
		return m, tea.Batch(cmd, m.refreshAll(), m.events.Wait())

	case startDoneMsg:
		m.done()
		m.navBusy = false
		if !m.navigated {
			m.view = msg.view
		}
		if msg.view != m.view {
			cmd := m.runNavigate(m.view)
			return m, cmd
		}
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.flash(msg.err.Error(), true)
		}
		cmd := m.startRefresh()
		return m, cmd

	case navDoneMsg:
		m.done()
		m.navBusy = false
		if msg.view != m.view {
			cmd := m.runNavigate(m.view)
			return m, cmd
		}
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.flash(fmt.Sprintf("%s: %v", msg.view, msg.err), true)
		}
		cmd := m.startRefresh()
		return m, cmd

	case opDoneMsg:
		m.done()
		switch {
		case msg.err == nil:
			if msg.text != "" {
				m.flash(msg.text, false)
			}
		case errors.Is(msg.err, context.Canceled):
		default:
			m.flash(msg.err.Error(), true)
		}
		return m, nil

	case dispatchDoneMsg:
		m.done()
		m.handleDispatchDone(msg)
		return m, nil

	case checkoutDoneMsg:
		m.done()
		if msg.err != nil {
			m.form.err = "Checkout failed: " + msg.err.Error()
			return m, nil
		}
		m.form.close()
		m.form.name.SetValue("")
		m.form.email.SetValue("")
		text := msg.result.Order.Message()
		if len(msg.result.Warnings) > 0 {
			text += " (" + strings.Join(msg.result.Warnings, "; ") + ")"
		}
		m.flash(text, len(msg.result.Warnings) > 0)
		return m, nil

	case tickMsg:
		if msg.gen != m.tickGen || m.view != nav.Dashboard {
			return m, nil
		}
		return m, tea.Batch(m.refreshAll(), m.tick())

	case refreshDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.flash(msg.err.Error(), true)
		}
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	switch m.view {
	case nav.Cart:
		b.WriteString(m.renderCart())
	case nav.Dashboard:
		b.WriteString(m.renderDashboard())
	default:
		b.WriteString(m.renderCatalog())
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// Busy reports whether a storefront operation is outstanding.
func (m Model) Busy() bool {
	return m.pending > 0
}

// =============================================================================
// Key handling
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "1":
		return m.navigate(nav.Catalog)
	case "2":
		return m.navigate(nav.Cart)
	case "3":
		return m.navigate(nav.Dashboard)
	case "tab":
		return m.navigate(nextView(m.view))
	}

	switch m.view {
	case nav.Catalog:
		return m.handleCatalogKey(msg)
	case nav.Cart:
		return m.handleCartKey(msg)
	case nav.Dashboard:
		return m.handleDashboardKey(msg)
	}
	return m, nil
}

func (m Model) handleCatalogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.cars)-1 {
			m.cursor++
		}
	case "a", "enter":
		if len(m.cars) == 0 {
			return m, nil
		}
		car := m.cars[m.cursor]
		m.pending++
		sc, ctx := m.sc, m.ctx
		return m, func() tea.Msg {
			n, err := sc.AddToCart(ctx, car.ID, 1)
			if err != nil {
				return opDoneMsg{err: fmt.Errorf("add %s: %w", catalog.Title(car), err)}
			}
			return opDoneMsg{text: fmt.Sprintf("Added %s (cart: %d)", catalog.Title(car), n)}
		}
	case "r":
		m.pending++
		sc, ctx := m.sc, m.ctx
		return m, func() tea.Msg {
			cars, err := sc.ReloadCatalog(ctx)
			if err != nil {
				return opDoneMsg{err: fmt.Errorf("reload catalog: %w", err)}
			}
			return opDoneMsg{text: fmt.Sprintf("Catalog reloaded: %d cars", len(cars))}
		}
	}
	return m, nil
}

func (m Model) handleCartKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "c":
		m.pending++
		sc, ctx := m.sc, m.ctx
		return m, func() tea.Msg {
			if err := sc.ClearCart(ctx); err != nil {
				return opDoneMsg{err: fmt.Errorf("clear cart: %w", err)}
			}
			return opDoneMsg{text: "Cart cleared"}
		}
	case "o":
		return m, m.form.open()
	}
	return m, nil
}

func (m Model) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Until the dashboard is active, its view context belongs to the
	// previous view and would cancel any action started now.
	if m.navBusy {
		switch msg.String() {
		case "s", "x", "t", "p":
			return m, nil
		}
	}
	switch msg.String() {
	case "up", "k":
		if m.svcCursor > 0 {
			m.svcCursor--
		}
	case "down", "j":
		if m.svcCursor < len(led.Services)-1 {
			m.svcCursor++
		}
	case "s":
		return m.dispatch(dashboard.ActionStart)
	case "x":
		return m.dispatch(dashboard.ActionStop)
	case "t":
		return m.dispatch(dashboard.ActionStatus)
	case "p":
		m.pending++
		return m, m.pollAll()
	}
	return m, nil
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.form.close()
		return m, nil
	case "tab", "shift+tab", "up", "down":
		return m, m.form.toggle()
	case "enter":
		if m.form.focus == 0 {
			return m, m.form.toggle()
		}
		if m.Busy() {
			return m, nil
		}
		name := strings.TrimSpace(m.form.name.Value())
		email := strings.TrimSpace(m.form.email.Value())
		m.form.err = ""
		m.pending++
		sc, ctx := m.sc, m.ctx
		return m, func() tea.Msg {
			res, err := sc.PlaceOrder(ctx, name, email)
			return checkoutDoneMsg{result: res, err: err}
		}
	}

	var cmd tea.Cmd
	if m.form.focus == 0 {
		m.form.name, cmd = m.form.name.Update(msg)
	} else {
		m.form.email, cmd = m.form.email.Update(msg)
	}
	return m, cmd
}

// =============================================================================
// Commands
// =============================================================================

func (m Model) start() tea.Cmd {
	sc, ctx := m.sc, m.ctx
	return func() tea.Msg {
		view, err := sc.Start(ctx)
		return startDoneMsg{view: view, err: err}
	}
}

func (m Model) navigate(view nav.View) (tea.Model, tea.Cmd) {
	if view != nav.Dashboard {
		m.tickGen++
	}
	m.view = view
	m.status = ""
	m.navigated = true
	if m.navBusy {
		return m, nil
	}
	cmd := m.runNavigate(view)
	return m, cmd
}

// runNavigate activates view in the controller. Only one runs at a time,
// so activations reach the controller in key-press order.
func (m *Model) runNavigate(view nav.View) tea.Cmd {
	m.navBusy = true
	m.pending++
	sc, ctx := m.sc, m.ctx
	return func() tea.Msg {
		return navDoneMsg{view: view, err: sc.Navigate(ctx, view)}
	}
}

func (m Model) dispatch(action dashboard.Action) (tea.Model, tea.Cmd) {
	svc := led.Services[m.svcCursor]
	m.pending++
	sc, ctx := m.sc, m.ctx
	return m, func() tea.Msg {
		state, err := sc.Dispatch(ctx, svc, action)
		return dispatchDoneMsg{service: svc, action: action, state: state, err: err}
	}
}

func (m Model) pollAll() tea.Cmd {
	sc, ctx := m.sc, m.ctx
	return func() tea.Msg {
		return opDoneMsg{err: sc.PollAll(ctx)}
	}
}

func (m Model) refreshAll() tea.Cmd {
	sc, ctx := m.sc, m.ctx
	return func() tea.Msg {
		return refreshDoneMsg{err: sc.PollAll(ctx)}
	}
}

func (m Model) tick() tea.Cmd {
	gen := m.tickGen
	return tea.Tick(m.refresh, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

// startRefresh begins a new refresh generation when the dashboard is
// active. Older ticks are discarded on arrival.
func (m *Model) startRefresh() tea.Cmd {
	if m.view != nav.Dashboard {
		return nil
	}
	m.tickGen++
	return m.tick()
}

func (m *Model) handleDispatchDone(msg dispatchDoneMsg) {
	switch {
	case errors.Is(msg.err, dashboard.ErrDispatchInFlight):
		m.flash(fmt.Sprintf("%s: an action is already running", msg.service), true)
	case errors.Is(msg.err, context.Canceled):
		m.flash(fmt.Sprintf("%s %s abandoned", msg.action, msg.service), true)
	case msg.err != nil:
		m.flash(fmt.Sprintf("%s %s: %v", msg.action, msg.service, msg.err), true)
	default:
		m.flash(fmt.Sprintf("%s %s: %s", msg.action, msg.service, msg.state.State), msg.state.State == led.Down && msg.action != dashboard.ActionStop)
	}
}

func (m *Model) flash(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *Model) done() {
	if m.pending > 0 {
		m.pending--
	}
}

func nextView(v nav.View) nav.View {
	for i, view := range nav.Views {
		if view == v {
			return nav.Views[(i+1)%len(nav.Views)]
		}
	}
	return nav.Catalog
}

// =============================================================================
// Run
// =============================================================================

// Run drives the console until the user quits or ctx is cancelled.
//
// # Inputs
//
//   - ctx: Cancelling it stops the program.
//   - sc: Storefront context built with events as its renderer.
//   - events: Closed when Run returns.
//   - refresh: Dashboard auto-refresh interval.
//
// # Outputs
//
//   - error: Non-nil if the terminal program fails.
func Run(ctx context.Context, sc *storefront.Context, events *Events, refresh time.Duration) error {
	defer events.Close()

	p := tea.NewProgram(New(ctx, sc, events, refresh), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("console: %w", err)
	}
	return nil
}
