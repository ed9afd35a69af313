// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/catalog"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/led"
	"github.com/jinterlante1206/carstore/cmd/carstore/internal/nav"
	"github.com/jinterlante1206/carstore/pkg/ux"
)

// =============================================================================
// Header and footer
// =============================================================================

func (m Model) renderHeader() string {
	tabs := make([]string, 0, len(nav.Views))
	for i, v := range nav.Views {
		label := fmt.Sprintf("%d %s", i+1, tabLabel(v))
		if v == nav.Cart {
			label += " " + badgeStyle.Render(fmt.Sprintf("%d", m.count))
		}
		if v == m.view {
			tabs = append(tabs, ux.Styles.ActiveTab.Render(label))
		} else {
			tabs = append(tabs, ux.Styles.InactiveTab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Bottom, append([]string{brandStyle.Render("CARSTORE")}, tabs...)...)
}

func (m Model) renderFooter() string {
	var b strings.Builder
	if m.Busy() {
		b.WriteString(m.spin.View())
		b.WriteString(" ")
	}
	if m.status != "" {
		if m.statusErr {
			b.WriteString(ux.Styles.Warning.Render(m.status))
		} else {
			b.WriteString(ux.Styles.Success.Render(m.status))
		}
	}
	b.WriteString("\n")
	b.WriteString(renderHelp(m.helpKeys()))
	return b.String()
}

func (m Model) helpKeys() [][2]string {
	if m.form.active {
		return [][2]string{{"tab", "switch field"}, {"enter", "next/submit"}, {"esc", "cancel"}}
	}
	keys := [][2]string{{"1-3", "views"}}
	switch m.view {
	case nav.Catalog:
		keys = append(keys, [2]string{"↑/↓", "select"}, [2]string{"a", "add to cart"}, [2]string{"r", "reload"})
	case nav.Cart:
		keys = append(keys, [2]string{"o", "checkout"}, [2]string{"c", "clear"})
	case nav.Dashboard:
		keys = append(keys, [2]string{"↑/↓", "select"}, [2]string{"s", "start"}, [2]string{"x", "stop"},
			[2]string{"t", "status"}, [2]string{"p", "poll"})
	}
	return append(keys, [2]string{"q", "quit"})
}

func renderHelp(keys [][2]string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = helpKeyStyle.Render(k[0]) + " " + helpDescStyle.Render(k[1])
	}
	return strings.Join(parts, "  ")
}

func tabLabel(v nav.View) string {
	switch v {
	case nav.Cart:
		return "Cart"
	case nav.Dashboard:
		return "Dashboard"
	default:
		return "Catalog"
	}
}

// =============================================================================
// Views
// =============================================================================

func (m Model) renderCatalog() string {
	if m.catalogErr != nil {
		return ux.Styles.Error.Render("Error loading cars: "+m.catalogErr.Error()) + "\n"
	}
	if len(m.cars) == 0 {
		return ux.Styles.Muted.Render("No cars available.") + "\n"
	}

	var b strings.Builder
	for i, car := range m.cars {
		cursor := "  "
		line := fmt.Sprintf("%-32s %12s", catalog.Title(car), "$"+car.Price.StringFixed(2))
		if i == m.cursor {
			cursor = cursorStyle.Render("▸ ")
			line = selectedStyle.Render(line)
		}
		b.WriteString(cursor + line + "\n")
		if i == m.cursor && car.Description != "" {
			b.WriteString("    " + ux.Styles.Muted.Render(car.Description) + "\n")
		}
	}
	return b.String()
}

func (m Model) renderCart() string {
	var b strings.Builder
	switch {
	case m.cartErr != nil:
		b.WriteString(ux.Styles.Error.Render("Error loading cart: "+m.cartErr.Error()) + "\n")
	case len(m.cart.Lines) == 0:
		b.WriteString(ux.Styles.Muted.Render("Your cart is empty.") + "\n")
	default:
		for _, line := range m.cart.Lines {
			if line.Err != nil {
				b.WriteString(fmt.Sprintf("  %-32s x%-3d %12s\n",
					fmt.Sprintf("Unknown car #%d", line.Item.CarID), line.Item.Quantity, "-"))
				continue
			}
			b.WriteString(fmt.Sprintf("  %-32s x%-3d %12s\n",
				catalog.Title(line.Car), line.Item.Quantity, "$"+line.Subtotal.StringFixed(2)))
		}
		b.WriteString(totalStyle.Render(fmt.Sprintf("  %-37s %12s", "Total", "$"+m.cart.Total.StringFixed(2))))
		b.WriteString("\n")
	}

	if m.form.active {
		b.WriteString("\n")
		b.WriteString(m.renderForm())
	}
	return b.String()
}

func (m Model) renderForm() string {
	var b strings.Builder
	b.WriteString(ux.Styles.Title.Render("Checkout") + "\n")
	b.WriteString(m.form.name.View() + "\n")
	b.WriteString(m.form.email.View() + "\n")
	if m.form.err != "" {
		b.WriteString(ux.Styles.Error.Render(m.form.err) + "\n")
	}
	return ux.Styles.Box.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func (m Model) renderDashboard() string {
	var b strings.Builder
	for i, svc := range led.Services {
		state := m.services[svc]
		cursor := "  "
		name := fmt.Sprintf("%-16s", svc)
		if i == m.svcCursor {
			cursor = cursorStyle.Render("▸ ")
			name = selectedStyle.Render(name)
		}
		b.WriteString(fmt.Sprintf("%s%s %s %s\n", cursor, ux.Lamp(state.State.String()), name, stateLabel(state.State)))
		if state.Diagnostic != "" {
			for _, line := range strings.Split(state.Diagnostic, "\n") {
				b.WriteString("      " + diagnosticStyle.Render(line) + "\n")
			}
		}
	}
	return b.String()
}

func stateLabel(s led.State) string {
	switch s {
	case led.Up:
		return ux.Styles.Success.Render(s.String())
	case led.Down:
		return ux.Styles.Error.Render(s.String())
	default:
		return ux.Styles.Muted.Render(s.String())
	}
}

// =============================================================================
// Styles
// =============================================================================

var (
	brandStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ux.ColorAccent).
			Padding(0, 2, 0, 0)

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1B1F23")).
			Background(ux.ColorAccent).
			Padding(0, 1)

	cursorStyle = lipgloss.NewStyle().
			Foreground(ux.ColorAccent)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ux.ColorChrome)

	totalStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ux.ColorAccent)

	diagnosticStyle = lipgloss.NewStyle().
			Foreground(ux.ColorGraphite)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(ux.ColorAccent).
			Bold(true)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(ux.ColorGraphite)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(ux.ColorAccent)
)
