// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"
)

func withLevel(t *testing.T, level PersonalityLevel) {
	t.Helper()
	orig := GetPersonality()
	t.Cleanup(func() { SetPersonality(orig) })
	SetPersonalityLevel(level)
}

// =============================================================================
// Icon Tests
// =============================================================================

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconPending, IconArrow} {
		if !strings.Contains(icon.Render(), string(icon)) {
			t.Errorf("Render(%q) lost the glyph", icon)
		}
	}
}

// =============================================================================
// Lamp Tests
// =============================================================================

func TestLamp_MachineMode(t *testing.T) {
	withLevel(t, PersonalityMachine)
	for _, state := range []string{"UP", "DOWN", "UNKNOWN"} {
		if got := Lamp(state); got != "["+state+"]" {
			t.Errorf("Lamp(%q) = %q", state, got)
		}
	}
}

func TestLamp_StandardMode(t *testing.T) {
	withLevel(t, PersonalityStandard)
	if !strings.Contains(Lamp("UP"), "●") || !strings.Contains(Lamp("down"), "●") {
		t.Error("up and down lamps are filled")
	}
	if !strings.Contains(Lamp("UNKNOWN"), "○") {
		t.Error("unknown lamp is hollow")
	}
}

// =============================================================================
// Printer Tests
// =============================================================================

func TestPrinters_MachineMode(t *testing.T) {
	withLevel(t, PersonalityMachine)
	tests := []struct {
		name  string
		print func(*bytes.Buffer)
		want  string
	}{
		{"success", func(b *bytes.Buffer) { Success(b, "saved") }, "OK: saved\n"},
		{"warning", func(b *bytes.Buffer) { Warning(b, "slow") }, "WARN: slow\n"},
		{"error", func(b *bytes.Buffer) { Error(b, "boom") }, "ERROR: boom\n"},
		{"info", func(b *bytes.Buffer) { Info(b, "note") }, "note\n"},
		{"title", func(b *bytes.Buffer) { Title(b, "Catalog") }, ""},
		{"muted", func(b *bytes.Buffer) { Muted(b, "quiet") }, ""},
		{"hint", func(b *bytes.Buffer) { Hint(b, "try this") }, ""},
		{"box", func(b *bytes.Buffer) { Box(b, "Order", "body") }, "Order:\nbody\n"},
		{"error box", func(b *bytes.Buffer) { ErrorBox(b, "Checkout failed", "{}") }, "ERROR Checkout failed:\n{}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.print(&buf)
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestPrinters_StandardMode(t *testing.T) {
	withLevel(t, PersonalityStandard)
	var buf bytes.Buffer

	Success(&buf, "Order #42 created!")
	Error(&buf, "checkout failed")
	Title(&buf, "Catalog")
	Box(&buf, "Order", "Volvo XC60")

	out := buf.String()
	for _, want := range []string{"✓", "Order #42 created!", "✗", "Catalog", "Volvo XC60"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHint_FullModeOnly(t *testing.T) {
	withLevel(t, PersonalityFull)
	var buf bytes.Buffer
	Hint(&buf, "carstore cart show")
	if !strings.Contains(buf.String(), "carstore cart show") {
		t.Errorf("hint not shown at full: %q", buf.String())
	}
}

// =============================================================================
// Table Tests
// =============================================================================

func TestTable_MachineMode(t *testing.T) {
	withLevel(t, PersonalityMachine)
	var buf bytes.Buffer
	Table(&buf, []string{"ID", "CAR"}, [][]string{{"1", "Volvo XC60"}, {"2", "Audi A4"}})
	if got, want := buf.String(), "1\tVolvo XC60\n2\tAudi A4\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTable_AlignsColumns(t *testing.T) {
	withLevel(t, PersonalityMinimal)
	var buf bytes.Buffer
	Table(&buf, []string{"ID", "CAR"}, [][]string{{"1", "Volvo XC60"}, {"22", "Audi"}})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "1   Volvo XC60") {
		t.Errorf("row not padded: %q", lines[1])
	}
}
