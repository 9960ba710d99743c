// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jeranaias/bgtask/internal/tasks"
	"github.com/jeranaias/bgtask/internal/ui/styles"
	"github.com/mattn/go-runewidth"
)

// newRenderer returns a lipgloss renderer for w that honours NO_COLOR and
// FORCE_COLOR.
func newRenderer(w io.Writer) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(GetColorProfile())
	return r
}

// stateLabel renders a state with its icon and colour.
func stateLabel(r *lipgloss.Renderer, state tasks.State) string {
	icon, color := styles.StateIcon(state)
	return r.NewStyle().Foreground(color).Bold(true).Render(icon + " " + state.String())
}

// stateCell renders a state label padded to width cells.
func stateCell(r *lipgloss.Renderer, state tasks.State, width int) string {
	icon, color := styles.StateIcon(state)
	return r.NewStyle().Foreground(color).Bold(true).Width(width).Render(icon + " " + state.String())
}

// padRight pads s with spaces to width display cells.
func padRight(s string, width int) string {
	if gap := width - runewidth.StringWidth(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

// field writes one "Label: value" line.
func field(w io.Writer, r *lipgloss.Renderer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", r.NewStyle().Inherit(styles.Label).Render(padRight(label+":", 10)), value)
}
