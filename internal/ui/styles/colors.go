// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/bgtask/internal/tasks"
)

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Cyan - Brand color, headers, running tasks
var Cyan = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// Purple - Variable values
var Purple = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}

// Emerald - Completed tasks
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Rose - Failed tasks and errors
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Amber - Cancellation in progress
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// =============================================================================
// TEXT COLORS
// =============================================================================

// TextPrimary - Main body text
var TextPrimary = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}

// TextMuted - Hints, IDs, durations
var TextMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}

// Overlay - Borders and separators
var Overlay = lipgloss.AdaptiveColor{Light: "#D4D4D4", Dark: "#45475A"}

// =============================================================================
// STATE INDICATORS
// =============================================================================

// StateIcon returns an ASCII indicator and color for a task state, so
// states stay distinguishable without color.
func StateIcon(state tasks.State) (string, lipgloss.AdaptiveColor) {
	switch state {
	case tasks.StateIdle:
		return "[ ]", TextMuted
	case tasks.StateRunning:
		return "[>]", Cyan
	case tasks.StateCompleted:
		return "[OK]", Emerald
	case tasks.StateCancelled:
		return "[--]", TextMuted
	case tasks.StateFailed:
		return "[X]", Rose
	default:
		return "[?]", TextMuted
	}
}
