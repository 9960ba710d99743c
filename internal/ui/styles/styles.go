// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Title is the application header.
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	// Label renders field names.
	Label = lipgloss.NewStyle().Foreground(TextMuted).Bold(true)

	// Value renders field values.
	Value = lipgloss.NewStyle().Foreground(Purple).Bold(true)

	// Status renders the status line.
	Status = lipgloss.NewStyle().Foreground(TextPrimary)

	// Muted renders hints and secondary text.
	Muted = lipgloss.NewStyle().Foreground(TextMuted)

	// Error renders failure messages.
	Error = lipgloss.NewStyle().Foreground(Rose).Bold(true)

	// Warning renders pending cancellation.
	Warning = lipgloss.NewStyle().Foreground(Amber)

	// Panel frames a block of content.
	Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
)

