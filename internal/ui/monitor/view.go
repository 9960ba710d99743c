// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"fmt"
	"strings"

	"github.com/jeranaias/bgtask/internal/ui/styles"
)

// View renders the monitor.
func (m Model) View() string {
	if m.quitting {
		return styles.Muted.Render("Stopping background tasks...") + "\n"
	}

	var b strings.Builder

	b.WriteString(styles.Title.Width(m.width).Render("bgtask monitor"))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("  %s%s    %s%s\n\n",
		styles.Label.Render("Var1: "), styles.Value.Render(fmt.Sprintf("%3d", m.vars.Var1)),
		styles.Label.Render("Var2: "), styles.Value.Render(fmt.Sprintf("%3d", m.vars.Var2)),
	))

	b.WriteString("  ")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	if m.task != nil {
		b.WriteString("  ")
		b.WriteString(m.progress.ViewAs(m.percent))
		b.WriteString(fmt.Sprintf(" %3.0f%%\n", m.percent*100))
	}
	b.WriteString("\n")

	b.WriteString(m.taskList.View())
	b.WriteString("\n")
	if toasts := m.toasts.View(m.width); toasts != "" {
		b.WriteString(toasts)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderStatus() string {
	switch {
	case m.err != nil:
		return styles.Error.Render(m.status)
	case m.status == StatusCancelling:
		return m.spinner.View() + " " + styles.Warning.Render(m.status)
	case m.task != nil:
		return m.spinner.View() + " " + styles.Status.Render(m.status)
	default:
		return styles.Status.Render(m.status)
	}
}
