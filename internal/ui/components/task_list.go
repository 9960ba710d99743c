// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/bgtask/internal/tasks"
	"github.com/jeranaias/bgtask/internal/ui/styles"
	"github.com/jeranaias/bgtask/internal/util"
)

// =============================================================================
// TASK LIST COMPONENT
// =============================================================================

// TaskList renders the tasks of a registry.
type TaskList struct {
	registry *tasks.Registry
	width    int
	height   int

	// Filter options
	showCompleted bool
	showFailed    bool
	showCancelled bool
}

// NewTaskList creates a task list showing every state.
func NewTaskList(registry *tasks.Registry) *TaskList {
	return &TaskList{
		registry:      registry,
		showCompleted: true,
		showFailed:    true,
		showCancelled: true,
	}
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// SetSize sets the component dimensions. A height of zero shows all rows.
func (tl *TaskList) SetSize(width, height int) {
	tl.width = width
	tl.height = height
}

// SetShowCompleted sets whether to show completed tasks.
func (tl *TaskList) SetShowCompleted(show bool) {
	tl.showCompleted = show
}

// SetShowFailed sets whether to show failed tasks.
func (tl *TaskList) SetShowFailed(show bool) {
	tl.showFailed = show
}

// SetShowCancelled sets whether to show cancelled tasks.
func (tl *TaskList) SetShowCancelled(show bool) {
	tl.showCancelled = show
}

// =============================================================================
// RENDERING
// =============================================================================

// View renders the task list.
func (tl *TaskList) View() string {
	if tl.registry == nil || tl.registry.Count() == 0 {
		return tl.renderEmpty("No background tasks")
	}

	var filtered []tasks.Info
	for _, task := range tl.registry.All() {
		info := task.Info()
		if tl.shouldShow(info.State) {
			filtered = append(filtered, info)
		}
	}
	if len(filtered) == 0 {
		return tl.renderEmpty("No tasks match current filter")
	}

	// Newest rows win when the panel is too short.
	if rows := tl.height - 4; tl.height > 0 && rows > 0 && len(filtered) > rows {
		filtered = filtered[len(filtered)-rows:]
	}
	return tl.renderTasks(filtered)
}

func (tl *TaskList) shouldShow(state tasks.State) bool {
	switch state {
	case tasks.StateCompleted:
		return tl.showCompleted
	case tasks.StateFailed:
		return tl.showFailed
	case tasks.StateCancelled:
		return tl.showCancelled
	default:
		return true // Always show idle and running
	}
}

func (tl *TaskList) renderEmpty(text string) string {
	return styles.Muted.
		Italic(true).
		Padding(1).
		Width(tl.width).
		Align(lipgloss.Center).
		Render(text)
}

func (tl *TaskList) renderTasks(infos []tasks.Info) string {
	var b strings.Builder

	b.WriteString(styles.Title.Width(tl.width).Render("Background Tasks"))
	b.WriteString("\n")

	for i, info := range infos {
		b.WriteString(tl.renderTask(info))
		if i < len(infos)-1 {
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(tl.renderFooter())
	return b.String()
}

// renderTask renders a single task row.
func (tl *TaskList) renderTask(info tasks.Info) string {
	icon, color := styles.StateIcon(info.State)

	detail := ""
	switch {
	case info.State == tasks.StateRunning && info.CancelRequested:
		detail = styles.Warning.Render("cancelling")
	case info.State == tasks.StateRunning:
		detail = fmt.Sprintf("[%d%%]", info.Progress.Percent)
	case info.State == tasks.StateFailed && info.Err != nil:
		detail = styles.Error.Render(util.TruncateWidth(FailureReason(info.Err), 40))
	}

	row := fmt.Sprintf("%s %s  %s  %s %s",
		lipgloss.NewStyle().Foreground(color).Render(icon),
		styles.Muted.Render(util.ShortID(info.ID)),
		info.Name,
		detail,
		styles.Muted.Render(util.FormatDuration(info.Duration())),
	)

	return lipgloss.NewStyle().
		Padding(0, 1).
		Width(tl.width).
		Render(row)
}

func (tl *TaskList) renderFooter() string {
	return styles.Muted.
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(styles.Overlay).
		Width(tl.width).
		Padding(0, 1).
		Render(tl.registry.Summary())
}

// =============================================================================
// TASK DETAIL VIEW
// =============================================================================

// ViewDetail renders detailed information about one task.
func (tl *TaskList) ViewDetail(taskID string) string {
	var task *tasks.Task
	if tl.registry != nil {
		task = tl.registry.Get(taskID)
	}
	if task == nil {
		return styles.Error.
			Padding(1).
			Width(tl.width).
			Align(lipgloss.Center).
			Render(fmt.Sprintf("Task not found: %s", taskID))
	}

	info := task.Info()
	icon, color := styles.StateIcon(info.State)

	var b strings.Builder
	b.WriteString(styles.Title.Width(tl.width).Render(
		lipgloss.NewStyle().Foreground(color).Render(icon) + "  " + info.Name))
	b.WriteString("\n")

	field := func(label, value string) {
		b.WriteString(styles.Label.Render(label + ": "))
		b.WriteString(value)
		b.WriteString("\n")
	}
	field("ID", info.ID)
	field("State", info.State.String())
	if d := info.Duration(); d > 0 {
		field("Duration", util.FormatDuration(d))
	}
	if info.State == tasks.StateRunning {
		field("Progress", fmt.Sprintf("%d%% %s", info.Progress.Percent, info.Progress.Message))
	}
	if info.CancelRequested {
		field("Cancel requested", "yes")
	}
	if info.Err != nil {
		b.WriteString(styles.Panel.
			BorderForeground(styles.Rose).
			Width(max(tl.width-4, 20)).
			Render(styles.Error.Render("Error: " + FailureReason(info.Err))))
	}
	return b.String()
}

// failureReason strips the task ID prefix of a FailedError for display.
// FailureReason returns the reason of a failed task's error, without the
// task prefix.
func FailureReason(err error) string {
	var failed *tasks.FailedError
	if errors.As(err, &failed) && failed.Reason != nil {
		return failed.Reason.Error()
	}
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
