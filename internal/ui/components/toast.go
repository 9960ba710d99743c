// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/bgtask/internal/tasks"
	"github.com/jeranaias/bgtask/internal/ui/styles"
	"github.com/jeranaias/bgtask/internal/util"
)

// =============================================================================
// OUTCOME TOASTS
// =============================================================================

// DefaultToastDuration is how long a completed or cancelled outcome shows.
const DefaultToastDuration = 4 * time.Second

// FailureToastDuration is longer so failure reasons can be read.
const FailureToastDuration = 8 * time.Second

// Toast announces how a task ended. It auto-dismisses after Duration.
type Toast struct {
	ID        int
	TaskID    string
	State     tasks.State
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// Expired reports whether the toast should be dismissed at now.
func (t Toast) Expired(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// ToastExpiredMsg is sent when a toast's display time is over.
type ToastExpiredMsg struct {
	ID int
}

// ExpireCmd returns a command that dismisses t once its duration elapsed.
func ExpireCmd(t Toast) tea.Cmd {
	return tea.Tick(t.Duration, func(time.Time) tea.Msg {
		return ToastExpiredMsg{ID: t.ID}
	})
}

// Toasts is the stack of outcome toasts. It is used from the event loop
// only and is not safe for concurrent use.
type Toasts struct {
	items  []Toast // newest first
	nextID int
	max    int
	now    func() time.Time
}

// NewToasts creates a stack that shows at most max toasts.
func NewToasts(max int) *Toasts {
	if max <= 0 {
		max = 3
	}
	return &Toasts{nextID: 1, max: max, now: time.Now}
}

// Push adds a toast for a terminal event. Non-terminal events are ignored
// and return ok=false.
func (ts *Toasts) Push(ev tasks.Event) (toast Toast, ok bool) {
	if !ev.Terminal() {
		return Toast{}, false
	}

	toast = Toast{
		ID:        ts.nextID,
		TaskID:    ev.TaskID,
		State:     ev.State,
		Message:   toastMessage(ev),
		CreatedAt: ts.now(),
		Duration:  DefaultToastDuration,
	}
	if ev.State == tasks.StateFailed {
		toast.Duration = FailureToastDuration
	}
	ts.nextID++

	ts.items = append([]Toast{toast}, ts.items...)
	if len(ts.items) > ts.max {
		ts.items = ts.items[:ts.max]
	}
	return toast, true
}

// Dismiss removes the toast with id. It reports whether it was shown.
func (ts *Toasts) Dismiss(id int) bool {
	for i, t := range ts.items {
		if t.ID == id {
			ts.items = append(ts.items[:i], ts.items[i+1:]...)
			return true
		}
	}
	return false
}

// Prune removes expired toasts and returns how many are left.
func (ts *Toasts) Prune() int {
	now := ts.now()
	active := ts.items[:0]
	for _, t := range ts.items {
		if !t.Expired(now) {
			active = append(active, t)
		}
	}
	ts.items = active
	return len(ts.items)
}

// Items returns a copy of the shown toasts, newest first.
func (ts *Toasts) Items() []Toast {
	out := make([]Toast, len(ts.items))
	copy(out, ts.items)
	return out
}

// Len returns the number of shown toasts.
func (ts *Toasts) Len() int {
	return len(ts.items)
}

// View renders the toasts stacked vertically, newest at the bottom,
// right aligned within width.
func (ts *Toasts) View(width int) string {
	if len(ts.items) == 0 {
		return ""
	}

	maxWidth := 60
	if width > 0 && width-8 < maxWidth {
		maxWidth = max(width-8, 30)
	}

	rendered := make([]string, 0, len(ts.items))
	for i := len(ts.items) - 1; i >= 0; i-- {
		rendered = append(rendered, renderToast(ts.items[i], maxWidth))
	}
	stack := lipgloss.JoinVertical(lipgloss.Right, rendered...)
	if width > 0 {
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, stack)
	}
	return stack
}

func renderToast(t Toast, maxWidth int) string {
	icon, color := styles.StateIcon(t.State)
	iconStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	messageStyle := lipgloss.NewStyle().Foreground(styles.TextPrimary).Width(maxWidth - 8)

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 2).
		MaxWidth(maxWidth).
		Render(iconStyle.Render(icon+" ") + messageStyle.Render(t.Message))
}

func toastMessage(ev tasks.Event) string {
	name := ev.TaskName
	if name == "" {
		name = util.ShortID(ev.TaskID)
	}
	elapsed := util.FormatDuration(ev.Duration)

	switch ev.State {
	case tasks.StateCompleted:
		return fmt.Sprintf("%s completed in %s", name, elapsed)
	case tasks.StateCancelled:
		return fmt.Sprintf("%s cancelled after %s", name, elapsed)
	case tasks.StateFailed:
		return fmt.Sprintf("%s failed: %s", name, FailureReason(ev.Err))
	default:
		return fmt.Sprintf("%s %s", name, ev.State)
	}
}
