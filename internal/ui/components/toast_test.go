// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/bgtask/internal/tasks"
)

func terminalEvent(state tasks.State, err error) tasks.Event {
	return tasks.Event{
		Kind:     tasks.EventTerminal,
		TaskID:   "0f8fad5b-d9cb-469f-a165-70867728950e",
		TaskName: "long action",
		State:    state,
		Err:      err,
		Duration: 1500 * time.Millisecond,
	}
}

func TestToastsPush(t *testing.T) {
	ts := NewToasts(2)

	_, ok := ts.Push(tasks.Event{Kind: tasks.EventProgress})
	require.False(t, ok)
	require.Zero(t, ts.Len())

	done, ok := ts.Push(terminalEvent(tasks.StateCompleted, nil))
	require.True(t, ok)
	require.Equal(t, DefaultToastDuration, done.Duration)
	require.Equal(t, "long action completed in 1.5s", done.Message)

	failed, _ := ts.Push(terminalEvent(tasks.StateFailed, &tasks.FailedError{Reason: errors.New("disk full")}))
	require.Equal(t, FailureToastDuration, failed.Duration)
	require.Equal(t, "long action failed: disk full", failed.Message)
	require.NotEqual(t, done.ID, failed.ID)

	cancelled, _ := ts.Push(terminalEvent(tasks.StateCancelled, tasks.ErrCanceled))
	require.Equal(t, "long action cancelled after 1.5s", cancelled.Message)

	items := ts.Items()
	require.Len(t, items, 2, "oldest toast is dropped")
	require.Equal(t, cancelled.ID, items[0].ID)
	require.Equal(t, failed.ID, items[1].ID)
}

func TestToastsDismissAndPrune(t *testing.T) {
	now := time.Now()
	ts := NewToasts(5)
	ts.now = func() time.Time { return now }

	a, _ := ts.Push(terminalEvent(tasks.StateCompleted, nil))
	b, _ := ts.Push(terminalEvent(tasks.StateFailed, errors.New("boom")))

	require.True(t, ts.Dismiss(a.ID))
	require.False(t, ts.Dismiss(a.ID))
	require.Equal(t, 1, ts.Len())

	now = now.Add(DefaultToastDuration)
	require.Equal(t, 1, ts.Prune(), "failure toasts stay longer")

	now = now.Add(FailureToastDuration)
	require.Zero(t, ts.Prune())
	require.False(t, ts.Dismiss(b.ID))
}

func TestToastsView(t *testing.T) {
	ts := NewToasts(3)
	require.Empty(t, ts.View(80))

	ts.Push(terminalEvent(tasks.StateCompleted, nil))
	view := ts.View(80)
	require.Contains(t, view, "[OK]")
	require.Contains(t, view, "long action completed")
}

func TestExpireCmd(t *testing.T) {
	cmd := ExpireCmd(Toast{ID: 7, Duration: time.Millisecond})
	require.Equal(t, ToastExpiredMsg{ID: 7}, cmd())
}
