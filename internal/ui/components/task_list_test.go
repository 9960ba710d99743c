// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/bgtask/internal/tasks"
)

func finishedTask(t *testing.T, reg *tasks.Registry, name string, err error) *tasks.Task {
	t.Helper()
	task := tasks.New(tasks.WithName(name))
	require.NoError(t, reg.Add(task))
	require.NoError(t, task.Start(func(*tasks.Control) (interface{}, error) { return nil, err }))
	_, waitErr := task.Wait(time.Second)
	require.NoError(t, waitErr)
	return task
}

func TestTaskListEmpty(t *testing.T) {
	require.Contains(t, NewTaskList(nil).View(), "No background tasks")
	require.Contains(t, NewTaskList(tasks.NewRegistry(10)).View(), "No background tasks")
}

func TestTaskListRendersRowsAndSummary(t *testing.T) {
	reg := tasks.NewRegistry(10)
	finishedTask(t, reg, "short action", nil)
	finishedTask(t, reg, "broken action", errors.New("disk full"))

	tl := NewTaskList(reg)
	tl.SetSize(100, 0)
	view := tl.View()

	require.Contains(t, view, "Background Tasks")
	require.Contains(t, view, "short action")
	require.Contains(t, view, "[OK]")
	require.Contains(t, view, "broken action")
	require.Contains(t, view, "[X]")
	require.Contains(t, view, "disk full")
	require.Contains(t, view, "Running: 0 | Completed: 1 | Cancelled: 0 | Failed: 1")
}

func TestTaskListFilters(t *testing.T) {
	reg := tasks.NewRegistry(10)
	finishedTask(t, reg, "done", nil)

	tl := NewTaskList(reg)
	tl.SetShowCompleted(false)
	require.Contains(t, tl.View(), "No tasks match current filter")

	tl.SetShowCompleted(true)
	require.Contains(t, tl.View(), "done")
}

func TestTaskListShowsRunningProgress(t *testing.T) {
	reg := tasks.NewRegistry(10)
	task := tasks.New(tasks.WithName("long action"))
	require.NoError(t, reg.Add(task))

	reported := make(chan struct{})
	require.NoError(t, task.Start(func(ctl *tasks.Control) (interface{}, error) {
		ctl.Report(40, "working")
		close(reported)
		for ctl.Sleep(10 * time.Millisecond) {
		}
		return nil, tasks.ErrCanceled
	}))
	<-reported

	tl := NewTaskList(reg)
	tl.SetSize(100, 0)
	require.Contains(t, tl.View(), "[40%]")
	require.Contains(t, tl.ViewDetail(task.ID()), "40% working")

	task.RequestCancel()
	_, err := task.Wait(time.Second)
	require.NoError(t, err)
	require.Contains(t, tl.View(), "[--]")
}

func TestTaskListHeightKeepsNewest(t *testing.T) {
	reg := tasks.NewRegistry(10)
	for i := 0; i < 5; i++ {
		finishedTask(t, reg, "task-"+string(rune('a'+i)), nil)
	}

	tl := NewTaskList(reg)
	tl.SetSize(80, 6)
	view := tl.View()
	require.NotContains(t, view, "task-a")
	require.Contains(t, view, "task-e")
	require.Equal(t, 2, strings.Count(view, "[OK]"))
}

func TestTaskListDetail(t *testing.T) {
	reg := tasks.NewRegistry(10)
	task := finishedTask(t, reg, "broken", errors.New("disk full"))

	tl := NewTaskList(reg)
	tl.SetSize(80, 0)
	detail := tl.ViewDetail(task.ID())
	require.Contains(t, detail, task.ID())
	require.Contains(t, detail, "Failed")
	require.Contains(t, detail, "Error: disk full")

	require.Contains(t, tl.ViewDetail("nope"), "Task not found: nope")
}
