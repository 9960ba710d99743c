// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the reusable panels of the bgtask monitor.

# Components

TaskList (task_list.go) - Registry-backed list of tasks with state icons,
progress, duration and failure reasons. ViewDetail renders a single task.

Toasts (toast.go) - Auto-dismissing outcome notifications, one per finished
task. Push returns the toast and ExpireCmd schedules its removal.

# Usage

	list := components.NewTaskList(registry)
	list.SetSize(width, height)
	view := list.View()

	if toast, ok := toasts.Push(ev); ok {
		return m, components.ExpireCmd(toast)
	}

Components are driven from the Bubble Tea event loop and are not safe for
concurrent use, except TaskList which only reads task snapshots.
*/
package components
