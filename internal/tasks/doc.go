// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks runs long operations on background goroutines with
// cooperative cancellation.
//
// A Task executes one work function. The work receives a *Control and must
// check it at bounded intervals (PollInterval, 100ms by default); the caller
// can ask it to stop with RequestCancel but never forces it to.
//
// # Key Types
//
//   - Task: one unit of background work and its lifecycle
//   - State: Idle -> Running -> Completed | Cancelled | Failed
//   - Control: the work's view of the task (cancellation, sleep, progress)
//   - Observer, Event: progress and terminal notifications
//   - Inbox: hands notifications from the task goroutine to another goroutine
//   - Registry: tracks tasks and keeps a bounded history of finished ones
//   - Runner: starts registered tasks with a concurrency limit and timeout
//
// # Usage
//
//	task := tasks.New(tasks.WithName("long action"))
//	err := task.Start(func(ctl *tasks.Control) (interface{}, error) {
//	    for i := 0; i < 50; i++ {
//	        if !ctl.Sleep(100 * time.Millisecond) {
//	            return nil, tasks.ErrCanceled
//	        }
//	        ctl.Report(i*2, "working")
//	    }
//	    return "done", nil
//	})
//
//	task.RequestCancel()
//	state, err := task.Wait(time.Second) // state == tasks.StateCancelled
//
// # Notifications
//
// Observers are called on the task goroutine, in order, and never after the
// terminal notification. Each observer gets exactly one terminal
// notification, including observers subscribed after the task finished.
// Observers must not block and must not call Subscribe or Wait on the task
// they observe; use an Inbox to move events to another goroutine.
package tasks
