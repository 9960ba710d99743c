// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"time"
)

// WorkFunc is the body of a task. It returns a result value, or an error.
// After observing cancellation it should return ErrCanceled (or the error
// of ctl.Context()).
type WorkFunc func(ctl *Control) (interface{}, error)

// CleanupFunc tears down resources after the work returned. It runs on the
// task goroutine and should poll ctl like work does; its Control is
// cancelled when the task is cancelled or the cleanup timeout elapses.
type CleanupFunc func(ctl *Control) error

// Control is the work function's handle on its task.
type Control struct {
	task *Task
	ctx  context.Context

	// work is false for the cleanup phase, whose observations do not
	// decide the outcome.
	work bool
}

// TaskID returns the ID of the owning task.
func (c *Control) TaskID() string {
	return c.task.id
}

// Context returns a context cancelled when cancellation is requested.
// It carries the values of the context given by WithContext.
func (c *Control) Context() context.Context {
	return c.ctx
}

// Canceled polls for a cancel request. Work must call it (or Sleep) at
// least once per poll interval.
func (c *Control) Canceled() bool {
	c.task.touch()
	select {
	case <-c.ctx.Done():
		c.observe()
		return true
	default:
		return false
	}
}

// Err returns ErrCanceled once cancellation was requested, nil otherwise.
func (c *Control) Err() error {
	if c.Canceled() {
		return ErrCanceled
	}
	return nil
}

// Sleep pauses for d or until cancellation, whichever comes first. It
// returns false if it woke because of cancellation.
func (c *Control) Sleep(d time.Duration) bool {
	if c.Canceled() {
		return false
	}
	if d <= 0 {
		return true
	}

	c.task.sleeping.Add(1)
	defer c.task.sleeping.Add(-1)

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		c.task.touch()
		c.observe()
		return false
	case <-timer.C:
		c.task.touch()
		return true
	}
}

// PollInterval returns the task's poll granularity.
func (c *Control) PollInterval() time.Duration {
	return c.task.opts.pollInterval
}

// Progress reports intermediate progress to observers. Reports above the
// task's progress rate are dropped, though the latest report is still
// visible through Task.Progress.
func (c *Control) Progress(p Progress) {
	c.task.touch()
	if !c.work {
		return
	}
	c.task.reportProgress(p)
}

// Report is shorthand for Progress with a percent and message.
func (c *Control) Report(percent int, message string) {
	c.Progress(Progress{Percent: percent, Message: message})
}

func (c *Control) observe() {
	if c.work {
		c.task.observed.Store(true)
	}
}
