// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"time"

	"github.com/jeranaias/bgtask/internal/config"
)

const (
	// DefaultPollInterval is the cancellation poll granularity.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultCleanupTimeout bounds cleanup hooks.
	DefaultCleanupTimeout = 5 * time.Second
)

type options struct {
	name           string
	parent         context.Context
	pollInterval   time.Duration
	cleanupTimeout time.Duration
	watchdogFactor int
	progressRate   float64
	progressBurst  int
	cleanups       []CleanupFunc
	observers      []Observer
}

// Option configures a Task.
type Option func(*options)

// WithName sets the display name. Defaults to "task-<short id>".
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithContext ties the task to ctx: when ctx is done, cancellation is
// requested. The work's Context carries ctx's values.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.parent = ctx
		}
	}
}

// WithPollInterval sets the poll granularity work is expected to honour.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithCleanup adds a hook run after the work returns. Hooks run last-added
// first.
func WithCleanup(fn CleanupFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.cleanups = append(o.cleanups, fn)
		}
	}
}

// WithCleanupTimeout bounds the total time of all cleanup hooks.
func WithCleanupTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cleanupTimeout = d
		}
	}
}

// WithWatchdog logs a warning when work goes longer than
// factor * poll interval without polling. Zero disables it.
func WithWatchdog(factor int) Option {
	return func(o *options) {
		if factor >= 0 {
			o.watchdogFactor = factor
		}
	}
}

// WithProgressRate limits progress notifications to perSecond with the
// given burst. Zero means unlimited.
func WithProgressRate(perSecond float64, burst int) Option {
	return func(o *options) {
		o.progressRate = perSecond
		o.progressBurst = burst
	}
}

// WithObserver subscribes obs before the task can start.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// ConfigOptions converts the [tasks] config section into options.
func ConfigOptions(cfg config.TasksConfig) []Option {
	return []Option{
		WithPollInterval(cfg.PollInterval.Duration),
		WithCleanupTimeout(cfg.CleanupTimeout.Duration),
		WithWatchdog(cfg.WatchdogFactor),
		WithProgressRate(cfg.ProgressRate, 1),
	}
}
