// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jeranaias/bgtask/internal/logging"
)

// =============================================================================
// TASK RUNNER
// =============================================================================

// ErrRunnerStopped is returned by Submit after Stop.
var ErrRunnerStopped = errors.New("runner stopped")

// Runner starts tasks with a concurrency limit and an optional per-task
// timeout. Submitted tasks are tracked in its registry.
type Runner struct {
	registry      *Registry
	sem           *semaphore.Weighted
	maxConcurrent int
	taskTimeout   time.Duration // 0 = no timeout

	wg      sync.WaitGroup
	stopped atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	submitted []*Task
}

// NewRunner creates a runner with a default concurrency limit of 4 and no
// timeout.
func NewRunner(registry *Registry) *Runner {
	return NewRunnerWithOptions(registry, 4, 0)
}

// NewRunnerWithOptions creates a runner.
// maxConcurrent: maximum number of tasks running at once (default: 4)
// taskTimeout: per-task run limit after which the task fails with
// ErrDeadlineExceeded (0 = no timeout)
func NewRunnerWithOptions(registry *Registry, maxConcurrent int, taskTimeout time.Duration) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		registry:      registry,
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		maxConcurrent: maxConcurrent,
		taskTimeout:   taskTimeout,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Registry returns the registry tasks are tracked in.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Submit registers task and starts work once a slot is free. It returns
// without waiting for the slot; use the task to wait for the outcome.
func (r *Runner) Submit(task *Task, work WorkFunc) error {
	if r.stopped.Load() {
		return ErrRunnerStopped
	}
	if work == nil {
		return ErrNilWork
	}
	if task.State() != StateIdle {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyStarted, task.Name(), task.State())
	}
	task.scheduled.Store(true)
	if err := r.registry.Add(task); err != nil {
		task.scheduled.Store(false)
		return err
	}

	r.mu.Lock()
	live := r.submitted[:0]
	for _, t := range r.submitted {
		if !t.State().IsTerminal() {
			live = append(live, t)
		}
	}
	r.submitted = append(live, task)
	r.mu.Unlock()

	r.wg.Add(1)
	go r.execute(task, work)
	return nil
}

// execute waits for a slot, runs the task and holds the slot until the
// task is terminal.
func (r *Runner) execute(task *Task, work WorkFunc) {
	defer r.wg.Done()

	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		// Stopped while queued. Start anyway so the work sees the cancel
		// request at its first poll and waiters are released.
		task.requestCancel(nil)
		if err := task.Start(work); err != nil {
			logging.Warn(context.Background(), "runner could not start task", task.fields(logging.Fields{
				logging.FieldError: err,
			}))
			return
		}
		task.Wait(0)
		return
	}
	defer r.sem.Release(1)

	if err := task.Start(work); err != nil {
		logging.Warn(context.Background(), "runner could not start task", task.fields(logging.Fields{
			logging.FieldError: err,
		}))
		return
	}

	if r.taskTimeout > 0 {
		timer := time.AfterFunc(r.taskTimeout, func() {
			task.requestCancel(fmt.Errorf("%w after %v", ErrDeadlineExceeded, r.taskTimeout))
		})
		defer timer.Stop()
	}

	task.Wait(0)
}

// Stop refuses new tasks, cancels submitted ones and waits for them to
// finish, bounded by ctx.
func (r *Runner) Stop(ctx context.Context) error {
	r.stopped.Store(true)
	r.cancel()

	r.mu.Lock()
	submitted := make([]*Task, len(r.submitted))
	copy(submitted, r.submitted)
	r.mu.Unlock()
	for _, task := range submitted {
		task.requestCancel(nil)
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop runner: %w: %w", ErrTimedOut, ctx.Err())
	}
}
