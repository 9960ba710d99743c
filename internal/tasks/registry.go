// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jeranaias/bgtask/internal/logging"
)

// =============================================================================
// TASK REGISTRY
// =============================================================================

// ErrDuplicateTask is returned by Registry.Add for a task already tracked.
var ErrDuplicateTask = errors.New("task already registered")

// Registry tracks tasks by ID and keeps a bounded history of finished ones.
type Registry struct {
	// tasks holds tracked tasks in registration order
	tasks []*Task

	// byID indexes tasks
	byID map[string]*Task

	// maxHistory is the maximum number of finished tasks to keep (0 = unlimited)
	maxHistory int

	mu sync.RWMutex

	// notifyChan carries terminal events of tracked tasks
	notifyChan chan Event
}

// NewRegistry creates a registry keeping at most maxHistory finished tasks.
func NewRegistry(maxHistory int) *Registry {
	return &Registry{
		tasks:      make([]*Task, 0),
		byID:       make(map[string]*Task),
		maxHistory: maxHistory,
		notifyChan: make(chan Event, 100),
	}
}

// Add starts tracking task. Its terminal event is forwarded to
// Notifications.
func (r *Registry) Add(task *Task) error {
	r.mu.Lock()
	if _, ok := r.byID[task.ID()]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID())
	}
	r.tasks = append(r.tasks, task)
	r.byID[task.ID()] = task
	r.mu.Unlock()

	// Subscribe outside r.mu: the callback takes r.mu on the task goroutine.
	task.Subscribe(ObserverFunc(r.onEvent))
	return nil
}

func (r *Registry) onEvent(ev Event) {
	if !ev.Terminal() {
		return
	}
	r.notify(ev)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanupLocked()
}

// Get returns the task with the given ID, or nil.
func (r *Registry) Get(id string) *Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// Cancel requests cancellation of a task by ID.
// Returns false if the task is unknown or already finished.
func (r *Registry) Cancel(id string) bool {
	task := r.Get(id)
	if task == nil {
		return false
	}
	return task.requestCancel(nil)
}

// CancelAll requests cancellation of every unfinished task and returns how
// many requests took effect.
func (r *Registry) CancelAll() int {
	n := 0
	for _, task := range r.All() {
		if task.requestCancel(nil) {
			n++
		}
	}
	return n
}

// Close cancels every task and waits for all of them, bounded by ctx.
// Idle tasks are skipped unless a Runner is due to start them; those are
// waited for once the runner starts them.
func (r *Registry) Close(ctx context.Context) error {
	r.CancelAll()

	var errs []error
	for _, task := range r.All() {
		if task.State() == StateIdle && !task.scheduled.Load() {
			continue
		}
		if _, err := task.WaitContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", task.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// REGISTRY QUERIES
// =============================================================================

// All returns all tracked tasks in registration order.
func (r *Registry) All() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Task, len(r.tasks))
	copy(result, r.tasks)
	return result
}

// Running returns tasks in StateRunning.
func (r *Registry) Running() []*Task {
	return r.filter(func(s State) bool { return s == StateRunning })
}

// Completed returns finished tasks (completed, cancelled or failed).
func (r *Registry) Completed() []*Task {
	return r.filter(State.IsTerminal)
}

func (r *Registry) filter(keep func(State) bool) []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Task, 0)
	for _, task := range r.tasks {
		if keep(task.State()) {
			result = append(result, task)
		}
	}
	return result
}

// Count returns the number of tracked tasks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// RunningCount returns the number of running tasks.
func (r *Registry) RunningCount() int {
	return len(r.Running())
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// Notifications returns the channel of terminal events.
// Events are dropped with a warning when nobody drains it.
func (r *Registry) Notifications() <-chan Event {
	return r.notifyChan
}

func (r *Registry) notify(ev Event) {
	select {
	case r.notifyChan <- ev:
	default:
		logging.Warn(context.Background(), "notification channel full, dropped event", logging.Fields{
			logging.FieldTaskID: ev.TaskID,
			logging.FieldState:  ev.State.String(),
		})
	}
}

// =============================================================================
// CLEANUP
// =============================================================================

// cleanupLocked drops the oldest finished tasks beyond maxHistory.
// Must be called with lock held.
// Removal follows registration order, not completion time.
func (r *Registry) cleanupLocked() {
	if r.maxHistory <= 0 {
		return
	}

	finished := 0
	for _, task := range r.tasks {
		if task.State().IsTerminal() {
			finished++
		}
	}
	if finished <= r.maxHistory {
		return
	}

	toRemove := finished - r.maxHistory
	kept := make([]*Task, 0, len(r.tasks)-toRemove)
	for _, task := range r.tasks {
		if toRemove > 0 && task.State().IsTerminal() {
			toRemove--
			delete(r.byID, task.ID())
			continue
		}
		kept = append(kept, task)
	}
	r.tasks = kept
}

// Clear forgets all finished tasks.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]*Task, 0)
	for _, task := range r.tasks {
		if task.State().IsTerminal() {
			delete(r.byID, task.ID())
			continue
		}
		kept = append(kept, task)
	}
	r.tasks = kept
}

// =============================================================================
// FORMATTING
// =============================================================================

// Summary returns a one-line count of tasks by state.
func (r *Registry) Summary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var running, completed, cancelled, failed int
	for _, task := range r.tasks {
		switch task.State() {
		case StateRunning:
			running++
		case StateCompleted:
			completed++
		case StateCancelled:
			cancelled++
		case StateFailed:
			failed++
		}
	}

	return fmt.Sprintf("Running: %d | Completed: %d | Cancelled: %d | Failed: %d",
		running, completed, cancelled, failed)
}
