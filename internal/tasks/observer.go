// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind distinguishes progress from terminal notifications.
type EventKind int

const (
	// EventProgress carries an intermediate progress report.
	EventProgress EventKind = iota

	// EventTerminal carries the final outcome. Sent once per observer.
	EventTerminal
)

func (k EventKind) String() string {
	if k == EventTerminal {
		return "terminal"
	}
	return "progress"
}

// Progress is an intermediate report from the work function.
type Progress struct {
	// Percent is the completion estimate in [0, 100].
	Percent int

	// Message is a short human-readable status.
	Message string

	// Value is an optional work-defined payload.
	Value interface{}
}

// Event is a notification delivered to observers.
type Event struct {
	Kind     EventKind
	TaskID   string
	TaskName string
	Time     time.Time

	// Progress is set for EventProgress.
	Progress Progress

	// The remaining fields are set for EventTerminal.
	State    State
	Result   interface{}
	Err      error
	Duration time.Duration
}

// Terminal reports whether the event is the final one for its task.
func (e Event) Terminal() bool {
	return e.Kind == EventTerminal
}

// =============================================================================
// OBSERVERS
// =============================================================================

// Observer receives task notifications on the task goroutine.
type Observer interface {
	Notify(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

// Notify calls f(ev).
func (f ObserverFunc) Notify(ev Event) { f(ev) }

// Subscription binds an observer to a task until Unsubscribe.
type Subscription struct {
	task     *Task
	id       uint64
	observer Observer
	active   atomic.Bool
	terminal atomic.Bool
}

// Unsubscribe stops delivery. Safe to call more than once and from inside
// the observer.
func (s *Subscription) Unsubscribe() {
	if s == nil || !s.active.CompareAndSwap(true, false) {
		return
	}
	s.task.removeSubscription(s.id)
}

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool {
	return s != nil && s.active.Load()
}

// =============================================================================
// INBOX
// =============================================================================

// ErrInboxClosed is returned by Inbox.Next after Close once the queue is drained.
var ErrInboxClosed = errors.New("inbox closed")

// Inbox is an Observer that queues events for another goroutine. Notify
// never blocks the task goroutine; the queue is unbounded.
type Inbox struct {
	mu     sync.Mutex
	queue  []Event
	ready  chan struct{}
	closed bool
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{ready: make(chan struct{}, 1)}
}

// Notify queues ev. Events after Close are discarded.
func (b *Inbox) Notify(ev Event) {
	b.Offer(ev)
}

// Offer queues ev and reports whether it was queued. It returns false once
// the inbox is closed.
func (b *Inbox) Offer(ev Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.queue = append(b.queue, ev)
	select {
	case b.ready <- struct{}{}:
	default:
	}
	return true
}

// Next returns the oldest queued event, blocking until one arrives, the
// inbox is closed and empty, or ctx is done.
func (b *Inbox) Next(ctx context.Context) (Event, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			ev := b.queue[0]
			b.queue[0] = Event{}
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return ev, nil
		}
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return Event{}, ErrInboxClosed
		}

		select {
		case <-b.ready:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Drain removes and returns all queued events without blocking.
func (b *Inbox) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queue
	b.queue = nil
	return out
}

// Len returns the number of queued events.
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close stops accepting events and wakes blocked readers. Queued events
// can still be read.
func (b *Inbox) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ready)
}
