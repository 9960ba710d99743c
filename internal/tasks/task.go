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

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jeranaias/bgtask/internal/logging"
	"github.com/jeranaias/bgtask/internal/util"
)

// =============================================================================
// TASK
// =============================================================================

// Task runs one work function on a background goroutine.
// All methods are safe for concurrent use.
type Task struct {
	id   string
	name string
	opts options

	state           atomic.Int32
	cancelRequested atomic.Bool
	cancelOnce      sync.Once
	observed        atomic.Bool

	// scheduled is set when a Runner owns starting the task.
	scheduled atomic.Bool

	// lastPoll is the UnixNano of the last Control call; sleeping counts
	// Control.Sleep calls in progress. Both feed the watchdog.
	lastPoll   atomic.Int64
	sleeping   atomic.Int32
	missedPoll atomic.Int64

	ctx        context.Context
	ctxCancel  context.CancelFunc
	stopParent func() bool
	limiter    *rate.Limiter
	done       chan struct{}

	mu        sync.Mutex // guards the fields below
	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time
	result    interface{}
	failure   *FailedError
	cause     error
	progress  Progress
	subs      []*Subscription
	nextSubID uint64

	// notifyMu serializes delivery so the terminal event is always last.
	notifyMu      sync.Mutex
	terminalSent  bool
	terminalEvent Event
}

// New creates an idle task.
func New(opts ...Option) *Task {
	o := options{
		parent:         context.Background(),
		pollInterval:   DefaultPollInterval,
		cleanupTimeout: DefaultCleanupTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.New().String()
	if o.name == "" {
		o.name = "task-" + util.ShortID(id)
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(o.parent))
	t := &Task{
		id:        id,
		name:      o.name,
		opts:      o,
		ctx:       ctx,
		ctxCancel: cancel,
		done:      make(chan struct{}),
		createdAt: time.Now(),
	}
	if o.progressRate > 0 {
		burst := o.progressBurst
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(o.progressRate), burst)
	}
	for _, obs := range o.observers {
		t.Subscribe(obs)
	}
	if o.parent.Done() != nil {
		t.stopParent = context.AfterFunc(o.parent, t.RequestCancel)
	}
	return t
}

// ID returns the task's unique identifier.
func (t *Task) ID() string { return t.id }

// Name returns the display name.
func (t *Task) Name() string { return t.name }

// State returns the current state without blocking.
func (t *Task) State() State {
	return State(t.state.Load())
}

// CancelRequested reports whether RequestCancel took effect.
func (t *Task) CancelRequested() bool {
	return t.cancelRequested.Load()
}

// Done returns a channel closed after the terminal state is published and
// observers were notified.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// transition moves the task from one state to another if valid.
func (t *Task) transition(from, to State) bool {
	if !validTransition(from, to) {
		return false
	}
	return t.state.CompareAndSwap(int32(from), int32(to))
}

// Start runs work on a new goroutine. It fails with ErrAlreadyStarted
// unless the task is Idle; the running work is not affected.
func (t *Task) Start(work WorkFunc) error {
	if work == nil {
		return ErrNilWork
	}

	t.mu.Lock()
	if !t.transition(StateIdle, StateRunning) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrAlreadyStarted, t.name, t.State())
	}
	t.startedAt = time.Now()
	t.mu.Unlock()

	t.touch()
	logging.Debug(t.ctx, "task started", t.fields(logging.Fields{
		logging.FieldState: StateRunning.String(),
	}))

	go t.run(work)
	if t.opts.watchdogFactor > 0 {
		go t.watch()
	}
	return nil
}

// RequestCancel asks the work to stop at its next poll. It never blocks,
// is idempotent, and has no effect on a terminal task.
func (t *Task) RequestCancel() {
	t.requestCancel(nil)
}

// requestCancel records cause as the failure reason if the work stops
// because of this request. A nil cause yields Cancelled.
func (t *Task) requestCancel(cause error) bool {
	if t.State().IsTerminal() {
		return false
	}

	first := false
	t.cancelOnce.Do(func() {
		t.mu.Lock()
		t.cause = cause
		t.mu.Unlock()
		t.cancelRequested.Store(true)
		t.ctxCancel()
		first = true
	})

	if first {
		fields := logging.Fields{logging.FieldState: t.State().String()}
		if cause != nil {
			fields[logging.FieldError] = cause
		}
		logging.Info(t.ctx, "task cancel requested", t.fields(fields))
	}
	return first
}

// Wait blocks until the task is terminal or timeout elapses. A timeout of
// zero or less waits forever. On timeout it returns the current state and
// ErrTimedOut; the task keeps running. Any number of goroutines may wait.
func (t *Task) Wait(timeout time.Duration) (State, error) {
	if timeout <= 0 {
		<-t.done
		return t.State(), nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.done:
		return t.State(), nil
	case <-timer.C:
		return t.State(), ErrTimedOut
	}
}

// WaitContext is Wait bounded by ctx instead of a timeout.
func (t *Task) WaitContext(ctx context.Context) (State, error) {
	select {
	case <-t.done:
		return t.State(), nil
	case <-ctx.Done():
		return t.State(), fmt.Errorf("%w: %w", ErrTimedOut, ctx.Err())
	}
}

// Result returns the outcome: the value for Completed, ErrCanceled for
// Cancelled, a *FailedError for Failed, and ErrNotFinished otherwise.
func (t *Task) Result() (interface{}, error) {
	switch t.State() {
	case StateCompleted:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.result, nil
	case StateCancelled:
		return nil, ErrCanceled
	case StateFailed:
		t.mu.Lock()
		defer t.mu.Unlock()
		return nil, t.failure
	default:
		return nil, ErrNotFinished
	}
}

// Close requests cancellation and waits for the goroutine to exit, bounded
// by ctx. If the work does not stop in time the error wraps ErrTimedOut and
// the task is still running. Closing an idle task only requests
// cancellation, so a later Start stops at the first poll.
func (t *Task) Close(ctx context.Context) error {
	switch t.State() {
	case StateIdle:
		t.RequestCancel()
		return nil
	case StateRunning:
		t.RequestCancel()
	}

	if _, err := t.WaitContext(ctx); err != nil {
		logging.Warn(t.ctx, "task did not stop before close deadline", t.fields(logging.Fields{
			logging.FieldError: err,
		}))
		return fmt.Errorf("close %s: %w", t.name, err)
	}
	return nil
}

// Subscribe registers obs for notifications. If the task already finished,
// obs receives the terminal event before Subscribe returns.
func (t *Task) Subscribe(obs Observer) *Subscription {
	if obs == nil {
		return nil
	}
	s := &Subscription{task: t, observer: obs}
	s.active.Store(true)

	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	t.nextSubID++
	s.id = t.nextSubID
	t.subs = append(t.subs, s)
	t.mu.Unlock()

	if t.terminalSent && s.terminal.CompareAndSwap(false, true) {
		t.deliver(s, t.terminalEvent)
	}
	return s
}

func (t *Task) removeSubscription(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.subs {
		if s.id == id {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			return
		}
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Progress returns the latest progress report, including rate-limited ones.
func (t *Task) Progress() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Duration returns how long the task ran, or has been running.
func (t *Task) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.startedAt.IsZero():
		return 0
	case t.endedAt.IsZero():
		return time.Since(t.startedAt)
	default:
		return t.endedAt.Sub(t.startedAt)
	}
}

// WatchdogMisses returns how many times the work went too long without polling.
func (t *Task) WatchdogMisses() int64 {
	return t.missedPoll.Load()
}

// Info is a point-in-time snapshot of a task for display and storage.
type Info struct {
	ID              string
	Name            string
	State           State
	Progress        Progress
	CancelRequested bool
	CreatedAt       time.Time
	StartedAt       time.Time
	EndedAt         time.Time
	Err             error
}

// Duration returns the run time, or zero if the task never started.
func (i Info) Duration() time.Duration {
	switch {
	case i.StartedAt.IsZero():
		return 0
	case i.EndedAt.IsZero():
		return time.Since(i.StartedAt)
	default:
		return i.EndedAt.Sub(i.StartedAt)
	}
}

// Info returns a snapshot of the task.
func (t *Task) Info() Info {
	state := t.State()
	t.mu.Lock()
	defer t.mu.Unlock()

	info := Info{
		ID:              t.id,
		Name:            t.name,
		State:           state,
		Progress:        t.progress,
		CancelRequested: t.cancelRequested.Load(),
		CreatedAt:       t.createdAt,
		StartedAt:       t.startedAt,
	}
	if state.IsTerminal() {
		info.EndedAt = t.endedAt
	}
	switch state {
	case StateCancelled:
		info.Err = ErrCanceled
	case StateFailed:
		info.Err = t.failure
	}
	return info
}

// =============================================================================
// EXECUTION
// =============================================================================

func (t *Task) run(work WorkFunc) {
	ctl := &Control{task: t, ctx: t.ctx, work: true}

	// The outcome is published from a deferred call so that work calling
	// runtime.Goexit still ends the task. Goexit skips the assignments
	// below and leaves the ErrGoexit failure in place.
	var (
		state   = StateFailed
		value   interface{}
		failure = &FailedError{TaskID: t.id, Reason: ErrGoexit}
		ran     bool
		cleaned bool
	)
	defer func() {
		switch {
		case !ran:
			logging.Error(t.ctx, "task work exited its goroutine", t.fields(nil))
			if cerr := t.cleanupAfterGoexit(); cerr != nil {
				logging.Warn(t.ctx, "task cleanup failed", t.fields(logging.Fields{
					logging.FieldError: cerr,
				}))
			}
		case !cleaned:
			logging.Error(t.ctx, "task cleanup exited its goroutine", t.fields(nil))
			state = StateFailed
			failure = &FailedError{TaskID: t.id, Reason: fmt.Errorf("cleanup: %w", ErrGoexit)}
		}
		t.finish(state, value, failure)
	}()

	v, panicked, err := t.invoke(ctl, work)
	ran = true
	value = v
	state, failure = t.classify(err, panicked)

	cerr := t.cleanup()
	cleaned = true
	if cerr != nil {
		if state == StateCompleted {
			state = StateFailed
			failure = &FailedError{TaskID: t.id, Reason: fmt.Errorf("cleanup: %w", cerr)}
		} else {
			logging.Warn(t.ctx, "task cleanup failed", t.fields(logging.Fields{
				logging.FieldError: cerr,
			}))
		}
	}
}

// cleanupAfterGoexit runs the cleanup hooks on a new goroutine, since the
// task goroutine is already unwinding.
func (t *Task) cleanupAfterGoexit() error {
	errc := make(chan error, 1)
	go func() {
		err := fmt.Errorf("cleanup: %w", ErrGoexit)
		defer func() { errc <- err }()
		err = t.cleanup()
	}()
	return <-errc
}

// invoke calls work, converting a panic into a FailedError.
func (t *Task) invoke(ctl *Control, work WorkFunc) (value interface{}, panicked *FailedError, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked = newPanicFailure(t.id, r)
		}
	}()
	value, err = work(ctl)
	return value, nil, err
}

// classify maps the work's exit to a terminal state.
func (t *Task) classify(err error, panicked *FailedError) (State, *FailedError) {
	if panicked != nil {
		return StateFailed, panicked
	}

	cancelled := false
	switch {
	case err == nil:
		cancelled = t.observed.Load()
	case isCancellation(err):
		cancelled = t.cancelRequested.Load()
	}

	if !cancelled {
		if err != nil {
			return StateFailed, &FailedError{TaskID: t.id, Reason: err}
		}
		return StateCompleted, nil
	}

	t.mu.Lock()
	cause := t.cause
	t.mu.Unlock()
	if cause != nil {
		return StateFailed, &FailedError{TaskID: t.id, Reason: cause}
	}
	return StateCancelled, nil
}

// cleanup runs cleanup hooks with a Control cancelled by the task or by the
// cleanup timeout.
func (t *Task) cleanup() error {
	if len(t.opts.cleanups) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(t.ctx, t.opts.cleanupTimeout)
	defer cancel()
	ctl := &Control{task: t, ctx: ctx}

	var errs []error
	for i := len(t.opts.cleanups) - 1; i >= 0; i-- {
		if err := t.invokeCleanup(ctl, t.opts.cleanups[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logging.Warn(t.ctx, "task cleanup exceeded timeout", t.fields(logging.Fields{
			"timeout": t.opts.cleanupTimeout.String(),
		}))
	}
	return errors.Join(errs...)
}

func (t *Task) invokeCleanup(ctl *Control, fn CleanupFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicFailure(t.id, r)
		}
	}()
	return fn(ctl)
}

// finish publishes the outcome, notifies observers and releases waiters.
func (t *Task) finish(state State, value interface{}, failure *FailedError) {
	if t.stopParent != nil {
		t.stopParent()
	}

	t.mu.Lock()
	t.endedAt = time.Now()
	if state == StateCompleted {
		t.result = value
	}
	t.failure = failure
	duration := t.endedAt.Sub(t.startedAt)
	t.mu.Unlock()

	if !t.transition(StateRunning, state) {
		logging.Error(t.ctx, "invalid task transition", t.fields(logging.Fields{
			logging.FieldState: t.State().String(),
			"target":           state.String(),
		}))
	}
	t.ctxCancel()

	ev := Event{
		Kind:     EventTerminal,
		TaskID:   t.id,
		TaskName: t.name,
		Time:     time.Now(),
		State:    state,
		Duration: duration,
	}
	fields := t.fields(logging.Fields{
		logging.FieldState:    state.String(),
		logging.FieldDuration: duration.String(),
	})
	switch state {
	case StateCompleted:
		ev.Result = value
		logging.Debug(t.ctx, "task completed", fields)
	case StateCancelled:
		ev.Err = ErrCanceled
		logging.Info(t.ctx, "task cancelled", fields)
	case StateFailed:
		ev.Err = failure
		fields[logging.FieldError] = failure.Reason
		if failure.Panicked() {
			fields[logging.FieldStackTrace] = string(failure.Stack)
		}
		logging.Error(t.ctx, "task failed", fields)
	}

	t.notifyMu.Lock()
	t.terminalSent = true
	t.terminalEvent = ev
	for _, s := range t.subscribers() {
		if s.terminal.CompareAndSwap(false, true) {
			t.deliver(s, ev)
		}
	}
	t.notifyMu.Unlock()

	close(t.done)
}

func (t *Task) reportProgress(p Progress) {
	t.mu.Lock()
	t.progress = p
	t.mu.Unlock()

	if t.limiter != nil && !t.limiter.Allow() {
		return
	}

	ev := Event{
		Kind:     EventProgress,
		TaskID:   t.id,
		TaskName: t.name,
		Time:     time.Now(),
		Progress: p,
	}

	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()
	if t.terminalSent {
		return
	}
	for _, s := range t.subscribers() {
		t.deliver(s, ev)
	}
}

func (t *Task) subscribers() []*Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Subscription, len(t.subs))
	copy(out, t.subs)
	return out
}

// deliver calls the observer, recovering panics so one bad observer does
// not take down the task goroutine.
func (t *Task) deliver(s *Subscription, ev Event) {
	if !s.active.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Error(t.ctx, "task observer panicked", t.fields(logging.Fields{
				logging.FieldError: fmt.Sprint(r),
				"event":            ev.Kind.String(),
			}))
		}
	}()
	s.observer.Notify(ev)
}

// =============================================================================
// WATCHDOG
// =============================================================================

func (t *Task) touch() {
	t.lastPoll.Store(time.Now().UnixNano())
}

// watch warns once per stretch in which the work has not polled for
// watchdogFactor poll intervals. Time spent in Control.Sleep counts as
// polling.
func (t *Task) watch() {
	limit := time.Duration(t.opts.watchdogFactor) * t.opts.pollInterval
	ticker := time.NewTicker(t.opts.pollInterval)
	defer ticker.Stop()

	warned := false
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}

		if t.State().IsTerminal() || t.sleeping.Load() > 0 {
			warned = false
			continue
		}
		idle := time.Since(time.Unix(0, t.lastPoll.Load()))
		if idle <= limit {
			warned = false
			continue
		}
		if !warned {
			warned = true
			t.missedPoll.Add(1)
			logging.Warn(t.ctx, "task has not polled for cancellation", t.fields(logging.Fields{
				"idle":  idle.Round(time.Millisecond).String(),
				"limit": limit.String(),
			}))
		}
	}
}

func (t *Task) fields(extra logging.Fields) logging.Fields {
	return logging.WithFields(logging.Fields{
		logging.FieldTaskID:   t.id,
		logging.FieldTaskName: t.name,
	}, extra)
}
