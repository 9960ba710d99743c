// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrAlreadyStarted is returned by Start on a task that is not Idle.
	ErrAlreadyStarted = errors.New("task already started")

	// ErrTimedOut is returned by Wait when the timeout elapses first.
	// The task keeps running.
	ErrTimedOut = errors.New("timed out waiting for task")

	// ErrCanceled is what work returns after observing a cancel request,
	// and what Result returns for a cancelled task.
	ErrCanceled = errors.New("task canceled")

	// ErrNotFinished is returned by Result before the task is terminal.
	ErrNotFinished = errors.New("task not finished")

	// ErrDeadlineExceeded is the failure reason of a task stopped by a
	// runner timeout.
	ErrDeadlineExceeded = errors.New("task deadline exceeded")

	// ErrNilWork is returned by Start when work is nil.
	ErrNilWork = errors.New("work function is nil")

	// ErrGoexit is the failure reason when work or a cleanup hook ends its
	// goroutine with runtime.Goexit instead of returning.
	ErrGoexit = errors.New("goroutine exited via runtime.Goexit")
)

// FailedError is the typed failure of a task in StateFailed.
type FailedError struct {
	// TaskID is the task that failed.
	TaskID string

	// Reason is the error returned by the work, or the recovered panic.
	Reason error

	// Stack is the goroutine stack at the panic site. Empty for returned errors.
	Stack []byte
}

func (e *FailedError) Error() string {
	if len(e.Stack) > 0 {
		return fmt.Sprintf("task %s panicked: %v", e.TaskID, e.Reason)
	}
	return fmt.Sprintf("task %s failed: %v", e.TaskID, e.Reason)
}

func (e *FailedError) Unwrap() error {
	return e.Reason
}

// Panicked reports whether the failure came from a panic.
func (e *FailedError) Panicked() bool {
	return len(e.Stack) > 0
}

// newPanicFailure converts a recovered value into a FailedError. The stack
// is captured relative to the deferred recover.
func newPanicFailure(taskID string, recovered interface{}) *FailedError {
	wrapped := goerrors.Wrap(recovered, 3)
	return &FailedError{
		TaskID: taskID,
		Reason: wrapped,
		Stack:  wrapped.Stack(),
	}
}

// isCancellation reports whether err is how work says "I saw the cancel".
func isCancellation(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}
