// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunnerCompletesTasks(t *testing.T) {
	runner := NewRunner(NewRegistry(10))
	task := New()
	require.NoError(t, runner.Submit(task, returns("ok", nil)))

	state, err := task.Wait(time.Second)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, state)
	require.Same(t, task, runner.Registry().Get(task.ID()))

	require.NoError(t, runner.Stop(context.Background()))
}

func TestRunnerConcurrencyLimit(t *testing.T) {
	runner := NewRunnerWithOptions(NewRegistry(10), 2, 0)

	var current, peak atomic.Int32
	work := func(ctl *Control) (interface{}, error) {
		n := current.Add(1)
		defer current.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		ctl.Sleep(30 * time.Millisecond)
		return nil, nil
	}

	var submitted []*Task
	for i := 0; i < 5; i++ {
		task := New()
		require.NoError(t, runner.Submit(task, work))
		submitted = append(submitted, task)
	}
	for _, task := range submitted {
		state, err := task.Wait(2 * time.Second)
		require.NoError(t, err)
		require.Equal(t, StateCompleted, state)
	}

	require.LessOrEqual(t, peak.Load(), int32(2))
	require.NoError(t, runner.Stop(context.Background()))
}

func TestRunnerTimeoutFailsTask(t *testing.T) {
	runner := NewRunnerWithOptions(NewRegistry(10), 1, 30*time.Millisecond)
	task := New()
	require.NoError(t, runner.Submit(task, untilCanceled))

	state, err := task.Wait(time.Second)
	require.NoError(t, err)
	require.Equal(t, StateFailed, state)

	_, err = task.Result()
	require.ErrorIs(t, err, ErrDeadlineExceeded)
	require.NoError(t, runner.Stop(context.Background()))
}

func TestRunnerRejectsStartedTask(t *testing.T) {
	runner := NewRunner(NewRegistry(10))
	task := New()
	require.NoError(t, task.Start(returns(nil, nil)))
	_, _ = task.Wait(time.Second)

	require.ErrorIs(t, runner.Submit(task, returns(nil, nil)), ErrAlreadyStarted)
	require.ErrorIs(t, runner.Submit(New(), nil), ErrNilWork)
	require.NoError(t, runner.Stop(context.Background()))
}

func TestRunnerStopCancelsRunningAndQueued(t *testing.T) {
	runner := NewRunnerWithOptions(NewRegistry(10), 1, 0)

	running := New()
	queued := New()
	require.NoError(t, runner.Submit(running, untilCanceled))
	require.NoError(t, runner.Submit(queued, untilCanceled))
	require.Eventually(t, func() bool { return running.State() == StateRunning }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, runner.Stop(ctx))

	require.Equal(t, StateCancelled, running.State())
	require.Equal(t, StateCancelled, queued.State())
	require.ErrorIs(t, runner.Submit(New(), returns(nil, nil)), ErrRunnerStopped)
}

func TestRegistryCloseWaitsForQueuedTask(t *testing.T) {
	reg := NewRegistry(10)
	runner := NewRunnerWithOptions(reg, 1, 0)

	running := New()
	queued := New()
	require.NoError(t, runner.Submit(running, untilCanceled))
	require.NoError(t, runner.Submit(queued, untilCanceled))
	require.Eventually(t, func() bool { return running.State() == StateRunning }, time.Second, time.Millisecond)
	require.Equal(t, StateIdle, queued.State())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, reg.Close(ctx))

	require.Equal(t, StateCancelled, running.State())
	require.Equal(t, StateCancelled, queued.State())
	require.NoError(t, runner.Stop(ctx))
}
