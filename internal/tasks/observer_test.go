// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInboxPreservesOrder(t *testing.T) {
	inbox := NewInbox()
	task := New(WithObserver(inbox))
	require.NoError(t, task.Start(LoopWork(5, time.Millisecond, nil)))
	_, _ = task.Wait(time.Second)

	require.Equal(t, 6, inbox.Len())
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		ev, err := inbox.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, EventProgress, ev.Kind)
		require.Equal(t, i, ev.Progress.Value)
	}
	ev, err := inbox.Next(ctx)
	require.NoError(t, err)
	require.True(t, ev.Terminal())
	require.Equal(t, StateCompleted, ev.State)
}

func TestInboxNextBlocksUntilNotify(t *testing.T) {
	inbox := NewInbox()
	got := make(chan Event, 1)
	go func() {
		ev, err := inbox.Next(context.Background())
		if err == nil {
			got <- ev
		}
		close(got)
	}()

	time.Sleep(10 * time.Millisecond)
	inbox.Notify(Event{TaskID: "a"})

	select {
	case ev := <-got:
		require.Equal(t, "a", ev.TaskID)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Notify")
	}
}

func TestInboxNextHonorsContext(t *testing.T) {
	inbox := NewInbox()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := inbox.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInboxClose(t *testing.T) {
	inbox := NewInbox()
	inbox.Notify(Event{TaskID: "queued"})
	inbox.Close()
	inbox.Close()
	inbox.Notify(Event{TaskID: "dropped"})

	ev, err := inbox.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "queued", ev.TaskID)

	_, err = inbox.Next(context.Background())
	require.ErrorIs(t, err, ErrInboxClosed)
}

func TestInboxOfferReportsClosed(t *testing.T) {
	inbox := NewInbox()
	require.True(t, inbox.Offer(Event{TaskID: "a"}))
	inbox.Close()
	require.False(t, inbox.Offer(Event{TaskID: "b"}))
	require.Equal(t, 1, inbox.Len())
}

func TestInboxDrain(t *testing.T) {
	inbox := NewInbox()
	inbox.Notify(Event{TaskID: "a"})
	inbox.Notify(Event{TaskID: "b"})

	events := inbox.Drain()
	require.Len(t, events, 2)
	require.Equal(t, "b", events[1].TaskID)
	require.Zero(t, inbox.Len())
}

func TestEventKindString(t *testing.T) {
	require.Equal(t, "progress", EventProgress.String())
	require.Equal(t, "terminal", EventTerminal.String())
}
