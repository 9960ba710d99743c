// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package journal

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/bgtask/internal/tasks"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "state", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func runTask(t *testing.T, j *Journal, name string, work tasks.WorkFunc) *tasks.Task {
	t.Helper()
	task := tasks.New(tasks.WithName(name))
	j.Observe(task)
	require.NoError(t, task.Start(work))
	_, err := task.Wait(time.Second)
	require.NoError(t, err)
	return task
}

func TestJournalRecordsOutcomes(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	done := runTask(t, j, "short", func(*tasks.Control) (interface{}, error) {
		return map[string]int{"var1": 3, "var2": 7}, nil
	})
	failed := runTask(t, j, "broken", func(*tasks.Control) (interface{}, error) {
		return nil, errors.New("disk full")
	})
	cancelled := tasks.New(tasks.WithName("long"))
	j.Observe(cancelled)
	cancelled.RequestCancel()
	require.NoError(t, cancelled.Start(tasks.LoopWork(50, 100*time.Millisecond, nil)))
	_, _ = cancelled.Wait(time.Second)

	require.NoError(t, j.Flush(ctx))

	n, err := j.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	rec, err := j.Get(ctx, done.ID())
	require.NoError(t, err)
	require.Equal(t, "short", rec.Name)
	require.Equal(t, "Completed", rec.State)
	require.Empty(t, rec.Reason)
	require.GreaterOrEqual(t, rec.EndedAt, rec.StartedAt)

	var p payload
	require.NoError(t, json.Unmarshal([]byte(rec.Payload), &p))
	require.Equal(t, "map[string]int", p.ResultType)

	rec, err = j.Get(ctx, failed.ID())
	require.NoError(t, err)
	require.Equal(t, "Failed", rec.State)
	require.Equal(t, "disk full", rec.Reason)

	rec, err = j.Get(ctx, cancelled.ID())
	require.NoError(t, err)
	require.Equal(t, "Cancelled", rec.State)
	require.Equal(t, tasks.ErrCanceled.Error(), rec.Reason)
}

func TestJournalQueries(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	states := []string{"Completed", "Failed", "Completed", "Cancelled"}
	for i, state := range states {
		require.NoError(t, j.Insert(ctx, Record{
			ID:         string(rune('a' + i)),
			Name:       "task",
			State:      state,
			StartedAt:  base.Add(time.Duration(i) * time.Minute).UnixMilli(),
			EndedAt:    base.Add(time.Duration(i)*time.Minute + time.Second).UnixMilli(),
			DurationMs: 1000,
		}))
	}

	recent, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "d", recent[0].ID)
	require.Equal(t, "c", recent[1].ID)
	require.Equal(t, time.Second, recent[0].Duration())
	require.Equal(t, "{}", recent[0].Payload)

	all, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)

	completed, err := j.ByState(ctx, tasks.StateCompleted, 10)
	require.NoError(t, err)
	require.Len(t, completed, 2)
	require.Equal(t, "c", completed[0].ID)

	_, err = j.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	removed, err := j.Prune(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 3, removed)
	n, err := j.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestJournalPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, path, j.Path())

	task := runTask(t, j, "persist", func(*tasks.Control) (interface{}, error) { return "ok", nil })
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	rec, err := reopened.Get(context.Background(), task.ID())
	require.NoError(t, err)
	require.Equal(t, "persist", rec.Name)
}

func TestRecordFromEventRejectsProgress(t *testing.T) {
	_, err := RecordFromEvent(tasks.Event{Kind: tasks.EventProgress, TaskID: "x"})
	require.Error(t, err)
}

func TestRecordFromEventPanic(t *testing.T) {
	task := tasks.New()
	inbox := tasks.NewInbox()
	task.Subscribe(inbox)
	require.NoError(t, task.Start(func(*tasks.Control) (interface{}, error) { panic("kaboom") }))
	_, _ = task.Wait(time.Second)

	events := inbox.Drain()
	require.Len(t, events, 1)

	rec, err := RecordFromEvent(events[0])
	require.NoError(t, err)
	require.Equal(t, "Failed", rec.State)
	require.Contains(t, rec.Reason, "kaboom")

	var p payload
	require.NoError(t, json.Unmarshal([]byte(rec.Payload), &p))
	require.True(t, p.Panicked)
	require.NotEmpty(t, p.Stack)
}

func TestRecordFromEventUnencodableResult(t *testing.T) {
	rec, err := RecordFromEvent(tasks.Event{
		Kind:   tasks.EventTerminal,
		TaskID: "x",
		State:  tasks.StateCompleted,
		Result: make(chan int),
		Time:   time.Now(),
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"result_type":"chan int"}`, rec.Payload)
}

func TestNotifyAfterInboxClosedKeepsFlushPrompt(t *testing.T) {
	j := openTestJournal(t)

	// The inbox closes between the closed check and queueing.
	j.inbox.Close()
	j.Notify(tasks.Event{Kind: tasks.EventTerminal, TaskID: "late", State: tasks.StateCompleted})
	require.Zero(t, j.pending.Load())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, j.Flush(ctx))

	require.NoError(t, j.Close())
	j.Notify(tasks.Event{Kind: tasks.EventTerminal, TaskID: "closed", State: tasks.StateCompleted})
	require.Zero(t, j.pending.Load())
}
