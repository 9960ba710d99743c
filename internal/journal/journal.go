// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/bgtask/internal/logging"
	"github.com/jeranaias/bgtask/internal/tasks"
)

// =============================================================================
// JOURNAL
// =============================================================================

// ErrNotFound is returned by Get for an unknown task ID.
var ErrNotFound = errors.New("record not found")

// Journal stores terminal task events in SQLite.
type Journal struct {
	db   *sqlx.DB
	path string

	inbox   *tasks.Inbox
	pending atomic.Int64
	writer  sync.WaitGroup

	closeOnce sync.Once
	closed    atomic.Bool
}

// Open opens or creates the journal database at path and starts its
// writer goroutine.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "create journal directory")
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open journal %s", path)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "set %q", pragma)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize journal schema")
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize journal metadata")
	}

	j := &Journal{
		db:    db,
		path:  path,
		inbox: tasks.NewInbox(),
	}
	j.writer.Add(1)
	go j.writeLoop()
	return j, nil
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

// Close writes queued records and closes the database.
func (j *Journal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		j.closed.Store(true)
		j.inbox.Close()
		j.writer.Wait()
		err = errors.Wrap(j.db.Close(), "close journal")
	})
	return err
}

// =============================================================================
// OBSERVER
// =============================================================================

// Observe subscribes the journal to task.
func (j *Journal) Observe(task *tasks.Task) *tasks.Subscription {
	return task.Subscribe(j)
}

// Notify queues terminal events for writing. Progress events are ignored.
func (j *Journal) Notify(ev tasks.Event) {
	if !ev.Terminal() || j.closed.Load() {
		return
	}
	// Close may win between the check above and Offer.
	j.pending.Add(1)
	if !j.inbox.Offer(ev) {
		j.pending.Add(-1)
	}
}

func (j *Journal) writeLoop() {
	defer j.writer.Done()

	for {
		ev, err := j.inbox.Next(context.Background())
		if err != nil {
			return
		}
		if err := j.write(ev); err != nil {
			logging.Error(context.Background(), "journal write failed", logging.Fields{
				logging.FieldComponent: "journal",
				logging.FieldTaskID:    ev.TaskID,
				logging.FieldError:     err,
			})
		}
		j.pending.Add(-1)
	}
}

func (j *Journal) write(ev tasks.Event) error {
	rec, err := RecordFromEvent(ev)
	if err != nil {
		return errors.Wrap(err, "build record")
	}
	return j.Insert(context.Background(), rec)
}

// Flush waits until every queued event is written, bounded by ctx.
func (j *Journal) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for j.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "flush journal")
		case <-ticker.C:
		}
	}
	return nil
}

// =============================================================================
// STORAGE
// =============================================================================

// Insert stores rec, replacing any record with the same ID.
func (j *Journal) Insert(ctx context.Context, rec Record) error {
	if rec.Payload == "" {
		rec.Payload = "{}"
	}
	if _, err := j.db.NamedExecContext(ctx, insertRecord, rec); err != nil {
		return errors.Wrapf(err, "insert task record %s", rec.ID)
	}
	return nil
}

// Get returns the record for a task ID.
func (j *Journal) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := j.db.GetContext(ctx, &rec,
		`SELECT `+selectColumns+` FROM task_records WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, errors.Wrapf(ErrNotFound, "task %s", id)
	}
	if err != nil {
		return Record{}, errors.Wrapf(err, "get task record %s", id)
	}
	return rec, nil
}

// Recent returns up to limit records, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Record, error) {
	records := []Record{}
	err := j.db.SelectContext(ctx, &records,
		`SELECT `+selectColumns+` FROM task_records
		 ORDER BY ended_at DESC, id LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, errors.Wrap(err, "query recent task records")
	}
	return records, nil
}

// ByState returns up to limit records in the given state, newest first.
func (j *Journal) ByState(ctx context.Context, state tasks.State, limit int) ([]Record, error) {
	records := []Record{}
	err := j.db.SelectContext(ctx, &records,
		`SELECT `+selectColumns+` FROM task_records WHERE state = ?
		 ORDER BY ended_at DESC, id LIMIT ?`, state.String(), normalizeLimit(limit))
	if err != nil {
		return nil, errors.Wrapf(err, "query %s task records", state)
	}
	return records, nil
}

// Count returns the number of stored records.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM task_records`); err != nil {
		return 0, errors.Wrap(err, "count task records")
	}
	return n, nil
}

// Prune deletes all but the newest keep records and returns how many were
// removed.
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM task_records WHERE id NOT IN (
		   SELECT id FROM task_records ORDER BY ended_at DESC, id LIMIT ?)`, keep)
	if err != nil {
		return 0, errors.Wrap(err, "prune task records")
	}
	return res.RowsAffected()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return -1 // SQLite: no limit
	}
	return limit
}
