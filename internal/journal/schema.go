// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package journal

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// Schema creates the task_records table. Times are Unix milliseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS task_records (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    state TEXT NOT NULL,        -- Completed, Cancelled, Failed
    reason TEXT NOT NULL DEFAULT '',
    started_at INTEGER NOT NULL,
    ended_at INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    payload TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_task_records_state ON task_records(state);
CREATE INDEX IF NOT EXISTS idx_task_records_ended_at ON task_records(ended_at);
`

// InitMetadata seeds the metadata table.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
`

const insertRecord = `
INSERT OR REPLACE INTO task_records
    (id, name, state, reason, started_at, ended_at, duration_ms, payload)
VALUES
    (:id, :name, :state, :reason, :started_at, :ended_at, :duration_ms, :payload)`

const selectColumns = `id, name, state, reason, started_at, ended_at, duration_ms, payload`
