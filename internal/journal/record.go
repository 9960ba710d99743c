// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeranaias/bgtask/internal/tasks"
)

// Record is one stored task outcome.
type Record struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	State      string `db:"state" json:"state"`
	Reason     string `db:"reason" json:"reason,omitempty"`
	StartedAt  int64  `db:"started_at" json:"started_at"`
	EndedAt    int64  `db:"ended_at" json:"ended_at"`
	DurationMs int64  `db:"duration_ms" json:"duration_ms"`
	Payload    string `db:"payload" json:"payload"`
}

// Started returns the start time.
func (r Record) Started() time.Time { return time.UnixMilli(r.StartedAt) }

// Ended returns the end time.
func (r Record) Ended() time.Time { return time.UnixMilli(r.EndedAt) }

// Duration returns how long the task ran.
func (r Record) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}

// payload is the JSON document stored with each record.
type payload struct {
	Result     interface{} `json:"result,omitempty"`
	ResultType string      `json:"result_type,omitempty"`
	Panicked   bool        `json:"panicked,omitempty"`
	Stack      string      `json:"stack,omitempty"`
}

// RecordFromEvent builds a record from a terminal event.
func RecordFromEvent(ev tasks.Event) (Record, error) {
	if !ev.Terminal() {
		return Record{}, fmt.Errorf("event for task %s is not terminal", ev.TaskID)
	}

	ended := ev.Time
	started := ended.Add(-ev.Duration)
	rec := Record{
		ID:         ev.TaskID,
		Name:       ev.TaskName,
		State:      ev.State.String(),
		StartedAt:  started.UnixMilli(),
		EndedAt:    ended.UnixMilli(),
		DurationMs: ev.Duration.Milliseconds(),
	}

	var p payload
	if ev.Err != nil {
		rec.Reason = ev.Err.Error()
		if failed, ok := ev.Err.(*tasks.FailedError); ok {
			rec.Reason = failed.Reason.Error()
			p.Panicked = failed.Panicked()
			p.Stack = string(failed.Stack)
		}
	}
	if ev.Result != nil {
		p.Result = ev.Result
		p.ResultType = fmt.Sprintf("%T", ev.Result)
	}

	data, err := json.Marshal(p)
	if err != nil {
		// Results that do not encode are stored by type only.
		p.Result = nil
		if data, err = json.Marshal(p); err != nil {
			return Record{}, err
		}
	}
	rec.Payload = string(data)
	return rec, nil
}
