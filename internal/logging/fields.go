// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"sort"

	"go.uber.org/zap"
)

// Fields is a set of structured log fields.
type Fields map[string]interface{}

const (
	FieldTaskID     = "task_id"
	FieldTaskName   = "task_name"
	FieldState      = "state"
	FieldError      = "error"
	FieldDuration   = "duration"
	FieldComponent  = "component"
	FieldStackTrace = "stack_trace"
	FieldProgress   = "progress"
)

// WithFields returns a copy of base with extra merged in.
func WithFields(base Fields, extra Fields) Fields {
	out := make(Fields, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// zapFields converts fields to zap fields in key order so output is stable.
func (f Fields) zapFields() []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.String(k, err.Error()))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
