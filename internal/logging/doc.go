// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the process-wide zap logger used by bgtask.
//
// A logger is assembled from up to two sinks:
//
//   - console: human readable (optionally coloured) output on stderr
//   - file: JSON lines appended to a file through a buffered writer that is
//     flushed periodically and immediately for entries at or above FlushOn
//
// Each sink has its own minimum level, and Level acts as a floor for both.
// Until Setup is called every helper is a no-op.
//
// # Usage
//
//	err := logging.Setup(logging.Config{Level: "debug", Console: true, ConsoleLevel: "info"})
//	defer logging.Sync()
//	logging.Info(ctx, "task: started", logging.Fields{logging.FieldTaskID: id})
package logging
