// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package monitor is a terminal model/view demo of cancellable tasks.
//
// The model holds two variables and a status line. A short action
// regenerates the variables at once; a long action regenerates them on a
// background task that can be cancelled. Task notifications reach the
// Bubble Tea event loop through a tasks.Inbox.
//
// # Keys
//
//   - s: short action
//   - l: long action
//   - f: long action that fails part way
//   - c: cancel the long action
//   - q, ctrl+c: quit (cancels and joins running tasks)
package monitor
