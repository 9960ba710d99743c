// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package journal records task outcomes in a SQLite database.
//
// A Journal is a tasks.Observer. It queues terminal events and writes them
// from its own goroutine, so observed tasks never wait on disk I/O.
//
// # Usage
//
//	j, err := journal.Open(path)
//	defer j.Close()
//
//	task := tasks.New()
//	j.Observe(task)
//	...
//	recent, err := j.Recent(ctx, 20)
//	failed, err := j.ByState(ctx, tasks.StateFailed, 20)
package journal
