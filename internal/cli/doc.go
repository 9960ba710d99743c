// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the bgtask command line.
//
// # Commands Overview
//
//   - run: run a long action headless and report its outcome
//   - demo: interactive terminal monitor
//   - history: list recorded task outcomes
//   - config show | init: inspect or create the config file
//
// Global flags: --config, --log-level, --json.
//
// # Usage
//
//	os.Exit(cli.Execute())
package cli
