// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for bgtask.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - TasksConfig: Polling granularity, cleanup bounds and runner limits
//   - LoggingConfig: Console and file sinks with per-sink levels
//   - JournalConfig: Location of the task outcome journal
//   - DemoConfig: Shape of the long action run by the demo
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (BGTASK_*)
//   - ~/.bgtask/config.toml (or the file given with --config)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	poll := cfg.Tasks.PollInterval.Duration
package config
