// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"strings"

	"github.com/jeranaias/bgtask/internal/config"
	"github.com/jeranaias/bgtask/internal/journal"
	"github.com/jeranaias/bgtask/internal/logging"
)

// app holds the global flags shared by every command.
type app struct {
	configPath string
	logLevel   string
	jsonOutput bool
}

// loadConfig reads --config when given, otherwise ~/.bgtask/config.toml or
// the defaults. --log-level overrides the configured floor.
func (a *app) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &CommandError{Command: "config", Action: "load", Err: err, Code: ExitConfigError}
	}
	if a.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(a.logLevel)
		cfg.Logging.ConsoleLevel = cfg.Logging.Level
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// setupLogging installs the process logger. In quiet mode the console sink
// is disabled so log lines never interleave with a full-screen UI; without a
// file sink the logger stays a no-op.
func (a *app) setupLogging(cfg *config.Config, quiet bool) error {
	lc := loggingConfig(cfg.Logging)
	if quiet || a.jsonOutput {
		lc.Console = false
	}
	if !lc.Console && lc.File == "" {
		logging.SetLogger(nil)
		return nil
	}
	if err := logging.Setup(lc); err != nil {
		return &CommandError{Command: "logging", Action: "setup", Err: err, Code: ExitConfigError}
	}
	return nil
}

func loggingConfig(c config.LoggingConfig) logging.Config {
	return logging.Config{
		Level:         c.Level,
		Console:       c.Console,
		ConsoleLevel:  c.ConsoleLevel,
		Color:         c.Color && ColorsEnabled(),
		JSON:          c.JSON,
		File:          c.File,
		FileLevel:     c.FileLevel,
		FlushInterval: c.FlushInterval.Duration,
		FlushOn:       c.FlushOn,
	}
}

// openJournal opens the configured journal. It returns nil when the
// journal is disabled.
func (a *app) openJournal(ctx context.Context, cfg *config.Config) (*journal.Journal, error) {
	if !cfg.Journal.Enabled {
		logging.Debug(ctx, "journal disabled", nil)
		return nil, nil
	}
	path, err := cfg.JournalPath()
	if err != nil {
		return nil, &CommandError{Command: "journal", Action: "resolve path", Err: err}
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, &CommandError{Command: "journal", Action: "open", Err: err}
	}
	return j, nil
}
