// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jeranaias/bgtask/internal/config"
	"github.com/jeranaias/bgtask/internal/logging"
	"github.com/jeranaias/bgtask/internal/ui/monitor"
)

// errNotTerminal is returned when the demo is started without a terminal.
var errNotTerminal = errors.New("demo requires an interactive terminal")

func newDemoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Interactive monitor for long actions",
		Long: `Show two variables and a status line.

  s  regenerate the variables immediately
  l  start the long action (regenerates the variables when it completes)
  f  start a long action that fails half way
  c  cancel the running action
  q  cancel, wait for the action to stop and quit

Edits to the config file apply to the next long action.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !IsTTY() || !IsStdoutTTY() {
				return &CommandError{Command: "demo", Action: "start", Err: errNotTerminal, Code: ExitUsageError}
			}
			return a.runDemo(cmd.Context())
		},
	}
}

func (a *app) runDemo(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := a.setupLogging(cfg, true); err != nil {
		return err
	}

	j, err := a.openJournal(ctx, cfg)
	if err != nil {
		return err
	}

	settings := monitor.SettingsFromConfig(cfg)
	if j != nil {
		settings.Observer = j
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if updates := a.watchSettings(watchCtx); updates != nil {
		settings.Updates = updates
	}

	runErr := monitor.Run(ctx, settings, monitorOptions()...)
	if j != nil {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settings.CleanupTimeout)
		defer cancel()
		if err := j.Flush(flushCtx); err != nil {
			logging.Warn(ctx, "journal flush incomplete", logging.Fields{logging.FieldError: err})
		}
		runErr = errors.Join(runErr, j.Close())
	}
	return runErr
}

// watchSettings reloads the config file on change and feeds the monitor.
// It returns nil when there is no file to watch.
func (a *app) watchSettings(ctx context.Context) <-chan monitor.Settings {
	path := a.configPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return nil
		}
		path = p
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	updates := make(chan monitor.Settings, 1)
	err := config.Watch(ctx, path, func(cfg *config.Config, err error) {
		if err != nil {
			logging.Warn(ctx, "config reload failed", logging.Fields{logging.FieldError: err})
			return
		}
		config.SetGlobal(cfg)
		logging.Info(ctx, "config reloaded", logging.Fields{"path": path})

		// Keep only the newest settings.
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- monitor.SettingsFromConfig(cfg):
		default:
		}
	})
	if err != nil {
		logging.Warn(ctx, "config watch unavailable", logging.Fields{logging.FieldError: err})
		return nil
	}
	return updates
}

// monitorOptions selects the program input and output. Colours follow
// NO_COLOR and FORCE_COLOR.
func monitorOptions() []tea.ProgramOption {
	lipgloss.SetColorProfile(GetColorProfile())
	return []tea.ProgramOption{tea.WithInput(os.Stdin), tea.WithOutput(os.Stdout)}
}
