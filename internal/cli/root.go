// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/bgtask/internal/logging"
	"github.com/spf13/cobra"
)

// Version information, set from main.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// NewRootCommand builds the bgtask command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "bgtask",
		Short: "Cancellable background tasks with progress and outcome journal",
		Long: `bgtask runs long actions on background goroutines that report progress,
can be asked to stop early and always end in exactly one of Completed,
Cancelled or Failed.

Outcomes are recorded in a SQLite journal (~/.bgtask/journal.db) unless
disabled in ~/.bgtask/config.toml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	root.SetVersionTemplate(fmt.Sprintf("bgtask %s (commit %s, built %s)\n", Version, GitCommit, BuildDate))

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: ~/.bgtask/config.toml)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.BoolVar(&a.jsonOutput, "json", false, "print machine readable JSON")

	root.AddCommand(
		newRunCommand(a),
		newDemoCommand(a),
		newHistoryCommand(a),
		newConfigCommand(a),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
// SIGINT and SIGTERM cancel the command context, which cancels running
// tasks.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCommand().ExecuteContext(ctx)
	_ = logging.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return ExitCode(err)
}
