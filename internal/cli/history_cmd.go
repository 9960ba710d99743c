// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/bgtask/internal/journal"
	"github.com/jeranaias/bgtask/internal/tasks"
	"github.com/jeranaias/bgtask/internal/util"
)

var errJournalDisabled = errors.New("journal is disabled in the config")

type historyOptions struct {
	state string
	limit int
}

func newHistoryCommand(a *app) *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history [task-id]",
		Short: "List recorded task outcomes",
		Long: `List the most recent task outcomes from the journal, newest first.
With a task ID, show that record in full.`,
		Example: `  bgtask history
  bgtask history --state failed --limit 5
  bgtask history 3f2b9c1e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return a.withJournal(cmd.Context(), func(ctx context.Context, j *journal.Journal) error {
					return a.showRecord(ctx, cmd.OutOrStdout(), j, args[0])
				})
			}
			var filter *tasks.State
			if opts.state != "" {
				s, err := tasks.ParseState(opts.state)
				if err != nil {
					return &UsageError{Flag: "state", Reason: err.Error(), Example: "bgtask history --state cancelled"}
				}
				filter = &s
			}
			return a.withJournal(cmd.Context(), func(ctx context.Context, j *journal.Journal) error {
				return a.listRecords(ctx, cmd.OutOrStdout(), j, filter, opts.limit)
			})
		},
	}
	cmd.Flags().StringVar(&opts.state, "state", "", "only show records in this state (completed, cancelled, failed)")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "maximum number of records (0 = all)")

	cmd.AddCommand(newHistoryPruneCommand(a))
	return cmd
}

func newHistoryPruneCommand(a *app) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if keep < 0 {
				return &UsageError{Flag: "keep", Reason: "must not be negative", Example: "bgtask history prune --keep 100"}
			}
			return a.withJournal(cmd.Context(), func(ctx context.Context, j *journal.Journal) error {
				n, err := j.Prune(ctx, keep)
				if err != nil {
					return &CommandError{Command: "history prune", Action: "delete records", Err: err}
				}
				if a.jsonOutput {
					return NewJSONResponse("history prune", map[string]int64{"deleted": n}).Write(cmd.OutOrStdout())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d record(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 100, "number of newest records to keep")
	return cmd
}

// withJournal loads the config, opens the journal and closes it after fn.
func (a *app) withJournal(ctx context.Context, fn func(context.Context, *journal.Journal) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := a.setupLogging(cfg, false); err != nil {
		return err
	}
	j, err := a.openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	if j == nil {
		return &CommandError{Command: "history", Action: "open journal", Err: errJournalDisabled, Code: ExitConfigError}
	}
	return errors.Join(fn(ctx, j), j.Close())
}

func (a *app) listRecords(ctx context.Context, out io.Writer, j *journal.Journal, state *tasks.State, limit int) error {
	var (
		records []journal.Record
		err     error
	)
	if state != nil {
		records, err = j.ByState(ctx, *state, limit)
	} else {
		records, err = j.Recent(ctx, limit)
	}
	if err != nil {
		return &CommandError{Command: "history", Action: "query journal", Err: err}
	}

	if a.jsonOutput {
		if records == nil {
			records = []journal.Record{}
		}
		return NewJSONResponse("history", records).Write(out)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No recorded tasks")
		return nil
	}

	r := newRenderer(out)
	header := r.NewStyle().Bold(true)
	reasonWidth := max(GetTerminalWidth()-62, 10)
	fmt.Fprintln(out, header.Render(fmt.Sprintf("%-8s  %-20s  %-14s  %-19s  %8s  %s",
		"ID", "NAME", "STATE", "ENDED", "DURATION", "REASON")))
	for _, rec := range records {
		state, err := tasks.ParseState(rec.State)
		if err != nil {
			state = tasks.State(-1)
		}
		fmt.Fprintf(out, "%-8s  %s  %s  %-19s  %8s  %s\n",
			util.ShortID(rec.ID),
			padRight(util.TruncateWidth(rec.Name, 20), 20),
			stateCell(r, state, 14),
			rec.Ended().Local().Format("2006-01-02 15:04:05"),
			util.FormatDuration(rec.Duration()),
			util.TruncateWidth(rec.Reason, reasonWidth),
		)
	}
	return nil
}

func (a *app) showRecord(ctx context.Context, out io.Writer, j *journal.Journal, id string) error {
	rec, err := j.Get(ctx, id)
	if err != nil {
		code := ExitGeneralError
		if errors.Is(err, journal.ErrNotFound) {
			code = ExitNotFoundError
		}
		return &CommandError{Command: "history", Action: "get record", Err: err, Code: code}
	}

	if a.jsonOutput {
		return NewJSONResponse("history", rec).Write(out)
	}

	state, err := tasks.ParseState(rec.State)
	if err != nil {
		state = tasks.State(-1)
	}
	r := newRenderer(out)
	field(out, r, "ID", rec.ID)
	field(out, r, "Name", rec.Name)
	field(out, r, "State", stateLabel(r, state))
	field(out, r, "Started", rec.Started().Local().Format("2006-01-02 15:04:05.000"))
	field(out, r, "Ended", rec.Ended().Local().Format("2006-01-02 15:04:05.000"))
	field(out, r, "Duration", util.FormatDuration(rec.Duration()))
	if rec.Reason != "" {
		field(out, r, "Reason", rec.Reason)
	}
	field(out, r, "Payload", rec.Payload)
	return nil
}
