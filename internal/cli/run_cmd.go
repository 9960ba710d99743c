// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/bgtask/internal/config"
	"github.com/jeranaias/bgtask/internal/logging"
	"github.com/jeranaias/bgtask/internal/tasks"
	"github.com/jeranaias/bgtask/internal/util"
)

type runOptions struct {
	name        string
	iterations  int
	step        time.Duration
	cancelAfter time.Duration
	fail        bool
}

// RunResult is the outcome printed by the run command.
type RunResult struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	State      string `json:"state"`
	DurationMs int64  `json:"duration_ms"`
	Steps      int    `json:"steps"`
	Result     any    `json:"result,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func newRunCommand(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a long action headless and report how it ended",
		Long: `Run a long action that sleeps --step, --iterations times, polling for
cancellation between steps. --cancel-after requests cancellation after the
given delay and --fail makes the action fail once all steps ran.

Interrupting with Ctrl+C cancels the action.`,
		Example: `  bgtask run --iterations 50 --step 100ms
  bgtask run --cancel-after 250ms
  bgtask run --fail --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			return a.runLongAction(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.name, "name", "long action", "task name")
	f.IntVar(&opts.iterations, "iterations", 0, "number of steps (default from config)")
	f.DurationVar(&opts.step, "step", 0, "duration of one step (default from config)")
	f.DurationVar(&opts.cancelAfter, "cancel-after", 0, "request cancellation after this delay")
	f.BoolVar(&opts.fail, "fail", false, "fail after the last step")
	return cmd
}

func (o runOptions) validate() error {
	switch {
	case o.iterations < 0:
		return &UsageError{Flag: "iterations", Reason: "must not be negative", Example: "bgtask run --iterations 50"}
	case o.step < 0:
		return &UsageError{Flag: "step", Reason: "must not be negative", Example: "bgtask run --step 100ms"}
	case o.cancelAfter < 0:
		return &UsageError{Flag: "cancel-after", Reason: "must not be negative", Example: "bgtask run --cancel-after 250ms"}
	}
	return nil
}

// withDefaults fills unset flags from the demo section of the config.
func (o runOptions) withDefaults(cfg *config.Config) runOptions {
	if o.iterations == 0 {
		o.iterations = cfg.Demo.Iterations
	}
	if o.step == 0 {
		o.step = cfg.Demo.Step.Duration
	}
	return o
}

func (a *app) runLongAction(ctx context.Context, out io.Writer, opts runOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := a.setupLogging(cfg, false); err != nil {
		return err
	}
	opts = opts.withDefaults(cfg)

	j, err := a.openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
	}

	registry := tasks.NewRegistry(cfg.Tasks.MaxHistory)
	runner := tasks.NewRunnerWithOptions(registry, cfg.Tasks.MaxConcurrent, cfg.Tasks.TaskTimeout.Duration)

	taskOpts := append(tasks.ConfigOptions(cfg.Tasks), tasks.WithName(opts.name), tasks.WithContext(ctx))
	if j != nil {
		taskOpts = append(taskOpts, tasks.WithObserver(j))
	}
	task := tasks.New(taskOpts...)

	finish := func() (interface{}, error) { return opts.iterations, nil }
	if opts.fail {
		finish = func() (interface{}, error) {
			return nil, fmt.Errorf("failed after %d steps", opts.iterations)
		}
	}

	if err := runner.Submit(task, tasks.LoopWork(opts.iterations, opts.step, finish)); err != nil {
		return &CommandError{Command: "run", Action: "submit task", Err: err}
	}
	if opts.cancelAfter > 0 {
		timer := time.AfterFunc(opts.cancelAfter, task.RequestCancel)
		defer timer.Stop()
	}

	state, waitErr := task.Wait(0)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Tasks.CleanupTimeout.Duration)
	defer cancel()
	stopErr := runner.Stop(stopCtx)
	if j != nil {
		if err := j.Flush(stopCtx); err != nil {
			logging.Warn(ctx, "journal flush incomplete", logging.Fields{logging.FieldError: err})
		}
	}
	if err := errors.Join(waitErr, stopErr); err != nil {
		return &CommandError{Command: "run", Action: "wait for task", Err: err}
	}

	value, resultErr := task.Result()
	res := RunResult{
		ID:         task.ID(),
		Name:       task.Name(),
		State:      state.String(),
		DurationMs: task.Duration().Milliseconds(),
		Steps:      stepsDone(task.Progress()),
		Result:     value,
	}
	var failed *tasks.FailedError
	if errors.As(resultErr, &failed) {
		res.Reason = failed.Reason.Error()
	}

	if a.jsonOutput {
		if failed != nil {
			if err := NewJSONErrorResponse("run", failed, res).Write(out); err != nil {
				return err
			}
			return &CommandError{Command: "run", Action: "task", Err: failed, Code: ExitTaskFailed}
		}
		return NewJSONResponse("run", res).Write(out)
	}

	printRunResult(out, res, task.Info())
	if failed != nil {
		return &CommandError{Command: "run", Action: "task", Err: failed, Code: ExitTaskFailed}
	}
	return nil
}

func stepsDone(p tasks.Progress) int {
	if n, ok := p.Value.(int); ok {
		return n
	}
	return 0
}

func printRunResult(out io.Writer, res RunResult, info tasks.Info) {
	r := newRenderer(out)
	field(out, r, "Task", fmt.Sprintf("%s (%s)", res.Name, util.ShortID(res.ID)))
	field(out, r, "State", stateLabel(r, info.State))
	field(out, r, "Steps", fmt.Sprintf("%d", res.Steps))
	field(out, r, "Duration", util.FormatDuration(info.Duration()))
	if res.Result != nil {
		field(out, r, "Result", fmt.Sprintf("%v", res.Result))
	}
	if res.Reason != "" {
		field(out, r, "Reason", res.Reason)
	}
}
