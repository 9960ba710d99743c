// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/bgtask/internal/config"
	"github.com/jeranaias/bgtask/internal/journal"
	"github.com/jeranaias/bgtask/internal/tasks"
)

// testConfig writes a config that keeps the journal in a temp dir and
// silences the console logger.
func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	path := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`
[logging]
console = false

[journal]
enabled = true
path = %q

[demo]
iterations = 3
step = "1ms"
`, filepath.Join(dir, "journal.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

type runResponse struct {
	Success bool      `json:"success"`
	Command string    `json:"command"`
	Data    RunResult `json:"data"`
	Error   *string   `json:"error"`
}

type historyResponse struct {
	Success bool             `json:"success"`
	Data    []journal.Record `json:"data"`
}

func decode(t *testing.T, out string, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func TestRunCompletes(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, "--config", cfg, "--json", "run", "--name", "quick")
	require.NoError(t, err)

	var resp runResponse
	decode(t, out, &resp)
	require.True(t, resp.Success)
	require.Equal(t, "run", resp.Command)
	require.Equal(t, "quick", resp.Data.Name)
	require.Equal(t, tasks.StateCompleted.String(), resp.Data.State)
	require.Equal(t, 3, resp.Data.Steps)
	require.EqualValues(t, 3, resp.Data.Result)

	out, err = execute(t, "--config", cfg, "--json", "history")
	require.NoError(t, err)
	var hist historyResponse
	decode(t, out, &hist)
	require.Len(t, hist.Data, 1)
	require.Equal(t, resp.Data.ID, hist.Data[0].ID)
	require.Equal(t, tasks.StateCompleted.String(), hist.Data[0].State)
}

func TestRunTextOutput(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, "--config", cfg, "run", "--iterations", "2")
	require.NoError(t, err)
	require.Contains(t, out, "long action")
	require.Contains(t, out, "Completed")
	require.Contains(t, out, "Steps:")
}

func TestRunCancelAfter(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, "--config", cfg, "--json", "run",
		"--iterations", "500", "--step", "10ms", "--cancel-after", "30ms")
	require.NoError(t, err)

	var resp runResponse
	decode(t, out, &resp)
	require.Equal(t, tasks.StateCancelled.String(), resp.Data.State)
	require.Less(t, resp.Data.Steps, 500)
	require.Less(t, resp.Data.DurationMs, int64(2000))
}

func TestRunFail(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, "--config", cfg, "--json", "run", "--fail")
	require.Error(t, err)
	require.Equal(t, ExitTaskFailed, ExitCode(err))

	var failed *tasks.FailedError
	require.True(t, errors.As(err, &failed))

	var resp runResponse
	decode(t, out, &resp)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	require.Equal(t, tasks.StateFailed.String(), resp.Data.State)
	require.Equal(t, "failed after 3 steps", resp.Data.Reason)

	out, err = execute(t, "--config", cfg, "--json", "history", "--state", "failed")
	require.NoError(t, err)
	var hist historyResponse
	decode(t, out, &hist)
	require.Len(t, hist.Data, 1)
	require.Equal(t, "failed after 3 steps", hist.Data[0].Reason)

	out, err = execute(t, "--config", cfg, "--json", "history", "--state", "completed")
	require.NoError(t, err)
	decode(t, out, &hist)
	require.Empty(t, hist.Data)
}

func TestRunUsageErrors(t *testing.T) {
	cfg := testConfig(t)

	for _, args := range [][]string{
		{"run", "--iterations", "-1"},
		{"run", "--step", "-5ms"},
		{"run", "--cancel-after", "-1s"},
		{"history", "--state", "sleeping"},
		{"history", "prune", "--keep", "-3"},
	} {
		_, err := execute(t, append([]string{"--config", cfg}, args...)...)
		require.Error(t, err, args)
		require.Equal(t, ExitUsageError, ExitCode(err), args)
	}
}

func TestHistoryShowAndNotFound(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, "--config", cfg, "--json", "run")
	require.NoError(t, err)
	var resp runResponse
	decode(t, out, &resp)

	out, err = execute(t, "--config", cfg, "history", resp.Data.ID)
	require.NoError(t, err)
	require.Contains(t, out, resp.Data.ID)
	require.Contains(t, out, "Payload:")

	_, err = execute(t, "--config", cfg, "history", "no-such-task")
	require.Error(t, err)
	require.Equal(t, ExitNotFoundError, ExitCode(err))
}

func TestHistoryEmptyAndPrune(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, "--config", cfg, "history")
	require.NoError(t, err)
	require.Contains(t, out, "No recorded tasks")

	for i := 0; i < 3; i++ {
		_, err := execute(t, "--config", cfg, "run", "--iterations", "1")
		require.NoError(t, err)
	}

	out, err = execute(t, "--config", cfg, "history", "prune", "--keep", "1")
	require.NoError(t, err)
	require.Contains(t, out, "Deleted 2 record(s)")

	out, err = execute(t, "--config", cfg, "--json", "history")
	require.NoError(t, err)
	var hist historyResponse
	decode(t, out, &hist)
	require.Len(t, hist.Data, 1)
}

func TestHistoryJournalDisabled(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nconsole = false\n[journal]\nenabled = false\n"), 0600))

	_, err := execute(t, "--config", path, "history")
	require.ErrorIs(t, err, errJournalDisabled)
	require.Equal(t, ExitConfigError, ExitCode(err))

	// run still works without a journal
	_, err = execute(t, "--config", path, "run", "--iterations", "1", "--step", "1ms")
	require.NoError(t, err)
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "nested", "config.toml")

	out, err := execute(t, "--config", path, "config", "init")
	require.NoError(t, err)
	require.Contains(t, out, path)

	loaded, err := config.LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, config.Default().Tasks, loaded.Tasks)

	_, err = execute(t, "--config", path, "config", "init")
	require.ErrorIs(t, err, errConfigExists)
	require.Equal(t, ExitConfigError, ExitCode(err))

	_, err = execute(t, "--config", path, "config", "init", "--force")
	require.NoError(t, err)

	out, err = execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	require.Contains(t, out, "[tasks]")
	require.Contains(t, out, `poll_interval = "100ms"`)
}

func TestConfigShowInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[tasks]\npoll_interval = \"-1s\"\n"), 0600))

	_, err := execute(t, "--config", path, "config", "show")
	require.Error(t, err)
	require.Equal(t, ExitConfigError, ExitCode(err))
}

func TestDemoRequiresTerminal(t *testing.T) {
	if IsTTY() && IsStdoutTTY() {
		t.Skip("running in a terminal")
	}
	cfg := testConfig(t)
	_, err := execute(t, "--config", cfg, "demo")
	require.ErrorIs(t, err, errNotTerminal)
	require.Equal(t, ExitUsageError, ExitCode(err))
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "bgtask "))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitGeneralError},
		{"usage", &UsageError{Flag: "x", Reason: "bad"}, ExitUsageError},
		{"validation", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "tasks.poll_interval", Message: "bad"}}), ExitConfigError},
		{"not found", fmt.Errorf("get: %w", journal.ErrNotFound), ExitNotFoundError},
		{"timed out", fmt.Errorf("%w: waiting", tasks.ErrTimedOut), ExitTimeoutError},
		{"failed", &tasks.FailedError{Reason: errors.New("boom")}, ExitTaskFailed},
		{"explicit code", &CommandError{Command: "c", Action: "a", Err: errors.New("x"), Code: ExitNotFoundError}, ExitNotFoundError},
		{"command without code", &CommandError{Command: "c", Action: "a", Err: tasks.ErrTimedOut}, ExitTimeoutError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestJSONErrorResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONErrorResponse("run", errors.New("boom"), nil).Write(&buf))

	var resp map[string]interface{}
	decode(t, buf.String(), &resp)
	require.Equal(t, false, resp["success"])
	require.Equal(t, "boom", resp["error"])
	require.NotContains(t, resp, "data")
}

func TestUsageErrorMessage(t *testing.T) {
	err := &UsageError{Flag: "step", Reason: "must not be negative", Example: "bgtask run --step 100ms"}
	require.Equal(t, "invalid --step: must not be negative\nExample: bgtask run --step 100ms", err.Error())
}
