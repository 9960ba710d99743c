// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the monitor until the user quits or ctx is done. Running tasks
// are cancelled and joined within settings.CleanupTimeout before Run
// returns.
func Run(ctx context.Context, settings Settings, opts ...tea.ProgramOption) error {
	m := New(settings)

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	_, runErr := tea.NewProgram(m, opts...).Run()
	if errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil {
		runErr = nil
	}
	if runErr != nil {
		runErr = fmt.Errorf("monitor: %w", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), m.settings.CleanupTimeout)
	defer cancel()
	if err := m.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("monitor shutdown: %w", err))
	}
	return runErr
}
