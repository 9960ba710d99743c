// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/bgtask/internal/tasks"
)

// TaskEventMsg carries a task notification into the event loop.
type TaskEventMsg struct {
	Event tasks.Event
}

// RegistryEventMsg carries a terminal event from the registry's
// notification channel. It refreshes the task list.
type RegistryEventMsg struct {
	Event tasks.Event
}

// waitForNotification reads the next terminal event of the registry.
func waitForNotification(ctx context.Context, reg *tasks.Registry) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-reg.Notifications():
			return RegistryEventMsg{Event: ev}
		}
	}
}

// inboxClosedMsg stops the inbox listener.
type inboxClosedMsg struct{}

// waitForEvent reads the next notification from inbox.
func waitForEvent(ctx context.Context, inbox *tasks.Inbox) tea.Cmd {
	return func() tea.Msg {
		ev, err := inbox.Next(ctx)
		if err != nil {
			return inboxClosedMsg{}
		}
		return TaskEventMsg{Event: ev}
	}
}

// SettingsMsg carries reloaded settings into the event loop.
type SettingsMsg struct {
	Settings Settings
}

// waitForSettings reads the next settings update. It returns nil when
// updates is nil, and nothing once ctx is done or updates is closed.
func waitForSettings(ctx context.Context, updates <-chan Settings) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-updates:
			if !ok {
				return nil
			}
			return SettingsMsg{Settings: s}
		}
	}
}
