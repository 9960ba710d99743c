// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	require.Equal(t, "Idle", StateIdle.String())
	require.Equal(t, "Running", StateRunning.String())
	require.Equal(t, "Completed", StateCompleted.String())
	require.Equal(t, "Cancelled", StateCancelled.String())
	require.Equal(t, "Failed", StateFailed.String())
	require.Equal(t, "State(9)", State(9).String())
}

func TestStateIsTerminal(t *testing.T) {
	require.False(t, StateIdle.IsTerminal())
	require.False(t, StateRunning.IsTerminal())
	require.True(t, StateCompleted.IsTerminal())
	require.True(t, StateCancelled.IsTerminal())
	require.True(t, StateFailed.IsTerminal())
}

func TestParseState(t *testing.T) {
	tests := []struct {
		in   string
		want State
		ok   bool
	}{
		{"running", StateRunning, true},
		{"Cancelled", StateCancelled, true},
		{"canceled", StateCancelled, true},
		{"FAILED", StateFailed, true},
		{"done", StateIdle, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseState(tt.in)
			if !tt.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestStateTextRoundTrip(t *testing.T) {
	text, err := StateFailed.MarshalText()
	require.NoError(t, err)

	var s State
	require.NoError(t, s.UnmarshalText(text))
	require.Equal(t, StateFailed, s)
}

func TestValidTransitions(t *testing.T) {
	all := []State{StateIdle, StateRunning, StateCompleted, StateCancelled, StateFailed}
	allowed := map[[2]State]bool{
		{StateIdle, StateRunning}:      true,
		{StateRunning, StateCompleted}: true,
		{StateRunning, StateCancelled}: true,
		{StateRunning, StateFailed}:    true,
	}
	for _, from := range all {
		for _, to := range all {
			require.Equal(t, allowed[[2]State{from, to}], validTransition(from, to), "%s -> %s", from, to)
		}
	}
}
