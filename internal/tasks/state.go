// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"fmt"
	"strings"
)

// =============================================================================
// TASK STATE
// =============================================================================

// State is the lifecycle position of a task.
type State int32

const (
	// StateIdle means the task was created but not started.
	StateIdle State = iota

	// StateRunning means the work function is executing.
	StateRunning

	// StateCompleted means the work returned normally.
	StateCompleted

	// StateCancelled means the work stopped after observing a cancel request.
	StateCancelled

	// StateFailed means the work returned an error or panicked.
	StateFailed
)

var stateNames = [...]string{"Idle", "Running", "Completed", "Cancelled", "Failed"}

// String returns the display name of the state.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}

// IsTerminal reports whether no further transition can happen from s.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts a state name, case-insensitively.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState parses a state name such as "cancelled".
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if strings.EqualFold(n, name) {
			return State(i), nil
		}
	}
	if strings.EqualFold(name, "canceled") {
		return StateCancelled, nil
	}
	return StateIdle, fmt.Errorf("unknown task state %q", name)
}

// validTransition reports whether from -> to is allowed.
// Valid transitions: Idle -> Running -> Completed/Cancelled/Failed
func validTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateRunning
	case StateRunning:
		return to.IsTerminal()
	default:
		return false
	}
}
