// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by bgtask packages: crash-safe file
// writes for the config file and display formatting for task IDs, durations
// and names.
package util
