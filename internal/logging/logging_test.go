// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHelpersWriteStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { _ = Close() })

	ctx := WithCorrelationID(context.Background(), "cid-1")
	Info(ctx, "task: started", Fields{FieldTaskID: "abc", FieldError: errors.New("boom")})

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "task: started", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, "abc", fields[FieldTaskID])
	require.Equal(t, "boom", fields[FieldError])
	require.Equal(t, "cid-1", fields[FieldCorrelationID])
}

func TestHelpersRespectLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { _ = Close() })

	Debug(context.Background(), "hidden", nil)
	Info(context.Background(), "hidden", nil)
	Warn(context.Background(), "shown", nil)
	Error(context.Background(), "shown", nil)

	require.Equal(t, 2, logs.Len())
}

func TestSetupFileSinkFlushesOnWarn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bgtask.log")
	err := Setup(Config{
		Level:         "debug",
		File:          path,
		FileLevel:     "info",
		FlushInterval: time.Hour,
		FlushOn:       "warn",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close() })

	Debug(context.Background(), "below file level", nil)
	Info(context.Background(), "buffered", Fields{FieldTaskID: "t1"})
	Warn(context.Background(), "flushes", nil)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, "buffered", first["msg"])
	require.Equal(t, "t1", first[FieldTaskID])
}

func TestSetupRejectsBadConfig(t *testing.T) {
	require.Error(t, Setup(Config{}), "no sinks should be an error")
	require.Error(t, Setup(Config{Console: true, Level: "loud"}))
}

func TestNamedUsesProcessLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { _ = Close() })

	Named("journal").Info("opened")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "journal", entries[0].LoggerName)
}

func TestWithFieldsCopies(t *testing.T) {
	base := Fields{"a": 1}
	merged := WithFields(base, Fields{"b": 2})

	require.Len(t, merged, 2)
	require.Len(t, base, 1)
}
