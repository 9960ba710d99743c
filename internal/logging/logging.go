// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects sinks and levels for the process logger.
type Config struct {
	// Level is the floor applied to every sink.
	Level string

	// Console enables the stderr sink.
	Console      bool
	ConsoleLevel string
	Color        bool

	// JSON switches the console sink to JSON encoding.
	JSON bool

	// File enables the file sink when non-empty.
	File      string
	FileLevel string

	// FlushInterval is how often buffered file output is written out.
	FlushInterval time.Duration

	// FlushOn forces a file flush for entries at or above this level.
	FlushOn string
}

var (
	mu       sync.RWMutex
	base     = zap.NewNop()
	helper   = base
	closers  []func() error
	errNoCfg = errors.New("no log sinks enabled")
)

// Setup replaces the process logger according to cfg. Any previously opened
// file sink is flushed and closed.
func Setup(cfg Config) error {
	floor, err := parseLevel(cfg.Level, zapcore.InfoLevel)
	if err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	var newClosers []func() error

	if cfg.Console {
		lvl, err := parseLevel(cfg.ConsoleLevel, floor)
		if err != nil {
			return err
		}
		var enc zapcore.Encoder
		if cfg.JSON {
			enc = zapcore.NewJSONEncoder(encCfg)
		} else {
			consoleCfg := encCfg
			consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
			if cfg.Color {
				consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
			}
			enc = zapcore.NewConsoleEncoder(consoleCfg)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), atLeast(lvl, floor)))
	}

	if cfg.File != "" {
		lvl, err := parseLevel(cfg.FileLevel, floor)
		if err != nil {
			return err
		}
		flushOn, err := parseLevel(cfg.FlushOn, zapcore.WarnLevel)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		ws := &zapcore.BufferedWriteSyncer{WS: zapcore.AddSync(f), FlushInterval: cfg.FlushInterval}
		newClosers = append(newClosers, ws.Stop, f.Close)

		core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), ws, atLeast(lvl, floor))
		cores = append(cores, &flushOnCore{Core: core, level: flushOn, sync: ws.Sync})
	}

	if len(cores) == 0 {
		return errNoCfg
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	install(logger, newClosers)
	return nil
}

// SetLogger installs an already built logger, for tests and embedding.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	install(l, nil)
}

func install(l *zap.Logger, newClosers []func() error) {
	mu.Lock()
	old := closers
	base = l
	helper = l.WithOptions(zap.AddCallerSkip(1))
	closers = newClosers
	mu.Unlock()

	for _, c := range old {
		_ = c()
	}
}

// L returns the process logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Named returns a child of the process logger, the equivalent of a
// registered logger looked up by name.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Sync flushes buffered output. Errors from syncing a terminal are ignored.
func Sync() error {
	mu.RLock()
	l := base
	mu.RUnlock()
	if err := l.Sync(); err != nil && !isTerminalSyncErr(err) {
		return err
	}
	return nil
}

// Close flushes and closes file sinks and reverts to a no-op logger.
func Close() error {
	_ = Sync()
	install(zap.NewNop(), nil)
	return nil
}

// Debug logs msg at debug level with fields and the correlation ID of ctx.
func Debug(ctx context.Context, msg string, fields Fields) { log(ctx, zapcore.DebugLevel, msg, fields) }

// Info logs msg at info level with fields and the correlation ID of ctx.
func Info(ctx context.Context, msg string, fields Fields) { log(ctx, zapcore.InfoLevel, msg, fields) }

// Warn logs msg at warn level with fields and the correlation ID of ctx.
func Warn(ctx context.Context, msg string, fields Fields) { log(ctx, zapcore.WarnLevel, msg, fields) }

// Error logs msg at error level with fields and the correlation ID of ctx.
func Error(ctx context.Context, msg string, fields Fields) { log(ctx, zapcore.ErrorLevel, msg, fields) }

func log(ctx context.Context, lvl zapcore.Level, msg string, fields Fields) {
	mu.RLock()
	l := helper
	mu.RUnlock()

	if ce := l.Check(lvl, msg); ce != nil {
		zf := fields.zapFields()
		if cid := CorrelationID(ctx); cid != "" {
			zf = append(zf, zap.String(FieldCorrelationID, cid))
		}
		ce.Write(zf...)
	}
}

func parseLevel(s string, def zapcore.Level) (zapcore.Level, error) {
	if s == "" {
		return def, nil
	}
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return def, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

func atLeast(lvl, floor zapcore.Level) zap.LevelEnablerFunc {
	return func(l zapcore.Level) bool {
		return l >= lvl && l >= floor
	}
}

// isTerminalSyncErr reports the errors returned by fsync on a tty or pipe.
func isTerminalSyncErr(err error) bool {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return pe.Path == "/dev/stderr" || pe.Path == "/dev/stdout"
	}
	return false
}

// flushOnCore syncs its writer right after entries at or above level.
type flushOnCore struct {
	zapcore.Core
	level zapcore.Level
	sync  func() error
}

func (c *flushOnCore) With(fields []zapcore.Field) zapcore.Core {
	return &flushOnCore{Core: c.Core.With(fields), level: c.level, sync: c.sync}
}

func (c *flushOnCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *flushOnCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if err := c.Core.Write(ent, fields); err != nil {
		return err
	}
	if ent.Level >= c.level {
		return c.sync()
	}
	return nil
}
