// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/bgtask/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete bgtask configuration.
type Config struct {
	Version string `toml:"version"`

	Tasks   TasksConfig   `toml:"tasks"`
	Logging LoggingConfig `toml:"logging"`
	Journal JournalConfig `toml:"journal"`
	Demo    DemoConfig    `toml:"demo"`
}

// TasksConfig controls how background tasks poll, stop and are scheduled.
type TasksConfig struct {
	// PollInterval is the longest a work function may go between
	// cancellation checks. Control.Sleep never sleeps past it unobserved.
	PollInterval Duration `toml:"poll_interval"`
	// CleanupTimeout bounds the teardown phase that runs after the work returns.
	CleanupTimeout Duration `toml:"cleanup_timeout"`
	// WatchdogFactor warns when work has not polled for
	// WatchdogFactor * PollInterval (0 = disabled).
	WatchdogFactor int `toml:"watchdog_factor"`
	// MaxConcurrent is the number of tasks the runner executes at once.
	MaxConcurrent int `toml:"max_concurrent"`
	// TaskTimeout cancels tasks that run longer than this (0 = no timeout).
	TaskTimeout Duration `toml:"task_timeout"`
	// MaxHistory is the number of finished tasks the registry keeps.
	MaxHistory int `toml:"max_history"`
	// ProgressRate caps progress notifications per second (0 = unlimited).
	ProgressRate float64 `toml:"progress_rate"`
}

// LoggingConfig selects log sinks and levels.
type LoggingConfig struct {
	Level         string   `toml:"level"`
	Console       bool     `toml:"console"`
	ConsoleLevel  string   `toml:"console_level"`
	Color         bool     `toml:"color"`
	JSON          bool     `toml:"json"`
	File          string   `toml:"file"`
	FileLevel     string   `toml:"file_level"`
	FlushInterval Duration `toml:"flush_interval"`
	FlushOn       string   `toml:"flush_on"`
}

// JournalConfig locates the SQLite journal of task outcomes.
type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // empty = ~/.bgtask/journal.db
}

// DemoConfig shapes the long action of the demo programs.
type DemoConfig struct {
	Iterations int      `toml:"iterations"`
	Step       Duration `toml:"step"`
}

// Duration is a time.Duration that reads and writes as "100ms" in TOML.
type Duration struct {
	time.Duration
}

// D wraps d as a Duration.
func D(d time.Duration) Duration { return Duration{Duration: d} }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1",

		Tasks: TasksConfig{
			PollInterval:   D(100 * time.Millisecond),
			CleanupTimeout: D(5 * time.Second),
			WatchdogFactor: 10,
			MaxConcurrent:  4,
			TaskTimeout:    D(0),
			MaxHistory:     100,
			ProgressRate:   0,
		},

		Logging: LoggingConfig{
			Level:         "debug",
			Console:       true,
			ConsoleLevel:  "info",
			Color:         true,
			File:          "",
			FileLevel:     "debug",
			FlushInterval: D(3 * time.Second),
			FlushOn:       "warn",
		},

		Journal: JournalConfig{
			Enabled: true,
		},

		Demo: DemoConfig{
			Iterations: 50,
			Step:       D(100 * time.Millisecond),
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the bgtask configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".bgtask"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// JournalPath returns the configured journal path, falling back to the
// config directory.
func (c *Config) JournalPath() (string, error) {
	if c.Journal.Path != "" {
		return c.Journal.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "journal.db"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads ~/.bgtask/config.toml if it exists, otherwise the defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific TOML file with full validation.
// Keys missing from the file keep their default values.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# bgtask configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

var validLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
	"dpanic": true, "panic": true, "fatal": true,
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Tasks.PollInterval.Duration <= 0 {
		errs = append(errs, ValidationError{"tasks.poll_interval", "must be greater than 0"})
	}
	if c.Tasks.PollInterval.Duration > time.Minute {
		errs = append(errs, ValidationError{"tasks.poll_interval", "must be at most 1m"})
	}
	if c.Tasks.CleanupTimeout.Duration < 0 {
		errs = append(errs, ValidationError{"tasks.cleanup_timeout", "must not be negative"})
	}
	if c.Tasks.WatchdogFactor < 0 {
		errs = append(errs, ValidationError{"tasks.watchdog_factor", "must not be negative"})
	}
	if c.Tasks.MaxConcurrent < 1 {
		errs = append(errs, ValidationError{"tasks.max_concurrent", "must be at least 1"})
	}
	if c.Tasks.TaskTimeout.Duration < 0 {
		errs = append(errs, ValidationError{"tasks.task_timeout", "must not be negative"})
	}
	if c.Tasks.MaxHistory < 0 {
		errs = append(errs, ValidationError{"tasks.max_history", "must not be negative"})
	}
	if c.Tasks.ProgressRate < 0 {
		errs = append(errs, ValidationError{"tasks.progress_rate", "must not be negative"})
	}

	for field, lvl := range map[string]string{
		"logging.level":         c.Logging.Level,
		"logging.console_level": c.Logging.ConsoleLevel,
		"logging.file_level":    c.Logging.FileLevel,
		"logging.flush_on":      c.Logging.FlushOn,
	} {
		if lvl != "" && !validLevels[strings.ToLower(lvl)] {
			errs = append(errs, ValidationError{field, fmt.Sprintf("invalid level '%s'", lvl)})
		}
	}
	if !c.Logging.Console && c.Logging.File == "" {
		errs = append(errs, ValidationError{"logging", "at least one of console or file must be enabled"})
	}

	if c.Demo.Iterations < 1 {
		errs = append(errs, ValidationError{"demo.iterations", "must be at least 1"})
	}
	if c.Demo.Step.Duration <= 0 {
		errs = append(errs, ValidationError{"demo.step", "must be greater than 0"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero-value fields that have no meaningful zero.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Tasks.PollInterval.Duration == 0 {
		c.Tasks.PollInterval = defaults.Tasks.PollInterval
	}
	if c.Tasks.MaxConcurrent == 0 {
		c.Tasks.MaxConcurrent = defaults.Tasks.MaxConcurrent
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.FlushInterval.Duration == 0 {
		c.Logging.FlushInterval = defaults.Logging.FlushInterval
	}
	if c.Demo.Iterations == 0 {
		c.Demo.Iterations = defaults.Demo.Iterations
	}
	if c.Demo.Step.Duration == 0 {
		c.Demo.Step = defaults.Demo.Step
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - BGTASK_POLL_INTERVAL: overrides tasks.poll_interval (e.g. "50ms")
//   - BGTASK_MAX_CONCURRENT: overrides tasks.max_concurrent
//   - BGTASK_LOG_LEVEL: overrides logging.level
//   - BGTASK_LOG_FILE: overrides logging.file
//   - BGTASK_JOURNAL_PATH: overrides journal.path
//   - BGTASK_NO_JOURNAL: set to "1" or "true" to disable the journal
//
// Malformed values are ignored with a warning on stderr.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("BGTASK_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Tasks.PollInterval = D(d)
		} else {
			fmt.Fprintf(os.Stderr, "Warning: ignoring BGTASK_POLL_INTERVAL=%q: %v\n", v, err)
		}
	}

	if v := os.Getenv("BGTASK_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Tasks.MaxConcurrent = n
		} else {
			fmt.Fprintf(os.Stderr, "Warning: ignoring BGTASK_MAX_CONCURRENT=%q: %v\n", v, err)
		}
	}

	if v := os.Getenv("BGTASK_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv("BGTASK_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	if v := os.Getenv("BGTASK_JOURNAL_PATH"); v != "" {
		c.Journal.Path = v
	}

	if v := os.Getenv("BGTASK_NO_JOURNAL"); v != "" {
		if v == "1" || strings.ToLower(v) == "true" {
			c.Journal.Enabled = false
		}
	}
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig   *Config
	globalConfigMu sync.RWMutex
)

// Global returns the global configuration, loading it on first access.
// Load errors are reported on stderr and the defaults are used.
func Global() *Config {
	globalConfigMu.RLock()
	cfg := globalConfig
	globalConfigMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	if globalConfig == nil {
		loaded, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			loaded = Default()
		}
		globalConfig = loaded
	}
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting clears the global config so the next Global call
// loads again.
func ResetGlobalForTesting() {
	SetGlobal(nil)
}
