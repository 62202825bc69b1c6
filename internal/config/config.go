// Package config provides configuration types and defaults for mntn.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zjrosen/mntn/internal/layers"
	"github.com/zjrosen/mntn/internal/log"
	"github.com/zjrosen/mntn/internal/tracing"
)

// Config holds all configuration options for mntn.
type Config struct {
	Backup  BackupConfig   `mapstructure:"backup"`
	Log     LogConfig      `mapstructure:"log"`
	History HistoryConfig  `mapstructure:"history"`
	Watch   WatchConfig    `mapstructure:"watch"`
	Tracing tracing.Config `mapstructure:"tracing"`
}

// BackupConfig controls backup defaults.
type BackupConfig struct {
	// Layer is the layer backups write into: common, machine or environment.
	Layer string `mapstructure:"layer"`
	// SkipEncrypted disables the encrypted registry during backup and restore.
	SkipEncrypted bool `mapstructure:"skip_encrypted"`
	// SkipPackages disables package list export during backup.
	SkipPackages bool `mapstructure:"skip_packages"`
}

// LogConfig controls the debug log file.
type LogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Level   string `mapstructure:"level"` // debug, info, warn or error
}

// HistoryConfig controls the run journal.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// KeepDays prunes runs older than this many days; 0 keeps everything.
	KeepDays int `mapstructure:"keep_days"`
}

// WatchConfig controls `mntn watch`.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// WriteLayer parses Backup.Layer.
func (c Config) WriteLayer() (layers.Layer, error) {
	return layers.ParseLayer(c.Backup.Layer)
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Backup: BackupConfig{
			Layer: layers.Common.String(),
		},
		Log: LogConfig{
			Enabled: false,
			Level:   "info",
		},
		History: HistoryConfig{
			Enabled:  true,
			KeepDays: 90,
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// Validate checks every section.
func Validate(c Config) error {
	if err := ValidateBackup(c.Backup); err != nil {
		return err
	}
	if err := ValidateLog(c.Log); err != nil {
		return err
	}
	if c.History.KeepDays < 0 {
		return fmt.Errorf("history.keep_days must not be negative, got %d", c.History.KeepDays)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	return ValidateTracing(c.Tracing)
}

// ValidateBackup checks the backup section.
func ValidateBackup(b BackupConfig) error {
	l, err := layers.ParseLayer(b.Layer)
	if err != nil {
		return fmt.Errorf("backup.layer: %w", err)
	}
	if !l.Writable() {
		return fmt.Errorf("backup.layer must be common, machine or environment, got %q", b.Layer)
	}
	return nil
}

// ValidateLog checks the log section.
func ValidateLog(l LogConfig) error {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", l.Level)
	}
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(t tracing.Config) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}

	if t.Exporter != "" {
		switch t.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if t.Enabled && t.Exporter == "otlp" && t.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# mntn configuration

backup:
  # Layer that 'mntn backup' writes into: common, machine or environment
  layer: common
  # Skip encrypted entries (no passphrase prompt)
  skip_encrypted: false
  # Skip package list export
  skip_packages: false

# Debug log written to ~/.mntn/mntn.log (MNTN_DEBUG=1 also enables it)
log:
  enabled: false
  level: info   # debug, info, warn or error

# Journal of backup/restore/migrate/validate runs, see 'mntn history'
history:
  enabled: true
  keep_days: 90   # 0 keeps every run

watch:
  debounce: 2s

# Record each run as an OpenTelemetry trace
# tracing:
#   enabled: false
#   exporter: file                 # none, file, stdout or otlp
#   file_path: ~/.mntn/traces.jsonl
#   otlp_endpoint: localhost:4317
#   sample_rate: 1.0
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
