// Package config resolves transcribrr settings from flags, environment and
// config file through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/franz/transcribrr/internal/database"
	"github.com/franz/transcribrr/internal/report"
	"github.com/franz/transcribrr/internal/util"
)

// EnvPrefix prefixes every environment variable read by viper
const EnvPrefix = "TRANSCRIBRR"

// DataDirEnv overrides the user data directory
const DataDirEnv = "TRANSCRIBRR_USER_DATA_DIR"

// Config holds the resolved settings
type Config struct {
	DataDir          string `mapstructure:"data_dir"`
	DB               string `mapstructure:"db"` // defaults to <data_dir>/database/database.sqlite
	LogLevel         string `mapstructure:"log_level"`
	LogFile          string `mapstructure:"log_file"` // "-" disables the log file
	QueueSize        int    `mapstructure:"queue_size"`
	BusyTimeoutMs    int    `mapstructure:"busy_timeout_ms"`
	AuditDir         string `mapstructure:"audit_dir"` // "-" disables the audit log
	AuditLevel       string `mapstructure:"audit_level"`
	ProbeConcurrency int    `mapstructure:"probe_concurrency"`
	Verbose          bool   `mapstructure:"verbose"`
	Quiet            bool   `mapstructure:"quiet"`
}

// SetDefaults registers defaults and environment bindings on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("queue_size", database.DefaultQueueSize)
	v.SetDefault("busy_timeout_ms", 5000)
	v.SetDefault("audit_level", string(report.LevelInfo))
	v.SetDefault("probe_concurrency", 4)
	// empty defaults make these keys visible to Unmarshal when only set by env
	for _, key := range []string{"db", "log_file", "audit_dir"} {
		v.SetDefault(key, "")
	}
	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.BindEnv("data_dir", DataDirEnv, EnvPrefix+"_DATA_DIR")
}

// Load unmarshals v, fills derived paths and validates the result
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}

	if cfg.DataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}
	if cfg.DB == "" {
		cfg.DB = filepath.Join(cfg.DataDir, "database", "database.sqlite")
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, "logs", "transcribrr.log")
	}
	if cfg.AuditDir == "" {
		cfg.AuditDir = filepath.Join(cfg.DataDir, "logs")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultDataDir returns $TRANSCRIBRR_USER_DATA_DIR or <user config dir>/transcribrr
func DefaultDataDir() (string, error) {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: cannot determine user data directory (set %s): %v",
			util.ErrInvalidConfig, DataDirEnv, err)
	}
	return filepath.Join(base, "transcribrr"), nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.DB, validation.Required),
		validation.Field(&c.LogLevel, validation.By(func(value interface{}) error {
			_, err := util.ParseLevel(value.(string))
			return err
		})),
		validation.Field(&c.AuditLevel, validation.In("debug", "info", "warn", "warning", "error")),
		validation.Field(&c.QueueSize, validation.Min(1), validation.Max(1<<16)),
		validation.Field(&c.BusyTimeoutMs, validation.Min(0)),
		validation.Field(&c.ProbeConcurrency, validation.Min(1), validation.Max(64)),
	)
	if err != nil {
		var internal validation.InternalError
		if errors.As(err, &internal) {
			return err
		}
		return fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}
	if c.Verbose && c.Quiet {
		return fmt.Errorf("%w: verbose and quiet are mutually exclusive", util.ErrInvalidConfig)
	}
	return nil
}

// LogFileEnabled reports whether a plain-text log file should be written
func (c *Config) LogFileEnabled() bool {
	return c.LogFile != "-"
}

// AuditEnabled reports whether the JSONL audit log should be written
func (c *Config) AuditEnabled() bool {
	return c.AuditDir != "-"
}

// ApplyLogging configures the util logger from c
func (c *Config) ApplyLogging() error {
	level, err := util.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	util.SetLogLevel(level)
	if c.Verbose {
		util.SetVerbose(true)
	}
	if c.Quiet {
		util.SetQuiet(true)
	}
	if c.LogFileEnabled() {
		if err := util.SetLogFile(c.LogFile); err != nil {
			util.WarnLog("Log file disabled: %v", err)
		}
	}
	return nil
}
