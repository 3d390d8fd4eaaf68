package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level patchworkd configuration.
type Config struct {
	DataDir             string    `mapstructure:"data_dir"`
	PollIntervalSeconds int       `mapstructure:"poll_interval_seconds"`
	IdleCheckMinutes    int       `mapstructure:"idle_check_minutes"`
	Retention           Retention `mapstructure:"retention"`
	LogLevel            string    `mapstructure:"log_level"`
}

// Retention controls how long stored events are kept and when the
// cleanup jobs run.
type Retention struct {
	UsageDays   int    `mapstructure:"usage_days"`
	HistoryDays int    `mapstructure:"history_days"`
	Schedule    string `mapstructure:"schedule"`
}

// PollInterval returns the foreground sampling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// IdleCheckInterval returns the idle scan interval.
func (c *Config) IdleCheckInterval() time.Duration {
	return time.Duration(c.IdleCheckMinutes) * time.Minute
}

// UsageRetention returns the usage-event retention window.
func (c *Config) UsageRetention() time.Duration {
	return time.Duration(c.Retention.UsageDays) * 24 * time.Hour
}

// HistoryRetention returns the audit-record retention window.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.Retention.HistoryDays) * 24 * time.Hour
}

// DBPath returns the full path to the encrypted database.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, DefaultDBName)
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads configuration from the given path (or the default location)
// and returns a Config with all defaults applied. Environment variables
// prefixed PATCHWORKD_ override the file, e.g. PATCHWORKD_LOG_LEVEL.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("poll_interval_seconds", DefaultPollIntervalSeconds)
	v.SetDefault("idle_check_minutes", DefaultIdleCheckMinutes)
	v.SetDefault("retention.usage_days", DefaultUsageRetentionDays)
	v.SetDefault("retention.history_days", DefaultHistoryRetentionDays)
	v.SetDefault("retention.schedule", DefaultRetentionSchedule)
	v.SetDefault("log_level", DefaultLogLevel)

	v.SetEnvPrefix("PATCHWORKD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		v.AddConfigPath(expandPath(DefaultConfigDir))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// A missing config file is fine; defaults carry the daemon.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.DataDir = expandPath(cfg.DataDir)
	return &cfg, nil
}
