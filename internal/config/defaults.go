// Package config provides configuration loading and defaults for patchworkd.
package config

// DefaultDataDir is the default location for the database and key file.
const DefaultDataDir = "~/.local/share/patchworkd"

// DefaultConfigDir is the default location for patchworkd configuration.
const DefaultConfigDir = "~/.config/patchworkd"

// DefaultDBName is the filename for the encrypted SQLite database.
const DefaultDBName = "patchworkd.db"

// DefaultPollIntervalSeconds is how often the foreground app is sampled.
const DefaultPollIntervalSeconds = 2

// DefaultIdleCheckMinutes is how often idle rules are scanned.
const DefaultIdleCheckMinutes = 5

// DefaultUsageRetentionDays is how long app-open events are kept.
const DefaultUsageRetentionDays = 30

// DefaultHistoryRetentionDays is how long audit records are kept.
const DefaultHistoryRetentionDays = 90

// DefaultRetentionSchedule runs the cleanup jobs nightly.
const DefaultRetentionSchedule = "0 3 * * *"

// DefaultLogLevel is the zap level used when none is configured.
const DefaultLogLevel = "info"
