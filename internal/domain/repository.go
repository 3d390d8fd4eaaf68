package domain

import (
	"context"
	"errors"
	"time"
)

// ErrPermissionDenied marks a device-setting write the OS refused.
// Engines treat it as a soft failure: skip the field, keep going.
var ErrPermissionDenied = errors.New("permission denied")

// ErrUnsupported marks an operation the platform cannot perform at all
// (e.g. clearing another app's cache without system privileges).
var ErrUnsupported = errors.New("operation not supported")

// AudioStream names a device audio stream.
type AudioStream string

const (
	StreamRing         AudioStream = "ring"
	StreamMedia        AudioStream = "music"
	StreamAlarm        AudioStream = "alarm"
	StreamNotification AudioStream = "notification"
)

// DeviceSettings reads and writes live device state.
// Any setter may fail with ErrPermissionDenied; callers skip that field
// and continue. Implementation: shell adapter over the Android
// settings/cmd binaries.
type DeviceSettings interface {
	// StreamVolume returns the current level for a stream.
	StreamVolume(ctx context.Context, stream AudioStream) (int, error)

	// MaxStreamVolume returns the device maximum for a stream.
	MaxStreamVolume(ctx context.Context, stream AudioStream) (int, error)

	// SetStreamVolume sets the absolute level for a stream.
	SetStreamVolume(ctx context.Context, stream AudioStream, level int) error

	// RingerMode returns NORMAL, VIBRATE or SILENT.
	RingerMode(ctx context.Context) (string, error)

	// SetRingerMode sets NORMAL, VIBRATE or SILENT.
	SetRingerMode(ctx context.Context, mode string) error

	// Brightness returns the screen brightness (0-255).
	Brightness(ctx context.Context) (int, error)

	// SetBrightness sets the screen brightness (0-255).
	SetBrightness(ctx context.Context, value int) error

	// BrightnessMode returns MANUAL or AUTO.
	BrightnessMode(ctx context.Context) (string, error)

	// SetBrightnessMode sets MANUAL or AUTO.
	SetBrightnessMode(ctx context.Context, mode string) error

	// ScreenTimeout returns the screen-off timeout in milliseconds.
	ScreenTimeout(ctx context.Context) (int, error)

	// SetScreenTimeout sets the screen-off timeout in milliseconds.
	SetScreenTimeout(ctx context.Context, ms int) error

	// NightLight returns whether the night-light filter is active.
	NightLight(ctx context.Context) (bool, error)

	// SetNightLight toggles the night-light filter.
	SetNightLight(ctx context.Context, enabled bool) error

	// RotationLocked returns whether auto-rotate is off.
	RotationLocked(ctx context.Context) (bool, error)

	// SetRotationLocked toggles the rotation lock.
	SetRotationLocked(ctx context.Context, locked bool) error

	// SecureSetting reads an arbitrary secure-namespace setting by key.
	SecureSetting(ctx context.Context, key string) (string, error)

	// PutSecureSetting writes an arbitrary secure-namespace setting.
	PutSecureSetting(ctx context.Context, key, value string) error

	// GlobalSetting reads an arbitrary global-namespace setting by key.
	GlobalSetting(ctx context.Context, key string) (string, error)

	// PutGlobalSetting writes an arbitrary global-namespace setting.
	PutGlobalSetting(ctx context.Context, key, value string) error

	// AcquireWakeLock keeps the screen on. Held at most ten minutes.
	AcquireWakeLock(ctx context.Context) error

	// ReleaseWakeLock drops the keep-awake hold if one is held.
	ReleaseWakeLock(ctx context.Context) error

	// ClearClipboard empties the primary clipboard.
	ClearClipboard(ctx context.Context) error
}

// UsageStatsSource reports per-package usage from the OS over a window.
type UsageStatsSource interface {
	// QueryUsage returns one entry per package seen in [start, end].
	QueryUsage(ctx context.Context, start, end time.Time) ([]AppUsage, error)
}

// AppController performs OS-level control of other apps.
type AppController interface {
	// ForceStop kills a package's processes.
	ForceStop(ctx context.Context, packageName string) error

	// Freeze disables the package. Needs elevated privilege; success is
	// not guaranteed.
	Freeze(ctx context.Context, packageName string) error

	// ClearCache clears the package's cache. Currently always returns
	// ErrUnsupported.
	ClearCache(ctx context.Context, packageName string) error
}

// NotificationPresenter shows user-facing notifications. Fire-and-forget:
// callers log errors and move on.
type NotificationPresenter interface {
	// NotifyIdleApp tells the user an app has been idle.
	NotifyIdleApp(ctx context.Context, appName string, idleMinutes int64) error

	// NotifyBlocked tells the user a launch was blocked and why.
	NotifyBlocked(ctx context.Context, appName, reason string) error
}

// BehaviorRuleStore persists behavior rules, keyed by package name.
type BehaviorRuleStore interface {
	// BehaviorRule returns the rule for a package, or nil if none.
	BehaviorRule(ctx context.Context, packageName string) (*BehaviorRule, error)

	// BehaviorRules returns all rules.
	BehaviorRules(ctx context.Context) ([]BehaviorRule, error)

	// SaveBehaviorRule inserts or replaces the rule for its package.
	SaveBehaviorRule(ctx context.Context, rule BehaviorRule) error

	// DeleteBehaviorRule removes the rule for a package.
	DeleteBehaviorRule(ctx context.Context, packageName string) error

	// MarkBehaviorRuleApplied stamps last-applied and bumps the apply
	// counter. Only the engine calls this.
	MarkBehaviorRuleApplied(ctx context.Context, packageName string, at time.Time) error
}

// CooldownRuleStore persists cooldown rules, keyed by package name.
type CooldownRuleStore interface {
	// CooldownRule returns the rule for a package, or nil if none.
	CooldownRule(ctx context.Context, packageName string) (*CooldownRule, error)

	// CooldownRules returns all rules.
	CooldownRules(ctx context.Context) ([]CooldownRule, error)

	// SaveCooldownRule inserts or replaces the rule for its package.
	SaveCooldownRule(ctx context.Context, rule CooldownRule) error

	// DeleteCooldownRule removes the rule for a package.
	DeleteCooldownRule(ctx context.Context, packageName string) error

	// MarkCooldownTriggered stamps last-triggered and bumps the stopped
	// counter.
	MarkCooldownTriggered(ctx context.Context, packageName string, at time.Time) error
}

// UsageEventStore is the append-only app-open log.
type UsageEventStore interface {
	// InsertUsageEvent appends one open event and returns its row ID.
	InsertUsageEvent(ctx context.Context, event UsageEvent) (int64, error)

	// LastUsageEvent returns the most recent event for a package, or nil.
	LastUsageEvent(ctx context.Context, packageName string) (*UsageEvent, error)

	// CountUsageEvents counts events for a package in [start, end].
	CountUsageEvents(ctx context.Context, packageName string, start, end time.Time) (int, error)

	// UsageEventsSince returns events for a package newer than since.
	UsageEventsSince(ctx context.Context, packageName string, since time.Time) ([]UsageEvent, error)

	// DeleteUsageEventsBefore removes events older than the cutoff and
	// returns how many went away.
	DeleteUsageEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// IdleRuleStore persists idle rules and their action log.
type IdleRuleStore interface {
	// IdleRule returns the rule for a package, or nil if none.
	IdleRule(ctx context.Context, packageName string) (*IdleRule, error)

	// IdleRules returns all rules.
	IdleRules(ctx context.Context) ([]IdleRule, error)

	// EnabledIdleRules returns only enabled rules.
	EnabledIdleRules(ctx context.Context) ([]IdleRule, error)

	// SaveIdleRule inserts or replaces the rule for its package.
	SaveIdleRule(ctx context.Context, rule IdleRule) error

	// DeleteIdleRule removes the rule for a package.
	DeleteIdleRule(ctx context.Context, packageName string) error

	// IncrementIdleActionCount bumps the rule's action counter.
	IncrementIdleActionCount(ctx context.Context, packageName string) error

	// UpdateIdleLastChecked stamps the rule's last-checked time.
	UpdateIdleLastChecked(ctx context.Context, packageName string, at time.Time) error

	// AppendIdleActionLog records one remediation firing.
	AppendIdleActionLog(ctx context.Context, entry IdleActionLog) error

	// IdleActionLogs returns the most recent firings, newest first.
	IdleActionLogs(ctx context.Context, limit int) ([]IdleActionLog, error)
}

// HistoryStore is the append-only audit sink. Write failures are logged
// and ignored by callers, never surfaced to users.
type HistoryStore interface {
	// AppendHistory writes one audit record.
	AppendHistory(ctx context.Context, entry ActionHistoryEntry) error

	// RecentHistory returns the newest entries, newest first.
	RecentHistory(ctx context.Context, limit int) ([]ActionHistoryEntry, error)

	// HistoryByTrigger filters by trigger source, newest first.
	HistoryByTrigger(ctx context.Context, source TriggerSource, limit int) ([]ActionHistoryEntry, error)

	// HistoryForApp filters by target package, newest first.
	HistoryForApp(ctx context.Context, packageName string, limit int) ([]ActionHistoryEntry, error)

	// DeleteHistoryBefore removes entries older than the cutoff.
	DeleteHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteAllHistory wipes the audit trail.
	DeleteAllHistory(ctx context.Context) error
}

// SnapshotStore persists system snapshots.
type SnapshotStore interface {
	// Snapshot returns a snapshot by ID, or nil if none.
	Snapshot(ctx context.Context, id string) (*SystemSnapshot, error)

	// Snapshots returns all snapshots, newest first.
	Snapshots(ctx context.Context) ([]SystemSnapshot, error)

	// QuickAccessSnapshots returns snapshots pinned for quick access.
	QuickAccessSnapshots(ctx context.Context) ([]SystemSnapshot, error)

	// SaveSnapshot inserts or replaces a snapshot.
	SaveSnapshot(ctx context.Context, snap SystemSnapshot) error

	// DeleteSnapshot removes a snapshot by ID.
	DeleteSnapshot(ctx context.Context, id string) error

	// MarkSnapshotUsed stamps last-used and bumps the use counter.
	MarkSnapshotUsed(ctx context.Context, id string, at time.Time) error

	// SetSnapshotQuickAccess toggles the quick-access flag.
	SetSnapshotQuickAccess(ctx context.Context, id string, quick bool) error
}
