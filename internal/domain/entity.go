// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActionType identifies what kind of action was recorded in the history.
type ActionType string

const (
	ActionAppFrozen               ActionType = "APP_FROZEN"
	ActionAppUnfrozen             ActionType = "APP_UNFROZEN"
	ActionVolumeChanged           ActionType = "VOLUME_CHANGED"
	ActionBrightnessChanged       ActionType = "BRIGHTNESS_CHANGED"
	ActionNightLightToggled       ActionType = "NIGHT_LIGHT_TOGGLED"
	ActionSystemSettingChanged    ActionType = "SYSTEM_SETTING_CHANGED"
	ActionAppBehaviorApplied      ActionType = "APP_BEHAVIOR_APPLIED"
	ActionAppCooldownTriggered    ActionType = "APP_COOLDOWN_TRIGGERED"
	ActionAppCooldownBlocked      ActionType = "APP_COOLDOWN_BLOCKED"
	ActionIdleAppAction           ActionType = "IDLE_APP_ACTION"
	ActionServiceStopped          ActionType = "SERVICE_STOPPED"
	ActionNotificationIntercepted ActionType = "NOTIFICATION_INTERCEPTED"
	ActionSnapshotSaved           ActionType = "SNAPSHOT_SAVED"
	ActionSnapshotRestored        ActionType = "SNAPSHOT_RESTORED"
)

// TriggerSource identifies what caused an action to happen.
type TriggerSource string

const (
	TriggerUserManual  TriggerSource = "USER_MANUAL"
	TriggerAutomation  TriggerSource = "AUTOMATION"
	TriggerAppBehavior TriggerSource = "APP_BEHAVIOR"
	TriggerAppCooldown TriggerSource = "APP_COOLDOWN"
	TriggerIdleEngine  TriggerSource = "IDLE_APP_ENGINE"
	TriggerSchedule    TriggerSource = "SCHEDULE"
	TriggerSystemEvent TriggerSource = "SYSTEM_EVENT"
)

// IdleAction is the remediation an idle rule fires.
type IdleAction string

const (
	IdleFreeze     IdleAction = "FREEZE"
	IdleKill       IdleAction = "KILL"
	IdleClearCache IdleAction = "CLEAR_CACHE"
	IdleNotify     IdleAction = "NOTIFY"
)

// BehaviorRule configures per-app device overrides applied while the app
// is in the foreground. At most one rule exists per package.
type BehaviorRule struct {
	ID          string
	PackageName string
	AppName     string
	Enabled     bool
	CreatedAt   time.Time

	// Audio. Volumes are percentages (0-100) of the stream maximum.
	SetRingVolume         *int
	SetMediaVolume        *int
	SetNotificationVolume *int
	MuteOnEntry           bool

	// Display. Brightness is the device-native 0-255 range.
	SetBrightness    *int
	KeepScreenAwake  bool
	SetScreenTimeout *int // milliseconds
	EnableNightLight *bool
	SetOrientation   string // PORTRAIT, LANDSCAPE, AUTO, or empty

	// Privacy.
	DisableScreenshots         bool
	ClearClipboardOnExit       bool
	DisableNotificationPeeking bool

	// Notifications.
	BlockNotifications       bool
	HideNotificationContents bool

	// Network.
	BlockNetworkAccess bool
	AllowOnlyWifi      bool

	// Performance.
	PrioritizePower bool
	PriorityLevel   *int

	Notes         string
	LastAppliedAt *time.Time
	ApplyCount    int
}

// NewBehaviorRule creates an enabled rule with a fresh ID.
func NewBehaviorRule(packageName, appName string) BehaviorRule {
	return BehaviorRule{
		ID:          uuid.NewString(),
		PackageName: packageName,
		AppName:     appName,
		Enabled:     true,
		CreatedAt:   time.Now(),
	}
}

// CooldownRule gates how often an app may be reopened.
// At most one rule exists per package.
type CooldownRule struct {
	ID          string
	PackageName string
	AppName     string
	Enabled     bool

	CooldownPeriodMinutes int
	MaxDailyOpens         *int
	MaxHourlyOpens        *int

	ShowWarningDialog bool
	BlockLaunch       bool

	TimesStopped  int
	TimesBypassed int
	LastTriggered *time.Time

	CreatedAt time.Time
}

// NewCooldownRule creates an enabled rule with the stock defaults
// (30 minute cooldown, warning dialog on).
func NewCooldownRule(packageName, appName string) CooldownRule {
	return CooldownRule{
		ID:                    uuid.NewString(),
		PackageName:           packageName,
		AppName:               appName,
		Enabled:               true,
		CooldownPeriodMinutes: 30,
		ShowWarningDialog:     true,
		CreatedAt:             time.Now(),
	}
}

// UsageEvent is one observed app open. Rows are append-only; duration is
// never retrofitted onto the open event after the fact.
type UsageEvent struct {
	ID          int64
	PackageName string
	AppName     string
	Timestamp   time.Time
	WasBlocked  bool
	DurationMs  *int64
}

// IdleRule configures a remediation for an app left unused too long.
// At most one rule exists per package.
type IdleRule struct {
	ID          string
	PackageName string
	AppName     string
	Enabled     bool

	IdleThresholdMinutes int
	Action               IdleAction

	ActionCount   int
	LastCheckedAt *time.Time

	CreatedAt time.Time
}

// NewIdleRule creates an enabled rule with the stock defaults
// (3 hour threshold, NOTIFY action).
func NewIdleRule(packageName, appName string) IdleRule {
	return IdleRule{
		ID:                   uuid.NewString(),
		PackageName:          packageName,
		AppName:              appName,
		Enabled:              true,
		IdleThresholdMinutes: 180,
		Action:               IdleNotify,
		CreatedAt:            time.Now(),
	}
}

// IdleActionLog records one remediation firing.
type IdleActionLog struct {
	ID              int64
	PackageName     string
	AppName         string
	Action          IdleAction
	Timestamp       time.Time
	IdleTimeMinutes int
	Success         bool
	ErrorMessage    string
}

// ActionHistoryEntry is one immutable audit record. Only bulk or
// age-based deletion is supported once written.
type ActionHistoryEntry struct {
	ID            int64
	Timestamp     time.Time
	ActionType    ActionType
	Category      string
	Title         string
	Description   string
	TargetApp     string
	TriggerSource TriggerSource
	Success       bool
	ErrorMessage  string
	Metadata      string // JSON blob, optional
}

// SystemSnapshot is a named, restorable bundle of device settings.
// Nil fields were unreadable at capture time and are skipped on restore.
type SystemSnapshot struct {
	ID          string
	Name        string
	Description string
	IconName    string
	CreatedAt   time.Time
	LastUsedAt  *time.Time

	// Audio
	RingVolume         *int
	MediaVolume        *int
	AlarmVolume        *int
	NotificationVolume *int
	SoundMode          string // NORMAL, VIBRATE, SILENT, or empty

	// Display
	Brightness        *int
	BrightnessMode    string // MANUAL, AUTO, or empty
	ScreenTimeout     *int
	NightLightEnabled *bool
	AODEnabled        *bool
	BlueFilterEnabled *bool

	// Connectivity
	WifiEnabled         *bool
	BluetoothEnabled    *bool
	MobileDataEnabled   *bool
	NFCEnabled          *bool
	AirplaneModeEnabled *bool

	// Other
	RotationLocked   *bool
	DoNotDisturbMode *int

	IsQuickAccess bool
	UseCount      int
}

// NewSystemSnapshot creates an empty snapshot shell with a fresh ID.
func NewSystemSnapshot(name, description string) SystemSnapshot {
	return SystemSnapshot{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		IconName:    "default",
		CreatedAt:   time.Now(),
	}
}

// SystemState is the transient subset of device state the behavior engine
// captures before applying a rule, restored verbatim on exit.
type SystemState struct {
	RingVolume         int
	MediaVolume        int
	NotificationVolume int
	Brightness         *int
	ScreenTimeout      *int
}

// AppStats summarizes cooldown-relevant usage for one app.
// TotalScreenTimeMs undercounts: open events never get a duration
// written back when the app closes.
type AppStats struct {
	TodayOpens        int
	HourlyOpens       int
	TotalScreenTimeMs int64
}

// IdleStats summarizes recency for one app over the trailing week.
type IdleStats struct {
	LastUsed              time.Time
	IdleMinutes           int64
	TotalForegroundTimeMs int64
}

// AppUsage is one package's usage as reported by the OS usage source.
type AppUsage struct {
	PackageName           string
	LastUsed              time.Time
	TotalForegroundTimeMs int64
}
