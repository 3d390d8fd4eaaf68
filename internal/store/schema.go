package store

const schema = `
CREATE TABLE IF NOT EXISTS app_behavior_rules (
    id TEXT NOT NULL,
    package_name TEXT PRIMARY KEY,
    app_name TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    set_ring_volume INTEGER,
    set_media_volume INTEGER,
    set_notification_volume INTEGER,
    mute_on_entry INTEGER NOT NULL DEFAULT 0,
    set_brightness INTEGER,
    keep_screen_awake INTEGER NOT NULL DEFAULT 0,
    set_screen_timeout INTEGER,
    enable_night_light INTEGER,
    set_orientation TEXT,
    disable_screenshots INTEGER NOT NULL DEFAULT 0,
    clear_clipboard_on_exit INTEGER NOT NULL DEFAULT 0,
    disable_notification_peeking INTEGER NOT NULL DEFAULT 0,
    block_notifications INTEGER NOT NULL DEFAULT 0,
    hide_notification_contents INTEGER NOT NULL DEFAULT 0,
    block_network_access INTEGER NOT NULL DEFAULT 0,
    allow_only_wifi INTEGER NOT NULL DEFAULT 0,
    prioritize_power INTEGER NOT NULL DEFAULT 0,
    priority_level INTEGER,
    notes TEXT NOT NULL DEFAULT '',
    last_applied_at INTEGER,
    apply_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS app_cooldown_rules (
    id TEXT NOT NULL,
    package_name TEXT PRIMARY KEY,
    app_name TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    cooldown_period_minutes INTEGER NOT NULL DEFAULT 30,
    max_daily_opens INTEGER,
    max_hourly_opens INTEGER,
    show_warning_dialog INTEGER NOT NULL DEFAULT 1,
    block_launch INTEGER NOT NULL DEFAULT 0,
    times_stopped INTEGER NOT NULL DEFAULT 0,
    times_bypassed INTEGER NOT NULL DEFAULT 0,
    last_triggered INTEGER,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS app_usage_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    package_name TEXT NOT NULL,
    app_name TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    was_blocked INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER
);

CREATE TABLE IF NOT EXISTS idle_app_rules (
    id TEXT NOT NULL,
    package_name TEXT PRIMARY KEY,
    app_name TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    idle_threshold_minutes INTEGER NOT NULL DEFAULT 180,
    action TEXT NOT NULL DEFAULT 'NOTIFY',
    action_count INTEGER NOT NULL DEFAULT 0,
    last_checked_at INTEGER,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS idle_app_actions_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    package_name TEXT NOT NULL,
    app_name TEXT NOT NULL,
    action TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    idle_time_minutes INTEGER NOT NULL,
    success INTEGER NOT NULL,
    error_message TEXT
);

CREATE TABLE IF NOT EXISTS action_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp INTEGER NOT NULL,
    action_type TEXT NOT NULL,
    category TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    target_app TEXT,
    trigger_source TEXT NOT NULL,
    success INTEGER NOT NULL DEFAULT 1,
    error_message TEXT,
    metadata TEXT
);

CREATE TABLE IF NOT EXISTS system_snapshots (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    icon_name TEXT NOT NULL DEFAULT 'default',
    created_at INTEGER NOT NULL,
    last_used_at INTEGER,
    ring_volume INTEGER,
    media_volume INTEGER,
    alarm_volume INTEGER,
    notification_volume INTEGER,
    sound_mode TEXT,
    brightness INTEGER,
    brightness_mode TEXT,
    screen_timeout INTEGER,
    night_light_enabled INTEGER,
    aod_enabled INTEGER,
    blue_filter_enabled INTEGER,
    wifi_enabled INTEGER,
    bluetooth_enabled INTEGER,
    mobile_data_enabled INTEGER,
    nfc_enabled INTEGER,
    airplane_mode_enabled INTEGER,
    rotation_locked INTEGER,
    dnd_mode INTEGER,
    is_quick_access INTEGER NOT NULL DEFAULT 0,
    use_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_usage_package_ts ON app_usage_events(package_name, timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_ts ON app_usage_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_idle_log_package ON idle_app_actions_log(package_name);
CREATE INDEX IF NOT EXISTS idx_history_ts ON action_history(timestamp);
CREATE INDEX IF NOT EXISTS idx_history_trigger ON action_history(trigger_source);
CREATE INDEX IF NOT EXISTS idx_history_target ON action_history(target_app);
`
