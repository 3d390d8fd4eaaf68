package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brittytino/patchworkd/internal/domain"
)

const snapshotColumns = `id, name, description, icon_name, created_at, last_used_at,
	ring_volume, media_volume, alarm_volume, notification_volume, sound_mode,
	brightness, brightness_mode, screen_timeout, night_light_enabled, aod_enabled, blue_filter_enabled,
	wifi_enabled, bluetooth_enabled, mobile_data_enabled, nfc_enabled, airplane_mode_enabled,
	rotation_locked, dnd_mode, is_quick_access, use_count`

// Snapshot returns a snapshot by ID, or nil if none exists.
func (s *Store) Snapshot(ctx context.Context, id string) (*domain.SystemSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM system_snapshots WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return snap, nil
}

// Snapshots returns all snapshots, newest first.
func (s *Store) Snapshots(ctx context.Context) ([]domain.SystemSnapshot, error) {
	return s.querySnapshots(ctx,
		`SELECT `+snapshotColumns+` FROM system_snapshots ORDER BY created_at DESC`)
}

// QuickAccessSnapshots returns snapshots pinned for quick access.
func (s *Store) QuickAccessSnapshots(ctx context.Context) ([]domain.SystemSnapshot, error) {
	return s.querySnapshots(ctx, `
		SELECT `+snapshotColumns+` FROM system_snapshots
		WHERE is_quick_access = 1 ORDER BY use_count DESC`)
}

func (s *Store) querySnapshots(ctx context.Context, query string, args ...any) ([]domain.SystemSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.SystemSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

// SaveSnapshot inserts or replaces a snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap domain.SystemSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO system_snapshots (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Name, snap.Description, snap.IconName,
		toMillis(snap.CreatedAt), toNullMillis(snap.LastUsedAt),
		toNullInt(snap.RingVolume), toNullInt(snap.MediaVolume),
		toNullInt(snap.AlarmVolume), toNullInt(snap.NotificationVolume),
		toNullString(snap.SoundMode),
		toNullInt(snap.Brightness), toNullString(snap.BrightnessMode),
		toNullInt(snap.ScreenTimeout), toNullBool(snap.NightLightEnabled),
		toNullBool(snap.AODEnabled), toNullBool(snap.BlueFilterEnabled),
		toNullBool(snap.WifiEnabled), toNullBool(snap.BluetoothEnabled),
		toNullBool(snap.MobileDataEnabled), toNullBool(snap.NFCEnabled),
		toNullBool(snap.AirplaneModeEnabled),
		toNullBool(snap.RotationLocked), toNullInt(snap.DoNotDisturbMode),
		snap.IsQuickAccess, snap.UseCount)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	s.notifier.Publish("system_snapshots")
	return nil
}

// DeleteSnapshot removes a snapshot by ID.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM system_snapshots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	s.notifier.Publish("system_snapshots")
	return nil
}

// MarkSnapshotUsed stamps last-used and bumps the use counter.
func (s *Store) MarkSnapshotUsed(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE system_snapshots SET last_used_at = ?, use_count = use_count + 1
		WHERE id = ?`, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark snapshot used: %w", err)
	}
	s.notifier.Publish("system_snapshots")
	return nil
}

// SetSnapshotQuickAccess toggles the quick-access flag.
func (s *Store) SetSnapshotQuickAccess(ctx context.Context, id string, quick bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE system_snapshots SET is_quick_access = ? WHERE id = ?`, quick, id)
	if err != nil {
		return fmt.Errorf("failed to set snapshot quick access: %w", err)
	}
	s.notifier.Publish("system_snapshots")
	return nil
}

func scanSnapshot(row rowScanner) (*domain.SystemSnapshot, error) {
	var (
		snap                                    domain.SystemSnapshot
		createdAt                               int64
		lastUsed                                sql.NullInt64
		ringVol, mediaVol, alarmVol, notifVol   sql.NullInt64
		soundMode, brightnessMode               sql.NullString
		brightness, timeout, dnd                sql.NullInt64
		nightLight, aod, blueFilter             sql.NullBool
		wifi, bluetooth, mobileData, nfc, plane sql.NullBool
		rotation                                sql.NullBool
	)
	err := row.Scan(&snap.ID, &snap.Name, &snap.Description, &snap.IconName,
		&createdAt, &lastUsed,
		&ringVol, &mediaVol, &alarmVol, &notifVol, &soundMode,
		&brightness, &brightnessMode, &timeout, &nightLight, &aod, &blueFilter,
		&wifi, &bluetooth, &mobileData, &nfc, &plane,
		&rotation, &dnd, &snap.IsQuickAccess, &snap.UseCount)
	if err != nil {
		return nil, err
	}
	snap.CreatedAt = fromMillis(createdAt)
	snap.LastUsedAt = fromNullMillis(lastUsed)
	snap.RingVolume = fromNullInt(ringVol)
	snap.MediaVolume = fromNullInt(mediaVol)
	snap.AlarmVolume = fromNullInt(alarmVol)
	snap.NotificationVolume = fromNullInt(notifVol)
	snap.SoundMode = soundMode.String
	snap.Brightness = fromNullInt(brightness)
	snap.BrightnessMode = brightnessMode.String
	snap.ScreenTimeout = fromNullInt(timeout)
	snap.NightLightEnabled = fromNullBool(nightLight)
	snap.AODEnabled = fromNullBool(aod)
	snap.BlueFilterEnabled = fromNullBool(blueFilter)
	snap.WifiEnabled = fromNullBool(wifi)
	snap.BluetoothEnabled = fromNullBool(bluetooth)
	snap.MobileDataEnabled = fromNullBool(mobileData)
	snap.NFCEnabled = fromNullBool(nfc)
	snap.AirplaneModeEnabled = fromNullBool(plane)
	snap.RotationLocked = fromNullBool(rotation)
	snap.DoNotDisturbMode = fromNullInt(dnd)
	return &snap, nil
}

var _ domain.SnapshotStore = (*Store)(nil)
