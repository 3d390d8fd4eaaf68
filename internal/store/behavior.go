package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brittytino/patchworkd/internal/domain"
)

const behaviorColumns = `id, package_name, app_name, enabled, created_at,
	set_ring_volume, set_media_volume, set_notification_volume, mute_on_entry,
	set_brightness, keep_screen_awake, set_screen_timeout, enable_night_light, set_orientation,
	disable_screenshots, clear_clipboard_on_exit, disable_notification_peeking,
	block_notifications, hide_notification_contents,
	block_network_access, allow_only_wifi,
	prioritize_power, priority_level,
	notes, last_applied_at, apply_count`

// BehaviorRule returns the rule for a package, or nil if none exists.
func (s *Store) BehaviorRule(ctx context.Context, packageName string) (*domain.BehaviorRule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+behaviorColumns+` FROM app_behavior_rules WHERE package_name = ?`,
		packageName)
	rule, err := scanBehaviorRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query behavior rule: %w", err)
	}
	return rule, nil
}

// BehaviorRules returns all rules ordered by app name.
func (s *Store) BehaviorRules(ctx context.Context) ([]domain.BehaviorRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+behaviorColumns+` FROM app_behavior_rules ORDER BY app_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query behavior rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.BehaviorRule
	for rows.Next() {
		rule, err := scanBehaviorRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan behavior rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// SaveBehaviorRule inserts or replaces the rule for its package.
func (s *Store) SaveBehaviorRule(ctx context.Context, rule domain.BehaviorRule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO app_behavior_rules (`+behaviorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.PackageName, rule.AppName, rule.Enabled, toMillis(rule.CreatedAt),
		toNullInt(rule.SetRingVolume), toNullInt(rule.SetMediaVolume),
		toNullInt(rule.SetNotificationVolume), rule.MuteOnEntry,
		toNullInt(rule.SetBrightness), rule.KeepScreenAwake,
		toNullInt(rule.SetScreenTimeout), toNullBool(rule.EnableNightLight),
		toNullString(rule.SetOrientation),
		rule.DisableScreenshots, rule.ClearClipboardOnExit, rule.DisableNotificationPeeking,
		rule.BlockNotifications, rule.HideNotificationContents,
		rule.BlockNetworkAccess, rule.AllowOnlyWifi,
		rule.PrioritizePower, toNullInt(rule.PriorityLevel),
		rule.Notes, toNullMillis(rule.LastAppliedAt), rule.ApplyCount)
	if err != nil {
		return fmt.Errorf("failed to save behavior rule: %w", err)
	}
	s.notifier.Publish("app_behavior_rules")
	return nil
}

// DeleteBehaviorRule removes the rule for a package.
func (s *Store) DeleteBehaviorRule(ctx context.Context, packageName string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM app_behavior_rules WHERE package_name = ?`, packageName)
	if err != nil {
		return fmt.Errorf("failed to delete behavior rule: %w", err)
	}
	s.notifier.Publish("app_behavior_rules")
	return nil
}

// MarkBehaviorRuleApplied stamps last-applied and bumps the apply counter.
func (s *Store) MarkBehaviorRuleApplied(ctx context.Context, packageName string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE app_behavior_rules
		SET last_applied_at = ?, apply_count = apply_count + 1
		WHERE package_name = ?`,
		toMillis(at), packageName)
	if err != nil {
		return fmt.Errorf("failed to mark behavior rule applied: %w", err)
	}
	s.notifier.Publish("app_behavior_rules")
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBehaviorRule(row rowScanner) (*domain.BehaviorRule, error) {
	var (
		r                                   domain.BehaviorRule
		createdAt                           int64
		ringVol, mediaVol, notifVol         sql.NullInt64
		brightness, timeout, priority       sql.NullInt64
		nightLight                          sql.NullBool
		orientation                         sql.NullString
		lastApplied                         sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.PackageName, &r.AppName, &r.Enabled, &createdAt,
		&ringVol, &mediaVol, &notifVol, &r.MuteOnEntry,
		&brightness, &r.KeepScreenAwake, &timeout, &nightLight, &orientation,
		&r.DisableScreenshots, &r.ClearClipboardOnExit, &r.DisableNotificationPeeking,
		&r.BlockNotifications, &r.HideNotificationContents,
		&r.BlockNetworkAccess, &r.AllowOnlyWifi,
		&r.PrioritizePower, &priority,
		&r.Notes, &lastApplied, &r.ApplyCount)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = fromMillis(createdAt)
	r.SetRingVolume = fromNullInt(ringVol)
	r.SetMediaVolume = fromNullInt(mediaVol)
	r.SetNotificationVolume = fromNullInt(notifVol)
	r.SetBrightness = fromNullInt(brightness)
	r.SetScreenTimeout = fromNullInt(timeout)
	r.EnableNightLight = fromNullBool(nightLight)
	r.SetOrientation = orientation.String
	r.PriorityLevel = fromNullInt(priority)
	r.LastAppliedAt = fromNullMillis(lastApplied)
	return &r, nil
}

var _ domain.BehaviorRuleStore = (*Store)(nil)
