package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brittytino/patchworkd/internal/domain"
)

const cooldownColumns = `id, package_name, app_name, enabled,
	cooldown_period_minutes, max_daily_opens, max_hourly_opens,
	show_warning_dialog, block_launch,
	times_stopped, times_bypassed, last_triggered, created_at`

// CooldownRule returns the rule for a package, or nil if none exists.
func (s *Store) CooldownRule(ctx context.Context, packageName string) (*domain.CooldownRule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cooldownColumns+` FROM app_cooldown_rules WHERE package_name = ?`,
		packageName)
	rule, err := scanCooldownRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cooldown rule: %w", err)
	}
	return rule, nil
}

// CooldownRules returns all rules ordered by app name.
func (s *Store) CooldownRules(ctx context.Context) ([]domain.CooldownRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cooldownColumns+` FROM app_cooldown_rules ORDER BY app_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cooldown rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.CooldownRule
	for rows.Next() {
		rule, err := scanCooldownRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cooldown rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// SaveCooldownRule inserts or replaces the rule for its package.
func (s *Store) SaveCooldownRule(ctx context.Context, rule domain.CooldownRule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO app_cooldown_rules (`+cooldownColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.PackageName, rule.AppName, rule.Enabled,
		rule.CooldownPeriodMinutes, toNullInt(rule.MaxDailyOpens), toNullInt(rule.MaxHourlyOpens),
		rule.ShowWarningDialog, rule.BlockLaunch,
		rule.TimesStopped, rule.TimesBypassed,
		toNullMillis(rule.LastTriggered), toMillis(rule.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save cooldown rule: %w", err)
	}
	s.notifier.Publish("app_cooldown_rules")
	return nil
}

// DeleteCooldownRule removes the rule for a package.
func (s *Store) DeleteCooldownRule(ctx context.Context, packageName string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM app_cooldown_rules WHERE package_name = ?`, packageName)
	if err != nil {
		return fmt.Errorf("failed to delete cooldown rule: %w", err)
	}
	s.notifier.Publish("app_cooldown_rules")
	return nil
}

// MarkCooldownTriggered stamps last-triggered and bumps the stopped counter.
func (s *Store) MarkCooldownTriggered(ctx context.Context, packageName string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE app_cooldown_rules
		SET last_triggered = ?, times_stopped = times_stopped + 1
		WHERE package_name = ?`,
		toMillis(at), packageName)
	if err != nil {
		return fmt.Errorf("failed to mark cooldown triggered: %w", err)
	}
	s.notifier.Publish("app_cooldown_rules")
	return nil
}

func scanCooldownRule(row rowScanner) (*domain.CooldownRule, error) {
	var (
		r             domain.CooldownRule
		daily, hourly sql.NullInt64
		lastTriggered sql.NullInt64
		createdAt     int64
	)
	err := row.Scan(&r.ID, &r.PackageName, &r.AppName, &r.Enabled,
		&r.CooldownPeriodMinutes, &daily, &hourly,
		&r.ShowWarningDialog, &r.BlockLaunch,
		&r.TimesStopped, &r.TimesBypassed, &lastTriggered, &createdAt)
	if err != nil {
		return nil, err
	}
	r.MaxDailyOpens = fromNullInt(daily)
	r.MaxHourlyOpens = fromNullInt(hourly)
	r.LastTriggered = fromNullMillis(lastTriggered)
	r.CreatedAt = fromMillis(createdAt)
	return &r, nil
}

var _ domain.CooldownRuleStore = (*Store)(nil)
