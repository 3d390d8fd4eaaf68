package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brittytino/patchworkd/internal/domain"
)

const idleColumns = `id, package_name, app_name, enabled,
	idle_threshold_minutes, action, action_count, last_checked_at, created_at`

// IdleRule returns the rule for a package, or nil if none exists.
func (s *Store) IdleRule(ctx context.Context, packageName string) (*domain.IdleRule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+idleColumns+` FROM idle_app_rules WHERE package_name = ?`,
		packageName)
	rule, err := scanIdleRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query idle rule: %w", err)
	}
	return rule, nil
}

// IdleRules returns all rules ordered by app name.
func (s *Store) IdleRules(ctx context.Context) ([]domain.IdleRule, error) {
	return s.queryIdleRules(ctx,
		`SELECT `+idleColumns+` FROM idle_app_rules ORDER BY app_name`)
}

// EnabledIdleRules returns only enabled rules.
func (s *Store) EnabledIdleRules(ctx context.Context) ([]domain.IdleRule, error) {
	return s.queryIdleRules(ctx,
		`SELECT `+idleColumns+` FROM idle_app_rules WHERE enabled = 1 ORDER BY app_name`)
}

func (s *Store) queryIdleRules(ctx context.Context, query string) ([]domain.IdleRule, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query idle rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.IdleRule
	for rows.Next() {
		rule, err := scanIdleRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan idle rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// SaveIdleRule inserts or replaces the rule for its package.
func (s *Store) SaveIdleRule(ctx context.Context, rule domain.IdleRule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO idle_app_rules (`+idleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.PackageName, rule.AppName, rule.Enabled,
		rule.IdleThresholdMinutes, string(rule.Action),
		rule.ActionCount, toNullMillis(rule.LastCheckedAt), toMillis(rule.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save idle rule: %w", err)
	}
	s.notifier.Publish("idle_app_rules")
	return nil
}

// DeleteIdleRule removes the rule for a package.
func (s *Store) DeleteIdleRule(ctx context.Context, packageName string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM idle_app_rules WHERE package_name = ?`, packageName)
	if err != nil {
		return fmt.Errorf("failed to delete idle rule: %w", err)
	}
	s.notifier.Publish("idle_app_rules")
	return nil
}

// IncrementIdleActionCount bumps the rule's action counter.
func (s *Store) IncrementIdleActionCount(ctx context.Context, packageName string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE idle_app_rules SET action_count = action_count + 1
		WHERE package_name = ?`, packageName)
	if err != nil {
		return fmt.Errorf("failed to increment idle action count: %w", err)
	}
	s.notifier.Publish("idle_app_rules")
	return nil
}

// UpdateIdleLastChecked stamps the rule's last-checked time.
func (s *Store) UpdateIdleLastChecked(ctx context.Context, packageName string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE idle_app_rules SET last_checked_at = ?
		WHERE package_name = ?`, toMillis(at), packageName)
	if err != nil {
		return fmt.Errorf("failed to update idle last checked: %w", err)
	}
	s.notifier.Publish("idle_app_rules")
	return nil
}

// AppendIdleActionLog records one remediation firing.
func (s *Store) AppendIdleActionLog(ctx context.Context, entry domain.IdleActionLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO idle_app_actions_log
		(package_name, app_name, action, timestamp, idle_time_minutes, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.PackageName, entry.AppName, string(entry.Action),
		toMillis(entry.Timestamp), entry.IdleTimeMinutes, entry.Success,
		toNullString(entry.ErrorMessage))
	if err != nil {
		return fmt.Errorf("failed to append idle action log: %w", err)
	}
	s.notifier.Publish("idle_app_actions_log")
	return nil
}

// IdleActionLogs returns the most recent firings, newest first.
func (s *Store) IdleActionLogs(ctx context.Context, limit int) ([]domain.IdleActionLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, package_name, app_name, action, timestamp, idle_time_minutes, success, error_message
		FROM idle_app_actions_log ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query idle action logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.IdleActionLog
	for rows.Next() {
		var (
			l      domain.IdleActionLog
			action string
			ts     int64
			errMsg sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.PackageName, &l.AppName, &action, &ts,
			&l.IdleTimeMinutes, &l.Success, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan idle action log: %w", err)
		}
		l.Action = domain.IdleAction(action)
		l.Timestamp = fromMillis(ts)
		l.ErrorMessage = errMsg.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func scanIdleRule(row rowScanner) (*domain.IdleRule, error) {
	var (
		r           domain.IdleRule
		action      string
		lastChecked sql.NullInt64
		createdAt   int64
	)
	err := row.Scan(&r.ID, &r.PackageName, &r.AppName, &r.Enabled,
		&r.IdleThresholdMinutes, &action, &r.ActionCount, &lastChecked, &createdAt)
	if err != nil {
		return nil, err
	}
	r.Action = domain.IdleAction(action)
	r.LastCheckedAt = fromNullMillis(lastChecked)
	r.CreatedAt = fromMillis(createdAt)
	return &r, nil
}

var _ domain.IdleRuleStore = (*Store)(nil)
