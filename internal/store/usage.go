package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brittytino/patchworkd/internal/domain"
)

// InsertUsageEvent appends one open event and returns its row ID.
func (s *Store) InsertUsageEvent(ctx context.Context, event domain.UsageEvent) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO app_usage_events (package_name, app_name, timestamp, was_blocked, duration_ms)
		VALUES (?, ?, ?, ?, ?)`,
		event.PackageName, event.AppName, toMillis(event.Timestamp),
		event.WasBlocked, toNullInt64(event.DurationMs))
	if err != nil {
		return 0, fmt.Errorf("failed to insert usage event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read usage event id: %w", err)
	}
	s.notifier.Publish("app_usage_events")
	return id, nil
}

// LastUsageEvent returns the most recent event for a package, or nil.
func (s *Store) LastUsageEvent(ctx context.Context, packageName string) (*domain.UsageEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, package_name, app_name, timestamp, was_blocked, duration_ms
		FROM app_usage_events WHERE package_name = ?
		ORDER BY timestamp DESC LIMIT 1`,
		packageName)
	event, err := scanUsageEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last usage event: %w", err)
	}
	return event, nil
}

// CountUsageEvents counts events for a package in [start, end].
func (s *Store) CountUsageEvents(ctx context.Context, packageName string, start, end time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM app_usage_events
		WHERE package_name = ? AND timestamp >= ? AND timestamp <= ?`,
		packageName, toMillis(start), toMillis(end)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count usage events: %w", err)
	}
	return count, nil
}

// UsageEventsSince returns events for a package newer than since,
// oldest first.
func (s *Store) UsageEventsSince(ctx context.Context, packageName string, since time.Time) ([]domain.UsageEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, package_name, app_name, timestamp, was_blocked, duration_ms
		FROM app_usage_events
		WHERE package_name = ? AND timestamp >= ?
		ORDER BY timestamp`,
		packageName, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query usage events: %w", err)
	}
	defer rows.Close()

	var events []domain.UsageEvent
	for rows.Next() {
		event, err := scanUsageEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage event: %w", err)
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

// DeleteUsageEventsBefore removes events older than the cutoff.
func (s *Store) DeleteUsageEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM app_usage_events WHERE timestamp < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete usage events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.notifier.Publish("app_usage_events")
	}
	return n, nil
}

func scanUsageEvent(row rowScanner) (*domain.UsageEvent, error) {
	var (
		e        domain.UsageEvent
		ts       int64
		duration sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.PackageName, &e.AppName, &ts, &e.WasBlocked, &duration); err != nil {
		return nil, err
	}
	e.Timestamp = fromMillis(ts)
	e.DurationMs = fromNullInt64(duration)
	return &e, nil
}

var _ domain.UsageEventStore = (*Store)(nil)
