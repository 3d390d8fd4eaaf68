package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brittytino/patchworkd/internal/domain"
)

// AppendHistory writes one audit record. Entries are immutable once
// written; there is no update path.
func (s *Store) AppendHistory(ctx context.Context, entry domain.ActionHistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_history
		(timestamp, action_type, category, title, description, target_app,
		 trigger_source, success, error_message, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		toMillis(entry.Timestamp), string(entry.ActionType), entry.Category,
		entry.Title, entry.Description, toNullString(entry.TargetApp),
		string(entry.TriggerSource), entry.Success,
		toNullString(entry.ErrorMessage), toNullString(entry.Metadata))
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	s.notifier.Publish("action_history")
	return nil
}

// RecentHistory returns the newest entries, newest first.
func (s *Store) RecentHistory(ctx context.Context, limit int) ([]domain.ActionHistoryEntry, error) {
	return s.queryHistory(ctx, `
		SELECT `+historyColumns+` FROM action_history
		ORDER BY timestamp DESC LIMIT ?`, limit)
}

// HistoryByTrigger filters by trigger source, newest first.
func (s *Store) HistoryByTrigger(ctx context.Context, source domain.TriggerSource, limit int) ([]domain.ActionHistoryEntry, error) {
	return s.queryHistory(ctx, `
		SELECT `+historyColumns+` FROM action_history
		WHERE trigger_source = ? ORDER BY timestamp DESC LIMIT ?`,
		string(source), limit)
}

// HistoryForApp filters by target package, newest first.
func (s *Store) HistoryForApp(ctx context.Context, packageName string, limit int) ([]domain.ActionHistoryEntry, error) {
	return s.queryHistory(ctx, `
		SELECT `+historyColumns+` FROM action_history
		WHERE target_app = ? ORDER BY timestamp DESC LIMIT ?`,
		packageName, limit)
}

// DeleteHistoryBefore removes entries older than the cutoff.
func (s *Store) DeleteHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM action_history WHERE timestamp < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.notifier.Publish("action_history")
	}
	return n, nil
}

// DeleteAllHistory wipes the audit trail.
func (s *Store) DeleteAllHistory(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM action_history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	s.notifier.Publish("action_history")
	return nil
}

const historyColumns = `id, timestamp, action_type, category, title, description,
	target_app, trigger_source, success, error_message, metadata`

func (s *Store) queryHistory(ctx context.Context, query string, args ...any) ([]domain.ActionHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.ActionHistoryEntry
	for rows.Next() {
		var (
			e                         domain.ActionHistoryEntry
			ts                        int64
			actionType, trigger       string
			target, errMsg, metadata  sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &actionType, &e.Category, &e.Title,
			&e.Description, &target, &trigger, &e.Success, &errMsg, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Timestamp = fromMillis(ts)
		e.ActionType = domain.ActionType(actionType)
		e.TriggerSource = domain.TriggerSource(trigger)
		e.TargetApp = target.String
		e.ErrorMessage = errMsg.String
		e.Metadata = metadata.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ domain.HistoryStore = (*Store)(nil)
