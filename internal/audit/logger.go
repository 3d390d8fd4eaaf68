// Package audit writes the append-only action history. Every engine
// reports through here; nothing reads the trail back into engine logic.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brittytino/patchworkd/internal/domain"
)

// Entry is one pending audit record before defaults are filled in.
type Entry struct {
	Type          domain.ActionType
	Category      string
	Title         string
	Description   string
	TargetApp     string
	TriggerSource domain.TriggerSource
	Success       bool
	ErrorMessage  string
	Metadata      map[string]any
}

// Logger appends ActionHistoryEntry records asynchronously. Sink failures
// are logged and swallowed; an audit hiccup must never surface as a
// user-visible error.
type Logger struct {
	store  domain.HistoryStore
	logger *zap.Logger
	nowFn  func() time.Time
	wg     sync.WaitGroup
}

// NewLogger creates an audit logger over the given history store.
func NewLogger(store domain.HistoryStore, logger *zap.Logger) *Logger {
	return &Logger{
		store:  store,
		logger: logger,
		nowFn:  time.Now,
	}
}

// Log appends one record in the background. Missing fields get defaults:
// trigger USER_MANUAL, success true.
func (l *Logger) Log(e Entry) {
	if e.TriggerSource == "" {
		e.TriggerSource = domain.TriggerUserManual
	}

	record := domain.ActionHistoryEntry{
		Timestamp:     l.nowFn(),
		ActionType:    e.Type,
		Category:      e.Category,
		Title:         e.Title,
		Description:   e.Description,
		TargetApp:     e.TargetApp,
		TriggerSource: e.TriggerSource,
		Success:       e.Success,
		ErrorMessage:  e.ErrorMessage,
	}
	if e.Metadata != nil {
		if blob, err := json.Marshal(e.Metadata); err == nil {
			record.Metadata = string(blob)
		} else {
			l.logger.Warn("failed to encode audit metadata", zap.Error(err))
		}
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.store.AppendHistory(context.Background(), record); err != nil {
			l.logger.Warn("failed to write audit entry",
				zap.String("action", string(record.ActionType)),
				zap.Error(err))
		}
	}()
}

// Flush blocks until all queued records have been written. Tests and
// shutdown paths use it; engines never wait on the audit trail.
func (l *Logger) Flush() {
	l.wg.Wait()
}

// AppFrozen records a freeze of one app.
func (l *Logger) AppFrozen(packageName, appName string, source domain.TriggerSource) {
	l.Log(Entry{
		Type:          domain.ActionAppFrozen,
		Category:      "App Management",
		Title:         "App Frozen",
		Description:   "Froze " + appName,
		TargetApp:     packageName,
		TriggerSource: source,
		Success:       true,
	})
}

// AppUnfrozen records an unfreeze of one app.
func (l *Logger) AppUnfrozen(packageName, appName string, source domain.TriggerSource) {
	l.Log(Entry{
		Type:          domain.ActionAppUnfrozen,
		Category:      "App Management",
		Title:         "App Unfrozen",
		Description:   "Unfroze " + appName,
		TargetApp:     packageName,
		TriggerSource: source,
		Success:       true,
	})
}

// SettingChanged records a system-setting change with old/new metadata.
func (l *Logger) SettingChanged(setting, oldValue, newValue string, source domain.TriggerSource) {
	l.Log(Entry{
		Type:          domain.ActionSystemSettingChanged,
		Category:      "System",
		Title:         "Setting Changed",
		Description:   setting + ": " + oldValue + " to " + newValue,
		TriggerSource: source,
		Success:       true,
		Metadata: map[string]any{
			"setting": setting,
			"old":     oldValue,
			"new":     newValue,
		},
	})
}
