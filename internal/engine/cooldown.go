package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brittytino/patchworkd/internal/audit"
	"github.com/brittytino/patchworkd/internal/domain"
)

const (
	dayMillis  = int64(24 * 60 * 60 * 1000)
	hourMillis = int64(60 * 60 * 1000)
)

// CooldownEngine gates app launches against cooldown windows and open
// caps. CheckAppLaunch and OnAppOpened are independent calls: the caller
// must not report an open for a launch it just blocked.
type CooldownEngine struct {
	rules  domain.CooldownRuleStore
	usage  domain.UsageEventStore
	audit  *audit.Logger
	logger *zap.Logger
	queue  *taskQueue
	nowFn  func() time.Time

	// Open sessions, package -> start time. Durations computed on close
	// are not written back onto the open event; see OnAppClosed.
	mu         sync.Mutex
	activeApps map[string]time.Time
}

// NewCooldownEngine creates the engine and starts its task queue.
func NewCooldownEngine(
	rules domain.CooldownRuleStore,
	usage domain.UsageEventStore,
	auditLog *audit.Logger,
	logger *zap.Logger,
) *CooldownEngine {
	return &CooldownEngine{
		rules:      rules,
		usage:      usage,
		audit:      auditLog,
		logger:     logger,
		queue:      newTaskQueue(),
		nowFn:      time.Now,
		activeApps: make(map[string]time.Time),
	}
}

// CheckAppLaunch decides whether a launch should be blocked and why.
// Policy is evaluated in fixed order, first match wins: disabled/no rule
// allows, then the cooldown window, then the daily cap, then the
// trailing-hour cap. Storage errors allow the launch.
//
// The daily window is epoch-day aligned (timestamp mod 24h), not local
// midnight. Kept as-is pending product confirmation.
func (e *CooldownEngine) CheckAppLaunch(ctx context.Context, packageName, appName string) (bool, string) {
	blocked, reason, err := e.evaluate(ctx, packageName)
	if err != nil {
		e.logger.Error("failed to evaluate launch",
			zap.String("package", packageName), zap.Error(err))
		return false, ""
	}

	if blocked {
		if err := e.rules.MarkCooldownTriggered(ctx, packageName, e.nowFn()); err != nil {
			e.logger.Warn("failed to mark cooldown triggered",
				zap.String("package", packageName), zap.Error(err))
		}
		e.audit.Log(audit.Entry{
			Type:          domain.ActionAppCooldownBlocked,
			Category:      "App Control",
			Title:         "App Launch Blocked",
			Description:   fmt.Sprintf("%s was blocked: %s", appName, reason),
			TargetApp:     packageName,
			TriggerSource: domain.TriggerAppCooldown,
			Success:       true,
		})
	}
	return blocked, reason
}

func (e *CooldownEngine) evaluate(ctx context.Context, packageName string) (bool, string, error) {
	rule, err := e.rules.CooldownRule(ctx, packageName)
	if err != nil {
		return false, "", err
	}
	if rule == nil || !rule.Enabled {
		return false, "", nil
	}

	now := e.nowFn()

	lastEvent, err := e.usage.LastUsageEvent(ctx, packageName)
	if err != nil {
		return false, "", err
	}
	if lastEvent != nil {
		cooldown := time.Duration(rule.CooldownPeriodMinutes) * time.Minute
		sinceLast := now.Sub(lastEvent.Timestamp)
		if sinceLast < cooldown {
			remaining := (cooldown - sinceLast).Milliseconds() / 60000
			return true, fmt.Sprintf("Cooldown active. Wait %dm", remaining), nil
		}
	}

	if rule.MaxDailyOpens != nil {
		dayStart := time.UnixMilli(now.UnixMilli() - now.UnixMilli()%dayMillis)
		count, err := e.usage.CountUsageEvents(ctx, packageName, dayStart, now)
		if err != nil {
			return false, "", err
		}
		if count >= *rule.MaxDailyOpens {
			return true, fmt.Sprintf("Daily limit reached (%d opens)", *rule.MaxDailyOpens), nil
		}
	}

	if rule.MaxHourlyOpens != nil {
		hourStart := time.UnixMilli(now.UnixMilli() - hourMillis)
		count, err := e.usage.CountUsageEvents(ctx, packageName, hourStart, now)
		if err != nil {
			return false, "", err
		}
		if count >= *rule.MaxHourlyOpens {
			return true, fmt.Sprintf("Hourly limit reached (%d opens)", *rule.MaxHourlyOpens), nil
		}
	}

	return false, "", nil
}

// OnAppOpened records an observed open. Always audited, even when the
// caller blocked the launch upstream; the caller is responsible for not
// reporting opens it suppressed.
func (e *CooldownEngine) OnAppOpened(packageName, appName string) {
	e.queue.submit(func() {
		ctx := context.Background()
		now := e.nowFn()

		e.mu.Lock()
		e.activeApps[packageName] = now
		e.mu.Unlock()

		_, err := e.usage.InsertUsageEvent(ctx, domain.UsageEvent{
			PackageName: packageName,
			AppName:     appName,
			Timestamp:   now,
		})
		if err != nil {
			e.logger.Error("failed to record usage event",
				zap.String("package", packageName), zap.Error(err))
			return
		}

		e.audit.Log(audit.Entry{
			Type:          domain.ActionAppCooldownTriggered,
			Category:      "App Control",
			Title:         "App Opened",
			Description:   appName + " opened",
			TargetApp:     packageName,
			TriggerSource: domain.TriggerAppCooldown,
			Success:       true,
		})
	})
}

// OnAppClosed drops the open session and computes the elapsed duration.
// The duration is not written back onto the originating usage event; the
// open rows stay append-only and screen-time stats undercount because of
// it. Known gap, kept deliberately.
func (e *CooldownEngine) OnAppClosed(packageName, appName string) {
	e.queue.submit(func() {
		e.mu.Lock()
		start, ok := e.activeApps[packageName]
		delete(e.activeApps, packageName)
		e.mu.Unlock()

		if ok {
			e.logger.Debug("app closed",
				zap.String("package", packageName),
				zap.Duration("session", e.nowFn().Sub(start)))
		}
	})
}

// RemainingCooldown returns how long until the package may reopen, zero
// when no cooldown applies or on storage errors.
func (e *CooldownEngine) RemainingCooldown(ctx context.Context, packageName string) time.Duration {
	rule, err := e.rules.CooldownRule(ctx, packageName)
	if err != nil || rule == nil || !rule.Enabled {
		if err != nil {
			e.logger.Error("failed to load cooldown rule", zap.Error(err))
		}
		return 0
	}
	lastEvent, err := e.usage.LastUsageEvent(ctx, packageName)
	if err != nil || lastEvent == nil {
		if err != nil {
			e.logger.Error("failed to load last usage event", zap.Error(err))
		}
		return 0
	}
	cooldown := time.Duration(rule.CooldownPeriodMinutes) * time.Minute
	remaining := cooldown - e.nowFn().Sub(lastEvent.Timestamp)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AppStats returns today's opens, the trailing hour's opens and total
// screen time since day start, each queried independently. Storage errors
// yield a zero-valued result instead of propagating.
func (e *CooldownEngine) AppStats(ctx context.Context, packageName string) domain.AppStats {
	now := e.nowFn()
	dayStart := time.UnixMilli(now.UnixMilli() - now.UnixMilli()%dayMillis)
	hourStart := time.UnixMilli(now.UnixMilli() - hourMillis)

	var stats domain.AppStats

	if count, err := e.usage.CountUsageEvents(ctx, packageName, dayStart, now); err == nil {
		stats.TodayOpens = count
	} else {
		e.logger.Error("failed to count daily opens", zap.Error(err))
	}

	if count, err := e.usage.CountUsageEvents(ctx, packageName, hourStart, now); err == nil {
		stats.HourlyOpens = count
	} else {
		e.logger.Error("failed to count hourly opens", zap.Error(err))
	}

	if events, err := e.usage.UsageEventsSince(ctx, packageName, dayStart); err == nil {
		for _, ev := range events {
			if ev.DurationMs != nil {
				stats.TotalScreenTimeMs += *ev.DurationMs
			}
		}
	} else {
		e.logger.Error("failed to sum screen time", zap.Error(err))
	}

	return stats
}

// CleanupOldEvents deletes usage events older than the retention window.
func (e *CooldownEngine) CleanupOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := e.nowFn().Add(-retention)
	n, err := e.usage.DeleteUsageEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up usage events: %w", err)
	}
	if n > 0 {
		e.logger.Info("cleaned up old usage events", zap.Int64("deleted", n))
	}
	return n, nil
}

// Sync blocks until all queued work has been processed. Test hook.
func (e *CooldownEngine) Sync() {
	e.queue.sync()
}

// Close drains and stops the task queue.
func (e *CooldownEngine) Close() {
	e.queue.close()
}
