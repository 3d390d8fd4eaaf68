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

// DefaultCheckInterval is how often the idle loop scans rules.
const DefaultCheckInterval = 5 * time.Minute

// usageLookback is the window queried from the usage source each cycle.
const usageLookback = 7 * 24 * time.Hour

// IdleEngine periodically scans usage recency against per-app idle
// thresholds and fires the configured remediation. The loop does not
// debounce: two consecutive cycles with unchanged usage data both fire.
type IdleEngine struct {
	rules    domain.IdleRuleStore
	source   domain.UsageStatsSource
	apps     domain.AppController
	notify   domain.NotificationPresenter
	audit    *audit.Logger
	logger   *zap.Logger
	interval time.Duration
	nowFn    func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewIdleEngine creates a stopped engine.
func NewIdleEngine(
	rules domain.IdleRuleStore,
	source domain.UsageStatsSource,
	apps domain.AppController,
	notify domain.NotificationPresenter,
	auditLog *audit.Logger,
	logger *zap.Logger,
) *IdleEngine {
	return &IdleEngine{
		rules:    rules,
		source:   source,
		apps:     apps,
		notify:   notify,
		audit:    auditLog,
		logger:   logger,
		interval: DefaultCheckInterval,
		nowFn:    time.Now,
	}
}

// SetInterval changes the scan interval. Only effective before Start.
func (e *IdleEngine) SetInterval(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running && d > 0 {
		e.interval = d
	}
}

// Start launches the monitoring loop. Starting a running engine is a
// no-op.
func (e *IdleEngine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.logger.Debug("idle monitoring already running")
		return
	}
	e.running = true

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg.Add(1)
	go e.loop(ctx)

	e.logger.Info("started idle app monitoring",
		zap.Duration("interval", e.interval))
}

// Stop cancels the loop and waits for the in-flight cycle to finish. Safe
// to call when the engine was never started, and idempotent.
func (e *IdleEngine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.logger.Info("stopped idle app monitoring")
}

// Running reports whether the loop is active.
func (e *IdleEngine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *IdleEngine) loop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		if err := e.CheckIdleApps(ctx); err != nil && ctx.Err() == nil {
			// The loop survives a bad cycle and tries again next tick.
			e.logger.Error("idle check cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CheckIdleApps runs one scan cycle: load enabled rules, fetch last-used
// timestamps over the trailing week, fire actions for apps past their
// threshold, and stamp every rule's last-checked time.
func (e *IdleEngine) CheckIdleApps(ctx context.Context) error {
	rules, err := e.rules.EnabledIdleRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load idle rules: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	now := e.nowFn()
	usage, err := e.source.QueryUsage(ctx, now.Add(-usageLookback), now)
	if err != nil {
		return fmt.Errorf("failed to query usage stats: %w", err)
	}

	lastUsed := make(map[string]time.Time, len(usage))
	for _, u := range usage {
		lastUsed[u.PackageName] = u.LastUsed
	}

	for _, rule := range rules {
		// Never-observed packages count as idle since the epoch.
		last := lastUsed[rule.PackageName]
		idleMinutes := now.Sub(last).Milliseconds() / 60000

		if idleMinutes >= int64(rule.IdleThresholdMinutes) {
			e.executeAction(ctx, rule, idleMinutes)
		}

		if err := e.rules.UpdateIdleLastChecked(ctx, rule.PackageName, now); err != nil {
			e.logger.Warn("failed to update last checked",
				zap.String("package", rule.PackageName), zap.Error(err))
		}
	}
	return nil
}

// executeAction fires one rule's remediation and records the outcome in
// both the idle action log and the audit trail. The rule's counter is
// only incremented on success.
func (e *IdleEngine) executeAction(ctx context.Context, rule domain.IdleRule, idleMinutes int64) {
	success := false
	errorMessage := ""

	switch rule.Action {
	case domain.IdleFreeze:
		if err := e.apps.Freeze(ctx, rule.PackageName); err != nil {
			errorMessage = "Failed to freeze app"
			e.logger.Warn("freeze failed",
				zap.String("package", rule.PackageName), zap.Error(err))
		} else {
			success = true
			e.logger.Debug("froze idle app",
				zap.String("app", rule.AppName), zap.Int64("idle_minutes", idleMinutes))
		}

	case domain.IdleKill:
		if err := e.apps.ForceStop(ctx, rule.PackageName); err != nil {
			errorMessage = "Failed to kill app"
			e.logger.Warn("kill failed",
				zap.String("package", rule.PackageName), zap.Error(err))
		} else {
			success = true
			e.logger.Debug("killed idle app",
				zap.String("app", rule.AppName), zap.Int64("idle_minutes", idleMinutes))
		}

	case domain.IdleClearCache:
		// ClearCache needs system privileges the adapter cannot get; it
		// deterministically reports failure rather than pretending.
		if err := e.apps.ClearCache(ctx, rule.PackageName); err != nil {
			errorMessage = "Failed to clear cache"
		} else {
			success = true
		}

	case domain.IdleNotify:
		// Presentation is fire-and-forget; the action itself succeeds.
		success = true
		if err := e.notify.NotifyIdleApp(ctx, rule.AppName, idleMinutes); err != nil {
			e.logger.Warn("idle notification failed",
				zap.String("app", rule.AppName), zap.Error(err))
		}
	}

	if err := e.rules.AppendIdleActionLog(ctx, domain.IdleActionLog{
		PackageName:     rule.PackageName,
		AppName:         rule.AppName,
		Action:          rule.Action,
		Timestamp:       e.nowFn(),
		IdleTimeMinutes: int(idleMinutes),
		Success:         success,
		ErrorMessage:    errorMessage,
	}); err != nil {
		e.logger.Warn("failed to log idle action",
			zap.String("package", rule.PackageName), zap.Error(err))
	}

	if success {
		if err := e.rules.IncrementIdleActionCount(ctx, rule.PackageName); err != nil {
			e.logger.Warn("failed to increment action count",
				zap.String("package", rule.PackageName), zap.Error(err))
		}
	}

	e.audit.Log(audit.Entry{
		Type:     domain.ActionIdleAppAction,
		Category: "Idle Apps",
		Title:    "Idle App Action",
		Description: fmt.Sprintf("%s was %s after %dm of inactivity",
			rule.AppName, actionVerb(rule.Action), idleMinutes),
		TargetApp:     rule.PackageName,
		TriggerSource: domain.TriggerIdleEngine,
		Success:       success,
		ErrorMessage:  errorMessage,
	})
}

// CheckAppNow runs one rule's cycle iteration on demand, bypassing the
// periodic scheduler.
func (e *IdleEngine) CheckAppNow(ctx context.Context, packageName string) error {
	rule, err := e.rules.IdleRule(ctx, packageName)
	if err != nil {
		return fmt.Errorf("failed to load idle rule: %w", err)
	}
	if rule == nil || !rule.Enabled {
		return nil
	}

	stats, err := e.AppIdleStats(ctx, packageName)
	if err != nil {
		return err
	}
	if stats != nil && stats.IdleMinutes >= int64(rule.IdleThresholdMinutes) {
		e.executeAction(ctx, *rule, stats.IdleMinutes)
	}
	return nil
}

// AppIdleStats returns recency stats for one package over the trailing
// week, or nil when the usage source has never seen it.
func (e *IdleEngine) AppIdleStats(ctx context.Context, packageName string) (*domain.IdleStats, error) {
	now := e.nowFn()
	usage, err := e.source.QueryUsage(ctx, now.Add(-usageLookback), now)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage stats: %w", err)
	}
	for _, u := range usage {
		if u.PackageName == packageName {
			return &domain.IdleStats{
				LastUsed:              u.LastUsed,
				IdleMinutes:           now.Sub(u.LastUsed).Milliseconds() / 60000,
				TotalForegroundTimeMs: u.TotalForegroundTimeMs,
			}, nil
		}
	}
	return nil, nil
}

func actionVerb(action domain.IdleAction) string {
	switch action {
	case domain.IdleFreeze:
		return "frozen"
	case domain.IdleKill:
		return "killed"
	case domain.IdleClearCache:
		return "cache-cleared"
	case domain.IdleNotify:
		return "flagged"
	default:
		return string(action)
	}
}
