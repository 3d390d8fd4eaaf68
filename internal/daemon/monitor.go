// Package daemon ties the engines to the device: it polls the foreground
// app, routes transitions into the behavior and cooldown engines,
// supervises the idle scanner and runs the nightly retention jobs.
package daemon

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brittytino/patchworkd/internal/domain"
	"github.com/brittytino/patchworkd/internal/engine"
)

// ForegroundSource reports which package currently owns the screen.
type ForegroundSource interface {
	// ForegroundApp returns the resumed package, or "" when none.
	ForegroundApp(ctx context.Context) (string, error)
}

// MonitorConfig holds monitor daemon configuration.
type MonitorConfig struct {
	PollInterval      time.Duration // How often the foreground app is sampled
	RetentionSchedule string        // Cron spec for the cleanup jobs
	UsageRetention    time.Duration // How long app-open events are kept
	HistoryRetention  time.Duration // How long audit records are kept
}

// Monitor is the main daemon loop.
type Monitor struct {
	config     MonitorConfig
	foreground ForegroundSource
	behavior   *engine.BehaviorEngine
	cooldown   *engine.CooldownEngine
	idle       *engine.IdleEngine
	apps       domain.AppController
	notify     domain.NotificationPresenter
	rules      domain.CooldownRuleStore
	history    domain.HistoryStore
	pidFile    *PidFile
	version    string
	logger     *zap.Logger
}

// NewMonitor creates the daemon.
func NewMonitor(
	config MonitorConfig,
	foreground ForegroundSource,
	behavior *engine.BehaviorEngine,
	cooldown *engine.CooldownEngine,
	idle *engine.IdleEngine,
	apps domain.AppController,
	notify domain.NotificationPresenter,
	rules domain.CooldownRuleStore,
	history domain.HistoryStore,
	pidFile *PidFile,
	version string,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		config:     config,
		foreground: foreground,
		behavior:   behavior,
		cooldown:   cooldown,
		idle:       idle,
		apps:       apps,
		notify:     notify,
		rules:      rules,
		history:    history,
		pidFile:    pidFile,
		version:    version,
		logger:     logger,
	}
}

// Run starts the daemon. Blocks until the context is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.pidFile.Register(m.version); err != nil {
		m.logger.Error("failed to write pidfile", zap.Error(err))
		return err
	}
	defer func() {
		if err := m.pidFile.Clear(); err != nil {
			m.logger.Warn("failed to remove pidfile", zap.Error(err))
		}
	}()

	m.logger.Info("monitor daemon started",
		zap.Duration("poll_interval", m.config.PollInterval),
		zap.String("version", m.version))

	m.idle.Start()
	defer m.idle.Stop()

	sched := cron.New()
	if _, err := sched.AddFunc(m.config.RetentionSchedule, func() {
		m.runRetention(ctx)
	}); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.pollLoop(ctx)
	})
	return g.Wait()
}

// pollLoop samples the foreground package and turns changes into
// enter/exit transitions for the engines. A launch the cooldown engine
// blocks is force-stopped before it ever counts as an open.
func (m *Monitor) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	var current string
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor daemon stopping")
			return ctx.Err()
		case <-ticker.C:
		}

		pkg, err := m.foreground.ForegroundApp(ctx)
		if err != nil {
			m.logger.Debug("foreground query failed", zap.Error(err))
			continue
		}
		if pkg == current {
			continue
		}

		if pkg != "" {
			label := m.appLabel(ctx, pkg)
			if blocked, reason := m.cooldown.CheckAppLaunch(ctx, pkg, label); blocked {
				m.logger.Info("blocking app launch",
					zap.String("package", pkg), zap.String("reason", reason))
				if err := m.apps.ForceStop(ctx, pkg); err != nil {
					m.logger.Warn("failed to stop blocked app",
						zap.String("package", pkg), zap.Error(err))
				}
				if err := m.notify.NotifyBlocked(ctx, label, reason); err != nil {
					m.logger.Debug("block notification failed", zap.Error(err))
				}
				// The stop bounces the foreground back; the next sample
				// picks up whatever replaced it.
				continue
			}
		}

		if current != "" {
			m.behavior.OnAppExitForeground(current)
			m.cooldown.OnAppClosed(current, m.appLabel(ctx, current))
		}
		if pkg != "" {
			label := m.appLabel(ctx, pkg)
			m.behavior.OnAppEnterForeground(pkg, label)
			m.cooldown.OnAppOpened(pkg, label)
		}
		current = pkg
	}
}

// runRetention deletes usage events and audit records past their windows.
func (m *Monitor) runRetention(ctx context.Context) {
	m.logger.Debug("running retention cleanup")

	if _, err := m.cooldown.CleanupOldEvents(ctx, m.config.UsageRetention); err != nil {
		m.logger.Error("usage retention failed", zap.Error(err))
	}

	cutoff := time.Now().Add(-m.config.HistoryRetention)
	n, err := m.history.DeleteHistoryBefore(ctx, cutoff)
	if err != nil {
		m.logger.Error("history retention failed", zap.Error(err))
		return
	}
	if n > 0 {
		m.logger.Info("cleaned up old history", zap.Int64("deleted", n))
	}
}

// appLabel resolves a display name for a package, preferring whatever
// name the user gave the rule. Falls back to the package name.
func (m *Monitor) appLabel(ctx context.Context, packageName string) string {
	rule, err := m.rules.CooldownRule(ctx, packageName)
	if err == nil && rule != nil && rule.AppName != "" {
		return rule.AppName
	}
	return packageName
}
