// Package main is the CLI entry point for patchworkd.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/brittytino/patchworkd/internal/audit"
	"github.com/brittytino/patchworkd/internal/config"
	"github.com/brittytino/patchworkd/internal/daemon"
	"github.com/brittytino/patchworkd/internal/domain"
	"github.com/brittytino/patchworkd/internal/engine"
	"github.com/brittytino/patchworkd/internal/infra"
	"github.com/brittytino/patchworkd/internal/store"
)

var (
	// Version info (set via ldflags)
	Version   = "0.3.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

var (
	cfgFile    string
	jsonOutput bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "patchworkd",
	Short: "Per-app device rules daemon for rooted Android",
	Long: `patchworkd watches the foreground app and applies per-app device rules:
volume and display overrides while an app is open, cooldown windows and
open caps that block compulsive relaunches, and remediation for apps
left idle for too long. Every action lands in an encrypted audit log.`,
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor daemon in the foreground",
	Long: `Starts the daemon: polls the foreground app, enforces behavior and
cooldown rules, scans idle rules and runs the nightly retention jobs.
Blocks until interrupted.`,
	RunE: runRun,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the daemon is running",
	RunE:  runStatus,
}

var checkCmd = &cobra.Command{
	Use:   "check <package>",
	Short: "Evaluate a launch against the cooldown rules",
	Long: `Evaluates whether launching the package right now would be blocked,
and shows today's usage counters. A blocked verdict is recorded on the
rule and in the history, exactly as a real launch would be.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the action history",
	RunE:  runHistory,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run the retention jobs once, immediately",
	RunE:  runCleanup,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

var (
	historyLimit   int
	historyTrigger string
	historyApp     string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum entries to show")
	historyCmd.Flags().StringVar(&historyTrigger, "trigger", "", "Filter by trigger source")
	historyCmd.Flags().StringVar(&historyApp, "app", "", "Filter by target package")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(ruleCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(versionCmd)
}

// openStore loads config, ensures the data directory and encryption key
// exist, and opens the database.
func openStore() (*config.Config, *store.Store, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	key, err := store.EnsureKey(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load database key: %w", err)
	}
	st, err := store.Open(cfg.DataDir, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, st, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	auditLog := audit.NewLogger(st, logger)
	defer auditLog.Flush()

	device := infra.NewShellDeviceSettings(logger)
	apps := infra.NewShellAppController(logger)
	usage := infra.NewDumpsysUsageSource(logger)
	notify := infra.NewShellNotifier(logger)
	foreground := infra.NewShellForegroundSource(logger)

	behavior := engine.NewBehaviorEngine(st, device, auditLog, logger)
	defer behavior.Close()
	cooldown := engine.NewCooldownEngine(st, st, auditLog, logger)
	defer cooldown.Close()
	idle := engine.NewIdleEngine(st, usage, apps, notify, auditLog, logger)
	idle.SetInterval(cfg.IdleCheckInterval())

	monitor := daemon.NewMonitor(
		daemon.MonitorConfig{
			PollInterval:      cfg.PollInterval(),
			RetentionSchedule: cfg.Retention.Schedule,
			UsageRetention:    cfg.UsageRetention(),
			HistoryRetention:  cfg.HistoryRetention(),
		},
		foreground, behavior, cooldown, idle,
		apps, notify, st, st,
		daemon.NewPidFile(cfg.DataDir), Version, logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	if err := monitor.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	entry, alive, err := daemon.NewPidFile(cfg.DataDir).Status()
	if err != nil {
		return err
	}

	fmt.Println("\n=== patchworkd Status ===")
	switch {
	case entry == nil:
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'patchworkd run' to start the daemon.")
	case !alive:
		fmt.Println("Status: NOT RUNNING (stale pidfile)")
		fmt.Printf("Last PID: %d\n", entry.PID)
	default:
		fmt.Println("Status: RUNNING")
		fmt.Printf("PID: %d\n", entry.PID)
		fmt.Printf("Version: %s\n", entry.Version)
		started := time.Unix(entry.StartedAt, 0)
		fmt.Printf("Up: %s\n", time.Since(started).Round(time.Second))
	}
	fmt.Printf("Data dir: %s\n", cfg.DataDir)
	fmt.Println("=========================")
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	packageName := args[0]

	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	logger := zap.NewNop()
	auditLog := audit.NewLogger(st, logger)
	defer auditLog.Flush()
	cooldown := engine.NewCooldownEngine(st, st, auditLog, logger)
	defer cooldown.Close()

	ctx := context.Background()
	blocked, reason := cooldown.CheckAppLaunch(ctx, packageName, packageName)
	stats := cooldown.AppStats(ctx, packageName)

	if blocked {
		fmt.Printf("BLOCKED: %s\n", reason)
	} else {
		fmt.Println("ALLOWED")
	}
	fmt.Printf("Opens today: %d\n", stats.TodayOpens)
	fmt.Printf("Opens last hour: %d\n", stats.HourlyOpens)
	if remaining := cooldown.RemainingCooldown(ctx, packageName); remaining > 0 {
		fmt.Printf("Cooldown remaining: %s\n", remaining.Round(time.Second))
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	var entries []domain.ActionHistoryEntry
	switch {
	case historyTrigger != "":
		got, err := st.HistoryByTrigger(ctx, domain.TriggerSource(historyTrigger), historyLimit)
		if err != nil {
			return err
		}
		entries = got
	case historyApp != "":
		got, err := st.HistoryForApp(ctx, historyApp, historyLimit)
		if err != nil {
			return err
		}
		entries = got
	default:
		got, err := st.RecentHistory(ctx, historyLimit)
		if err != nil {
			return err
		}
		entries = got
	}

	if len(entries) == 0 {
		fmt.Println("No history entries.")
		return nil
	}
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "FAILED"
		}
		fmt.Printf("%s  [%s] %s: %s (%s)\n",
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.TriggerSource, e.Title, e.Description, status)
	}
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	usageCutoff := time.Now().Add(-cfg.UsageRetention())
	nUsage, err := st.DeleteUsageEventsBefore(ctx, usageCutoff)
	if err != nil {
		return fmt.Errorf("usage cleanup failed: %w", err)
	}
	historyCutoff := time.Now().Add(-cfg.HistoryRetention())
	nHistory, err := st.DeleteHistoryBefore(ctx, historyCutoff)
	if err != nil {
		return fmt.Errorf("history cleanup failed: %w", err)
	}

	fmt.Printf("Deleted %d usage events, %d history entries\n", nUsage, nHistory)
	return nil
}

func createLogger(cfg *config.Config) *zap.Logger {
	level := zapcore.InfoLevel
	if l, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		level = l
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{filepath.Join(cfg.DataDir, "patchworkd.log")}
	zcfg.ErrorOutputPaths = []string{filepath.Join(cfg.DataDir, "patchworkd.error.log")}
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("patchworkd %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
