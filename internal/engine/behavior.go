package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brittytino/patchworkd/internal/audit"
	"github.com/brittytino/patchworkd/internal/domain"
)

// SystemUIPackage is the system shell; it never triggers rules.
const SystemUIPackage = "com.android.systemui"

// SelfPackage is this app's own package; it never triggers rules either.
const SelfPackage = "com.brittytino.patchwork"

// BehaviorEngine applies per-app device overrides on foreground entry and
// reverts them on exit. One package is "current" at a time: entering a new
// foreground package while another is active synthesizes an exit for the
// previous one first, so revert always precedes the next apply.
//
// All state mutation happens on the engine's task queue; the exported
// entry points only enqueue.
type BehaviorEngine struct {
	rules  domain.BehaviorRuleStore
	device domain.DeviceSettings
	audit  *audit.Logger
	logger *zap.Logger
	queue  *taskQueue
	nowFn  func() time.Time

	// Owned by the queue worker; never touched from outside it.
	currentPackage string
	previousState  *domain.SystemState
	wakeLockHeld   bool
}

// NewBehaviorEngine creates the engine and starts its task queue.
func NewBehaviorEngine(
	rules domain.BehaviorRuleStore,
	device domain.DeviceSettings,
	auditLog *audit.Logger,
	logger *zap.Logger,
) *BehaviorEngine {
	return &BehaviorEngine{
		rules:  rules,
		device: device,
		audit:  auditLog,
		logger: logger,
		queue:  newTaskQueue(),
		nowFn:  time.Now,
	}
}

// OnAppEnterForeground reacts to an app becoming the visible app.
func (e *BehaviorEngine) OnAppEnterForeground(packageName, appName string) {
	if packageName == SelfPackage || packageName == SystemUIPackage {
		return
	}
	e.queue.submit(func() {
		e.enter(context.Background(), packageName, appName)
	})
}

// OnAppExitForeground reacts to an app leaving the foreground. Exits for
// packages that are not current are silent no-ops.
func (e *BehaviorEngine) OnAppExitForeground(packageName string) {
	e.queue.submit(func() {
		e.exit(context.Background(), packageName)
	})
}

// Sync blocks until all queued transitions have been processed. Test hook.
func (e *BehaviorEngine) Sync() {
	e.queue.sync()
}

// Close drains and stops the task queue.
func (e *BehaviorEngine) Close() {
	e.queue.close()
}

func (e *BehaviorEngine) enter(ctx context.Context, packageName, appName string) {
	// Revert-before-apply: finish the previous app's exit first.
	if e.currentPackage != "" && e.currentPackage != packageName {
		e.exit(ctx, e.currentPackage)
	}

	rule, err := e.rules.BehaviorRule(ctx, packageName)
	if err != nil {
		e.logger.Error("failed to load behavior rule",
			zap.String("package", packageName), zap.Error(err))
		return
	}
	if rule == nil || !rule.Enabled {
		// Still track the package so a later exit is a clean no-op.
		e.currentPackage = packageName
		e.previousState = nil
		return
	}

	state, err := e.captureState(ctx)
	if err != nil {
		e.logger.Error("failed to capture device state",
			zap.String("package", packageName), zap.Error(err))
		return
	}
	e.previousState = state

	changes := e.applyRule(ctx, rule)

	if err := e.rules.MarkBehaviorRuleApplied(ctx, packageName, e.nowFn()); err != nil {
		e.logger.Warn("failed to mark rule applied",
			zap.String("package", packageName), zap.Error(err))
	}

	if len(changes) > 0 {
		e.audit.Log(audit.Entry{
			Type:          domain.ActionAppBehaviorApplied,
			Category:      "App Behavior",
			Title:         "Rules Applied",
			Description:   fmt.Sprintf("Applied rules for %s: %s", appName, strings.Join(changes, ", ")),
			TargetApp:     packageName,
			TriggerSource: domain.TriggerAppBehavior,
			Success:       true,
		})
	}

	e.currentPackage = packageName
}

func (e *BehaviorEngine) exit(ctx context.Context, packageName string) {
	if packageName != e.currentPackage {
		return
	}

	// State is cleared no matter how the revert goes.
	defer func() {
		e.currentPackage = ""
		e.previousState = nil
	}()

	rule, err := e.rules.BehaviorRule(ctx, packageName)
	if err != nil {
		e.logger.Error("failed to load behavior rule on exit",
			zap.String("package", packageName), zap.Error(err))
		return
	}
	if rule == nil || !rule.Enabled {
		return
	}

	if e.previousState != nil {
		e.restoreState(ctx, *e.previousState)
	}

	if rule.KeepScreenAwake && e.wakeLockHeld {
		if err := e.device.ReleaseWakeLock(ctx); err != nil {
			e.logger.Warn("failed to release wake lock", zap.Error(err))
		}
		e.wakeLockHeld = false
	}

	if rule.ClearClipboardOnExit {
		if err := e.device.ClearClipboard(ctx); err != nil {
			e.logger.Warn("failed to clear clipboard", zap.Error(err))
		}
	}

	e.audit.Log(audit.Entry{
		Type:          domain.ActionAppBehaviorApplied,
		Category:      "App Behavior",
		Title:         "Rules Reverted",
		Description:   fmt.Sprintf("Restored system state after exiting %s", rule.AppName),
		TargetApp:     packageName,
		TriggerSource: domain.TriggerAppBehavior,
		Success:       true,
	})
}

// applyRule applies every configured override, folding each (field, result)
// pair into the change list. Permission-denied writes are skipped without
// failing the apply; that is a business rule, not an error.
func (e *BehaviorEngine) applyRule(ctx context.Context, rule *domain.BehaviorRule) []string {
	var changes []string

	if rule.SetMediaVolume != nil {
		if e.setVolumePercent(ctx, domain.StreamMedia, *rule.SetMediaVolume) {
			changes = append(changes, fmt.Sprintf("Media volume -> %d%%", *rule.SetMediaVolume))
		}
	}

	if rule.SetRingVolume != nil {
		if e.setVolumePercent(ctx, domain.StreamRing, *rule.SetRingVolume) {
			changes = append(changes, fmt.Sprintf("Ring volume -> %d%%", *rule.SetRingVolume))
		}
	}

	if rule.SetNotificationVolume != nil {
		if e.setVolumePercent(ctx, domain.StreamNotification, *rule.SetNotificationVolume) {
			changes = append(changes, fmt.Sprintf("Notification volume -> %d%%", *rule.SetNotificationVolume))
		}
	}

	if rule.MuteOnEntry {
		if err := e.device.SetStreamVolume(ctx, domain.StreamMedia, 0); err != nil {
			e.softFail("mute", err)
		} else {
			changes = append(changes, "Muted")
		}
	}

	if rule.SetBrightness != nil {
		if err := e.device.SetBrightness(ctx, *rule.SetBrightness); err != nil {
			e.softFail("brightness", err)
		} else {
			changes = append(changes, fmt.Sprintf("Brightness -> %d%%", *rule.SetBrightness*100/255))
		}
	}

	if rule.KeepScreenAwake {
		if err := e.device.AcquireWakeLock(ctx); err != nil {
			e.softFail("wake lock", err)
		} else {
			e.wakeLockHeld = true
			changes = append(changes, "Keep screen awake")
		}
	}

	if rule.SetScreenTimeout != nil {
		if err := e.device.SetScreenTimeout(ctx, *rule.SetScreenTimeout); err != nil {
			e.softFail("screen timeout", err)
		} else {
			changes = append(changes, fmt.Sprintf("Screen timeout -> %ds", *rule.SetScreenTimeout/1000))
		}
	}

	if rule.EnableNightLight != nil {
		if err := e.device.SetNightLight(ctx, *rule.EnableNightLight); err != nil {
			e.softFail("night light", err)
		} else {
			label := "OFF"
			if *rule.EnableNightLight {
				label = "ON"
			}
			changes = append(changes, "Night Light -> "+label)
		}
	}

	return changes
}

// setVolumePercent converts a 0-100 percent into the stream's native range.
func (e *BehaviorEngine) setVolumePercent(ctx context.Context, stream domain.AudioStream, percent int) bool {
	max, err := e.device.MaxStreamVolume(ctx, stream)
	if err != nil {
		e.softFail(string(stream)+" max volume", err)
		return false
	}
	level := percent * max / 100
	if err := e.device.SetStreamVolume(ctx, stream, level); err != nil {
		e.softFail(string(stream)+" volume", err)
		return false
	}
	return true
}

// captureState reads the subset of device state the rule may mutate.
// Volumes must be readable; brightness and timeout degrade to nil.
func (e *BehaviorEngine) captureState(ctx context.Context) (*domain.SystemState, error) {
	ring, err := e.device.StreamVolume(ctx, domain.StreamRing)
	if err != nil {
		return nil, fmt.Errorf("failed to read ring volume: %w", err)
	}
	media, err := e.device.StreamVolume(ctx, domain.StreamMedia)
	if err != nil {
		return nil, fmt.Errorf("failed to read media volume: %w", err)
	}
	notif, err := e.device.StreamVolume(ctx, domain.StreamNotification)
	if err != nil {
		return nil, fmt.Errorf("failed to read notification volume: %w", err)
	}

	state := &domain.SystemState{
		RingVolume:         ring,
		MediaVolume:        media,
		NotificationVolume: notif,
	}
	if v, err := e.device.Brightness(ctx); err == nil {
		state.Brightness = &v
	}
	if v, err := e.device.ScreenTimeout(ctx); err == nil {
		state.ScreenTimeout = &v
	}
	return state, nil
}

// restoreState puts back the captured values verbatim.
func (e *BehaviorEngine) restoreState(ctx context.Context, state domain.SystemState) {
	if err := e.device.SetStreamVolume(ctx, domain.StreamRing, state.RingVolume); err != nil {
		e.softFail("restore ring volume", err)
	}
	if err := e.device.SetStreamVolume(ctx, domain.StreamMedia, state.MediaVolume); err != nil {
		e.softFail("restore media volume", err)
	}
	if err := e.device.SetStreamVolume(ctx, domain.StreamNotification, state.NotificationVolume); err != nil {
		e.softFail("restore notification volume", err)
	}
	if state.Brightness != nil {
		if err := e.device.SetBrightness(ctx, *state.Brightness); err != nil {
			e.softFail("restore brightness", err)
		}
	}
	if state.ScreenTimeout != nil {
		if err := e.device.SetScreenTimeout(ctx, *state.ScreenTimeout); err != nil {
			e.softFail("restore screen timeout", err)
		}
	}
}

func (e *BehaviorEngine) softFail(what string, err error) {
	e.logger.Warn("device setting skipped",
		zap.String("setting", what), zap.Error(err))
}
