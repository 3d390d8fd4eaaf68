package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brittytino/patchworkd/internal/domain"
)

func newBehaviorEngine(rules *fakeBehaviorRules, device *fakeDevice) (*BehaviorEngine, *fakeHistory) {
	auditLog, history := newTestAudit()
	e := NewBehaviorEngine(rules, device, auditLog, zap.NewNop())
	return e, history
}

// TestBehaviorNoRuleTouchesNothing verifies an app without a rule causes
// zero device writes and zero audit entries.
func TestBehaviorNoRuleTouchesNothing(t *testing.T) {
	rules := newFakeBehaviorRules()
	device := newFakeDevice()
	e, history := newBehaviorEngine(rules, device)
	defer e.Close()

	e.OnAppEnterForeground("com.example.plain", "Plain")
	e.OnAppExitForeground("com.example.plain")
	e.Sync()

	assert.Empty(t, device.writes)
	assert.Empty(t, history.all())
	assert.Empty(t, rules.applied)
}

// TestBehaviorSelfAndSystemUIIgnored verifies the engine never reacts to
// its own package or the system shell.
func TestBehaviorSelfAndSystemUIIgnored(t *testing.T) {
	rules := newFakeBehaviorRules()
	rule := domain.NewBehaviorRule(SystemUIPackage, "SystemUI")
	rule.SetMediaVolume = intPtr(10)
	require.NoError(t, rules.SaveBehaviorRule(context.Background(), rule))

	device := newFakeDevice()
	e, _ := newBehaviorEngine(rules, device)
	defer e.Close()

	e.OnAppEnterForeground(SelfPackage, "Patchwork")
	e.OnAppEnterForeground(SystemUIPackage, "SystemUI")
	e.Sync()

	assert.Empty(t, device.writes)
}

// TestBehaviorApplyAndRevertMediaVolume verifies the media volume is set
// to the rule's percent on entry and restored to the captured value on
// exit.
func TestBehaviorApplyAndRevertMediaVolume(t *testing.T) {
	rules := newFakeBehaviorRules()
	rule := domain.NewBehaviorRule("com.example.game", "Game")
	rule.SetMediaVolume = intPtr(40)
	require.NoError(t, rules.SaveBehaviorRule(context.Background(), rule))

	device := newFakeDevice()
	device.volumes[domain.StreamMedia] = 12 // max is 15
	e, history := newBehaviorEngine(rules, device)
	defer e.Close()

	e.OnAppEnterForeground("com.example.game", "Game")
	e.Sync()

	// 40% of max 15 is 6.
	assert.Equal(t, 6, device.volumes[domain.StreamMedia])
	assert.Equal(t, []string{"com.example.game"}, rules.applied)

	e.OnAppExitForeground("com.example.game")
	e.Sync()

	assert.Equal(t, 12, device.volumes[domain.StreamMedia])

	e.audit.Flush()
	entries := history.all()
	require.Len(t, entries, 2)
	assert.Equal(t, "Rules Applied", entries[0].Title)
	assert.Contains(t, entries[0].Description, "Media volume -> 40%")
	assert.Equal(t, "Rules Reverted", entries[1].Title)
}

// TestBehaviorAppSwitchRevertsBeforeApply verifies switching directly
// from one ruled app to another reverts the first app's overrides before
// the second app's are applied.
func TestBehaviorAppSwitchRevertsBeforeApply(t *testing.T) {
	rules := newFakeBehaviorRules()
	first := domain.NewBehaviorRule("com.example.first", "First")
	first.SetMediaVolume = intPtr(20)
	require.NoError(t, rules.SaveBehaviorRule(context.Background(), first))
	second := domain.NewBehaviorRule("com.example.second", "Second")
	second.SetMediaVolume = intPtr(80)
	require.NoError(t, rules.SaveBehaviorRule(context.Background(), second))

	device := newFakeDevice()
	device.volumes[domain.StreamMedia] = 15
	e, _ := newBehaviorEngine(rules, device)
	defer e.Close()

	e.OnAppEnterForeground("com.example.first", "First")
	e.Sync()
	assert.Equal(t, 3, device.volumes[domain.StreamMedia]) // 20% of 15

	e.OnAppEnterForeground("com.example.second", "Second")
	e.Sync()
	// The second capture must have seen the restored 15, not first's 3.
	assert.Equal(t, 12, device.volumes[domain.StreamMedia]) // 80% of 15

	e.OnAppExitForeground("com.example.second")
	e.Sync()
	assert.Equal(t, 15, device.volumes[domain.StreamMedia])
}

// TestBehaviorPermissionDeniedIsSoftSkip verifies a denied write skips
// that field, keeps the rest, and leaves it out of the audit description.
func TestBehaviorPermissionDeniedIsSoftSkip(t *testing.T) {
	rules := newFakeBehaviorRules()
	rule := domain.NewBehaviorRule("com.example.app", "App")
	rule.SetBrightness = intPtr(51)
	rule.SetScreenTimeout = intPtr(30000)
	require.NoError(t, rules.SaveBehaviorRule(context.Background(), rule))

	device := newFakeDevice()
	device.writeErr["brightness"] = domain.ErrPermissionDenied
	e, history := newBehaviorEngine(rules, device)
	defer e.Close()

	e.OnAppEnterForeground("com.example.app", "App")
	e.Sync()

	assert.Equal(t, 30000, device.timeout)
	assert.Equal(t, 128, device.brightness)

	e.audit.Flush()
	entries := history.all()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Description, "Screen timeout -> 30s")
	assert.NotContains(t, entries[0].Description, "Brightness")
}

// TestBehaviorCaptureFailureAborts verifies an unreadable volume aborts
// the apply without device writes or audit entries.
func TestBehaviorCaptureFailureAborts(t *testing.T) {
	rules := newFakeBehaviorRules()
	rule := domain.NewBehaviorRule("com.example.app", "App")
	rule.MuteOnEntry = true
	require.NoError(t, rules.SaveBehaviorRule(context.Background(), rule))

	device := newFakeDevice()
	device.readErr = errors.New("settings service unavailable")
	e, history := newBehaviorEngine(rules, device)
	defer e.Close()

	e.OnAppEnterForeground("com.example.app", "App")
	e.Sync()

	assert.Empty(t, device.writes)
	e.audit.Flush()
	assert.Empty(t, history.all())
}

// TestBehaviorWakeLockReleasedOnExit verifies keep-awake rules acquire
// the wake lock on entry and release it on exit.
func TestBehaviorWakeLockReleasedOnExit(t *testing.T) {
	rules := newFakeBehaviorRules()
	rule := domain.NewBehaviorRule("com.example.reader", "Reader")
	rule.KeepScreenAwake = true
	rule.ClearClipboardOnExit = true
	require.NoError(t, rules.SaveBehaviorRule(context.Background(), rule))

	device := newFakeDevice()
	e, _ := newBehaviorEngine(rules, device)
	defer e.Close()

	e.OnAppEnterForeground("com.example.reader", "Reader")
	e.Sync()
	assert.Equal(t, 1, device.wakeLocks)

	e.OnAppExitForeground("com.example.reader")
	e.Sync()
	assert.Equal(t, 0, device.wakeLocks)
	assert.Contains(t, device.writes, "clear_clipboard")
}

// TestBehaviorExitForNonCurrentIsNoop verifies an exit for a package
// that is not the current foreground app changes nothing.
func TestBehaviorExitForNonCurrentIsNoop(t *testing.T) {
	rules := newFakeBehaviorRules()
	rule := domain.NewBehaviorRule("com.example.app", "App")
	rule.SetMediaVolume = intPtr(40)
	require.NoError(t, rules.SaveBehaviorRule(context.Background(), rule))

	device := newFakeDevice()
	e, _ := newBehaviorEngine(rules, device)
	defer e.Close()

	e.OnAppEnterForeground("com.example.app", "App")
	e.Sync()
	before := len(device.writes)

	e.OnAppExitForeground("com.example.other")
	e.Sync()
	assert.Equal(t, before, len(device.writes))
}

// TestBehaviorDisabledRuleTracksOnly verifies a disabled rule is treated
// like no rule but the package is still tracked as current.
func TestBehaviorDisabledRuleTracksOnly(t *testing.T) {
	rules := newFakeBehaviorRules()
	rule := domain.NewBehaviorRule("com.example.app", "App")
	rule.Enabled = false
	rule.SetMediaVolume = intPtr(40)
	require.NoError(t, rules.SaveBehaviorRule(context.Background(), rule))

	device := newFakeDevice()
	e, _ := newBehaviorEngine(rules, device)
	defer e.Close()

	e.OnAppEnterForeground("com.example.app", "App")
	e.OnAppExitForeground("com.example.app")
	e.Sync()

	assert.Empty(t, device.writes)
}

// TestBehaviorMuteOnEntry verifies mute zeroes the media stream and the
// revert brings the old level back.
func TestBehaviorMuteOnEntry(t *testing.T) {
	rules := newFakeBehaviorRules()
	rule := domain.NewBehaviorRule("com.example.focus", "Focus")
	rule.MuteOnEntry = true
	require.NoError(t, rules.SaveBehaviorRule(context.Background(), rule))

	device := newFakeDevice()
	device.volumes[domain.StreamMedia] = 9
	e, _ := newBehaviorEngine(rules, device)
	defer e.Close()

	e.OnAppEnterForeground("com.example.focus", "Focus")
	e.Sync()
	assert.Equal(t, 0, device.volumes[domain.StreamMedia])

	e.OnAppExitForeground("com.example.focus")
	e.Sync()
	assert.Equal(t, 9, device.volumes[domain.StreamMedia])
}

// TestBehaviorRuleLoadErrorLeavesStateAlone verifies a store failure on
// entry results in no writes and no tracked package.
func TestBehaviorRuleLoadErrorLeavesStateAlone(t *testing.T) {
	rules := newFakeBehaviorRules()
	rules.loadErr = errors.New("db locked")

	device := newFakeDevice()
	e, _ := newBehaviorEngine(rules, device)
	defer e.Close()

	e.OnAppEnterForeground("com.example.app", "App")
	e.Sync()

	assert.Empty(t, device.writes)
	assert.Equal(t, "", e.currentPackage)
}
