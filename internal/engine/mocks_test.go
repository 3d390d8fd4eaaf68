package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brittytino/patchworkd/internal/audit"
	"github.com/brittytino/patchworkd/internal/domain"
)

// fakeDevice implements domain.DeviceSettings in memory, recording every
// write so tests can assert on the exact sequence of changes.
type fakeDevice struct {
	volumes    map[domain.AudioStream]int
	maxVolumes map[domain.AudioStream]int
	ringerMode string
	brightness int
	brightMode string
	timeout    int
	nightLight bool
	rotLocked  bool
	wakeLocks  int

	readErr  error
	writeErr map[string]error // keyed by op name, e.g. "volume:music"

	writes []string
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		volumes: map[domain.AudioStream]int{
			domain.StreamRing:         5,
			domain.StreamMedia:        10,
			domain.StreamAlarm:        6,
			domain.StreamNotification: 4,
		},
		maxVolumes: map[domain.AudioStream]int{
			domain.StreamRing:         7,
			domain.StreamMedia:        15,
			domain.StreamAlarm:        7,
			domain.StreamNotification: 7,
		},
		ringerMode: "NORMAL",
		brightness: 128,
		brightMode: "MANUAL",
		timeout:    60000,
		writeErr:   make(map[string]error),
	}
}

func (d *fakeDevice) record(op string) { d.writes = append(d.writes, op) }

func (d *fakeDevice) StreamVolume(ctx context.Context, s domain.AudioStream) (int, error) {
	if d.readErr != nil {
		return 0, d.readErr
	}
	return d.volumes[s], nil
}

func (d *fakeDevice) MaxStreamVolume(ctx context.Context, s domain.AudioStream) (int, error) {
	if d.readErr != nil {
		return 0, d.readErr
	}
	return d.maxVolumes[s], nil
}

func (d *fakeDevice) SetStreamVolume(ctx context.Context, s domain.AudioStream, level int) error {
	if err := d.writeErr["volume:"+string(s)]; err != nil {
		return err
	}
	d.volumes[s] = level
	d.record("volume:" + string(s))
	return nil
}

func (d *fakeDevice) RingerMode(ctx context.Context) (string, error) {
	if d.readErr != nil {
		return "", d.readErr
	}
	return d.ringerMode, nil
}

func (d *fakeDevice) SetRingerMode(ctx context.Context, mode string) error {
	if err := d.writeErr["ringer"]; err != nil {
		return err
	}
	d.ringerMode = mode
	d.record("ringer")
	return nil
}

func (d *fakeDevice) Brightness(ctx context.Context) (int, error) {
	if d.readErr != nil {
		return 0, d.readErr
	}
	return d.brightness, nil
}

func (d *fakeDevice) SetBrightness(ctx context.Context, v int) error {
	if err := d.writeErr["brightness"]; err != nil {
		return err
	}
	d.brightness = v
	d.record("brightness")
	return nil
}

func (d *fakeDevice) BrightnessMode(ctx context.Context) (string, error) {
	if d.readErr != nil {
		return "", d.readErr
	}
	return d.brightMode, nil
}

func (d *fakeDevice) SetBrightnessMode(ctx context.Context, mode string) error {
	d.brightMode = mode
	d.record("brightness_mode")
	return nil
}

func (d *fakeDevice) ScreenTimeout(ctx context.Context) (int, error) {
	if d.readErr != nil {
		return 0, d.readErr
	}
	return d.timeout, nil
}

func (d *fakeDevice) SetScreenTimeout(ctx context.Context, ms int) error {
	if err := d.writeErr["timeout"]; err != nil {
		return err
	}
	d.timeout = ms
	d.record("timeout")
	return nil
}

func (d *fakeDevice) NightLight(ctx context.Context) (bool, error) {
	return d.nightLight, nil
}

func (d *fakeDevice) SetNightLight(ctx context.Context, on bool) error {
	if err := d.writeErr["night_light"]; err != nil {
		return err
	}
	d.nightLight = on
	d.record("night_light")
	return nil
}

func (d *fakeDevice) RotationLocked(ctx context.Context) (bool, error) {
	return d.rotLocked, nil
}

func (d *fakeDevice) SetRotationLocked(ctx context.Context, locked bool) error {
	d.rotLocked = locked
	d.record("rotation")
	return nil
}

func (d *fakeDevice) SecureSetting(ctx context.Context, key string) (string, error) {
	return "", nil
}

func (d *fakeDevice) PutSecureSetting(ctx context.Context, key, value string) error {
	d.record("secure:" + key)
	return nil
}

func (d *fakeDevice) GlobalSetting(ctx context.Context, key string) (string, error) {
	return "", nil
}

func (d *fakeDevice) PutGlobalSetting(ctx context.Context, key, value string) error {
	d.record("global:" + key)
	return nil
}

func (d *fakeDevice) AcquireWakeLock(ctx context.Context) error {
	if err := d.writeErr["wake_lock"]; err != nil {
		return err
	}
	d.wakeLocks++
	d.record("wake_lock")
	return nil
}

func (d *fakeDevice) ReleaseWakeLock(ctx context.Context) error {
	d.wakeLocks--
	d.record("wake_unlock")
	return nil
}

func (d *fakeDevice) ClearClipboard(ctx context.Context) error {
	d.record("clear_clipboard")
	return nil
}

// fakeBehaviorRules implements domain.BehaviorRuleStore.
type fakeBehaviorRules struct {
	rules   map[string]domain.BehaviorRule
	loadErr error
	applied []string
}

func newFakeBehaviorRules() *fakeBehaviorRules {
	return &fakeBehaviorRules{rules: make(map[string]domain.BehaviorRule)}
}

func (f *fakeBehaviorRules) BehaviorRule(ctx context.Context, pkg string) (*domain.BehaviorRule, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	r, ok := f.rules[pkg]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeBehaviorRules) BehaviorRules(ctx context.Context) ([]domain.BehaviorRule, error) {
	var out []domain.BehaviorRule
	for _, r := range f.rules {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeBehaviorRules) SaveBehaviorRule(ctx context.Context, rule domain.BehaviorRule) error {
	f.rules[rule.PackageName] = rule
	return nil
}

func (f *fakeBehaviorRules) DeleteBehaviorRule(ctx context.Context, pkg string) error {
	delete(f.rules, pkg)
	return nil
}

func (f *fakeBehaviorRules) MarkBehaviorRuleApplied(ctx context.Context, pkg string, at time.Time) error {
	f.applied = append(f.applied, pkg)
	return nil
}

// fakeCooldownRules implements domain.CooldownRuleStore.
type fakeCooldownRules struct {
	rules     map[string]domain.CooldownRule
	loadErr   error
	triggered []string
}

func newFakeCooldownRules() *fakeCooldownRules {
	return &fakeCooldownRules{rules: make(map[string]domain.CooldownRule)}
}

func (f *fakeCooldownRules) CooldownRule(ctx context.Context, pkg string) (*domain.CooldownRule, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	r, ok := f.rules[pkg]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeCooldownRules) CooldownRules(ctx context.Context) ([]domain.CooldownRule, error) {
	var out []domain.CooldownRule
	for _, r := range f.rules {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeCooldownRules) SaveCooldownRule(ctx context.Context, rule domain.CooldownRule) error {
	f.rules[rule.PackageName] = rule
	return nil
}

func (f *fakeCooldownRules) DeleteCooldownRule(ctx context.Context, pkg string) error {
	delete(f.rules, pkg)
	return nil
}

func (f *fakeCooldownRules) MarkCooldownTriggered(ctx context.Context, pkg string, at time.Time) error {
	f.triggered = append(f.triggered, pkg)
	return nil
}

// fakeUsageStore implements domain.UsageEventStore as an in-memory log.
type fakeUsageStore struct {
	mu     sync.Mutex
	events []domain.UsageEvent
	nextID int64
	err    error
}

func (f *fakeUsageStore) InsertUsageEvent(ctx context.Context, ev domain.UsageEvent) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.nextID++
	ev.ID = f.nextID
	f.events = append(f.events, ev)
	return ev.ID, nil
}

func (f *fakeUsageStore) LastUsageEvent(ctx context.Context, pkg string) (*domain.UsageEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var last *domain.UsageEvent
	for i := range f.events {
		if f.events[i].PackageName != pkg {
			continue
		}
		if last == nil || f.events[i].Timestamp.After(last.Timestamp) {
			ev := f.events[i]
			last = &ev
		}
	}
	return last, nil
}

func (f *fakeUsageStore) CountUsageEvents(ctx context.Context, pkg string, start, end time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	count := 0
	for _, ev := range f.events {
		if ev.PackageName == pkg && !ev.Timestamp.Before(start) && !ev.Timestamp.After(end) {
			count++
		}
	}
	return count, nil
}

func (f *fakeUsageStore) UsageEventsSince(ctx context.Context, pkg string, since time.Time) ([]domain.UsageEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.UsageEvent
	for _, ev := range f.events {
		if ev.PackageName == pkg && ev.Timestamp.After(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeUsageStore) DeleteUsageEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var kept []domain.UsageEvent
	var deleted int64
	for _, ev := range f.events {
		if ev.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	f.events = kept
	return deleted, nil
}

// fakeIdleRules implements domain.IdleRuleStore.
type fakeIdleRules struct {
	rules       map[string]domain.IdleRule
	logs        []domain.IdleActionLog
	lastChecked map[string]time.Time
	loadErr     error
}

func newFakeIdleRules() *fakeIdleRules {
	return &fakeIdleRules{
		rules:       make(map[string]domain.IdleRule),
		lastChecked: make(map[string]time.Time),
	}
}

func (f *fakeIdleRules) IdleRule(ctx context.Context, pkg string) (*domain.IdleRule, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	r, ok := f.rules[pkg]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeIdleRules) IdleRules(ctx context.Context) ([]domain.IdleRule, error) {
	var out []domain.IdleRule
	for _, r := range f.rules {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeIdleRules) EnabledIdleRules(ctx context.Context) ([]domain.IdleRule, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	var out []domain.IdleRule
	for _, r := range f.rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeIdleRules) SaveIdleRule(ctx context.Context, rule domain.IdleRule) error {
	f.rules[rule.PackageName] = rule
	return nil
}

func (f *fakeIdleRules) DeleteIdleRule(ctx context.Context, pkg string) error {
	delete(f.rules, pkg)
	return nil
}

func (f *fakeIdleRules) IncrementIdleActionCount(ctx context.Context, pkg string) error {
	r := f.rules[pkg]
	r.ActionCount++
	f.rules[pkg] = r
	return nil
}

func (f *fakeIdleRules) UpdateIdleLastChecked(ctx context.Context, pkg string, at time.Time) error {
	f.lastChecked[pkg] = at
	return nil
}

func (f *fakeIdleRules) AppendIdleActionLog(ctx context.Context, entry domain.IdleActionLog) error {
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeIdleRules) IdleActionLogs(ctx context.Context, limit int) ([]domain.IdleActionLog, error) {
	return f.logs, nil
}

// fakeUsageSource implements domain.UsageStatsSource.
type fakeUsageSource struct {
	usage []domain.AppUsage
	err   error
}

func (f *fakeUsageSource) QueryUsage(ctx context.Context, start, end time.Time) ([]domain.AppUsage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.usage, nil
}

// fakeAppController implements domain.AppController.
type fakeAppController struct {
	frozen    []string
	stopped   []string
	freezeErr error
	stopErr   error
}

func (f *fakeAppController) ForceStop(ctx context.Context, pkg string) error {
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopped = append(f.stopped, pkg)
	return nil
}

func (f *fakeAppController) Freeze(ctx context.Context, pkg string) error {
	if f.freezeErr != nil {
		return f.freezeErr
	}
	f.frozen = append(f.frozen, pkg)
	return nil
}

func (f *fakeAppController) ClearCache(ctx context.Context, pkg string) error {
	return domain.ErrUnsupported
}

// fakeNotifier implements domain.NotificationPresenter.
type fakeNotifier struct {
	idleNotices    []string
	blockedNotices []string
	err            error
}

func (f *fakeNotifier) NotifyIdleApp(ctx context.Context, appName string, idleMinutes int64) error {
	f.idleNotices = append(f.idleNotices, appName)
	return f.err
}

func (f *fakeNotifier) NotifyBlocked(ctx context.Context, appName, reason string) error {
	f.blockedNotices = append(f.blockedNotices, appName)
	return f.err
}

// fakeHistory implements domain.HistoryStore, safe for the audit logger's
// concurrent appends.
type fakeHistory struct {
	mu      sync.Mutex
	entries []domain.ActionHistoryEntry
}

func (f *fakeHistory) AppendHistory(ctx context.Context, e domain.ActionHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeHistory) RecentHistory(ctx context.Context, limit int) ([]domain.ActionHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ActionHistoryEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeHistory) HistoryByTrigger(ctx context.Context, s domain.TriggerSource, limit int) ([]domain.ActionHistoryEntry, error) {
	return nil, nil
}

func (f *fakeHistory) HistoryForApp(ctx context.Context, pkg string, limit int) ([]domain.ActionHistoryEntry, error) {
	return nil, nil
}

func (f *fakeHistory) DeleteHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeHistory) DeleteAllHistory(ctx context.Context) error {
	return nil
}

func (f *fakeHistory) all() []domain.ActionHistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ActionHistoryEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

// fakeSnapshots implements domain.SnapshotStore.
type fakeSnapshots struct {
	snaps   map[string]domain.SystemSnapshot
	usedIDs []string
	saveErr error
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{snaps: make(map[string]domain.SystemSnapshot)}
}

func (f *fakeSnapshots) Snapshot(ctx context.Context, id string) (*domain.SystemSnapshot, error) {
	s, ok := f.snaps[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeSnapshots) Snapshots(ctx context.Context) ([]domain.SystemSnapshot, error) {
	var out []domain.SystemSnapshot
	for _, s := range f.snaps {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSnapshots) QuickAccessSnapshots(ctx context.Context) ([]domain.SystemSnapshot, error) {
	var out []domain.SystemSnapshot
	for _, s := range f.snaps {
		if s.IsQuickAccess {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSnapshots) SaveSnapshot(ctx context.Context, snap domain.SystemSnapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.snaps[snap.ID] = snap
	return nil
}

func (f *fakeSnapshots) DeleteSnapshot(ctx context.Context, id string) error {
	delete(f.snaps, id)
	return nil
}

func (f *fakeSnapshots) MarkSnapshotUsed(ctx context.Context, id string, at time.Time) error {
	f.usedIDs = append(f.usedIDs, id)
	if s, ok := f.snaps[id]; ok {
		s.UseCount++
		s.LastUsedAt = &at
		f.snaps[id] = s
	}
	return nil
}

func (f *fakeSnapshots) SetSnapshotQuickAccess(ctx context.Context, id string, quick bool) error {
	if s, ok := f.snaps[id]; ok {
		s.IsQuickAccess = quick
		f.snaps[id] = s
	}
	return nil
}

// newTestAudit wires an audit logger over an in-memory history store.
func newTestAudit() (*audit.Logger, *fakeHistory) {
	history := &fakeHistory{}
	return audit.NewLogger(history, zap.NewNop()), history
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
