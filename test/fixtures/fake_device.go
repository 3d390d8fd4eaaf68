// Package fixtures provides test doubles for integration tests.
package fixtures

import (
	"context"
	"sync"
	"time"

	"github.com/brittytino/patchworkd/internal/domain"
)

// FakeDevice is an in-memory stand-in for the shell settings adapter.
// All operations succeed; state is plain fields the test can inspect.
type FakeDevice struct {
	mu sync.Mutex

	Volumes       map[domain.AudioStream]int
	MaxVolumes    map[domain.AudioStream]int
	Ringer        string
	BrightnessVal int
	BrightMode    string
	TimeoutMs     int
	NightLightOn  bool
	RotationLock  bool
	Secure        map[string]string
	Global        map[string]string
	WakeLocks     int
	ClipboardWipe int
}

var _ domain.DeviceSettings = (*FakeDevice)(nil)

// NewFakeDevice returns a device in a typical resting state.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{
		Volumes: map[domain.AudioStream]int{
			domain.StreamRing:         5,
			domain.StreamMedia:        10,
			domain.StreamAlarm:        5,
			domain.StreamNotification: 5,
		},
		MaxVolumes: map[domain.AudioStream]int{
			domain.StreamRing:         7,
			domain.StreamMedia:        15,
			domain.StreamAlarm:        7,
			domain.StreamNotification: 7,
		},
		Ringer:        "NORMAL",
		BrightnessVal: 128,
		BrightMode:    "MANUAL",
		TimeoutMs:     60000,
		Secure:        make(map[string]string),
		Global:        make(map[string]string),
	}
}

func (d *FakeDevice) StreamVolume(ctx context.Context, s domain.AudioStream) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Volumes[s], nil
}

func (d *FakeDevice) MaxStreamVolume(ctx context.Context, s domain.AudioStream) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.MaxVolumes[s], nil
}

func (d *FakeDevice) SetStreamVolume(ctx context.Context, s domain.AudioStream, level int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Volumes[s] = level
	return nil
}

func (d *FakeDevice) RingerMode(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Ringer, nil
}

func (d *FakeDevice) SetRingerMode(ctx context.Context, mode string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Ringer = mode
	return nil
}

func (d *FakeDevice) Brightness(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.BrightnessVal, nil
}

func (d *FakeDevice) SetBrightness(ctx context.Context, v int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.BrightnessVal = v
	return nil
}

func (d *FakeDevice) BrightnessMode(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.BrightMode, nil
}

func (d *FakeDevice) SetBrightnessMode(ctx context.Context, mode string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.BrightMode = mode
	return nil
}

func (d *FakeDevice) ScreenTimeout(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.TimeoutMs, nil
}

func (d *FakeDevice) SetScreenTimeout(ctx context.Context, ms int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.TimeoutMs = ms
	return nil
}

func (d *FakeDevice) NightLight(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.NightLightOn, nil
}

func (d *FakeDevice) SetNightLight(ctx context.Context, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.NightLightOn = on
	return nil
}

func (d *FakeDevice) RotationLocked(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.RotationLock, nil
}

func (d *FakeDevice) SetRotationLocked(ctx context.Context, locked bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.RotationLock = locked
	return nil
}

func (d *FakeDevice) SecureSetting(ctx context.Context, key string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Secure[key], nil
}

func (d *FakeDevice) PutSecureSetting(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Secure[key] = value
	return nil
}

func (d *FakeDevice) GlobalSetting(ctx context.Context, key string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Global[key], nil
}

func (d *FakeDevice) PutGlobalSetting(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Global[key] = value
	return nil
}

func (d *FakeDevice) AcquireWakeLock(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.WakeLocks++
	return nil
}

func (d *FakeDevice) ReleaseWakeLock(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.WakeLocks--
	return nil
}

func (d *FakeDevice) ClearClipboard(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ClipboardWipe++
	return nil
}

// FakeApps records app-control calls.
type FakeApps struct {
	mu      sync.Mutex
	Frozen  []string
	Stopped []string
}

var _ domain.AppController = (*FakeApps)(nil)

func (a *FakeApps) ForceStop(ctx context.Context, pkg string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Stopped = append(a.Stopped, pkg)
	return nil
}

func (a *FakeApps) Freeze(ctx context.Context, pkg string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Frozen = append(a.Frozen, pkg)
	return nil
}

func (a *FakeApps) ClearCache(ctx context.Context, pkg string) error {
	return domain.ErrUnsupported
}

// FakeUsageSource replays a fixed usage report.
type FakeUsageSource struct {
	Usage []domain.AppUsage
}

var _ domain.UsageStatsSource = (*FakeUsageSource)(nil)

func (s *FakeUsageSource) QueryUsage(ctx context.Context, start, end time.Time) ([]domain.AppUsage, error) {
	return s.Usage, nil
}

// FakeNotifier records posted notifications.
type FakeNotifier struct {
	mu          sync.Mutex
	IdleNotices []string
	Blocked     []string
}

var _ domain.NotificationPresenter = (*FakeNotifier)(nil)

func (n *FakeNotifier) NotifyIdleApp(ctx context.Context, appName string, idleMinutes int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.IdleNotices = append(n.IdleNotices, appName)
	return nil
}

func (n *FakeNotifier) NotifyBlocked(ctx context.Context, appName, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Blocked = append(n.Blocked, appName+": "+reason)
	return nil
}
