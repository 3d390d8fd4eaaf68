// Package infra implements the OS-facing adapters: device settings, app
// control, usage statistics and notifications. Everything here shells
// out to the Android platform binaries and must run on a rooted device
// (or inside an adb shell).
package infra

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brittytino/patchworkd/internal/domain"
)

// runFn executes a platform command and returns its combined output.
// Swappable so adapter parsing can be tested without a device.
type runFn func(ctx context.Context, name string, args ...string) (string, error)

func execRun(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// streamIndex maps audio streams to Android stream numbers.
var streamIndex = map[domain.AudioStream]int{
	domain.StreamRing:         2,
	domain.StreamMedia:        3,
	domain.StreamAlarm:        4,
	domain.StreamNotification: 5,
}

const wakeLockTag = "patchworkd.keepawake"

// wakeLockMaxHold bounds how long a keep-awake hold can last without a
// release, matching the platform's own wake lock timeout.
const wakeLockMaxHold = 10 * time.Minute

// ShellDeviceSettings implements domain.DeviceSettings over the settings,
// media and cmd binaries. Writes the OS refuses surface as
// domain.ErrPermissionDenied so engines can skip the field and continue.
type ShellDeviceSettings struct {
	run    runFn
	logger *zap.Logger

	wakeMu    sync.Mutex
	wakeTimer *time.Timer
}

// NewShellDeviceSettings creates the adapter.
func NewShellDeviceSettings(logger *zap.Logger) *ShellDeviceSettings {
	return &ShellDeviceSettings{run: execRun, logger: logger}
}

// volumeRangeRe matches the `media volume` report, e.g.
// "volume is 7 in range [0..15]".
var volumeRangeRe = regexp.MustCompile(`volume is (\d+) in range \[(\d+)\.\.(\d+)\]`)

func (d *ShellDeviceSettings) volumeInfo(ctx context.Context, stream domain.AudioStream) (level, max int, err error) {
	idx, ok := streamIndex[stream]
	if !ok {
		return 0, 0, fmt.Errorf("unknown audio stream %q", stream)
	}
	out, err := d.run(ctx, "media", "volume", "--stream", strconv.Itoa(idx), "--get")
	if err != nil {
		return 0, 0, classify(out, err)
	}
	m := volumeRangeRe.FindStringSubmatch(out)
	if m == nil {
		return 0, 0, fmt.Errorf("unexpected volume output: %q", strings.TrimSpace(out))
	}
	level, _ = strconv.Atoi(m[1])
	max, _ = strconv.Atoi(m[3])
	return level, max, nil
}

// StreamVolume returns the current level for a stream.
func (d *ShellDeviceSettings) StreamVolume(ctx context.Context, stream domain.AudioStream) (int, error) {
	level, _, err := d.volumeInfo(ctx, stream)
	return level, err
}

// MaxStreamVolume returns the device maximum for a stream.
func (d *ShellDeviceSettings) MaxStreamVolume(ctx context.Context, stream domain.AudioStream) (int, error) {
	_, max, err := d.volumeInfo(ctx, stream)
	return max, err
}

// SetStreamVolume sets the absolute level for a stream.
func (d *ShellDeviceSettings) SetStreamVolume(ctx context.Context, stream domain.AudioStream, level int) error {
	idx, ok := streamIndex[stream]
	if !ok {
		return fmt.Errorf("unknown audio stream %q", stream)
	}
	out, err := d.run(ctx, "media", "volume",
		"--stream", strconv.Itoa(idx), "--set", strconv.Itoa(level))
	if err != nil {
		return classify(out, err)
	}
	return nil
}

// RingerMode returns NORMAL, VIBRATE or SILENT.
func (d *ShellDeviceSettings) RingerMode(ctx context.Context) (string, error) {
	v, err := d.getSetting(ctx, "global", "mode_ringer")
	if err != nil {
		return "", err
	}
	switch v {
	case "0":
		return "SILENT", nil
	case "1":
		return "VIBRATE", nil
	default:
		return "NORMAL", nil
	}
}

// SetRingerMode sets NORMAL, VIBRATE or SILENT.
func (d *ShellDeviceSettings) SetRingerMode(ctx context.Context, mode string) error {
	var v string
	switch mode {
	case "SILENT":
		v = "0"
	case "VIBRATE":
		v = "1"
	case "NORMAL":
		v = "2"
	default:
		return fmt.Errorf("unknown ringer mode %q", mode)
	}
	return d.putSetting(ctx, "global", "mode_ringer", v)
}

// Brightness returns the screen brightness (0-255).
func (d *ShellDeviceSettings) Brightness(ctx context.Context) (int, error) {
	return d.getSettingInt(ctx, "system", "screen_brightness")
}

// SetBrightness sets the screen brightness (0-255).
func (d *ShellDeviceSettings) SetBrightness(ctx context.Context, value int) error {
	return d.putSetting(ctx, "system", "screen_brightness", strconv.Itoa(value))
}

// BrightnessMode returns MANUAL or AUTO.
func (d *ShellDeviceSettings) BrightnessMode(ctx context.Context) (string, error) {
	v, err := d.getSettingInt(ctx, "system", "screen_brightness_mode")
	if err != nil {
		return "", err
	}
	if v == 1 {
		return "AUTO", nil
	}
	return "MANUAL", nil
}

// SetBrightnessMode sets MANUAL or AUTO.
func (d *ShellDeviceSettings) SetBrightnessMode(ctx context.Context, mode string) error {
	v := "0"
	if mode == "AUTO" {
		v = "1"
	}
	return d.putSetting(ctx, "system", "screen_brightness_mode", v)
}

// ScreenTimeout returns the screen-off timeout in milliseconds.
func (d *ShellDeviceSettings) ScreenTimeout(ctx context.Context) (int, error) {
	return d.getSettingInt(ctx, "system", "screen_off_timeout")
}

// SetScreenTimeout sets the screen-off timeout in milliseconds.
func (d *ShellDeviceSettings) SetScreenTimeout(ctx context.Context, ms int) error {
	return d.putSetting(ctx, "system", "screen_off_timeout", strconv.Itoa(ms))
}

// NightLight returns whether the night-light filter is active.
func (d *ShellDeviceSettings) NightLight(ctx context.Context) (bool, error) {
	v, err := d.getSettingInt(ctx, "secure", "night_display_activated")
	if err != nil {
		return false, err
	}
	return v == 1, nil
}

// SetNightLight toggles the night-light filter.
func (d *ShellDeviceSettings) SetNightLight(ctx context.Context, enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	return d.putSetting(ctx, "secure", "night_display_activated", v)
}

// RotationLocked returns whether auto-rotate is off.
func (d *ShellDeviceSettings) RotationLocked(ctx context.Context) (bool, error) {
	v, err := d.getSettingInt(ctx, "system", "accelerometer_rotation")
	if err != nil {
		return false, err
	}
	return v == 0, nil
}

// SetRotationLocked toggles the rotation lock.
func (d *ShellDeviceSettings) SetRotationLocked(ctx context.Context, locked bool) error {
	v := "1"
	if locked {
		v = "0"
	}
	return d.putSetting(ctx, "system", "accelerometer_rotation", v)
}

// SecureSetting reads an arbitrary secure-namespace setting by key.
func (d *ShellDeviceSettings) SecureSetting(ctx context.Context, key string) (string, error) {
	return d.getSetting(ctx, "secure", key)
}

// PutSecureSetting writes an arbitrary secure-namespace setting.
func (d *ShellDeviceSettings) PutSecureSetting(ctx context.Context, key, value string) error {
	return d.putSetting(ctx, "secure", key, value)
}

// GlobalSetting reads an arbitrary global-namespace setting by key.
func (d *ShellDeviceSettings) GlobalSetting(ctx context.Context, key string) (string, error) {
	return d.getSetting(ctx, "global", key)
}

// PutGlobalSetting writes an arbitrary global-namespace setting.
func (d *ShellDeviceSettings) PutGlobalSetting(ctx context.Context, key, value string) error {
	return d.putSetting(ctx, "global", key, value)
}

// AcquireWakeLock holds a kernel wake lock for at most wakeLockMaxHold.
// Needs root; the kernel drops it automatically if the process dies.
func (d *ShellDeviceSettings) AcquireWakeLock(ctx context.Context) error {
	if err := os.WriteFile("/sys/power/wake_lock", []byte(wakeLockTag), 0200); err != nil {
		if os.IsPermission(err) {
			return domain.ErrPermissionDenied
		}
		return fmt.Errorf("failed to acquire wake lock: %w", err)
	}

	d.wakeMu.Lock()
	defer d.wakeMu.Unlock()
	if d.wakeTimer != nil {
		d.wakeTimer.Stop()
	}
	d.wakeTimer = time.AfterFunc(wakeLockMaxHold, func() {
		if err := d.ReleaseWakeLock(context.Background()); err != nil {
			d.logger.Warn("failed to auto-release wake lock", zap.Error(err))
		}
	})
	return nil
}

// ReleaseWakeLock drops the keep-awake hold if one is held.
func (d *ShellDeviceSettings) ReleaseWakeLock(ctx context.Context) error {
	d.wakeMu.Lock()
	if d.wakeTimer != nil {
		d.wakeTimer.Stop()
		d.wakeTimer = nil
	}
	d.wakeMu.Unlock()

	if err := os.WriteFile("/sys/power/wake_unlock", []byte(wakeLockTag), 0200); err != nil {
		if os.IsPermission(err) {
			return domain.ErrPermissionDenied
		}
		return fmt.Errorf("failed to release wake lock: %w", err)
	}
	return nil
}

// ClearClipboard empties the primary clipboard. The cmd surface is only
// there on newer builds; older devices report permission denial.
func (d *ShellDeviceSettings) ClearClipboard(ctx context.Context) error {
	out, err := d.run(ctx, "cmd", "clipboard", "clear")
	if err != nil {
		return classify(out, err)
	}
	return nil
}

func (d *ShellDeviceSettings) getSetting(ctx context.Context, namespace, key string) (string, error) {
	out, err := d.run(ctx, "settings", "get", namespace, key)
	if err != nil {
		return "", classify(out, err)
	}
	v := strings.TrimSpace(out)
	if v == "null" {
		return "", fmt.Errorf("setting %s/%s is unset", namespace, key)
	}
	return v, nil
}

func (d *ShellDeviceSettings) getSettingInt(ctx context.Context, namespace, key string) (int, error) {
	v, err := d.getSetting(ctx, namespace, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("setting %s/%s is not a number: %q", namespace, key, v)
	}
	return n, nil
}

func (d *ShellDeviceSettings) putSetting(ctx context.Context, namespace, key, value string) error {
	out, err := d.run(ctx, "settings", "put", namespace, key, value)
	if err != nil {
		return classify(out, err)
	}
	// settings put prints the denial instead of failing on some builds.
	if isDenied(out) {
		return domain.ErrPermissionDenied
	}
	return nil
}

// classify maps shell failures onto the domain error taxonomy.
func classify(out string, err error) error {
	if isDenied(out) {
		return domain.ErrPermissionDenied
	}
	msg := strings.TrimSpace(out)
	if msg == "" {
		return err
	}
	return fmt.Errorf("%s: %w", firstLine(msg), err)
}

func isDenied(out string) bool {
	lower := strings.ToLower(out)
	return strings.Contains(lower, "permission denial") ||
		strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "securityexception")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var _ domain.DeviceSettings = (*ShellDeviceSettings)(nil)
