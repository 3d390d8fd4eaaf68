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

// SnapshotManager captures named bundles of device settings and restores
// them later. Capture is best-effort per field: an unreadable setting
// becomes nil instead of aborting. Restore is not atomic: settings that
// fail are skipped and the rest stay applied.
type SnapshotManager struct {
	snapshots domain.SnapshotStore
	device    domain.DeviceSettings
	audit     *audit.Logger
	logger    *zap.Logger
	nowFn     func() time.Time
}

// NewSnapshotManager creates a snapshot manager.
func NewSnapshotManager(
	snapshots domain.SnapshotStore,
	device domain.DeviceSettings,
	auditLog *audit.Logger,
	logger *zap.Logger,
) *SnapshotManager {
	return &SnapshotManager{
		snapshots: snapshots,
		device:    device,
		audit:     auditLog,
		logger:    logger,
		nowFn:     time.Now,
	}
}

// CaptureCurrent reads the live device settings into a new named
// snapshot and persists it.
func (m *SnapshotManager) CaptureCurrent(ctx context.Context, name, description string) (*domain.SystemSnapshot, error) {
	snap := domain.NewSystemSnapshot(name, description)

	if v, err := m.device.StreamVolume(ctx, domain.StreamRing); err == nil {
		snap.RingVolume = &v
	}
	if v, err := m.device.StreamVolume(ctx, domain.StreamMedia); err == nil {
		snap.MediaVolume = &v
	}
	if v, err := m.device.StreamVolume(ctx, domain.StreamAlarm); err == nil {
		snap.AlarmVolume = &v
	}
	if v, err := m.device.StreamVolume(ctx, domain.StreamNotification); err == nil {
		snap.NotificationVolume = &v
	}
	if v, err := m.device.RingerMode(ctx); err == nil {
		snap.SoundMode = v
	}
	if v, err := m.device.Brightness(ctx); err == nil {
		snap.Brightness = &v
	}
	if v, err := m.device.BrightnessMode(ctx); err == nil {
		snap.BrightnessMode = v
	}
	if v, err := m.device.ScreenTimeout(ctx); err == nil {
		snap.ScreenTimeout = &v
	}
	if v, err := m.device.NightLight(ctx); err == nil {
		snap.NightLightEnabled = &v
	}
	if v, err := m.device.RotationLocked(ctx); err == nil {
		snap.RotationLocked = &v
	}

	if err := m.snapshots.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	m.audit.Log(audit.Entry{
		Type:          domain.ActionSnapshotSaved,
		Category:      "System",
		Title:         "Snapshot Created",
		Description:   fmt.Sprintf("Created snapshot '%s'", name),
		TriggerSource: domain.TriggerUserManual,
		Success:       true,
	})
	return &snap, nil
}

// Restore applies every non-nil field of the snapshot to the live
// device. Fields the OS refuses are skipped silently; already-applied
// changes are never rolled back. The snapshot is marked used.
func (m *SnapshotManager) Restore(ctx context.Context, snap domain.SystemSnapshot) []string {
	var changes []string

	apply := func(label string, err error) {
		if err != nil {
			m.logger.Warn("snapshot setting skipped",
				zap.String("setting", label), zap.Error(err))
			return
		}
		changes = append(changes, label)
	}

	if snap.RingVolume != nil {
		apply(fmt.Sprintf("Ring Volume -> %d", *snap.RingVolume),
			m.device.SetStreamVolume(ctx, domain.StreamRing, *snap.RingVolume))
	}
	if snap.MediaVolume != nil {
		apply(fmt.Sprintf("Media Volume -> %d", *snap.MediaVolume),
			m.device.SetStreamVolume(ctx, domain.StreamMedia, *snap.MediaVolume))
	}
	if snap.AlarmVolume != nil {
		apply(fmt.Sprintf("Alarm Volume -> %d", *snap.AlarmVolume),
			m.device.SetStreamVolume(ctx, domain.StreamAlarm, *snap.AlarmVolume))
	}
	if snap.NotificationVolume != nil {
		apply(fmt.Sprintf("Notification Volume -> %d", *snap.NotificationVolume),
			m.device.SetStreamVolume(ctx, domain.StreamNotification, *snap.NotificationVolume))
	}
	if snap.SoundMode != "" {
		apply("Sound Mode -> "+snap.SoundMode,
			m.device.SetRingerMode(ctx, snap.SoundMode))
	}
	if snap.Brightness != nil {
		apply(fmt.Sprintf("Brightness -> %d%%", *snap.Brightness*100/255),
			m.device.SetBrightness(ctx, *snap.Brightness))
	}
	if snap.BrightnessMode != "" {
		apply("Brightness Mode -> "+snap.BrightnessMode,
			m.device.SetBrightnessMode(ctx, snap.BrightnessMode))
	}
	if snap.ScreenTimeout != nil {
		apply(fmt.Sprintf("Screen Timeout -> %ds", *snap.ScreenTimeout/1000),
			m.device.SetScreenTimeout(ctx, *snap.ScreenTimeout))
	}
	if snap.NightLightEnabled != nil {
		label := "OFF"
		if *snap.NightLightEnabled {
			label = "ON"
		}
		apply("Night Light -> "+label,
			m.device.SetNightLight(ctx, *snap.NightLightEnabled))
	}
	if snap.RotationLocked != nil {
		label := "Auto"
		if *snap.RotationLocked {
			label = "Locked"
		}
		apply("Rotation -> "+label,
			m.device.SetRotationLocked(ctx, *snap.RotationLocked))
	}

	if err := m.snapshots.MarkSnapshotUsed(ctx, snap.ID, m.nowFn()); err != nil {
		m.logger.Warn("failed to mark snapshot used",
			zap.String("snapshot", snap.Name), zap.Error(err))
	}

	m.audit.Log(audit.Entry{
		Type:          domain.ActionSnapshotRestored,
		Category:      "System",
		Title:         "Snapshot Restored",
		Description:   fmt.Sprintf("Restored '%s': %s", snap.Name, strings.Join(changes, ", ")),
		TriggerSource: domain.TriggerUserManual,
		Success:       true,
	})
	return changes
}
