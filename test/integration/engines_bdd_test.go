//go:build integration

package integration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/brittytino/patchworkd/internal/audit"
	"github.com/brittytino/patchworkd/internal/domain"
	"github.com/brittytino/patchworkd/internal/engine"
	"github.com/brittytino/patchworkd/internal/store"
	"github.com/brittytino/patchworkd/test/fixtures"
)

func intPtr(v int) *int { return &v }

var _ = Describe("Behavior Engine", func() {
	var (
		ctx      context.Context
		st       *store.Store
		device   *fixtures.FakeDevice
		auditLog *audit.Logger
		eng      *engine.BehaviorEngine
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		st, err = store.OpenMemory()
		Expect(err).NotTo(HaveOccurred())

		device = fixtures.NewFakeDevice()
		auditLog = audit.NewLogger(st, zap.NewNop())
		eng = engine.NewBehaviorEngine(st, device, auditLog, zap.NewNop())
	})

	AfterEach(func() {
		eng.Close()
		st.Close()
	})

	Describe("foreground entry", func() {
		Context("with a persisted rule", func() {
			It("applies overrides, stamps the rule and audits the apply", func() {
				rule := domain.NewBehaviorRule("com.example.reader", "Reader")
				rule.SetMediaVolume = intPtr(40)
				rule.SetBrightness = intPtr(51)
				Expect(st.SaveBehaviorRule(ctx, rule)).To(Succeed())

				eng.OnAppEnterForeground("com.example.reader", "Reader")
				eng.Sync()
				auditLog.Flush()

				// 40% of the max media volume of 15.
				Expect(device.Volumes[domain.StreamMedia]).To(Equal(6))
				Expect(device.BrightnessVal).To(Equal(51))

				stored, err := st.BehaviorRule(ctx, "com.example.reader")
				Expect(err).NotTo(HaveOccurred())
				Expect(stored.ApplyCount).To(Equal(1))
				Expect(stored.LastAppliedAt).NotTo(BeNil())

				entries, err := st.HistoryByTrigger(ctx, domain.TriggerAppBehavior, 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(entries).To(HaveLen(1))
				Expect(entries[0].ActionType).To(Equal(domain.ActionAppBehaviorApplied))
				Expect(entries[0].Title).To(Equal("Rules Applied"))
			})
		})

		Context("without a rule", func() {
			It("leaves the device untouched", func() {
				eng.OnAppEnterForeground("com.example.plain", "Plain")
				eng.Sync()

				Expect(device.Volumes[domain.StreamMedia]).To(Equal(10))
				Expect(device.BrightnessVal).To(Equal(128))
			})
		})
	})

	Describe("foreground exit", func() {
		It("restores the captured state and audits the revert", func() {
			rule := domain.NewBehaviorRule("com.example.reader", "Reader")
			rule.SetMediaVolume = intPtr(40)
			rule.SetBrightness = intPtr(51)
			Expect(st.SaveBehaviorRule(ctx, rule)).To(Succeed())

			eng.OnAppEnterForeground("com.example.reader", "Reader")
			eng.OnAppExitForeground("com.example.reader")
			eng.Sync()
			auditLog.Flush()

			Expect(device.Volumes[domain.StreamMedia]).To(Equal(10))
			Expect(device.BrightnessVal).To(Equal(128))

			entries, err := st.HistoryByTrigger(ctx, domain.TriggerAppBehavior, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
			// Newest first.
			Expect(entries[0].Title).To(Equal("Rules Reverted"))
		})
	})
})

var _ = Describe("Cooldown Engine", func() {
	var (
		ctx      context.Context
		st       *store.Store
		auditLog *audit.Logger
		eng      *engine.CooldownEngine
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		st, err = store.OpenMemory()
		Expect(err).NotTo(HaveOccurred())

		auditLog = audit.NewLogger(st, zap.NewNop())
		eng = engine.NewCooldownEngine(st, st, auditLog, zap.NewNop())
	})

	AfterEach(func() {
		eng.Close()
		st.Close()
	})

	Describe("cooldown window", func() {
		It("blocks a relaunch inside the window and marks the rule", func() {
			rule := domain.NewCooldownRule("com.example.feed", "Feed")
			Expect(st.SaveCooldownRule(ctx, rule)).To(Succeed())

			eng.OnAppOpened("com.example.feed", "Feed")
			eng.Sync()

			blocked, reason := eng.CheckAppLaunch(ctx, "com.example.feed", "Feed")
			auditLog.Flush()

			Expect(blocked).To(BeTrue())
			Expect(reason).To(ContainSubstring("Cooldown active"))

			stored, err := st.CooldownRule(ctx, "com.example.feed")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.TimesStopped).To(Equal(1))
			Expect(stored.LastTriggered).NotTo(BeNil())

			entries, err := st.HistoryForApp(ctx, "com.example.feed", 10)
			Expect(err).NotTo(HaveOccurred())
			types := []domain.ActionType{}
			for _, e := range entries {
				types = append(types, e.ActionType)
			}
			Expect(types).To(ContainElement(domain.ActionAppCooldownBlocked))
			Expect(types).To(ContainElement(domain.ActionAppCooldownTriggered))
		})

		It("allows a launch with no rule on file", func() {
			blocked, reason := eng.CheckAppLaunch(ctx, "com.example.free", "Free")
			Expect(blocked).To(BeFalse())
			Expect(reason).To(BeEmpty())
		})
	})

	Describe("daily cap", func() {
		It("blocks once today's opens reach the cap", func() {
			rule := domain.NewCooldownRule("com.example.feed", "Feed")
			rule.CooldownPeriodMinutes = 0
			rule.MaxDailyOpens = intPtr(2)
			Expect(st.SaveCooldownRule(ctx, rule)).To(Succeed())

			now := time.Now()
			for i := 0; i < 2; i++ {
				_, err := st.InsertUsageEvent(ctx, domain.UsageEvent{
					PackageName: "com.example.feed",
					AppName:     "Feed",
					Timestamp:   now.Add(-time.Duration(i+1) * time.Second),
				})
				Expect(err).NotTo(HaveOccurred())
			}

			blocked, reason := eng.CheckAppLaunch(ctx, "com.example.feed", "Feed")
			Expect(blocked).To(BeTrue())
			Expect(reason).To(ContainSubstring("Daily limit reached"))
		})
	})

	Describe("session close", func() {
		It("never writes a duration back onto the open event", func() {
			rule := domain.NewCooldownRule("com.example.feed", "Feed")
			Expect(st.SaveCooldownRule(ctx, rule)).To(Succeed())

			eng.OnAppOpened("com.example.feed", "Feed")
			eng.OnAppClosed("com.example.feed", "Feed")
			eng.Sync()

			last, err := st.LastUsageEvent(ctx, "com.example.feed")
			Expect(err).NotTo(HaveOccurred())
			Expect(last).NotTo(BeNil())
			Expect(last.DurationMs).To(BeNil())
		})
	})
})

var _ = Describe("Idle Engine", func() {
	var (
		ctx      context.Context
		st       *store.Store
		source   *fixtures.FakeUsageSource
		apps     *fixtures.FakeApps
		notify   *fixtures.FakeNotifier
		auditLog *audit.Logger
		eng      *engine.IdleEngine
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		st, err = store.OpenMemory()
		Expect(err).NotTo(HaveOccurred())

		source = &fixtures.FakeUsageSource{}
		apps = &fixtures.FakeApps{}
		notify = &fixtures.FakeNotifier{}
		auditLog = audit.NewLogger(st, zap.NewNop())
		eng = engine.NewIdleEngine(st, source, apps, notify, auditLog, zap.NewNop())
	})

	AfterEach(func() {
		st.Close()
	})

	Describe("a stale app with a NOTIFY rule", func() {
		It("notifies, logs the firing and bumps the counter", func() {
			rule := domain.NewIdleRule("com.example.maps", "Maps")
			rule.IdleThresholdMinutes = 60
			Expect(st.SaveIdleRule(ctx, rule)).To(Succeed())

			source.Usage = []domain.AppUsage{{
				PackageName: "com.example.maps",
				LastUsed:    time.Now().Add(-2 * time.Hour),
			}}

			Expect(eng.CheckIdleApps(ctx)).To(Succeed())
			auditLog.Flush()

			Expect(notify.IdleNotices).To(HaveLen(1))

			logs, err := st.IdleActionLogs(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(logs).To(HaveLen(1))
			Expect(logs[0].Action).To(Equal(domain.IdleNotify))
			Expect(logs[0].Success).To(BeTrue())

			stored, err := st.IdleRule(ctx, "com.example.maps")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ActionCount).To(Equal(1))
			Expect(stored.LastCheckedAt).NotTo(BeNil())
		})
	})

	Describe("a stale app with a FREEZE rule", func() {
		It("freezes the package", func() {
			rule := domain.NewIdleRule("com.example.game", "Game")
			rule.IdleThresholdMinutes = 60
			rule.Action = domain.IdleFreeze
			Expect(st.SaveIdleRule(ctx, rule)).To(Succeed())

			source.Usage = []domain.AppUsage{{
				PackageName: "com.example.game",
				LastUsed:    time.Now().Add(-3 * time.Hour),
			}}

			Expect(eng.CheckIdleApps(ctx)).To(Succeed())

			Expect(apps.Frozen).To(ContainElement("com.example.game"))
		})
	})

	Describe("a recently used app", func() {
		It("takes no action", func() {
			rule := domain.NewIdleRule("com.example.maps", "Maps")
			rule.IdleThresholdMinutes = 60
			Expect(st.SaveIdleRule(ctx, rule)).To(Succeed())

			source.Usage = []domain.AppUsage{{
				PackageName: "com.example.maps",
				LastUsed:    time.Now().Add(-10 * time.Minute),
			}}

			Expect(eng.CheckIdleApps(ctx)).To(Succeed())

			Expect(notify.IdleNotices).To(BeEmpty())
			logs, err := st.IdleActionLogs(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(logs).To(BeEmpty())
		})
	})
})

var _ = Describe("Snapshots", func() {
	var (
		ctx      context.Context
		st       *store.Store
		device   *fixtures.FakeDevice
		auditLog *audit.Logger
		mgr      *engine.SnapshotManager
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		st, err = store.OpenMemory()
		Expect(err).NotTo(HaveOccurred())

		device = fixtures.NewFakeDevice()
		auditLog = audit.NewLogger(st, zap.NewNop())
		mgr = engine.NewSnapshotManager(st, device, auditLog, zap.NewNop())
	})

	AfterEach(func() {
		st.Close()
	})

	It("captures live settings and restores them after a change", func() {
		snap, err := mgr.CaptureCurrent(ctx, "evening", "reading setup")
		Expect(err).NotTo(HaveOccurred())
		Expect(*snap.RingVolume).To(Equal(5))
		Expect(*snap.Brightness).To(Equal(128))

		device.SetStreamVolume(ctx, domain.StreamRing, 7)
		device.SetBrightness(ctx, 255)

		stored, err := st.Snapshot(ctx, snap.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).NotTo(BeNil())

		changes := mgr.Restore(ctx, *stored)
		Expect(changes).NotTo(BeEmpty())
		Expect(device.Volumes[domain.StreamRing]).To(Equal(5))
		Expect(device.BrightnessVal).To(Equal(128))

		used, err := st.Snapshot(ctx, snap.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(used.UseCount).To(Equal(1))
		Expect(used.LastUsedAt).NotTo(BeNil())
	})
})
