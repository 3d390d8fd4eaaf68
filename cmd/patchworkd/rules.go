package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brittytino/patchworkd/internal/domain"
)

var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Manage behavior, cooldown and idle rules",
}

var behaviorCmd = &cobra.Command{
	Use:   "behavior",
	Short: "Manage per-app behavior rules",
}

var cooldownCmd = &cobra.Command{
	Use:   "cooldown",
	Short: "Manage per-app cooldown rules",
}

var idleCmd = &cobra.Command{
	Use:   "idle",
	Short: "Manage per-app idle rules",
}

var behaviorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List behavior rules",
	RunE:  runBehaviorList,
}

var behaviorSetCmd = &cobra.Command{
	Use:   "set <package>",
	Short: "Create or update a behavior rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runBehaviorSet,
}

var behaviorRmCmd = &cobra.Command{
	Use:   "rm <package>",
	Short: "Delete a behavior rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runBehaviorRm,
}

var cooldownListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cooldown rules",
	RunE:  runCooldownList,
}

var cooldownSetCmd = &cobra.Command{
	Use:   "set <package>",
	Short: "Create or update a cooldown rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runCooldownSet,
}

var cooldownRmCmd = &cobra.Command{
	Use:   "rm <package>",
	Short: "Delete a cooldown rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runCooldownRm,
}

var idleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List idle rules and recent actions",
	RunE:  runIdleList,
}

var idleSetCmd = &cobra.Command{
	Use:   "set <package>",
	Short: "Create or update an idle rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdleSet,
}

var idleRmCmd = &cobra.Command{
	Use:   "rm <package>",
	Short: "Delete an idle rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdleRm,
}

var (
	ruleAppName  string
	ruleDisabled bool

	behaviorMediaVolume  int
	behaviorRingVolume   int
	behaviorMute         bool
	behaviorBrightness   int
	behaviorKeepAwake    bool
	behaviorTimeout      int
	behaviorNightLight   string
	behaviorClearClip    bool
	cooldownMinutes      int
	cooldownMaxDaily     int
	cooldownMaxHourly    int
	idleThresholdMinutes int
	idleAction           string
	idleShowLog          bool
)

func init() {
	for _, c := range []*cobra.Command{behaviorSetCmd, cooldownSetCmd, idleSetCmd} {
		c.Flags().StringVar(&ruleAppName, "name", "", "Display name for the app")
		c.Flags().BoolVar(&ruleDisabled, "disabled", false, "Create the rule disabled")
	}

	behaviorSetCmd.Flags().IntVar(&behaviorMediaVolume, "media-volume", -1, "Media volume percent (0-100)")
	behaviorSetCmd.Flags().IntVar(&behaviorRingVolume, "ring-volume", -1, "Ring volume percent (0-100)")
	behaviorSetCmd.Flags().BoolVar(&behaviorMute, "mute", false, "Mute media on entry")
	behaviorSetCmd.Flags().IntVar(&behaviorBrightness, "brightness", -1, "Brightness (0-255)")
	behaviorSetCmd.Flags().BoolVar(&behaviorKeepAwake, "keep-awake", false, "Keep the screen on")
	behaviorSetCmd.Flags().IntVar(&behaviorTimeout, "screen-timeout", -1, "Screen timeout in seconds")
	behaviorSetCmd.Flags().StringVar(&behaviorNightLight, "night-light", "", "Night light: on or off")
	behaviorSetCmd.Flags().BoolVar(&behaviorClearClip, "clear-clipboard", false, "Clear clipboard on exit")

	cooldownSetCmd.Flags().IntVar(&cooldownMinutes, "minutes", 30, "Cooldown period in minutes")
	cooldownSetCmd.Flags().IntVar(&cooldownMaxDaily, "max-daily", 0, "Max opens per day (0 = unlimited)")
	cooldownSetCmd.Flags().IntVar(&cooldownMaxHourly, "max-hourly", 0, "Max opens per hour (0 = unlimited)")

	idleSetCmd.Flags().IntVar(&idleThresholdMinutes, "threshold", 180, "Idle threshold in minutes")
	idleSetCmd.Flags().StringVar(&idleAction, "action", "NOTIFY", "Action: FREEZE, KILL, CLEAR_CACHE or NOTIFY")
	idleListCmd.Flags().BoolVar(&idleShowLog, "log", false, "Show recent idle actions instead of rules")

	behaviorCmd.AddCommand(behaviorListCmd, behaviorSetCmd, behaviorRmCmd)
	cooldownCmd.AddCommand(cooldownListCmd, cooldownSetCmd, cooldownRmCmd)
	idleCmd.AddCommand(idleListCmd, idleSetCmd, idleRmCmd)
	ruleCmd.AddCommand(behaviorCmd, cooldownCmd, idleCmd)
}

func runBehaviorList(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rules, err := st.BehaviorRules(context.Background())
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Println("No behavior rules.")
		return nil
	}
	for _, r := range rules {
		fmt.Printf("%s  %s%s\n", r.PackageName, r.AppName, enabledSuffix(r.Enabled))
		var parts []string
		if r.SetMediaVolume != nil {
			parts = append(parts, fmt.Sprintf("media %d%%", *r.SetMediaVolume))
		}
		if r.SetRingVolume != nil {
			parts = append(parts, fmt.Sprintf("ring %d%%", *r.SetRingVolume))
		}
		if r.MuteOnEntry {
			parts = append(parts, "mute")
		}
		if r.SetBrightness != nil {
			parts = append(parts, fmt.Sprintf("brightness %d", *r.SetBrightness))
		}
		if r.KeepScreenAwake {
			parts = append(parts, "keep awake")
		}
		if r.SetScreenTimeout != nil {
			parts = append(parts, fmt.Sprintf("timeout %ds", *r.SetScreenTimeout/1000))
		}
		if r.EnableNightLight != nil {
			parts = append(parts, fmt.Sprintf("night light %v", *r.EnableNightLight))
		}
		if r.ClearClipboardOnExit {
			parts = append(parts, "clear clipboard")
		}
		if len(parts) > 0 {
			fmt.Printf("    %s\n", strings.Join(parts, ", "))
		}
		fmt.Printf("    applied %d times\n", r.ApplyCount)
	}
	return nil
}

func runBehaviorSet(cmd *cobra.Command, args []string) error {
	packageName := args[0]

	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	existing, err := st.BehaviorRule(ctx, packageName)
	if err != nil {
		return err
	}
	rule := domain.NewBehaviorRule(packageName, displayName(packageName))
	if existing != nil {
		rule = *existing
	}
	if ruleAppName != "" {
		rule.AppName = ruleAppName
	}
	rule.Enabled = !ruleDisabled

	if behaviorMediaVolume >= 0 {
		v := behaviorMediaVolume
		rule.SetMediaVolume = &v
	}
	if behaviorRingVolume >= 0 {
		v := behaviorRingVolume
		rule.SetRingVolume = &v
	}
	rule.MuteOnEntry = behaviorMute
	if behaviorBrightness >= 0 {
		v := behaviorBrightness
		rule.SetBrightness = &v
	}
	rule.KeepScreenAwake = behaviorKeepAwake
	if behaviorTimeout >= 0 {
		v := behaviorTimeout * 1000
		rule.SetScreenTimeout = &v
	}
	if behaviorNightLight != "" {
		v := behaviorNightLight == "on"
		rule.EnableNightLight = &v
	}
	rule.ClearClipboardOnExit = behaviorClearClip

	if err := st.SaveBehaviorRule(ctx, rule); err != nil {
		return err
	}
	fmt.Printf("Saved behavior rule for %s\n", packageName)
	return nil
}

func runBehaviorRm(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteBehaviorRule(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted behavior rule for %s\n", args[0])
	return nil
}

func runCooldownList(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rules, err := st.CooldownRules(context.Background())
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Println("No cooldown rules.")
		return nil
	}
	for _, r := range rules {
		fmt.Printf("%s  %s%s\n", r.PackageName, r.AppName, enabledSuffix(r.Enabled))
		fmt.Printf("    cooldown %dm", r.CooldownPeriodMinutes)
		if r.MaxDailyOpens != nil {
			fmt.Printf(", max %d/day", *r.MaxDailyOpens)
		}
		if r.MaxHourlyOpens != nil {
			fmt.Printf(", max %d/hour", *r.MaxHourlyOpens)
		}
		fmt.Printf("  (blocked %d times)\n", r.TimesStopped)
	}
	return nil
}

func runCooldownSet(cmd *cobra.Command, args []string) error {
	packageName := args[0]

	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	existing, err := st.CooldownRule(ctx, packageName)
	if err != nil {
		return err
	}
	rule := domain.NewCooldownRule(packageName, displayName(packageName))
	if existing != nil {
		rule = *existing
	}
	if ruleAppName != "" {
		rule.AppName = ruleAppName
	}
	rule.Enabled = !ruleDisabled
	rule.CooldownPeriodMinutes = cooldownMinutes
	if cooldownMaxDaily > 0 {
		v := cooldownMaxDaily
		rule.MaxDailyOpens = &v
	} else {
		rule.MaxDailyOpens = nil
	}
	if cooldownMaxHourly > 0 {
		v := cooldownMaxHourly
		rule.MaxHourlyOpens = &v
	} else {
		rule.MaxHourlyOpens = nil
	}

	if err := st.SaveCooldownRule(ctx, rule); err != nil {
		return err
	}
	fmt.Printf("Saved cooldown rule for %s\n", packageName)
	return nil
}

func runCooldownRm(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteCooldownRule(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted cooldown rule for %s\n", args[0])
	return nil
}

func runIdleList(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if idleShowLog {
		logs, err := st.IdleActionLogs(ctx, 50)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			fmt.Println("No idle actions recorded.")
			return nil
		}
		for _, l := range logs {
			status := "ok"
			if !l.Success {
				status = "FAILED: " + l.ErrorMessage
			}
			fmt.Printf("%s  %s %s after %dm idle (%s)\n",
				l.Timestamp.Format("2006-01-02 15:04:05"),
				l.Action, l.AppName, l.IdleTimeMinutes, status)
		}
		return nil
	}

	rules, err := st.IdleRules(ctx)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Println("No idle rules.")
		return nil
	}
	for _, r := range rules {
		fmt.Printf("%s  %s%s\n", r.PackageName, r.AppName, enabledSuffix(r.Enabled))
		fmt.Printf("    %s after %dm idle  (fired %d times)\n",
			r.Action, r.IdleThresholdMinutes, r.ActionCount)
	}
	return nil
}

func runIdleSet(cmd *cobra.Command, args []string) error {
	packageName := args[0]

	action := domain.IdleAction(strings.ToUpper(idleAction))
	switch action {
	case domain.IdleFreeze, domain.IdleKill, domain.IdleClearCache, domain.IdleNotify:
	default:
		return fmt.Errorf("unknown idle action %q", idleAction)
	}

	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	existing, err := st.IdleRule(ctx, packageName)
	if err != nil {
		return err
	}
	rule := domain.NewIdleRule(packageName, displayName(packageName))
	if existing != nil {
		rule = *existing
	}
	if ruleAppName != "" {
		rule.AppName = ruleAppName
	}
	rule.Enabled = !ruleDisabled
	rule.IdleThresholdMinutes = idleThresholdMinutes
	rule.Action = action

	if err := st.SaveIdleRule(ctx, rule); err != nil {
		return err
	}
	fmt.Printf("Saved idle rule for %s\n", packageName)
	return nil
}

func runIdleRm(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteIdleRule(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted idle rule for %s\n", args[0])
	return nil
}

func enabledSuffix(enabled bool) string {
	if enabled {
		return ""
	}
	return "  (disabled)"
}

// displayName derives a fallback label from a package name, e.g.
// "com.example.mail" becomes "mail".
func displayName(packageName string) string {
	if i := strings.LastIndexByte(packageName, '.'); i >= 0 && i < len(packageName)-1 {
		return packageName[i+1:]
	}
	return packageName
}
