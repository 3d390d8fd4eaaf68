package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brittytino/patchworkd/internal/audit"
	"github.com/brittytino/patchworkd/internal/domain"
	"github.com/brittytino/patchworkd/internal/engine"
	"github.com/brittytino/patchworkd/internal/infra"
	"github.com/brittytino/patchworkd/internal/store"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture and restore device setting snapshots",
}

var snapshotCaptureCmd = &cobra.Command{
	Use:   "capture <name>",
	Short: "Capture the current device settings under a name",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotCapture,
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore <name>",
	Short: "Restore a snapshot's settings to the device",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotRestore,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved snapshots",
	RunE:  runSnapshotList,
}

var snapshotRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotRm,
}

var snapshotQuickCmd = &cobra.Command{
	Use:   "quick <name> <on|off>",
	Short: "Pin or unpin a snapshot for quick access",
	Args:  cobra.ExactArgs(2),
	RunE:  runSnapshotQuick,
}

var snapshotDescription string

func init() {
	snapshotCaptureCmd.Flags().StringVar(&snapshotDescription, "description", "", "Snapshot description")
	snapshotCmd.AddCommand(snapshotCaptureCmd, snapshotRestoreCmd, snapshotListCmd, snapshotRmCmd, snapshotQuickCmd)
}

func newSnapshotManager(st *store.Store) (*engine.SnapshotManager, *audit.Logger) {
	logger := zap.NewNop()
	auditLog := audit.NewLogger(st, logger)
	device := infra.NewShellDeviceSettings(logger)
	return engine.NewSnapshotManager(st, device, auditLog, logger), auditLog
}

// findSnapshot resolves a name or ID to a stored snapshot.
func findSnapshot(ctx context.Context, st *store.Store, nameOrID string) (*domain.SystemSnapshot, error) {
	snaps, err := st.Snapshots(ctx)
	if err != nil {
		return nil, err
	}
	for i := range snaps {
		if snaps[i].Name == nameOrID || snaps[i].ID == nameOrID {
			return &snaps[i], nil
		}
	}
	return nil, fmt.Errorf("no snapshot named %q", nameOrID)
}

func runSnapshotCapture(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	mgr, auditLog := newSnapshotManager(st)
	defer auditLog.Flush()

	snap, err := mgr.CaptureCurrent(context.Background(), args[0], snapshotDescription)
	if err != nil {
		return err
	}
	fmt.Printf("Captured snapshot '%s' (%s)\n", snap.Name, snap.ID)
	return nil
}

func runSnapshotRestore(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	snap, err := findSnapshot(ctx, st, args[0])
	if err != nil {
		return err
	}

	mgr, auditLog := newSnapshotManager(st)
	defer auditLog.Flush()

	changes := mgr.Restore(ctx, *snap)
	if len(changes) == 0 {
		fmt.Println("Nothing applied.")
		return nil
	}
	fmt.Printf("Restored '%s':\n", snap.Name)
	for _, c := range changes {
		fmt.Printf("  - %s\n", c)
	}
	return nil
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	snaps, err := st.Snapshots(context.Background())
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Println("No snapshots.")
		return nil
	}
	for _, s := range snaps {
		quick := ""
		if s.IsQuickAccess {
			quick = "  [quick]"
		}
		fmt.Printf("%s%s\n", s.Name, quick)
		if s.Description != "" {
			fmt.Printf("    %s\n", s.Description)
		}
		fmt.Printf("    created %s, used %d times", s.CreatedAt.Format("2006-01-02"), s.UseCount)
		if s.LastUsedAt != nil {
			fmt.Printf(", last %s ago", time.Since(*s.LastUsedAt).Round(time.Minute))
		}
		fmt.Println()
	}
	return nil
}

func runSnapshotRm(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	snap, err := findSnapshot(ctx, st, args[0])
	if err != nil {
		return err
	}
	if err := st.DeleteSnapshot(ctx, snap.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted snapshot '%s'\n", snap.Name)
	return nil
}

func runSnapshotQuick(cmd *cobra.Command, args []string) error {
	var quick bool
	switch strings.ToLower(args[1]) {
	case "on":
		quick = true
	case "off":
		quick = false
	default:
		return fmt.Errorf("expected on or off, got %q", args[1])
	}

	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	snap, err := findSnapshot(ctx, st, args[0])
	if err != nil {
		return err
	}
	if err := st.SetSnapshotQuickAccess(ctx, snap.ID, quick); err != nil {
		return err
	}
	fmt.Printf("Quick access for '%s': %s\n", snap.Name, strings.ToLower(args[1]))
	return nil
}
