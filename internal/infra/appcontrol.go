package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/brittytino/patchworkd/internal/domain"
)

// ShellAppController controls other packages through am and pm, with a
// direct process kill as fallback when the activity manager refuses.
type ShellAppController struct {
	run    runFn
	logger *zap.Logger
}

// NewShellAppController creates the adapter.
func NewShellAppController(logger *zap.Logger) *ShellAppController {
	return &ShellAppController{run: execRun, logger: logger}
}

// ForceStop kills every process of the package. Tries am force-stop
// first, then falls back to signalling the processes directly.
func (c *ShellAppController) ForceStop(ctx context.Context, packageName string) error {
	out, err := c.run(ctx, "am", "force-stop", packageName)
	if err == nil && !isDenied(out) {
		return nil
	}
	c.logger.Debug("am force-stop refused, killing processes directly",
		zap.String("package", packageName))

	killed, kerr := killByName(ctx, packageName)
	if kerr != nil {
		return fmt.Errorf("failed to stop %s: %w", packageName, kerr)
	}
	if killed == 0 {
		if err != nil {
			return classify(out, err)
		}
		return domain.ErrPermissionDenied
	}
	return nil
}

// Freeze disables the package for the current user. The app stays
// installed but cannot run or receive broadcasts until re-enabled.
func (c *ShellAppController) Freeze(ctx context.Context, packageName string) error {
	out, err := c.run(ctx, "pm", "disable-user", "--user", "0", packageName)
	if err != nil {
		return classify(out, err)
	}
	if !strings.Contains(out, "disabled-user") {
		return fmt.Errorf("unexpected pm output: %q", firstLine(strings.TrimSpace(out)))
	}
	return nil
}

// Unfreeze re-enables a previously frozen package.
func (c *ShellAppController) Unfreeze(ctx context.Context, packageName string) error {
	out, err := c.run(ctx, "pm", "enable", packageName)
	if err != nil {
		return classify(out, err)
	}
	return nil
}

// ClearCache would need the system-only DELETE_CACHE_FILES permission;
// pm clear wipes app data too, which is far more destructive than a
// cache trim. Always refuses.
func (c *ShellAppController) ClearCache(ctx context.Context, packageName string) error {
	return domain.ErrUnsupported
}

// killByName terminates every running process whose name matches the
// package (Android process names are the package name, optionally with a
// :service suffix). Returns how many processes were signalled.
func killByName(ctx context.Context, packageName string) (int, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, err
	}
	killed := 0
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if name != packageName && !strings.HasPrefix(name, packageName+":") {
			continue
		}
		if err := p.KillWithContext(ctx); err != nil {
			continue
		}
		killed++
	}
	return killed, nil
}

var _ domain.AppController = (*ShellAppController)(nil)
