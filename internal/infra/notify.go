package infra

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/brittytino/patchworkd/internal/domain"
)

const notifyTag = "patchworkd"

// ShellNotifier posts user-facing notifications through cmd notification.
// Best-effort: callers treat failures as cosmetic.
type ShellNotifier struct {
	run    runFn
	logger *zap.Logger
}

// NewShellNotifier creates the adapter.
func NewShellNotifier(logger *zap.Logger) *ShellNotifier {
	return &ShellNotifier{run: execRun, logger: logger}
}

// NotifyIdleApp tells the user an app has been idle.
func (n *ShellNotifier) NotifyIdleApp(ctx context.Context, appName string, idleMinutes int64) error {
	text := fmt.Sprintf("%s has been unused for %s", appName, humanMinutes(idleMinutes))
	return n.post(ctx, "Idle App", text)
}

// NotifyBlocked tells the user a launch was blocked and why.
func (n *ShellNotifier) NotifyBlocked(ctx context.Context, appName, reason string) error {
	return n.post(ctx, "App Blocked", fmt.Sprintf("%s: %s", appName, reason))
}

func (n *ShellNotifier) post(ctx context.Context, title, text string) error {
	out, err := n.run(ctx, "cmd", "notification", "post",
		"-S", "bigtext", "-t", title, notifyTag, text)
	if err != nil {
		return classify(out, err)
	}
	return nil
}

// humanMinutes renders an idle span the way the notification shows it:
// minutes under an hour, whole hours under a day, days beyond.
func humanMinutes(m int64) string {
	switch {
	case m < 60:
		return fmt.Sprintf("%dm", m)
	case m < 24*60:
		return fmt.Sprintf("%dh", m/60)
	default:
		return fmt.Sprintf("%dd", m/(24*60))
	}
}

var _ domain.NotificationPresenter = (*ShellNotifier)(nil)
