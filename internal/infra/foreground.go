package infra

import (
	"context"
	"regexp"

	"go.uber.org/zap"
)

// resumedActivityRe pulls the package out of the activity manager dump,
// e.g. "topResumedActivity=ActivityRecord{... u0 com.example.app/.MainActivity t42}".
var resumedActivityRe = regexp.MustCompile(`(?:topResumedActivity|mResumedActivity)[=:].*\su\d+\s([\w.]+)/`)

// ShellForegroundSource reports the package currently in the foreground
// by asking the activity manager.
type ShellForegroundSource struct {
	run    runFn
	logger *zap.Logger
}

// NewShellForegroundSource creates the adapter.
func NewShellForegroundSource(logger *zap.Logger) *ShellForegroundSource {
	return &ShellForegroundSource{run: execRun, logger: logger}
}

// ForegroundApp returns the package name of the resumed activity, or ""
// when nothing is resumed (screen off, keyguard).
func (s *ShellForegroundSource) ForegroundApp(ctx context.Context) (string, error) {
	out, err := s.run(ctx, "dumpsys", "activity", "activities")
	if err != nil {
		return "", classify(out, err)
	}
	m := resumedActivityRe.FindStringSubmatch(out)
	if m == nil {
		return "", nil
	}
	return m[1], nil
}
