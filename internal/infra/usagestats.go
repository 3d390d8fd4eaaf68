package infra

import (
	"bufio"
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brittytino/patchworkd/internal/domain"
)

// DumpsysUsageSource reads per-package usage recency from the platform
// usagestats service. The dumpsys text format is not a stable API, so
// parsing is tolerant: lines that do not match are skipped.
type DumpsysUsageSource struct {
	run    runFn
	logger *zap.Logger
}

// NewDumpsysUsageSource creates the adapter.
func NewDumpsysUsageSource(logger *zap.Logger) *DumpsysUsageSource {
	return &DumpsysUsageSource{run: execRun, logger: logger}
}

// QueryUsage returns one entry per package seen in [start, end], keeping
// the newest lastTimeUsed when a package appears in several interval
// buckets.
func (s *DumpsysUsageSource) QueryUsage(ctx context.Context, start, end time.Time) ([]domain.AppUsage, error) {
	out, err := s.run(ctx, "dumpsys", "usagestats")
	if err != nil {
		return nil, classify(out, err)
	}

	byPackage := make(map[string]domain.AppUsage)
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		u, ok := parseUsageLine(sc.Text())
		if !ok {
			continue
		}
		if u.LastUsed.Before(start) || u.LastUsed.After(end) {
			continue
		}
		prev, seen := byPackage[u.PackageName]
		if !seen || u.LastUsed.After(prev.LastUsed) {
			u.TotalForegroundTimeMs += prev.TotalForegroundTimeMs
			byPackage[u.PackageName] = u
		} else {
			prev.TotalForegroundTimeMs += u.TotalForegroundTimeMs
			byPackage[u.PackageName] = prev
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	usage := make([]domain.AppUsage, 0, len(byPackage))
	for _, u := range byPackage {
		usage = append(usage, u)
	}
	return usage, nil
}

// parseUsageLine extracts package, lastTime and totalTime from a stats
// line, e.g.:
//
//	package=com.example.app totalTime="01:02:03" lastTime="2026-08-28 10:14:05"
func parseUsageLine(line string) (domain.AppUsage, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "package=") {
		return domain.AppUsage{}, false
	}

	var u domain.AppUsage
	for _, field := range splitFields(line) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"`)
		switch key {
		case "package":
			u.PackageName = value
		case "lastTime", "lastTimeUsed":
			if t, err := time.ParseInLocation("2006-01-02 15:04:05", value, time.Local); err == nil {
				u.LastUsed = t
			}
		case "totalTime", "totalTimeUsed":
			u.TotalForegroundTimeMs = parseClockDuration(value)
		}
	}
	if u.PackageName == "" || u.LastUsed.IsZero() {
		return domain.AppUsage{}, false
	}
	return u, true
}

// splitFields splits on spaces outside double quotes; dumpsys quotes
// values that contain spaces.
func splitFields(line string) []string {
	var fields []string
	var b strings.Builder
	inQuote := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == ' ' && !inQuote:
			if b.Len() > 0 {
				fields = append(fields, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		fields = append(fields, b.String())
	}
	return fields
}

// parseClockDuration converts dumpsys "HH:MM:SS" (or "MM:SS") elapsed
// notation to milliseconds. Returns 0 for anything unparseable.
func parseClockDuration(v string) int64 {
	parts := strings.Split(v, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}
	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total * 1000
}

var _ domain.UsageStatsSource = (*DumpsysUsageSource)(nil)
