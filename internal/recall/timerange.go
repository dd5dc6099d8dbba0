package recall

import (
	"regexp"
	"time"
)

// TimeRange is a half-open [Start, End) window extracted from a query
// string. internal/reflect's tool handlers set it on a Query, and Recall
// then applies it as a filter in both searches: only units whose
// mentioned_at falls inside the window are returned. It does not change
// the fused ranking of the units that pass.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

var relativeDayPattern = regexp.MustCompile(`(?i)\b(today|yesterday|this week|last week)\b`)

// ExtractTimeRange looks for a small set of English relative-date phrases.
// Grounded on original_source/agentcore/memory/recall.py's
// _extract_time_range, which parses Japanese relative-date phrases against
// a reference "now" — this reimplements the same idea (a best-effort hint,
// not authoritative) for the phrases that idiomatic English callers use,
// rather than porting the original's regex set verbatim.
func ExtractTimeRange(query string, now time.Time) (TimeRange, bool) {
	match := relativeDayPattern.FindString(query)
	if match == "" {
		return TimeRange{}, false
	}

	dayStart := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}

	switch normalizePhrase(match) {
	case "today":
		start := dayStart(now)
		return TimeRange{Start: start, End: start.Add(24 * time.Hour)}, true
	case "yesterday":
		start := dayStart(now).Add(-24 * time.Hour)
		return TimeRange{Start: start, End: start.Add(24 * time.Hour)}, true
	case "this week":
		start := dayStart(now).Add(-time.Duration(int(now.Weekday())) * 24 * time.Hour)
		return TimeRange{Start: start, End: start.Add(7 * 24 * time.Hour)}, true
	case "last week":
		start := dayStart(now).Add(-time.Duration(int(now.Weekday())+7) * 24 * time.Hour)
		return TimeRange{Start: start, End: start.Add(7 * 24 * time.Hour)}, true
	default:
		return TimeRange{}, false
	}
}

func normalizePhrase(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, r)
	}
	return string(out)
}
