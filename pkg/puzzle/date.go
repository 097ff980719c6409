package puzzle

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage and wire format of puzzle dates.
const DateLayout = "2006-01-02"

// RolloverHour is the UTC hour at which a new puzzle is published.
const RolloverHour = 7

// ParseDate accepts YYYY-MM-DD, RFC 3339 and RFC 1123 timestamps and
// truncates them to the UTC calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, time.RFC3339, time.RFC1123, time.RFC1123Z} {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// FormatDate renders d as YYYY-MM-DD.
func FormatDate(d time.Time) string { return Day(d).Format(DateLayout) }

// Day truncates t to midnight UTC of its UTC calendar day.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PublishedCutoff returns the most recent date whose solutions may be shown
// at now. Today's puzzle is still being played, and before the daily rollover
// yesterday's is too.
func PublishedCutoff(now time.Time) time.Time {
	now = now.UTC()
	days := 1
	if now.Hour() < RolloverHour {
		days = 2
	}
	return Day(now.AddDate(0, 0, -days))
}
