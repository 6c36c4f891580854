package utils

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration renders a session length as HH:MM:SS with zero-padded
// fields. Hours are unbounded, so long sessions read 125:04:09.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

var sinceUnits = []struct {
	name    string
	seconds int
}{
	{"year", 365 * 24 * 3600},
	{"month", 30 * 24 * 3600},
	{"day", 24 * 3600},
	{"hour", 3600},
	{"minute", 60},
	{"second", 1},
}

// FormatTimeSince renders the gap between two instants as
// "1 day, 2 hours, 5 seconds ago". Zero-valued units are omitted.
func FormatTimeSince(then, now time.Time) string {
	seconds := int(now.Sub(then).Seconds())
	if seconds <= 0 {
		return "just now"
	}

	parts := make([]string, 0, len(sinceUnits))
	for _, unit := range sinceUnits {
		count := seconds / unit.seconds
		if count == 0 {
			continue
		}
		seconds -= count * unit.seconds
		parts = append(parts, fmt.Sprintf("%d %s", count, Pluralize(count, unit.name, unit.name+"s")))
	}
	return strings.Join(parts, ", ") + " ago"
}

func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}
