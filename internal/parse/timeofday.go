package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire and storage form of a calendar date.
const DateLayout = "2006-01-02"

// MinutesPerDay is the length of a day in minutes.
const MinutesPerDay = 24 * 60

// Accepts "18:00", "8:05" and the "18:00:00" form Postgres returns for time columns.
var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)

// ParseDate parses a YYYY-MM-DD date as midnight in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return d, nil
}

// ParseClock converts a time of day into minutes since midnight.
// Seconds, when present, are ignored (minute precision).
func ParseClock(raw string) (int, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", raw)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	if h > 23 || min > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", raw)
	}
	return h*60 + min, nil
}

// FormatClock renders minutes since midnight as HH:MM. Values past
// midnight wrap around, so 1470 renders as "00:30".
func FormatClock(minutes int) string {
	m := ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// SlotLabel renders the dining window that starts at minutes, e.g. "18:00 - 19:30".
func SlotLabel(minutes, diningMinutes int) string {
	return FormatClock(minutes) + " - " + FormatClock(minutes+diningMinutes)
}

// MinuteOfDay returns the minutes elapsed since midnight for t in its own location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
