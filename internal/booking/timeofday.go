package booking

import (
	"fmt"
	"time"
)

// MinuteOfDay is a time of day at minute precision, counted from midnight.
type MinuteOfDay int

const minutesPerDay = 24 * 60

// ParseMinuteOfDay parses "HH:MM" (longer strings such as "09:00:00" are
// truncated to the first five characters).
func ParseMinuteOfDay(s string) (MinuteOfDay, error) {
	if len(s) < 5 {
		return 0, fmt.Errorf("invalid time of day: %q", s)
	}
	t, err := time.Parse("15:04", s[:5])
	if err != nil {
		return 0, fmt.Errorf("invalid time of day: %q", s)
	}
	return MinuteOfDay(t.Hour()*60 + t.Minute()), nil
}

func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

func (m MinuteOfDay) Valid() bool {
	return m >= 0 && m < minutesPerDay
}

// DateOnly normalizes t to midnight UTC so bookings and windows compare by
// calendar day regardless of how the caller built the time.Time.
func DateOnly(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
// Half-open semantics: a range ending exactly when another starts does not
// conflict.
func Overlaps(aStart, aEnd, bStart, bEnd MinuteOfDay) bool {
	return aStart < bEnd && aEnd > bStart
}
