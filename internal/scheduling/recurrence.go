package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Pattern is the period of a recurring template.
type Pattern string

const (
	Daily   Pattern = "daily"
	Weekly  Pattern = "weekly"
	Monthly Pattern = "monthly"
	Yearly  Pattern = "yearly"
)

// ParsePattern validates a pattern name.
func ParsePattern(raw string) (Pattern, error) {
	switch p := Pattern(strings.ToLower(strings.TrimSpace(raw))); p {
	case Daily, Weekly, Monthly, Yearly:
		return p, nil
	default:
		return "", fmt.Errorf("unknown recurrence pattern %q", raw)
	}
}

// Nth returns the date of the n-th occurrence after anchor (n=0 is anchor
// itself) for a pattern repeating every interval periods. Month and year
// steps keep the anchor's day of month and clamp to the last day of shorter
// months, so Jan 31 monthly yields Feb 28 (or 29), Mar 31, Apr 30.
// Unknown patterns step one day at a time.
func Nth(anchor time.Time, p Pattern, interval, n int) time.Time {
	if interval < 1 {
		interval = 1
	}
	steps := interval * n
	switch p {
	case Daily:
		return anchor.AddDate(0, 0, steps)
	case Weekly:
		return anchor.AddDate(0, 0, 7*steps)
	case Monthly:
		return addMonthsClamped(anchor, steps)
	case Yearly:
		return addMonthsClamped(anchor, 12*steps)
	default:
		return anchor.AddDate(0, 0, n)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	first = first.AddDate(0, months, 0)
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// TimeOfDay is a wall-clock time such as "09:30".
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses HH:MM.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("time must be in HH:MM format (e.g. 09:00), got %q", raw)
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("time must be in HH:MM format (e.g. 09:00), got %q", raw)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant at this wall-clock time on day's calendar date in loc.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := day.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), t.Hour, t.Minute, 0, 0, loc)
}
