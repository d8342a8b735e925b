package scheduling

import "time"

// StartOfDay returns local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// StartOfWeek returns midnight of the most recent Monday.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// StartOfMonth returns midnight of the first day of t's month.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
}

// DayRange returns [midnight, next midnight) for t's local date.
func DayRange(t time.Time, loc *time.Location) Interval {
	start := StartOfDay(t, loc)
	return Interval{Start: start, End: start.AddDate(0, 0, 1)}
}
