package scheduling

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds the window covered by an appointment.
func NewInterval(start time.Time, durationMinutes int) Interval {
	return Interval{Start: start, End: start.Add(time.Duration(durationMinutes) * time.Minute)}
}

// Overlaps reports whether the two ranges share any instant. Ranges that
// only touch at an endpoint do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// FirstConflict returns the index of the first existing interval that
// overlaps candidate, or -1.
func FirstConflict(candidate Interval, existing []Interval) int {
	for idx, iv := range existing {
		if candidate.Overlaps(iv) {
			return idx
		}
	}
	return -1
}

// HasConflict reports whether candidate overlaps any existing interval.
func HasConflict(candidate Interval, existing []Interval) bool {
	return FirstConflict(candidate, existing) >= 0
}
