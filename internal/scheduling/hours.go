// Package scheduling holds the calendar rules shared by appointment booking,
// recurrence expansion and statistics.
package scheduling

import (
	"time"
)

const (
	DefaultOpenHour  = 9
	DefaultCloseHour = 17
)

// BusinessHours is a clinic's daily operating window, evaluated in the
// clinic's own timezone. The close hour is an inclusive end boundary: an
// appointment may end exactly at close but not start there.
type BusinessHours struct {
	OpenHour       int
	CloseHour      int
	Location       *time.Location
	ClosedWeekdays []time.Weekday
}

// StandardHours returns the 09:00-17:00 window in loc.
func StandardHours(loc *time.Location) BusinessHours {
	return BusinessHours{OpenHour: DefaultOpenHour, CloseHour: DefaultCloseHour, Location: loc}
}

// Contains reports whether [start, start+duration) falls inside the window.
func (b BusinessHours) Contains(start time.Time, durationMinutes int) bool {
	if durationMinutes <= 0 {
		return false
	}
	local := start.In(b.location())
	if b.closedOn(local.Weekday()) {
		return false
	}
	if local.Hour() < b.OpenHour || local.Hour() >= b.CloseHour {
		return false
	}
	end := local.Add(time.Duration(durationMinutes) * time.Minute)
	closing := time.Date(local.Year(), local.Month(), local.Day(), b.CloseHour, 0, 0, 0, local.Location())
	return !end.After(closing)
}

// Describe renders the window for error messages, e.g. "09:00-17:00".
func (b BusinessHours) Describe() string {
	open := time.Date(2000, 1, 1, b.OpenHour, 0, 0, 0, time.UTC)
	closing := time.Date(2000, 1, 1, b.CloseHour, 0, 0, 0, time.UTC)
	return open.Format("15:04") + "-" + closing.Format("15:04")
}

func (b BusinessHours) location() *time.Location {
	if b.Location == nil {
		return time.UTC
	}
	return b.Location
}

func (b BusinessHours) closedOn(day time.Weekday) bool {
	for _, closed := range b.ClosedWeekdays {
		if closed == day {
			return true
		}
	}
	return false
}

// IsFuture reports whether t is strictly after now.
func IsFuture(t, now time.Time) bool {
	return t.After(now)
}
