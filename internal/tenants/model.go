package tenants

import (
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
)

// ErrNotFound is returned when no active tenant matches.
var ErrNotFound = errors.New("tenants: not found")

// Tenant is one clinic. Every scheduling row carries its ID.
type Tenant struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Subdomain      string    `json:"subdomain"`
	Timezone       string    `json:"timezone"`
	ClosedWeekdays []int64   `json:"closed_weekdays"`
	CalendarID     string    `json:"calendar_id,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Location returns the clinic timezone, UTC when unset or unknown.
func (t *Tenant) Location() *time.Location {
	if t == nil || strings.TrimSpace(t.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BusinessHours returns the standard window in the clinic's timezone with
// its closed days applied.
func (t *Tenant) BusinessHours() scheduling.BusinessHours {
	hours := scheduling.StandardHours(t.Location())
	if t == nil {
		return hours
	}
	for _, d := range t.ClosedWeekdays {
		if d >= 0 && d <= 6 {
			hours.ClosedWeekdays = append(hours.ClosedWeekdays, time.Weekday(d))
		}
	}
	return hours
}

// NormalizeSubdomain lowercases and trims a subdomain header value.
func NormalizeSubdomain(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
