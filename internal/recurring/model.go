// Package recurring manages repeating appointment templates and expands
// them into concrete bookings.
package recurring

import (
	"strings"
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
)

// Template describes a repeating appointment. Occurrence k falls on
// StartDate advanced by k*Interval periods, at TimeOfDay in the clinic's
// timezone.
type Template struct {
	ID              string             `json:"id"`
	TenantID        string             `json:"tenant_id"`
	PatientID       string             `json:"patient_id"`
	Pattern         scheduling.Pattern `json:"pattern"`
	Interval        int                `json:"interval"`
	StartDate       time.Time          `json:"start_date"`
	EndDate         *time.Time         `json:"end_date,omitempty"`
	TimeOfDay       string             `json:"time_of_day"`
	DurationMinutes int                `json:"duration_minutes"`
	Notes           string             `json:"notes,omitempty"`
	IsActive        bool               `json:"is_active"`
	LastGenerated   *time.Time         `json:"last_generated,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// Anchor is the first occurrence: the start date's calendar day in loc at
// the template's time of day.
func (t *Template) Anchor(loc *time.Location) (time.Time, error) {
	tod, err := scheduling.ParseTimeOfDay(t.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	return tod.On(t.StartDate, loc), nil
}

// CreateInput is a new template.
type CreateInput struct {
	PatientID       string
	Pattern         string
	Interval        int
	StartDate       time.Time
	EndDate         *time.Time
	TimeOfDay       string
	DurationMinutes int
	Notes           string
}

// UpdateInput is a partial template update.
type UpdateInput struct {
	Pattern         *string
	Interval        *int
	StartDate       *time.Time
	EndDate         *time.Time
	TimeOfDay       *string
	DurationMinutes *int
	Notes           *string
	IsActive        *bool
}

// ListFilter narrows List.
type ListFilter struct {
	ActiveOnly bool
	PatientID  string
}

func (f ListFilter) matches(t *Template) bool {
	if f.ActiveOnly && !t.IsActive {
		return false
	}
	return f.PatientID == "" || t.PatientID == f.PatientID
}

// newTemplate validates input against now.
func newTemplate(tenantID string, in CreateInput, now time.Time) (*Template, error) {
	t := &Template{
		TenantID:        tenantID,
		PatientID:       strings.TrimSpace(in.PatientID),
		Interval:        in.Interval,
		StartDate:       in.StartDate.UTC(),
		TimeOfDay:       strings.TrimSpace(in.TimeOfDay),
		DurationMinutes: in.DurationMinutes,
		Notes:           in.Notes,
		IsActive:        true,
	}
	if t.PatientID == "" {
		return nil, apperr.Validation("patient_id is required")
	}
	if in.StartDate.IsZero() {
		return nil, apperr.Validation("start_date is required")
	}
	if !in.StartDate.After(now) {
		return nil, apperr.Validation("start date must be in the future")
	}
	if in.EndDate != nil {
		end := in.EndDate.UTC()
		t.EndDate = &end
	}
	if t.Interval == 0 {
		t.Interval = 1
	}
	if t.DurationMinutes == 0 {
		t.DurationMinutes = 30
	}
	p, err := scheduling.ParsePattern(in.Pattern)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	t.Pattern = p
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// apply merges a partial update. Changing the start date re-checks that it
// lies in the future.
func (t *Template) apply(in UpdateInput, now time.Time) error {
	if in.Pattern != nil {
		p, err := scheduling.ParsePattern(*in.Pattern)
		if err != nil {
			return apperr.Validation("%v", err)
		}
		t.Pattern = p
	}
	if in.Interval != nil {
		t.Interval = *in.Interval
	}
	if in.StartDate != nil {
		if !in.StartDate.After(now) {
			return apperr.Validation("start date must be in the future")
		}
		t.StartDate = in.StartDate.UTC()
	}
	if in.EndDate != nil {
		end := in.EndDate.UTC()
		t.EndDate = &end
	}
	if in.TimeOfDay != nil {
		t.TimeOfDay = strings.TrimSpace(*in.TimeOfDay)
	}
	if in.DurationMinutes != nil {
		t.DurationMinutes = *in.DurationMinutes
	}
	if in.Notes != nil {
		t.Notes = *in.Notes
	}
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
	return t.validate()
}

func (t *Template) validate() error {
	if t.Interval < 1 {
		return apperr.Validation("interval must be at least 1")
	}
	if t.DurationMinutes <= 0 {
		return apperr.Validation("duration_minutes must be positive")
	}
	if _, err := scheduling.ParseTimeOfDay(t.TimeOfDay); err != nil {
		return apperr.Validation("%v", err)
	}
	if t.EndDate != nil && t.EndDate.Before(t.StartDate) {
		return apperr.Validation("end_date must not be before start_date")
	}
	return nil
}

// Result summarizes one expansion run.
type Result struct {
	TemplateID          string `json:"recurring_appointment_id"`
	Generated           int    `json:"appointments_generated"`
	SkippedConflicts    int    `json:"skipped_conflicts"`
	SkippedOutsideHours int    `json:"skipped_outside_hours"`
}
