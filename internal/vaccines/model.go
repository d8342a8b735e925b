// Package vaccines records vaccinations and tracks booster due dates.
package vaccines

import (
	"strings"
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
)

// DueSoonDays is the window in which a booster counts as due soon.
const DueSoonDays = 30

// Record is one vaccination. Dates are calendar dates stored at UTC midnight.
type Record struct {
	ID                  string     `json:"id"`
	TenantID            string     `json:"tenant_id"`
	PatientID           string     `json:"patient_id"`
	VaccineName         string     `json:"vaccine_name"`
	VaccineType         string     `json:"vaccine_type,omitempty"`
	Manufacturer        string     `json:"manufacturer,omitempty"`
	BatchNumber         string     `json:"batch_number,omitempty"`
	DateGiven           time.Time  `json:"date_given"`
	NextDueDate         *time.Time `json:"next_due_date,omitempty"`
	VeterinarianName    string     `json:"veterinarian_name,omitempty"`
	Dosage              string     `json:"dosage,omitempty"`
	AdministrationRoute string     `json:"administration_route,omitempty"`
	Notes               string     `json:"notes,omitempty"`
	AdverseReactions    string     `json:"adverse_reactions,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// DueStatus describes a record's booster relative to a day.
type DueStatus struct {
	IsDueSoon    bool `json:"is_due_soon"`
	IsOverdue    bool `json:"is_overdue"`
	DaysUntilDue *int `json:"days_until_due"`
}

// Due computes the booster status as of today.
func (r *Record) Due(today time.Time) DueStatus {
	if r.NextDueDate == nil {
		return DueStatus{}
	}
	days := daysBetween(today, *r.NextDueDate)
	return DueStatus{
		IsDueSoon:    days >= 0 && days <= DueSoonDays,
		IsOverdue:    days < 0,
		DaysUntilDue: &days,
	}
}

// Today returns the calendar date of now in loc, as UTC midnight.
func Today(now time.Time, loc *time.Location) time.Time {
	local := scheduling.StartOfDay(now, loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// Input carries create and patch fields. Nil pointers are left unchanged.
type Input struct {
	VaccineName         *string `json:"vaccine_name"`
	VaccineType         *string `json:"vaccine_type"`
	Manufacturer        *string `json:"manufacturer"`
	BatchNumber         *string `json:"batch_number"`
	DateGiven           *string `json:"date_given"`
	NextDueDate         *string `json:"next_due_date"`
	VeterinarianName    *string `json:"veterinarian_name"`
	Dosage              *string `json:"dosage"`
	AdministrationRoute *string `json:"administration_route"`
	Notes               *string `json:"notes"`
	AdverseReactions    *string `json:"adverse_reactions"`
}

// NewRecord validates a create request.
func NewRecord(tenantID, patientID string, in Input) (*Record, error) {
	if in.VaccineName == nil || in.DateGiven == nil {
		return nil, apperr.Validation("vaccine_name and date_given are required")
	}
	r := &Record{TenantID: tenantID, PatientID: patientID}
	if err := in.ApplyTo(r); err != nil {
		return nil, err
	}
	return r, nil
}

// ApplyTo validates the set fields and copies them onto r.
func (in Input) ApplyTo(r *Record) error {
	if in.VaccineName != nil {
		name := strings.TrimSpace(*in.VaccineName)
		if name == "" || len(name) > 100 {
			return apperr.Validation("vaccine_name must be 1-100 characters")
		}
		r.VaccineName = name
	}
	if in.DateGiven != nil {
		d, err := parseDate("date_given", *in.DateGiven)
		if err != nil {
			return err
		}
		r.DateGiven = d
	}
	if in.NextDueDate != nil {
		if strings.TrimSpace(*in.NextDueDate) == "" {
			r.NextDueDate = nil
		} else {
			d, err := parseDate("next_due_date", *in.NextDueDate)
			if err != nil {
				return err
			}
			r.NextDueDate = &d
		}
	}
	if r.NextDueDate != nil && r.NextDueDate.Before(r.DateGiven) {
		return apperr.Validation("next_due_date must not be before date_given")
	}
	for _, f := range []struct {
		name string
		src  *string
		dst  *string
		max  int
	}{
		{"vaccine_type", in.VaccineType, &r.VaccineType, 50},
		{"manufacturer", in.Manufacturer, &r.Manufacturer, 100},
		{"batch_number", in.BatchNumber, &r.BatchNumber, 50},
		{"veterinarian_name", in.VeterinarianName, &r.VeterinarianName, 100},
		{"dosage", in.Dosage, &r.Dosage, 50},
		{"administration_route", in.AdministrationRoute, &r.AdministrationRoute, 50},
	} {
		if f.src == nil {
			continue
		}
		v := strings.TrimSpace(*f.src)
		if len(v) > f.max {
			return apperr.Validation("%s must be at most %d characters", f.name, f.max)
		}
		*f.dst = v
	}
	if in.Notes != nil {
		r.Notes = *in.Notes
	}
	if in.AdverseReactions != nil {
		r.AdverseReactions = *in.AdverseReactions
	}
	return nil
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := scheduling.ParseDate(raw, time.UTC)
	if err != nil {
		return time.Time{}, apperr.Validation("%s: %v", field, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
