// Package treatments stores the clinical treatment history of a patient.
package treatments

import (
	"strings"
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
)

// Record is one treatment given to a patient.
type Record struct {
	ID                     string     `json:"id"`
	TenantID               string     `json:"tenant_id"`
	PatientID              string     `json:"patient_id"`
	TreatmentType          string     `json:"treatment_type"`
	TreatmentName          string     `json:"treatment_name"`
	TreatmentDate          time.Time  `json:"treatment_date"`
	FollowUpDate           *time.Time `json:"follow_up_date,omitempty"`
	Diagnosis              string     `json:"diagnosis,omitempty"`
	Symptoms               string     `json:"symptoms,omitempty"`
	TreatmentPlan          string     `json:"treatment_plan,omitempty"`
	MedicationsPrescribed  string     `json:"medications_prescribed,omitempty"`
	MedicationInstructions string     `json:"medication_instructions,omitempty"`
	VeterinarianName       string     `json:"veterinarian_name,omitempty"`
	Cost                   *float64   `json:"cost,omitempty"`
	Notes                  string     `json:"notes,omitempty"`
	Outcome                string     `json:"outcome,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Input carries create and patch fields. Nil pointers are left unchanged.
type Input struct {
	TreatmentType          *string  `json:"treatment_type"`
	TreatmentName          *string  `json:"treatment_name"`
	TreatmentDate          *string  `json:"treatment_date"`
	FollowUpDate           *string  `json:"follow_up_date"`
	Diagnosis              *string  `json:"diagnosis"`
	Symptoms               *string  `json:"symptoms"`
	TreatmentPlan          *string  `json:"treatment_plan"`
	MedicationsPrescribed  *string  `json:"medications_prescribed"`
	MedicationInstructions *string  `json:"medication_instructions"`
	VeterinarianName       *string  `json:"veterinarian_name"`
	Cost                   *float64 `json:"cost"`
	Notes                  *string  `json:"notes"`
	Outcome                *string  `json:"outcome"`
}

// NewRecord validates a create request.
func NewRecord(tenantID, patientID string, in Input) (*Record, error) {
	if in.TreatmentType == nil || in.TreatmentName == nil || in.TreatmentDate == nil {
		return nil, apperr.Validation("treatment_type, treatment_name and treatment_date are required")
	}
	r := &Record{TenantID: tenantID, PatientID: patientID}
	if err := in.ApplyTo(r); err != nil {
		return nil, err
	}
	return r, nil
}

// ApplyTo validates the set fields and copies them onto r.
func (in Input) ApplyTo(r *Record) error {
	if in.TreatmentType != nil {
		v := strings.TrimSpace(*in.TreatmentType)
		if v == "" || len(v) > 100 {
			return apperr.Validation("treatment_type must be 1-100 characters")
		}
		r.TreatmentType = v
	}
	if in.TreatmentName != nil {
		v := strings.TrimSpace(*in.TreatmentName)
		if v == "" || len(v) > 200 {
			return apperr.Validation("treatment_name must be 1-200 characters")
		}
		r.TreatmentName = v
	}
	if in.TreatmentDate != nil {
		d, err := parseDate("treatment_date", *in.TreatmentDate)
		if err != nil {
			return err
		}
		r.TreatmentDate = d
	}
	if in.FollowUpDate != nil {
		if strings.TrimSpace(*in.FollowUpDate) == "" {
			r.FollowUpDate = nil
		} else {
			d, err := parseDate("follow_up_date", *in.FollowUpDate)
			if err != nil {
				return err
			}
			r.FollowUpDate = &d
		}
	}
	if in.Cost != nil {
		if *in.Cost < 0 {
			return apperr.Validation("cost must not be negative")
		}
		c := *in.Cost
		r.Cost = &c
	}
	if in.VeterinarianName != nil {
		v := strings.TrimSpace(*in.VeterinarianName)
		if len(v) > 100 {
			return apperr.Validation("veterinarian_name must be at most 100 characters")
		}
		r.VeterinarianName = v
	}
	if in.Outcome != nil {
		v := strings.TrimSpace(*in.Outcome)
		if len(v) > 50 {
			return apperr.Validation("outcome must be at most 50 characters")
		}
		r.Outcome = v
	}
	setText(&r.Diagnosis, in.Diagnosis)
	setText(&r.Symptoms, in.Symptoms)
	setText(&r.TreatmentPlan, in.TreatmentPlan)
	setText(&r.MedicationsPrescribed, in.MedicationsPrescribed)
	setText(&r.MedicationInstructions, in.MedicationInstructions)
	setText(&r.Notes, in.Notes)
	return nil
}

func setText(dst, src *string) {
	if src != nil {
		*dst = *src
	}
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := scheduling.ParseDate(raw, time.UTC)
	if err != nil {
		return time.Time{}, apperr.Validation("%s: %v", field, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
