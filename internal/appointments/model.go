package appointments

import (
	"strings"
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
)

// DefaultDurationMinutes applies when a booking omits a duration.
const DefaultDurationMinutes = 30

// Appointment is a booked visit for one patient. AppointmentTime is stored
// in UTC.
type Appointment struct {
	ID                     string     `json:"id"`
	TenantID               string     `json:"tenant_id"`
	PatientID              string     `json:"patient_id"`
	AppointmentTime        time.Time  `json:"appointment_time"`
	DurationMinutes        int        `json:"duration_minutes"`
	Status                 Status     `json:"status"`
	Notes                  string     `json:"notes,omitempty"`
	Diagnosis              string     `json:"diagnosis,omitempty"`
	MedicineGiven          string     `json:"medicine_given,omitempty"`
	RecurringAppointmentID *string    `json:"recurring_appointment_id,omitempty"`
	CalendarEventID        *string    `json:"calendar_event_id,omitempty"`
	ReminderSentAt         *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// End is when the appointment finishes.
func (a *Appointment) End() time.Time {
	return a.AppointmentTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Interval is the half-open slot the appointment occupies.
func (a *Appointment) Interval() scheduling.Interval {
	return scheduling.NewInterval(a.AppointmentTime, a.DurationMinutes)
}

// CreateInput is a new booking.
type CreateInput struct {
	PatientID       string
	AppointmentTime time.Time
	DurationMinutes int
	Notes           string
	Diagnosis       string
	MedicineGiven   string
}

func (in *CreateInput) normalize() error {
	in.PatientID = strings.TrimSpace(in.PatientID)
	if in.PatientID == "" {
		return apperr.Validation("patient_id is required")
	}
	if in.AppointmentTime.IsZero() {
		return apperr.Validation("appointment_time is required")
	}
	if in.DurationMinutes == 0 {
		in.DurationMinutes = DefaultDurationMinutes
	}
	if in.DurationMinutes < 0 {
		return apperr.Validation("duration_minutes must be positive")
	}
	in.AppointmentTime = in.AppointmentTime.UTC()
	return nil
}

// UpdateInput is a partial update. Nil fields are left alone.
type UpdateInput struct {
	AppointmentTime *time.Time
	DurationMinutes *int
	Status          *Status
	Notes           *string
	Diagnosis       *string
	MedicineGiven   *string
}

// reschedules reports whether the update touches the slot.
func (in UpdateInput) reschedules() bool {
	return in.AppointmentTime != nil || in.DurationMinutes != nil
}

// ListFilter narrows List. From is inclusive and To exclusive.
type ListFilter struct {
	Skip      int
	Limit     int
	PatientID string
	Status    Status
	From      *time.Time
	To        *time.Time
}

func (f ListFilter) matches(a *Appointment) bool {
	if f.PatientID != "" && a.PatientID != f.PatientID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.From != nil && a.AppointmentTime.Before(*f.From) {
		return false
	}
	if f.To != nil && !a.AppointmentTime.Before(*f.To) {
		return false
	}
	return true
}
