// Package waitlist tracks patients waiting for a slot on a given day.
package waitlist

import (
	"strings"
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
)

// Contact preferences.
const (
	ContactEmail = "email"
	ContactPhone = "phone"
	ContactSMS   = "sms"
)

// Entry is one patient waiting for a day. Higher Priority is served first;
// ties go to the earliest entry.
type Entry struct {
	ID                 string     `json:"id"`
	TenantID           string     `json:"tenant_id"`
	PatientID          string     `json:"patient_id"`
	DesiredDate        time.Time  `json:"desired_date"`
	PreferredTimeStart *time.Time `json:"preferred_time_start,omitempty"`
	PreferredTimeEnd   *time.Time `json:"preferred_time_end,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	ContactPreference  string     `json:"contact_preference,omitempty"`
	Priority           int        `json:"priority"`
	IsActive           bool       `json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
	NotifiedAt         *time.Time `json:"notified_at,omitempty"`
	FulfilledAt        *time.Time `json:"fulfilled_at,omitempty"`
}

// AddInput is a new waitlist entry.
type AddInput struct {
	PatientID          string
	DesiredDate        time.Time
	PreferredTimeStart *time.Time
	PreferredTimeEnd   *time.Time
	Notes              string
	ContactPreference  string
	Priority           int
}

// UpdateInput is a partial update.
type UpdateInput struct {
	DesiredDate        *time.Time
	PreferredTimeStart *time.Time
	PreferredTimeEnd   *time.Time
	Notes              *string
	ContactPreference  *string
	Priority           *int
	IsActive           *bool
}

// ListFilter narrows List.
type ListFilter struct {
	ActiveOnly bool
	PatientID  string
}

func (f ListFilter) matches(e *Entry) bool {
	if f.ActiveOnly && !e.IsActive {
		return false
	}
	return f.PatientID == "" || e.PatientID == f.PatientID
}

func normalizeContact(raw string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "", ContactEmail, ContactPhone, ContactSMS:
		return v, nil
	default:
		return "", apperr.Validation("contact preference must be 'email', 'phone', or 'sms'")
	}
}

func (e *Entry) validateWindow() error {
	if e.PreferredTimeStart != nil && e.PreferredTimeEnd != nil && !e.PreferredTimeEnd.After(*e.PreferredTimeStart) {
		return apperr.Validation("preferred_time_end must be after preferred_time_start")
	}
	return nil
}

// wantsEmail reports whether the patient can be reached by email.
func (e *Entry) wantsEmail() bool {
	return e.ContactPreference == "" || e.ContactPreference == ContactEmail
}
