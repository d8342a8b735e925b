package vaccines

import (
	"errors"
	"testing"
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
)

func strPtr(s string) *string { return &s }

func TestRecordDue(t *testing.T) {
	today := time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)
	due := func(d time.Time) *Record { return &Record{NextDueDate: &d} }

	tests := []struct {
		name    string
		rec     *Record
		soon    bool
		overdue bool
		days    *int
	}{
		{"no due date", &Record{}, false, false, nil},
		{"due today", due(today), true, false, intPtr(0)},
		{"due in 30 days", due(today.AddDate(0, 0, 30)), true, false, intPtr(30)},
		{"due in 31 days", due(today.AddDate(0, 0, 31)), false, false, intPtr(31)},
		{"overdue", due(today.AddDate(0, 0, -1)), false, true, intPtr(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rec.Due(today)
			if got.IsDueSoon != tt.soon || got.IsOverdue != tt.overdue {
				t.Fatalf("Due() = %+v", got)
			}
			if (got.DaysUntilDue == nil) != (tt.days == nil) || (got.DaysUntilDue != nil && *got.DaysUntilDue != *tt.days) {
				t.Fatalf("days_until_due = %v, want %v", got.DaysUntilDue, tt.days)
			}
		})
	}
}

func intPtr(v int) *int { return &v }

func TestTodayUsesClinicZone(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skip("tzdata not available")
	}
	got := Today(time.Date(2030, 3, 2, 5, 0, 0, 0, time.UTC), loc)
	if !got.Equal(time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Today = %v", got)
	}
}

func TestNewRecordValidation(t *testing.T) {
	if _, err := NewRecord("t", "p", Input{VaccineName: strPtr("Rabies")}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("missing date_given: %v", err)
	}
	if _, err := NewRecord("t", "p", Input{VaccineName: strPtr("Rabies"), DateGiven: strPtr("yesterday")}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad date: %v", err)
	}
	_, err := NewRecord("t", "p", Input{VaccineName: strPtr("Rabies"), DateGiven: strPtr("2030-03-01"), NextDueDate: strPtr("2030-02-01")})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("due before given: %v", err)
	}

	rec, err := NewRecord("t", "p", Input{VaccineName: strPtr(" DHPP "), DateGiven: strPtr("2030-03-01"), NextDueDate: strPtr("2031-03-01"), Dosage: strPtr("1ml")})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	if rec.VaccineName != "DHPP" || rec.Dosage != "1ml" || rec.NextDueDate == nil || rec.NextDueDate.Year() != 2031 {
		t.Fatalf("unexpected record %+v", rec)
	}
}
