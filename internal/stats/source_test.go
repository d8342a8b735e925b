package stats

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
)

func TestPostgresSourceSnapshot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	w := WindowsAt(baseNow, time.UTC)
	avg := 37.5
	mock.ExpectQuery(`FROM appointments\s+WHERE tenant_id = \$1`).
		WithArgs("tenant-a", w.Now, w.MonthStart, w.WeekStart, w.Today.Start, w.Today.End).
		WillReturnRows(pgxmock.NewRows([]string{
			"total", "scheduled", "completed", "cancelled", "no_show", "upcoming",
			"this_month", "this_week", "today", "today_completed", "completed_this_month", "avg",
		}).AddRow(6, 2, 2, 1, 1, 1, 5, 4, 3, 1, 1, &avg))
	mock.ExpectQuery(`FROM patients\s+WHERE tenant_id = \$1`).
		WithArgs("tenant-a", w.MonthStart).
		WillReturnRows(pgxmock.NewRows([]string{"total", "this_month"}).AddRow(2, 1))

	snap, err := NewPostgresSourceWithDB(mock).Snapshot(context.Background(), "tenant-a", w)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.Total != 6 || snap.Today != 3 || snap.Patients != 2 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.AverageDuration == nil || *snap.AverageDuration != 37.5 {
		t.Errorf("unexpected average %v", snap.AverageDuration)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresSourceNoAppointments(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	w := WindowsAt(baseNow, time.UTC)
	mock.ExpectQuery(`FROM appointments`).
		WillReturnRows(pgxmock.NewRows([]string{
			"total", "scheduled", "completed", "cancelled", "no_show", "upcoming",
			"this_month", "this_week", "today", "today_completed", "completed_this_month", "avg",
		}).AddRow(0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, nil))
	mock.ExpectQuery(`FROM patients`).
		WillReturnRows(pgxmock.NewRows([]string{"total", "this_month"}).AddRow(0, 0))

	snap, err := NewPostgresSourceWithDB(mock).Snapshot(context.Background(), "tenant-a", w)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.AverageDuration != nil {
		t.Errorf("expected nil average, got %v", *snap.AverageDuration)
	}
	if got := snap.appointmentStats().NoShowRate; got != 0 {
		t.Errorf("no_show_rate = %v, want 0", got)
	}
}
