package stats

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/vetclinic-platform/internal/appointments"
	"github.com/wolfman30/vetclinic-platform/internal/database"
	"github.com/wolfman30/vetclinic-platform/internal/patients"
)

// Source produces the raw counts for a tenant.
type Source interface {
	Snapshot(ctx context.Context, tenantID string, w Windows) (Snapshot, error)
}

// PostgresSource aggregates in the database with one pass per table.
type PostgresSource struct {
	db database.Querier
}

func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	if pool == nil {
		panic("stats: pgx pool required")
	}
	return &PostgresSource{db: pool}
}

// NewPostgresSourceWithDB allows injecting mocks for tests.
func NewPostgresSourceWithDB(db database.Querier) *PostgresSource {
	return &PostgresSource{db: db}
}

const appointmentAggregate = `
	SELECT
		count(*),
		count(*) FILTER (WHERE status = 'scheduled'),
		count(*) FILTER (WHERE status = 'completed'),
		count(*) FILTER (WHERE status = 'cancelled'),
		count(*) FILTER (WHERE status = 'no_show'),
		count(*) FILTER (WHERE status = 'scheduled' AND appointment_time > $2),
		count(*) FILTER (WHERE appointment_time >= $3),
		count(*) FILTER (WHERE appointment_time >= $4),
		count(*) FILTER (WHERE appointment_time >= $5 AND appointment_time < $6),
		count(*) FILTER (WHERE status = 'completed' AND appointment_time >= $5 AND appointment_time < $6),
		count(*) FILTER (WHERE status = 'completed' AND appointment_time >= $3),
		avg(duration_minutes)::float8
	FROM appointments
	WHERE tenant_id = $1
`

const patientAggregate = `
	SELECT count(*), count(*) FILTER (WHERE created_at >= $2)
	FROM patients
	WHERE tenant_id = $1
`

func (s *PostgresSource) Snapshot(ctx context.Context, tenantID string, w Windows) (Snapshot, error) {
	var snap Snapshot
	err := s.db.QueryRow(ctx, appointmentAggregate,
		tenantID, w.Now, w.MonthStart.UTC(), w.WeekStart.UTC(), w.Today.Start.UTC(), w.Today.End.UTC(),
	).Scan(
		&snap.Total, &snap.Scheduled, &snap.Completed, &snap.Cancelled, &snap.NoShow, &snap.Upcoming,
		&snap.ThisMonth, &snap.ThisWeek, &snap.Today, &snap.TodayCompleted, &snap.CompletedThisMonth,
		&snap.AverageDuration,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("stats: appointment aggregate: %w", err)
	}
	err = s.db.QueryRow(ctx, patientAggregate, tenantID, w.MonthStart.UTC()).Scan(&snap.Patients, &snap.PatientsThisMonth)
	if err != nil {
		return Snapshot{}, fmt.Errorf("stats: patient aggregate: %w", err)
	}
	return snap, nil
}

// RepositorySource tallies in process from the repositories. Used with the
// in-memory stores.
type RepositorySource struct {
	appointments appointments.Store
	patients     patients.Repository
}

func NewRepositorySource(appts appointments.Store, pats patients.Repository) *RepositorySource {
	return &RepositorySource{appointments: appts, patients: pats}
}

// scanLimit bounds in-process tallies.
const scanLimit = 1 << 20

func (s *RepositorySource) Snapshot(ctx context.Context, tenantID string, w Windows) (Snapshot, error) {
	appts, err := s.appointments.List(ctx, tenantID, appointments.ListFilter{Limit: scanLimit})
	if err != nil {
		return Snapshot{}, fmt.Errorf("stats: list appointments: %w", err)
	}
	pats, err := s.patients.List(ctx, tenantID, patients.ListFilter{Limit: scanLimit})
	if err != nil {
		return Snapshot{}, fmt.Errorf("stats: list patients: %w", err)
	}
	return Tally(appts, pats, w), nil
}

// Tally computes a Snapshot from loaded rows.
func Tally(appts []*appointments.Appointment, pats []*patients.Patient, w Windows) Snapshot {
	var (
		snap     Snapshot
		duration int
	)
	for _, a := range appts {
		t := a.AppointmentTime
		snap.Total++
		duration += a.DurationMinutes
		switch a.Status {
		case appointments.StatusScheduled:
			snap.Scheduled++
			if t.After(w.Now) {
				snap.Upcoming++
			}
		case appointments.StatusCompleted:
			snap.Completed++
		case appointments.StatusCancelled:
			snap.Cancelled++
		case appointments.StatusNoShow:
			snap.NoShow++
		}
		completed := a.Status == appointments.StatusCompleted
		if !t.Before(w.MonthStart) {
			snap.ThisMonth++
			if completed {
				snap.CompletedThisMonth++
			}
		}
		if !t.Before(w.WeekStart) {
			snap.ThisWeek++
		}
		if !t.Before(w.Today.Start) && t.Before(w.Today.End) {
			snap.Today++
			if completed {
				snap.TodayCompleted++
			}
		}
	}
	if snap.Total > 0 {
		avg := float64(duration) / float64(snap.Total)
		snap.AverageDuration = &avg
	}
	for _, p := range pats {
		snap.Patients++
		if !p.CreatedAt.Before(w.MonthStart) {
			snap.PatientsThisMonth++
		}
	}
	return snap
}

var (
	_ Source = (*PostgresSource)(nil)
	_ Source = (*RepositorySource)(nil)
)
