package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/vetclinic-platform/internal/database"
	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
)

const appointmentColumns = `id, tenant_id, patient_id, appointment_time, duration_minutes, status, notes, diagnosis,
	medicine_given, recurring_appointment_id, calendar_event_id, reminder_sent_at, created_at, updated_at`

// PostgresRepository persists appointments in Postgres. Writers for one
// tenant are serialized with a transaction-scoped advisory lock.
type PostgresRepository struct {
	db   database.Querier
	pool database.Pool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: pool, pool: pool}
}

// NewPostgresRepositoryWithDB allows injecting mocks for tests.
func NewPostgresRepositoryWithDB(db database.Pool) *PostgresRepository {
	return &PostgresRepository{db: db, pool: db}
}

func (r *PostgresRepository) WithTenantLock(ctx context.Context, tenantID string, fn func(Store) error) error {
	return database.WithTenantLock(ctx, r.pool, tenantID, func(q database.Querier) error {
		return fn(&PostgresRepository{db: q, pool: r.pool})
	})
}

func (r *PostgresRepository) Get(ctx context.Context, tenantID, id string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	a, err := scanAppointment(row)
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) List(ctx context.Context, tenantID string, filter ListFilter) ([]*Appointment, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE tenant_id = $1`
	args := []any{tenantID}
	if filter.PatientID != "" {
		args = append(args, filter.PatientID)
		query += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, filter.From.UTC())
		query += fmt.Sprintf(" AND appointment_time >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, filter.To.UTC())
		query += fmt.Sprintf(" AND appointment_time < $%d", len(args))
	}
	args = append(args, limit, filter.Skip)
	query += fmt.Sprintf(" ORDER BY appointment_time, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return r.query(ctx, "list", query, args...)
}

func (r *PostgresRepository) Insert(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		a.ID, a.TenantID, a.PatientID, a.AppointmentTime.UTC(), a.DurationMinutes, string(a.Status), a.Notes, a.Diagnosis,
		a.MedicineGiven, a.RecurringAppointmentID, a.CalendarEventID, a.ReminderSentAt,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("appointments: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, a *Appointment) error {
	query := `
		UPDATE appointments SET
			appointment_time = $3, duration_minutes = $4, status = $5, notes = $6, diagnosis = $7,
			medicine_given = $8, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at
	`
	var updated time.Time
	err := r.db.QueryRow(ctx, query,
		a.ID, a.TenantID, a.AppointmentTime.UTC(), a.DurationMinutes, string(a.Status), a.Notes, a.Diagnosis, a.MedicineGiven,
	).Scan(&updated)
	if database.IsNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("appointments: update: %w", err)
	}
	a.UpdatedAt = updated
	return nil
}

func (r *PostgresRepository) Overlapping(ctx context.Context, tenantID string, window scheduling.Interval, excludeID string) ([]*Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + ` FROM appointments
		WHERE tenant_id = $1
		  AND status <> 'cancelled'
		  AND appointment_time < $2
		  AND appointment_time + make_interval(mins => duration_minutes) > $3
		  AND ($4::text = '' OR id::text <> $4::text)
		ORDER BY appointment_time
	`
	return r.query(ctx, "overlapping", query, tenantID, window.End.UTC(), window.Start.UTC(), excludeID)
}

func (r *PostgresRepository) ExistsAt(ctx context.Context, tenantID, patientID string, t time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointments WHERE tenant_id = $1 AND patient_id = $2 AND appointment_time = $3)`,
		tenantID, patientID, t.UTC(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("appointments: exists: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) MarkReminderSent(ctx context.Context, tenantID, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE appointments SET reminder_sent_at = $3, updated_at = now() WHERE id = $1 AND tenant_id = $2`,
		id, tenantID, at.UTC(),
	)
	if database.IsInvalidID(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("appointments: mark reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) SetCalendarEventID(ctx context.Context, tenantID, id string, eventID *string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE appointments SET calendar_event_id = $3, updated_at = now() WHERE id = $1 AND tenant_id = $2`,
		id, tenantID, eventID,
	)
	if database.IsInvalidID(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("appointments: set calendar event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListDueReminders(ctx context.Context, from, to time.Time, limit int) ([]*Appointment, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `
		SELECT ` + appointmentColumns + ` FROM appointments
		WHERE status = 'scheduled'
		  AND reminder_sent_at IS NULL
		  AND appointment_time >= $1
		  AND appointment_time < $2
		ORDER BY appointment_time
		LIMIT $3
	`
	return r.query(ctx, "due reminders", query, from.UTC(), to.UTC(), limit)
}

func (r *PostgresRepository) query(ctx context.Context, op, query string, args ...any) ([]*Appointment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if database.IsInvalidID(err) {
		return []*Appointment{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: %s: %w", op, err)
	}
	defer rows.Close()

	out := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: %s scan: %w", op, err)
		}
		out = append(out, a)
	}
	// A patient_id filter that is not a uuid matches nothing.
	if err := rows.Err(); err != nil {
		if database.IsInvalidID(err) {
			return []*Appointment{}, nil
		}
		return nil, fmt.Errorf("appointments: %s: %w", op, err)
	}
	return out, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		status string
	)
	err := row.Scan(
		&a.ID, &a.TenantID, &a.PatientID, &a.AppointmentTime, &a.DurationMinutes, &status, &a.Notes, &a.Diagnosis,
		&a.MedicineGiven, &a.RecurringAppointmentID, &a.CalendarEventID, &a.ReminderSentAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.AppointmentTime = a.AppointmentTime.UTC()
	return &a, nil
}

var _ Repository = (*PostgresRepository)(nil)
