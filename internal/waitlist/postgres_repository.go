package waitlist

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

const entryColumns = `id, tenant_id, patient_id, desired_date, preferred_time_start, preferred_time_end, notes,
	contact_preference, priority, is_active, created_at, notified_at, fulfilled_at`

// PostgresRepository persists waitlist entries.
type PostgresRepository struct {
	db database.Querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("waitlist: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting mocks for tests.
func NewPostgresRepositoryWithDB(db database.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	query := `
		INSERT INTO waitlist_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), NULL, NULL)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		e.ID, e.TenantID, e.PatientID, e.DesiredDate.UTC(), e.PreferredTimeStart, e.PreferredTimeEnd, e.Notes,
		e.ContactPreference, e.Priority, e.IsActive,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("waitlist: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, tenantID, id string) (*Entry, error) {
	row := r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM waitlist_entries WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	e, err := scanEntry(row)
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("waitlist: get: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) List(ctx context.Context, tenantID string, filter ListFilter) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM waitlist_entries WHERE tenant_id = $1`
	args := []any{tenantID}
	if filter.ActiveOnly {
		query += " AND is_active"
	}
	if filter.PatientID != "" {
		args = append(args, filter.PatientID)
		query += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	query += " ORDER BY priority DESC, created_at ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if database.IsInvalidID(err) {
		return []*Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("waitlist: list: %w", err)
	}
	defer rows.Close()

	out := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("waitlist: list scan: %w", err)
		}
		out = append(out, e)
	}
	// A patient_id filter that is not a uuid matches nothing.
	if err := rows.Err(); err != nil {
		if database.IsInvalidID(err) {
			return []*Entry{}, nil
		}
		return nil, fmt.Errorf("waitlist: list: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Update(ctx context.Context, e *Entry) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE waitlist_entries SET
			desired_date = $3, preferred_time_start = $4, preferred_time_end = $5, notes = $6,
			contact_preference = $7, priority = $8, is_active = $9, fulfilled_at = $10
		WHERE id = $1 AND tenant_id = $2
	`, e.ID, e.TenantID, e.DesiredDate.UTC(), e.PreferredTimeStart, e.PreferredTimeEnd, e.Notes,
		e.ContactPreference, e.Priority, e.IsActive, e.FulfilledAt)
	if database.IsInvalidID(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("waitlist: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) HasActiveForDay(ctx context.Context, tenantID, patientID string, day scheduling.Interval) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM waitlist_entries
			WHERE tenant_id = $1 AND patient_id = $2 AND is_active
			  AND desired_date >= $3 AND desired_date < $4
		)
	`, tenantID, patientID, day.Start.UTC(), day.End.UTC()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("waitlist: active for day: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) NextForDay(ctx context.Context, tenantID string, day scheduling.Interval) (*Entry, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM waitlist_entries
		WHERE tenant_id = $1 AND is_active AND notified_at IS NULL
		  AND desired_date >= $2 AND desired_date < $3
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
	`, tenantID, day.Start.UTC(), day.End.UTC())
	e, err := scanEntry(row)
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("waitlist: next for day: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) MarkNotified(ctx context.Context, tenantID, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE waitlist_entries SET notified_at = $3 WHERE id = $1 AND tenant_id = $2`,
		id, tenantID, at.UTC(),
	)
	if database.IsInvalidID(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("waitlist: mark notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.TenantID, &e.PatientID, &e.DesiredDate, &e.PreferredTimeStart, &e.PreferredTimeEnd, &e.Notes,
		&e.ContactPreference, &e.Priority, &e.IsActive, &e.CreatedAt, &e.NotifiedAt, &e.FulfilledAt,
	)
	if err != nil {
		return nil, err
	}
	e.DesiredDate = e.DesiredDate.UTC()
	return &e, nil
}

var _ Repository = (*PostgresRepository)(nil)
