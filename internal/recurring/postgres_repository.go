package recurring

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

const templateColumns = `id, tenant_id, patient_id, pattern, "interval", start_date, end_date, time_of_day,
	duration_minutes, notes, is_active, last_generated, created_at`

// PostgresRepository stores templates in the recurring_appointments table.
type PostgresRepository struct {
	db database.Querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("recurring: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting mocks for tests.
func NewPostgresRepositoryWithDB(db database.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *Template) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	query := `
		INSERT INTO recurring_appointments (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		t.ID, t.TenantID, t.PatientID, string(t.Pattern), t.Interval, t.StartDate, t.EndDate, t.TimeOfDay,
		t.DurationMinutes, t.Notes, t.IsActive, t.LastGenerated,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("recurring: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, tenantID, id string) (*Template, error) {
	row := r.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM recurring_appointments WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	t, err := scanTemplate(row)
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("recurring: get: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) List(ctx context.Context, tenantID string, filter ListFilter) ([]*Template, error) {
	query := `SELECT ` + templateColumns + ` FROM recurring_appointments WHERE tenant_id = $1`
	args := []any{tenantID}
	if filter.ActiveOnly {
		query += " AND is_active"
	}
	if filter.PatientID != "" {
		args = append(args, filter.PatientID)
		query += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	query += " ORDER BY start_date, id"
	return r.query(ctx, "list", query, args...)
}

func (r *PostgresRepository) Update(ctx context.Context, t *Template) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE recurring_appointments SET
			pattern = $3, "interval" = $4, start_date = $5, end_date = $6, time_of_day = $7,
			duration_minutes = $8, notes = $9, is_active = $10
		WHERE id = $1 AND tenant_id = $2
	`, t.ID, t.TenantID, string(t.Pattern), t.Interval, t.StartDate, t.EndDate, t.TimeOfDay,
		t.DurationMinutes, t.Notes, t.IsActive)
	if database.IsInvalidID(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("recurring: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) SetLastGenerated(ctx context.Context, tenantID, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE recurring_appointments SET last_generated = $3 WHERE id = $1 AND tenant_id = $2`,
		id, tenantID, at.UTC(),
	)
	if database.IsInvalidID(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("recurring: set last generated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListAllActive(ctx context.Context) ([]*Template, error) {
	return r.query(ctx, "list active",
		`SELECT `+templateColumns+` FROM recurring_appointments WHERE is_active ORDER BY tenant_id, start_date, id`)
}

func (r *PostgresRepository) query(ctx context.Context, op, query string, args ...any) ([]*Template, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recurring: %s: %w", op, err)
	}
	defer rows.Close()

	out := []*Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("recurring: %s scan: %w", op, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTemplate(row pgx.Row) (*Template, error) {
	var (
		t       Template
		pattern string
	)
	err := row.Scan(
		&t.ID, &t.TenantID, &t.PatientID, &pattern, &t.Interval, &t.StartDate, &t.EndDate, &t.TimeOfDay,
		&t.DurationMinutes, &t.Notes, &t.IsActive, &t.LastGenerated, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Pattern = scheduling.Pattern(pattern)
	return &t, nil
}

var _ Repository = (*PostgresRepository)(nil)
