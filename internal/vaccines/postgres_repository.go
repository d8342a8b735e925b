package vaccines

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/vetclinic-platform/internal/database"
)

const recordColumns = `id, tenant_id, patient_id, vaccine_name, vaccine_type, manufacturer, batch_number, date_given,
	next_due_date, veterinarian_name, dosage, administration_route, notes, adverse_reactions, created_at, updated_at`

// PostgresRepository stores vaccine records in Postgres.
type PostgresRepository struct {
	db database.Querier
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("vaccines: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting mocks for tests.
func NewPostgresRepositoryWithDB(db database.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (p *PostgresRepository) Create(ctx context.Context, r *Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	query := `
		INSERT INTO vaccines (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		RETURNING created_at, updated_at
	`
	err := p.db.QueryRow(ctx, query,
		r.ID, r.TenantID, r.PatientID, r.VaccineName, r.VaccineType, r.Manufacturer, r.BatchNumber, r.DateGiven,
		r.NextDueDate, r.VeterinarianName, r.Dosage, r.AdministrationRoute, r.Notes, r.AdverseReactions,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("vaccines: insert: %w", err)
	}
	return nil
}

func (p *PostgresRepository) Get(ctx context.Context, tenantID, id string) (*Record, error) {
	row := p.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM vaccines WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	r, err := scanRecord(row)
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("vaccines: get: %w", err)
	}
	return r, nil
}

func (p *PostgresRepository) ListByPatient(ctx context.Context, tenantID, patientID string) ([]*Record, error) {
	return p.query(ctx, "list",
		`SELECT `+recordColumns+` FROM vaccines WHERE tenant_id = $1 AND patient_id = $2 ORDER BY date_given DESC`,
		tenantID, patientID)
}

func (p *PostgresRepository) Update(ctx context.Context, r *Record) error {
	query := `
		UPDATE vaccines SET
			vaccine_name = $3, vaccine_type = $4, manufacturer = $5, batch_number = $6, date_given = $7,
			next_due_date = $8, veterinarian_name = $9, dosage = $10, administration_route = $11, notes = $12,
			adverse_reactions = $13, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at
	`
	err := p.db.QueryRow(ctx, query,
		r.ID, r.TenantID, r.VaccineName, r.VaccineType, r.Manufacturer, r.BatchNumber, r.DateGiven,
		r.NextDueDate, r.VeterinarianName, r.Dosage, r.AdministrationRoute, r.Notes, r.AdverseReactions,
	).Scan(&r.UpdatedAt)
	if database.IsNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("vaccines: update: %w", err)
	}
	return nil
}

func (p *PostgresRepository) Delete(ctx context.Context, tenantID, id string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM vaccines WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if database.IsInvalidID(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("vaccines: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresRepository) DueBetween(ctx context.Context, tenantID string, from, to time.Time) ([]*Record, error) {
	return p.query(ctx, "due",
		`SELECT `+recordColumns+` FROM vaccines
		WHERE tenant_id = $1 AND next_due_date >= $2 AND next_due_date <= $3
		ORDER BY next_due_date`,
		tenantID, from, to)
}

func (p *PostgresRepository) query(ctx context.Context, op, query string, args ...any) ([]*Record, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vaccines: %s: %w", op, err)
	}
	defer rows.Close()

	out := []*Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("vaccines: %s scan: %w", op, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(
		&r.ID, &r.TenantID, &r.PatientID, &r.VaccineName, &r.VaccineType, &r.Manufacturer, &r.BatchNumber, &r.DateGiven,
		&r.NextDueDate, &r.VeterinarianName, &r.Dosage, &r.AdministrationRoute, &r.Notes, &r.AdverseReactions,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

var _ Repository = (*PostgresRepository)(nil)
