package treatments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/vetclinic-platform/internal/database"
)

const treatmentColumns = `id, tenant_id, patient_id, treatment_type, treatment_name, treatment_date, follow_up_date,
	diagnosis, symptoms, treatment_plan, medications_prescribed, medication_instructions, veterinarian_name,
	cost, notes, outcome, created_at, updated_at`

// PostgresRepository stores treatments in Postgres.
type PostgresRepository struct {
	db database.Querier
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("treatments: pgx pool required")
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
		INSERT INTO treatments (` + treatmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now(), now())
		RETURNING created_at, updated_at
	`
	err := p.db.QueryRow(ctx, query,
		r.ID, r.TenantID, r.PatientID, r.TreatmentType, r.TreatmentName, r.TreatmentDate, r.FollowUpDate,
		r.Diagnosis, r.Symptoms, r.TreatmentPlan, r.MedicationsPrescribed, r.MedicationInstructions, r.VeterinarianName,
		r.Cost, r.Notes, r.Outcome,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("treatments: insert: %w", err)
	}
	return nil
}

func (p *PostgresRepository) Get(ctx context.Context, tenantID, id string) (*Record, error) {
	row := p.db.QueryRow(ctx, `SELECT `+treatmentColumns+` FROM treatments WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	r, err := scanRecord(row)
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("treatments: get: %w", err)
	}
	return r, nil
}

func (p *PostgresRepository) ListByPatient(ctx context.Context, tenantID, patientID string) ([]*Record, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+treatmentColumns+` FROM treatments WHERE tenant_id = $1 AND patient_id = $2 ORDER BY treatment_date DESC`,
		tenantID, patientID)
	if err != nil {
		return nil, fmt.Errorf("treatments: list: %w", err)
	}
	defer rows.Close()

	out := []*Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("treatments: list scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresRepository) Update(ctx context.Context, r *Record) error {
	query := `
		UPDATE treatments SET
			treatment_type = $3, treatment_name = $4, treatment_date = $5, follow_up_date = $6, diagnosis = $7,
			symptoms = $8, treatment_plan = $9, medications_prescribed = $10, medication_instructions = $11,
			veterinarian_name = $12, cost = $13, notes = $14, outcome = $15, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at
	`
	err := p.db.QueryRow(ctx, query,
		r.ID, r.TenantID, r.TreatmentType, r.TreatmentName, r.TreatmentDate, r.FollowUpDate, r.Diagnosis,
		r.Symptoms, r.TreatmentPlan, r.MedicationsPrescribed, r.MedicationInstructions,
		r.VeterinarianName, r.Cost, r.Notes, r.Outcome,
	).Scan(&r.UpdatedAt)
	if database.IsNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("treatments: update: %w", err)
	}
	return nil
}

func (p *PostgresRepository) Delete(ctx context.Context, tenantID, id string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM treatments WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if database.IsInvalidID(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("treatments: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(
		&r.ID, &r.TenantID, &r.PatientID, &r.TreatmentType, &r.TreatmentName, &r.TreatmentDate, &r.FollowUpDate,
		&r.Diagnosis, &r.Symptoms, &r.TreatmentPlan, &r.MedicationsPrescribed, &r.MedicationInstructions,
		&r.VeterinarianName, &r.Cost, &r.Notes, &r.Outcome, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

var _ Repository = (*PostgresRepository)(nil)
