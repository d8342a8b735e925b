package patients

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/vetclinic-platform/internal/database"
)

const patientColumns = `id, tenant_id, pet_name, species, breed, color, gender, date_of_birth, chip_number, weight_kg,
	owner_first_name, owner_last_name, owner_email, owner_phone, owner_address,
	medical_history, allergies, special_notes, created_at, updated_at`

// PostgresRepository stores patients in Postgres.
type PostgresRepository struct {
	db database.Querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting mocks for tests.
func NewPostgresRepositoryWithDB(db database.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *Patient) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, now(), now())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		p.ID, p.TenantID, p.PetName, p.Species, p.Breed, p.Color, p.Gender, p.DateOfBirth, p.ChipNumber, p.WeightKg,
		p.OwnerFirstName, p.OwnerLastName, p.OwnerEmail, p.OwnerPhone, p.OwnerAddress,
		p.MedicalHistory, p.Allergies, p.SpecialNotes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("patients: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, tenantID, id string) (*Patient, error) {
	row := r.db.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	p, err := scanPatient(row)
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patients: get: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context, tenantID string, filter ListFilter) ([]*Patient, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + patientColumns + ` FROM patients WHERE tenant_id = $1`
	args := []any{tenantID}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND (pet_name ILIKE $%d OR owner_first_name || ' ' || owner_last_name ILIKE $%d)", len(args), len(args))
	}
	args = append(args, limit, filter.Skip)
	query += fmt.Sprintf(" ORDER BY pet_name, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("patients: list: %w", err)
	}
	defer rows.Close()

	out := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("patients: list scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, p *Patient) error {
	query := `
		UPDATE patients SET
			pet_name = $3, species = $4, breed = $5, color = $6, gender = $7, date_of_birth = $8,
			chip_number = $9, weight_kg = $10, owner_first_name = $11, owner_last_name = $12,
			owner_email = $13, owner_phone = $14, owner_address = $15, medical_history = $16,
			allergies = $17, special_notes = $18, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at
	`
	var updated time.Time
	err := r.db.QueryRow(ctx, query,
		p.ID, p.TenantID, p.PetName, p.Species, p.Breed, p.Color, p.Gender, p.DateOfBirth,
		p.ChipNumber, p.WeightKg, p.OwnerFirstName, p.OwnerLastName,
		p.OwnerEmail, p.OwnerPhone, p.OwnerAddress, p.MedicalHistory,
		p.Allergies, p.SpecialNotes,
	).Scan(&updated)
	if database.IsNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("patients: update: %w", err)
	}
	p.UpdatedAt = updated
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, tenantID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM patients WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if database.IsInvalidID(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("patients: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.TenantID, &p.PetName, &p.Species, &p.Breed, &p.Color, &p.Gender, &p.DateOfBirth, &p.ChipNumber, &p.WeightKg,
		&p.OwnerFirstName, &p.OwnerLastName, &p.OwnerEmail, &p.OwnerPhone, &p.OwnerAddress,
		&p.MedicalHistory, &p.Allergies, &p.SpecialNotes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
