package patients

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
)

var patientRowColumns = []string{
	"id", "tenant_id", "pet_name", "species", "breed", "color", "gender", "date_of_birth", "chip_number", "weight_kg",
	"owner_first_name", "owner_last_name", "owner_email", "owner_phone", "owner_address",
	"medical_history", "allergies", "special_notes", "created_at", "updated_at",
}

func TestPostgresRepositoryGetScopesByTenant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM patients WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs("p-1", "tenant-1").
		WillReturnRows(pgxmock.NewRows(patientRowColumns).AddRow(
			"p-1", "tenant-1", "Rex", "dog", "", "", "male", nil, "", nil,
			"Ana", "Smith", "ana@example.com", "5551234567", "",
			"", "", "", now, now,
		))

	repo := NewPostgresRepositoryWithDB(mock)
	p, err := repo.Get(context.Background(), "tenant-1", "p-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.PetName != "Rex" || p.OwnerEmail != "ana@example.com" {
		t.Errorf("unexpected patient %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepositoryGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`FROM patients WHERE id`).
		WithArgs("p-2", "tenant-1").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewPostgresRepositoryWithDB(mock).Get(context.Background(), "tenant-1", "p-2")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresRepositoryDeleteMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM patients WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs("p-9", "tenant-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = NewPostgresRepositoryWithDB(mock).Delete(context.Background(), "tenant-1", "p-9")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresRepositoryMalformedIDIsNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	badUUID := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "x"`}
	mock.ExpectQuery(`FROM patients WHERE id`).
		WithArgs("x", "tenant-1").
		WillReturnError(badUUID)
	mock.ExpectExec(`DELETE FROM patients`).
		WithArgs("x", "tenant-1").
		WillReturnError(badUUID)

	repo := NewPostgresRepositoryWithDB(mock)
	if _, err := repo.Get(context.Background(), "tenant-1", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get: expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(context.Background(), "tenant-1", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete: expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepositoryListWithSearch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`FROM patients WHERE tenant_id = \$1 AND \(pet_name ILIKE \$2 .* LIMIT \$3 OFFSET \$4`).
		WithArgs("tenant-1", "%rex%", 10, 0).
		WillReturnRows(pgxmock.NewRows(patientRowColumns))

	list, err := NewPostgresRepositoryWithDB(mock).List(context.Background(), "tenant-1", ListFilter{Limit: 10, Search: "rex"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
