package tenants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
)

const tenantColumns = `id, name, subdomain, timezone, closed_weekdays, COALESCE(calendar_id, ''), is_active, created_at`

// Store persists tenants through database/sql.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("tenants: sql db required")
	}
	return &Store{db: db}
}

// GetBySubdomain returns the active tenant for a subdomain.
func (s *Store) GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+tenantColumns+`
		FROM tenants WHERE subdomain = $1 AND is_active = TRUE`, NormalizeSubdomain(subdomain))
	t, err := scanTenant(row)
	if err != nil {
		return nil, fmt.Errorf("tenants: get by subdomain: %w", err)
	}
	return t, nil
}

// Get returns an active tenant by id.
func (s *Store) Get(ctx context.Context, id string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+tenantColumns+`
		FROM tenants WHERE id = $1 AND is_active = TRUE`, id)
	t, err := scanTenant(row)
	if err != nil {
		return nil, fmt.Errorf("tenants: get: %w", err)
	}
	return t, nil
}

// ListActive returns every active tenant ordered by name.
func (s *Store) ListActive(ctx context.Context) ([]*Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tenantColumns+`
		FROM tenants WHERE is_active = TRUE ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("tenants: list: %w", err)
	}
	defer rows.Close()

	var out []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("tenants: list scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Create inserts a tenant, assigning id and created_at when empty.
func (s *Store) Create(ctx context.Context, t *Tenant) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Timezone == "" {
		t.Timezone = "UTC"
	}
	t.Subdomain = NormalizeSubdomain(t.Subdomain)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, subdomain, timezone, closed_weekdays, calendar_id, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`,
		t.ID, t.Name, t.Subdomain, t.Timezone, pq.Array(t.ClosedWeekdays), t.CalendarID, t.IsActive, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("tenants: create: %w", err)
	}
	return nil
}

// SetCalendarID records the Google calendar events are written to.
func (s *Store) SetCalendarID(ctx context.Context, id, calendarID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tenants SET calendar_id = NULLIF($2, '') WHERE id = $1`, id, calendarID)
	if err != nil {
		return fmt.Errorf("tenants: set calendar: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Subdomain, &t.Timezone, pq.Array(&t.ClosedWeekdays), &t.CalendarID, &t.IsActive, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// BusinessHours resolves the tenant's operating window for scheduling.
func (s *Store) BusinessHours(ctx context.Context, tenantID string) (scheduling.BusinessHours, error) {
	t, err := s.Get(ctx, tenantID)
	if err != nil {
		return scheduling.BusinessHours{}, err
	}
	return t.BusinessHours(), nil
}

// ClinicName resolves the display name used in owner emails.
func (s *Store) ClinicName(ctx context.Context, tenantID string) (string, error) {
	t, err := s.Get(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return t.Name, nil
}
