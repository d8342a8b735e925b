package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/vetclinic-platform/internal/database"
)

const userColumns = `id, tenant_id, email, full_name, hashed_password, is_active, is_superuser, last_login_at,
	created_at, updated_at`

// PostgresRepository stores users in Postgres. The unique index on
// (tenant_id, email) backs ErrEmailTaken.
type PostgresRepository struct {
	db database.Querier
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("users: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting mocks for tests.
func NewPostgresRepositoryWithDB(db database.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		u.ID, u.TenantID, u.Email, u.FullName, u.HashedPassword, u.IsActive, u.IsSuperuser, u.LastLoginAt,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("users: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, tenantID, id string) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	u, err := scanUser(row)
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: get: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) List(ctx context.Context, tenantID string, skip, limit int) ([]*User, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 ORDER BY email LIMIT $2 OFFSET $3`,
		tenantID, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	out := []*User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: list scan: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, u *User) error {
	query := `
		UPDATE users SET
			email = $3, full_name = $4, hashed_password = $5, is_active = $6, is_superuser = $7,
			last_login_at = $8, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		u.ID, u.TenantID, u.Email, u.FullName, u.HashedPassword, u.IsActive, u.IsSuperuser, u.LastLoginAt,
	).Scan(&u.UpdatedAt)
	switch {
	case database.IsNotFound(err):
		return ErrNotFound
	case isUniqueViolation(err):
		return ErrEmailTaken
	case err != nil:
		return fmt.Errorf("users: update: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Count(ctx context.Context, tenantID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM users WHERE tenant_id = $1`, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("users: count: %w", err)
	}
	return n, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.TenantID, &u.Email, &u.FullName, &u.HashedPassword, &u.IsActive, &u.IsSuperuser, &u.LastLoginAt,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

var _ Repository = (*PostgresRepository)(nil)
