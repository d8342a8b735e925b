package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/database"
)

// ErrNotConnected is returned when a tenant has not authorized calendar access.
var ErrNotConnected = apperr.Validation("Google Calendar not connected. Please authorize first.")

// TokenStore keeps one OAuth token per tenant.
type TokenStore interface {
	Save(ctx context.Context, tenantID string, tok *oauth2.Token) error
	Load(ctx context.Context, tenantID string) (*oauth2.Token, error)
	Delete(ctx context.Context, tenantID string) error
}

// InMemoryTokenStore is used in tests and local runs.
type InMemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]oauth2.Token
}

func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{tokens: make(map[string]oauth2.Token)}
}

func (s *InMemoryTokenStore) Save(ctx context.Context, tenantID string, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("calendar: nil token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tenantID] = *tok
	return nil
}

func (s *InMemoryTokenStore) Load(ctx context.Context, tenantID string) (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[tenantID]
	if !ok {
		return nil, ErrNotConnected
	}
	return &tok, nil
}

func (s *InMemoryTokenStore) Delete(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, tenantID)
	return nil
}

// PostgresTokenStore persists tokens in calendar_credentials.
type PostgresTokenStore struct {
	db database.Querier
}

func NewPostgresTokenStore(pool *pgxpool.Pool) *PostgresTokenStore {
	if pool == nil {
		panic("calendar: pgx pool required")
	}
	return &PostgresTokenStore{db: pool}
}

// NewPostgresTokenStoreWithDB allows injecting mocks for tests.
func NewPostgresTokenStoreWithDB(db database.Querier) *PostgresTokenStore {
	return &PostgresTokenStore{db: db}
}

func (s *PostgresTokenStore) Save(ctx context.Context, tenantID string, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("calendar: nil token")
	}
	var expiry *time.Time
	if !tok.Expiry.IsZero() {
		e := tok.Expiry.UTC()
		expiry = &e
	}
	query := `
		INSERT INTO calendar_credentials (tenant_id, access_token, refresh_token, token_type, expiry, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (tenant_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), calendar_credentials.refresh_token),
			token_type = EXCLUDED.token_type,
			expiry = EXCLUDED.expiry,
			updated_at = now()
	`
	if _, err := s.db.Exec(ctx, query, tenantID, tok.AccessToken, tok.RefreshToken, tok.TokenType, expiry); err != nil {
		return fmt.Errorf("calendar: save token: %w", err)
	}
	return nil
}

func (s *PostgresTokenStore) Load(ctx context.Context, tenantID string) (*oauth2.Token, error) {
	var (
		tok    oauth2.Token
		expiry *time.Time
	)
	err := s.db.QueryRow(ctx,
		`SELECT access_token, refresh_token, token_type, expiry FROM calendar_credentials WHERE tenant_id = $1`,
		tenantID,
	).Scan(&tok.AccessToken, &tok.RefreshToken, &tok.TokenType, &expiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("calendar: load token: %w", err)
	}
	if expiry != nil {
		tok.Expiry = *expiry
	}
	return &tok, nil
}

func (s *PostgresTokenStore) Delete(ctx context.Context, tenantID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM calendar_credentials WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("calendar: delete token: %w", err)
	}
	return nil
}
