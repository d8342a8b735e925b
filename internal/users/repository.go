package users

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
)

var (
	ErrNotFound   = apperr.NotFound("user")
	ErrEmailTaken = apperr.Validation("email already registered")
)

// Repository stores users, scoped by tenant.
type Repository interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, tenantID, id string) (*User, error)
	List(ctx context.Context, tenantID string, skip, limit int) ([]*User, error)
	Update(ctx context.Context, u *User) error
	Count(ctx context.Context, tenantID string) (int, error)
}

// InMemoryRepository keeps users in a map.
type InMemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{users: make(map[string]*User)}
}

func (m *InMemoryRepository) Create(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailTaken(u) {
		return ErrEmailTaken
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

// emailTaken reports a clash with another user. Callers hold mu.
func (m *InMemoryRepository) emailTaken(u *User) bool {
	for _, other := range m.users {
		if other.TenantID == u.TenantID && other.ID != u.ID && other.Email == u.Email {
			return true
		}
	}
	return false
}

func (m *InMemoryRepository) Get(ctx context.Context, tenantID, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok || u.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *InMemoryRepository) List(ctx context.Context, tenantID string, skip, limit int) ([]*User, error) {
	m.mu.RLock()
	out := []*User{}
	for _, u := range m.users {
		if u.TenantID == tenantID {
			cp := *u
			out = append(out, &cp)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	if skip >= len(out) {
		return []*User{}, nil
	}
	out = out[skip:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *InMemoryRepository) Update(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[u.ID]
	if !ok || existing.TenantID != u.TenantID {
		return ErrNotFound
	}
	if m.emailTaken(u) {
		return ErrEmailTaken
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *InMemoryRepository) Count(ctx context.Context, tenantID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, u := range m.users {
		if u.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

var _ Repository = (*InMemoryRepository)(nil)
