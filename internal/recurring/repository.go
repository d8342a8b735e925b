package recurring

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
)

// ErrNotFound is returned for missing templates and templates owned by
// another tenant.
var ErrNotFound = apperr.NotFound("recurring appointment")

// Repository stores recurring templates.
type Repository interface {
	Create(ctx context.Context, t *Template) error
	Get(ctx context.Context, tenantID, id string) (*Template, error)
	List(ctx context.Context, tenantID string, filter ListFilter) ([]*Template, error)
	Update(ctx context.Context, t *Template) error
	SetLastGenerated(ctx context.Context, tenantID, id string, at time.Time) error
	// ListAllActive returns active templates across tenants for the
	// background expander.
	ListAllActive(ctx context.Context) ([]*Template, error)
}

// InMemoryRepository is a process-local Repository.
type InMemoryRepository struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{templates: make(map[string]*Template)}
}

func (r *InMemoryRepository) Create(ctx context.Context, t *Template) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.templates[t.ID] = &cp
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, tenantID, id string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok || t.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *InMemoryRepository) List(ctx context.Context, tenantID string, filter ListFilter) ([]*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Template{}
	for _, t := range r.templates {
		if t.TenantID == tenantID && filter.matches(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sortTemplates(out)
	return out, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, t *Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.templates[t.ID]
	if !ok || existing.TenantID != t.TenantID {
		return ErrNotFound
	}
	cp := *t
	r.templates[t.ID] = &cp
	return nil
}

func (r *InMemoryRepository) SetLastGenerated(ctx context.Context, tenantID, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok || t.TenantID != tenantID {
		return ErrNotFound
	}
	stamp := at.UTC()
	t.LastGenerated = &stamp
	return nil
}

func (r *InMemoryRepository) ListAllActive(ctx context.Context) ([]*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Template{}
	for _, t := range r.templates {
		if t.IsActive {
			cp := *t
			out = append(out, &cp)
		}
	}
	sortTemplates(out)
	return out, nil
}

func sortTemplates(list []*Template) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartDate.Equal(list[j].StartDate) {
			return list[i].ID < list[j].ID
		}
		return list[i].StartDate.Before(list[j].StartDate)
	})
}

var _ Repository = (*InMemoryRepository)(nil)
