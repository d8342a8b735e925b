package patients

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
)

// ErrNotFound is returned for missing patients and for patients owned by
// another tenant.
var ErrNotFound = apperr.NotFound("patient")

// ListFilter narrows a patient listing.
type ListFilter struct {
	Skip   int
	Limit  int
	Search string
}

// Repository stores patients. Every method is scoped by tenant.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	Get(ctx context.Context, tenantID, id string) (*Patient, error)
	List(ctx context.Context, tenantID string, filter ListFilter) ([]*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, tenantID, id string) error
}

// InMemoryRepository keeps patients in a map. Used by tests and local runs
// without a database.
type InMemoryRepository struct {
	mu       sync.RWMutex
	patients map[string]*Patient
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{patients: make(map[string]*Patient)}
}

func (r *InMemoryRepository) Create(ctx context.Context, p *Patient) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt, p.UpdatedAt = now, now

	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, tenantID, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok || p.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *InMemoryRepository) List(ctx context.Context, tenantID string, filter ListFilter) ([]*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	var out []*Patient
	for _, p := range r.patients {
		if p.TenantID != tenantID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.PetName+" "+p.OwnerFullName()), search) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PetName != out[j].PetName {
			return out[i].PetName < out[j].PetName
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, filter.Skip, filter.Limit), nil
}

func (r *InMemoryRepository) Update(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.patients[p.ID]
	if !ok || existing.TenantID != p.TenantID {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.patients[id]
	if !ok || existing.TenantID != tenantID {
		return ErrNotFound
	}
	delete(r.patients, id)
	return nil
}

func paginate[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
