package treatments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
)

var ErrNotFound = apperr.NotFound("treatment")

// Repository stores treatments, scoped by tenant.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	Get(ctx context.Context, tenantID, id string) (*Record, error)
	// ListByPatient returns the most recent treatment first.
	ListByPatient(ctx context.Context, tenantID, patientID string) ([]*Record, error)
	Update(ctx context.Context, r *Record) error
	Delete(ctx context.Context, tenantID, id string) error
}

// InMemoryRepository keeps treatments in a map.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{records: make(map[string]*Record)}
}

func (m *InMemoryRepository) Create(ctx context.Context, r *Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *InMemoryRepository) Get(ctx context.Context, tenantID, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok || r.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *InMemoryRepository) ListByPatient(ctx context.Context, tenantID, patientID string) ([]*Record, error) {
	m.mu.RLock()
	out := []*Record{}
	for _, r := range m.records {
		if r.TenantID == tenantID && r.PatientID == patientID {
			cp := *r
			out = append(out, &cp)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TreatmentDate.After(out[j].TreatmentDate) })
	return out, nil
}

func (m *InMemoryRepository) Update(ctx context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.records[r.ID]
	if !ok || existing.TenantID != r.TenantID {
		return ErrNotFound
	}
	r.UpdatedAt = time.Now().UTC()
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *InMemoryRepository) Delete(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.TenantID != tenantID {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
