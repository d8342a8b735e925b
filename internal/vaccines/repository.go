package vaccines

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
)

var ErrNotFound = apperr.NotFound("vaccine record")

// Repository stores vaccine records, scoped by tenant.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	Get(ctx context.Context, tenantID, id string) (*Record, error)
	// ListByPatient returns newest vaccinations first.
	ListByPatient(ctx context.Context, tenantID, patientID string) ([]*Record, error)
	Update(ctx context.Context, r *Record) error
	Delete(ctx context.Context, tenantID, id string) error
	// DueBetween lists records whose next due date is in [from, to],
	// soonest first.
	DueBetween(ctx context.Context, tenantID string, from, to time.Time) ([]*Record, error)
}

// InMemoryRepository keeps records in a map.
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
	out := m.filter(func(r *Record) bool { return r.TenantID == tenantID && r.PatientID == patientID })
	sort.Slice(out, func(i, j int) bool { return out[i].DateGiven.After(out[j].DateGiven) })
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

func (m *InMemoryRepository) DueBetween(ctx context.Context, tenantID string, from, to time.Time) ([]*Record, error) {
	out := m.filter(func(r *Record) bool {
		return r.TenantID == tenantID && r.NextDueDate != nil && !r.NextDueDate.Before(from) && !r.NextDueDate.After(to)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].NextDueDate.Before(*out[j].NextDueDate) })
	return out, nil
}

func (m *InMemoryRepository) filter(keep func(*Record) bool) []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Record{}
	for _, r := range m.records {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

var _ Repository = (*InMemoryRepository)(nil)
