package waitlist

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
)

// ErrNotFound is returned for missing entries and entries owned by another
// tenant.
var ErrNotFound = apperr.NotFound("waitlist entry")

// Repository stores waitlist entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	Get(ctx context.Context, tenantID, id string) (*Entry, error)
	// List orders by priority descending, then creation time.
	List(ctx context.Context, tenantID string, filter ListFilter) ([]*Entry, error)
	Update(ctx context.Context, e *Entry) error
	// HasActiveForDay reports whether the patient already waits for a
	// desired date inside day.
	HasActiveForDay(ctx context.Context, tenantID, patientID string, day scheduling.Interval) (bool, error)
	// NextForDay returns the best active entry for day that has not been
	// notified yet, or nil.
	NextForDay(ctx context.Context, tenantID string, day scheduling.Interval) (*Entry, error)
	MarkNotified(ctx context.Context, tenantID, id string, at time.Time) error
}

// InMemoryRepository is a process-local Repository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	seq     int64
	created map[string]int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{entries: make(map[string]*Entry), created: make(map[string]int64)}
}

func (r *InMemoryRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.created[e.ID] = r.seq
	cp := *e
	r.entries[e.ID] = &cp
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, tenantID, id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || e.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *InMemoryRepository) List(ctx context.Context, tenantID string, filter ListFilter) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Entry{}
	for _, e := range r.entries {
		if e.TenantID == tenantID && filter.matches(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	r.sort(out)
	return out, nil
}

// sort orders by priority, then insertion order. Callers hold mu.
func (r *InMemoryRepository) sort(list []*Entry) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority > list[j].Priority
		}
		return r.created[list[i].ID] < r.created[list[j].ID]
	})
}

func (r *InMemoryRepository) Update(ctx context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.entries[e.ID]
	if !ok || existing.TenantID != e.TenantID {
		return ErrNotFound
	}
	cp := *e
	r.entries[e.ID] = &cp
	return nil
}

func (r *InMemoryRepository) HasActiveForDay(ctx context.Context, tenantID, patientID string, day scheduling.Interval) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.PatientID == patientID && e.IsActive && inDay(e.DesiredDate, day) {
			return true, nil
		}
	}
	return false, nil
}

func (r *InMemoryRepository) NextForDay(ctx context.Context, tenantID string, day scheduling.Interval) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var candidates []*Entry
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.IsActive && e.NotifiedAt == nil && inDay(e.DesiredDate, day) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	r.sort(candidates)
	cp := *candidates[0]
	return &cp, nil
}

func (r *InMemoryRepository) MarkNotified(ctx context.Context, tenantID, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.TenantID != tenantID {
		return ErrNotFound
	}
	stamp := at.UTC()
	e.NotifiedAt = &stamp
	return nil
}

func inDay(t time.Time, day scheduling.Interval) bool {
	return !t.Before(day.Start) && t.Before(day.End)
}

var _ Repository = (*InMemoryRepository)(nil)
