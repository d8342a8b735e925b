package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
)

// ErrNotFound is returned for missing appointments and for appointments
// owned by another tenant.
var ErrNotFound = apperr.NotFound("appointment")

// Store is the data access the lifecycle operations need.
type Store interface {
	Get(ctx context.Context, tenantID, id string) (*Appointment, error)
	List(ctx context.Context, tenantID string, filter ListFilter) ([]*Appointment, error)
	Insert(ctx context.Context, a *Appointment) error
	Update(ctx context.Context, a *Appointment) error
	// Overlapping returns the tenant's slot-holding appointments that
	// intersect window, skipping excludeID.
	Overlapping(ctx context.Context, tenantID string, window scheduling.Interval, excludeID string) ([]*Appointment, error)
	// ExistsAt reports whether the patient already has an appointment
	// starting exactly at t, in any status.
	ExistsAt(ctx context.Context, tenantID, patientID string, t time.Time) (bool, error)
	MarkReminderSent(ctx context.Context, tenantID, id string, at time.Time) error
	SetCalendarEventID(ctx context.Context, tenantID, id string, eventID *string) error
}

// Repository is a Store that can serialize writers per tenant.
type Repository interface {
	Store
	// WithTenantLock runs fn while holding the tenant's booking lock. The
	// Store passed to fn must be used for every read and write inside.
	WithTenantLock(ctx context.Context, tenantID string, fn func(Store) error) error
	// ListDueReminders returns scheduled, un-reminded appointments across
	// all tenants starting in [from, to).
	ListDueReminders(ctx context.Context, from, to time.Time, limit int) ([]*Appointment, error)
}

// InMemoryRepository is a process-local Repository for tests and local runs.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*Appointment

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		items: make(map[string]*Appointment),
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *InMemoryRepository) tenantLock(tenantID string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[tenantID] = l
	}
	return l
}

func (r *InMemoryRepository) WithTenantLock(ctx context.Context, tenantID string, fn func(Store) error) error {
	l := r.tenantLock(tenantID)
	l.Lock()
	defer l.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(r)
}

func (r *InMemoryRepository) Get(ctx context.Context, tenantID, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok || a.TenantID != tenantID {
		return nil, ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *InMemoryRepository) List(ctx context.Context, tenantID string, filter ListFilter) ([]*Appointment, error) {
	r.mu.RLock()
	var out []*Appointment
	for _, a := range r.items {
		if a.TenantID == tenantID && filter.matches(a) {
			clone := *a
			out = append(out, &clone)
		}
	}
	r.mu.RUnlock()

	sortByTime(out)
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if filter.Skip >= len(out) {
		return []*Appointment{}, nil
	}
	out = out[filter.Skip:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) Insert(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *a
	r.items[a.ID] = &clone
	return nil
}

func (r *InMemoryRepository) Update(ctx context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[a.ID]
	if !ok || existing.TenantID != a.TenantID {
		return ErrNotFound
	}
	a.UpdatedAt = time.Now().UTC()
	clone := *a
	r.items[a.ID] = &clone
	return nil
}

func (r *InMemoryRepository) Overlapping(ctx context.Context, tenantID string, window scheduling.Interval, excludeID string) ([]*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Appointment
	for _, a := range r.items {
		if a.TenantID != tenantID || a.ID == excludeID || !a.Status.Occupies() {
			continue
		}
		if a.Interval().Overlaps(window) {
			clone := *a
			out = append(out, &clone)
		}
	}
	sortByTime(out)
	return out, nil
}

func (r *InMemoryRepository) ExistsAt(ctx context.Context, tenantID, patientID string, t time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.items {
		if a.TenantID == tenantID && a.PatientID == patientID && a.AppointmentTime.Equal(t) {
			return true, nil
		}
	}
	return false, nil
}

func (r *InMemoryRepository) MarkReminderSent(ctx context.Context, tenantID, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok || a.TenantID != tenantID {
		return ErrNotFound
	}
	stamp := at.UTC()
	a.ReminderSentAt = &stamp
	return nil
}

func (r *InMemoryRepository) SetCalendarEventID(ctx context.Context, tenantID, id string, eventID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok || a.TenantID != tenantID {
		return ErrNotFound
	}
	a.CalendarEventID = eventID
	return nil
}

func (r *InMemoryRepository) ListDueReminders(ctx context.Context, from, to time.Time, limit int) ([]*Appointment, error) {
	r.mu.RLock()
	var out []*Appointment
	for _, a := range r.items {
		if a.Status != StatusScheduled || a.ReminderSentAt != nil {
			continue
		}
		if a.AppointmentTime.Before(from) || !a.AppointmentTime.Before(to) {
			continue
		}
		clone := *a
		out = append(out, &clone)
	}
	r.mu.RUnlock()
	sortByTime(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortByTime(list []*Appointment) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].AppointmentTime.Equal(list[j].AppointmentTime) {
			return list[i].ID < list[j].ID
		}
		return list[i].AppointmentTime.Before(list[j].AppointmentTime)
	})
}

var _ Repository = (*InMemoryRepository)(nil)
