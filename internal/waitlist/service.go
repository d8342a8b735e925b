package waitlist

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/appointments"
	"github.com/wolfman30/vetclinic-platform/internal/notify"
	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

var tracer = otel.Tracer("vetclinic.internal.waitlist")

var (
	ErrPastDate  = apperr.Validation("desired date must be in the future")
	ErrDuplicate = apperr.Validation("patient already has an active waitlist entry for this date")
)

// SlotNotifier tells a waiting owner that a slot has opened.
type SlotNotifier interface {
	SendSlotOpened(ctx context.Context, n notify.AppointmentNotice)
}

// Service manages the waitlist and offers freed slots to waiting patients.
type Service struct {
	repo     Repository
	patients appointments.PatientFinder
	hours    scheduling.HoursProvider
	logger   *logging.Logger
	notifier SlotNotifier
	clinics  appointments.ClinicNamer
	now      func() time.Time

	wg sync.WaitGroup
}

// Option customizes a Service.
type Option func(*Service)

func WithNotifier(n SlotNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithClinicNames(c appointments.ClinicNamer) Option {
	return func(s *Service) { s.clinics = c }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, patients appointments.PatientFinder, hours scheduling.HoursProvider, logger *logging.Logger, opts ...Option) *Service {
	if hours == nil {
		hours = scheduling.FixedHours(scheduling.StandardHours(time.UTC))
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{repo: repo, patients: patients, hours: hours, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add puts a patient on the waitlist for a day. Only one active entry per
// patient and clinic-local day is allowed.
func (s *Service) Add(ctx context.Context, tenantID string, in AddInput) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "waitlist.add")
	defer span.End()
	span.SetAttributes(attribute.String("vetclinic.tenant_id", tenantID))

	if in.PatientID == "" {
		return nil, apperr.Validation("patient_id is required")
	}
	if in.DesiredDate.IsZero() {
		return nil, apperr.Validation("desired_date is required")
	}
	contact, err := normalizeContact(in.ContactPreference)
	if err != nil {
		return nil, err
	}
	if _, err := s.patients.Get(ctx, tenantID, in.PatientID); err != nil {
		return nil, err
	}
	loc, err := s.location(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := s.checkDate(in.DesiredDate, loc); err != nil {
		return nil, err
	}
	dup, err := s.repo.HasActiveForDay(ctx, tenantID, in.PatientID, scheduling.DayRange(in.DesiredDate, loc))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if dup {
		return nil, ErrDuplicate
	}

	e := &Entry{
		TenantID:           tenantID,
		PatientID:          in.PatientID,
		DesiredDate:        in.DesiredDate.UTC(),
		PreferredTimeStart: utcPtr(in.PreferredTimeStart),
		PreferredTimeEnd:   utcPtr(in.PreferredTimeEnd),
		Notes:              in.Notes,
		ContactPreference:  contact,
		Priority:           in.Priority,
		IsActive:           true,
	}
	if err := e.validateWindow(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, e); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("waitlist: entry added", "tenant_id", tenantID, "entry_id", e.ID, "patient_id", e.PatientID)
	return e, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*Entry, error) {
	return s.repo.Get(ctx, tenantID, id)
}

func (s *Service) List(ctx context.Context, tenantID string, filter ListFilter) ([]*Entry, error) {
	return s.repo.List(ctx, tenantID, filter)
}

// Update applies a partial change.
func (s *Service) Update(ctx context.Context, tenantID, id string, in UpdateInput) (*Entry, error) {
	e, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if in.DesiredDate != nil {
		loc, err := s.location(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if err := s.checkDate(*in.DesiredDate, loc); err != nil {
			return nil, err
		}
		e.DesiredDate = in.DesiredDate.UTC()
	}
	if in.PreferredTimeStart != nil {
		e.PreferredTimeStart = utcPtr(in.PreferredTimeStart)
	}
	if in.PreferredTimeEnd != nil {
		e.PreferredTimeEnd = utcPtr(in.PreferredTimeEnd)
	}
	if in.Notes != nil {
		e.Notes = *in.Notes
	}
	if in.ContactPreference != nil {
		contact, err := normalizeContact(*in.ContactPreference)
		if err != nil {
			return nil, err
		}
		e.ContactPreference = contact
	}
	if in.Priority != nil {
		e.Priority = *in.Priority
	}
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}
	if err := e.validateWindow(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Fulfill closes an entry once the patient has been booked.
func (s *Service) Fulfill(ctx context.Context, tenantID, id string) (*Entry, error) {
	e, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	e.IsActive = false
	e.FulfilledAt = &now
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Info("waitlist: entry fulfilled", "tenant_id", tenantID, "entry_id", id)
	return e, nil
}

// Remove deactivates an entry. The row is kept.
func (s *Service) Remove(ctx context.Context, tenantID, id string) error {
	e, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	e.IsActive = false
	return s.repo.Update(ctx, e)
}

// AppointmentChanged offers the slot freed by a cancellation to the next
// patient waiting for that day. Delivery runs in the background.
func (s *Service) AppointmentChanged(ctx context.Context, evt appointments.Event) {
	if evt.Kind != appointments.EventCancelled {
		return
	}
	appt := evt.Appointment
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.NotifyNext(bg, evt.TenantID, &appt); err != nil {
			s.logger.Warn("waitlist: slot offer failed", "tenant_id", evt.TenantID, "appointment_id", appt.ID, "error", err)
		}
	}()
}

// NotifyNext offers the freed appointment slot to the best waiting entry
// for that day and stamps it as notified. It returns the entry offered, or
// nil when nobody is waiting.
func (s *Service) NotifyNext(ctx context.Context, tenantID string, freed *appointments.Appointment) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "waitlist.notify_next")
	defer span.End()
	span.SetAttributes(attribute.String("vetclinic.tenant_id", tenantID))

	hours, err := s.hours.BusinessHours(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	next, err := s.repo.NextForDay(ctx, tenantID, scheduling.DayRange(freed.AppointmentTime, hours.Location))
	if err != nil || next == nil {
		return nil, err
	}
	patient, err := s.patients.Get(ctx, tenantID, next.PatientID)
	if err != nil {
		return nil, err
	}

	switch {
	case s.notifier == nil:
		s.logger.Info("waitlist: slot opened, notifications disabled", "tenant_id", tenantID, "entry_id", next.ID)
	case next.wantsEmail() && patient.OwnerEmail != "":
		n := notify.AppointmentNotice{
			AppointmentID:   freed.ID,
			TenantID:        tenantID,
			OwnerFirstName:  patient.OwnerFirstName,
			OwnerFullName:   patient.OwnerFullName(),
			OwnerEmail:      patient.OwnerEmail,
			PetName:         patient.PetName,
			Start:           freed.AppointmentTime,
			DurationMinutes: freed.DurationMinutes,
			Location:        hours.Location,
		}
		if s.clinics != nil {
			if name, err := s.clinics.ClinicName(ctx, tenantID); err == nil {
				n.ClinicName = name
			}
		}
		s.notifier.SendSlotOpened(ctx, n)
	default:
		s.logger.Info("waitlist: slot opened, owner needs manual contact",
			"tenant_id", tenantID, "entry_id", next.ID, "contact_preference", next.ContactPreference)
	}

	now := s.now().UTC()
	if err := s.repo.MarkNotified(ctx, tenantID, next.ID, now); err != nil {
		return nil, err
	}
	next.NotifiedAt = &now
	return next, nil
}

// Wait blocks until background slot offers finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) location(ctx context.Context, tenantID string) (*time.Location, error) {
	hours, err := s.hours.BusinessHours(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if hours.Location == nil {
		return time.UTC, nil
	}
	return hours.Location, nil
}

// checkDate rejects days before today in the clinic's timezone.
func (s *Service) checkDate(desired time.Time, loc *time.Location) error {
	if desired.Before(scheduling.StartOfDay(s.now(), loc)) {
		return ErrPastDate
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

var _ appointments.Listener = (*Service)(nil)
