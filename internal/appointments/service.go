package appointments

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/notify"
	"github.com/wolfman30/vetclinic-platform/internal/observability/metrics"
	"github.com/wolfman30/vetclinic-platform/internal/patients"
	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

var tracer = otel.Tracer("vetclinic.internal.appointments")

// DefaultReminderHours is the reminder lead time when callers pass none.
const DefaultReminderHours = 24

var (
	ErrSlotTaken      = apperr.Validation("time slot is already booked, please choose another time")
	ErrNotFuture      = apperr.Validation("appointment time must be in the future")
	ErrFutureNoShow   = apperr.Validation("cannot mark future appointment as no-show")
	ErrReminderStatus = apperr.Validation("can only send reminders for scheduled appointments")
)

// PatientFinder loads a patient scoped to a tenant.
type PatientFinder interface {
	Get(ctx context.Context, tenantID, id string) (*patients.Patient, error)
}

// ClinicNamer resolves the display name used in owner emails.
type ClinicNamer interface {
	ClinicName(ctx context.Context, tenantID string) (string, error)
}

// Notifier delivers owner emails.
type Notifier interface {
	SendConfirmation(ctx context.Context, n notify.AppointmentNotice)
	SendCancellation(ctx context.Context, n notify.AppointmentNotice)
	SendReminder(ctx context.Context, n notify.AppointmentNotice, hoursAhead int) (notify.ReminderResult, error)
}

// Service runs the appointment lifecycle: booking, rescheduling,
// cancellation, no-show tracking and reminders.
type Service struct {
	repo     Repository
	patients PatientFinder
	hours    scheduling.HoursProvider
	logger   *logging.Logger

	notifier Notifier
	clinics  ClinicNamer
	metrics  *metrics.SchedulingMetrics
	now      func() time.Time

	listenersMu sync.RWMutex
	listeners   []Listener
}

// Option customizes a Service.
type Option func(*Service)

// WithNotifier enables owner emails.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClinicNames sets the clinic name shown in emails.
func WithClinicNames(c ClinicNamer) Option {
	return func(s *Service) { s.clinics = c }
}

func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the lifecycle manager. A nil hours provider falls back
// to the standard 09:00-17:00 window in UTC.
func NewService(repo Repository, patients PatientFinder, hours scheduling.HoursProvider, logger *logging.Logger, opts ...Option) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if patients == nil {
		panic("appointments: patient finder required")
	}
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

// AddListener registers a listener for committed changes.
func (s *Service) AddListener(l Listener) {
	if l == nil {
		return
	}
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, l)
	s.listenersMu.Unlock()
}

// Repository exposes the backing store for collaborators that expand
// recurring templates under the same tenant lock.
func (s *Service) Repository() Repository { return s.repo }

// Create books a new appointment.
func (s *Service) Create(ctx context.Context, tenantID string, in CreateInput) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.create")
	defer span.End()
	span.SetAttributes(attribute.String("vetclinic.tenant_id", tenantID))

	appt, patient, hours, err := s.create(ctx, tenantID, in)
	s.metrics.ObserveOperation("create", outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("vetclinic.appointment_id", appt.ID))

	s.logger.Info("appointment created", "tenant_id", tenantID, "appointment_id", appt.ID, "patient_id", appt.PatientID, "appointment_time", appt.AppointmentTime)
	if s.notifier != nil {
		s.notifier.SendConfirmation(ctx, s.notice(ctx, tenantID, patient, appt, hours))
	}
	s.publish(ctx, EventCreated, appt)
	return appt, nil
}

func (s *Service) create(ctx context.Context, tenantID string, in CreateInput) (*Appointment, *patients.Patient, scheduling.BusinessHours, error) {
	var hours scheduling.BusinessHours
	if err := in.normalize(); err != nil {
		return nil, nil, hours, err
	}
	patient, err := s.patients.Get(ctx, tenantID, in.PatientID)
	if err != nil {
		return nil, nil, hours, err
	}
	hours, err = s.hours.BusinessHours(ctx, tenantID)
	if err != nil {
		return nil, nil, hours, err
	}
	if err := s.checkTime(hours, in.AppointmentTime, in.DurationMinutes); err != nil {
		return nil, nil, hours, err
	}

	appt := &Appointment{
		TenantID:        tenantID,
		PatientID:       patient.ID,
		AppointmentTime: in.AppointmentTime,
		DurationMinutes: in.DurationMinutes,
		Status:          StatusScheduled,
		Notes:           in.Notes,
		Diagnosis:       in.Diagnosis,
		MedicineGiven:   in.MedicineGiven,
	}
	err = s.repo.WithTenantLock(ctx, tenantID, func(st Store) error {
		if err := s.checkConflict(ctx, st, tenantID, "", appt.Interval()); err != nil {
			return err
		}
		return st.Insert(ctx, appt)
	})
	if err != nil {
		return nil, nil, hours, err
	}
	return appt, patient, hours, nil
}

// Update applies a partial update. A new time or duration is validated
// against the clock, business hours and the tenant's other bookings.
func (s *Service) Update(ctx context.Context, tenantID, id string, in UpdateInput) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.update")
	defer span.End()
	span.SetAttributes(attribute.String("vetclinic.tenant_id", tenantID), attribute.String("vetclinic.appointment_id", id))

	var (
		appt     *Appointment
		previous Status
	)
	hours, err := s.hours.BusinessHours(ctx, tenantID)
	if err == nil {
		err = s.repo.WithTenantLock(ctx, tenantID, func(st Store) error {
			current, err := st.Get(ctx, tenantID, id)
			if err != nil {
				return err
			}
			previous = current.Status
			if err := s.apply(ctx, st, hours, current, in); err != nil {
				return err
			}
			appt = current
			return st.Update(ctx, current)
		})
	}
	s.metrics.ObserveOperation("update", outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	kind := EventUpdated
	if appt.Status != previous {
		switch appt.Status {
		case StatusCancelled:
			kind = EventCancelled
			s.sendCancellation(ctx, tenantID, appt, hours)
		case StatusNoShow:
			kind = EventNoShow
		}
	}
	s.logger.Info("appointment updated", "tenant_id", tenantID, "appointment_id", id, "status", appt.Status)
	s.publish(ctx, kind, appt)
	return appt, nil
}

func (s *Service) apply(ctx context.Context, st Store, hours scheduling.BusinessHours, a *Appointment, in UpdateInput) error {
	if in.reschedules() {
		if a.Status != StatusScheduled {
			return apperr.Validation("cannot reschedule a %s appointment", a.Status)
		}
		start, duration := a.AppointmentTime, a.DurationMinutes
		if in.AppointmentTime != nil {
			start = in.AppointmentTime.UTC()
		}
		if in.DurationMinutes != nil {
			duration = *in.DurationMinutes
		}
		if duration <= 0 {
			return apperr.Validation("duration_minutes must be positive")
		}
		if err := s.checkTime(hours, start, duration); err != nil {
			return err
		}
		if err := s.checkConflict(ctx, st, a.TenantID, a.ID, scheduling.NewInterval(start, duration)); err != nil {
			return err
		}
		a.AppointmentTime, a.DurationMinutes = start, duration
	}
	if in.Status != nil {
		to := *in.Status
		if !to.Valid() {
			return apperr.Validation("invalid appointment status %q", to)
		}
		if !CanTransition(a.Status, to) {
			return apperr.Validation("cannot change appointment status from %s to %s", a.Status, to)
		}
		if to == StatusNoShow && a.Status != StatusNoShow && a.AppointmentTime.After(s.now()) {
			return ErrFutureNoShow
		}
		a.Status = to
	}
	if in.Notes != nil {
		a.Notes = *in.Notes
	}
	if in.Diagnosis != nil {
		a.Diagnosis = *in.Diagnosis
	}
	if in.MedicineGiven != nil {
		a.MedicineGiven = *in.MedicineGiven
	}
	return nil
}

// Cancel marks an appointment cancelled. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, tenantID, id string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("vetclinic.tenant_id", tenantID), attribute.String("vetclinic.appointment_id", id))

	var (
		appt    *Appointment
		changed bool
	)
	err := s.repo.WithTenantLock(ctx, tenantID, func(st Store) error {
		current, err := st.Get(ctx, tenantID, id)
		if err != nil {
			return err
		}
		appt = current
		if current.Status == StatusCancelled {
			return nil
		}
		current.Status = StatusCancelled
		changed = true
		return st.Update(ctx, current)
	})
	s.metrics.ObserveOperation("cancel", outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !changed {
		return appt, nil
	}

	s.logger.Info("appointment cancelled", "tenant_id", tenantID, "appointment_id", id)
	hours, herr := s.hours.BusinessHours(ctx, tenantID)
	if herr != nil {
		hours = scheduling.StandardHours(time.UTC)
	}
	s.sendCancellation(ctx, tenantID, appt, hours)
	s.publish(ctx, EventCancelled, appt)
	return appt, nil
}

// MarkNoShow records that a scheduled appointment was missed.
func (s *Service) MarkNoShow(ctx context.Context, tenantID, id string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.no_show")
	defer span.End()
	span.SetAttributes(attribute.String("vetclinic.tenant_id", tenantID), attribute.String("vetclinic.appointment_id", id))

	var appt *Appointment
	err := s.repo.WithTenantLock(ctx, tenantID, func(st Store) error {
		current, err := st.Get(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if current.Status != StatusScheduled {
			return apperr.Validation("cannot mark appointment as no-show: status is %s", current.Status)
		}
		if current.AppointmentTime.After(s.now()) {
			return ErrFutureNoShow
		}
		current.Status = StatusNoShow
		appt = current
		return st.Update(ctx, current)
	})
	s.metrics.ObserveOperation("no_show", outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("appointment marked no-show", "tenant_id", tenantID, "appointment_id", id)
	s.publish(ctx, EventNoShow, appt)
	return appt, nil
}

// SendReminder emails the owner about an upcoming appointment. A missing
// owner email or a time outside the reminder window is reported in the
// result rather than as an error.
func (s *Service) SendReminder(ctx context.Context, tenantID, id string, hoursAhead int) (notify.ReminderResult, error) {
	ctx, span := tracer.Start(ctx, "appointments.remind")
	defer span.End()
	span.SetAttributes(attribute.String("vetclinic.tenant_id", tenantID), attribute.String("vetclinic.appointment_id", id))

	res, err := s.sendReminder(ctx, tenantID, id, hoursAhead)
	status := outcome(err)
	if err == nil && !res.Sent {
		status = "skipped"
	}
	s.metrics.ObserveOperation("remind", status)
	if err != nil {
		span.RecordError(err)
	}
	return res, err
}

func (s *Service) sendReminder(ctx context.Context, tenantID, id string, hoursAhead int) (notify.ReminderResult, error) {
	if hoursAhead <= 0 {
		hoursAhead = DefaultReminderHours
	}
	appt, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return notify.ReminderResult{}, err
	}
	if appt.Status != StatusScheduled {
		return notify.ReminderResult{}, ErrReminderStatus
	}
	if s.notifier == nil {
		return notify.ReminderResult{}, notify.ErrNotConfigured
	}
	patient, err := s.patients.Get(ctx, tenantID, appt.PatientID)
	if err != nil {
		return notify.ReminderResult{}, err
	}
	hours, err := s.hours.BusinessHours(ctx, tenantID)
	if err != nil {
		return notify.ReminderResult{}, err
	}

	res, err := s.notifier.SendReminder(ctx, s.notice(ctx, tenantID, patient, appt, hours), hoursAhead)
	if err != nil {
		return res, err
	}
	if !res.Sent {
		return res, nil
	}
	sentAt := s.now().UTC()
	if err := s.repo.MarkReminderSent(ctx, tenantID, id, sentAt); err != nil {
		return res, err
	}
	appt.ReminderSentAt = &sentAt
	s.logger.Info("appointment reminder sent", "tenant_id", tenantID, "appointment_id", id)
	s.publish(ctx, EventReminded, appt)
	return res, nil
}

// Get loads one appointment.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Appointment, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns the tenant's appointments ordered by time.
func (s *Service) List(ctx context.Context, tenantID string, filter ListFilter) ([]*Appointment, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Validation("invalid appointment status %q", filter.Status)
	}
	return s.repo.List(ctx, tenantID, filter)
}

// SetCalendarEventID records the external calendar event for an appointment.
func (s *Service) SetCalendarEventID(ctx context.Context, tenantID, id string, eventID *string) error {
	return s.repo.SetCalendarEventID(ctx, tenantID, id, eventID)
}

func (s *Service) checkTime(hours scheduling.BusinessHours, start time.Time, durationMinutes int) error {
	if !scheduling.IsFuture(start, s.now()) {
		return ErrNotFuture
	}
	if !hours.Contains(start, durationMinutes) {
		return apperr.Validation("appointment must be within business hours (%s)", hours.Describe())
	}
	return nil
}

func (s *Service) checkConflict(ctx context.Context, st Store, tenantID, excludeID string, candidate scheduling.Interval) error {
	started := time.Now()
	existing, err := st.Overlapping(ctx, tenantID, candidate, excludeID)
	if err != nil {
		return err
	}
	intervals := make([]scheduling.Interval, len(existing))
	for i, a := range existing {
		intervals[i] = a.Interval()
	}
	conflict := scheduling.HasConflict(candidate, intervals)
	s.metrics.ObserveConflictCheck(conflict, time.Since(started).Seconds())
	if conflict {
		return ErrSlotTaken
	}
	return nil
}

func (s *Service) sendCancellation(ctx context.Context, tenantID string, appt *Appointment, hours scheduling.BusinessHours) {
	if s.notifier == nil {
		return
	}
	patient, err := s.patients.Get(ctx, tenantID, appt.PatientID)
	if err != nil {
		s.logger.Warn("appointments: cancellation email skipped", "tenant_id", tenantID, "appointment_id", appt.ID, "error", err)
		return
	}
	s.notifier.SendCancellation(ctx, s.notice(ctx, tenantID, patient, appt, hours))
}

func (s *Service) notice(ctx context.Context, tenantID string, p *patients.Patient, a *Appointment, hours scheduling.BusinessHours) notify.AppointmentNotice {
	n := notify.AppointmentNotice{
		AppointmentID:   a.ID,
		TenantID:        tenantID,
		OwnerFirstName:  p.OwnerFirstName,
		OwnerFullName:   p.OwnerFullName(),
		OwnerEmail:      p.OwnerEmail,
		PetName:         p.PetName,
		Start:           a.AppointmentTime,
		DurationMinutes: a.DurationMinutes,
		Notes:           a.Notes,
		Location:        hours.Location,
	}
	if s.clinics != nil {
		if name, err := s.clinics.ClinicName(ctx, tenantID); err == nil {
			n.ClinicName = name
		}
	}
	return n
}

// Publish notifies listeners of a change committed outside the service,
// such as occurrences booked by a recurring series.
func (s *Service) Publish(ctx context.Context, kind EventKind, appt *Appointment) {
	s.publish(ctx, kind, appt)
}

func (s *Service) publish(ctx context.Context, kind EventKind, appt *Appointment) {
	s.listenersMu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.listenersMu.RUnlock()
	if len(listeners) == 0 {
		return
	}
	evt := Event{Kind: kind, TenantID: appt.TenantID, Appointment: *appt, At: s.now().UTC()}
	for _, l := range listeners {
		l.AppointmentChanged(ctx, evt)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotTaken):
		return "conflict"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
