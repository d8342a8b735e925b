package recurring

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/appointments"
	"github.com/wolfman30/vetclinic-platform/internal/observability/metrics"
	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

var tracer = otel.Tracer("vetclinic.internal.recurring")

const (
	DefaultHorizonDays = 90
	MaxHorizonDays     = 730

	// maxSteps bounds a single expansion walk.
	maxSteps = 10000
)

// Service manages templates and materializes their occurrences.
type Service struct {
	templates    Repository
	appointments appointments.Repository
	patients     appointments.PatientFinder
	hours        scheduling.HoursProvider
	logger       *logging.Logger
	metrics      *metrics.SchedulingMetrics
	publisher    Publisher
	horizonDays  int
	now          func() time.Time
}

// Publisher fans committed appointment changes out to listeners.
type Publisher interface {
	Publish(ctx context.Context, kind appointments.EventKind, appt *appointments.Appointment)
}

// Option customizes a Service.
type Option func(*Service)

func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPublisher announces generated occurrences as created appointments.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithHorizonDays sets the default look-ahead for expansion.
func WithHorizonDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.horizonDays = days
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the template manager.
func NewService(templates Repository, appts appointments.Repository, patients appointments.PatientFinder, hours scheduling.HoursProvider, logger *logging.Logger, opts ...Option) *Service {
	if hours == nil {
		hours = scheduling.FixedHours(scheduling.StandardHours(time.UTC))
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		templates:    templates,
		appointments: appts,
		patients:     patients,
		hours:        hours,
		logger:       logger,
		horizonDays:  DefaultHorizonDays,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a template and expands it right away.
func (s *Service) Create(ctx context.Context, tenantID string, in CreateInput) (*Template, Result, error) {
	t, err := newTemplate(tenantID, in, s.now())
	if err != nil {
		return nil, Result{}, err
	}
	if _, err := s.patients.Get(ctx, tenantID, t.PatientID); err != nil {
		return nil, Result{}, err
	}
	if err := s.templates.Create(ctx, t); err != nil {
		return nil, Result{}, err
	}
	s.logger.Info("recurring appointment created", "tenant_id", tenantID, "recurring_appointment_id", t.ID, "pattern", t.Pattern, "interval", t.Interval)

	res, err := s.Expand(ctx, tenantID, t.ID, 0)
	if err != nil {
		return t, res, err
	}
	if updated, gerr := s.templates.Get(ctx, tenantID, t.ID); gerr == nil {
		t = updated
	}
	return t, res, nil
}

// Get loads one template.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Template, error) {
	return s.templates.Get(ctx, tenantID, id)
}

// List returns the tenant's templates.
func (s *Service) List(ctx context.Context, tenantID string, filter ListFilter) ([]*Template, error) {
	return s.templates.List(ctx, tenantID, filter)
}

// Update applies a partial update. Appointments already generated are kept.
func (s *Service) Update(ctx context.Context, tenantID, id string, in UpdateInput) (*Template, error) {
	t, err := s.templates.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := t.apply(in, s.now()); err != nil {
		return nil, err
	}
	if err := s.templates.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete deactivates a template. Generated appointments are kept.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	inactive := false
	_, err := s.Update(ctx, tenantID, id, UpdateInput{IsActive: &inactive})
	if err == nil {
		s.logger.Info("recurring appointment deactivated", "tenant_id", tenantID, "recurring_appointment_id", id)
	}
	return err
}

// Expand materializes the template's occurrences between now and the
// horizon. Occurrences already booked for the patient at the same instant
// are left alone, so repeated runs are safe. Occurrences that would overlap
// another booking or fall outside business hours are skipped and counted.
// horizonDays <= 0 uses the service default.
func (s *Service) Expand(ctx context.Context, tenantID, id string, horizonDays int) (Result, error) {
	ctx, span := tracer.Start(ctx, "recurring.expand")
	defer span.End()
	span.SetAttributes(attribute.String("vetclinic.tenant_id", tenantID), attribute.String("vetclinic.recurring_appointment_id", id))

	res := Result{TemplateID: id}
	if horizonDays <= 0 {
		horizonDays = s.horizonDays
	}
	if horizonDays > MaxHorizonDays {
		return res, apperr.Validation("horizon_days must be at most %d", MaxHorizonDays)
	}

	t, err := s.templates.Get(ctx, tenantID, id)
	if err != nil {
		span.RecordError(err)
		return res, err
	}
	if !t.IsActive {
		return res, nil
	}
	hours, err := s.hours.BusinessHours(ctx, tenantID)
	if err != nil {
		span.RecordError(err)
		return res, err
	}
	anchor, err := t.Anchor(hours.Location)
	if err != nil {
		return res, apperr.Validation("%v", err)
	}

	now := s.now()
	windowEnd := now.AddDate(0, 0, horizonDays)
	if t.EndDate != nil {
		// end_date includes its whole calendar day in the clinic's zone.
		lastDay := scheduling.StartOfDay(*t.EndDate, hours.Location).AddDate(0, 0, 1).Add(-time.Nanosecond)
		if lastDay.Before(windowEnd) {
			windowEnd = lastDay
		}
	}

	duplicates := 0
	var created []*appointments.Appointment
	err = s.appointments.WithTenantLock(ctx, tenantID, func(st appointments.Store) error {
		for k := 0; k < maxSteps; k++ {
			occ := scheduling.Nth(anchor, t.Pattern, t.Interval, k)
			if occ.After(windowEnd) {
				return nil
			}
			if !occ.After(now) {
				continue
			}
			occ = occ.UTC()
			exists, err := st.ExistsAt(ctx, tenantID, t.PatientID, occ)
			if err != nil {
				return err
			}
			if exists {
				duplicates++
				continue
			}
			if !hours.Contains(occ, t.DurationMinutes) {
				res.SkippedOutsideHours++
				continue
			}
			window := scheduling.NewInterval(occ, t.DurationMinutes)
			overlapping, err := st.Overlapping(ctx, tenantID, window, "")
			if err != nil {
				return err
			}
			if len(overlapping) > 0 {
				res.SkippedConflicts++
				continue
			}
			templateID := t.ID
			appt := &appointments.Appointment{
				TenantID:               tenantID,
				PatientID:              t.PatientID,
				AppointmentTime:        occ,
				DurationMinutes:        t.DurationMinutes,
				Status:                 appointments.StatusScheduled,
				Notes:                  t.Notes,
				RecurringAppointmentID: &templateID,
			}
			if err := st.Insert(ctx, appt); err != nil {
				return err
			}
			res.Generated++
			created = append(created, appt)
		}
		s.logger.Warn("recurring: expansion step limit reached", "tenant_id", tenantID, "recurring_appointment_id", id)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return Result{TemplateID: id}, err
	}

	if s.publisher != nil {
		for _, appt := range created {
			s.publisher.Publish(ctx, appointments.EventCreated, appt)
		}
	}

	if err := s.templates.SetLastGenerated(ctx, tenantID, id, now); err != nil {
		span.RecordError(err)
		return res, err
	}

	s.metrics.ObserveRecurrence("generated", res.Generated)
	s.metrics.ObserveRecurrence("duplicate", duplicates)
	s.metrics.ObserveRecurrence("conflict", res.SkippedConflicts)
	s.metrics.ObserveRecurrence("outside_hours", res.SkippedOutsideHours)
	span.SetAttributes(attribute.Int("vetclinic.generated", res.Generated))
	s.logger.Info("recurring appointments generated",
		"tenant_id", tenantID,
		"recurring_appointment_id", id,
		"generated", res.Generated,
		"skipped_conflicts", res.SkippedConflicts,
		"skipped_outside_hours", res.SkippedOutsideHours,
	)
	return res, nil
}

// ExpandAll rolls every active template forward. Failures are logged and
// the run continues with the next template.
func (s *Service) ExpandAll(ctx context.Context) (int, error) {
	templates, err := s.templates.ListAllActive(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, t := range templates {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		res, err := s.Expand(ctx, t.TenantID, t.ID, 0)
		if err != nil {
			s.logger.Error("recurring: expansion failed", "tenant_id", t.TenantID, "recurring_appointment_id", t.ID, "error", err)
			continue
		}
		total += res.Generated
	}
	return total, nil
}
