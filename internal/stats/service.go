package stats

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

var tracer = otel.Tracer("vetclinic.internal.stats")

// Service serves the dashboard and appointment analytics views.
type Service struct {
	source Source
	hours  scheduling.HoursProvider
	cache  Cache
	fee    float64
	logger *logging.Logger
	now    func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithCache enables short-lived caching of computed views.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithFlatFee sets the per-visit amount used for revenue.
func WithFlatFee(fee float64) Option {
	return func(s *Service) {
		if fee >= 0 {
			s.fee = fee
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(source Source, hours scheduling.HoursProvider, logger *logging.Logger, opts ...Option) *Service {
	if hours == nil {
		hours = scheduling.FixedHours(scheduling.StandardHours(time.UTC))
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{source: source, hours: hours, fee: DefaultFlatFee, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppointmentStats returns counts by status and by clinic-local window.
func (s *Service) AppointmentStats(ctx context.Context, tenantID string) (AppointmentStats, error) {
	var out AppointmentStats
	if s.cached(ctx, tenantID, kindAppointments, &out) {
		return out, nil
	}
	snap, err := s.snapshot(ctx, tenantID)
	if err != nil {
		return AppointmentStats{}, err
	}
	out = snap.appointmentStats()
	s.store(ctx, tenantID, kindAppointments, out)
	return out, nil
}

// DashboardStats returns the front-page summary. Revenue is completed
// visits this month times the flat fee.
func (s *Service) DashboardStats(ctx context.Context, tenantID string) (DashboardStats, error) {
	var out DashboardStats
	if s.cached(ctx, tenantID, kindDashboard, &out) {
		return out, nil
	}
	snap, err := s.snapshot(ctx, tenantID)
	if err != nil {
		return DashboardStats{}, err
	}
	out = snap.dashboardStats(s.fee)
	s.store(ctx, tenantID, kindDashboard, out)
	return out, nil
}

func (s *Service) snapshot(ctx context.Context, tenantID string) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "stats.snapshot")
	defer span.End()
	span.SetAttributes(attribute.String("vetclinic.tenant_id", tenantID))

	hours, err := s.hours.BusinessHours(ctx, tenantID)
	if err != nil {
		span.RecordError(err)
		return Snapshot{}, err
	}
	snap, err := s.source.Snapshot(ctx, tenantID, WindowsAt(s.now(), hours.Location))
	if err != nil {
		span.RecordError(err)
		return Snapshot{}, err
	}
	return snap, nil
}

// cached and store treat the cache as best effort.
func (s *Service) cached(ctx context.Context, tenantID, kind string, dest any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, tenantID, kind, dest)
	if err != nil {
		s.logger.Warn("stats: cache read failed", "tenant_id", tenantID, "kind", kind, "error", err)
		return false
	}
	return ok
}

func (s *Service) store(ctx context.Context, tenantID, kind string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, tenantID, kind, value); err != nil {
		s.logger.Warn("stats: cache write failed", "tenant_id", tenantID, "kind", kind, "error", err)
	}
}
