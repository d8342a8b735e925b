package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/observability/metrics"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// ErrNotConfigured means no email provider is wired.
var ErrNotConfigured error = apperr.Configuration("email service not configured")

// ReminderResult reports whether a reminder went out and why not.
type ReminderResult struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// Service sends appointment emails. Confirmations and cancellations are
// fire-and-forget: they run on their own goroutine with a detached context
// and failures are logged, never returned.
type Service struct {
	email   EmailSender
	logger  *logging.Logger
	metrics *metrics.SchedulingMetrics
	timeout time.Duration
	now     func() time.Time

	wg  sync.WaitGroup
	sem chan struct{}
}

// Option customizes a Service.
type Option func(*Service)

// WithMetrics records delivery counters.
func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMaxInFlight bounds concurrent background sends.
func WithMaxInFlight(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sem = make(chan struct{}, n)
		}
	}
}

// NewService creates a notification service. A nil sender disables email;
// background sends are then dropped and reminders return ErrNotConfigured.
func NewService(email EmailSender, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		email:   email,
		logger:  logger,
		timeout: 15 * time.Second,
		now:     time.Now,
		sem:     make(chan struct{}, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether an email provider is wired.
func (s *Service) Enabled() bool {
	return s != nil && s.email != nil
}

// SendConfirmation emails the owner that a booking was made.
func (s *Service) SendConfirmation(ctx context.Context, n AppointmentNotice) {
	s.dispatch(ctx, KindConfirmation, n)
}

// SendCancellation emails the owner that a booking was cancelled.
func (s *Service) SendCancellation(ctx context.Context, n AppointmentNotice) {
	s.dispatch(ctx, KindCancellation, n)
}

// SendSlotOpened tells a waitlisted owner that their day has a free slot.
func (s *Service) SendSlotOpened(ctx context.Context, n AppointmentNotice) {
	s.dispatch(ctx, KindWaitlist, n)
}

// SendReminder sends a reminder synchronously. It only sends when now lies
// within [start-hoursAhead, start] and the owner has an email address;
// otherwise it returns Sent=false with the reason.
func (s *Service) SendReminder(ctx context.Context, n AppointmentNotice, hoursAhead int) (ReminderResult, error) {
	if !s.Enabled() {
		return ReminderResult{}, ErrNotConfigured
	}
	if strings.TrimSpace(n.OwnerEmail) == "" {
		return ReminderResult{Sent: false, Message: "patient has no contact email; reminder not sent"}, nil
	}
	now := s.now()
	windowStart := n.Start.Add(-time.Duration(hoursAhead) * time.Hour)
	if now.Before(windowStart) || now.After(n.Start) {
		return ReminderResult{Sent: false, Message: "appointment is outside the reminder window"}, nil
	}
	if err := s.send(ctx, KindReminder, n); err != nil {
		return ReminderResult{Sent: false, Message: "reminder could not be sent"}, err
	}
	return ReminderResult{Sent: true, Message: "reminder sent"}, nil
}

// Wait blocks until background sends finish. Called on shutdown.
func (s *Service) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

func (s *Service) dispatch(ctx context.Context, kind Kind, n AppointmentNotice) {
	if s == nil {
		return
	}
	if !s.Enabled() {
		s.logger.Debug("notify: email disabled, dropping message", "kind", kind, "appointment_id", n.AppointmentID)
		s.metrics.ObserveNotification(string(kind), "disabled")
		return
	}
	if strings.TrimSpace(n.OwnerEmail) == "" {
		s.logger.Info("notify: owner has no email", "kind", kind, "appointment_id", n.AppointmentID)
		s.metrics.ObserveNotification(string(kind), "no_recipient")
		return
	}

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sem <- struct{}{}
		defer func() { <-s.sem }()

		sendCtx, cancel := context.WithTimeout(bg, s.timeout)
		defer cancel()
		if err := s.send(sendCtx, kind, n); err != nil {
			s.logger.Warn("notify: background email failed", "kind", kind, "appointment_id", n.AppointmentID, "error", err)
		}
	}()
}

func (s *Service) send(ctx context.Context, kind Kind, n AppointmentNotice) error {
	msg, err := Render(kind, n)
	if err != nil {
		s.metrics.ObserveNotification(string(kind), "failed")
		return err
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.metrics.ObserveNotification(string(kind), "failed")
		return err
	}
	s.metrics.ObserveNotification(string(kind), "sent")
	return nil
}
