// Package reminders emails owners ahead of their appointments.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/appointments"
	"github.com/wolfman30/vetclinic-platform/internal/notify"
	"github.com/wolfman30/vetclinic-platform/internal/observability/metrics"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

const (
	defaultInterval = time.Hour
	defaultLead     = 24 * time.Hour
	// slack widens the lead into a window so an hourly run never misses
	// an appointment between ticks.
	slack     = time.Hour
	batchSize = 500
)

// Source lists appointments whose reminder is due.
type Source interface {
	ListDueReminders(ctx context.Context, from, to time.Time, limit int) ([]*appointments.Appointment, error)
}

// Sender delivers and records one reminder.
type Sender interface {
	SendReminder(ctx context.Context, tenantID, id string, hoursAhead int) (notify.ReminderResult, error)
}

// Summary reports one pass.
type Summary struct {
	Due     int
	Sent    int
	Skipped int
	Failed  int
}

// Worker sends reminders for scheduled appointments starting roughly one
// lead time from now.
type Worker struct {
	source   Source
	sender   Sender
	logger   *logging.Logger
	interval time.Duration
	lead     time.Duration
	metrics  *metrics.SchedulingMetrics
	now      func() time.Time
}

// NewWorker creates a reminder worker.
func NewWorker(source Source, sender Sender, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		source:   source,
		sender:   sender,
		logger:   logger,
		interval: defaultInterval,
		lead:     defaultLead,
		now:      time.Now,
	}
}

// WithInterval sets the run interval.
func (w *Worker) WithInterval(interval time.Duration) *Worker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithLead sets how far ahead of the appointment reminders go out.
func (w *Worker) WithLead(lead time.Duration) *Worker {
	if lead > slack {
		w.lead = lead
	}
	return w
}

func (w *Worker) WithMetrics(m *metrics.SchedulingMetrics) *Worker {
	w.metrics = m
	return w
}

// WithClock overrides time.Now, for tests.
func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}

// Start runs the worker until ctx is cancelled. The first pass runs
// immediately.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting reminder worker", "interval", w.interval.String(), "lead", w.lead.String())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.run(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reminder worker shutting down")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *Worker) run(ctx context.Context) {
	sum, err := w.RunOnce(ctx)
	if err != nil {
		w.logger.Error("reminder worker: run failed", "error", err)
		return
	}
	if sum.Due > 0 {
		w.logger.Info("reminder worker: pass complete",
			"due", sum.Due, "sent", sum.Sent, "skipped", sum.Skipped, "failed", sum.Failed)
	}
}

// RunOnce sends reminders for appointments starting in
// [now+lead-1h, now+lead+1h]. Individual failures are logged and counted.
func (w *Worker) RunOnce(ctx context.Context) (Summary, error) {
	now := w.now().UTC()
	from := now.Add(w.lead - slack)
	to := now.Add(w.lead + slack)

	due, err := w.source.ListDueReminders(ctx, from, to, batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("reminders: list due: %w", err)
	}
	sum := Summary{Due: len(due)}
	hoursAhead := int(math.Ceil((w.lead + slack).Hours()))

	for _, a := range due {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := w.sender.SendReminder(ctx, a.TenantID, a.ID, hoursAhead)
		switch {
		case errors.Is(err, notify.ErrNotConfigured):
			return sum, err
		case err != nil:
			sum.Failed++
			w.metrics.ObserveReminder("failed")
			w.logger.Error("reminder worker: send failed", "tenant_id", a.TenantID, "appointment_id", a.ID, "error", err)
		case res.Sent:
			sum.Sent++
			w.metrics.ObserveReminder("sent")
		default:
			sum.Skipped++
			w.metrics.ObserveReminder("skipped")
			w.logger.Info("reminder worker: skipped", "tenant_id", a.TenantID, "appointment_id", a.ID, "reason", res.Message)
		}
	}
	return sum, nil
}
