package recurring

import (
	"context"
	"time"

	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// Expander is the part of Service the worker drives.
type Expander interface {
	ExpandAll(ctx context.Context) (int, error)
}

// Worker periodically expands every active template so the booking
// horizon keeps rolling forward.
type Worker struct {
	expander Expander
	logger   *logging.Logger
	interval time.Duration
}

// NewWorker creates a recurrence worker.
func NewWorker(expander Expander, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{expander: expander, logger: logger, interval: 6 * time.Hour}
}

// WithInterval sets the run interval.
func (w *Worker) WithInterval(interval time.Duration) *Worker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start runs the worker until ctx is cancelled. The first pass runs
// immediately.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting recurrence worker", "interval", w.interval.String())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("recurrence worker shutting down")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single pass.
func (w *Worker) RunOnce(ctx context.Context) {
	generated, err := w.expander.ExpandAll(ctx)
	if err != nil {
		w.logger.Error("recurrence worker: run failed", "error", err)
		return
	}
	if generated > 0 {
		w.logger.Info("recurrence worker: appointments generated", "count", generated)
	}
}
