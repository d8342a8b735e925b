package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for booking, recurrence and
// notification flows.
type SchedulingMetrics struct {
	bookingTotal         *prometheus.CounterVec
	conflictCheckLatency *prometheus.HistogramVec
	recurrenceTotal      *prometheus.CounterVec
	notificationTotal    *prometheus.CounterVec
	reminderRunTotal     *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetclinic",
			Subsystem: "scheduling",
			Name:      "appointment_operations_total",
			Help:      "Appointment lifecycle operations by outcome",
		}, []string{"operation", "outcome"}),
		conflictCheckLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vetclinic",
			Subsystem: "scheduling",
			Name:      "conflict_check_seconds",
			Help:      "Latency of the overlap scan including the storage round-trip",
			Buckets:   prometheus.DefBuckets,
		}, []string{"conflict"}),
		recurrenceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetclinic",
			Subsystem: "scheduling",
			Name:      "recurrence_occurrences_total",
			Help:      "Occurrences produced by recurrence expansion",
		}, []string{"result"}),
		notificationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetclinic",
			Subsystem: "notify",
			Name:      "emails_total",
			Help:      "Appointment emails by kind and delivery status",
		}, []string{"kind", "status"}),
		reminderRunTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetclinic",
			Subsystem: "reminders",
			Name:      "processed_total",
			Help:      "Appointments processed by the reminder job",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingTotal, m.conflictCheckLatency, m.recurrenceTotal, m.notificationTotal, m.reminderRunTotal)
	return m
}

// ObserveOperation counts a lifecycle operation ("create", "update",
// "cancel", "no_show", "remind") with its outcome ("ok", "conflict", ...).
func (m *SchedulingMetrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveConflictCheck(conflict bool, seconds float64) {
	if m == nil {
		return
	}
	label := "false"
	if conflict {
		label = "true"
	}
	m.conflictCheckLatency.WithLabelValues(label).Observe(seconds)
}

// ObserveRecurrence adds n occurrences under result ("generated", "duplicate", "conflict").
func (m *SchedulingMetrics) ObserveRecurrence(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recurrenceTotal.WithLabelValues(result).Add(float64(n))
}

func (m *SchedulingMetrics) ObserveNotification(kind, status string) {
	if m == nil {
		return
	}
	m.notificationTotal.WithLabelValues(kind, status).Inc()
}

func (m *SchedulingMetrics) ObserveReminder(status string) {
	if m == nil {
		return
	}
	m.reminderRunTotal.WithLabelValues(status).Inc()
}
