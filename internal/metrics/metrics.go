package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the onboarding process.
type Metrics struct {
	Started       prometheus.Counter
	Completed     prometheus.Counter
	Failed        *prometheus.CounterVec
	StepDuration  *prometheus.HistogramVec
	Notifications *prometheus.CounterVec
}

// New registers all onboarding metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Started: f.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_started_total",
			Help: "Onboarding processes started",
		}),
		Completed: f.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_completed_total",
			Help: "Onboarding processes that reached COMPLETED",
		}),
		Failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_failed_total",
			Help: "Onboarding processes that ended FAILED, by error type",
		}, []string{"error_type"}),
		StepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboarding_step_duration_seconds",
			Help:    "Duration of step handler executions by step and outcome",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"step", "outcome"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_notifications_total",
			Help: "Customer notifications by channel, kind and delivery result",
		}, []string{"channel", "kind", "sent"}),
	}
}

func (m *Metrics) IncStarted() {
	if m != nil {
		m.Started.Inc()
	}
}

func (m *Metrics) IncCompleted() {
	if m != nil {
		m.Completed.Inc()
	}
}

func (m *Metrics) IncFailed(errorType string) {
	if m != nil {
		m.Failed.WithLabelValues(errorType).Inc()
	}
}

// ObserveStep records one step execution.
func (m *Metrics) ObserveStep(step, outcome string, d time.Duration) {
	if m != nil {
		m.StepDuration.WithLabelValues(step, outcome).Observe(d.Seconds())
	}
}

// ObserveNotification records one channel delivery.
func (m *Metrics) ObserveNotification(channel, kind string, sent bool) {
	if m != nil {
		m.Notifications.WithLabelValues(channel, kind, strconv.FormatBool(sent)).Inc()
	}
}
