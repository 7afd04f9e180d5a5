package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for quiz attempts. It implements app.Recorder.
type Metrics struct {
	SessionsStarted    *prometheus.CounterVec
	SessionsActive     *prometheus.GaugeVec
	Submissions        *prometheus.CounterVec
	PersistenceFailure prometheus.Counter
	TimeTaken          *prometheus.HistogramVec
}

// NewMetrics registers the attempt metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medha",
				Subsystem: "quiz",
				Name:      "sessions_started_total",
				Help:      "Total number of attempts that reached the active state",
			},
			[]string{"mode"},
		),
		SessionsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "medha",
				Subsystem: "quiz",
				Name:      "sessions_active",
				Help:      "Number of attempts currently accepting answers",
			},
			[]string{"mode"},
		),
		Submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medha",
				Subsystem: "quiz",
				Name:      "submissions_total",
				Help:      "Total number of graded attempts",
			},
			[]string{"mode", "trigger"}, // trigger: manual, timer, retry
		),
		PersistenceFailure: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "medha",
				Subsystem: "quiz",
				Name:      "persistence_failures_total",
				Help:      "Total number of result submissions the store rejected",
			},
		),
		TimeTaken: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "medha",
				Subsystem: "quiz",
				Name:      "time_taken_seconds",
				Help:      "Time spent on an attempt before grading",
				Buckets:   []float64{15, 30, 60, 120, 300, 600, 1200, 1800, 3600},
			},
			[]string{"mode"},
		),
	}
}

func (m *Metrics) SessionStarted(mode string) {
	m.SessionsStarted.WithLabelValues(mode).Inc()
	m.SessionsActive.WithLabelValues(mode).Inc()
}

func (m *Metrics) SessionClosed(mode string) {
	m.SessionsActive.WithLabelValues(mode).Dec()
}

func (m *Metrics) SessionSubmitted(mode, trigger string, timeTakenSeconds int) {
	m.Submissions.WithLabelValues(mode, trigger).Inc()
	if trigger != "retry" {
		m.TimeTaken.WithLabelValues(mode).Observe(float64(timeTakenSeconds))
	}
}

func (m *Metrics) PersistenceFailed() {
	m.PersistenceFailure.Inc()
}
