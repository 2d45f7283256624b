package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// UseCaseMetrics records POS operations and settlements.
type UseCaseMetrics struct {
	duration     *prometheus.HistogramVec
	calls        *prometheus.CounterVec
	settlements  prometheus.Counter
	settledTotal prometheus.Counter
}

// NewUseCaseMetrics registers the collectors on reg. A nil registerer yields
// a no-op recorder.
func NewUseCaseMetrics(reg prometheus.Registerer) *UseCaseMetrics {
	if reg == nil {
		return &UseCaseMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pos",
		Name:      "usecase_duration_seconds",
		Help:      "Duration of POS use cases in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"usecase"})
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "usecase_total",
		Help:      "POS use case executions by outcome.",
	}, []string{"usecase", "outcome"})
	settlements := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "settlements_total",
		Help:      "Payments settled in full.",
	})
	settledTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "settled_amount_minor_total",
		Help:      "Sum of settled bills in minor currency units.",
	})
	reg.MustRegister(duration, calls, settlements, settledTotal)
	return &UseCaseMetrics{
		duration:     duration,
		calls:        calls,
		settlements:  settlements,
		settledTotal: settledTotal,
	}
}

// Observe records one use case run. Pass the error it returned.
func (m *UseCaseMetrics) Observe(usecase string, started time.Time, err error) {
	if m == nil || m.duration == nil {
		return
	}
	label := normalizeLabel(usecase)
	m.duration.WithLabelValues(label).Observe(time.Since(started).Seconds())
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.calls.WithLabelValues(label, outcome).Inc()
}

// Track is Observe for deferred use: errp is read when the deferred call runs.
//
//	defer s.metrics.Track("start_payment", time.Now(), &err)
func (m *UseCaseMetrics) Track(usecase string, started time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	m.Observe(usecase, started, err)
}

// Settled counts a completed settlement of amount minor units.
func (m *UseCaseMetrics) Settled(amount int64) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.Inc()
	if amount > 0 {
		m.settledTotal.Add(float64(amount))
	}
}

func normalizeLabel(name string) string {
	if name == "" {
		return "unknown"
	}
	return name
}
