package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	RelayPublished    = "published"
	RelayRetry        = "retry"
	RelayDeadLettered = "dead_lettered"
)

// OutboxMetrics counts relay outcomes per event type and times each poll.
type OutboxMetrics struct {
	events *prometheus.CounterVec
	polls  prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "outbox_events_total",
		Help:      "Outbox rows handled by the relay, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	polls := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pos",
		Name:      "outbox_poll_duration_seconds",
		Help:      "Duration of one outbox poll including publishing.",
		Buckets:   prometheus.DefBuckets,
	})
	reg.MustRegister(events, polls)
	return &OutboxMetrics{events: events, polls: polls}
}

func (m *OutboxMetrics) Event(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}

func (m *OutboxMetrics) Poll(started time.Time) {
	if m == nil || m.polls == nil {
		return
	}
	m.polls.Observe(time.Since(started).Seconds())
}
