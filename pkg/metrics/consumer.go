package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ConsumerHandled     = "handled"
	ConsumerDuplicate   = "duplicate"
	ConsumerUnsupported = "unsupported"
	ConsumerMalformed   = "malformed"
	ConsumerRetry       = "retry"
)

// ConsumerMetrics tracks subscription deliveries per consumer.
type ConsumerMetrics struct {
	messages *prometheus.CounterVec
	handle   *prometheus.HistogramVec
}

func NewConsumerMetrics(reg prometheus.Registerer) *ConsumerMetrics {
	if reg == nil {
		return &ConsumerMetrics{}
	}
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "consumer_messages_total",
		Help:      "Messages received by event consumers, by event type and outcome.",
	}, []string{"consumer", "event_type", "outcome"})
	handle := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pos",
		Name:      "consumer_handle_duration_seconds",
		Help:      "Time spent handling one delivery.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"consumer"})
	reg.MustRegister(messages, handle)
	return &ConsumerMetrics{messages: messages, handle: handle}
}

func (m *ConsumerMetrics) Observe(consumer, eventType, outcome string, started time.Time) {
	if m == nil || m.messages == nil {
		return
	}
	m.messages.WithLabelValues(consumer, normalizeLabel(eventType), outcome).Inc()
	m.handle.WithLabelValues(consumer).Observe(time.Since(started).Seconds())
}
