package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records outcomes of maintenance jobs.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pos",
			Name:      "maintenance_job_runs_total",
			Help:      "Maintenance job runs by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pos",
			Name:      "maintenance_job_duration_seconds",
			Help:      "Duration of maintenance jobs in seconds.",
			Buckets:   []float64{.05, .25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pos",
			Name:      "maintenance_job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run of each job.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess)
	return m
}

// Observe records one run of job that began at started.
func (c *CronJobMetrics) Observe(job string, started time.Time, err error) {
	if c == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(time.Since(started).Seconds())
	if err != nil {
		c.runs.WithLabelValues(job, "error").Inc()
		return
	}
	c.runs.WithLabelValues(job, "ok").Inc()
	c.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}
