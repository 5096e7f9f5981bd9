// Package jobmetrics instruments the nightly maintenance checks.
package jobmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hotelops"

// Metrics holds the collectors shared by every maintenance job. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	runs          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	inFlight      *prometheus.GaugeVec
	lastSuccess   *prometheus.GaugeVec
	discrepancies *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them on reg. A nil reg
// leaves them unregistered, which tests and one-shot CLI runs rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Maintenance job runs by job and outcome.",
		}, []string{"job", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of maintenance job runs.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Maintenance jobs currently running.",
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per job.",
		}, []string{"job"}),
		discrepancies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_discrepancies_total",
			Help:      "Discrepancies reported by the ledger, stock and order total checks.",
		}, []string{"check"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.duration, m.inFlight, m.lastSuccess, m.discrepancies)
	}
	return m
}

// Tracker times one job run. Obtain it with Track and close it with End.
type Tracker struct {
	m     *Metrics
	job   string
	start time.Time
}

// Track marks job as running.
func (m *Metrics) Track(job string) *Tracker {
	if m != nil {
		m.inFlight.WithLabelValues(job).Inc()
	}
	return &Tracker{m: m, job: job, start: time.Now()}
}

// End records the outcome and passes err through.
func (t *Tracker) End(err error) error {
	if t == nil || t.m == nil {
		return err
	}
	t.m.inFlight.WithLabelValues(t.job).Dec()
	t.m.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	if err != nil {
		t.m.runs.WithLabelValues(t.job, "failure").Inc()
		return err
	}
	t.m.runs.WithLabelValues(t.job, "success").Inc()
	t.m.lastSuccess.WithLabelValues(t.job).SetToCurrentTime()
	return nil
}

// AddDiscrepancies counts problems a reconciliation check found.
func (m *Metrics) AddDiscrepancies(check string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.discrepancies.WithLabelValues(check).Add(float64(count))
}
