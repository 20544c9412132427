package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the worker pool and dispatcher
type Metrics struct {
	JobsSubmitted prometheus.Counter
	JobsFinished  prometheus.Counter
	JobsPanicked  prometheus.Counter
	ActiveWorkers prometheus.Gauge
	JobLatency    prometheus.Histogram
	Requests      *prometheus.CounterVec
	JobErrors     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		JobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs submitted to the worker pool",
		}),
		JobsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_finished_total",
			Help:      "Total number of jobs that ran to completion or panicked",
		}),
		JobsPanicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_panicked_total",
			Help:      "Total number of jobs that panicked",
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "active_workers",
			Help:      "Number of workers currently executing a job",
		}),
		JobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "job_duration_seconds",
			Help:      "Histogram of job execution time",
			Buckets:   prometheus.DefBuckets,
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "responses_total",
			Help:      "Responses written, by status code",
		}, []string{"status"}),
		JobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "errors_total",
			Help:      "Connection jobs aborted by an error, by failure kind",
		}, []string{"kind"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.JobsSubmitted,
			m.JobsFinished,
			m.JobsPanicked,
			m.ActiveWorkers,
			m.JobLatency,
			m.Requests,
			m.JobErrors,
		)
	}
	return m
}

// JobStarted marks a worker as busy
func (m *Metrics) JobStarted() {
	m.ActiveWorkers.Inc()
}

// JobFinished marks a worker as idle again and records the job's duration
func (m *Metrics) JobFinished(elapsed time.Duration) {
	m.ActiveWorkers.Dec()
	m.JobsFinished.Inc()
	m.JobLatency.Observe(elapsed.Seconds())
}

// ObserveResponse counts a written response
func (m *Metrics) ObserveResponse(status int) {
	m.Requests.WithLabelValues(strconv.Itoa(status)).Inc()
}

// ObserveError counts an aborted connection job
func (m *Metrics) ObserveError(kind string) {
	m.JobErrors.WithLabelValues(kind).Inc()
}
