// Package metrics exposes Prometheus collectors for ledger operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the collectors the services report to. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	operations   *prometheus.CounterVec
	softFailures *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	rederived    prometheus.Counter
	allocations  prometheus.Counter
}

// New registers the ledger collectors on a fresh registry, together with
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farm",
			Name:      "operations_total",
			Help:      "Workflow operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		softFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farm",
			Name:      "soft_failures_total",
			Help:      "Collaborator side effects that failed after retries and were noted.",
		}, []string{"collaborator", "operation"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "farm",
			Name:      "operation_duration_seconds",
			Help:      "Workflow operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		rederived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "farm",
			Name:      "harvest_entries_rederived_total",
			Help:      "Harvest entries whose cost figures changed on re-derivation.",
		}),
		allocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "farm",
			Name:      "allocations_written_total",
			Help:      "Allocation rows written when costs are posted.",
		}),
	}
	reg.MustRegister(
		m.operations, m.softFailures, m.duration, m.rederived, m.allocations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records one finished operation.
func (m *Metrics) Observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// SoftFailure counts a side effect that was given up on.
func (m *Metrics) SoftFailure(collaborator, op string) {
	if m == nil {
		return
	}
	m.softFailures.WithLabelValues(collaborator, op).Inc()
}

// Rederived counts harvest entries changed by a re-derivation pass.
func (m *Metrics) Rederived(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rederived.Add(float64(n))
}

// AllocationsWritten counts allocation rows persisted.
func (m *Metrics) AllocationsWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.allocations.Add(float64(n))
}
