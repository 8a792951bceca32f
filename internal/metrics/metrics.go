// Package metrics exposes Prometheus collectors for optimization runs and
// request validation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sentinel_analytics"

// Metrics holds the engine's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	optimizationRuns     *prometheus.CounterVec
	optimizationDuration *prometheus.HistogramVec
	discardedRuns        prometheus.Counter
	appliedRuns          prometheus.Counter
	validationRejections *prometheus.CounterVec
}

// New creates the collectors. Go runtime and process collectors are included
// when withRuntime is set.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		optimizationRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimization_runs_total",
			Help:      "Optimization runs by solver and outcome",
		}, []string{"solver", "outcome"}),
		optimizationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "optimization_duration_seconds",
			Help:      "Time spent solving an optimization run",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"solver"}),
		discardedRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimization_runs_discarded_total",
			Help:      "Completed runs discarded because a newer request or holdings change superseded them",
		}),
		appliedRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimization_results_applied_total",
			Help:      "Optimization results applied to the holdings",
		}),
		validationRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "Requests rejected by position validation",
		}, []string{"endpoint"}),
	}
}

// RecordRun counts a finished run and observes its duration.
func (m *Metrics) RecordRun(solver, outcome string, duration time.Duration) {
	if solver == "" {
		solver = "unknown"
	}
	m.optimizationRuns.WithLabelValues(solver, outcome).Inc()
	m.optimizationDuration.WithLabelValues(solver).Observe(duration.Seconds())
}

// RunDiscarded counts a superseded run.
func (m *Metrics) RunDiscarded() {
	m.discardedRuns.Inc()
}

// ResultApplied counts a result applied to the holdings.
func (m *Metrics) ResultApplied() {
	m.appliedRuns.Inc()
}

// ValidationRejected counts a request rejected by validation.
func (m *Metrics) ValidationRejected(endpoint string) {
	m.validationRejections.WithLabelValues(endpoint).Inc()
}

// Registry returns the registry backing these collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
