// Package telemetry defines the Prometheus metrics this module exposes:
// cache hit/miss counters, orchestrator step duration histograms, and an
// active-session gauge.
//
// The teacher itself does not depend on client_golang; this package is
// grounded on sibling pack repos (Hola-to-network_logistics_problem,
// getaxonflow-axonflow, haasonsaas-nexus, kraklabs-cie) which depend on
// it directly for the same concerns.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every counter/histogram/gauge this module registers.
type Metrics struct {
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	StepDuration *prometheus.HistogramVec

	ActiveSessions prometheus.Gauge

	OrchestratorErrors *prometheus.CounterVec
}

// New builds and registers every metric against reg. Pass
// prometheus.NewRegistry() in tests to avoid polluting the default
// registry; pass prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logforensics",
			Name:      "cache_hits_total",
			Help:      "Cache hits by cache name and layer.",
		}, []string{"cache", "layer"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logforensics",
			Name:      "cache_misses_total",
			Help:      "Cache misses by cache name.",
		}, []string{"cache"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "logforensics",
			Name:      "orchestrator_step_duration_seconds",
			Help:      "Duration of each orchestrator pipeline step.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "logforensics",
			Name:      "active_sessions",
			Help:      "Number of sessions currently running.",
		}),
		OrchestratorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logforensics",
			Name:      "orchestrator_errors_total",
			Help:      "Orchestrator errors by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.CacheHits, m.CacheMisses, m.StepDuration, m.ActiveSessions, m.OrchestratorErrors)
	return m
}
