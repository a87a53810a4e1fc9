// SPDX-License-Identifier: AGPL-3.0-only

// Package metrics declares the prometheus instrumentation for the
// dictionary retrieval service, following the per-subsystem metrics
// struct pattern used throughout the serving platform.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kvrouter/dictserve/pkg/dictservice/orchestrator"
)

// Metrics bundles every prometheus collector the service registers.
type Metrics struct {
	FetchAttemptsTotal    *prometheus.CounterVec
	FetchFailuresTotal    *prometheus.CounterVec
	FetchDurationSeconds  *prometheus.HistogramVec
	RetriesScheduled      prometheus.Counter
	DictionariesInstalled prometheus.Counter
	WarmUpDuration        prometheus.Histogram
	InFlightFetches       prometheus.Gauge
}

// New registers and returns a Metrics bundle under reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dictserve_fetch_attempts_total",
			Help: "Total number of dictionary fetch attempts, by store.",
		}, []string{"store"}),
		FetchFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dictserve_fetch_failures_total",
			Help: "Total number of failed dictionary fetch attempts, by store and failure kind.",
		}, []string{"store", "kind"}),
		FetchDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dictserve_fetch_duration_seconds",
			Help:    "Duration of a single dictionary fetch attempt, by store.",
			Buckets: prometheus.DefBuckets,
		}, []string{"store"}),
		RetriesScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dictserve_retries_scheduled_total",
			Help: "Total number of fetch retries scheduled.",
		}),
		DictionariesInstalled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dictserve_dictionaries_installed_total",
			Help: "Total number of dictionaries successfully installed into the compressor registry.",
		}),
		WarmUpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictserve_warmup_duration_seconds",
			Help:    "Duration of the startup warm-up pass.",
			Buckets: prometheus.DefBuckets,
		}),
		InFlightFetches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dictserve_in_flight_fetches",
			Help: "Number of dictionary fetches currently in flight.",
		}),
	}

	reg.MustRegister(
		m.FetchAttemptsTotal,
		m.FetchFailuresTotal,
		m.FetchDurationSeconds,
		m.RetriesScheduled,
		m.DictionariesInstalled,
		m.WarmUpDuration,
		m.InFlightFetches,
	)
	return m
}

// ForOrchestrator adapts m to orchestrator.Metrics, the narrower view of
// the metrics bundle the orchestrator depends on.
func (m *Metrics) ForOrchestrator() *orchestrator.Metrics {
	return &orchestrator.Metrics{
		FetchAttempts:    m.FetchAttemptsTotal,
		FetchDuration:    m.FetchDurationSeconds,
		FetchFailures:    m.FetchFailuresTotal,
		RetriesScheduled: m.RetriesScheduled,
		Installs:         m.DictionariesInstalled,
		InFlight:         m.InFlightFetches,
	}
}
