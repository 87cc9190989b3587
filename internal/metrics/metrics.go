// Package metrics exposes Prometheus counters for analysis runs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mttbar"

// Metrics holds the collectors of one process on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Events        *prometheus.CounterVec
	Files         prometheus.Counter
	Hypotheses    prometheus.Counter
	Solutions     *prometheus.CounterVec
	Latency       prometheus.Histogram
	Mttbar        prometheus.Histogram
	ActiveWorkers prometheus.Gauge
}

// New registers all collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events processed, by analysis status.",
		}, []string{"status"}),
		Files: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Input files fully read.",
		}),
		Hypotheses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hypotheses_total",
			Help:      "Jet assignment hypotheses evaluated.",
		}),
		Solutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "neutrino_solutions_total",
			Help:      "Neutrino pz solutions by solution count (0 complex, 1 degenerate, 2 real).",
		}, []string{"count"}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconstruction_seconds",
			Help:      "Wall time of selection and reconstruction per selected event.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		Mttbar: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mttbar_gev",
			Help:      "Reconstructed ttbar invariant mass.",
			Buckets:   prometheus.LinearBuckets(250, 250, 16),
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Analysis workers currently reading files.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Events, m.Files, m.Hypotheses, m.Solutions, m.Latency, m.Mttbar, m.ActiveWorkers,
	)
	return m
}

// ObserveEvent records one analysed event.
func (m *Metrics) ObserveEvent(status string, hypotheses, solutions int, latency time.Duration) {
	m.Events.WithLabelValues(status).Inc()
	if hypotheses > 0 {
		m.Hypotheses.Add(float64(hypotheses))
		m.Solutions.WithLabelValues(strconv.Itoa(solutions)).Inc()
	}
	if latency > 0 {
		m.Latency.Observe(latency.Seconds())
	}
}

// ObserveMass records a reconstructed resonance mass.
func (m *Metrics) ObserveMass(gev float64) { m.Mttbar.Observe(gev) }

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
