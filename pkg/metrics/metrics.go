// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livesearch"

// Search outcomes.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	sessionsActive   prometheus.Gauge
	searches         *prometheus.CounterVec
	providerErrors   *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	articlesAppended prometheus.Counter
	analysisDuration *prometheus.HistogramVec
	clientsDropped   prometheus.Counter
}

// New creates the collectors and registers them, along with the Go runtime
// and process collectors, on a new registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		sessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of connected live-search sessions",
		}),
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Provider lookups by kind (initial, poll) and outcome (hit, miss, error)",
		}, []string{"kind", "outcome"}),
		providerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider failures by class",
		}, []string{"class"}),
		providerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Latency of provider lookups, including cache hits",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		articlesAppended: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_appended_total",
			Help:      "New articles pushed to clients by polling",
		}),
		analysisDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of analysis tasks",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.25, 1},
		}, []string{"kind", "outcome"}),
		clientsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clients_dropped_total",
			Help:      "Connections closed because the client could not keep up",
		}),
	}
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// TrackSize exports fn as a gauge sampled on every scrape.
func (m *Metrics) TrackSize(name, help string, fn func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(fn()) }))
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() { m.sessionsActive.Inc() }

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() { m.sessionsActive.Dec() }

// ObserveSearch records a provider lookup. errClass is empty on success.
func (m *Metrics) ObserveSearch(kind string, d time.Duration, hit bool, errClass string) {
	outcome := OutcomeMiss
	switch {
	case errClass != "":
		outcome = OutcomeError
		m.providerErrors.WithLabelValues(errClass).Inc()
	case hit:
		outcome = OutcomeHit
	}
	m.searches.WithLabelValues(kind, outcome).Inc()
	m.providerDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ArticlesAppended counts articles delivered by a poll.
func (m *Metrics) ArticlesAppended(n int) {
	m.articlesAppended.Add(float64(n))
}

// ObserveAnalysis records one analysis task.
func (m *Metrics) ObserveAnalysis(kind string, d time.Duration, failed bool) {
	outcome := "ok"
	if failed {
		outcome = OutcomeError
	}
	m.analysisDuration.WithLabelValues(kind, outcome).Observe(d.Seconds())
}

// ClientDropped counts a connection closed for falling behind.
func (m *Metrics) ClientDropped() {
	m.clientsDropped.Inc()
}
