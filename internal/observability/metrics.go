package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus counters for the domain core.
type Metrics struct {
	registry      *prometheus.Registry
	handler       http.Handler
	mirrorWrites  *prometheus.CounterVec
	mirrorRetries prometheus.Counter
}

// NewMetrics initialises the registry and the mirror counters.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quillfeed_mirror_writes_total",
		Help: "Audit mirror operations by kind and outcome.",
	}, []string{"op", "outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quillfeed_mirror_retries_total",
		Help: "Mirror writes handed to the retry queue.",
	})
	registry.MustRegister(writes, retries)
	return &Metrics{
		registry:      registry,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		mirrorWrites:  writes,
		mirrorRetries: retries,
	}
}

// Handler returns the http.Handler for a /metrics endpoint; the embedding
// process decides whether and where to mount it.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveMirrorWrite records the outcome of one ledger put or delete.
func (m *Metrics) ObserveMirrorWrite(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.mirrorWrites.WithLabelValues(op, outcome).Inc()
}

// ObserveMirrorRetry records one retry-queue handoff.
func (m *Metrics) ObserveMirrorRetry() {
	if m == nil {
		return
	}
	m.mirrorRetries.Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}
