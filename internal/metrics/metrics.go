// Package metrics exposes Prometheus collectors for generation outcomes,
// poll behaviour and uploads.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "childgen"

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	outcomes     *prometheus.CounterVec
	pollAttempts prometheus.Histogram
	uploads      *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_outcomes_total",
			Help:      "Generation requests by outcome kind and whether a fallback URL was returned.",
		}, []string{"kind", "fallback"}),
		pollAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_poll_attempts",
			Help:      "Status queries issued per prediction.",
			Buckets:   []float64{0, 1, 2, 3, 4, 8, 16, 32, 64, 120},
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Image uploads by role and result.",
		}, []string{"role", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.outcomes,
		m.pollAttempts,
		m.uploads,
		m.httpRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveOutcome(kind string, fallback bool) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(kind, strconv.FormatBool(fallback)).Inc()
}

func (m *Metrics) ObservePollAttempts(n int) {
	if m == nil {
		return
	}
	m.pollAttempts.Observe(float64(n))
}

// uploadRoles bounds the role label. Roles come from clients, so anything
// else is counted as "other".
var uploadRoles = map[string]bool{
	"mother":  true,
	"father":  true,
	"aging":   true,
	"unknown": true,
}

func uploadRoleLabel(role string) string {
	if uploadRoles[role] {
		return role
	}
	return "other"
}

func (m *Metrics) ObserveUpload(role, result string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(uploadRoleLabel(role), result).Inc()
}

func (m *Metrics) ObserveRequest(method string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
