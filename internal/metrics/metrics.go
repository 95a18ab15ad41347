// Package metrics provides the Prometheus collectors used by the cache and
// the upstream circuit breakers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cinerag"

// Metrics holds all collectors registered against a single registry.
type Metrics struct {
	registry *prometheus.Registry

	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	CacheErrors      *prometheus.CounterVec
	CacheInvalidated *prometheus.CounterVec

	BreakerState       *prometheus.GaugeVec
	BreakerRequests    *prometheus.CounterVec
	BreakerTransitions *prometheus.CounterVec
}

// New creates collectors registered against a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates collectors registered against reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Cache lookups answered from the cache",
			},
			[]string{"namespace"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Cache lookups that fell through to retrieval",
			},
			[]string{"namespace"},
		),
		CacheErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_errors_total",
				Help:      "Cache store or codec failures",
			},
			[]string{"namespace", "operation"},
		),
		CacheInvalidated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_invalidated_keys_total",
				Help:      "Keys removed by pattern invalidation",
			},
			[]string{"namespace"},
		),

		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		BreakerRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_requests_total",
				Help:      "Requests through the circuit breaker by outcome",
			},
			[]string{"name", "result"},
		),
		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_transitions_total",
				Help:      "Circuit breaker state transitions",
			},
			[]string{"name", "from", "to"},
		),
	}
}

// Registry returns the registry the collectors belong to.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
