package cachestore

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the collection of prometheus metrics for cache layers.
// A nil *Metrics records nothing.
type Metrics struct {
	Hits   *prometheus.CounterVec
	Misses *prometheus.CounterVec
	Errors *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagegraph",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Keys found in a cache layer",
		}, []string{"cache", "layer"}),
		Misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagegraph",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Keys not found in a cache layer",
		}, []string{"cache", "layer"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagegraph",
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Failed cache layer operations",
		}, []string{"cache", "layer", "operation"}),
	}
}

// MustRegister registers every collector with reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.Hits, m.Misses, m.Errors)
}

func (m *Metrics) observe(cache, layer string, hits, misses int) {
	if m == nil {
		return
	}
	m.Hits.WithLabelValues(cache, layer).Add(float64(hits))
	m.Misses.WithLabelValues(cache, layer).Add(float64(misses))
}

func (m *Metrics) observeError(cache, layer, op string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(cache, layer, op).Inc()
}
