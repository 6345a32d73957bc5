// Package prom exports cache events as Prometheus counters.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/veloxcache/velox/pkg/velox"
)

// Sink is a velox.MetricsSink backed by Prometheus counter vectors,
// labeled by the originating method (and reason for evictions).
type Sink struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	evictions *prometheus.CounterVec
	errors    *prometheus.CounterVec
}

// New creates a sink and registers its collectors with reg.
// Returns an error if registration fails (e.g. duplicate registration).
func New(reg prometheus.Registerer) (*Sink, error) {
	s := &Sink{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "velox",
			Name:      "cache_hits_total",
			Help:      "Reads served from the cache.",
		}, []string{"method"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "velox",
			Name:      "cache_misses_total",
			Help:      "Reads that ran the factory.",
		}, []string{"method"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "velox",
			Name:      "cache_evictions_total",
			Help:      "Entries removed by the eviction engine.",
		}, []string{"method", "reason"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "velox",
			Name:      "cache_errors_total",
			Help:      "Factory and lock failures.",
		}, []string{"method"}),
	}

	for _, c := range []prometheus.Collector{s.hits, s.misses, s.evictions, s.errors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// OnHit implements velox.MetricsSink.
func (s *Sink) OnHit(method string) {
	s.hits.WithLabelValues(method).Inc()
}

// OnMiss implements velox.MetricsSink.
func (s *Sink) OnMiss(method string) {
	s.misses.WithLabelValues(method).Inc()
}

// OnEviction implements velox.MetricsSink.
func (s *Sink) OnEviction(method, reason string) {
	s.evictions.WithLabelValues(method, reason).Inc()
}

// OnError implements velox.MetricsSink. The message is dropped: error
// text is unbounded and unfit for labels.
func (s *Sink) OnError(method, _ string) {
	s.errors.WithLabelValues(method).Inc()
}

// Verify Sink implements the sink contract.
var _ velox.MetricsSink = (*Sink)(nil)
