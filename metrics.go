package qapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the façade's Prometheus surface, registered under the
// "qapi" namespace. It is safe for concurrent use -- every field is a
// prometheus client type, which already synchronizes internally. Each
// Metrics owns a private registry rather than registering against
// prometheus.DefaultRegisterer, so that two Connect calls in the same
// process (two chains, or two tests) never collide on the same collector
// names; a caller who wants a single combined /metrics endpoint mounts
// Registry() under their own promhttp handler.
type Metrics struct {
	registry *prometheus.Registry

	requestLatency   *prometheus.HistogramVec
	reconnects       prometheus.Counter
	decodeFailures   prometheus.Counter
	tableCacheHits   prometheus.Counter
	tableCacheMisses prometheus.Counter
}

// NewMetrics creates a fresh private registry and registers a new set of
// collectors under namespace against it.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "Latency of façade operations by method.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_reconnects_total",
			Help:      "Total number of successful transport reconnects.",
		}),
		decodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_decode_failures_total",
			Help:      "Total number of metadata decode attempts that exhausted every normalization candidate.",
		}),
		tableCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pallet_table_cache_hits_total",
			Help:      "Total number of TablesForBlock calls served from the spec-version cache.",
		}),
		tableCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pallet_table_cache_misses_total",
			Help:      "Total number of TablesForBlock calls that required a fresh decode.",
		}),
	}
}

// Registry returns this Metrics' private prometheus.Registry, for a
// caller that wants to gather it under their own /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) observeLatency(method string, start time.Time) {
	m.requestLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (m *Metrics) recordReconnect()    { m.reconnects.Inc() }
func (m *Metrics) recordDecodeFailure() { m.decodeFailures.Inc() }
func (m *Metrics) recordCacheHit()     { m.tableCacheHits.Inc() }
func (m *Metrics) recordCacheMiss()    { m.tableCacheMisses.Inc() }
