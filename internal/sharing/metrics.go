package sharing

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for sharing resolution.
type Metrics struct {
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	cacheEvictions     prometheus.Counter
	fetchDuration      *prometheus.HistogramVec
	storeErrors        *prometheus.CounterVec
	resolutions        *prometheus.CounterVec
	breakerTransitions *prometheus.CounterVec
}

// NewMetrics creates sharing metrics registered on the default registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates sharing metrics registered on the
// given registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "toolgate"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sharing",
				Name:      "cache_hits_total",
				Help:      "Total number of decision cache hits.",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sharing",
				Name:      "cache_misses_total",
				Help:      "Total number of decision cache misses.",
			},
		),
		cacheEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sharing",
				Name:      "cache_evictions_total",
				Help:      "Total number of decision cache evictions.",
			},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sharing",
				Name:      "store_fetch_duration_seconds",
				Help:      "Sharing record fetch duration in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"backend"},
		),
		storeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sharing",
				Name:      "store_errors_total",
				Help:      "Total number of sharing store failures.",
			},
			[]string{"backend"},
		),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sharing",
				Name:      "resolutions_total",
				Help:      "Total number of sharing resolutions by outcome.",
			},
			[]string{"outcome"},
		),
		breakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sharing",
				Name:      "breaker_transitions_total",
				Help:      "Total number of store circuit breaker state transitions.",
			},
			[]string{"from", "to"},
		),
	}

	// Register all metrics with the provided registerer, ignoring duplicates.
	for _, c := range []prometheus.Collector{
		m.cacheHits,
		m.cacheMisses,
		m.cacheEvictions,
		m.fetchDuration,
		m.storeErrors,
		m.resolutions,
		m.breakerTransitions,
	} {
		_ = registerer.Register(c)
	}

	return m
}

// Init pre-warms the labelled metrics so they report zero before first use.
func (m *Metrics) Init() {
	if m == nil {
		return
	}
	for _, outcome := range []string{"allow", "deny", "dependency_failure"} {
		m.resolutions.WithLabelValues(outcome)
	}
	for _, backend := range []string{"redis", "static"} {
		m.storeErrors.WithLabelValues(backend)
	}
}

// RecordCacheHit records a decision cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil || m.cacheHits == nil {
		return
	}
	m.cacheHits.Inc()
}

// RecordCacheMiss records a decision cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil || m.cacheMisses == nil {
		return
	}
	m.cacheMisses.Inc()
}

// RecordCacheEviction records a decision cache eviction.
func (m *Metrics) RecordCacheEviction() {
	if m == nil || m.cacheEvictions == nil {
		return
	}
	m.cacheEvictions.Inc()
}

// ObserveFetchDuration records the duration of one store fetch.
func (m *Metrics) ObserveFetchDuration(backend string, d time.Duration) {
	if m == nil || m.fetchDuration == nil {
		return
	}
	m.fetchDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// RecordStoreError records a store failure.
func (m *Metrics) RecordStoreError(backend string) {
	if m == nil || m.storeErrors == nil {
		return
	}
	m.storeErrors.WithLabelValues(backend).Inc()
}

// RecordResolution records a resolution outcome.
func (m *Metrics) RecordResolution(outcome string) {
	if m == nil || m.resolutions == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(from, to string) {
	if m == nil || m.breakerTransitions == nil {
		return
	}
	m.breakerTransitions.WithLabelValues(from, to).Inc()
}
