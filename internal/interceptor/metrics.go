package interceptor

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the hook endpoints.
type Metrics struct {
	hooks           *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	panicsRecovered prometheus.Counter
}

// NewMetrics creates interceptor metrics registered with the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates interceptor metrics registered with the
// provided registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "toolgate"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		hooks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "interceptor",
				Name:      "hooks_total",
				Help:      "Hook invocations by hook and outcome.",
			},
			[]string{"hook", "outcome"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "interceptor",
				Name:      "http_requests_total",
				Help:      "HTTP requests by path, method and status code.",
			},
			[]string{"path", "method", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "interceptor",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"path"},
		),
		panicsRecovered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "interceptor",
				Name:      "panics_recovered_total",
				Help:      "Panics recovered by the HTTP middleware.",
			},
		),
	}

	// Register all metrics with the provided registerer, ignoring duplicates.
	for _, c := range []prometheus.Collector{
		m.hooks,
		m.httpRequests,
		m.httpDuration,
		m.panicsRecovered,
	} {
		_ = registerer.Register(c)
	}

	return m
}

// Init pre-populates hook outcome labels so dashboards see zero values.
func (m *Metrics) Init() {
	if m == nil {
		return
	}
	for _, outcome := range []string{outcomePass, outcomeDeny, outcomeMalformed} {
		m.hooks.WithLabelValues(hookRequest, outcome)
	}
	for _, outcome := range []string{outcomePass, outcomeFiltered, outcomeMalformed} {
		m.hooks.WithLabelValues(hookResponse, outcome)
	}
}

// RecordHook counts one hook invocation.
func (m *Metrics) RecordHook(hook, outcome string) {
	if m == nil {
		return
	}
	m.hooks.WithLabelValues(hook, outcome).Inc()
}

// RecordHTTPRequest counts and times one HTTP request.
func (m *Metrics) RecordHTTPRequest(path, method string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(path).Observe(seconds)
}

// RecordPanic counts one recovered panic.
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.panicsRecovered.Inc()
}
