package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for token verification.
type Metrics struct {
	tokenVerifications *prometheus.CounterVec
	jwksRefreshes      *prometheus.CounterVec
}

// NewMetrics creates auth metrics registered on the default registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates auth metrics registered on the given
// registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "toolgate"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		tokenVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "token_verifications_total",
				Help:      "Total number of bearer token verifications by result.",
			},
			[]string{"result"},
		),
		jwksRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "jwks_refreshes_total",
				Help:      "Total number of JWKS endpoint refreshes by result.",
			},
			[]string{"result"},
		),
	}

	// Register all metrics with the provided registerer, ignoring duplicates.
	for _, c := range []prometheus.Collector{
		m.tokenVerifications,
		m.jwksRefreshes,
	} {
		_ = registerer.Register(c)
	}

	return m
}

// Init pre-warms the metric labels so they report zero before first use.
func (m *Metrics) Init() {
	if m == nil {
		return
	}
	for _, result := range []string{"verified", "rejected", "absent"} {
		m.tokenVerifications.WithLabelValues(result)
	}
	for _, result := range []string{"success", "failure"} {
		m.jwksRefreshes.WithLabelValues(result)
	}
}

// RecordTokenVerification records a token verification outcome.
func (m *Metrics) RecordTokenVerification(result string) {
	if m == nil || m.tokenVerifications == nil {
		return
	}
	m.tokenVerifications.WithLabelValues(result).Inc()
}

// RecordJWKSRefresh records a JWKS refresh outcome.
func (m *Metrics) RecordJWKSRefresh(result string) {
	if m == nil || m.jwksRefreshes == nil {
		return
	}
	m.jwksRefreshes.WithLabelValues(result).Inc()
}
