package authz

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for authorization decisions and
// response filtering.
type Metrics struct {
	decisions     *prometheus.CounterVec
	filterEntries *prometheus.CounterVec
	filterFaults  prometheus.Counter
}

// NewMetrics creates authz metrics registered on the default registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates authz metrics registered on the given
// registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "toolgate"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "authz",
				Name:      "decisions_total",
				Help:      "Total number of authorization decisions by outcome and reason.",
			},
			[]string{"outcome", "reason"},
		),
		filterEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "authz",
				Name:      "filter_entries_total",
				Help:      "Total number of tool listing entries kept or removed.",
			},
			[]string{"action"},
		),
		filterFaults: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "authz",
				Name:      "filter_faults_total",
				Help:      "Total number of listings emptied because filtering failed.",
			},
		),
	}

	// Register all metrics with the provided registerer, ignoring duplicates.
	for _, c := range []prometheus.Collector{
		m.decisions,
		m.filterEntries,
		m.filterFaults,
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
	for _, reason := range []string{
		ReasonLifecycle, ReasonSystemTool, ReasonPassThrough,
		ReasonRolePermitted, ReasonShared,
	} {
		m.decisions.WithLabelValues("allow", reason)
	}
	for _, reason := range []string{
		ReasonNoTool, ReasonRoleNotPermitted, ReasonNotShared,
		ReasonDependencyFailure,
	} {
		m.decisions.WithLabelValues("deny", reason)
	}
	for _, action := range []string{"kept", "removed"} {
		m.filterEntries.WithLabelValues(action)
	}
}

// RecordDecision records an authorization decision.
func (m *Metrics) RecordDecision(allowed bool, reason string) {
	if m == nil || m.decisions == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.decisions.WithLabelValues(outcome, reason).Inc()
}

// RecordFilterEntries records how many listing entries were kept and
// removed by one filtering pass.
func (m *Metrics) RecordFilterEntries(kept, removed int) {
	if m == nil || m.filterEntries == nil {
		return
	}
	m.filterEntries.WithLabelValues("kept").Add(float64(kept))
	m.filterEntries.WithLabelValues("removed").Add(float64(removed))
}

// RecordFilterFault records a listing that had to be emptied.
func (m *Metrics) RecordFilterFault() {
	if m == nil || m.filterFaults == nil {
		return
	}
	m.filterFaults.Inc()
}
