// Package metrics exposes the engine's prometheus surface: call counts and
// latencies for each of the three caller-facing operations. A
// ConsolidationFactsProcessed counter is registered as well; nothing in this
// module increments it, so it stays at zero. Grounded on the teacher's own use of
// github.com/prometheus/client_golang for service-level instrumentation,
// generalized from HTTP-handler metrics to this engine's operation names.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	ConsolidationFactsProcessed prometheus.Counter
}

// New registers the engine's metrics against reg. Pass
// prometheus.DefaultRegisterer for normal operation, or a fresh
// prometheus.NewRegistry() in tests to avoid collisions across test runs.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hindsight_operation_duration_seconds",
			Help:    "Latency of retain/recall/reflect calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		OperationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hindsight_operation_total",
			Help: "Count of retain/recall/reflect calls by outcome.",
		}, []string{"operation", "outcome"}),
		ConsolidationFactsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hindsight_consolidation_facts_processed_total",
			Help: "Count of facts processed by the consolidation worker.",
		}),
	}
	reg.MustRegister(m.OperationDuration, m.OperationTotal, m.ConsolidationFactsProcessed)
	return m
}
