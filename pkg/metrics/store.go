package metrics

import "github.com/prometheus/client_golang/prometheus"

// Namespace prefixes every metric exported by the client.
const Namespace = "qutt"

// StoreMetrics counts persistence failures that were logged and swallowed.
type StoreMetrics struct {
	failures *prometheus.CounterVec
}

// NewStoreMetrics registers the store metrics on the provided registerer.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	if reg == nil {
		return &StoreMetrics{}
	}
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "store_failures_total",
		Help:      "Store operations that failed, by component and operation.",
	}, []string{"component", "op"})
	reg.MustRegister(failures)
	return &StoreMetrics{failures: failures}
}

// IncFailure increments the failure counter for component/op.
func (m *StoreMetrics) IncFailure(component, op string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(component), normalizeLabel(op)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
