package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BackendMetrics records HTTP calls made to the commerce backend.
type BackendMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
}

// NewBackendMetrics registers the backend client metrics on the provided registerer.
func NewBackendMetrics(reg prometheus.Registerer) *BackendMetrics {
	if reg == nil {
		return &BackendMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "backend_requests_total",
		Help:      "Backend requests by operation and HTTP status.",
	}, []string{"operation", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Backend request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "backend_retries_total",
		Help:      "Requests retried after a refresh following a 401.",
	}, []string{"operation"})
	reg.MustRegister(requests, duration, retries)
	return &BackendMetrics{
		requests: requests,
		duration: duration,
		retries:  retries,
	}
}

// ObserveRequest records one completed request. status 0 means a transport error.
func (m *BackendMetrics) ObserveRequest(operation string, status int, d time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	op := normalizeLabel(operation)
	m.requests.WithLabelValues(op, label).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// IncRetry counts a retry after refresh for operation.
func (m *BackendMetrics) IncRetry(operation string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(operation)).Inc()
}
