package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcomes recorded by SessionMetrics.
const (
	RefreshSuccess    = "success"
	RefreshFailure    = "failure"
	RefreshSuppressed = "suppressed"
	RefreshNoToken    = "no_token"
	RefreshDiscarded  = "discarded"
)

// SessionMetrics records token refresh activity.
type SessionMetrics struct {
	attempts *prometheus.CounterVec
	duration prometheus.Histogram
	signOuts prometheus.Counter
}

// NewSessionMetrics registers the session metrics on the provided registerer.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	if reg == nil {
		return &SessionMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "session_refresh_total",
		Help:      "Token refresh attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "session_refresh_duration_seconds",
		Help:      "Duration of refresh endpoint calls in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
	signOuts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "session_sign_out_total",
		Help:      "Sign-outs, explicit or forced by a failed refresh.",
	})
	reg.MustRegister(attempts, duration, signOuts)
	return &SessionMetrics{
		attempts: attempts,
		duration: duration,
		signOuts: signOuts,
	}
}

// ObserveRefresh counts a refresh attempt with the given outcome.
func (m *SessionMetrics) ObserveRefresh(outcome string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveRefreshDuration records how long the refresh endpoint took.
func (m *SessionMetrics) ObserveRefreshDuration(d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

// IncSignOut increments the sign-out counter.
func (m *SessionMetrics) IncSignOut() {
	if m == nil || m.signOuts == nil {
		return
	}
	m.signOuts.Inc()
}
