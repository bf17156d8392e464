package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CreditLockMetrics records relationship-lock acquisition behavior.
type CreditLockMetrics struct {
	attempts *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	waitTime *prometheus.HistogramVec
}

// NewCreditLockMetrics registers the credit lock metrics on the provided registerer.
func NewCreditLockMetrics(reg prometheus.Registerer) *CreditLockMetrics {
	if reg == nil {
		return &CreditLockMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_lock_attempts_total",
		Help: "Lock acquisition attempts, including retries.",
	}, []string{"result"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_reservation_outcomes_total",
		Help: "Terminal reservation outcomes.",
	}, []string{"outcome"})
	waitTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "credit_lock_wait_seconds",
		Help:    "Total time spent acquiring the relationship lock.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	reg.MustRegister(attempts, outcomes, waitTime)
	return &CreditLockMetrics{
		attempts: attempts,
		outcomes: outcomes,
		waitTime: waitTime,
	}
}

// IncAttempt counts one lock acquisition attempt with its result
// (acquired, busy, error).
func (m *CreditLockMetrics) IncAttempt(result string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncOutcome counts a terminal reservation outcome
// (reserved, insufficient, blocked, lock_timeout).
func (m *CreditLockMetrics) IncOutcome(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveWait records how long the caller waited for the lock.
func (m *CreditLockMetrics) ObserveWait(result string, duration time.Duration) {
	if m == nil || m.waitTime == nil {
		return
	}
	m.waitTime.WithLabelValues(normalizeLabel(result)).Observe(duration.Seconds())
}
