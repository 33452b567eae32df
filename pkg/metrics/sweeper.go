package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SweeperMetrics records outcomes of the expiry sweep.
type SweeperMetrics struct {
	duration       *prometheus.HistogramVec
	success        *prometheus.CounterVec
	failure        *prometheus.CounterVec
	expired        prometheus.Counter
	refundFailures prometheus.Counter
}

// NewSweeperMetrics registers sweep metrics on the provided registerer.
// A nil registerer produces a no-op recorder for tests.
func NewSweeperMetrics(reg prometheus.Registerer) *SweeperMetrics {
	if reg == nil {
		return &SweeperMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sweep_job_duration_seconds",
		Help:    "Duration of sweep jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_job_success",
		Help: "Successful sweep job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_job_failure",
		Help: "Failed sweep job executions.",
	}, []string{"job"})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_jobs_expired_total",
		Help: "Jobs force-moved to refunded_unattended by the sweep.",
	})
	refundFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_refund_failures_total",
		Help: "Expired jobs whose provider refund failed and needs operator reconciliation.",
	})
	reg.MustRegister(duration, success, failure, expired, refundFailures)
	return &SweeperMetrics{
		duration:       duration,
		success:        success,
		failure:        failure,
		expired:        expired,
		refundFailures: refundFailures,
	}
}

// ObserveDuration records the duration for the named job.
func (m *SweeperMetrics) ObserveDuration(job string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (m *SweeperMetrics) IncSuccess(job string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (m *SweeperMetrics) IncFailure(job string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncExpired counts one job locked out by the sweep.
func (m *SweeperMetrics) IncExpired() {
	if m == nil || m.expired == nil {
		return
	}
	m.expired.Inc()
}

// IncRefundFailure counts one refund the provider rejected after lock-out.
func (m *SweeperMetrics) IncRefundFailure() {
	if m == nil || m.refundFailures == nil {
		return
	}
	m.refundFailures.Inc()
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
