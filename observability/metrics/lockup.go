package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type LockupMetrics struct {
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runsFailed    *prometheus.CounterVec
	stepFailures  *prometheus.CounterVec
	transfers     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
}

var (
	lockupOnce     sync.Once
	lockupRegistry *LockupMetrics
)

// Lockup returns the process-wide lock orchestration metrics.
func Lockup() *LockupMetrics {
	lockupOnce.Do(func() {
		lockupRegistry = &LockupMetrics{
			runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lockup_runs_started_total",
				Help: "Count of lock orchestration runs started by lock kind.",
			}, []string{"kind"}),
			runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lockup_runs_completed_total",
				Help: "Count of runs that produced a lock, by lock kind.",
			}, []string{"kind"}),
			runsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lockup_runs_failed_total",
				Help: "Count of terminally failed runs by lock kind and failure reason.",
			}, []string{"kind", "reason"}),
			stepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lockup_step_failures_total",
				Help: "Count of failed orchestration steps by step kind.",
			}, []string{"step"}),
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lockup_transfers_total",
				Help: "Count of ledger transfers issued by purpose (payment or deposit).",
			}, []string{"purpose"}),
			runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "lockup_run_duration_seconds",
				Help:    "Wall-clock duration of orchestration runs by outcome.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			lockupRegistry.runsStarted,
			lockupRegistry.runsCompleted,
			lockupRegistry.runsFailed,
			lockupRegistry.stepFailures,
			lockupRegistry.transfers,
			lockupRegistry.runDuration,
		)
	})
	return lockupRegistry
}

// RecordRunStarted counts a new orchestration attempt.
func (m *LockupMetrics) RecordRunStarted(kind string) {
	if m == nil {
		return
	}
	m.runsStarted.WithLabelValues(kind).Inc()
}

// RecordRunCompleted counts a successful run and observes its duration.
func (m *LockupMetrics) RecordRunCompleted(kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsCompleted.WithLabelValues(kind).Inc()
	m.runDuration.WithLabelValues("success").Observe(elapsed.Seconds())
}

// RecordRunFailed counts a terminal failure and observes its duration.
func (m *LockupMetrics) RecordRunFailed(kind, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsFailed.WithLabelValues(kind, reason).Inc()
	m.runDuration.WithLabelValues("failure").Observe(elapsed.Seconds())
}

// RecordStepFailure counts a failed step by kind.
func (m *LockupMetrics) RecordStepFailure(step string) {
	if m == nil || step == "" {
		return
	}
	m.stepFailures.WithLabelValues(step).Inc()
}

// RecordTransfer counts an issued ledger transfer by purpose.
func (m *LockupMetrics) RecordTransfer(purpose string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(purpose).Inc()
}
