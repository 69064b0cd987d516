package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// KeeperMetrics records automation keeper activity: eligibility polls,
// executions, per-leg failures, and execution latency.
type KeeperMetrics struct {
	Polls       *prometheus.CounterVec
	Executions  *prometheus.CounterVec
	LegFailures prometheus.Counter
	Latency     prometheus.Histogram
}

var (
	keeperMetricsOnce sync.Once
	keeperRegistry    *KeeperMetrics
)

// Keeper returns the lazily-initialised keeper metrics, registered against the
// default prometheus registerer.
func Keeper() *KeeperMetrics {
	keeperMetricsOnce.Do(func() {
		keeperRegistry = &KeeperMetrics{
			Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dripline",
				Subsystem: "keeper",
				Name:      "polls_total",
				Help:      "Eligibility checks segmented by outcome.",
			}, []string{"outcome"}),
			Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dripline",
				Subsystem: "keeper",
				Name:      "executions_total",
				Help:      "Execution attempts segmented by result.",
			}, []string{"result"}),
			LegFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dripline",
				Subsystem: "keeper",
				Name:      "leg_failures_total",
				Help:      "Legs that failed inside otherwise committed executions.",
			}),
			Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "dripline",
				Subsystem: "keeper",
				Name:      "execution_duration_seconds",
				Help:      "Latency distribution of ExecuteDCA calls.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			keeperRegistry.Polls,
			keeperRegistry.Executions,
			keeperRegistry.LegFailures,
			keeperRegistry.Latency,
		)
	})
	return keeperRegistry
}
