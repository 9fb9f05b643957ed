package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ValidatorCoreCollector exposes Vote Tower and Page Engine metrics
// through the real Prometheus client library, independent of this
// package's own hand-rolled Registry/PrometheusExporter pair. It is
// meant to be registered directly with prometheus.DefaultRegisterer (or
// a dedicated prometheus.Registry) by the node that embeds both
// subsystems.
type ValidatorCoreCollector struct {
	EpochCredits    prometheus.Counter
	SlashesDetected prometheus.Counter
	VotesProcessed  *prometheus.CounterVec // label "result": accepted|rejected

	BatchLatency    prometheus.Histogram
	CallsCommitted  prometheus.Counter
	CallsDiscarded  *prometheus.CounterVec // label "reason"
	PageTableSize   prometheus.Gauge
}

// NewValidatorCoreCollector builds the metric set under namespace
// "validatorcore" and registers every metric with reg.
func NewValidatorCoreCollector(reg prometheus.Registerer) *ValidatorCoreCollector {
	c := &ValidatorCoreCollector{
		EpochCredits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "validatorcore",
			Subsystem: "votetower",
			Name:      "epoch_credits_total",
			Help:      "Total epoch credits earned across all processed roots.",
		}),
		SlashesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "validatorcore",
			Subsystem: "votetower",
			Name:      "slashes_detected_total",
			Help:      "Number of times a vote state latched has_been_slashed.",
		}),
		VotesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "validatorcore",
			Subsystem: "votetower",
			Name:      "votes_processed_total",
			Help:      "Votes processed, partitioned by acceptance result.",
		}, []string{"result"}),
		BatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "validatorcore",
			Subsystem: "pageengine",
			Name:      "batch_latency_seconds",
			Help:      "Wall-clock duration of one ExecuteBatch call.",
			Buckets:   prometheus.DefBuckets,
		}),
		CallsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "validatorcore",
			Subsystem: "pageengine",
			Name:      "calls_committed_total",
			Help:      "Calls whose execution was committed to the page table.",
		}),
		CallsDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "validatorcore",
			Subsystem: "pageengine",
			Name:      "calls_discarded_total",
			Help:      "Calls discarded before or during execution, by reason.",
		}, []string{"reason"}),
		PageTableSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "validatorcore",
			Subsystem: "pageengine",
			Name:      "page_table_size",
			Help:      "Number of pages currently allocated in the page table.",
		}),
	}

	reg.MustRegister(
		c.EpochCredits,
		c.SlashesDetected,
		c.VotesProcessed,
		c.BatchLatency,
		c.CallsCommitted,
		c.CallsDiscarded,
		c.PageTableSize,
	)
	return c
}

// ObserveBatchResults updates the Page Engine metrics from one
// ExecuteBatch call's results and duration.
func (c *ValidatorCoreCollector) ObserveBatchResults(seconds float64, committed int, discardReasons map[string]int) {
	c.BatchLatency.Observe(seconds)
	c.CallsCommitted.Add(float64(committed))
	for reason, n := range discardReasons {
		c.CallsDiscarded.WithLabelValues(reason).Add(float64(n))
	}
}
