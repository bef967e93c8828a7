// Package metrics holds the collector's Prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingest outcomes.
const (
	OutcomeStored      = "stored"
	OutcomeDuplicate   = "duplicate"
	OutcomeStoreFailed = "store_failed"
)

var (
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storepulse_events_ingested_total",
			Help: "Events received on the collector endpoint by outcome and event type",
		},
		[]string{"outcome", "type"},
	)

	IngestRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storepulse_ingest_rejected_total",
			Help: "Collector submissions rejected before reaching storage",
		},
		[]string{"reason"},
	)

	StoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storepulse_store_duration_seconds",
			Help:    "Duration of event store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	SummaryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storepulse_summary_duration_seconds",
			Help:    "Duration of summary aggregation in seconds, excluding the range read",
			Buckets: prometheus.DefBuckets,
		},
	)

	SummaryEnvelopes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storepulse_summary_envelopes",
			Help:    "Number of envelopes consumed per summary",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		},
	)

	DedupEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storepulse_dedup_entries",
			Help: "Keys currently held by the in-memory add_to_cart dedup table",
		},
	)

	RetentionDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storepulse_retention_deleted_total",
			Help: "Events removed by the retention cleanup loop",
		},
	)
)

// ObserveStoreOp records the elapsed time since start; use with defer.
func ObserveStoreOp(op string, start time.Time) {
	StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
