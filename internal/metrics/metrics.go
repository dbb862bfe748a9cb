// Package metrics exposes the operator-visible signals for this pipeline:
// failed-queue depth, finalised-batch counts, per-clip failure counts, and
// per-stage durations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FailedQueueDepth tracks the length of the `failed` queue as observed
	// by the last poll; operators alert on sustained growth.
	FailedQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "audio_pipeline",
		Name:      "failed_queue_depth",
		Help:      "Number of entries currently on the failed queue.",
	})

	// BatchesFinalized counts batches that completed finalisation.
	BatchesFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "audio_pipeline",
		Name:      "batches_finalized_total",
		Help:      "Total number of batches that reached finalisation.",
	})

	// RecordsFailed counts per-clip terminal failures, labeled by the stage
	// that produced the failure (transcribe, classify, upload, persist).
	RecordsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audio_pipeline",
		Name:      "records_failed_total",
		Help:      "Total number of audio records that terminally failed, by stage.",
	}, []string{"stage"})

	// StageDuration observes wall-clock time spent in each pipeline stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "audio_pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Duration of each pipeline stage.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})
)
