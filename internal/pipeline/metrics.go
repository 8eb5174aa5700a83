package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmailsProcessed counts processed emails by mode and result.
	EmailsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailsense",
			Subsystem: "pipeline",
			Name:      "emails_processed_total",
			Help:      "Total number of emails processed by mode and result",
		},
		[]string{"mode", "result"},
	)

	// BatchDuration tracks end-to-end batch processing time.
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mailsense",
			Subsystem: "pipeline",
			Name:      "batch_duration_seconds",
			Help:      "Duration of batch processing runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// EnrichmentSkips counts emails whose enrichment was already on record.
	EnrichmentSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mailsense",
			Subsystem: "pipeline",
			Name:      "enrichment_skips_total",
			Help:      "Total number of emails skipped because enrichment was already stored",
		},
	)
)
