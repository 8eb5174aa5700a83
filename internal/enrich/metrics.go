package enrich

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ParseOutcomes counts comprehensive-call parse results by outcome
	// (full, partial, failed).
	ParseOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailsense",
			Subsystem: "enrich",
			Name:      "parse_outcomes_total",
			Help:      "Comprehensive enrichment parse results by outcome",
		},
		[]string{"outcome"},
	)

	// FieldFallbacks counts per-field fallback calls by field.
	FieldFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailsense",
			Subsystem: "enrich",
			Name:      "field_fallbacks_total",
			Help:      "Per-field fallback completion calls by field",
		},
		[]string{"field"},
	)

	// RetryExhaustions counts completion calls whose retry budget ran out.
	RetryExhaustions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailsense",
			Subsystem: "enrich",
			Name:      "retry_exhaustions_total",
			Help:      "Completion calls that exhausted their retry budget",
		},
		[]string{"call"},
	)
)
