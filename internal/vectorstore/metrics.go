package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts store operations by operation and result.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailsense",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector store operations",
		},
		[]string{"operation", "result"},
	)

	// OperationDuration tracks how long store operations take.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mailsense",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// DocumentsStored counts documents written to the store.
	DocumentsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mailsense",
			Subsystem: "vectorstore",
			Name:      "documents_stored_total",
			Help:      "Total number of documents written to the vector store",
		},
	)

	// IsolationRejections counts operations refused for missing or invalid
	// owner context. A nonzero value under normal operation points at a
	// caller that forgot ContextWithOwner.
	IsolationRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mailsense",
			Subsystem: "vectorstore",
			Name:      "isolation_rejections_total",
			Help:      "Total number of operations rejected by owner isolation",
		},
	)
)

// RecordOperation records one store operation outcome.
func RecordOperation(operation string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	OperationsTotal.WithLabelValues(operation, result).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
