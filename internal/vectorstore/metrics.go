package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsearchd",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Vector store operations by operation and status.",
		},
		[]string{"operation", "status"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docsearchd",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Vector store operation latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	reconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docsearchd",
			Subsystem: "vectorstore",
			Name:      "reconnects_total",
			Help:      "Successful (re)connections to the vector store.",
		},
	)
)

// observeOperation records the outcome and latency of one gateway operation.
func observeOperation(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	operationsTotal.WithLabelValues(operation, status).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
