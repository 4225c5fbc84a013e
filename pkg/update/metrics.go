package update

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/alertidx/pkg/core"
)

// OperationCount counts update, patch and comment operations by outcome.
var OperationCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "alertidx",
	Subsystem: "update",
	Name:      "operations_total",
	Help:      "Write operations by kind and result.",
}, []string{"op", "result"})

// OperationDuration observes the latency of each operation, including the
// retrieval of the latest version.
var OperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "alertidx",
	Subsystem: "update",
	Name:      "duration_seconds",
	Help:      "Write operation latency by kind.",
	Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
}, []string{"op"})

// BatchSize observes the number of documents per BatchUpdate call.
var BatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "alertidx",
	Subsystem: "update",
	Name:      "batch_size",
	Help:      "Documents per batch update.",
	Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000},
})

// Collectors returns the update metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{OperationCount, OperationDuration, BatchSize}
}

// Operation labels.
const (
	opUpdate        = "update"
	opPatch         = "patch"
	opAddComment    = "add_comment"
	opRemoveComment = "remove_comment"
)

func observe(op string, started time.Time, err error) {
	OperationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	OperationCount.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrOriginalNotFound):
		return "original_not_found"
	case errors.Is(err, core.ErrConflict):
		return "conflict"
	case errors.Is(err, core.ErrInvalidRequest):
		return "invalid"
	default:
		return "error"
	}
}
