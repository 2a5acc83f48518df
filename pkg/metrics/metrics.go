// Package metrics records provisioning operation outcomes for Prometheus.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pgprovision"

var (
	registry = prometheus.NewRegistry()

	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Number of administrative operations, by operation and outcome status.",
		},
		[]string{"operation", "status"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of administrative operations.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		},
		[]string{"operation"},
	)

	rowsLoadedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Number of rows bulk-loaded into destination tables.",
		},
		[]string{"table"},
	)
)

func init() {
	registry.MustRegister(operationsTotal, operationDuration, rowsLoadedTotal)
}

// ObserveOperation records one finished operation.
func ObserveOperation(operation, status string, elapsed time.Duration) {
	operationsTotal.WithLabelValues(operation, status).Inc()
	operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// AddRowsLoaded records rows loaded into table.
func AddRowsLoaded(table string, rows int64) {
	if rows > 0 {
		rowsLoadedTotal.WithLabelValues(table).Add(float64(rows))
	}
}

// Gatherer exposes the registry.
func Gatherer() prometheus.Gatherer {
	return registry
}

// WriteTextfile writes all metrics to path in the text exposition format, for the
// node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return errors.Wrapf(err, "writing metrics to %s", path)
	}
	return nil
}

// Reset clears all recorded values.
func Reset() {
	operationsTotal.Reset()
	operationDuration.Reset()
	rowsLoadedTotal.Reset()
}
