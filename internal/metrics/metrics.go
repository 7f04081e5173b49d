// Package metrics exposes cleaning run metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/csvcleaner/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "csvcleaner"

// Recorder collects run metrics. It implements core.RunObserver.
type Recorder struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	duration    prometheus.Histogram
	rowsIn      prometheus.Counter
	rowsRemoved prometheus.Counter
	colsRemoved prometheus.Counter
	operations  *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry, including Go runtime
// and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Recorder{
		registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Cleaning runs by outcome (ok or the user-facing error code).",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Time to decode and clean one upload.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}),
		rowsIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_processed_total",
			Help:      "Data rows read from successful uploads.",
		}),
		rowsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_removed_total",
			Help:      "Data rows dropped by cleaning.",
		}),
		colsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "columns_removed_total",
			Help:      "Columns dropped by cleaning.",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_applied_total",
			Help:      "Cleaning operations applied, by name.",
		}, []string{"operation"}),
	}

	reg.MustRegister(r.runs, r.duration, r.rowsIn, r.rowsRemoved, r.colsRemoved, r.operations)
	return r
}

// ObserveRun records the outcome of one run.
func (r *Recorder) ObserveRun(stats core.Stats, duration time.Duration, err error) {
	r.duration.Observe(duration.Seconds())

	if err != nil {
		r.runs.WithLabelValues(core.MapError(err).Code).Inc()
		return
	}

	r.runs.WithLabelValues("ok").Inc()
	r.rowsIn.Add(float64(stats.RowsBefore))
	r.rowsRemoved.Add(float64(stats.RowsRemoved()))
	r.colsRemoved.Add(float64(stats.ColumnsRemoved()))
	for _, op := range stats.Applied {
		r.operations.WithLabelValues(op).Inc()
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
