// Package metrics exposes Prometheus instruments for task operations and the
// weekly triggers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Result labels.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
	ResultSkipped  = "skipped"
)

var (
	// taskOperationsTotal labels: operation (create, update_status, delete),
	// result (success, rejected, error).
	taskOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weeklytasks_task_operations_total",
			Help: "Task lifecycle operations by outcome",
		},
		[]string{"operation", "result"},
	)

	triggerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weeklytasks_trigger_runs_total",
			Help: "Weekly trigger runs by outcome",
		},
		[]string{"trigger", "result"},
	)

	triggerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weeklytasks_trigger_duration_seconds",
			Help:    "Duration of weekly trigger runs in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"trigger"},
	)

	snapshotsWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weeklytasks_snapshots_written_total",
			Help: "Weekly statistics snapshots written",
		},
	)
)

func init() {
	prometheus.MustRegister(taskOperationsTotal)
	prometheus.MustRegister(triggerRunsTotal)
	prometheus.MustRegister(triggerDuration)
	prometheus.MustRegister(snapshotsWrittenTotal)
}

// RecordTaskOperation counts one lifecycle call.
func RecordTaskOperation(operation, result string) {
	taskOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordTriggerRun counts one trigger run and observes how long it took.
func RecordTriggerRun(trigger, result string, durationSeconds float64) {
	triggerRunsTotal.WithLabelValues(trigger, result).Inc()
	if result != ResultSkipped {
		triggerDuration.WithLabelValues(trigger).Observe(durationSeconds)
	}
}

// RecordSnapshots adds n written snapshots.
func RecordSnapshots(n int) {
	if n > 0 {
		snapshotsWrittenTotal.Add(float64(n))
	}
}

// Handler serves the default registry in the text exposition format.
func Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
}
