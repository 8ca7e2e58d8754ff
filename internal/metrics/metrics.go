// internal/metrics/metrics.go

// Package metrics holds the Prometheus collectors for scheduled ticks,
// sweeps, AI calls and slash commands.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nira"

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPanic   = "panic"
)

var (
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total number of scheduled task ticks",
		},
		[]string{"task", "status"}, // status: success, error, panic
	)

	tickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of scheduled task ticks in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"task"},
	)

	sweepRemovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_removed_total",
			Help:      "Total number of expired records removed by sweeps",
		},
		[]string{"store"},
	)

	aiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "Total number of AI completion requests",
		},
		[]string{"provider", "model", "status"},
	)

	aiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_request_duration_seconds",
			Help:      "Duration of AI completion requests in seconds",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of handled interactions",
		},
		[]string{"command", "status"},
	)

	allMetrics = []prometheus.Collector{
		ticksTotal,
		tickDuration,
		sweepRemovedTotal,
		aiRequestsTotal,
		aiRequestDuration,
		commandsTotal,
	}
)

// NewRegistry returns a registry with every NIRA collector plus the Go
// runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, collector := range allMetrics {
		reg.MustRegister(collector)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// RecordTick records one scheduled tick.
func RecordTick(task, status string, durationSeconds float64) {
	tickDuration.WithLabelValues(task).Observe(durationSeconds)
	ticksTotal.WithLabelValues(task, status).Inc()
}

// RecordSweep records records removed by a sweep.
func RecordSweep(store string, removed int) {
	if removed > 0 {
		sweepRemovedTotal.WithLabelValues(store).Add(float64(removed))
	}
}

// RecordAIRequest records one completion call.
func RecordAIRequest(provider, model, status string, durationSeconds float64) {
	aiRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	aiRequestsTotal.WithLabelValues(provider, model, status).Inc()
}

// RecordCommand records one handled interaction.
func RecordCommand(command, status string) {
	commandsTotal.WithLabelValues(command, status).Inc()
}

// StatusOf maps an error to a status label.
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
