// Package metrics exposes Prometheus instrumentation for the executor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cppexec_executions_total",
			Help: "Total number of code executions by final status",
		},
		[]string{"status"},
	)

	ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cppexec_validations_total",
			Help: "Total number of syntax validations",
		},
		[]string{"valid"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cppexec_pipeline_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"phase"}, // "compile", "run", "total"
	)

	ExecutionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cppexec_executions_in_flight",
			Help: "Number of pipelines currently admitted",
		},
	)
)
