// Package metrics provides Prometheus metrics for the underwriting
// pipeline and the prediction API: request counters, latency histograms,
// preprocessing run statistics, and the rolling entropy/confidence gauges
// scraped by external telemetry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus instruments for the service.
type Metrics struct {
	// Serving metrics
	PredictionsTotal   prometheus.Counter   // Rows scored across all requests
	RequestsTotal      prometheus.Counter   // Prediction requests served
	RequestFailures    prometheus.Counter   // Prediction requests rejected or failed
	RequestDuration    prometheus.Histogram // End-to-end inference latency in seconds
	RowLookupMisses    prometheus.Counter   // By-ID lookups that found no application
	AvgEntropy         prometheus.Gauge     // Mean prediction entropy of the last batch
	AvgConfidence      prometheus.Gauge     // Mean prediction confidence of the last batch
	ArtifactLoadErrors prometheus.Counter   // Failed transformer/model loads

	// Pipeline metrics
	PipelineRuns     prometheus.Counter   // Completed preprocessing runs
	PipelineFailures prometheus.Counter   // Aborted preprocessing runs
	PipelineDuration prometheus.Histogram // Full pipeline run duration in seconds
	FeaturesSurvived prometheus.Gauge     // Survivor count of the last run
	FeaturesSelected prometheus.Gauge     // Final selected feature count of the last run
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics against a custom registry, which keeps
// test runs isolated from the global state.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of application rows scored",
		}),
		RequestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_requests_total",
			Help: "Total number of prediction requests served",
		}),
		RequestFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_request_failures_total",
			Help: "Total number of prediction requests rejected or failed",
		}),
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_request_duration_seconds",
			Help:    "End-to-end prediction request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		RowLookupMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "row_lookup_misses_total",
			Help: "Total number of by-ID lookups that found no application",
		}),
		AvgEntropy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "api_prediction_entropy",
			Help: "Mean prediction entropy of the most recent batch",
		}),
		AvgConfidence: factory.NewGauge(prometheus.GaugeOpts{
			Name: "api_avg_confidence",
			Help: "Mean prediction confidence of the most recent batch",
		}),
		ArtifactLoadErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "artifact_load_errors_total",
			Help: "Total number of failed transformer or model loads",
		}),
		PipelineRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of completed preprocessing runs",
		}),
		PipelineFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_failures_total",
			Help: "Total number of aborted preprocessing runs",
		}),
		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Full preprocessing pipeline run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		FeaturesSurvived: factory.NewGauge(prometheus.GaugeOpts{
			Name: "features_survived",
			Help: "Survivor feature count of the most recent pipeline run",
		}),
		FeaturesSelected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "features_selected",
			Help: "Final selected feature count of the most recent pipeline run",
		}),
	}
}
