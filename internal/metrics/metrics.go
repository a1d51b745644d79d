// Package metrics provides Prometheus metrics collection for tickbayes.
// It defines the fetch, parse, training and evaluation metrics that are
// exposed via the Prometheus metrics endpoint when running in serve mode.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of a run.
type Metrics struct {
	// Data source metrics
	FetchesTotal  prometheus.Counter   // Total number of intraday fetches
	FetchFailures prometheus.Counter   // Total number of failed fetches
	FetchLatency  prometheus.Histogram // Fetch latency in seconds

	// Parse metrics
	ObservationsParsed prometheus.Counter // Total number of observations parsed
	ParseFallbacks     prometheus.Counter // Total number of price/volume values replaced by a fallback
	OrderInversions    prometheus.Gauge   // Out-of-order adjacent pairs in the last series

	// ML metrics
	MLFits             prometheus.Counter   // Total number of fitted models
	MLFitLatency       prometheus.Histogram // Fit latency in seconds
	MLPredictions      prometheus.Counter   // Total number of predicted rows
	RunFailures        prometheus.Counter   // Total number of failed runs
	MLAccuracy         prometheus.Histogram // Distribution of in-sample accuracy
	MLAccuracyLast     prometheus.Gauge     // Accuracy of the last run
	MLPredictionScores prometheus.Histogram // Distribution of mean prediction confidence

	// System metrics
	RunsTotal   prometheus.Counter // Total number of completed runs
	LastRunTime prometheus.Gauge   // Unix time of the last completed run
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		FetchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fetches_total",
			Help: "Total number of intraday series fetches",
		}),
		FetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "fetch_failures_total",
			Help: "Total number of failed intraday series fetches",
		}),
		FetchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fetch_latency_seconds",
			Help:    "Intraday series fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ObservationsParsed: factory.NewCounter(prometheus.CounterOpts{
			Name: "observations_parsed_total",
			Help: "Total number of observations parsed",
		}),
		ParseFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "parse_fallbacks_total",
			Help: "Total number of unparseable price or volume values replaced by a fallback",
		}),
		OrderInversions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "order_inversions",
			Help: "Adjacent out-of-order timestamp pairs in the last series",
		}),
		MLFits: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_fits_total",
			Help: "Total number of fitted models",
		}),
		MLFitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_fit_latency_seconds",
			Help:    "Model fit latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of predicted rows",
		}),
		RunFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "run_failures_total",
			Help: "Total number of runs that failed at any stage",
		}),
		MLAccuracy: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_accuracy",
			Help:    "In-sample accuracy of fitted models",
			Buckets: []float64{0.5, 0.55, 0.6, 0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1.0},
		}),
		MLAccuracyLast: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_accuracy_last",
			Help: "In-sample accuracy of the last fitted model",
		}),
		MLPredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_scores",
			Help:    "Distribution of mean posterior confidence per run",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		RunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "runs_total",
			Help: "Total number of completed runs",
		}),
		LastRunTime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}
