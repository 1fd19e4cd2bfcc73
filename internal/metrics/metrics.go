// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Forecast Metrics
	ForecastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcast_forecasts_total",
			Help: "Total number of generated recommendations by prediction path",
		},
		[]string{"path"}, // "ml", "fallback"
	)

	ForecastFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcast_forecast_failures_total",
			Help: "Internal forecast failures absorbed by the fallback heuristic",
		},
		[]string{"kind"}, // "insufficient_data", "model_failure"
	)

	ForecastConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marketcast_forecast_confidence",
			Help:    "Confidence score assigned to generated recommendations",
			Buckets: []float64{0.3, 0.4, 0.5, 0.6, 0.65, 0.7, 0.8, 0.85, 1},
		},
	)

	ForecastDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketcast_forecast_duration_seconds",
			Help:    "Time taken to generate a single recommendation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	ModelTrainings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcast_model_trainings_total",
			Help: "Per-product model training attempts by outcome",
		},
		[]string{"outcome"}, // "trained", "skipped", "failed"
	)

	BatchProductsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketcast_batch_products_skipped_total",
			Help: "Products skipped during batch generation because of per-product errors",
		},
	)

	// Feedback and Accuracy Metrics
	FeedbackRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcast_feedback_recorded_total",
			Help: "Feedback entries recorded by classification",
		},
		[]string{"classification"}, // "accurate", "variance_high", "variance_low"
	)

	VendorAccuracyRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketcast_vendor_accuracy_rate",
			Help: "Most recent accuracy rate per vendor (0-100)",
		},
		[]string{"vendor_id"},
	)

	AccuracyBelowTarget = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcast_accuracy_below_target_total",
			Help: "Accuracy evaluations that fell below the success criterion",
		},
		[]string{"vendor_id"},
	)

	// Retraining Metrics
	RetrainRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcast_retrain_runs_total",
			Help: "Retraining runs by outcome",
		},
		[]string{"outcome"}, // "replaced", "kept", "skipped", "error"
	)

	ModelMAE = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketcast_model_mae",
			Help: "Held-out mean absolute error of the deployed model per vendor",
		},
		[]string{"vendor_id"},
	)

	// External Provider Metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcast_provider_requests_total",
			Help: "Requests to external context providers",
		},
		[]string{"provider", "result"}, // "success", "failure", "rejected"
	)

	ProviderCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcast_provider_cache_lookups_total",
			Help: "Provider response cache lookups",
		},
		[]string{"provider", "result"}, // "hit", "miss"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketcast_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcast_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcast_events_published_total",
			Help: "Domain events published by topic",
		},
		[]string{"topic", "result"},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordForecast records one generated recommendation.
func RecordForecast(mlUsed bool, confidence float64, duration time.Duration) {
	path := "fallback"
	if mlUsed {
		path = "ml"
	}
	ForecastsTotal.WithLabelValues(path).Inc()
	ForecastConfidence.Observe(confidence)
	ForecastDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// RecordFeedback counts a feedback entry under its classification.
func RecordFeedback(accurate, varianceHigh, varianceLow bool) {
	switch {
	case accurate:
		FeedbackRecorded.WithLabelValues("accurate").Inc()
	case varianceHigh:
		FeedbackRecorded.WithLabelValues("variance_high").Inc()
	case varianceLow:
		FeedbackRecorded.WithLabelValues("variance_low").Inc()
	}
}

// RecordDBQuery records the latency of a DuckDB query and, on failure, its error.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an HTTP request handled by the API.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRetrain records the outcome of a retraining run.
func RecordRetrain(outcome string) {
	RetrainRuns.WithLabelValues(outcome).Inc()
}
