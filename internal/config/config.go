// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package config

import "time"

// Config holds all application configuration.
type Config struct {
	Logging    LoggingConfig    `koanf:"logging"`
	Database   DatabaseConfig   `koanf:"database"`
	ModelStore ModelStoreConfig `koanf:"model_store"`
	Server     ServerConfig     `koanf:"server"`
	Forecast   ForecastConfig   `koanf:"forecast"`
	Retrain    RetrainConfig    `koanf:"retrain"`
	Weather    ProviderConfig   `koanf:"weather"`
	Events     ProviderConfig   `koanf:"events"`
	Messaging  MessagingConfig  `koanf:"messaging"`
	Accuracy   AccuracyConfig   `koanf:"accuracy"`
}

// LoggingConfig controls the zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig configures the DuckDB store holding sales history,
// recommendations and feedback.
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
	SeedDemoData           bool   `koanf:"seed_demo_data"`
}

// ModelStoreConfig configures where deployed vendor models are persisted.
// An empty Path keeps models in memory only.
type ModelStoreConfig struct {
	Path       string `koanf:"path"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	RateLimitOff    bool          `koanf:"rate_limit_disabled"`
}

// ForecastConfig tunes the forecasting engine.
type ForecastConfig struct {
	LookbackDays            int     `koanf:"lookback_days"`
	MinTrainingDays         int     `koanf:"min_training_days"`
	FallbackWindowDays      int     `koanf:"fallback_window_days"`
	FallbackDefaultQuantity int     `koanf:"fallback_default_quantity"`
	SeasonalityZThreshold   float64 `koanf:"seasonality_z_threshold"`
	SeasonalityMinMonths    int     `koanf:"seasonality_min_months"`
	StalenessMonths         float64 `koanf:"staleness_months"`
	NoVenueConfidence       float64 `koanf:"no_venue_confidence"`
	FallbackConfidence      float64 `koanf:"fallback_confidence"`

	// Algorithm selects the regression trainer: "ridge" or "ols".
	Algorithm   string  `koanf:"algorithm"`
	RidgeLambda float64 `koanf:"ridge_lambda"`

	// BatchLimit caps the number of products per batch generation when the caller gives none.
	BatchLimit int `koanf:"batch_limit"`
}

// RetrainConfig controls feedback-driven retraining.
type RetrainConfig struct {
	Enabled      bool          `koanf:"enabled"`
	OnStartup    bool          `koanf:"on_startup"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MinExamples  int           `koanf:"min_examples"`
	TestFraction float64       `koanf:"test_fraction"`
	Tolerance    float64       `koanf:"tolerance"`
	Seed         int64         `koanf:"seed"`
}

// ProviderConfig configures an external context provider (weather or events).
type ProviderConfig struct {
	Enabled   bool          `koanf:"enabled"`
	URL       string        `koanf:"url"`
	APIKey    string        `koanf:"api_key"`
	Timeout   time.Duration `koanf:"timeout"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
	RateLimit float64       `koanf:"rate_limit"`
	Burst     int           `koanf:"burst"`
	RadiusKm  float64       `koanf:"radius_km"`

	// BreakerFailures consecutive failures open the circuit for BreakerTimeout.
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// MessagingConfig selects the Watermill transport for domain events.
type MessagingConfig struct {
	Enabled        bool   `koanf:"enabled"`
	Transport      string `koanf:"transport"`
	NATSURL        string `koanf:"nats_url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	EmbeddedPort   int    `koanf:"embedded_port"`
	QueueGroup     string `koanf:"queue_group"`
}

// AccuracyConfig controls accuracy monitoring.
type AccuracyConfig struct {
	TargetRate    float64 `koanf:"target_rate"`
	TrendWeeks    int     `koanf:"trend_weeks"`
	MonitorWindow int     `koanf:"monitor_window_days"`
}

// Address returns the host:port the HTTP server listens on.
func (s ServerConfig) Address() string {
	return joinHostPort(s.Host, s.Port)
}
