// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/marketcast/config.yaml",
	"/etc/marketcast/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// sliceConfigPaths are keys that accept comma-separated values from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// envMappings maps lowercased environment variable names to koanf keys.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",
	"seed_demo_data":    "database.seed_demo_data",

	"model_store_path": "model_store.path",

	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",

	"forecast_lookback_days":           "forecast.lookback_days",
	"forecast_min_training_days":       "forecast.min_training_days",
	"forecast_staleness_months":        "forecast.staleness_months",
	"forecast_seasonality_z_threshold": "forecast.seasonality_z_threshold",
	"forecast_algorithm":               "forecast.algorithm",
	"forecast_ridge_lambda":            "forecast.ridge_lambda",
	"forecast_batch_limit":             "forecast.batch_limit",

	"retrain_enabled":    "retrain.enabled",
	"retrain_on_startup": "retrain.on_startup",
	"retrain_interval":   "retrain.interval",
	"retrain_tolerance":  "retrain.tolerance",

	"weather_enabled":   "weather.enabled",
	"weather_url":       "weather.url",
	"weather_api_key":   "weather.api_key",
	"weather_cache_ttl": "weather.cache_ttl",

	"events_enabled": "events.enabled",
	"events_url":     "events.url",
	"events_api_key": "events.api_key",

	"messaging_enabled":   "messaging.enabled",
	"messaging_transport": "messaging.transport",
	"nats_url":            "messaging.nats_url",
	"nats_embedded":       "messaging.embedded_server",
	"nats_embedded_port":  "messaging.embedded_port",

	"accuracy_target_rate": "accuracy.target_rate",
}

// defaultConfig returns the configuration applied before file and environment layers.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Path:      "/data/marketcast.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		ModelStore: ModelStoreConfig{
			Path:       "/data/models",
			SyncWrites: true,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Forecast: ForecastConfig{
			LookbackDays:            365,
			MinTrainingDays:         14,
			FallbackWindowDays:      30,
			FallbackDefaultQuantity: 5,
			SeasonalityZThreshold:   1.5,
			SeasonalityMinMonths:    3,
			StalenessMonths:         6,
			NoVenueConfidence:       0.65,
			FallbackConfidence:      0.5,
			Algorithm:               "ridge",
			RidgeLambda:             1.0,
			BatchLimit:              50,
		},
		Retrain: RetrainConfig{
			Enabled:      true,
			OnStartup:    false,
			Interval:     24 * time.Hour,
			Timeout:      30 * time.Minute,
			MinExamples:  10,
			TestFraction: 0.2,
			Tolerance:    1.1,
			Seed:         42,
		},
		Weather: ProviderConfig{
			Timeout:   10 * time.Second,
			CacheTTL:  time.Hour,
			RateLimit: 1,
			Burst:     5,

			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Events: ProviderConfig{
			Timeout:   10 * time.Second,
			CacheTTL:  6 * time.Hour,
			RateLimit: 1,
			Burst:     5,
			RadiusKm:  25,

			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Messaging: MessagingConfig{
			Enabled:      true,
			Transport:    "gochannel",
			NATSURL:      "nats://127.0.0.1:4222",
			EmbeddedPort: 4222,
			QueueGroup:   "marketcast",
		},
		Accuracy: AccuracyConfig{
			TargetRate:    70,
			TrendWeeks:    8,
			MonitorWindow: 30,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in increasing priority, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// processSliceFields splits comma-separated strings coming from the
// environment into string slices. Values already loaded as lists are kept.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
