// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateForecast(); err != nil {
		return err
	}
	if err := c.validateRetrain(); err != nil {
		return err
	}
	if err := validateProvider("WEATHER", c.Weather); err != nil {
		return err
	}
	if err := validateProvider("EVENTS", c.Events); err != nil {
		return err
	}
	if err := c.validateMessaging(); err != nil {
		return err
	}
	return c.validateAccuracy()
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be >= 0, got %d", c.Database.Threads)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !c.Server.RateLimitOff && c.Server.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive when rate limiting is enabled")
	}
	return nil
}

func (c *Config) validateForecast() error {
	f := c.Forecast
	switch {
	case f.LookbackDays < 1:
		return fmt.Errorf("forecast.lookback_days must be positive, got %d", f.LookbackDays)
	case f.MinTrainingDays < 1:
		return fmt.Errorf("forecast.min_training_days must be positive, got %d", f.MinTrainingDays)
	case f.FallbackWindowDays < 1:
		return fmt.Errorf("forecast.fallback_window_days must be positive, got %d", f.FallbackWindowDays)
	case f.FallbackDefaultQuantity < 1:
		return fmt.Errorf("forecast.fallback_default_quantity must be at least 1, got %d", f.FallbackDefaultQuantity)
	case f.SeasonalityZThreshold <= 0:
		return fmt.Errorf("forecast.seasonality_z_threshold must be positive, got %v", f.SeasonalityZThreshold)
	case f.SeasonalityMinMonths < 2:
		return fmt.Errorf("forecast.seasonality_min_months must be at least 2, got %d", f.SeasonalityMinMonths)
	case f.StalenessMonths <= 0:
		return fmt.Errorf("forecast.staleness_months must be positive, got %v", f.StalenessMonths)
	case !inUnitInterval(f.NoVenueConfidence):
		return fmt.Errorf("forecast.no_venue_confidence must be in [0,1], got %v", f.NoVenueConfidence)
	case !inUnitInterval(f.FallbackConfidence):
		return fmt.Errorf("forecast.fallback_confidence must be in [0,1], got %v", f.FallbackConfidence)
	case f.RidgeLambda <= 0:
		return fmt.Errorf("forecast.ridge_lambda must be positive, got %v", f.RidgeLambda)
	case f.BatchLimit < 1:
		return fmt.Errorf("forecast.batch_limit must be positive, got %d", f.BatchLimit)
	}
	switch strings.ToLower(f.Algorithm) {
	case "ridge", "ols":
	default:
		return fmt.Errorf("FORECAST_ALGORITHM must be 'ridge' or 'ols', got %q", f.Algorithm)
	}
	return nil
}

func (c *Config) validateRetrain() error {
	r := c.Retrain
	if r.MinExamples < 2 {
		return fmt.Errorf("retrain.min_examples must be at least 2, got %d", r.MinExamples)
	}
	if r.TestFraction <= 0 || r.TestFraction >= 1 {
		return fmt.Errorf("retrain.test_fraction must be in (0,1), got %v", r.TestFraction)
	}
	if r.Tolerance < 1 {
		return fmt.Errorf("RETRAIN_TOLERANCE must be >= 1, got %v", r.Tolerance)
	}
	if r.Enabled && r.Interval <= 0 {
		return fmt.Errorf("RETRAIN_INTERVAL must be positive when retraining is enabled")
	}
	return nil
}

func validateProvider(name string, p ProviderConfig) error {
	if !p.Enabled {
		return nil
	}
	if p.URL == "" {
		return fmt.Errorf("%s_URL is required when %s_ENABLED=true", name, name)
	}
	u, err := url.Parse(p.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s_URL must be an absolute http(s) URL, got %q", name, p.URL)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("%s timeout must be positive", strings.ToLower(name))
	}
	if p.RateLimit <= 0 {
		return fmt.Errorf("%s rate_limit must be positive", strings.ToLower(name))
	}
	return nil
}

func (c *Config) validateMessaging() error {
	if !c.Messaging.Enabled {
		return nil
	}
	switch c.Messaging.Transport {
	case "gochannel":
		return nil
	case "nats":
		if !c.Messaging.EmbeddedServer && c.Messaging.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required when MESSAGING_TRANSPORT=nats without an embedded server")
		}
		return nil
	default:
		return fmt.Errorf("MESSAGING_TRANSPORT must be 'gochannel' or 'nats', got %q", c.Messaging.Transport)
	}
}

func (c *Config) validateAccuracy() error {
	if c.Accuracy.TargetRate < 0 || c.Accuracy.TargetRate > 100 {
		return fmt.Errorf("ACCURACY_TARGET_RATE must be between 0 and 100, got %v", c.Accuracy.TargetRate)
	}
	if c.Accuracy.TrendWeeks < 1 {
		return fmt.Errorf("accuracy.trend_weeks must be positive, got %d", c.Accuracy.TrendWeeks)
	}
	if c.Accuracy.MonitorWindow < 1 {
		return fmt.Errorf("accuracy.monitor_window_days must be positive, got %d", c.Accuracy.MonitorWindow)
	}
	return nil
}

func inUnitInterval(v float64) bool {
	return v >= 0 && v <= 1
}
