// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package forecast

import (
	"fmt"
	"time"
)

// Rolling windows and sentinels used by the feature engineer.
const (
	shortWindowDays  = 7
	mediumWindowDays = 14
	longWindowDays   = 30
	seasonalityDays  = 365

	// NoVenueHistoryDays fills venue_days_since_last when the product was never sold at the venue.
	NoVenueHistoryDays = 999

	// AccuracyBandPct is the |variance%| within which a recommendation counts as accurate.
	AccuracyBandPct = 20.0

	day = 24 * time.Hour
)

// Config holds the forecasting parameters.
type Config struct {
	// LookbackDays bounds the history used for training. Venue statistics
	// read the whole venue history.
	LookbackDays int

	// MinTrainingDays is the number of distinct sale days required to train.
	MinTrainingDays int

	// FallbackWindowDays is the trailing window averaged by the fallback heuristic.
	FallbackWindowDays int

	// FallbackDefaultQuantity is used when the fallback window has no sales.
	FallbackDefaultQuantity int

	// SeasonalityZThreshold is the |z| above which a month is seasonal.
	SeasonalityZThreshold float64

	// SeasonalityMinMonths is the number of distinct months needed before
	// seasonality is evaluated.
	SeasonalityMinMonths int

	// StalenessMonths caps venue confidence when the last sale is older than this.
	StalenessMonths float64

	// NoVenueConfidence is assigned to successful predictions without a venue.
	NoVenueConfidence float64

	// FallbackConfidence is assigned to every fallback recommendation.
	FallbackConfidence float64

	// BatchLimit is the product limit used when a batch request gives none.
	BatchLimit int

	// AccuracyTarget is the success criterion for the accuracy rate (percent).
	AccuracyTarget float64

	// TrendWeeks is the number of trailing weeks in accuracy reports.
	TrendWeeks int

	Retrain RetrainConfig
}

// RetrainConfig controls the retraining coordinator.
type RetrainConfig struct {
	MinExamples  int
	TestFraction float64
	// Tolerance is the allowed MAE ratio new/old for a replacement.
	Tolerance float64
	Seed      int64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		LookbackDays:            365,
		MinTrainingDays:         14,
		FallbackWindowDays:      30,
		FallbackDefaultQuantity: 5,
		SeasonalityZThreshold:   1.5,
		SeasonalityMinMonths:    3,
		StalenessMonths:         6,
		NoVenueConfidence:       0.65,
		FallbackConfidence:      0.5,
		BatchLimit:              50,
		AccuracyTarget:          70,
		TrendWeeks:              8,
		Retrain: RetrainConfig{
			MinExamples:  10,
			TestFraction: 0.2,
			Tolerance:    1.1,
			Seed:         42,
		},
	}
}

// Validate reports the first invalid parameter.
func (c Config) Validate() error {
	switch {
	case c.LookbackDays < 1:
		return fmt.Errorf("lookback days must be positive, got %d", c.LookbackDays)
	case c.MinTrainingDays < 2:
		return fmt.Errorf("min training days must be at least 2, got %d", c.MinTrainingDays)
	case c.FallbackWindowDays < 1:
		return fmt.Errorf("fallback window must be positive, got %d", c.FallbackWindowDays)
	case c.FallbackDefaultQuantity < 1:
		return fmt.Errorf("fallback default quantity must be at least 1, got %d", c.FallbackDefaultQuantity)
	case c.SeasonalityZThreshold <= 0:
		return fmt.Errorf("seasonality z threshold must be positive, got %v", c.SeasonalityZThreshold)
	case c.SeasonalityMinMonths < 2:
		return fmt.Errorf("seasonality min months must be at least 2, got %d", c.SeasonalityMinMonths)
	case c.StalenessMonths <= 0:
		return fmt.Errorf("staleness months must be positive, got %v", c.StalenessMonths)
	case c.NoVenueConfidence < 0 || c.NoVenueConfidence > 1:
		return fmt.Errorf("no-venue confidence must be in [0,1], got %v", c.NoVenueConfidence)
	case c.FallbackConfidence < 0 || c.FallbackConfidence > 1:
		return fmt.Errorf("fallback confidence must be in [0,1], got %v", c.FallbackConfidence)
	case c.BatchLimit < 1:
		return fmt.Errorf("batch limit must be positive, got %d", c.BatchLimit)
	case c.TrendWeeks < 1:
		return fmt.Errorf("trend weeks must be positive, got %d", c.TrendWeeks)
	case c.Retrain.MinExamples < 2:
		return fmt.Errorf("retrain min examples must be at least 2, got %d", c.Retrain.MinExamples)
	case c.Retrain.TestFraction <= 0 || c.Retrain.TestFraction >= 1:
		return fmt.Errorf("retrain test fraction must be in (0,1), got %v", c.Retrain.TestFraction)
	case c.Retrain.Tolerance < 1:
		return fmt.Errorf("retrain tolerance must be >= 1, got %v", c.Retrain.Tolerance)
	}
	return nil
}

// dayOf truncates t to midnight UTC.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole days from a to b.
func daysBetween(a, b time.Time) int {
	return int(dayOf(b).Sub(dayOf(a)) / day)
}
