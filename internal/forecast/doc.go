// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

// Package forecast implements venue-aware inventory demand forecasting.
//
// # Pipeline
//
// A recommendation is produced by the Engine in three steps:
//
//   - Training: each product is trained at most once per engine instance
//     from its sales history (ridge regression by default, OLS optional).
//     Products with fewer than MinTrainingDays distinct sale days are skipped.
//   - Prediction: the FeatureEngineer builds a fixed FeatureVector and the
//     vendor's deployed model (or the product model) predicts a quantity,
//     rounded and clamped to at least 1.
//   - Fallback: any internal failure is typed as a *ForecastFailure and the
//     FallbackHeuristic answers with confidence 0.5.
//
// Only ErrStorageUnavailable escapes the engine. Everything else degrades to
// the heuristic so a vendor always receives a usable quantity.
//
// # Confidence
//
// Successful predictions with a venue are scored by the ConfidenceModel from
// the number of venue sales and their staleness. Without a venue the score is
// Config.NoVenueConfidence.
//
// # Feedback Loop
//
// Feedback derives variance fields once via NewFeedback. The AccuracyTracker
// aggregates them, and the RetrainingCoordinator fits a new vendor model on
// feedback whose recommendation used the ML path. The Registry swaps the new
// model in atomically only when its held-out MAE does not exceed the deployed
// model's by more than Tolerance.
//
// # Usage
//
//	svc, err := forecast.NewService(forecast.DefaultConfig(), forecast.ServiceDeps{
//	    History: db,
//	    Catalog: db,
//	    Store:   db,
//	}, logger)
//	rec, err := svc.GenerateRecommendation(ctx, forecast.GenerateRequest{
//	    VendorID:   "v1",
//	    ProductID:  "sourdough",
//	    MarketDate: marketDate,
//	})
package forecast
