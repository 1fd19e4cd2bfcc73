// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

/*
Package database is the DuckDB storage layer for Marketcast.

A *DB satisfies the forecast package's storage interfaces:

  - forecast.SalesHistoryAccessor: QuerySales
  - forecast.ProductCatalog: GetProduct, ListActiveProducts
  - forecast.RecommendationStore: recommendations, acceptance and feedback

Usage:

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := forecast.NewService(fcfg, forecast.ServiceDeps{
		History: db,
		Catalog: db,
		Store:   db,
	}, logger)

Unknown IDs are reported as forecast.ErrNotFound and a second feedback for
the same recommendation as forecast.ErrFeedbackExists. Driver errors are
wrapped with the failing operation; the service layer tags them as
forecast.ErrStorageUnavailable.

Every query is timed into the duckdb_query_duration_seconds histogram.
*/
package database
