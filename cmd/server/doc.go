// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

/*
Command server runs the Marketcast forecasting API.

Marketcast tells market vendors how much of each product to bring to a
market day. It learns from each vendor's sales history, the venue, weather
and local events, and improves from the feedback vendors report after the
market.

# Startup Order

 1. Configuration: defaults, optional YAML file, then environment (Koanf v2)
 2. Logging: zerolog with the configured level and format
 3. Database: DuckDB sales, catalog, recommendation and feedback tables
 4. Model store: BadgerDB; deployed models are loaded into the registry
 5. Providers: optional weather and events clients with breaker and cache
 6. Messaging: Watermill bus over gochannel or NATS (optionally embedded)
 7. Forecast service
 8. Supervisor tree: model store GC, retrain scheduler, event router and
    the HTTP server, each restarted independently on failure

SIGINT or SIGTERM cancels the tree; the HTTP server drains in-flight
requests before the stores are closed.

# Configuration

Common environment variables:

	DUCKDB_PATH           database file (default /data/marketcast.duckdb)
	MODEL_STORE_PATH      BadgerDB directory (default /data/models)
	HTTP_PORT             listen port (default 8080)
	FORECAST_ALGORITHM    ridge or ols
	RETRAIN_ENABLED       scheduled retraining (default true)
	RETRAIN_INTERVAL      time between passes (default 24h)
	WEATHER_ENABLED       look up weather when requests omit it
	EVENTS_ENABLED        look up local events when requests omit them
	MESSAGING_TRANSPORT   gochannel or nats
	SEED_DEMO_DATA        create a demo vendor on startup

A YAML file at CONFIG_PATH sets any option; see internal/config.
*/
package main
