// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

// Package config loads Marketcast configuration with Koanf v2.
//
// Configuration is layered, later layers overriding earlier ones:
//
//  1. Built-in defaults (defaultConfig)
//  2. An optional YAML file (CONFIG_PATH, or config.yaml in the working directory)
//  3. Environment variables listed in envMappings
//
// Durations accept Go duration strings ("30s", "24h"). CORS_ORIGINS accepts a
// comma-separated list.
//
// Example config.yaml:
//
//	database:
//	  path: /data/marketcast.duckdb
//	forecast:
//	  algorithm: ridge
//	  staleness_months: 6
//	retrain:
//	  interval: 24h
//	weather:
//	  enabled: true
//	  url: https://weather.internal/api/v1
package config
