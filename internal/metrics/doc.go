// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

// Package metrics defines the Prometheus instrumentation for Marketcast.
//
// All collectors are registered on the default registry through promauto and
// exposed by the API at /metrics. Forecast metrics are split by path (ml or
// fallback) so a rising fallback share shows up before accuracy degrades.
package metrics
