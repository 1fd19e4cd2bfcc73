// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

/*
Package middleware provides the HTTP middleware shared by the API router.

  - RequestID: X-Request-ID propagation plus request and correlation IDs in
    the logging context
  - PrometheusMetrics: api_requests_total and api_request_duration_seconds by
    chi route pattern, and a per-request access log line

CORS, rate limiting, panic recovery and compression come from go-chi and are
assembled in the api package.
*/
package middleware
