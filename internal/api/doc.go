// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

/*
Package api exposes the forecasting service over HTTP.

Vendors request recommendations for a market date, accept them, report
what they actually sold, and read their accuracy. Every route lives under
/api/v1/vendors/{vendorID}; see NewRouter for the full table.

# Response Envelope

All JSON responses share one shape:

	{
	  "status": "success",
	  "data": {...},
	  "metadata": {"timestamp": "...", "request_id": "...", "duration_ms": 3}
	}

Failures set status to "error" and carry an error object with a code,
a message and optional details:

	VALIDATION_ERROR      400  rejected input (details.field names the field)
	NOT_FOUND             404  unknown recommendation
	CONFLICT              409  feedback already recorded
	RATE_LIMIT_EXCEEDED   429  per-IP limit reached
	SERVICE_UNAVAILABLE   503  storage is down
	INTERNAL_ERROR        500  anything else

# Middleware

Requests pass through request ID propagation (X-Request-ID, also placed in
the logging context), real-IP extraction, panic recovery, Prometheus
metrics, and CORS. Vendor routes add per-IP rate limiting, response
compression and an optional timeout. /metrics and /api/v1/health are not
rate limited.
*/
package api
