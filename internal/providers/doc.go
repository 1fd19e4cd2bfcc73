// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

/*
Package providers implements the weather and local-event lookups that feed
the forecast context.

Both clients share the same request path:

 1. A TTL cache keyed by provider, rounded location and date
 2. A token bucket limiter (golang.org/x/time/rate)
 3. A circuit breaker (sony/gobreaker/v2) that opens after consecutive failures
 4. A plain HTTP GET decoded with goccy/go-json

Any failure, including an open breaker, wraps forecast.ErrServiceUnavailable.
The forecast service treats that as "context unknown" and applies neutral
defaults, so a provider outage never fails a recommendation.

Wire formats:

	GET {url}/v1/forecast?lat=..&lon=..&date=YYYY-MM-DD
	{"date":"2026-06-20","temp_f":78,"feels_like_f":80,"humidity":40,"condition":"Sunny"}

	GET {url}/v1/events?lat=..&lon=..&date=YYYY-MM-DD&radius_km=25
	{"events":[{"name":"Jazz Fest","expected_attendance":5000,"is_special":true}]}
*/
package providers
