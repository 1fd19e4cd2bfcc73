// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

/*
Package services adapts Marketcast components to suture.Service.

HTTPServerService translates http.Server's ListenAndServe and Shutdown into
a context-aware Serve with a bounded graceful shutdown.

RetrainService calls forecast.Service.RetrainAll on a ticker, optionally once
at startup, with every pass bounded by a timeout. Pass outcomes (replaced,
kept, skipped) are logged; errors are logged and the next tick retries.
*/
package services
