// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

// Package logging provides zerolog-based structured logging for Marketcast.
//
// A single global logger is configured by Init at startup. Components derive
// child loggers with WithComponent, and request-scoped code uses Ctx to pick
// up the correlation, request and vendor IDs stored in the context.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logger := logging.WithComponent("forecast")
//	logger.Info().Str("vendor_id", vendorID).Msg("Batch generated")
//
// # Adapters
//
// Two adapters route third-party logging into zerolog:
//
//   - SlogHandler implements slog.Handler for the suture supervisor hook (sutureslog)
//   - WatermillAdapter implements watermill.LoggerAdapter for the event bus
//
// Always terminate log chains with .Msg() or .Send(); an unterminated event is dropped.
package logging
