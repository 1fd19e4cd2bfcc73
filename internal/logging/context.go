// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey int

const (
	traceKey contextKey = iota
	loggerKey
)

// trace holds the identifiers attached to every log line of a request or
// event. It is copied on each update so parent contexts never change.
type trace struct {
	correlationID string
	requestID     string
	vendorID      string
}

func traceFrom(ctx context.Context) trace {
	t, _ := ctx.Value(traceKey).(trace)
	return t
}

func withTrace(ctx context.Context, update func(*trace)) context.Context {
	t := traceFrom(ctx)
	update(&t)
	return context.WithValue(ctx, traceKey, t)
}

// GenerateCorrelationID returns a short (8 character) correlation ID.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// GenerateRequestID returns a full UUID request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithCorrelationID ties ctx to a correlation ID that follows a
// request through published events and their consumers.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return withTrace(ctx, func(t *trace) { t.correlationID = id })
}

// ContextWithNewCorrelationID is ContextWithCorrelationID with a fresh ID.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns the correlation ID in ctx, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return traceFrom(ctx).correlationID
}

// ContextWithRequestID returns a copy of ctx carrying the HTTP request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withTrace(ctx, func(t *trace) { t.requestID = id })
}

// RequestIDFromContext returns the request ID in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	return traceFrom(ctx).requestID
}

// ContextWithVendorID returns a copy of ctx scoped to one vendor.
func ContextWithVendorID(ctx context.Context, vendorID string) context.Context {
	return withTrace(ctx, func(t *trace) { t.vendorID = vendorID })
}

// VendorIDFromContext returns the vendor ID in ctx, or "".
func VendorIDFromContext(ctx context.Context) string {
	return traceFrom(ctx).vendorID
}

// ContextWithLogger makes Ctx use logger instead of the global logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Ctx returns a logger carrying the correlation, request and vendor IDs
// found in ctx.
//
//	logging.Ctx(ctx).Info().Str("product_id", productID).Msg("Recommendation generated")
func Ctx(ctx context.Context) *zerolog.Logger {
	base, ok := ctx.Value(loggerKey).(zerolog.Logger)
	if !ok {
		base = Logger()
	}

	t := traceFrom(ctx)
	if t == (trace{}) {
		return &base
	}
	logCtx := base.With()
	if t.correlationID != "" {
		logCtx = logCtx.Str("correlation_id", t.correlationID)
	}
	if t.requestID != "" {
		logCtx = logCtx.Str("request_id", t.requestID)
	}
	if t.vendorID != "" {
		logCtx = logCtx.Str("vendor_id", t.vendorID)
	}
	l := logCtx.Logger()
	return &l
}

// CtxErr is shorthand for Ctx(ctx).Err(err).
func CtxErr(ctx context.Context, err error) *zerolog.Event {
	return Ctx(ctx).Err(err)
}
