// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/marketcast/internal/forecast"
	"github.com/tomtom215/marketcast/internal/logging"
	"github.com/tomtom215/marketcast/internal/metrics"
)

// AccuracyEvaluator computes a vendor's trailing accuracy. *forecast.Service
// satisfies it.
type AccuracyEvaluator interface {
	ComputeVendorAccuracy(ctx context.Context, vendorID string, daysBack int) (*forecast.AccuracyReport, error)
}

// AccuracyMonitor recomputes vendor accuracy whenever feedback arrives and
// flags vendors below the success criterion.
type AccuracyMonitor struct {
	evaluator AccuracyEvaluator
	window    int
	logger    zerolog.Logger
}

// NewAccuracyMonitor creates a monitor over a trailing window of days.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAccuracyMonitor(evaluator AccuracyEvaluator, windowDays int, logger zerolog.Logger) *AccuracyMonitor {
	if windowDays < 1 {
		windowDays = 30
	}
	return &AccuracyMonitor{
		evaluator: evaluator,
		window:    windowDays,
		logger:    logger.With().Str("component", "accuracy_monitor").Logger(),
	}
}

// Handle consumes one feedback.recorded message. Malformed payloads are
// dropped. Evaluation errors are returned so the router retries them.
func (m *AccuracyMonitor) Handle(msg *message.Message) error {
	ev, err := DecodeFeedbackRecorded(msg)
	if err != nil {
		m.logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping malformed feedback event")
		return nil
	}

	ctx := logging.ContextWithVendorID(msg.Context(), ev.VendorID)
	if id := msg.Metadata.Get(MetadataCorrelationID); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	}

	report, err := m.evaluator.ComputeVendorAccuracy(ctx, ev.VendorID, m.window)
	if err != nil {
		return fmt.Errorf("compute accuracy for %s: %w", ev.VendorID, err)
	}

	metrics.VendorAccuracyRate.WithLabelValues(ev.VendorID).Set(report.Metrics.AccuracyRate)
	if report.Metrics.Total > 0 && !report.MeetsTarget {
		metrics.AccuracyBelowTarget.WithLabelValues(ev.VendorID).Inc()
		m.logger.Warn().
			Str("vendor_id", ev.VendorID).
			Str("correlation_id", logging.CorrelationIDFromContext(ctx)).
			Float64("accuracy_rate", report.Metrics.AccuracyRate).
			Float64("target", report.Target).
			Int("feedback_count", report.Metrics.Total).
			Int("window_days", m.window).
			Msg("Vendor accuracy below target")
		return nil
	}

	m.logger.Debug().
		Str("vendor_id", ev.VendorID).
		Float64("accuracy_rate", report.Metrics.AccuracyRate).
		Msg("Vendor accuracy updated")
	return nil
}
