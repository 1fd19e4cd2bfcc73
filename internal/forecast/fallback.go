// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package forecast

import (
	"context"
	"strings"
	"time"
)

// Fallback multipliers.
const (
	largeEventAttendance  = 1000
	mediumEventAttendance = 500
	largeEventMultiplier  = 1.5
	mediumEventMultiplier = 1.3
	sunnyMultiplier       = 1.1
	wetMultiplier         = 0.8
)

// FallbackDetail explains how a fallback quantity was derived.
type FallbackDetail struct {
	Base              float64
	SaleDays          int
	EventMultiplier   float64
	WeatherMultiplier float64
}

// Snapshot renders the detail as a feature snapshot with MLUsed unset.
func (d FallbackDetail) Snapshot() FeatureSnapshot {
	return FeatureSnapshot{
		MLUsed: false,
		Values: map[string]float64{
			"fallback_base":      d.Base,
			"fallback_sale_days": float64(d.SaleDays),
			"event_multiplier":   d.EventMultiplier,
			"weather_multiplier": d.WeatherMultiplier,
		},
	}
}

// FallbackHeuristic computes a conservative quantity from the recent average.
type FallbackHeuristic struct {
	history SalesHistoryAccessor
	cfg     Config
	now     Clock
}

// NewFallbackHeuristic creates the heuristic over history.
func NewFallbackHeuristic(history SalesHistoryAccessor, cfg Config, now Clock) *FallbackHeuristic {
	if now == nil {
		now = time.Now
	}
	return &FallbackHeuristic{history: history, cfg: cfg, now: now}
}

// Quantity returns the fallback recommendation, which is always at least 1.
func (h *FallbackHeuristic) Quantity(ctx context.Context, vendorID, productID string, marketDate time.Time, weather *Weather, event *Event) (int, FallbackDetail, error) {
	ref := dayOf(marketDate)
	if now := h.now().UTC(); now.Before(ref) {
		ref = now
	}
	from := ref.Add(-time.Duration(h.cfg.FallbackWindowDays) * day)

	records, err := h.history.QuerySales(ctx, SalesQuery{
		VendorID:  vendorID,
		ProductID: productID,
		Start:     from,
		End:       ref,
	})
	if err != nil {
		return 0, FallbackDetail{}, storageError("query fallback history", err)
	}

	totals := quantities(dailyTotals(collectPoints(records, productID), from, ref, ""))
	detail := FallbackDetail{
		Base:              float64(h.cfg.FallbackDefaultQuantity),
		SaleDays:          len(totals),
		EventMultiplier:   eventMultiplier(event),
		WeatherMultiplier: weatherMultiplier(weather),
	}
	if len(totals) > 0 {
		detail.Base = mean(totals)
	}

	// Multipliers compose before a single truncation.
	qty := int(detail.Base * detail.EventMultiplier * detail.WeatherMultiplier)
	if qty < 1 {
		qty = 1
	}
	return qty, detail, nil
}

func eventMultiplier(e *Event) float64 {
	switch {
	case e == nil:
		return 1
	case e.ExpectedAttendance >= largeEventAttendance:
		return largeEventMultiplier
	case e.ExpectedAttendance >= mediumEventAttendance:
		return mediumEventMultiplier
	default:
		return 1
	}
}

func weatherMultiplier(w *Weather) float64 {
	if w == nil {
		return 1
	}
	cond := strings.ToLower(w.Condition)
	switch {
	case strings.Contains(cond, "sunny"):
		return sunnyMultiplier
	case strings.Contains(cond, "rain"), strings.Contains(cond, "snow"):
		return wetMultiplier
	default:
		return 1
	}
}
