// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package forecast

import (
	"context"
	"time"
)

// Venue confidence levels.
const (
	ConfidenceNewVenue = 0.3
	ConfidenceStale    = 0.5
	ConfidenceSparse   = 0.4
	ConfidenceLow      = 0.6
	ConfidenceHigh     = 0.85

	sparseSales = 3
	denseSales  = 20

	daysPerMonth = 30.0
)

// ConfidenceModel scores how much venue history backs a prediction.
type ConfidenceModel struct {
	history SalesHistoryAccessor
	cfg     Config
	now     Clock
}

// NewConfidenceModel creates a confidence model over history.
func NewConfidenceModel(history SalesHistoryAccessor, cfg Config, now Clock) *ConfidenceModel {
	if now == nil {
		now = time.Now
	}
	return &ConfidenceModel{history: history, cfg: cfg, now: now}
}

// Score returns the confidence for selling productID at venueID on marketDate.
func (m *ConfidenceModel) Score(ctx context.Context, vendorID, venueID, productID string, marketDate time.Time) (float64, error) {
	end := dayOf(marketDate)
	if now := m.now().UTC(); now.Before(end) {
		end = now
	}
	records, err := m.history.QuerySales(ctx, SalesQuery{
		VendorID:  vendorID,
		ProductID: productID,
		VenueID:   venueID,
		End:       end,
	})
	if err != nil {
		return 0, storageError("query venue history", err)
	}

	n := 0
	var last time.Time
	for i := range records {
		r := &records[i]
		if r.VenueID != venueID || !r.Timestamp.Before(end) {
			continue
		}
		if _, ok := r.QuantityFor(productID); !ok {
			continue
		}
		n++
		if r.Timestamp.After(last) {
			last = r.Timestamp
		}
	}
	if n == 0 {
		return ConfidenceNewVenue, nil
	}
	months := float64(daysBetween(last, marketDate)) / daysPerMonth
	return VenueConfidence(n, months, m.cfg.StalenessMonths), nil
}

// VenueConfidence is the piecewise confidence rule. Staleness is checked
// before the sample count, so a large but old history scores ConfidenceStale.
func VenueConfidence(sales int, monthsSinceLast, stalenessMonths float64) float64 {
	switch {
	case sales <= 0:
		return ConfidenceNewVenue
	case monthsSinceLast > stalenessMonths:
		return ConfidenceStale
	case sales >= denseSales:
		return ConfidenceHigh
	case sales >= sparseSales:
		return ConfidenceLow + float64(sales-sparseSales)/float64(denseSales-sparseSales)*(ConfidenceHigh-ConfidenceLow)
	default:
		return ConfidenceSparse
	}
}
