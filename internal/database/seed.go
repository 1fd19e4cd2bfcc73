// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package database

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tomtom215/marketcast/internal/forecast"
	"github.com/tomtom215/marketcast/internal/logging"
)

// DemoVendorID owns the data created by SeedDemoData.
const DemoVendorID = "demo-vendor"

type demoProduct struct {
	id    string
	name  string
	price string
	base  float64
}

var demoProducts = []demoProduct{
	{"sourdough", "Sourdough Loaf", "8.50", 18},
	{"honey-jar", "Wildflower Honey", "12.00", 7},
	{"cut-flowers", "Seasonal Bouquet", "15.00", 10},
}

var demoVenues = []struct {
	id     string
	factor float64
}{
	{"downtown-market", 1.3},
	{"riverside-market", 0.8},
}

// SeedDemoData creates a demo vendor with roughly 120 days of Saturday and
// Wednesday market sales ending before now. It does nothing when the demo
// vendor already has sales.
func (db *DB) SeedDemoData(ctx context.Context, now time.Time) (int, error) {
	var existing int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sales WHERE vendor_id = ?`, DemoVendorID).Scan(&existing); err != nil {
		return 0, fmt.Errorf("failed to check demo data: %w", err)
	}
	if existing > 0 {
		logging.Info().Int("sales", existing).Msg("Demo data already present, skipping seed")
		return 0, nil
	}

	for _, p := range demoProducts {
		price := decimal.RequireFromString(p.price)
		if err := db.UpsertProduct(ctx, &forecast.Product{
			ID:       p.id,
			VendorID: DemoVendorID,
			Name:     p.name,
			Price:    decimal.NewNullDecimal(price),
			Active:   true,
		}); err != nil {
			return 0, err
		}
	}

	records := demoSales(now)
	n, err := db.InsertSales(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("failed to seed demo sales: %w", err)
	}
	logging.Info().Int("sales", n).Str("vendor_id", DemoVendorID).Msg("Seeded demo data")
	return n, nil
}

// demoSales is deterministic for a given now.
func demoSales(now time.Time) []forecast.SalesRecord {
	rng := rand.New(rand.NewPCG(42, 7))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var out []forecast.SalesRecord
	for d := 120; d >= 1; d-- {
		day := today.AddDate(0, 0, -d)
		var venue int
		switch day.Weekday() {
		case time.Saturday:
			venue = 0
		case time.Wednesday:
			venue = 1
		default:
			continue
		}
		v := demoVenues[venue]
		seasonal := 1.0
		if m := day.Month(); m >= time.June && m <= time.August {
			seasonal = 1.25
		}

		// Several transactions per market day, each with a subset of products.
		for tx := 0; tx < 6; tx++ {
			rec := forecast.SalesRecord{
				ID:        fmt.Sprintf("demo-%s-%d", day.Format("20060102"), tx),
				VendorID:  DemoVendorID,
				VenueID:   v.id,
				Timestamp: day.Add(time.Duration(8+tx) * time.Hour),
			}
			total := decimal.Zero
			for _, p := range demoProducts {
				mean := p.base * v.factor * seasonal / 6
				qty := int(mean + rng.NormFloat64()*mean*0.3 + 0.5)
				if qty <= 0 {
					continue
				}
				unit := decimal.RequireFromString(p.price)
				rec.LineItems = append(rec.LineItems, forecast.LineItem{ProductID: p.id, Quantity: qty, UnitPrice: unit})
				total = total.Add(unit.Mul(decimal.NewFromInt(int64(qty))))
			}
			if len(rec.LineItems) == 0 {
				continue
			}
			rec.Total = total
			out = append(out, rec)
		}
	}
	return out
}
