// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tomtom215/marketcast/internal/config"
	"github.com/tomtom215/marketcast/internal/forecast"
)

// testDBSemaphore serializes DuckDB use across tests; concurrent CGO calls
// from parallel tests can stall under CI load.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB", Threads: 2})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func sale(id, venue string, ts time.Time, items ...forecast.LineItem) forecast.SalesRecord {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity))))
	}
	return forecast.SalesRecord{ID: id, VendorID: "v1", VenueID: venue, Timestamp: ts, Total: total, LineItems: items}
}

func item(product string, qty int, price string) forecast.LineItem {
	return forecast.LineItem{ProductID: product, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

func TestNewCreatesDirectory(t *testing.T) {
	testDBSemaphore <- struct{}{}
	defer func() { <-testDBSemaphore }()

	path := filepath.Join(t.TempDir(), "nested", "marketcast.duckdb")
	db, err := New(&config.DatabaseConfig{Path: path, MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestInsertAndQuerySales(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	records := []forecast.SalesRecord{
		sale("s1", "downtown", at(2026, 6, 1, 9), item("bread", 3, "4.50"), item("jam", 1, "6.00")),
		sale("s2", "riverside", at(2026, 6, 2, 10), item("jam", 2, "6.00")),
		sale("s3", "", at(2026, 6, 3, 11), item("bread", 1, "4.50"), item("bread", 2, "4.50")),
		sale("s4", "downtown", at(2026, 6, 10, 9), item("bread", 5, "4.50")),
	}
	n, err := db.InsertSales(ctx, records)
	if err != nil {
		t.Fatalf("InsertSales() error = %v", err)
	}
	if n != 4 {
		t.Errorf("InsertSales() = %d, want 4", n)
	}

	n, err = db.InsertSales(ctx, records[:2])
	if err != nil {
		t.Fatalf("InsertSales() reimport error = %v", err)
	}
	if n != 0 {
		t.Errorf("InsertSales() reimport = %d, want 0", n)
	}

	tests := []struct {
		name    string
		query   forecast.SalesQuery
		wantIDs []string
	}{
		{"all", forecast.SalesQuery{VendorID: "v1"}, []string{"s4", "s3", "s2", "s1"}},
		{"by product", forecast.SalesQuery{VendorID: "v1", ProductID: "bread"}, []string{"s4", "s3", "s1"}},
		{"by venue", forecast.SalesQuery{VendorID: "v1", VenueID: "downtown"}, []string{"s4", "s1"}},
		{"end exclusive", forecast.SalesQuery{VendorID: "v1", Start: at(2026, 6, 1, 0), End: at(2026, 6, 3, 11)}, []string{"s2", "s1"}},
		{"start inclusive", forecast.SalesQuery{VendorID: "v1", Start: at(2026, 6, 10, 9)}, []string{"s4"}},
		{"other vendor", forecast.SalesQuery{VendorID: "v2"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.QuerySales(ctx, tt.query)
			if err != nil {
				t.Fatalf("QuerySales() error = %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("QuerySales() returned %d records, want %d", len(got), len(tt.wantIDs))
			}
			for i, rec := range got {
				if rec.ID != tt.wantIDs[i] {
					t.Errorf("record %d ID = %q, want %q", i, rec.ID, tt.wantIDs[i])
				}
			}
		})
	}

	got, err := db.QuerySales(ctx, forecast.SalesQuery{VendorID: "v1", ProductID: "jam"})
	if err != nil {
		t.Fatalf("QuerySales() error = %v", err)
	}
	s1 := got[len(got)-1]
	if s1.ID != "s1" || len(s1.LineItems) != 2 {
		t.Fatalf("s1 = %+v, want both line items", s1)
	}
	if !s1.Total.Equal(decimal.RequireFromString("19.50")) {
		t.Errorf("s1 Total = %s, want 19.50", s1.Total)
	}
	if !s1.LineItems[0].UnitPrice.Equal(decimal.RequireFromString("4.50")) {
		t.Errorf("unit price = %s, want 4.50", s1.LineItems[0].UnitPrice)
	}
	if !s1.Timestamp.Equal(at(2026, 6, 1, 9)) {
		t.Errorf("Timestamp = %v, want %v", s1.Timestamp, at(2026, 6, 1, 9))
	}

	noVenue, err := db.QuerySales(ctx, forecast.SalesQuery{VendorID: "v1", Start: at(2026, 6, 3, 0), End: at(2026, 6, 4, 0)})
	if err != nil {
		t.Fatalf("QuerySales() error = %v", err)
	}
	if len(noVenue) != 1 || noVenue[0].VenueID != "" {
		t.Fatalf("s3 = %+v, want empty venue", noVenue)
	}
	if q, _ := noVenue[0].QuantityFor("bread"); q != 3 {
		t.Errorf("QuantityFor(bread) = %d, want 3", q)
	}
}

func TestInsertSalesRejectsMissingIDs(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.InsertSales(context.Background(), []forecast.SalesRecord{{VendorID: "v1", Timestamp: at(2026, 1, 1, 9)}})
	if err == nil {
		t.Fatal("InsertSales() without id should fail")
	}
}

func TestProducts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	products := []*forecast.Product{
		{ID: "bread", VendorID: "v1", Name: "Bread", Price: decimal.NewNullDecimal(decimal.RequireFromString("4.50")), Active: true},
		{ID: "jam", VendorID: "v1", Name: "Jam", Active: true},
		{ID: "retired", VendorID: "v1", Name: "Old", Active: false},
		{ID: "bread", VendorID: "v2", Name: "Other vendor", Active: true},
	}
	for _, p := range products {
		if err := db.UpsertProduct(ctx, p); err != nil {
			t.Fatalf("UpsertProduct(%s) error = %v", p.ID, err)
		}
	}

	p, err := db.GetProduct(ctx, "v1", "bread")
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if !p.Price.Valid || !p.Price.Decimal.Equal(decimal.RequireFromString("4.50")) {
		t.Errorf("Price = %v, want 4.50", p.Price)
	}
	jam, err := db.GetProduct(ctx, "v1", "jam")
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if jam.Price.Valid {
		t.Errorf("jam Price = %v, want null", jam.Price)
	}

	if _, err := db.GetProduct(ctx, "v1", "missing"); !errors.Is(err, forecast.ErrNotFound) {
		t.Errorf("GetProduct(missing) error = %v, want ErrNotFound", err)
	}

	active, err := db.ListActiveProducts(ctx, "v1", 0)
	if err != nil {
		t.Fatalf("ListActiveProducts() error = %v", err)
	}
	if len(active) != 2 || active[0].ID != "bread" || active[1].ID != "jam" {
		t.Errorf("ListActiveProducts() = %+v, want bread, jam", active)
	}
	limited, err := db.ListActiveProducts(ctx, "v1", 1)
	if err != nil {
		t.Fatalf("ListActiveProducts() error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("ListActiveProducts(limit 1) returned %d", len(limited))
	}

	products[1].Active = false
	if err := db.UpsertProduct(ctx, products[1]); err != nil {
		t.Fatalf("UpsertProduct() error = %v", err)
	}
	active, _ = db.ListActiveProducts(ctx, "v1", 0)
	if len(active) != 1 {
		t.Errorf("after deactivation ListActiveProducts() returned %d, want 1", len(active))
	}

	if err := db.UpsertProduct(ctx, &forecast.Product{VendorID: "v1"}); !errors.Is(err, forecast.ErrValidation) {
		t.Errorf("UpsertProduct() without id error = %v, want ErrValidation", err)
	}
}

func testRecommendation(id string) *forecast.Recommendation {
	features := forecast.FeatureVector{DayOfWeek: 5, Month: 6, TempF: 72}
	return &forecast.Recommendation{
		ID:                  id,
		VendorID:            "v1",
		ProductID:           "bread",
		VenueID:             "downtown",
		MarketDate:          time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
		RecommendedQuantity: 24,
		ConfidenceScore:     0.82,
		PredictedRevenue:    decimal.NewNullDecimal(decimal.RequireFromString("108.00")),
		Features:            forecast.FeatureSnapshot{MLUsed: true, Values: features.Map()},
		ModelVersion:        "ridge-20260601T000000",
		CreatedAt:           at(2026, 6, 15, 12),
	}
}

func TestRecommendationRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := testRecommendation("r1")
	if err := db.SaveRecommendation(ctx, rec); err != nil {
		t.Fatalf("SaveRecommendation() error = %v", err)
	}
	if err := db.SaveRecommendation(ctx, rec); !errors.Is(err, forecast.ErrValidation) {
		t.Errorf("duplicate SaveRecommendation() error = %v, want ErrValidation", err)
	}

	got, err := db.GetRecommendation(ctx, "v1", "r1")
	if err != nil {
		t.Fatalf("GetRecommendation() error = %v", err)
	}
	if got.RecommendedQuantity != 24 || got.ConfidenceScore != 0.82 || got.VenueID != "downtown" {
		t.Errorf("GetRecommendation() = %+v", got)
	}
	if !got.MarketDate.Equal(rec.MarketDate) {
		t.Errorf("MarketDate = %v, want %v", got.MarketDate, rec.MarketDate)
	}
	if !got.PredictedRevenue.Valid || !got.PredictedRevenue.Decimal.Equal(decimal.RequireFromString("108")) {
		t.Errorf("PredictedRevenue = %v, want 108", got.PredictedRevenue)
	}
	if !got.Features.MLUsed || got.Features.Values["temp_f"] != 72 {
		t.Errorf("Features = %+v, want ML snapshot with temp_f 72", got.Features)
	}
	if got.UserAccepted || got.ActualQuantityBrought != nil {
		t.Error("new recommendation should not be accepted")
	}

	if _, err := db.GetRecommendation(ctx, "v2", "r1"); !errors.Is(err, forecast.ErrNotFound) {
		t.Errorf("GetRecommendation(other vendor) error = %v, want ErrNotFound", err)
	}

	brought := 20
	if err := db.MarkAccepted(ctx, "v1", "r1", &brought); err != nil {
		t.Fatalf("MarkAccepted() error = %v", err)
	}
	if err := db.MarkAccepted(ctx, "v1", "r1", nil); err != nil {
		t.Fatalf("MarkAccepted(nil) error = %v", err)
	}
	got, _ = db.GetRecommendation(ctx, "v1", "r1")
	if !got.UserAccepted || got.ActualQuantityBrought == nil || *got.ActualQuantityBrought != 20 {
		t.Errorf("after accept = %+v, want accepted with 20 brought", got)
	}
	if err := db.MarkAccepted(ctx, "v1", "missing", nil); !errors.Is(err, forecast.ErrNotFound) {
		t.Errorf("MarkAccepted(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSaveRecommendationValidation(t *testing.T) {
	db := setupTestDB(t)
	tests := []struct {
		name   string
		mutate func(*forecast.Recommendation)
	}{
		{"missing id", func(r *forecast.Recommendation) { r.ID = "" }},
		{"missing product", func(r *forecast.Recommendation) { r.ProductID = "" }},
		{"negative quantity", func(r *forecast.Recommendation) { r.RecommendedQuantity = -1 }},
		{"confidence above one", func(r *forecast.Recommendation) { r.ConfidenceScore = 1.2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testRecommendation("r-" + tt.name)
			tt.mutate(rec)
			if err := db.SaveRecommendation(context.Background(), rec); !errors.Is(err, forecast.ErrValidation) {
				t.Errorf("SaveRecommendation() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestFeedbackStore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"r1", "r2"} {
		if err := db.SaveRecommendation(ctx, testRecommendation(id)); err != nil {
			t.Fatalf("SaveRecommendation(%s) error = %v", id, err)
		}
	}
	fallback := testRecommendation("r3")
	fallback.Features = forecast.FallbackDetail{Base: 5, SaleDays: 2, EventMultiplier: 1, WeatherMultiplier: 1}.Snapshot()
	if err := db.SaveRecommendation(ctx, fallback); err != nil {
		t.Fatalf("SaveRecommendation(r3) error = %v", err)
	}

	rating := 4
	fb := forecast.NewFeedback(testRecommendation("r1"), 30)
	fb.ID = "f1"
	fb.Rating = &rating
	fb.Comments = "sold out by noon"
	fb.ActualRevenue = decimal.NewNullDecimal(decimal.RequireFromString("135.00"))
	fb.CreatedAt = at(2026, 6, 21, 18)
	if err := db.SaveFeedback(ctx, fb); err != nil {
		t.Fatalf("SaveFeedback() error = %v", err)
	}

	dup := *fb
	dup.ID = "f1-again"
	if err := db.SaveFeedback(ctx, &dup); !errors.Is(err, forecast.ErrFeedbackExists) {
		t.Errorf("second SaveFeedback() error = %v, want ErrFeedbackExists", err)
	}

	fb3 := forecast.NewFeedback(fallback, 6)
	fb3.ID = "f3"
	fb3.CreatedAt = at(2026, 6, 25, 18)
	if err := db.SaveFeedback(ctx, fb3); err != nil {
		t.Fatalf("SaveFeedback(f3) error = %v", err)
	}

	all, err := db.ListFeedback(ctx, "v1", time.Time{})
	if err != nil {
		t.Fatalf("ListFeedback() error = %v", err)
	}
	if len(all) != 2 || all[0].ID != "f1" {
		t.Fatalf("ListFeedback() = %+v, want f1, f3", all)
	}
	got := all[0]
	if got.VariancePercentage != 25 || !got.VarianceHigh || got.WasAccurate {
		t.Errorf("derived fields = %+v, want 25%% high", got)
	}
	if got.Rating == nil || *got.Rating != 4 || got.Comments != "sold out by noon" {
		t.Errorf("optional fields = %+v", got)
	}
	if !got.ActualRevenue.Valid || !got.ActualRevenue.Decimal.Equal(decimal.RequireFromString("135")) {
		t.Errorf("ActualRevenue = %v, want 135", got.ActualRevenue)
	}

	recent, err := db.ListFeedback(ctx, "v1", at(2026, 6, 22, 0))
	if err != nil {
		t.Fatalf("ListFeedback(since) error = %v", err)
	}
	if len(recent) != 1 || recent[0].ID != "f3" {
		t.Errorf("ListFeedback(since) = %+v, want f3 only", recent)
	}

	examples, err := db.FeedbackExamples(ctx, "v1")
	if err != nil {
		t.Fatalf("FeedbackExamples() error = %v", err)
	}
	if len(examples) != 2 {
		t.Fatalf("FeedbackExamples() returned %d, want 2", len(examples))
	}
	if !examples[0].Features.MLUsed || examples[0].ActualQuantitySold != 30 {
		t.Errorf("first example = %+v, want ML snapshot sold 30", examples[0])
	}
	if examples[1].Features.MLUsed {
		t.Error("fallback snapshot should not be flagged as ML")
	}

	vendors, err := db.ListVendorsWithFeedback(ctx)
	if err != nil {
		t.Fatalf("ListVendorsWithFeedback() error = %v", err)
	}
	if len(vendors) != 1 || vendors[0] != "v1" {
		t.Errorf("ListVendorsWithFeedback() = %v, want [v1]", vendors)
	}
}

func TestSeedDemoData(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := at(2026, 9, 1, 12)

	n, err := db.SeedDemoData(ctx, now)
	if err != nil {
		t.Fatalf("SeedDemoData() error = %v", err)
	}
	if n == 0 {
		t.Fatal("SeedDemoData() inserted nothing")
	}
	again, err := db.SeedDemoData(ctx, now)
	if err != nil {
		t.Fatalf("second SeedDemoData() error = %v", err)
	}
	if again != 0 {
		t.Errorf("second SeedDemoData() = %d, want 0", again)
	}

	products, err := db.ListActiveProducts(ctx, DemoVendorID, 0)
	if err != nil {
		t.Fatalf("ListActiveProducts() error = %v", err)
	}
	if len(products) != len(demoProducts) {
		t.Errorf("demo products = %d, want %d", len(products), len(demoProducts))
	}

	sales, err := db.QuerySales(ctx, forecast.SalesQuery{VendorID: DemoVendorID, ProductID: "sourdough", End: now})
	if err != nil {
		t.Fatalf("QuerySales() error = %v", err)
	}
	days := make(map[string]struct{})
	for _, s := range sales {
		if !s.Timestamp.Before(now) {
			t.Fatalf("seeded sale %s at %v is not before now", s.ID, s.Timestamp)
		}
		days[s.Timestamp.Format(time.DateOnly)] = struct{}{}
	}
	if len(days) < 14 {
		t.Errorf("distinct sourdough sale days = %d, want at least 14 for training", len(days))
	}
}
