// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package forecast

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

func TestFeatureNamesMatchSlice(t *testing.T) {
	names := FeatureNames()
	if len(names) != NumFeatures {
		t.Fatalf("len(FeatureNames()) = %d, want %d", len(names), NumFeatures)
	}
	if NumFeatures != 20 {
		t.Errorf("NumFeatures = %d, want 20", NumFeatures)
	}
	seen := make(map[string]bool)
	for _, n := range names {
		if seen[n] {
			t.Errorf("duplicate feature name %q", n)
		}
		seen[n] = true
	}
	if names[0] != "day_of_week" || names[len(names)-1] != "seasonal_strength" {
		t.Errorf("unexpected column order: first %q, last %q", names[0], names[len(names)-1])
	}
}

func TestFeatureVectorFromMap(t *testing.T) {
	v := FeatureVector{
		DayOfWeek: 3, Month: 7, DayOfMonth: 12, WeekOfYear: 28,
		TempF: 81.5, FeelsLikeF: 84, Humidity: 40, IsSunny: true,
		ExpectedAttendance: 600, Avg7d: 12.5, Avg14d: 11, Max30d: 20,
		VenueAvg: 9, VenueMax: 14, VenueCount: 6, VenueDaysSinceLast: 7,
		IsSeasonal: true, SeasonalStrength: 0.4,
	}
	got, err := FeatureVectorFromMap(v.Map())
	if err != nil {
		t.Fatalf("FeatureVectorFromMap() error = %v", err)
	}
	if got != v {
		t.Errorf("FeatureVectorFromMap(v.Map()) = %+v, want %+v", got, v)
	}

	m := v.Map()
	delete(m, "humidity")
	if _, err := FeatureVectorFromMap(m); err == nil {
		t.Error("FeatureVectorFromMap() with missing feature should fail")
	}
}

func TestExtractDefaults(t *testing.T) {
	now := date(2026, 6, 20)
	fe := NewFeatureEngineer(&memHistory{}, DefaultConfig(), fixedClock(now))

	tests := []struct {
		name      string
		venueID   string
		wantSince int
	}{
		{"no venue", "", 0},
		{"venue without history", "park", NoVenueHistoryDays},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := fe.Extract(context.Background(), FeatureInput{
				VendorID:   testVendor,
				ProductID:  "bread",
				VenueID:    tt.venueID,
				MarketDate: date(2026, 6, 15),
			})
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if v.TempF != DefaultTempF || v.FeelsLikeF != DefaultTempF || v.Humidity != DefaultHumidity {
				t.Errorf("weather = %v/%v/%v, want defaults", v.TempF, v.FeelsLikeF, v.Humidity)
			}
			if v.IsSunny || v.IsRainy || v.IsSpecialEvent {
				t.Errorf("flags set without context: %+v", v)
			}
			if v.ExpectedAttendance != DefaultAttendance {
				t.Errorf("ExpectedAttendance = %d, want %d", v.ExpectedAttendance, DefaultAttendance)
			}
			if v.Avg7d != 0 || v.Avg14d != 0 || v.Max30d != 0 {
				t.Errorf("rolling = %v/%v/%v, want zeros", v.Avg7d, v.Avg14d, v.Max30d)
			}
			if v.VenueAvg != 0 || v.VenueMax != 0 || v.VenueCount != 0 {
				t.Errorf("venue stats = %v/%v/%v, want zeros", v.VenueAvg, v.VenueMax, v.VenueCount)
			}
			if v.VenueDaysSinceLast != tt.wantSince {
				t.Errorf("VenueDaysSinceLast = %d, want %d", v.VenueDaysSinceLast, tt.wantSince)
			}
			if v.IsSeasonal || v.SeasonalStrength != 0 {
				t.Errorf("seasonality = %v/%v, want false/0", v.IsSeasonal, v.SeasonalStrength)
			}
		})
	}
}

func TestExtractTemporal(t *testing.T) {
	fe := NewFeatureEngineer(&memHistory{}, DefaultConfig(), fixedClock(date(2026, 7, 1)))
	v, err := fe.Extract(context.Background(), FeatureInput{VendorID: testVendor, ProductID: "bread", MarketDate: date(2026, 6, 15)})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if v.DayOfWeek != 1 {
		t.Errorf("DayOfWeek = %d, want 1 (Monday)", v.DayOfWeek)
	}
	if v.Month != 6 || v.DayOfMonth != 15 {
		t.Errorf("Month/DayOfMonth = %d/%d, want 6/15", v.Month, v.DayOfMonth)
	}
	if v.WeekOfYear != 25 {
		t.Errorf("WeekOfYear = %d, want 25", v.WeekOfYear)
	}
}

func TestExtractWeatherFlags(t *testing.T) {
	tests := []struct {
		condition string
		sunny     bool
		rainy     bool
	}{
		{"Sunny", true, false},
		{"Clear skies", true, false},
		{"Light Drizzle", false, true},
		{"Thunderstorm", false, true},
		{"RAINY", false, true},
		{"snow showers", false, true},
		{"Cloudy", false, false},
	}
	fe := NewFeatureEngineer(&memHistory{}, DefaultConfig(), fixedClock(date(2026, 7, 1)))
	for _, tt := range tests {
		t.Run(tt.condition, func(t *testing.T) {
			w := &Weather{TempF: 64, FeelsLikeF: 62, Humidity: 80, Condition: tt.condition}
			v, err := fe.Extract(context.Background(), FeatureInput{VendorID: testVendor, ProductID: "bread", MarketDate: date(2026, 6, 15), Weather: w})
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if v.IsSunny != tt.sunny || v.IsRainy != tt.rainy {
				t.Errorf("sunny/rainy = %v/%v, want %v/%v", v.IsSunny, v.IsRainy, tt.sunny, tt.rainy)
			}
			if v.TempF != 64 || v.FeelsLikeF != 62 || v.Humidity != 80 {
				t.Errorf("weather values not copied: %+v", v)
			}
		})
	}
}

func TestExtractEvent(t *testing.T) {
	fe := NewFeatureEngineer(&memHistory{}, DefaultConfig(), fixedClock(date(2026, 7, 1)))
	v, err := fe.Extract(context.Background(), FeatureInput{
		VendorID:   testVendor,
		ProductID:  "bread",
		MarketDate: date(2026, 6, 15),
		Event:      &Event{Name: "Jazz Fest", ExpectedAttendance: 2500, IsSpecial: true},
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !v.IsSpecialEvent || v.ExpectedAttendance != 2500 {
		t.Errorf("event features = %v/%d, want true/2500", v.IsSpecialEvent, v.ExpectedAttendance)
	}
}

func rollingHistory() *memHistory {
	two := sale("r1b", "park", "bread", date(2026, 6, 14), 6)
	two.Timestamp = two.Timestamp.Add(time.Hour)
	return &memHistory{records: []SalesRecord{
		sale("r1a", "park", "bread", date(2026, 6, 14), 4),
		two,
		sale("r2", "park", "bread", date(2026, 6, 10), 20),
		sale("r3", "hall", "bread", date(2026, 6, 1), 30),
		sale("r4", "hall", "bread", date(2026, 5, 20), 40),
		// Other products and sales on or after the reference day are ignored.
		sale("r5", "park", "jam", date(2026, 6, 12), 99),
		sale("r6", "park", "bread", date(2026, 6, 15), 500),
	}}
}

func TestExtractRollingAndVenue(t *testing.T) {
	fe := NewFeatureEngineer(rollingHistory(), DefaultConfig(), fixedClock(date(2026, 6, 20)))
	v, err := fe.Extract(context.Background(), FeatureInput{
		VendorID:   testVendor,
		ProductID:  "bread",
		VenueID:    "park",
		MarketDate: date(2026, 6, 15),
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"avg_7d", v.Avg7d, 15},
		{"avg_14d", v.Avg14d, 20},
		{"max_30d", v.Max30d, 40},
		{"venue_avg", v.VenueAvg, 15},
		{"venue_max", v.VenueMax, 20},
		{"venue_count", float64(v.VenueCount), 3},
		{"venue_days_since_last", float64(v.VenueDaysSinceLast), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestExtractFutureMarketDateUsesClock(t *testing.T) {
	// The clock is before the market date, so windows end at the clock.
	fe := NewFeatureEngineer(rollingHistory(), DefaultConfig(), fixedClock(date(2026, 6, 11)))
	v, err := fe.Extract(context.Background(), FeatureInput{VendorID: testVendor, ProductID: "bread", MarketDate: date(2026, 6, 15)})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	// [06-04, 06-11) only holds the 06-10 sale.
	if v.Avg7d != 20 {
		t.Errorf("Avg7d = %v, want 20", v.Avg7d)
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	fe := NewFeatureEngineer(rollingHistory(), DefaultConfig(), fixedClock(date(2026, 6, 20)))
	in := FeatureInput{
		VendorID:   testVendor,
		ProductID:  "bread",
		VenueID:    "park",
		MarketDate: date(2026, 6, 15),
		Weather:    &Weather{TempF: 75, FeelsLikeF: 77, Humidity: 30, Condition: "sunny"},
		Event:      &Event{ExpectedAttendance: 800},
	}
	first, err := fe.Extract(context.Background(), in)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	second, err := fe.Extract(context.Background(), in)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Extract() not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestExtractStorageError(t *testing.T) {
	fe := NewFeatureEngineer(&memHistory{err: errors.New("connection refused")}, DefaultConfig(), nil)
	_, err := fe.Extract(context.Background(), FeatureInput{VendorID: testVendor, ProductID: "bread", MarketDate: date(2026, 6, 15)})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Extract() error = %v, want ErrStorageUnavailable", err)
	}
}

// seasonalHistory sells 10 a day on the first ten days of each listed month
// of 2026, except June, which sells juneQty a day.
func seasonalHistory(months []time.Month, juneQty int) *memHistory {
	h := &memHistory{}
	for _, m := range months {
		qty := 10
		if m == time.June {
			qty = juneQty
		}
		for d := 1; d <= 10; d++ {
			h.records = append(h.records, sale("s", "", "bread", date(2026, m, d), qty))
		}
	}
	return h
}

func TestExtractSeasonality(t *testing.T) {
	sixMonths := []time.Month{time.January, time.February, time.March, time.April, time.May, time.June}
	// With six selling months the twelve month profile is five 10s, one
	// June value and six zeros.
	tests := []struct {
		name         string
		history      *memHistory
		marketDate   time.Time
		wantSeasonal bool
		wantStrength float64
	}{
		{
			// mean 12.5, std ~26.8, z ~3.3
			name:         "peak month",
			history:      seasonalHistory(sixMonths, 100),
			marketDate:   date(2026, 6, 15),
			wantSeasonal: true,
			wantStrength: 87.5 / 13.5,
		},
		{
			name:         "ordinary month",
			history:      seasonalHistory(sixMonths, 100),
			marketDate:   date(2027, 5, 15),
			wantSeasonal: false,
			wantStrength: -2.5 / 13.5,
		},
		{
			// Apr and May at 10, June at 1000: mean 85, std ~275.9, z ~3.3
			name:         "three selling months",
			history:      seasonalHistory([]time.Month{time.April, time.May, time.June}, 1000),
			marketDate:   date(2026, 6, 15),
			wantSeasonal: true,
			wantStrength: 915.0 / 86.0,
		},
		{
			name:         "fewer than three months",
			history:      seasonalHistory([]time.Month{time.May, time.June}, 100),
			marketDate:   date(2026, 6, 15),
			wantSeasonal: false,
			wantStrength: 0,
		},
		{
			name:         "target month without data",
			history:      seasonalHistory(sixMonths, 100),
			marketDate:   date(2026, 7, 15),
			wantSeasonal: false,
			wantStrength: 0,
		},
		{
			// mean 5, std 5, z 1
			name:         "steady selling months",
			history:      seasonalHistory(sixMonths, 10),
			marketDate:   date(2026, 6, 15),
			wantSeasonal: false,
			wantStrength: 5.0 / 6.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := NewFeatureEngineer(tt.history, DefaultConfig(), fixedClock(date(2026, 8, 1)))
			v, err := fe.Extract(context.Background(), FeatureInput{VendorID: testVendor, ProductID: "bread", MarketDate: tt.marketDate})
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if v.IsSeasonal != tt.wantSeasonal {
				t.Errorf("IsSeasonal = %v, want %v", v.IsSeasonal, tt.wantSeasonal)
			}
			if math.Abs(v.SeasonalStrength-tt.wantStrength) > 1e-9 {
				t.Errorf("SeasonalStrength = %v, want %v", v.SeasonalStrength, tt.wantStrength)
			}
		})
	}
}

func TestExtractVenueHistoryBeyondLookback(t *testing.T) {
	// The only venue sale is 400 days before the market, outside the
	// 365 day lookback. Features and confidence must agree it is stale,
	// not new.
	market := date(2026, 6, 15)
	history := &memHistory{records: []SalesRecord{sale("old", "park", "bread", market.AddDate(0, 0, -400), 12)}}

	fe := NewFeatureEngineer(history, DefaultConfig(), fixedClock(market))
	v, err := fe.Extract(context.Background(), FeatureInput{VendorID: testVendor, ProductID: "bread", VenueID: "park", MarketDate: market})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if v.VenueCount != 1 || v.VenueDaysSinceLast != 400 || v.VenueAvg != 12 {
		t.Errorf("venue features = count %d, since %d, avg %v; want 1, 400, 12", v.VenueCount, v.VenueDaysSinceLast, v.VenueAvg)
	}

	cm := NewConfidenceModel(history, DefaultConfig(), fixedClock(market))
	score, err := cm.Score(context.Background(), testVendor, "park", "bread", market)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score != ConfidenceStale {
		t.Errorf("Score() = %v, want %v", score, ConfidenceStale)
	}
}

func TestTrainingExamplesUseEarlierSalesOnly(t *testing.T) {
	fe := NewFeatureEngineer(&memHistory{}, DefaultConfig(), fixedClock(date(2026, 7, 1)))
	records := dailySales("bread", "park", date(2026, 6, 1), 3, func(i int) int { return (i + 1) * 10 })
	examples := fe.trainingExamples(collectPoints(records, "bread"))
	if len(examples) != 3 {
		t.Fatalf("len(examples) = %d, want 3", len(examples))
	}
	if examples[0].Features.Avg7d != 0 {
		t.Errorf("first example Avg7d = %v, want 0", examples[0].Features.Avg7d)
	}
	if examples[2].Features.Avg7d != 15 || examples[2].Quantity != 30 {
		t.Errorf("third example Avg7d/label = %v/%v, want 15/30", examples[2].Features.Avg7d, examples[2].Quantity)
	}
	if examples[2].Features.VenueCount != 2 {
		t.Errorf("third example VenueCount = %d, want 2", examples[2].Features.VenueCount)
	}
}
