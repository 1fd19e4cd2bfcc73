// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Neutral values substituted when weather or event context is missing.
const (
	DefaultTempF      = 70.0
	DefaultHumidity   = 50.0
	DefaultAttendance = 100
)

// FeatureVector is the fixed-shape model input. Every slot is always filled;
// absent context uses neutral defaults and absent venues use zeros.
type FeatureVector struct {
	DayOfWeek  int // 0 = Sunday
	Month      int
	DayOfMonth int
	WeekOfYear int // ISO 8601

	TempF      float64
	FeelsLikeF float64
	Humidity   float64
	IsSunny    bool
	IsRainy    bool

	IsSpecialEvent     bool
	ExpectedAttendance int

	Avg7d  float64
	Avg14d float64
	Max30d float64

	VenueAvg           float64
	VenueMax           float64
	VenueCount         int
	VenueDaysSinceLast int

	IsSeasonal       bool
	SeasonalStrength float64
}

type featureField struct {
	name string
	get  func(*FeatureVector) float64
	set  func(*FeatureVector, float64)
}

// featureFields fixes the column order used by Slice, Map and the models.
var featureFields = []featureField{
	{"day_of_week", func(v *FeatureVector) float64 { return float64(v.DayOfWeek) }, func(v *FeatureVector, x float64) { v.DayOfWeek = int(x) }},
	{"month", func(v *FeatureVector) float64 { return float64(v.Month) }, func(v *FeatureVector, x float64) { v.Month = int(x) }},
	{"day_of_month", func(v *FeatureVector) float64 { return float64(v.DayOfMonth) }, func(v *FeatureVector, x float64) { v.DayOfMonth = int(x) }},
	{"week_of_year", func(v *FeatureVector) float64 { return float64(v.WeekOfYear) }, func(v *FeatureVector, x float64) { v.WeekOfYear = int(x) }},
	{"temp_f", func(v *FeatureVector) float64 { return v.TempF }, func(v *FeatureVector, x float64) { v.TempF = x }},
	{"feels_like_f", func(v *FeatureVector) float64 { return v.FeelsLikeF }, func(v *FeatureVector, x float64) { v.FeelsLikeF = x }},
	{"humidity", func(v *FeatureVector) float64 { return v.Humidity }, func(v *FeatureVector, x float64) { v.Humidity = x }},
	{"is_sunny", func(v *FeatureVector) float64 { return b2f(v.IsSunny) }, func(v *FeatureVector, x float64) { v.IsSunny = x != 0 }},
	{"is_rainy", func(v *FeatureVector) float64 { return b2f(v.IsRainy) }, func(v *FeatureVector, x float64) { v.IsRainy = x != 0 }},
	{"is_special_event", func(v *FeatureVector) float64 { return b2f(v.IsSpecialEvent) }, func(v *FeatureVector, x float64) { v.IsSpecialEvent = x != 0 }},
	{"expected_attendance", func(v *FeatureVector) float64 { return float64(v.ExpectedAttendance) }, func(v *FeatureVector, x float64) { v.ExpectedAttendance = int(x) }},
	{"avg_7d", func(v *FeatureVector) float64 { return v.Avg7d }, func(v *FeatureVector, x float64) { v.Avg7d = x }},
	{"avg_14d", func(v *FeatureVector) float64 { return v.Avg14d }, func(v *FeatureVector, x float64) { v.Avg14d = x }},
	{"max_30d", func(v *FeatureVector) float64 { return v.Max30d }, func(v *FeatureVector, x float64) { v.Max30d = x }},
	{"venue_avg", func(v *FeatureVector) float64 { return v.VenueAvg }, func(v *FeatureVector, x float64) { v.VenueAvg = x }},
	{"venue_max", func(v *FeatureVector) float64 { return v.VenueMax }, func(v *FeatureVector, x float64) { v.VenueMax = x }},
	{"venue_count", func(v *FeatureVector) float64 { return float64(v.VenueCount) }, func(v *FeatureVector, x float64) { v.VenueCount = int(x) }},
	{"venue_days_since_last", func(v *FeatureVector) float64 { return float64(v.VenueDaysSinceLast) }, func(v *FeatureVector, x float64) { v.VenueDaysSinceLast = int(x) }},
	{"is_seasonal", func(v *FeatureVector) float64 { return b2f(v.IsSeasonal) }, func(v *FeatureVector, x float64) { v.IsSeasonal = x != 0 }},
	{"seasonal_strength", func(v *FeatureVector) float64 { return v.SeasonalStrength }, func(v *FeatureVector, x float64) { v.SeasonalStrength = x }},
}

// NumFeatures is the length of FeatureVector.Slice.
var NumFeatures = len(featureFields)

// FeatureNames returns the column names in model order.
func FeatureNames() []string {
	names := make([]string, len(featureFields))
	for i, f := range featureFields {
		names[i] = f.name
	}
	return names
}

// Slice returns the vector in model column order.
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, len(featureFields))
	for i, f := range featureFields {
		out[i] = f.get(&v)
	}
	return out
}

// Map returns the vector keyed by feature name.
func (v FeatureVector) Map() map[string]float64 {
	out := make(map[string]float64, len(featureFields))
	for _, f := range featureFields {
		out[f.name] = f.get(&v)
	}
	return out
}

// FeatureVectorFromMap rebuilds a vector from Map output. Every feature must
// be present; unknown keys are ignored.
func FeatureVectorFromMap(m map[string]float64) (FeatureVector, error) {
	var v FeatureVector
	for _, f := range featureFields {
		x, ok := m[f.name]
		if !ok {
			return FeatureVector{}, fmt.Errorf("feature %q missing from snapshot", f.name)
		}
		f.set(&v, x)
	}
	return v, nil
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// FeatureInput identifies what to extract features for.
type FeatureInput struct {
	VendorID   string
	ProductID  string
	VenueID    string
	MarketDate time.Time
	Weather    *Weather
	Event      *Event
}

// FeatureEngineer derives feature vectors from sales history.
type FeatureEngineer struct {
	history SalesHistoryAccessor
	cfg     Config
	now     Clock
}

// NewFeatureEngineer creates a feature engineer over history.
func NewFeatureEngineer(history SalesHistoryAccessor, cfg Config, now Clock) *FeatureEngineer {
	if now == nil {
		now = time.Now
	}
	return &FeatureEngineer{history: history, cfg: cfg, now: now}
}

// Extract builds the feature vector for in. A history query failure is
// returned as ErrStorageUnavailable; it is never replaced by a zero vector.
func (f *FeatureEngineer) Extract(ctx context.Context, in FeatureInput) (FeatureVector, error) {
	ref := f.referenceTime(in.MarketDate)
	// Venue features see the whole venue history, as the confidence model does.
	start := ref.Add(-f.historySpan())
	if in.VenueID != "" {
		start = time.Time{}
	}
	points, err := f.loadPoints(ctx, in.VendorID, in.ProductID, start, ref)
	if err != nil {
		return FeatureVector{}, err
	}
	return f.build(points, featureContext{
		marketDate: in.MarketDate,
		ref:        ref,
		venueID:    in.VenueID,
		weather:    in.Weather,
		event:      in.Event,
	}), nil
}

// referenceTime is where trailing windows end: the market day, or now when
// the market day is still in the future.
func (f *FeatureEngineer) referenceTime(marketDate time.Time) time.Time {
	ref := dayOf(marketDate)
	if now := f.now().UTC(); now.Before(ref) {
		return now
	}
	return ref
}

func (f *FeatureEngineer) historySpan() time.Duration {
	days := f.cfg.LookbackDays
	if days < seasonalityDays {
		days = seasonalityDays
	}
	return time.Duration(days) * day
}

func (f *FeatureEngineer) loadPoints(ctx context.Context, vendorID, productID string, start, end time.Time) ([]salePoint, error) {
	records, err := f.history.QuerySales(ctx, SalesQuery{
		VendorID:  vendorID,
		ProductID: productID,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, storageError("query sales history", err)
	}
	return collectPoints(records, productID), nil
}

type featureContext struct {
	marketDate time.Time
	ref        time.Time
	venueID    string
	weather    *Weather
	event      *Event
}

func (f *FeatureEngineer) build(points []salePoint, c featureContext) FeatureVector {
	md := c.marketDate.UTC()
	_, isoWeek := md.ISOWeek()
	v := FeatureVector{
		DayOfWeek:  int(md.Weekday()),
		Month:      int(md.Month()),
		DayOfMonth: md.Day(),
		WeekOfYear: isoWeek,
	}

	applyWeather(&v, c.weather)
	applyEvent(&v, c.event)

	v.Avg7d = mean(quantities(dailyTotals(points, c.ref.Add(-shortWindowDays*day), c.ref, "")))
	v.Avg14d = mean(quantities(dailyTotals(points, c.ref.Add(-mediumWindowDays*day), c.ref, "")))
	v.Max30d = maxOf(quantities(dailyTotals(points, c.ref.Add(-longWindowDays*day), c.ref, "")))

	if c.venueID != "" {
		vs := f.venueSnapshot(points, c.venueID, c.marketDate, c.ref)
		v.VenueAvg = vs.AvgQuantity
		v.VenueMax = vs.MaxQuantity
		v.VenueCount = vs.SaleCount
		v.VenueDaysSinceLast = vs.DaysSinceLast
	}

	v.IsSeasonal, v.SeasonalStrength = f.seasonality(points, md.Month(), c.ref)
	return v
}

func applyWeather(v *FeatureVector, w *Weather) {
	if w == nil {
		v.TempF, v.FeelsLikeF, v.Humidity = DefaultTempF, DefaultTempF, DefaultHumidity
		return
	}
	v.TempF, v.FeelsLikeF, v.Humidity = w.TempF, w.FeelsLikeF, w.Humidity
	cond := strings.ToLower(w.Condition)
	v.IsSunny = strings.Contains(cond, "sunny") || strings.Contains(cond, "clear")
	for _, wet := range []string{"rain", "drizzle", "storm", "snow"} {
		if strings.Contains(cond, wet) {
			v.IsRainy = true
			break
		}
	}
}

func applyEvent(v *FeatureVector, e *Event) {
	if e == nil {
		v.ExpectedAttendance = DefaultAttendance
		return
	}
	v.IsSpecialEvent = e.IsSpecial
	v.ExpectedAttendance = e.ExpectedAttendance
}

// VenueSnapshot summarizes a product's history at one venue. It is computed
// on every request and never stored.
type VenueSnapshot struct {
	AvgQuantity   float64
	MaxQuantity   float64
	SaleCount     int
	DaysSinceLast int
}

func (f *FeatureEngineer) venueSnapshot(points []salePoint, venueID string, marketDate, ref time.Time) VenueSnapshot {
	totals := dailyTotals(points, time.Time{}, ref, venueID)
	if len(totals) == 0 {
		return VenueSnapshot{DaysSinceLast: NoVenueHistoryDays}
	}
	count := 0
	for _, p := range points {
		if p.venueID == venueID && p.at.Before(ref) {
			count++
		}
	}
	q := quantities(totals)
	return VenueSnapshot{
		AvgQuantity:   mean(q),
		MaxQuantity:   maxOf(q),
		SaleCount:     count,
		DaysSinceLast: daysBetween(totals[len(totals)-1].day, marketDate),
	}
}

// seasonality compares the target month with a twelve month profile of the
// trailing year. Each month's value is its mean quantity per sale day; a
// month without sales counts as 0. The z-score uses the mean and population
// standard deviation of all twelve values.
func (f *FeatureEngineer) seasonality(points []salePoint, target time.Month, ref time.Time) (bool, float64) {
	byMonth := make(map[time.Month][]float64)
	for _, t := range dailyTotals(points, ref.Add(-seasonalityDays*day), ref, "") {
		byMonth[t.day.Month()] = append(byMonth[t.day.Month()], t.quantity)
	}
	if len(byMonth) < f.cfg.SeasonalityMinMonths {
		return false, 0
	}
	if _, ok := byMonth[target]; !ok {
		return false, 0
	}

	profile := make([]float64, 12)
	for m, q := range byMonth {
		profile[m-1] = mean(q)
	}
	overall, std := stat.PopMeanStdDev(profile, nil)
	monthAvg := profile[target-1]
	strength := (monthAvg - overall) / (overall + 1)
	if std == 0 || math.IsNaN(std) {
		return false, strength
	}
	z := (monthAvg - overall) / std
	return math.Abs(z) > f.cfg.SeasonalityZThreshold, strength
}

// endOfTime is an upper bound later than any sale.
var endOfTime = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// salePoint is the matching quantity of one sales record.
type salePoint struct {
	at       time.Time
	day      time.Time
	venueID  string
	quantity int
}

// collectPoints keeps records with at least one line item for productID,
// ordered by time.
func collectPoints(records []SalesRecord, productID string) []salePoint {
	points := make([]salePoint, 0, len(records))
	for i := range records {
		qty, ok := records[i].QuantityFor(productID)
		if !ok {
			continue
		}
		at := records[i].Timestamp.UTC()
		points = append(points, salePoint{at: at, day: dayOf(at), venueID: records[i].VenueID, quantity: qty})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].at.Before(points[j].at) })
	return points
}

type dayTotal struct {
	day      time.Time
	quantity float64
}

// dailyTotals sums quantities per day for points in [from, to), optionally
// restricted to one venue. Points must be time ordered.
func dailyTotals(points []salePoint, from, to time.Time, venueID string) []dayTotal {
	var out []dayTotal
	for _, p := range points {
		if p.at.Before(from) || !p.at.Before(to) {
			continue
		}
		if venueID != "" && p.venueID != venueID {
			continue
		}
		if n := len(out); n > 0 && out[n-1].day.Equal(p.day) {
			out[n-1].quantity += float64(p.quantity)
			continue
		}
		out = append(out, dayTotal{day: p.day, quantity: float64(p.quantity)})
	}
	return out
}

func quantities(totals []dayTotal) []float64 {
	out := make([]float64, len(totals))
	for i, t := range totals {
		out[i] = t.quantity
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// distinctDays counts the sale days in points.
func distinctDays(points []salePoint) int {
	n := 0
	var last time.Time
	for _, p := range points {
		if n == 0 || !p.day.Equal(last) {
			n++
			last = p.day
		}
	}
	return n
}

// trainingExamples turns each sale day into a labeled example whose
// features are computed from strictly earlier sales. Weather and event take
// their defaults because they are not recorded with historical sales.
func (f *FeatureEngineer) trainingExamples(points []salePoint) []LabeledExample {
	totals := dailyTotals(points, time.Time{}, endOfTime, "")
	examples := make([]LabeledExample, 0, len(totals))
	for _, t := range totals {
		vec := f.build(points, featureContext{
			marketDate: t.day,
			ref:        t.day,
			venueID:    soleVenue(points, t.day),
		})
		examples = append(examples, LabeledExample{Features: vec, Quantity: t.quantity})
	}
	return examples
}

// soleVenue returns the venue shared by every sale on d, or "".
func soleVenue(points []salePoint, d time.Time) string {
	venue, seen := "", false
	for _, p := range points {
		if !p.day.Equal(d) {
			continue
		}
		if !seen {
			venue, seen = p.venueID, true
			continue
		}
		if p.venueID != venue {
			return ""
		}
	}
	return venue
}
