// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package forecast

import (
	"math"
	"sort"
	"time"
)

// DefaultAccuracyTarget is the accuracy rate (percent) a vendor should reach.
const DefaultAccuracyTarget = 70.0

// VariancePercentage returns (actual - recommended) / recommended * 100, or 0
// when recommended is 0.
func VariancePercentage(recommended, actual int) float64 {
	if recommended == 0 {
		return 0
	}
	return float64(actual-recommended) / float64(recommended) * 100
}

// NewFeedback derives the variance fields for an outcome. The result is not
// persisted and carries no ID.
func NewFeedback(rec *Recommendation, actualSold int) *Feedback {
	pct := VariancePercentage(rec.RecommendedQuantity, actualSold)
	return &Feedback{
		RecommendationID:    rec.ID,
		VendorID:            rec.VendorID,
		RecommendedQuantity: rec.RecommendedQuantity,
		ActualQuantitySold:  actualSold,
		QuantityVariance:    actualSold - rec.RecommendedQuantity,
		VariancePercentage:  pct,
		WasAccurate:         math.Abs(pct) <= AccuracyBandPct,
		VarianceHigh:        pct > AccuracyBandPct,
		VarianceLow:         pct < -AccuracyBandPct,
	}
}

// AccuracyMetrics aggregates feedback. Rates are percentages.
type AccuracyMetrics struct {
	AccuracyRate   float64 `json:"accuracy_rate"`
	OverstockRate  float64 `json:"overstock_rate"`
	UnderstockRate float64 `json:"understock_rate"`
	AvgVariancePct float64 `json:"avg_variance_pct"`
	Total          int     `json:"total"`
}

// WeeklyAccuracy is one bucket of an accuracy trend.
type WeeklyAccuracy struct {
	WeekStart time.Time       `json:"week_start"`
	Metrics   AccuracyMetrics `json:"metrics"`
}

// AccuracyTracker aggregates feedback into accuracy metrics.
type AccuracyTracker struct {
	target float64
}

// NewAccuracyTracker creates a tracker. A non-positive target uses DefaultAccuracyTarget.
func NewAccuracyTracker(target float64) *AccuracyTracker {
	if target <= 0 {
		target = DefaultAccuracyTarget
	}
	return &AccuracyTracker{target: target}
}

// Target returns the success threshold.
func (t *AccuracyTracker) Target() float64 { return t.target }

// Compute aggregates feedback. Every value is 0 for empty input.
func (t *AccuracyTracker) Compute(feedback []Feedback) AccuracyMetrics {
	n := len(feedback)
	if n == 0 {
		return AccuracyMetrics{}
	}
	var accurate, over, under int
	var variance float64
	for i := range feedback {
		fb := &feedback[i]
		if fb.WasAccurate {
			accurate++
		}
		if fb.WasOverstocked() {
			over++
		}
		if fb.WasUnderstocked() {
			under++
		}
		variance += fb.VariancePercentage
	}
	total := float64(n)
	return AccuracyMetrics{
		AccuracyRate:   float64(accurate) / total * 100,
		OverstockRate:  float64(over) / total * 100,
		UnderstockRate: float64(under) / total * 100,
		AvgVariancePct: variance / total,
		Total:          n,
	}
}

// MeetsSuccessCriterion reports whether rate reaches the target.
func (t *AccuracyTracker) MeetsSuccessCriterion(rate float64) bool {
	return rate >= t.target
}

// Trend buckets feedback into the trailing weeks ending at now, oldest first.
// Weeks with no feedback are omitted.
func (t *AccuracyTracker) Trend(feedback []Feedback, weeks int, now time.Time) []WeeklyAccuracy {
	if weeks < 1 {
		return nil
	}
	end := now.UTC()
	start := end.Add(-time.Duration(weeks) * 7 * day)
	buckets := make(map[int][]Feedback)
	for _, fb := range feedback {
		at := fb.CreatedAt.UTC()
		if at.Before(start) || at.After(end) {
			continue
		}
		idx := int(at.Sub(start) / (7 * day))
		if idx >= weeks {
			idx = weeks - 1
		}
		buckets[idx] = append(buckets[idx], fb)
	}

	idxs := make([]int, 0, len(buckets))
	for i := range buckets {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)

	out := make([]WeeklyAccuracy, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, WeeklyAccuracy{
			WeekStart: start.Add(time.Duration(i) * 7 * day),
			Metrics:   t.Compute(buckets[i]),
		})
	}
	return out
}
