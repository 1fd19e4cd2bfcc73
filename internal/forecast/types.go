// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package forecast

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one product line of a sale.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// SalesRecord is an immutable sale imported from a point-of-sale system.
type SalesRecord struct {
	ID        string          `json:"id"`
	VendorID  string          `json:"vendor_id"`
	VenueID   string          `json:"venue_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Total     decimal.Decimal `json:"total"`
	LineItems []LineItem      `json:"line_items"`
}

// QuantityFor sums the quantity of line items whose product ID equals productID.
// The boolean reports whether any line item matched.
func (r *SalesRecord) QuantityFor(productID string) (int, bool) {
	total, matched := 0, false
	for _, li := range r.LineItems {
		if li.ProductID == productID {
			total += li.Quantity
			matched = true
		}
	}
	return total, matched
}

// SalesQuery selects sales for a vendor. Empty ProductID or VenueID means no
// filter; a zero Start means unbounded. End is exclusive.
type SalesQuery struct {
	VendorID  string
	ProductID string
	VenueID   string
	Start     time.Time
	End       time.Time
}

// Weather is the forecast for a market location and date.
type Weather struct {
	TempF       float64 `json:"temp_f"`
	FeelsLikeF  float64 `json:"feels_like_f"`
	Humidity    float64 `json:"humidity"`
	Condition   string  `json:"condition"`
	Description string  `json:"description,omitempty"`
}

// Event describes a local event that may change foot traffic.
type Event struct {
	Name               string `json:"name"`
	ExpectedAttendance int    `json:"expected_attendance"`
	IsSpecial          bool   `json:"is_special"`
}

// Location is used to look up weather and events when the caller omits them.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Product is a catalog entry. Price is optional.
type Product struct {
	ID       string              `json:"id"`
	VendorID string              `json:"vendor_id"`
	Name     string              `json:"name"`
	Price    decimal.NullDecimal `json:"price"`
	Active   bool                `json:"active"`
}

// FeatureSnapshot records the inputs actually used for a recommendation.
// Only snapshots with MLUsed set are eligible as retraining examples.
type FeatureSnapshot struct {
	MLUsed bool               `json:"ml_used"`
	Values map[string]float64 `json:"values"`
}

// Recommendation is a quantity suggestion for one product on one market date.
type Recommendation struct {
	ID                    string              `json:"id"`
	VendorID              string              `json:"vendor_id"`
	ProductID             string              `json:"product_id"`
	VenueID               string              `json:"venue_id,omitempty"`
	MarketDate            time.Time           `json:"market_date"`
	RecommendedQuantity   int                 `json:"recommended_quantity"`
	ConfidenceScore       float64             `json:"confidence_score"`
	PredictedRevenue      decimal.NullDecimal `json:"predicted_revenue"`
	Features              FeatureSnapshot     `json:"features"`
	ModelVersion          string              `json:"model_version"`
	UserAccepted          bool                `json:"user_accepted"`
	ActualQuantityBrought *int                `json:"actual_quantity_brought,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
}

// Feedback is the vendor-reported outcome of a recommendation. The derived
// fields are computed once by NewFeedback and never recomputed.
type Feedback struct {
	ID                    string              `json:"id"`
	RecommendationID      string              `json:"recommendation_id"`
	VendorID              string              `json:"vendor_id"`
	RecommendedQuantity   int                 `json:"recommended_quantity"`
	ActualQuantitySold    int                 `json:"actual_quantity_sold"`
	ActualQuantityBrought *int                `json:"actual_quantity_brought,omitempty"`
	ActualRevenue         decimal.NullDecimal `json:"actual_revenue"`
	Rating                *int                `json:"rating,omitempty"`
	Comments              string              `json:"comments,omitempty"`

	QuantityVariance   int     `json:"quantity_variance"`
	VariancePercentage float64 `json:"variance_percentage"`
	WasAccurate        bool    `json:"was_accurate"`
	// VarianceHigh is set when the vendor sold more than 20% above the recommendation.
	VarianceHigh bool `json:"variance_high"`
	// VarianceLow is set when the vendor sold more than 20% below the recommendation.
	VarianceLow bool `json:"variance_low"`

	CreatedAt time.Time `json:"created_at"`
}

// WasOverstocked keeps the historical label, which is set when variance is
// high (actual sales above the recommendation).
func (f *Feedback) WasOverstocked() bool { return f.VarianceHigh }

// WasUnderstocked keeps the historical label, which is set when variance is low.
func (f *Feedback) WasUnderstocked() bool { return f.VarianceLow }

// FeedbackExample pairs a recommendation's snapshot with the reported outcome.
type FeedbackExample struct {
	RecommendationID   string
	Features           FeatureSnapshot
	ActualQuantitySold int
}

// SalesHistoryAccessor reads raw sales. Records may be returned in any order.
type SalesHistoryAccessor interface {
	QuerySales(ctx context.Context, q SalesQuery) ([]SalesRecord, error)
}

// ProductCatalog resolves products and prices.
type ProductCatalog interface {
	GetProduct(ctx context.Context, vendorID, productID string) (*Product, error)
	ListActiveProducts(ctx context.Context, vendorID string, limit int) ([]Product, error)
}

// RecommendationStore persists recommendations and feedback.
// SaveFeedback must return ErrFeedbackExists for a second feedback on the
// same recommendation, and lookups return ErrNotFound for unknown IDs.
type RecommendationStore interface {
	SaveRecommendation(ctx context.Context, rec *Recommendation) error
	GetRecommendation(ctx context.Context, vendorID, id string) (*Recommendation, error)
	MarkAccepted(ctx context.Context, vendorID, id string, broughtQty *int) error
	SaveFeedback(ctx context.Context, fb *Feedback) error
	ListFeedback(ctx context.Context, vendorID string, since time.Time) ([]Feedback, error)
	FeedbackExamples(ctx context.Context, vendorID string) ([]FeedbackExample, error)
	ListVendorsWithFeedback(ctx context.Context) ([]string, error)
}

// WeatherProvider looks up the weather forecast for a location and date.
type WeatherProvider interface {
	Forecast(ctx context.Context, loc Location, date time.Time) (*Weather, error)
}

// EventProvider looks up the most relevant event near a location on a date.
// A nil event with a nil error means nothing is scheduled.
type EventProvider interface {
	ForDate(ctx context.Context, date time.Time, loc Location) (*Event, error)
}

// EventPublisher announces domain events. Failures never fail the operation.
type EventPublisher interface {
	RecommendationGenerated(ctx context.Context, rec *Recommendation) error
	FeedbackRecorded(ctx context.Context, fb *Feedback) error
	ModelRetrained(ctx context.Context, vendorID string, result *RetrainResult) error
}

// Clock returns the current time. Injected for deterministic tests.
type Clock func() time.Time
