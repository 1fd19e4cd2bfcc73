// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/tomtom215/marketcast/internal/forecast"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type weatherInput struct {
	TempF       *float64 `json:"temp_f" validate:"required,gte=-80,lte=140"`
	FeelsLikeF  *float64 `json:"feels_like_f,omitempty" validate:"omitempty,gte=-120,lte=180"`
	Humidity    *float64 `json:"humidity,omitempty" validate:"omitempty,gte=0,lte=100"`
	Condition   string   `json:"condition" validate:"max=64"`
	Description string   `json:"description,omitempty" validate:"max=256"`
}

type eventInput struct {
	Name               string `json:"name" validate:"required,max=200"`
	ExpectedAttendance int    `json:"expected_attendance" validate:"gte=0"`
	IsSpecial          bool   `json:"is_special"`
}

type locationInput struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

// contextInput is the market-day context shared by single and batch requests.
type contextInput struct {
	VenueID    string         `json:"venue_id,omitempty" validate:"omitempty,identifier"`
	MarketDate string         `json:"market_date" validate:"required,marketdate"`
	Weather    *weatherInput  `json:"weather,omitempty"`
	Event      *eventInput    `json:"event,omitempty"`
	Location   *locationInput `json:"location,omitempty"`
}

type generateRequest struct {
	contextInput
	ProductID string `json:"product_id" validate:"required,identifier"`
}

type batchRequest struct {
	contextInput
	Limit int `json:"limit,omitempty" validate:"gte=0,lte=500"`
}

type acceptRequest struct {
	ActualQuantityBrought *int `json:"actual_quantity_brought,omitempty" validate:"omitempty,gte=0"`
}

type feedbackRequest struct {
	ActualQuantitySold    *int                `json:"actual_quantity_sold" validate:"required,gte=0"`
	ActualQuantityBrought *int                `json:"actual_quantity_brought,omitempty" validate:"omitempty,gte=0"`
	ActualRevenue         decimal.NullDecimal `json:"actual_revenue"`
	Rating                *int                `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Comments              string              `json:"comments,omitempty" validate:"max=2000"`
}

// pathParams holds the URL parameters common to vendor routes.
type pathParams struct {
	VendorID         string `json:"vendor_id" validate:"required,identifier"`
	RecommendationID string `json:"recommendation_id,omitempty" validate:"omitempty,identifier"`
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst unchanged
// when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if allowEmpty {
				return nil
			}
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (c contextInput) marketDate() time.Time {
	// Already checked by the marketdate tag.
	d, _ := time.Parse(time.DateOnly, c.MarketDate)
	return d
}

func (c contextInput) weather() *forecast.Weather {
	if c.Weather == nil {
		return nil
	}
	w := &forecast.Weather{
		TempF:       *c.Weather.TempF,
		FeelsLikeF:  *c.Weather.TempF,
		Humidity:    forecast.DefaultHumidity,
		Condition:   c.Weather.Condition,
		Description: c.Weather.Description,
	}
	if c.Weather.FeelsLikeF != nil {
		w.FeelsLikeF = *c.Weather.FeelsLikeF
	}
	if c.Weather.Humidity != nil {
		w.Humidity = *c.Weather.Humidity
	}
	return w
}

func (c contextInput) event() *forecast.Event {
	if c.Event == nil {
		return nil
	}
	return &forecast.Event{
		Name:               c.Event.Name,
		ExpectedAttendance: c.Event.ExpectedAttendance,
		IsSpecial:          c.Event.IsSpecial,
	}
}

func (c contextInput) location() *forecast.Location {
	if c.Location == nil {
		return nil
	}
	return &forecast.Location{Latitude: *c.Location.Latitude, Longitude: *c.Location.Longitude}
}

func (g generateRequest) toForecast(vendorID string) forecast.GenerateRequest {
	return forecast.GenerateRequest{
		VendorID:   vendorID,
		ProductID:  g.ProductID,
		VenueID:    g.VenueID,
		MarketDate: g.marketDate(),
		Weather:    g.weather(),
		Event:      g.event(),
		Location:   g.location(),
	}
}

func (b batchRequest) toForecast(vendorID string) forecast.BatchRequest {
	return forecast.BatchRequest{
		VendorID:   vendorID,
		VenueID:    b.VenueID,
		MarketDate: b.marketDate(),
		Weather:    b.weather(),
		Event:      b.event(),
		Location:   b.location(),
		Limit:      b.Limit,
	}
}

func (f feedbackRequest) toForecast(vendorID, recommendationID string) forecast.FeedbackInput {
	return forecast.FeedbackInput{
		VendorID:              vendorID,
		RecommendationID:      recommendationID,
		ActualQuantitySold:    *f.ActualQuantitySold,
		ActualQuantityBrought: f.ActualQuantityBrought,
		ActualRevenue:         f.ActualRevenue,
		Rating:                f.Rating,
		Comments:              f.Comments,
	}
}
