// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/marketcast/internal/forecast"
	"github.com/tomtom215/marketcast/internal/logging"
	"github.com/tomtom215/marketcast/internal/validation"
)

// ForecastService is the part of *forecast.Service the API calls.
type ForecastService interface {
	GenerateRecommendation(ctx context.Context, req forecast.GenerateRequest) (*forecast.Recommendation, error)
	GenerateRecommendationsForDate(ctx context.Context, req forecast.BatchRequest) ([]*forecast.Recommendation, error)
	AcceptRecommendation(ctx context.Context, vendorID, id string, brought *int) (*forecast.Recommendation, error)
	RecordFeedback(ctx context.Context, in forecast.FeedbackInput) (*forecast.Feedback, error)
	ComputeVendorAccuracy(ctx context.Context, vendorID string, daysBack int) (*forecast.AccuracyReport, error)
	Retrain(ctx context.Context, vendorID string) (*forecast.RetrainResult, error)
}

// Accuracy window limits for the days_back query parameter.
const (
	defaultDaysBack = 30
	maxDaysBack     = 365
)

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// DefaultDaysBack is used when days_back is omitted. Default: 30
	DefaultDaysBack int

	// Health reports component status for GET /api/v1/health.
	Health HealthDeps

	// Version is reported by the health endpoint.
	Version string
}

// Handler serves the vendor API.
type Handler struct {
	svc       ForecastService
	config    HandlerConfig
	startTime time.Time
}

// NewHandler creates a Handler.
func NewHandler(svc ForecastService, cfg HandlerConfig) *Handler {
	if cfg.DefaultDaysBack <= 0 || cfg.DefaultDaysBack > maxDaysBack {
		cfg.DefaultDaysBack = defaultDaysBack
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Handler{svc: svc, config: cfg, startTime: time.Now()}
}

// params reads and validates the vendor and recommendation URL parameters.
func params(rw *ResponseWriter, r *http.Request) (pathParams, bool) {
	p := pathParams{
		VendorID:         chi.URLParam(r, "vendorID"),
		RecommendationID: chi.URLParam(r, "id"),
	}
	if verr := validation.ValidateStruct(p); verr != nil {
		respondValidation(rw, verr)
		return p, false
	}
	return p, true
}

// bind decodes a JSON body into dst and validates it.
func bind(rw *ResponseWriter, w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) bool {
	if err := decodeJSON(w, r, dst, allowEmpty); err != nil {
		rw.BadRequest(err.Error())
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		respondValidation(rw, verr)
		return false
	}
	return true
}

// GenerateRecommendation handles POST /api/v1/vendors/{vendorID}/recommendations.
func (h *Handler) GenerateRecommendation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p, ok := params(rw, r)
	if !ok {
		return
	}
	var req generateRequest
	if !bind(rw, w, r, &req, false) {
		return
	}

	rec, err := h.svc.GenerateRecommendation(r.Context(), req.toForecast(p.VendorID))
	if err != nil {
		respondServiceError(rw, r, err)
		return
	}
	logging.Ctx(r.Context()).Debug().
		Str("vendor_id", p.VendorID).
		Str("recommendation_id", rec.ID).
		Int("quantity", rec.RecommendedQuantity).
		Msg("recommendation generated")
	rw.Created(rec)
}

type batchResponse struct {
	MarketDate      string                     `json:"market_date"`
	Count           int                        `json:"count"`
	Recommendations []*forecast.Recommendation `json:"recommendations"`
}

// GenerateBatch handles POST /api/v1/vendors/{vendorID}/recommendations/batch.
func (h *Handler) GenerateBatch(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p, ok := params(rw, r)
	if !ok {
		return
	}
	var req batchRequest
	if !bind(rw, w, r, &req, false) {
		return
	}

	recs, err := h.svc.GenerateRecommendationsForDate(r.Context(), req.toForecast(p.VendorID))
	if err != nil {
		respondServiceError(rw, r, err)
		return
	}
	if recs == nil {
		recs = []*forecast.Recommendation{}
	}
	rw.Success(batchResponse{MarketDate: req.MarketDate, Count: len(recs), Recommendations: recs})
}

// AcceptRecommendation handles POST /api/v1/vendors/{vendorID}/recommendations/{id}/accept.
func (h *Handler) AcceptRecommendation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p, ok := params(rw, r)
	if !ok {
		return
	}
	var req acceptRequest
	if !bind(rw, w, r, &req, true) {
		return
	}

	rec, err := h.svc.AcceptRecommendation(r.Context(), p.VendorID, p.RecommendationID, req.ActualQuantityBrought)
	if err != nil {
		respondServiceError(rw, r, err)
		return
	}
	rw.Success(rec)
}

// RecordFeedback handles POST /api/v1/vendors/{vendorID}/recommendations/{id}/feedback.
func (h *Handler) RecordFeedback(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p, ok := params(rw, r)
	if !ok {
		return
	}
	var req feedbackRequest
	if !bind(rw, w, r, &req, false) {
		return
	}
	if req.ActualRevenue.Valid && req.ActualRevenue.Decimal.IsNegative() {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, "actual_revenue must not be negative",
			map[string]interface{}{"field": "actual_revenue"})
		return
	}

	fb, err := h.svc.RecordFeedback(r.Context(), req.toForecast(p.VendorID, p.RecommendationID))
	if err != nil {
		respondServiceError(rw, r, err)
		return
	}
	rw.Created(fb)
}

// VendorAccuracy handles GET /api/v1/vendors/{vendorID}/accuracy?days_back=N.
func (h *Handler) VendorAccuracy(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p, ok := params(rw, r)
	if !ok {
		return
	}

	daysBack := h.config.DefaultDaysBack
	if raw := r.URL.Query().Get("days_back"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxDaysBack {
			rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation,
				"days_back must be an integer between 1 and "+strconv.Itoa(maxDaysBack),
				map[string]interface{}{"field": "days_back", "value": raw})
			return
		}
		daysBack = n
	}

	report, err := h.svc.ComputeVendorAccuracy(r.Context(), p.VendorID, daysBack)
	if err != nil {
		respondServiceError(rw, r, err)
		return
	}
	rw.Success(report)
}

// Retrain handles POST /api/v1/vendors/{vendorID}/retrain.
func (h *Handler) Retrain(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p, ok := params(rw, r)
	if !ok {
		return
	}

	result, err := h.svc.Retrain(r.Context(), p.VendorID)
	if err != nil {
		respondServiceError(rw, r, err)
		return
	}
	logging.Ctx(r.Context()).Info().
		Str("vendor_id", p.VendorID).
		Bool("replaced", result.Replaced).
		Bool("skipped", result.Skipped).
		Msg("retrain requested")
	rw.Success(result)
}
