// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tomtom215/marketcast/internal/metrics"
)

// GenerateRequest asks for one product recommendation. Weather and Event are
// looked up from the providers at Location when omitted.
type GenerateRequest struct {
	VendorID   string    `json:"vendor_id"`
	ProductID  string    `json:"product_id"`
	VenueID    string    `json:"venue_id,omitempty"`
	MarketDate time.Time `json:"market_date"`
	Weather    *Weather  `json:"weather,omitempty"`
	Event      *Event    `json:"event,omitempty"`
	Location   *Location `json:"location,omitempty"`
}

// BatchRequest asks for recommendations for the vendor's active products.
type BatchRequest struct {
	VendorID   string    `json:"vendor_id"`
	VenueID    string    `json:"venue_id,omitempty"`
	MarketDate time.Time `json:"market_date"`
	Weather    *Weather  `json:"weather,omitempty"`
	Event      *Event    `json:"event,omitempty"`
	Location   *Location `json:"location,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

// FeedbackInput is the vendor-reported outcome of a recommendation.
type FeedbackInput struct {
	VendorID              string              `json:"vendor_id"`
	RecommendationID      string              `json:"recommendation_id"`
	ActualQuantitySold    int                 `json:"actual_quantity_sold"`
	ActualQuantityBrought *int                `json:"actual_quantity_brought,omitempty"`
	ActualRevenue         decimal.NullDecimal `json:"actual_revenue"`
	Rating                *int                `json:"rating,omitempty"`
	Comments              string              `json:"comments,omitempty"`
}

// AccuracyReport is a vendor's accuracy over a trailing window.
type AccuracyReport struct {
	VendorID    string           `json:"vendor_id"`
	DaysBack    int              `json:"days_back"`
	Metrics     AccuracyMetrics  `json:"metrics"`
	Target      float64          `json:"target"`
	MeetsTarget bool             `json:"meets_target"`
	Trend       []WeeklyAccuracy `json:"trend"`
}

// ServiceDeps are the collaborators of a Service. Weather, Events, Publisher
// and Registry are optional.
type ServiceDeps struct {
	History   SalesHistoryAccessor
	Catalog   ProductCatalog
	Store     RecommendationStore
	Weather   WeatherProvider
	Events    EventProvider
	Publisher EventPublisher
	Registry  *Registry
	Trainer   Trainer
	Now       Clock
}

// Service is the forecasting API used by the HTTP layer and the scheduler.
type Service struct {
	cfg       Config
	deps      ServiceDeps
	registry  *Registry
	trainer   Trainer
	tracker   *AccuracyTracker
	retrainer *RetrainingCoordinator
	now       Clock
	logger    zerolog.Logger
}

// NewService validates cfg and wires the forecasting components.
func NewService(cfg Config, deps ServiceDeps, logger zerolog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid forecast config: %w", err)
	}
	if deps.History == nil || deps.Catalog == nil || deps.Store == nil {
		return nil, errors.New("forecast service requires history, catalog and store")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	registry := deps.Registry
	if registry == nil {
		registry = NewRegistry(nil)
	}
	trainer := deps.Trainer
	if trainer == nil {
		trainer = &RidgeTrainer{Lambda: DefaultRidgeLambda, Now: now}
	}
	logger = logger.With().Str("component", "forecast_service").Logger()

	return &Service{
		cfg:       cfg,
		deps:      deps,
		registry:  registry,
		trainer:   trainer,
		tracker:   NewAccuracyTracker(cfg.AccuracyTarget),
		retrainer: NewRetrainingCoordinator(deps.Store, registry, trainer, deps.Publisher, cfg.Retrain, now, logger),
		now:       now,
		logger:    logger,
	}, nil
}

// Registry returns the model registry shared with the retraining coordinator.
func (s *Service) Registry() *Registry { return s.registry }

func (s *Service) newEngine() *Engine {
	return NewEngine(s.cfg, EngineDeps{
		History:  s.deps.History,
		Registry: s.registry,
		Trainer:  s.trainer,
		Now:      s.now,
	}, s.logger)
}

// GenerateRecommendation forecasts and persists a recommendation for one product.
func (s *Service) GenerateRecommendation(ctx context.Context, req GenerateRequest) (*Recommendation, error) {
	if err := validateTarget(req.VendorID, req.MarketDate); err != nil {
		return nil, err
	}
	if req.ProductID == "" {
		return nil, invalid("product_id", "must not be empty")
	}
	product, err := s.deps.Catalog.GetProduct(ctx, req.VendorID, req.ProductID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalid("product_id", "unknown product "+req.ProductID)
		}
		return nil, storageError("get product", err)
	}

	weather, event := s.resolveContext(ctx, req.MarketDate, req.Weather, req.Event, req.Location)
	return s.generate(ctx, s.newEngine(), product, ForecastInput{
		VendorID:   req.VendorID,
		ProductID:  req.ProductID,
		VenueID:    req.VenueID,
		MarketDate: req.MarketDate,
		Weather:    weather,
		Event:      event,
	})
}

// GenerateRecommendationsForDate forecasts every active product of the vendor
// up to the limit. Products that fail are skipped. A storage failure aborts
// the whole batch.
func (s *Service) GenerateRecommendationsForDate(ctx context.Context, req BatchRequest) ([]*Recommendation, error) {
	if err := validateTarget(req.VendorID, req.MarketDate); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.BatchLimit
	}
	products, err := s.deps.Catalog.ListActiveProducts(ctx, req.VendorID, limit)
	if err != nil {
		return nil, storageError("list active products", err)
	}

	weather, event := s.resolveContext(ctx, req.MarketDate, req.Weather, req.Event, req.Location)
	engine := s.newEngine()
	out := make([]*Recommendation, 0, len(products))
	for i := range products {
		p := &products[i]
		rec, err := s.generate(ctx, engine, p, ForecastInput{
			VendorID:   req.VendorID,
			ProductID:  p.ID,
			VenueID:    req.VenueID,
			MarketDate: req.MarketDate,
			Weather:    weather,
			Event:      event,
		})
		if err != nil {
			if errors.Is(err, ErrStorageUnavailable) || ctx.Err() != nil {
				return nil, err
			}
			metrics.BatchProductsSkipped.Inc()
			s.logger.Warn().Err(err).
				Str("vendor_id", req.VendorID).
				Str("product_id", p.ID).
				Msg("skipping product in batch")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Service) generate(ctx context.Context, engine *Engine, product *Product, in ForecastInput) (*Recommendation, error) {
	res, err := engine.Forecast(ctx, in)
	if err != nil {
		return nil, err
	}

	rec := &Recommendation{
		ID:                  uuid.NewString(),
		VendorID:            in.VendorID,
		ProductID:           in.ProductID,
		VenueID:             in.VenueID,
		MarketDate:          dayOf(in.MarketDate),
		RecommendedQuantity: res.Quantity,
		ConfidenceScore:     res.Confidence,
		Features:            res.Features,
		ModelVersion:        res.ModelVersion,
		CreatedAt:           s.now().UTC(),
	}
	if product.Price.Valid {
		rec.PredictedRevenue = decimal.NewNullDecimal(product.Price.Decimal.Mul(decimal.NewFromInt(int64(res.Quantity))))
	}

	if err := s.deps.Store.SaveRecommendation(ctx, rec); err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, fmt.Errorf("save recommendation: %w", err)
		}
		return nil, storageError("save recommendation", err)
	}
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.RecommendationGenerated(ctx, rec); err != nil {
			s.logger.Warn().Err(err).Str("recommendation_id", rec.ID).Msg("failed to publish recommendation event")
		}
	}
	return rec, nil
}

// resolveContext fills missing weather and event from the providers. Provider
// failures leave the value nil so the neutral defaults apply.
func (s *Service) resolveContext(ctx context.Context, date time.Time, weather *Weather, event *Event, loc *Location) (*Weather, *Event) {
	if loc == nil {
		return weather, event
	}
	if weather == nil && s.deps.Weather != nil {
		w, err := s.deps.Weather.Forecast(ctx, *loc, date)
		if err != nil {
			s.logger.Warn().Err(err).Msg("weather unavailable, using defaults")
		} else {
			weather = w
		}
	}
	if event == nil && s.deps.Events != nil {
		ev, err := s.deps.Events.ForDate(ctx, date, *loc)
		if err != nil {
			s.logger.Warn().Err(err).Msg("events unavailable, using defaults")
		} else {
			event = ev
		}
	}
	return weather, event
}

// RecordFeedback stores the outcome of a recommendation. A second feedback
// for the same recommendation returns ErrFeedbackExists.
func (s *Service) RecordFeedback(ctx context.Context, in FeedbackInput) (*Feedback, error) {
	switch {
	case in.VendorID == "":
		return nil, invalid("vendor_id", "must not be empty")
	case in.RecommendationID == "":
		return nil, invalid("recommendation_id", "must not be empty")
	case in.ActualQuantitySold < 0:
		return nil, invalid("actual_quantity_sold", "must not be negative")
	case in.ActualQuantityBrought != nil && *in.ActualQuantityBrought < 0:
		return nil, invalid("actual_quantity_brought", "must not be negative")
	case in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5):
		return nil, invalid("rating", "must be between 1 and 5")
	}

	rec, err := s.deps.Store.GetRecommendation(ctx, in.VendorID, in.RecommendationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("recommendation %s: %w", in.RecommendationID, err)
		}
		return nil, storageError("get recommendation", err)
	}

	fb := NewFeedback(rec, in.ActualQuantitySold)
	fb.ID = uuid.NewString()
	fb.ActualQuantityBrought = in.ActualQuantityBrought
	fb.ActualRevenue = in.ActualRevenue
	fb.Rating = in.Rating
	fb.Comments = in.Comments
	fb.CreatedAt = s.now().UTC()

	if err := s.deps.Store.SaveFeedback(ctx, fb); err != nil {
		if errors.Is(err, ErrFeedbackExists) {
			return nil, fmt.Errorf("recommendation %s: %w", in.RecommendationID, err)
		}
		return nil, storageError("save feedback", err)
	}
	metrics.RecordFeedback(fb.WasAccurate, fb.VarianceHigh, fb.VarianceLow)

	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.FeedbackRecorded(ctx, fb); err != nil {
			s.logger.Warn().Err(err).Str("feedback_id", fb.ID).Msg("failed to publish feedback event")
		}
	}
	return fb, nil
}

// ComputeVendorAccuracy aggregates the feedback created in the last daysBack days.
func (s *Service) ComputeVendorAccuracy(ctx context.Context, vendorID string, daysBack int) (*AccuracyReport, error) {
	if vendorID == "" {
		return nil, invalid("vendor_id", "must not be empty")
	}
	if daysBack < 1 {
		return nil, invalid("days_back", "must be positive")
	}
	now := s.now().UTC()
	feedback, err := s.deps.Store.ListFeedback(ctx, vendorID, now.Add(-time.Duration(daysBack)*day))
	if err != nil {
		return nil, storageError("list feedback", err)
	}
	m := s.tracker.Compute(feedback)
	return &AccuracyReport{
		VendorID:    vendorID,
		DaysBack:    daysBack,
		Metrics:     m,
		Target:      s.tracker.Target(),
		MeetsTarget: s.tracker.MeetsSuccessCriterion(m.AccuracyRate),
		Trend:       s.tracker.Trend(feedback, s.cfg.TrendWeeks, now),
	}, nil
}

// Retrain retrains the vendor's model from feedback.
func (s *Service) Retrain(ctx context.Context, vendorID string) (*RetrainResult, error) {
	if vendorID == "" {
		return nil, invalid("vendor_id", "must not be empty")
	}
	return s.retrainer.Retrain(ctx, vendorID)
}

// RetrainAll retrains every vendor that has feedback. Per-vendor failures
// are logged; storage failures stop the run.
func (s *Service) RetrainAll(ctx context.Context) ([]*RetrainResult, error) {
	vendors, err := s.deps.Store.ListVendorsWithFeedback(ctx)
	if err != nil {
		return nil, storageError("list vendors with feedback", err)
	}
	results := make([]*RetrainResult, 0, len(vendors))
	for _, vendorID := range vendors {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.retrainer.Retrain(ctx, vendorID)
		if err != nil {
			if errors.Is(err, ErrStorageUnavailable) {
				return results, err
			}
			s.logger.Error().Err(err).Str("vendor_id", vendorID).Msg("retrain failed")
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// AcceptRecommendation marks a recommendation as accepted, optionally with
// the quantity the vendor actually brought.
func (s *Service) AcceptRecommendation(ctx context.Context, vendorID, id string, brought *int) (*Recommendation, error) {
	switch {
	case vendorID == "":
		return nil, invalid("vendor_id", "must not be empty")
	case id == "":
		return nil, invalid("recommendation_id", "must not be empty")
	case brought != nil && *brought < 0:
		return nil, invalid("actual_quantity_brought", "must not be negative")
	}
	if err := s.deps.Store.MarkAccepted(ctx, vendorID, id, brought); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("recommendation %s: %w", id, err)
		}
		return nil, storageError("accept recommendation", err)
	}
	rec, err := s.deps.Store.GetRecommendation(ctx, vendorID, id)
	if err != nil {
		return nil, storageError("get recommendation", err)
	}
	return rec, nil
}

func validateTarget(vendorID string, marketDate time.Time) error {
	if vendorID == "" {
		return invalid("vendor_id", "must not be empty")
	}
	if marketDate.IsZero() {
		return invalid("market_date", "must be set")
	}
	return nil
}
