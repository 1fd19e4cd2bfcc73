// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package forecast

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/marketcast/internal/metrics"
)

// FallbackModelVersion tags recommendations produced by the heuristic.
const FallbackModelVersion = "heuristic-v1"

// trainingState tracks a product's model within one engine instance.
// Trained and skipped are terminal.
type trainingState int

const (
	stateUntrained trainingState = iota
	stateTraining
	stateTrained
	stateSkipped
)

func (s trainingState) String() string {
	switch s {
	case stateUntrained:
		return "untrained"
	case stateTraining:
		return "training"
	case stateTrained:
		return "trained"
	case stateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

type productModel struct {
	state   trainingState
	model   *LinearModel
	failure *ForecastFailure
	done    chan struct{}
}

// Outcome is how a forecast call ended.
type Outcome string

const (
	OutcomeSucceeded  Outcome = "succeeded"
	OutcomeFallenBack Outcome = "fallen_back"
)

// ForecastInput describes one product forecast.
type ForecastInput struct {
	VendorID   string
	ProductID  string
	VenueID    string
	MarketDate time.Time
	Weather    *Weather
	Event      *Event
}

// ForecastResult is the engine's answer. Quantity is always at least 1.
type ForecastResult struct {
	Quantity     int
	Confidence   float64
	Features     FeatureSnapshot
	ModelVersion string
	Outcome      Outcome
	// Failure is the internal reason for a fallback, nil on success.
	Failure *ForecastFailure
}

// EngineDeps are the collaborators of an Engine.
type EngineDeps struct {
	History  SalesHistoryAccessor
	Registry *Registry
	Trainer  Trainer
	Now      Clock
}

// Engine runs the train, predict and fallback pipeline. An engine memoizes
// per-product models for its lifetime, which is one generation request or
// one batch. It is safe for concurrent use.
type Engine struct {
	cfg        Config
	features   *FeatureEngineer
	confidence *ConfidenceModel
	fallback   *FallbackHeuristic
	trainer    Trainer
	registry   *Registry
	logger     zerolog.Logger

	mu       sync.Mutex
	products map[string]*productModel
}

// NewEngine creates an engine. A nil trainer defaults to ridge regression.
func NewEngine(cfg Config, deps EngineDeps, logger zerolog.Logger) *Engine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	trainer := deps.Trainer
	if trainer == nil {
		trainer = &RidgeTrainer{Lambda: DefaultRidgeLambda, Now: now}
	}
	return &Engine{
		cfg:        cfg,
		features:   NewFeatureEngineer(deps.History, cfg, now),
		confidence: NewConfidenceModel(deps.History, cfg, now),
		fallback:   NewFallbackHeuristic(deps.History, cfg, now),
		trainer:    trainer,
		registry:   deps.Registry,
		logger:     logger.With().Str("component", "forecast_engine").Logger(),
		products:   make(map[string]*productModel),
	}
}

// Forecast produces a recommendation quantity for in. Internal failures fall
// back to the heuristic. Only ErrStorageUnavailable is returned as an error.
func (e *Engine) Forecast(ctx context.Context, in ForecastInput) (*ForecastResult, error) {
	start := time.Now()
	res, err := e.predictML(ctx, in)
	if err != nil {
		var failure *ForecastFailure
		if !errors.As(err, &failure) {
			return nil, err
		}
		e.logFailure(failure)
		res, err = e.fallbackResult(ctx, in, failure)
		if err != nil {
			return nil, err
		}
	}
	metrics.RecordForecast(res.Outcome == OutcomeSucceeded, res.Confidence, time.Since(start))
	return res, nil
}

func (e *Engine) predictML(ctx context.Context, in ForecastInput) (*ForecastResult, error) {
	trained, err := e.ensureTrained(ctx, in)
	if err != nil {
		return nil, err
	}

	var model Model = trained
	if e.registry != nil {
		if dm := e.registry.Get(in.VendorID); dm != nil {
			model = dm.Model
		}
	}

	vec, err := e.features.Extract(ctx, FeatureInput{
		VendorID:   in.VendorID,
		ProductID:  in.ProductID,
		VenueID:    in.VenueID,
		MarketDate: in.MarketDate,
		Weather:    in.Weather,
		Event:      in.Event,
	})
	if err != nil {
		return nil, err
	}

	raw, err := model.Predict(vec)
	if err != nil {
		return nil, &ForecastFailure{Kind: FailureModel, Stage: "predict", ProductID: in.ProductID, VenueID: in.VenueID, Err: err}
	}

	conf := e.cfg.NoVenueConfidence
	if in.VenueID != "" {
		conf, err = e.confidence.Score(ctx, in.VendorID, in.VenueID, in.ProductID, in.MarketDate)
		if err != nil {
			return nil, err
		}
	}

	return &ForecastResult{
		Quantity:     clampQuantity(raw),
		Confidence:   conf,
		Features:     FeatureSnapshot{MLUsed: true, Values: vec.Map()},
		ModelVersion: model.Version(),
		Outcome:      OutcomeSucceeded,
	}, nil
}

func (e *Engine) fallbackResult(ctx context.Context, in ForecastInput, failure *ForecastFailure) (*ForecastResult, error) {
	qty, detail, err := e.fallback.Quantity(ctx, in.VendorID, in.ProductID, in.MarketDate, in.Weather, in.Event)
	if err != nil {
		return nil, err
	}
	return &ForecastResult{
		Quantity:     qty,
		Confidence:   e.cfg.FallbackConfidence,
		Features:     detail.Snapshot(),
		ModelVersion: FallbackModelVersion,
		Outcome:      OutcomeFallenBack,
		Failure:      failure,
	}, nil
}

func (e *Engine) logFailure(f *ForecastFailure) {
	metrics.ForecastFailures.WithLabelValues(f.Kind.String()).Inc()
	var event *zerolog.Event
	if f.Kind == FailureInsufficientData {
		event = e.logger.Debug()
	} else {
		event = e.logger.Error().Err(f.Err)
	}
	event.
		Str("product_id", f.ProductID).
		Str("venue_id", f.VenueID).
		Str("stage", f.Stage).
		Msg("forecast falling back to heuristic")
}

// ensureTrained trains the product model at most once per engine. Concurrent
// callers for the same product wait for the first training to finish.
func (e *Engine) ensureTrained(ctx context.Context, in ForecastInput) (*LinearModel, error) {
	e.mu.Lock()
	pm, ok := e.products[in.ProductID]
	if !ok {
		pm = &productModel{state: stateTraining, done: make(chan struct{})}
		e.products[in.ProductID] = pm
		e.mu.Unlock()

		model, failure, err := e.train(ctx, in)

		e.mu.Lock()
		switch {
		case err != nil:
			// Storage errors are not memoized so the next call retries.
			delete(e.products, in.ProductID)
		case failure != nil:
			pm.state, pm.failure = stateSkipped, failure
		default:
			pm.state, pm.model = stateTrained, model
		}
		close(pm.done)
		e.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return e.settled(pm, in)
	}
	e.mu.Unlock()

	select {
	case <-pm.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if pm.state == stateTraining {
		return nil, storageError("train product model", errors.New("concurrent training aborted"))
	}
	return e.settled(pm, in)
}

func (e *Engine) settled(pm *productModel, in ForecastInput) (*LinearModel, error) {
	if pm.state == stateTrained {
		return pm.model, nil
	}
	f := *pm.failure
	f.VenueID = in.VenueID
	return nil, &f
}

func (e *Engine) train(ctx context.Context, in ForecastInput) (*LinearModel, *ForecastFailure, error) {
	ref := e.features.referenceTime(in.MarketDate)
	start := ref.Add(-time.Duration(e.cfg.LookbackDays) * day)
	points, err := e.features.loadPoints(ctx, in.VendorID, in.ProductID, start, ref)
	if err != nil {
		return nil, nil, err
	}

	if days := distinctDays(points); days < e.cfg.MinTrainingDays {
		metrics.ModelTrainings.WithLabelValues("skipped").Inc()
		return nil, &ForecastFailure{
			Kind:      FailureInsufficientData,
			Stage:     "train",
			ProductID: in.ProductID,
			Err:       ErrInsufficientData,
		}, nil
	}

	model, err := e.trainer.Fit(e.features.trainingExamples(points))
	if err != nil {
		kind := FailureModel
		if errors.Is(err, ErrInsufficientData) {
			kind = FailureInsufficientData
		}
		metrics.ModelTrainings.WithLabelValues("failed").Inc()
		return nil, &ForecastFailure{Kind: kind, Stage: "train", ProductID: in.ProductID, Err: err}, nil
	}

	metrics.ModelTrainings.WithLabelValues("trained").Inc()
	e.logger.Debug().
		Str("product_id", in.ProductID).
		Int("samples", model.Samples).
		Str("model_version", model.Tag).
		Msg("product model trained")
	return model, nil, nil
}

// TrainingState reports the memoized state for productID.
func (e *Engine) TrainingState(productID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pm, ok := e.products[productID]; ok {
		return pm.state.String()
	}
	return stateUntrained.String()
}

func clampQuantity(raw float64) int {
	q := int(math.Round(raw))
	if q < 1 {
		return 1
	}
	return q
}
