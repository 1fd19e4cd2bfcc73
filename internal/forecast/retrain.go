// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package forecast

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/marketcast/internal/metrics"
)

// Skip reasons reported in RetrainResult.Reason.
const (
	ReasonInsufficientData = "insufficient data"
	ReasonRegressed        = "new model regressed beyond tolerance"
)

// RetrainResult reports one retraining run.
type RetrainResult struct {
	VendorID     string    `json:"vendor_id"`
	Replaced     bool      `json:"replaced"`
	Skipped      bool      `json:"skipped"`
	Reason       string    `json:"reason,omitempty"`
	NewMAE       float64   `json:"new_mae"`
	OldMAE       *float64  `json:"old_mae,omitempty"`
	TrainSize    int       `json:"train_size"`
	TestSize     int       `json:"test_size"`
	ModelVersion string    `json:"model_version,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// RetrainingCoordinator retrains vendor models from feedback and deploys a
// new model only when it does not regress.
type RetrainingCoordinator struct {
	store     RecommendationStore
	registry  *Registry
	trainer   Trainer
	publisher EventPublisher
	cfg       RetrainConfig
	now       Clock
	logger    zerolog.Logger
}

// NewRetrainingCoordinator creates a coordinator. publisher may be nil.
func NewRetrainingCoordinator(store RecommendationStore, registry *Registry, trainer Trainer, publisher EventPublisher, cfg RetrainConfig, now Clock, logger zerolog.Logger) *RetrainingCoordinator {
	if now == nil {
		now = time.Now
	}
	return &RetrainingCoordinator{
		store:     store,
		registry:  registry,
		trainer:   trainer,
		publisher: publisher,
		cfg:       cfg,
		now:       now,
		logger:    logger.With().Str("component", "retrain").Logger(),
	}
}

// Retrain collects the vendor's feedback-labeled examples and retrains.
func (c *RetrainingCoordinator) Retrain(ctx context.Context, vendorID string) (*RetrainResult, error) {
	raw, err := c.store.FeedbackExamples(ctx, vendorID)
	if err != nil {
		return nil, storageError("load feedback examples", err)
	}
	examples := make([]LabeledExample, 0, len(raw))
	for _, ex := range raw {
		if !ex.Features.MLUsed {
			continue
		}
		vec, err := FeatureVectorFromMap(ex.Features.Values)
		if err != nil {
			c.logger.Debug().Err(err).Str("recommendation_id", ex.RecommendationID).Msg("skipping undecodable snapshot")
			continue
		}
		examples = append(examples, LabeledExample{Features: vec, Quantity: float64(ex.ActualQuantitySold)})
	}
	return c.RetrainExamples(ctx, vendorID, examples)
}

// RetrainExamples runs the split, fit and replacement decision on examples.
func (c *RetrainingCoordinator) RetrainExamples(ctx context.Context, vendorID string, examples []LabeledExample) (*RetrainResult, error) {
	result := &RetrainResult{VendorID: vendorID}
	defer func() { result.CompletedAt = c.now().UTC() }()

	if len(examples) < c.cfg.MinExamples {
		result.Skipped, result.Reason = true, ReasonInsufficientData
		metrics.RecordRetrain("skipped")
		c.logger.Debug().Str("vendor_id", vendorID).Int("examples", len(examples)).Msg("retrain skipped")
		return result, nil
	}

	train, test := splitExamples(examples, c.cfg.TestFraction, c.cfg.Seed)
	result.TrainSize, result.TestSize = len(train), len(test)

	model, err := c.trainer.Fit(train)
	if err != nil {
		metrics.RecordRetrain("failed")
		return nil, fmt.Errorf("fit %s model for vendor %s: %w", c.trainer.Name(), vendorID, err)
	}
	newMAE, err := MeanAbsoluteError(model, test)
	if err != nil {
		metrics.RecordRetrain("failed")
		return nil, fmt.Errorf("score new model for vendor %s: %w", vendorID, err)
	}
	result.NewMAE = newMAE
	result.ModelVersion = model.Version()

	if current := c.registry.Get(vendorID); current != nil {
		oldMAE, err := MeanAbsoluteError(current.Model, test)
		if err != nil {
			c.logger.Warn().Err(err).Str("vendor_id", vendorID).Msg("deployed model failed on held-out set, replacing")
		} else {
			result.OldMAE = &oldMAE
			if newMAE > oldMAE*c.cfg.Tolerance {
				result.Reason = ReasonRegressed
				metrics.RecordRetrain("kept")
				c.logger.Info().
					Str("vendor_id", vendorID).
					Float64("new_mae", newMAE).
					Float64("old_mae", oldMAE).
					Msg("keeping deployed model")
				c.publish(ctx, result)
				return result, nil
			}
		}
	}

	if err := c.registry.Swap(ctx, &DeployedModel{
		VendorID:   vendorID,
		Model:      model,
		MAE:        newMAE,
		DeployedAt: c.now().UTC(),
	}); err != nil {
		metrics.RecordRetrain("failed")
		return nil, storageError("deploy model", err)
	}
	result.Replaced = true
	metrics.RecordRetrain("replaced")
	metrics.ModelMAE.WithLabelValues(vendorID).Set(newMAE)
	c.logger.Info().
		Str("vendor_id", vendorID).
		Str("model_version", result.ModelVersion).
		Float64("new_mae", newMAE).
		Int("train_size", result.TrainSize).
		Msg("deployed retrained model")
	c.publish(ctx, result)
	return result, nil
}

func (c *RetrainingCoordinator) publish(ctx context.Context, result *RetrainResult) {
	if c.publisher == nil {
		return
	}
	result.CompletedAt = c.now().UTC()
	if err := c.publisher.ModelRetrained(ctx, result.VendorID, result); err != nil {
		c.logger.Warn().Err(err).Str("vendor_id", result.VendorID).Msg("failed to publish retrain event")
	}
}

// splitExamples shuffles with a fixed seed and holds out
// max(1, floor(n*fraction)) examples for testing.
func splitExamples(examples []LabeledExample, fraction float64, seed int64) (train, test []LabeledExample) {
	n := len(examples)
	testN := int(float64(n) * fraction)
	if testN < 1 {
		testN = 1
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	test = make([]LabeledExample, 0, testN)
	train = make([]LabeledExample, 0, n-testN)
	for i, idx := range perm {
		if i < testN {
			test = append(test, examples[idx])
		} else {
			train = append(train, examples[idx])
		}
	}
	return train, test
}
