// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/marketcast/internal/forecast"
)

// Retrainer retrains every vendor that has feedback. *forecast.Service
// satisfies it.
type Retrainer interface {
	RetrainAll(ctx context.Context) ([]*forecast.RetrainResult, error)
}

// RetrainServiceConfig holds the retraining schedule.
type RetrainServiceConfig struct {
	// OnStartup runs a retraining pass as soon as the service starts.
	OnStartup bool

	// Interval between scheduled passes. Default: 24h
	Interval time.Duration

	// Timeout bounds a single pass. Default: 30m
	Timeout time.Duration
}

// RetrainService runs scheduled retraining out of band from prediction.
type RetrainService struct {
	retrainer Retrainer
	config    RetrainServiceConfig
	logger    zerolog.Logger
	name      string
}

// NewRetrainService creates the scheduler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRetrainService(retrainer Retrainer, cfg RetrainServiceConfig, logger zerolog.Logger) *RetrainService {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &RetrainService{
		retrainer: retrainer,
		config:    cfg,
		logger:    logger.With().Str("service", "retrain").Logger(),
		name:      "retrain-scheduler",
	}
}

// Serve implements suture.Service. Failed passes are logged and retried on
// the next tick; they never stop the service.
func (s *RetrainService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("on_startup", s.config.OnStartup).
		Dur("interval", s.config.Interval).
		Msg("retrain scheduler starting")

	if s.config.OnStartup {
		s.runPass(ctx, "startup")
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("retrain scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.runPass(ctx, "scheduled")
		}
	}
}

func (s *RetrainService) runPass(ctx context.Context, trigger string) {
	passCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	results, err := s.retrainer.RetrainAll(passCtx)

	var replaced, kept, skipped int
	for _, r := range results {
		switch {
		case r == nil:
		case r.Skipped:
			skipped++
		case r.Replaced:
			replaced++
		default:
			kept++
		}
	}

	event := s.logger.Info()
	if err != nil {
		event = s.logger.Warn().Err(err)
	}
	event.
		Str("trigger", trigger).
		Int("vendors", len(results)).
		Int("replaced", replaced).
		Int("kept", kept).
		Int("skipped", skipped).
		Dur("duration", time.Since(start)).
		Msg("retraining pass complete")
}

// String names the service in supervisor logs.
func (s *RetrainService) String() string {
	return s.name
}
