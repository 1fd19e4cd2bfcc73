// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/tomtom215/marketcast/internal/api"
	"github.com/tomtom215/marketcast/internal/config"
	"github.com/tomtom215/marketcast/internal/database"
	"github.com/tomtom215/marketcast/internal/forecast"
	"github.com/tomtom215/marketcast/internal/logging"
	"github.com/tomtom215/marketcast/internal/modelstore"
	"github.com/tomtom215/marketcast/internal/supervisor"
	"github.com/tomtom215/marketcast/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Service:   "marketcast",
		Version:   version,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("model_store", cfg.ModelStore.Path).
		Str("algorithm", cfg.Forecast.Algorithm).
		Msg("Starting Marketcast")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	if cfg.Database.SeedDemoData {
		seedCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		n, err := db.SeedDemoData(seedCtx, time.Now())
		cancel()
		if err != nil {
			logging.Error().Err(err).Msg("Failed to seed demo data")
			os.Exit(1)
		}
		logging.Info().Int("sales_records", n).Msg("Demo data seeded")
	}

	store, err := modelstore.Open(cfg.ModelStore)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open model store")
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing model store")
		}
	}()

	registry := forecast.NewRegistry(store)
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	loaded, err := registry.LoadAll(loadCtx)
	cancelLoad()
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to load deployed models, starting without them")
	} else {
		logging.Info().Int("models", loaded).Msg("Deployed models loaded")
	}

	trainer, err := forecast.NewTrainer(cfg.Forecast.Algorithm, cfg.Forecast.RidgeLambda, time.Now)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create trainer")
		os.Exit(1)
	}

	prov := initProviders(cfg)
	defer prov.Close()

	msg, err := initMessaging(cfg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize messaging")
		os.Exit(1)
	}
	defer msg.Close()

	deps := forecast.ServiceDeps{
		History:  db,
		Catalog:  db,
		Store:    db,
		Registry: registry,
		Trainer:  trainer,
		Now:      time.Now,
	}
	prov.apply(&deps)
	msg.apply(&deps)

	svc, err := forecast.NewService(forecastConfig(cfg), deps, logging.WithComponent("forecast"))
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create forecast service")
		os.Exit(1)
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeConfig(cfg))
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		os.Exit(1)
	}

	// Data layer
	tree.AddDataService(store)
	if cfg.Retrain.Enabled {
		tree.AddDataService(services.NewRetrainService(svc, services.RetrainServiceConfig{
			OnStartup: cfg.Retrain.OnStartup,
			Interval:  cfg.Retrain.Interval,
			Timeout:   cfg.Retrain.Timeout,
		}, logging.WithComponent("retrain")))
		logging.Info().
			Dur("interval", cfg.Retrain.Interval).
			Bool("on_startup", cfg.Retrain.OnStartup).
			Msg("Scheduled retraining enabled")
	} else {
		logging.Info().Msg("Scheduled retraining disabled (RETRAIN_ENABLED=false)")
	}

	// Messaging layer
	if router := msg.router(svc, cfg.Accuracy.MonitorWindow); router != nil {
		tree.AddMessagingService(router)
	}

	// API layer
	handler := api.NewHandler(svc, api.HandlerConfig{
		DefaultDaysBack: cfg.Accuracy.MonitorWindow,
		Version:         version,
		Health: api.HealthDeps{
			Database:  db,
			Providers: prov.breakers(),
			Models:    registry,
			Transport: msg.transport(),
		},
	})
	if cfg.Server.RateLimitOff {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	if slices.Contains(cfg.Server.CORSOrigins, "*") {
		logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*), set explicit origins in production")
	}
	httpServer := &http.Server{
		Handler: api.NewRouter(handler, api.RouterConfig{
			Middleware: api.MiddlewareConfig{
				CORSAllowedOrigins: cfg.Server.CORSOrigins,
				RateLimitRequests:  cfg.Server.RateLimitReqs,
				RateLimitWindow:    cfg.Server.RateLimitWindow,
				RateLimitDisabled:  cfg.Server.RateLimitOff,
			},
			RequestTimeout: cfg.Server.Timeout,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.Address(), cfg.Server.ShutdownTimeout, logging.WithComponent("http")))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Interface("services", tree.Inventory()).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
		stop()
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, s := range unstopped {
			logging.Warn().Str("service", s.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Marketcast stopped")
}

// forecastConfig maps the file/env configuration onto the engine parameters.
func forecastConfig(cfg *config.Config) forecast.Config {
	fc := forecast.DefaultConfig()
	fc.LookbackDays = cfg.Forecast.LookbackDays
	fc.MinTrainingDays = cfg.Forecast.MinTrainingDays
	fc.FallbackWindowDays = cfg.Forecast.FallbackWindowDays
	fc.FallbackDefaultQuantity = cfg.Forecast.FallbackDefaultQuantity
	fc.SeasonalityZThreshold = cfg.Forecast.SeasonalityZThreshold
	fc.SeasonalityMinMonths = cfg.Forecast.SeasonalityMinMonths
	fc.StalenessMonths = cfg.Forecast.StalenessMonths
	fc.NoVenueConfidence = cfg.Forecast.NoVenueConfidence
	fc.FallbackConfidence = cfg.Forecast.FallbackConfidence
	fc.BatchLimit = cfg.Forecast.BatchLimit
	fc.AccuracyTarget = cfg.Accuracy.TargetRate
	fc.TrendWeeks = cfg.Accuracy.TrendWeeks
	fc.Retrain = forecast.RetrainConfig{
		MinExamples:  cfg.Retrain.MinExamples,
		TestFraction: cfg.Retrain.TestFraction,
		Tolerance:    cfg.Retrain.Tolerance,
		Seed:         cfg.Retrain.Seed,
	}
	return fc
}

func treeConfig(cfg *config.Config) supervisor.TreeConfig {
	tc := supervisor.DefaultTreeConfig()
	if cfg.Server.ShutdownTimeout > 0 {
		// Room for the HTTP server to drain before suture gives up.
		tc.ShutdownTimeout = cfg.Server.ShutdownTimeout + 5*time.Second
	}
	return tc
}
