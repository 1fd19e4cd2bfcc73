// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"

	"github.com/tomtom215/marketcast/internal/logging"
)

// RouterConfig tunes handler retries.
type RouterConfig struct {
	CloseTimeout    time.Duration
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:    10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

type consumer struct {
	name    string
	topic   string
	handler message.NoPublishHandlerFunc
}

// Router runs consumer handlers against the bus subscriber. It implements
// suture.Service; each Serve call builds a fresh Watermill router because a
// router cannot be run twice.
type Router struct {
	subscriber message.Subscriber
	cfg        RouterConfig
	consumers  []consumer
	logger     zerolog.Logger
	wmLogger   watermill.LoggerAdapter

	runningOnce sync.Once
	running     chan struct{}
}

// NewRouter creates a router reading from subscriber.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRouter(subscriber message.Subscriber, cfg RouterConfig, logger zerolog.Logger) *Router {
	logger = logger.With().Str("component", "event_router").Logger()
	return &Router{
		subscriber: subscriber,
		cfg:        cfg,
		logger:     logger,
		wmLogger:   logging.NewWatermillAdapter(logger),
		running:    make(chan struct{}),
	}
}

// AddConsumer registers a handler for topic. Must be called before Serve.
func (r *Router) AddConsumer(name, topic string, handler message.NoPublishHandlerFunc) {
	r.consumers = append(r.consumers, consumer{name: name, topic: topic, handler: handler})
}

// Serve runs the handlers until ctx is canceled.
func (r *Router) Serve(ctx context.Context) error {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: r.cfg.CloseTimeout}, r.wmLogger)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      r.cfg.MaxRetries,
			InitialInterval: r.cfg.InitialInterval,
			MaxInterval:     r.cfg.MaxInterval,
			Multiplier:      2,
			Logger:          r.wmLogger,
		}.Middleware,
	)
	for _, c := range r.consumers {
		router.AddConsumerHandler(c.name, c.topic, r.subscriber, c.handler)
	}

	go func() {
		select {
		case <-router.Running():
			r.runningOnce.Do(func() { close(r.running) })
			r.logger.Info().Int("handlers", len(r.consumers)).Msg("Event router running")
		case <-ctx.Done():
		}
	}()

	if err := router.Run(ctx); err != nil {
		return fmt.Errorf("event router: %w", err)
	}
	return ctx.Err()
}

// Running is closed once the first router is subscribed and running.
func (r *Router) Running() <-chan struct{} {
	return r.running
}

// String names the service in supervisor logs.
func (r *Router) String() string {
	return "event-router"
}
