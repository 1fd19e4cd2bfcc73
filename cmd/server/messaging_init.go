// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package main

import (
	"github.com/tomtom215/marketcast/internal/config"
	"github.com/tomtom215/marketcast/internal/events"
	"github.com/tomtom215/marketcast/internal/forecast"
	"github.com/tomtom215/marketcast/internal/logging"
)

// messaging holds the event bus. A nil bus means events are disabled.
type messaging struct {
	bus *events.Bus
}

func initMessaging(cfg *config.Config) (*messaging, error) {
	if !cfg.Messaging.Enabled {
		logging.Info().Msg("Domain events disabled (MESSAGING_ENABLED=false)")
		return &messaging{}, nil
	}

	bus, err := events.NewBus(cfg.Messaging, logging.WithComponent("events"))
	if err != nil {
		return nil, err
	}
	logging.Info().
		Str("transport", bus.Transport()).
		Bool("embedded_server", cfg.Messaging.EmbeddedServer).
		Msg("Event bus connected")
	return &messaging{bus: bus}, nil
}

func (m *messaging) apply(deps *forecast.ServiceDeps) {
	if m.bus != nil {
		deps.Publisher = events.NewPublisher(m.bus.Publisher(), deps.Now)
	}
}

// router builds the consumer router with the accuracy monitor, or nil when
// events are disabled.
func (m *messaging) router(evaluator events.AccuracyEvaluator, windowDays int) *events.Router {
	if m.bus == nil {
		return nil
	}
	logger := logging.WithComponent("events")
	monitor := events.NewAccuracyMonitor(evaluator, windowDays, logger)

	r := events.NewRouter(m.bus.Subscriber(), events.DefaultRouterConfig(), logger)
	r.AddConsumer("accuracy-monitor", events.TopicFeedbackRecorded, monitor.Handle)
	return r
}

func (m *messaging) transport() string {
	if m.bus == nil {
		return "disabled"
	}
	return m.bus.Transport()
}

func (m *messaging) Close() {
	if m.bus == nil {
		return
	}
	if err := m.bus.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing event bus")
	}
}
