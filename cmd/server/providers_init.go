// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package main

import (
	"github.com/tomtom215/marketcast/internal/api"
	"github.com/tomtom215/marketcast/internal/config"
	"github.com/tomtom215/marketcast/internal/forecast"
	"github.com/tomtom215/marketcast/internal/logging"
	"github.com/tomtom215/marketcast/internal/providers"
)

// providerSet holds the enabled context providers. Either client may be nil.
type providerSet struct {
	weather *providers.WeatherClient
	events  *providers.EventsClient
}

func initProviders(cfg *config.Config) *providerSet {
	p := &providerSet{}

	if cfg.Weather.Enabled {
		p.weather = providers.NewWeatherClient(cfg.Weather, nil)
		logging.Info().Str("url", cfg.Weather.URL).Dur("cache_ttl", cfg.Weather.CacheTTL).Msg("Weather provider enabled")
	} else {
		logging.Info().Msg("Weather provider disabled, requests without weather use defaults")
	}

	if cfg.Events.Enabled {
		p.events = providers.NewEventsClient(cfg.Events, nil)
		logging.Info().Str("url", cfg.Events.URL).Float64("radius_km", cfg.Events.RadiusKm).Msg("Events provider enabled")
	} else {
		logging.Info().Msg("Events provider disabled")
	}

	return p
}

// apply sets only the enabled providers so that a disabled one stays a nil
// interface rather than a typed nil.
func (p *providerSet) apply(deps *forecast.ServiceDeps) {
	if p.weather != nil {
		deps.Weather = p.weather
	}
	if p.events != nil {
		deps.Events = p.events
	}
}

func (p *providerSet) breakers() map[string]api.BreakerReporter {
	out := make(map[string]api.BreakerReporter, 2)
	if p.weather != nil {
		out["weather"] = p.weather
	}
	if p.events != nil {
		out["events"] = p.events
	}
	return out
}

// Close stops the provider cache janitors.
func (p *providerSet) Close() {
	if p.weather != nil {
		p.weather.Close()
	}
	if p.events != nil {
		p.events.Close()
	}
}
