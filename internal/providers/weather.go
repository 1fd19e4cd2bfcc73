// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/marketcast/internal/cache"
	"github.com/tomtom215/marketcast/internal/config"
	"github.com/tomtom215/marketcast/internal/forecast"
	"github.com/tomtom215/marketcast/internal/metrics"
)

const weatherProvider = "weather"

var _ forecast.WeatherProvider = (*WeatherClient)(nil)

// weatherResponse is the body of GET /v1/forecast.
type weatherResponse struct {
	Date        string   `json:"date"`
	TempF       *float64 `json:"temp_f"`
	FeelsLikeF  *float64 `json:"feels_like_f"`
	Humidity    *float64 `json:"humidity"`
	Condition   string   `json:"condition"`
	Description string   `json:"description"`
}

// WeatherClient looks up daily forecasts. Responses are cached per rounded
// location and date.
type WeatherClient struct {
	api   *apiClient
	cache *cache.Cache[forecast.Weather]
}

// NewWeatherClient builds a client from cfg. httpClient may be nil.
func NewWeatherClient(cfg config.ProviderConfig, httpClient *http.Client) *WeatherClient {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &WeatherClient{
		api:   newAPIClient(weatherProvider, cfg, httpClient),
		cache: cache.New[forecast.Weather](ttl),
	}
}

// Forecast returns the weather for loc on date. Failures wrap
// forecast.ErrServiceUnavailable.
func (c *WeatherClient) Forecast(ctx context.Context, loc forecast.Location, date time.Time) (*forecast.Weather, error) {
	params := locationParams(loc, date)
	key := cache.GenerateKey(weatherProvider, params)
	if w, ok := c.cache.Get(key); ok {
		metrics.ProviderCacheLookups.WithLabelValues(weatherProvider, "hit").Inc()
		return &w, nil
	}
	metrics.ProviderCacheLookups.WithLabelValues(weatherProvider, "miss").Inc()

	body, err := c.api.get(ctx, "/v1/forecast", params)
	if err != nil {
		return nil, err
	}

	var resp weatherResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("weather: decode response: %w: %w", forecast.ErrServiceUnavailable, err)
	}
	if resp.TempF == nil {
		return nil, fmt.Errorf("weather: response has no temperature: %w", forecast.ErrServiceUnavailable)
	}

	w := forecast.Weather{
		TempF:       *resp.TempF,
		FeelsLikeF:  *resp.TempF,
		Humidity:    forecast.DefaultHumidity,
		Condition:   strings.ToLower(strings.TrimSpace(resp.Condition)),
		Description: resp.Description,
	}
	if resp.FeelsLikeF != nil {
		w.FeelsLikeF = *resp.FeelsLikeF
	}
	if resp.Humidity != nil {
		w.Humidity = *resp.Humidity
	}
	c.cache.Set(key, w)
	return &w, nil
}

// BreakerState reports the circuit breaker state.
func (c *WeatherClient) BreakerState() string { return c.api.State() }

// Close stops the cache sweep.
func (c *WeatherClient) Close() { c.cache.Close() }
