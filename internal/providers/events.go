// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package providers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/marketcast/internal/cache"
	"github.com/tomtom215/marketcast/internal/config"
	"github.com/tomtom215/marketcast/internal/forecast"
	"github.com/tomtom215/marketcast/internal/metrics"
)

const eventsProvider = "events"

var _ forecast.EventProvider = (*EventsClient)(nil)

type eventsResponse struct {
	Events []eventItem `json:"events"`
}

type eventItem struct {
	Name               string `json:"name"`
	ExpectedAttendance int    `json:"expected_attendance"`
	IsSpecial          bool   `json:"is_special"`
}

// cachedEvent lets the cache remember "no event" as well as an event.
type cachedEvent struct {
	event *forecast.Event
}

// EventsClient looks up local events near a market.
type EventsClient struct {
	api      *apiClient
	radiusKm float64
	cache    *cache.Cache[cachedEvent]
}

// NewEventsClient builds a client from cfg. httpClient may be nil.
func NewEventsClient(cfg config.ProviderConfig, httpClient *http.Client) *EventsClient {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	radius := cfg.RadiusKm
	if radius <= 0 {
		radius = 25
	}
	return &EventsClient{
		api:      newAPIClient(eventsProvider, cfg, httpClient),
		radiusKm: radius,
		cache:    cache.New[cachedEvent](ttl),
	}
}

// ForDate returns the event with the highest expected attendance within the
// configured radius, or nil when nothing is scheduled.
func (c *EventsClient) ForDate(ctx context.Context, date time.Time, loc forecast.Location) (*forecast.Event, error) {
	params := locationParams(loc, date)
	params.Set("radius_km", strconv.FormatFloat(c.radiusKm, 'f', -1, 64))

	key := cache.GenerateKey(eventsProvider, params)
	if hit, ok := c.cache.Get(key); ok {
		metrics.ProviderCacheLookups.WithLabelValues(eventsProvider, "hit").Inc()
		return copyEvent(hit.event), nil
	}
	metrics.ProviderCacheLookups.WithLabelValues(eventsProvider, "miss").Inc()

	body, err := c.api.get(ctx, "/v1/events", params)
	if err != nil {
		return nil, err
	}

	var resp eventsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("events: decode response: %w: %w", forecast.ErrServiceUnavailable, err)
	}

	var best *forecast.Event
	for _, item := range resp.Events {
		if best == nil || item.ExpectedAttendance > best.ExpectedAttendance {
			best = &forecast.Event{
				Name:               item.Name,
				ExpectedAttendance: item.ExpectedAttendance,
				IsSpecial:          item.IsSpecial,
			}
		}
	}
	c.cache.Set(key, cachedEvent{event: best})
	return copyEvent(best), nil
}

func copyEvent(ev *forecast.Event) *forecast.Event {
	if ev == nil {
		return nil
	}
	cp := *ev
	return &cp
}

// BreakerState reports the circuit breaker state.
func (c *EventsClient) BreakerState() string { return c.api.State() }

// Close stops the cache sweep.
func (c *EventsClient) Close() { c.cache.Close() }
