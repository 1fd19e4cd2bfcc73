// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/marketcast/internal/config"
	"github.com/tomtom215/marketcast/internal/forecast"
)

var (
	testLoc  = forecast.Location{Latitude: 45.5231, Longitude: -122.6765}
	testDate = time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)
)

func testConfig(url string) config.ProviderConfig {
	return config.ProviderConfig{
		Enabled:         true,
		URL:             url,
		APIKey:          "secret",
		Timeout:         2 * time.Second,
		CacheTTL:        time.Minute,
		RateLimit:       1000,
		Burst:           100,
		RadiusKm:        10,
		BreakerFailures: 2,
		BreakerTimeout:  time.Minute,
	}
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("api_key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestWeatherForecast(t *testing.T) {
	srv, hits := newServer(t, http.StatusOK,
		`{"date":"2026-06-20","temp_f":81.5,"feels_like_f":84,"humidity":35,"condition":" Sunny ","description":"clear skies"}`)
	c := NewWeatherClient(testConfig(srv.URL), nil)
	defer c.Close()

	w, err := c.Forecast(context.Background(), testLoc, testDate)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if w.TempF != 81.5 || w.FeelsLikeF != 84 || w.Humidity != 35 {
		t.Errorf("Forecast() = %+v", w)
	}
	if w.Condition != "sunny" {
		t.Errorf("Condition = %q, want normalized %q", w.Condition, "sunny")
	}

	if _, err := c.Forecast(context.Background(), testLoc, testDate); err != nil {
		t.Fatalf("cached Forecast() error = %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1 (second call cached)", got)
	}

	if _, err := c.Forecast(context.Background(), testLoc, testDate.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("Forecast(next day) error = %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2 for a different date", got)
	}
}

func TestWeatherDefaultsMissingFields(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"temp_f":60,"condition":"Rain"}`)
	c := NewWeatherClient(testConfig(srv.URL), nil)
	defer c.Close()

	w, err := c.Forecast(context.Background(), testLoc, testDate)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if w.FeelsLikeF != 60 || w.Humidity != forecast.DefaultHumidity {
		t.Errorf("Forecast() = %+v, want feels-like from temp and default humidity", w)
	}
}

func TestWeatherFailuresAreServiceUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `oops`},
		{"malformed body", http.StatusOK, `{"temp_f":`},
		{"no temperature", http.StatusOK, `{"condition":"sunny"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, tt.status, tt.body)
			c := NewWeatherClient(testConfig(srv.URL), nil)
			defer c.Close()

			_, err := c.Forecast(context.Background(), testLoc, testDate)
			if !errors.Is(err, forecast.ErrServiceUnavailable) {
				t.Errorf("Forecast() error = %v, want ErrServiceUnavailable", err)
			}
		})
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	srv, hits := newServer(t, http.StatusServiceUnavailable, `down`)
	c := NewWeatherClient(testConfig(srv.URL), nil)
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.Forecast(ctx, testLoc, testDate); !errors.Is(err, forecast.ErrServiceUnavailable) {
			t.Fatalf("call %d error = %v, want ErrServiceUnavailable", i, err)
		}
	}
	if got := c.BreakerState(); got != "open" {
		t.Fatalf("BreakerState() = %q, want open", got)
	}

	_, err := c.Forecast(ctx, testLoc, testDate)
	if !errors.Is(err, forecast.ErrServiceUnavailable) {
		t.Errorf("open breaker error = %v, want ErrServiceUnavailable", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2 (open breaker short-circuits)", got)
	}
}

func TestRateLimiterHonorsContext(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"temp_f":70}`)
	cfg := testConfig(srv.URL)
	cfg.RateLimit = 0.001
	cfg.Burst = 1
	c := NewWeatherClient(cfg, nil)
	defer c.Close()

	if _, err := c.Forecast(context.Background(), testLoc, testDate); err != nil {
		t.Fatalf("first Forecast() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Forecast(ctx, testLoc, testDate.AddDate(0, 0, 1))
	if !errors.Is(err, forecast.ErrServiceUnavailable) {
		t.Errorf("rate limited Forecast() error = %v, want ErrServiceUnavailable", err)
	}
}

func TestEventsForDate(t *testing.T) {
	var gotRadius atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRadius.Store(r.URL.Query().Get("radius_km"))
		_, _ = w.Write([]byte(`{"events":[
			{"name":"Farmers Parade","expected_attendance":800,"is_special":false},
			{"name":"Jazz Fest","expected_attendance":5000,"is_special":true},
			{"name":"Book Fair","expected_attendance":300}
		]}`))
	}))
	defer srv.Close()

	c := NewEventsClient(testConfig(srv.URL), nil)
	defer c.Close()

	ev, err := c.ForDate(context.Background(), testDate, testLoc)
	if err != nil {
		t.Fatalf("ForDate() error = %v", err)
	}
	if ev == nil || ev.Name != "Jazz Fest" || ev.ExpectedAttendance != 5000 || !ev.IsSpecial {
		t.Errorf("ForDate() = %+v, want Jazz Fest", ev)
	}
	if got, _ := gotRadius.Load().(string); got != "10" {
		t.Errorf("radius_km = %q, want 10", got)
	}

	ev.Name = "mutated"
	again, _ := c.ForDate(context.Background(), testDate, testLoc)
	if again.Name != "Jazz Fest" {
		t.Error("cached event was mutated through a returned pointer")
	}
}

func TestEventsNoneScheduled(t *testing.T) {
	srv, hits := newServer(t, http.StatusOK, `{"events":[]}`)
	c := NewEventsClient(testConfig(srv.URL), nil)
	defer c.Close()

	for i := 0; i < 2; i++ {
		ev, err := c.ForDate(context.Background(), testDate, testLoc)
		if err != nil {
			t.Fatalf("ForDate() error = %v", err)
		}
		if ev != nil {
			t.Errorf("ForDate() = %+v, want nil", ev)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1 (empty result cached)", got)
	}
}

func TestEventsUnavailable(t *testing.T) {
	c := NewEventsClient(testConfig("http://127.0.0.1:1"), &http.Client{Timeout: 200 * time.Millisecond})
	defer c.Close()

	_, err := c.ForDate(context.Background(), testDate, testLoc)
	if !errors.Is(err, forecast.ErrServiceUnavailable) {
		t.Errorf("ForDate() error = %v, want ErrServiceUnavailable", err)
	}
}
