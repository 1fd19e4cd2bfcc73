// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/marketcast/internal/logging"
	"github.com/tomtom215/marketcast/internal/middleware"
)

// MiddlewareConfig holds CORS and rate limiting settings.
type MiddlewareConfig struct {
	// CORS. Origins default to empty, so cross-origin requests are refused
	// until configured.
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int // seconds

	// Per-IP rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// DefaultMiddlewareConfig returns the defaults used when a field is unset.
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		CORSAllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		CORSMaxAge:         86400,
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
	}
}

func (c MiddlewareConfig) withDefaults() MiddlewareConfig {
	d := DefaultMiddlewareConfig()
	if c.CORSAllowedOrigins == nil {
		c.CORSAllowedOrigins = d.CORSAllowedOrigins
	}
	if len(c.CORSAllowedMethods) == 0 {
		c.CORSAllowedMethods = d.CORSAllowedMethods
	}
	if len(c.CORSAllowedHeaders) == 0 {
		c.CORSAllowedHeaders = d.CORSAllowedHeaders
	}
	if c.CORSMaxAge <= 0 {
		c.CORSMaxAge = d.CORSMaxAge
	}
	if c.RateLimitRequests <= 0 {
		c.RateLimitRequests = d.RateLimitRequests
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = d.RateLimitWindow
	}
	return c
}

// CORS returns the go-chi/cors handler for cfg.
func CORS(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: cfg.CORSAllowedMethods,
		AllowedHeaders: cfg.CORSAllowedHeaders,
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         cfg.CORSMaxAge,
	})
}

// RateLimit limits requests per client IP. It is a no-op when disabled.
// Rejected requests get the standard error envelope.
func RateLimit(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	cfg = cfg.withDefaults()
	return httprate.Limit(
		cfg.RateLimitRequests,
		cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(cfg.RateLimitWindow.Seconds())))
			NewResponseWriter(w, r).Error(http.StatusTooManyRequests, ErrCodeTooManyRequests, "rate limit exceeded")
		}),
	)
}

// vendorContext adds the {vendorID} URL parameter to the logging context.
func vendorContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chi.URLParam(r, "vendorID"); id != "" {
			r = r.WithContext(logging.ContextWithVendorID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
