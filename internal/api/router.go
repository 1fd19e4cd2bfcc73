// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/marketcast/internal/middleware"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Middleware MiddlewareConfig

	// RequestTimeout bounds vendor routes. Zero disables the timeout.
	RequestTimeout time.Duration
}

// NewRouter builds the chi router:
//
//	GET  /metrics
//	GET  /api/v1/health
//	POST /api/v1/vendors/{vendorID}/recommendations
//	POST /api/v1/vendors/{vendorID}/recommendations/batch
//	POST /api/v1/vendors/{vendorID}/recommendations/{id}/accept
//	POST /api/v1/vendors/{vendorID}/recommendations/{id}/feedback
//	GET  /api/v1/vendors/{vendorID}/accuracy
//	POST /api/v1/vendors/{vendorID}/retrain
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(CORS(cfg.Middleware))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, ErrCodeBadRequest, "method not allowed")
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/vendors/{vendorID}", func(r chi.Router) {
			r.Use(vendorContext)
			r.Use(RateLimit(cfg.Middleware))
			r.Use(chimiddleware.Compress(5))
			if cfg.RequestTimeout > 0 {
				r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
			}

			r.Post("/recommendations", h.GenerateRecommendation)
			r.Post("/recommendations/batch", h.GenerateBatch)
			r.Post("/recommendations/{id}/accept", h.AcceptRecommendation)
			r.Post("/recommendations/{id}/feedback", h.RecordFeedback)
			r.Get("/accuracy", h.VendorAccuracy)
			r.Post("/retrain", h.Retrain)
		})
	})

	return r
}
