// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package api

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks storage connectivity. *database.DB satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerReporter reports a provider circuit breaker state.
type BreakerReporter interface {
	BreakerState() string
}

// VendorLister reports the vendors with a deployed model. *forecast.Registry
// satisfies it.
type VendorLister interface {
	Vendors() []string
}

// HealthDeps are the components inspected by the health endpoint. Any of
// them may be nil.
type HealthDeps struct {
	Database  Pinger
	Providers map[string]BreakerReporter
	Models    VendorLister
	Transport string
}

// Health status values.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status            string            `json:"status"`
	Version           string            `json:"version"`
	DatabaseConnected bool              `json:"database_connected"`
	Providers         map[string]string `json:"providers,omitempty"`
	Messaging         string            `json:"messaging,omitempty"`
	DeployedModels    int               `json:"deployed_models"`
	Uptime            float64           `json:"uptime_seconds"`
}

// Health handles GET /api/v1/health. A failed database ping is unhealthy
// (503); an open provider breaker only degrades the service.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	deps := h.config.Health

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:            HealthHealthy,
		Version:           h.config.Version,
		DatabaseConnected: deps.Database != nil && deps.Database.Ping(ctx) == nil,
		Messaging:         deps.Transport,
		Uptime:            time.Since(h.startTime).Seconds(),
	}
	if deps.Models != nil {
		status.DeployedModels = len(deps.Models.Vendors())
	}

	if len(deps.Providers) > 0 {
		status.Providers = make(map[string]string, len(deps.Providers))
		for name, provider := range deps.Providers {
			state := provider.BreakerState()
			status.Providers[name] = state
			if state != "closed" {
				status.Status = HealthDegraded
			}
		}
	}

	if !status.DatabaseConnected {
		status.Status = HealthUnhealthy
		rw.write(http.StatusServiceUnavailable, status)
		return
	}
	rw.Success(status)
}
