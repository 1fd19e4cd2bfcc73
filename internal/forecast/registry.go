// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DeployedModel is a vendor model currently serving predictions.
type DeployedModel struct {
	VendorID   string       `json:"vendor_id"`
	Model      *LinearModel `json:"model"`
	MAE        float64      `json:"mae"`
	DeployedAt time.Time    `json:"deployed_at"`
}

// ModelPersister stores deployed models so they survive restarts.
type ModelPersister interface {
	SaveModel(ctx context.Context, dm *DeployedModel) error
	LoadModels(ctx context.Context) ([]*DeployedModel, error)
}

// Registry holds the deployed model of each vendor. Readers never block and
// always observe either the previous or the replacement model.
type Registry struct {
	models    sync.Map // vendorID -> *atomic.Pointer[DeployedModel]
	persister ModelPersister
}

// NewRegistry creates a registry. persister may be nil for in-memory use.
func NewRegistry(persister ModelPersister) *Registry {
	return &Registry{persister: persister}
}

func (r *Registry) slot(vendorID string) *atomic.Pointer[DeployedModel] {
	if p, ok := r.models.Load(vendorID); ok {
		return p.(*atomic.Pointer[DeployedModel])
	}
	p, _ := r.models.LoadOrStore(vendorID, new(atomic.Pointer[DeployedModel]))
	return p.(*atomic.Pointer[DeployedModel])
}

// Get returns the deployed model for vendorID, or nil.
func (r *Registry) Get(vendorID string) *DeployedModel {
	p, ok := r.models.Load(vendorID)
	if !ok {
		return nil
	}
	return p.(*atomic.Pointer[DeployedModel]).Load()
}

// Swap persists dm and then makes it the vendor's deployed model. On a
// persistence error the previous model stays deployed.
func (r *Registry) Swap(ctx context.Context, dm *DeployedModel) error {
	if dm == nil || dm.Model == nil {
		return errors.New("swap: nil model")
	}
	if r.persister != nil {
		if err := r.persister.SaveModel(ctx, dm); err != nil {
			return fmt.Errorf("persist model for vendor %s: %w", dm.VendorID, err)
		}
	}
	r.slot(dm.VendorID).Store(dm)
	return nil
}

// LoadAll restores persisted models and returns how many were loaded.
func (r *Registry) LoadAll(ctx context.Context) (int, error) {
	if r.persister == nil {
		return 0, nil
	}
	models, err := r.persister.LoadModels(ctx)
	if err != nil {
		return 0, fmt.Errorf("load models: %w", err)
	}
	n := 0
	for _, dm := range models {
		if dm == nil || dm.Model == nil {
			continue
		}
		r.slot(dm.VendorID).Store(dm)
		n++
	}
	return n, nil
}

// Vendors lists vendors with a deployed model.
func (r *Registry) Vendors() []string {
	var out []string
	r.models.Range(func(k, v any) bool {
		if v.(*atomic.Pointer[DeployedModel]).Load() != nil {
			out = append(out, k.(string))
		}
		return true
	})
	return out
}
