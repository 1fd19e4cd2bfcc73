// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package modelstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/marketcast/internal/config"
	"github.com/tomtom215/marketcast/internal/forecast"
)

func testModel(tag string, intercept float64) *forecast.LinearModel {
	return &forecast.LinearModel{
		Algorithm: forecast.AlgorithmRidge,
		Tag:       tag,
		Scaler:    forecast.Scaler{Mean: make([]float64, forecast.NumFeatures), Scale: make([]float64, forecast.NumFeatures)},
		Intercept: intercept,
		Weights:   make([]float64, forecast.NumFeatures),
		TrainedAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Samples:   20,
	}
}

func deployed(vendor, tag string, at time.Time) *forecast.DeployedModel {
	return &forecast.DeployedModel{VendorID: vendor, Model: testModel(tag, 12), MAE: 1.5, DeployedAt: at}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	s, err := Open(config.ModelStoreConfig{Path: dir, SyncWrites: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for i, dm := range []*forecast.DeployedModel{
		deployed("v1", "ridge-a", base),
		deployed("v1", "ridge-b", base.Add(time.Hour)),
		deployed("v2", "ridge-c", base),
	} {
		if err := s.SaveModel(ctx, dm); err != nil {
			t.Fatalf("SaveModel(%d) error = %v", i, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(config.ModelStoreConfig{Path: dir})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	models, err := s.LoadModels(ctx)
	if err != nil {
		t.Fatalf("LoadModels() error = %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("LoadModels() returned %d, want 2", len(models))
	}
	byVendor := map[string]*forecast.DeployedModel{}
	for _, m := range models {
		byVendor[m.VendorID] = m
	}
	if got := byVendor["v1"].Model.Version(); got != "ridge-b" {
		t.Errorf("v1 current = %q, want ridge-b", got)
	}
	if byVendor["v1"].MAE != 1.5 || len(byVendor["v1"].Model.Weights) != forecast.NumFeatures {
		t.Errorf("v1 model did not round-trip: %+v", byVendor["v1"])
	}

	history, err := s.History(ctx, "v1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Model.Version() != "ridge-a" {
		t.Errorf("History() = %d entries, want ridge-a then ridge-b", len(history))
	}
}

func TestStoreFeedsRegistry(t *testing.T) {
	s, err := Open(config.ModelStoreConfig{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	reg := forecast.NewRegistry(s)
	if err := reg.Swap(ctx, deployed("v1", "ridge-a", time.Now())); err != nil {
		t.Fatalf("Swap() error = %v", err)
	}

	restored := forecast.NewRegistry(s)
	n, err := restored.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if n != 1 || restored.Get("v1") == nil {
		t.Errorf("LoadAll() = %d, want the v1 model restored", n)
	}
}

func TestStoreRejectsInvalidAndClosed(t *testing.T) {
	s, err := Open(config.ModelStoreConfig{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ctx := context.Background()

	if err := s.SaveModel(ctx, &forecast.DeployedModel{VendorID: "v1"}); err == nil {
		t.Error("SaveModel() without a model should fail")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := s.SaveModel(ctx, deployed("v1", "x", time.Now())); !errors.Is(err, ErrClosed) {
		t.Errorf("SaveModel() after Close error = %v, want ErrClosed", err)
	}
	if _, err := s.LoadModels(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("LoadModels() after Close error = %v, want ErrClosed", err)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	s, err := Open(config.ModelStoreConfig{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
