// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package forecast

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

// linearExamples returns examples with quantity = 2*avg_7d + 5 and every
// other feature constant.
func linearExamples(n int) []LabeledExample {
	out := make([]LabeledExample, n)
	for i := 0; i < n; i++ {
		v := FeatureVector{Month: 6, TempF: DefaultTempF, Avg7d: float64(i)}
		out[i] = LabeledExample{Features: v, Quantity: 2*float64(i) + 5}
	}
	return out
}

func TestTrainersFitLinearRelation(t *testing.T) {
	clock := fixedClock(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))
	tests := []struct {
		name    string
		trainer Trainer
		tol     float64
	}{
		{"ridge", &RidgeTrainer{Lambda: 0.001, Now: clock}, 0.05},
		{"ols", &OLSTrainer{Now: clock}, 1e-6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.trainer.Fit(linearExamples(50))
			if err != nil {
				t.Fatalf("Fit() error = %v", err)
			}
			pred, err := m.Predict(FeatureVector{Month: 6, TempF: DefaultTempF, Avg7d: 25})
			if err != nil {
				t.Fatalf("Predict() error = %v", err)
			}
			if math.Abs(pred-55) > tt.tol {
				t.Errorf("Predict() = %v, want 55 ± %v", pred, tt.tol)
			}
			if m.Samples != 50 {
				t.Errorf("Samples = %d, want 50", m.Samples)
			}
			if want := tt.trainer.Name() + "-20260601T080000"; m.Version() != want {
				t.Errorf("Version() = %q, want %q", m.Version(), want)
			}
		})
	}
}

func TestRidgeTrainerConstantLabels(t *testing.T) {
	examples := make([]LabeledExample, 30)
	for i := range examples {
		examples[i] = LabeledExample{Features: FeatureVector{DayOfWeek: i % 7, DayOfMonth: i + 1, Avg7d: float64(i % 5)}, Quantity: 20}
	}
	m, err := (&RidgeTrainer{Lambda: 1, Now: time.Now}).Fit(examples)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	pred, err := m.Predict(FeatureVector{DayOfWeek: 3, DayOfMonth: 200, Avg7d: 40})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if math.Abs(pred-20) > 1e-9 {
		t.Errorf("Predict() = %v, want 20", pred)
	}
}

func TestTrainersRejectTooFewExamples(t *testing.T) {
	for _, tr := range []Trainer{&RidgeTrainer{Lambda: 1, Now: time.Now}, &OLSTrainer{Now: time.Now}} {
		t.Run(tr.Name(), func(t *testing.T) {
			_, err := tr.Fit(linearExamples(1))
			if !errors.Is(err, ErrInsufficientData) {
				t.Errorf("Fit() error = %v, want ErrInsufficientData", err)
			}
		})
	}
}

func TestLinearModelPredictFailures(t *testing.T) {
	tests := []struct {
		name  string
		model *LinearModel
	}{
		{"unfitted scaler", &LinearModel{Weights: make([]float64, NumFeatures)}},
		{"wrong weight count", func() *LinearModel { m := constantModel("x", 1); m.Weights = m.Weights[:3]; return m }()},
		{"nan output", constantModel("x", math.NaN())},
		{"inf output", constantModel("x", math.Inf(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.model.Predict(FeatureVector{})
			if !errors.Is(err, ErrModelFailure) {
				t.Errorf("Predict() error = %v, want ErrModelFailure", err)
			}
		})
	}
}

func TestScalerConstantColumnsScaleToZero(t *testing.T) {
	rows := [][]float64{make([]float64, NumFeatures), make([]float64, NumFeatures)}
	rows[0][4], rows[1][4] = 60, 80
	s := FitScaler(rows)
	z, err := s.Transform(rows[1])
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if z[4] != 1 {
		t.Errorf("z[temp_f] = %v, want 1", z[4])
	}
	if z[0] != 0 {
		t.Errorf("z[day_of_week] = %v, want 0", z[0])
	}
}

func TestMeanAbsoluteError(t *testing.T) {
	examples := []LabeledExample{{Quantity: 10}, {Quantity: 14}, {Quantity: 6}}
	got, err := MeanAbsoluteError(constantModel("c", 10), examples)
	if err != nil {
		t.Fatalf("MeanAbsoluteError() error = %v", err)
	}
	if math.Abs(got-8.0/3.0) > 1e-12 {
		t.Errorf("MeanAbsoluteError() = %v, want %v", got, 8.0/3.0)
	}
	if _, err := MeanAbsoluteError(constantModel("c", 10), nil); err == nil {
		t.Error("MeanAbsoluteError() without examples should fail")
	}
}

func TestNewTrainer(t *testing.T) {
	tests := []struct {
		algorithm string
		want      string
		wantErr   bool
	}{
		{"", AlgorithmRidge, false},
		{"ridge", AlgorithmRidge, false},
		{"ols", AlgorithmOLS, false},
		{"xgboost", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			tr, err := NewTrainer(tt.algorithm, 0, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewTrainer(%q) error = %v, wantErr %v", tt.algorithm, err, tt.wantErr)
			}
			if err == nil && tr.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", tr.Name(), tt.want)
			}
		})
	}
}

func TestSplitExamples(t *testing.T) {
	examples := linearExamples(15)
	train, test := splitExamples(examples, 0.2, 42)
	if len(train) != 12 || len(test) != 3 {
		t.Fatalf("split = %d/%d, want 12/3", len(train), len(test))
	}
	train2, test2 := splitExamples(examples, 0.2, 42)
	if !reflect.DeepEqual(test, test2) || !reflect.DeepEqual(train, train2) {
		t.Error("split with the same seed is not deterministic")
	}

	_, small := splitExamples(linearExamples(4), 0.2, 42)
	if len(small) != 1 {
		t.Errorf("test size for n=4 = %d, want 1", len(small))
	}
}
