// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sajari/regression"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Supported training algorithms.
const (
	AlgorithmRidge = "ridge"
	AlgorithmOLS   = "ols"

	// DefaultRidgeLambda is the L2 penalty used when none is configured.
	DefaultRidgeLambda = 1.0
)

// LabeledExample is one training row.
type LabeledExample struct {
	Features FeatureVector
	Quantity float64
}

// Model predicts a quantity from a feature vector.
type Model interface {
	Predict(v FeatureVector) (float64, error)
	Version() string
}

// Trainer fits a fresh model.
type Trainer interface {
	Name() string
	Fit(examples []LabeledExample) (*LinearModel, error)
}

// NewTrainer returns the trainer for algorithm.
func NewTrainer(algorithm string, lambda float64, now Clock) (Trainer, error) {
	if now == nil {
		now = time.Now
	}
	switch algorithm {
	case "", AlgorithmRidge:
		if lambda <= 0 {
			lambda = DefaultRidgeLambda
		}
		return &RidgeTrainer{Lambda: lambda, Now: now}, nil
	case AlgorithmOLS:
		return &OLSTrainer{Now: now}, nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q", algorithm)
	}
}

// Scaler standardizes feature columns. Constant columns scale to zero.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler computes column means and population standard deviations.
func FitScaler(rows [][]float64) Scaler {
	s := Scaler{Mean: make([]float64, NumFeatures), Scale: make([]float64, NumFeatures)}
	col := make([]float64, len(rows))
	for j := 0; j < NumFeatures; j++ {
		for i, r := range rows {
			col[i] = r[j]
		}
		s.Mean[j], s.Scale[j] = stat.PopMeanStdDev(col, nil)
		if math.IsNaN(s.Scale[j]) {
			s.Scale[j] = 0
		}
	}
	return s
}

// Fitted reports whether the scaler matches the feature schema.
func (s Scaler) Fitted() bool {
	return len(s.Mean) == NumFeatures && len(s.Scale) == NumFeatures
}

// Transform standardizes x.
func (s Scaler) Transform(x []float64) ([]float64, error) {
	if !s.Fitted() {
		return nil, fmt.Errorf("%w: scaler not fitted", ErrModelFailure)
	}
	out := make([]float64, len(x))
	for j, v := range x {
		if s.Scale[j] == 0 {
			continue
		}
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// LinearModel is a standardized linear regression. It is immutable once
// fitted and safe for concurrent use.
type LinearModel struct {
	Algorithm string    `json:"algorithm"`
	Tag       string    `json:"tag"`
	Scaler    Scaler    `json:"scaler"`
	Intercept float64   `json:"intercept"`
	Weights   []float64 `json:"weights"`
	TrainedAt time.Time `json:"trained_at"`
	Samples   int       `json:"samples"`
}

// Version returns the model version tag.
func (m *LinearModel) Version() string { return m.Tag }

// Predict returns the raw prediction. Non-finite output is a model failure.
func (m *LinearModel) Predict(v FeatureVector) (float64, error) {
	z, err := m.Scaler.Transform(v.Slice())
	if err != nil {
		return 0, err
	}
	if len(m.Weights) != NumFeatures {
		return 0, fmt.Errorf("%w: model has %d weights, want %d", ErrModelFailure, len(m.Weights), NumFeatures)
	}
	y := m.Intercept
	for j, w := range m.Weights {
		y += w * z[j]
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("%w: non-finite prediction %v", ErrModelFailure, y)
	}
	return y, nil
}

// MeanAbsoluteError scores m on examples.
func MeanAbsoluteError(m Model, examples []LabeledExample) (float64, error) {
	if len(examples) == 0 {
		return 0, errors.New("no examples to score")
	}
	var sum float64
	for _, ex := range examples {
		pred, err := m.Predict(ex.Features)
		if err != nil {
			return 0, err
		}
		sum += math.Abs(pred - ex.Quantity)
	}
	return sum / float64(len(examples)), nil
}

func designMatrix(examples []LabeledExample) ([][]float64, []float64) {
	rows := make([][]float64, len(examples))
	y := make([]float64, len(examples))
	for i, ex := range examples {
		rows[i] = ex.Features.Slice()
		y[i] = ex.Quantity
	}
	return rows, y
}

func modelTag(algorithm string, at time.Time) string {
	return algorithm + "-" + at.UTC().Format("20060102T150405")
}

func checkFinite(m *LinearModel) error {
	if math.IsNaN(m.Intercept) || math.IsInf(m.Intercept, 0) {
		return fmt.Errorf("%w: non-finite intercept", ErrModelFailure)
	}
	for _, w := range m.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: non-finite weight", ErrModelFailure)
		}
	}
	return nil
}

// RidgeTrainer fits an L2-regularized regression on standardized features
// by solving (ZᵀZ + λI)w = Zᵀ(y - ȳ) with a Cholesky factorization.
type RidgeTrainer struct {
	Lambda float64
	Now    Clock
}

func (t *RidgeTrainer) Name() string { return AlgorithmRidge }

func (t *RidgeTrainer) Fit(examples []LabeledExample) (*LinearModel, error) {
	if len(examples) < 2 {
		return nil, fmt.Errorf("%w: %d examples", ErrInsufficientData, len(examples))
	}
	rows, y := designMatrix(examples)
	scaler := FitScaler(rows)

	n, p := len(rows), NumFeatures
	data := make([]float64, 0, n*p)
	for _, r := range rows {
		z, err := scaler.Transform(r)
		if err != nil {
			return nil, err
		}
		data = append(data, z...)
	}
	z := mat.NewDense(n, p, data)

	ybar := stat.Mean(y, nil)
	yc := make([]float64, n)
	for i, v := range y {
		yc[i] = v - ybar
	}

	var gram mat.SymDense
	gram.SymOuterK(1, z.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+t.Lambda)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return nil, fmt.Errorf("%w: normal equations not positive definite", ErrModelFailure)
	}
	var rhs mat.VecDense
	rhs.MulVec(z.T(), mat.NewVecDense(n, yc))
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &rhs); err != nil {
		return nil, fmt.Errorf("%w: solve: %w", ErrModelFailure, err)
	}

	trainedAt := t.Now().UTC()
	m := &LinearModel{
		Algorithm: AlgorithmRidge,
		Tag:       modelTag(AlgorithmRidge, trainedAt),
		Scaler:    scaler,
		Intercept: ybar,
		Weights:   make([]float64, p),
		TrainedAt: trainedAt,
		Samples:   n,
	}
	for j := 0; j < p; j++ {
		m.Weights[j] = w.AtVec(j)
	}
	if err := checkFinite(m); err != nil {
		return nil, err
	}
	return m, nil
}

// OLSTrainer fits ordinary least squares with sajari/regression. Columns that
// are constant in the training set are left out of the fit.
type OLSTrainer struct {
	Now Clock
}

func (t *OLSTrainer) Name() string { return AlgorithmOLS }

func (t *OLSTrainer) Fit(examples []LabeledExample) (m *LinearModel, err error) {
	rows, y := designMatrix(examples)
	scaler := FitScaler(rows)

	var active []int
	for j, s := range scaler.Scale {
		if s > 0 {
			active = append(active, j)
		}
	}
	if len(examples) <= len(active)+1 {
		return nil, fmt.Errorf("%w: %d examples for %d varying features", ErrInsufficientData, len(examples), len(active))
	}

	// The regression package panics on some degenerate inputs.
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("%w: ols fit panicked: %v", ErrModelFailure, r)
		}
	}()

	var r regression.Regression
	r.SetObserved("quantity")
	names := FeatureNames()
	for k, j := range active {
		r.SetVar(k, names[j])
	}
	for i, row := range rows {
		z, zerr := scaler.Transform(row)
		if zerr != nil {
			return nil, zerr
		}
		vars := make([]float64, len(active))
		for k, j := range active {
			vars[k] = z[j]
		}
		r.Train(regression.DataPoint(y[i], vars))
	}
	if err := r.Run(); err != nil {
		return nil, fmt.Errorf("%w: ols: %w", ErrModelFailure, err)
	}

	coeffs := r.GetCoeffs()
	if len(coeffs) != len(active)+1 {
		return nil, fmt.Errorf("%w: ols returned %d coefficients", ErrModelFailure, len(coeffs))
	}
	trainedAt := t.Now().UTC()
	m = &LinearModel{
		Algorithm: AlgorithmOLS,
		Tag:       modelTag(AlgorithmOLS, trainedAt),
		Scaler:    scaler,
		Intercept: coeffs[0],
		Weights:   make([]float64, NumFeatures),
		TrainedAt: trainedAt,
		Samples:   len(examples),
	}
	for k, j := range active {
		m.Weights[j] = coeffs[k+1]
	}
	if err := checkFinite(m); err != nil {
		return nil, err
	}
	return m, nil
}
