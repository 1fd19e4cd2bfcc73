// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package forecast

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match with errors.Is.
var (
	// ErrInsufficientData means there is not enough history to train or to
	// compute a feature. It triggers the fallback and is never surfaced.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrModelFailure covers training errors, an unfitted scaler and
	// non-finite predictions. It triggers the fallback.
	ErrModelFailure = errors.New("model failure")

	// ErrServiceUnavailable is returned by weather and event providers.
	// Callers substitute neutral defaults.
	ErrServiceUnavailable = errors.New("external service unavailable")

	// ErrStorageUnavailable is the one failure that is propagated to callers.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrValidation marks rejected caller input. See ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned by stores for unknown records.
	ErrNotFound = errors.New("not found")

	// ErrFeedbackExists is returned when a recommendation already has feedback.
	ErrFeedbackExists = errors.New("feedback already recorded for recommendation")
)

// FailureKind classifies an internal forecast failure.
type FailureKind int

const (
	// FailureInsufficientData is an expected, non-fatal lack of history.
	FailureInsufficientData FailureKind = iota + 1
	// FailureModel is a training or prediction error.
	FailureModel
)

func (k FailureKind) String() string {
	switch k {
	case FailureInsufficientData:
		return "insufficient_data"
	case FailureModel:
		return "model_failure"
	default:
		return "unknown"
	}
}

func (k FailureKind) sentinel() error {
	if k == FailureInsufficientData {
		return ErrInsufficientData
	}
	return ErrModelFailure
}

// ForecastFailure is the typed internal failure of the ML path. The engine
// converts it into a fallback recommendation at its public boundary.
type ForecastFailure struct {
	Kind      FailureKind
	Stage     string // "train", "extract", "predict"
	ProductID string
	VenueID   string
	Err       error
}

func (f *ForecastFailure) Error() string {
	msg := fmt.Sprintf("forecast %s failed for product %s", f.Stage, f.ProductID)
	if f.VenueID != "" {
		msg += " at venue " + f.VenueID
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *ForecastFailure) Unwrap() error { return f.Err }

// Is lets errors.Is match the failure against ErrInsufficientData or ErrModelFailure.
func (f *ForecastFailure) Is(target error) bool {
	return target == f.Kind.sentinel()
}

// ValidationError describes a rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// storageError tags err as ErrStorageUnavailable unless it already is.
func storageError(op string, err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
