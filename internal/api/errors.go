// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/marketcast/internal/forecast"
	"github.com/tomtom215/marketcast/internal/logging"
	"github.com/tomtom215/marketcast/internal/validation"
)

// statusForError maps a service error to an HTTP status and error code.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, forecast.ErrValidation):
		return http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, forecast.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, forecast.ErrFeedbackExists):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, forecast.ErrStorageUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}

// respondServiceError writes err as an error envelope. Internal details of
// 5xx errors are logged, not returned.
func respondServiceError(rw *ResponseWriter, r *http.Request, err error) {
	status, code := statusForError(err)

	var details map[string]interface{}
	message := err.Error()

	var verr *forecast.ValidationError
	if errors.As(err, &verr) {
		details = map[string]interface{}{"field": verr.Field, "reason": verr.Reason}
	}

	switch status {
	case http.StatusServiceUnavailable:
		logging.CtxErr(r.Context(), err).Msg("service unavailable")
		message = "storage is temporarily unavailable"
	case http.StatusInternalServerError:
		logging.CtxErr(r.Context(), err).Msg("request failed")
		message = "an internal error occurred"
	}

	rw.ErrorWithDetails(status, code, message, details)
}

// respondValidation writes a 400 for a request that failed struct validation.
func respondValidation(rw *ResponseWriter, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	rw.ErrorWithDetails(http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
}
