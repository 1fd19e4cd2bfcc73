// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

/*
Package validation wraps go-playground/validator for API request structs.

Errors name fields by their JSON tag so messages match what clients sent:

	type feedbackRequest struct {
		ActualQuantitySold *int `json:"actual_quantity_sold" validate:"required,gte=0"`
		Rating             *int `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	}

	if verr := validation.ValidateStruct(req); verr != nil {
		apiErr := verr.ToAPIError() // code VALIDATION_ERROR, per-field details
	}

Custom tags: identifier (vendor, product, venue and recommendation ids) and
marketdate (YYYY-MM-DD).
*/
package validation
