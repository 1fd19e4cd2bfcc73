// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/tomtom215/marketcast/internal/forecast"
)

const recommendationColumns = `
	id, vendor_id, product_id, venue_id, market_date, recommended_quantity,
	confidence_score, CAST(predicted_revenue AS VARCHAR), features, model_version,
	user_accepted, actual_quantity_brought, created_at`

// SaveRecommendation inserts a new recommendation.
func (db *DB) SaveRecommendation(ctx context.Context, rec *forecast.Recommendation) (err error) {
	if err := validateRecommendation(rec); err != nil {
		return err
	}
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("insert", "recommendations", start, err) }()

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO recommendations (
			id, vendor_id, product_id, venue_id, market_date, recommended_quantity,
			confidence_score, predicted_revenue, ml_used, features, model_version,
			user_accepted, actual_quantity_brought, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, CAST(? AS DECIMAL(12,2)), ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.VendorID, rec.ProductID, nullString(rec.VenueID), rec.MarketDate.UTC(),
		rec.RecommendedQuantity, rec.ConfidenceScore, decimalArg(rec.PredictedRevenue),
		rec.Features.MLUsed, string(features), rec.ModelVersion,
		rec.UserAccepted, nullInt(rec.ActualQuantityBrought), rec.CreatedAt.UTC())
	if err != nil {
		if isUniqueConstraintError(err) {
			return &forecast.ValidationError{Field: "id", Reason: "recommendation already exists"}
		}
		return fmt.Errorf("failed to insert recommendation %s: %w", rec.ID, err)
	}
	return nil
}

func validateRecommendation(rec *forecast.Recommendation) error {
	switch {
	case rec.ID == "":
		return &forecast.ValidationError{Field: "id", Reason: "must not be empty"}
	case rec.VendorID == "":
		return &forecast.ValidationError{Field: "vendor_id", Reason: "must not be empty"}
	case rec.ProductID == "":
		return &forecast.ValidationError{Field: "product_id", Reason: "must not be empty"}
	case rec.RecommendedQuantity < 0:
		return &forecast.ValidationError{Field: "recommended_quantity", Reason: "must not be negative"}
	case rec.ConfidenceScore < 0 || rec.ConfidenceScore > 1:
		return &forecast.ValidationError{Field: "confidence_score", Reason: "must be within [0, 1]"}
	}
	return nil
}

// GetRecommendation returns forecast.ErrNotFound when the ID is unknown or
// belongs to another vendor.
func (db *DB) GetRecommendation(ctx context.Context, vendorID, id string) (rec *forecast.Recommendation, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("select", "recommendations", start, err) }()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations WHERE vendor_id = ? AND id = ?`,
		vendorID, id)
	rec, err = scanRecommendation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recommendation %s: %w", id, forecast.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recommendation %s: %w", id, err)
	}
	return rec, nil
}

// MarkAccepted flags a recommendation as accepted. A nil broughtQty leaves
// any previously reported quantity in place.
func (db *DB) MarkAccepted(ctx context.Context, vendorID, id string, broughtQty *int) (err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("update", "recommendations", start, err) }()

	res, err := db.conn.ExecContext(ctx, `
		UPDATE recommendations
		SET user_accepted = true,
		    actual_quantity_brought = COALESCE(?, actual_quantity_brought)
		WHERE vendor_id = ? AND id = ?`,
		nullInt(broughtQty), vendorID, id)
	if err != nil {
		return fmt.Errorf("failed to accept recommendation %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recommendation %s: %w", id, forecast.ErrNotFound)
	}
	return nil
}

func scanRecommendation(row rowScanner) (*forecast.Recommendation, error) {
	var (
		rec      forecast.Recommendation
		venueID  sql.NullString
		revenue  decimal.NullDecimal
		features string
		brought  sql.NullInt64
	)
	if err := row.Scan(
		&rec.ID, &rec.VendorID, &rec.ProductID, &venueID, &rec.MarketDate,
		&rec.RecommendedQuantity, &rec.ConfidenceScore, &revenue, &features,
		&rec.ModelVersion, &rec.UserAccepted, &brought, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(features), &rec.Features); err != nil {
		return nil, fmt.Errorf("failed to decode features of %s: %w", rec.ID, err)
	}
	rec.VenueID = venueID.String
	rec.PredictedRevenue = revenue
	rec.ActualQuantityBrought = intFromNull(brought)
	rec.MarketDate = rec.MarketDate.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}
