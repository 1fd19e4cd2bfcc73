// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/tomtom215/marketcast/internal/forecast"
	"github.com/tomtom215/marketcast/internal/logging"
)

// SaveFeedback inserts the outcome for a recommendation. A recommendation
// accepts one feedback; a second returns forecast.ErrFeedbackExists.
func (db *DB) SaveFeedback(ctx context.Context, fb *forecast.Feedback) (err error) {
	if fb.ID == "" || fb.RecommendationID == "" || fb.VendorID == "" {
		return &forecast.ValidationError{Field: "feedback", Reason: "id, recommendation_id and vendor_id are required"}
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("insert", "feedback", start, err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feedback WHERE recommendation_id = ?`, fb.RecommendationID,
	).Scan(&existing); err != nil {
		rollbackQuietly(tx)
		return fmt.Errorf("failed to check existing feedback: %w", err)
	}
	if existing > 0 {
		rollbackQuietly(tx)
		return fmt.Errorf("recommendation %s: %w", fb.RecommendationID, forecast.ErrFeedbackExists)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO feedback (
			id, recommendation_id, vendor_id, recommended_quantity, actual_quantity_sold,
			actual_quantity_brought, actual_revenue, rating, comments, quantity_variance,
			variance_percentage, was_accurate, variance_high, variance_low, created_at
		) VALUES (?, ?, ?, ?, ?, ?, CAST(? AS DECIMAL(12,2)), ?, ?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.RecommendationID, fb.VendorID, fb.RecommendedQuantity, fb.ActualQuantitySold,
		nullInt(fb.ActualQuantityBrought), decimalArg(fb.ActualRevenue), nullInt(fb.Rating),
		nullString(fb.Comments), fb.QuantityVariance, fb.VariancePercentage,
		fb.WasAccurate, fb.VarianceHigh, fb.VarianceLow, fb.CreatedAt.UTC())
	if err != nil {
		rollbackQuietly(tx)
		if isUniqueConstraintError(err) {
			return fmt.Errorf("recommendation %s: %w", fb.RecommendationID, forecast.ErrFeedbackExists)
		}
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueConstraintError(err) || isTransactionConflict(err) {
			return fmt.Errorf("recommendation %s: %w", fb.RecommendationID, forecast.ErrFeedbackExists)
		}
		return fmt.Errorf("failed to commit feedback: %w", err)
	}
	return nil
}

// ListFeedback returns the vendor's feedback created at or after since, oldest first.
func (db *DB) ListFeedback(ctx context.Context, vendorID string, since time.Time) (out []forecast.Feedback, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("select", "feedback", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, recommendation_id, vendor_id, recommended_quantity, actual_quantity_sold,
		       actual_quantity_brought, CAST(actual_revenue AS VARCHAR), rating, comments,
		       quantity_variance, variance_percentage, was_accurate, variance_high,
		       variance_low, created_at
		FROM feedback
		WHERE vendor_id = ? AND created_at >= ?
		ORDER BY created_at, id`, vendorID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer closeWithLog(rows, "feedback rows")

	for rows.Next() {
		var (
			fb       forecast.Feedback
			brought  sql.NullInt64
			revenue  decimal.NullDecimal
			rating   sql.NullInt64
			comments sql.NullString
		)
		if err := rows.Scan(
			&fb.ID, &fb.RecommendationID, &fb.VendorID, &fb.RecommendedQuantity, &fb.ActualQuantitySold,
			&brought, &revenue, &rating, &comments, &fb.QuantityVariance, &fb.VariancePercentage,
			&fb.WasAccurate, &fb.VarianceHigh, &fb.VarianceLow, &fb.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		fb.ActualQuantityBrought = intFromNull(brought)
		fb.ActualRevenue = revenue
		fb.Rating = intFromNull(rating)
		fb.Comments = comments.String
		fb.CreatedAt = fb.CreatedAt.UTC()
		out = append(out, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback: %w", err)
	}
	return out, nil
}

// FeedbackExamples joins each feedback row with the snapshot of its
// recommendation. Snapshots that fail to decode are skipped.
func (db *DB) FeedbackExamples(ctx context.Context, vendorID string) (out []forecast.FeedbackExample, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("select", "feedback", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT r.id, r.features, f.actual_quantity_sold
		FROM feedback f
		JOIN recommendations r ON r.id = f.recommendation_id
		WHERE f.vendor_id = ?
		ORDER BY f.created_at, f.id`, vendorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback examples: %w", err)
	}
	defer closeWithLog(rows, "feedback example rows")

	for rows.Next() {
		var (
			ex       forecast.FeedbackExample
			features string
		)
		if err := rows.Scan(&ex.RecommendationID, &features, &ex.ActualQuantitySold); err != nil {
			return nil, fmt.Errorf("failed to scan feedback example: %w", err)
		}
		if err := json.Unmarshal([]byte(features), &ex.Features); err != nil {
			logging.Warn().Err(err).Str("recommendation_id", ex.RecommendationID).Msg("Skipping undecodable feature snapshot")
			continue
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback examples: %w", err)
	}
	return out, nil
}

// ListVendorsWithFeedback returns the distinct vendors that have feedback, sorted.
func (db *DB) ListVendorsWithFeedback(ctx context.Context) (out []string, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("select", "feedback", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT vendor_id FROM feedback ORDER BY vendor_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer closeWithLog(rows, "vendor rows")

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vendors: %w", err)
	}
	return out, nil
}
