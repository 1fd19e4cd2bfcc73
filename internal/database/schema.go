// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

/*
schema.go - Database Schema

Tables:
  - sales: one row per point-of-sale transaction (immutable once imported)
  - sale_line_items: product lines of a sale, ordered by position
  - products: vendor catalog with optional price and an active flag
  - recommendations: generated quantity suggestions with their feature snapshot
  - feedback: at most one reported outcome per recommendation

Money is stored as DECIMAL(12,2) and read back through VARCHAR casts so it
round-trips through shopspring/decimal without float conversion. Timestamps
are TIMESTAMP columns holding UTC.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS sales (
			id VARCHAR PRIMARY KEY,
			vendor_id VARCHAR NOT NULL,
			venue_id VARCHAR,
			sold_at TIMESTAMP NOT NULL,
			total DECIMAL(12,2) NOT NULL DEFAULT 0,
			imported_at TIMESTAMP NOT NULL DEFAULT current_timestamp
		);`,
		`CREATE TABLE IF NOT EXISTS sale_line_items (
			sale_id VARCHAR NOT NULL,
			position INTEGER NOT NULL,
			product_id VARCHAR NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity >= 0),
			unit_price DECIMAL(12,2) NOT NULL DEFAULT 0,
			PRIMARY KEY (sale_id, position)
		);`,
		`CREATE TABLE IF NOT EXISTS products (
			vendor_id VARCHAR NOT NULL,
			id VARCHAR NOT NULL,
			name VARCHAR NOT NULL,
			price DECIMAL(12,2),
			active BOOLEAN NOT NULL DEFAULT true,
			PRIMARY KEY (vendor_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			id VARCHAR PRIMARY KEY,
			vendor_id VARCHAR NOT NULL,
			product_id VARCHAR NOT NULL,
			venue_id VARCHAR,
			market_date DATE NOT NULL,
			recommended_quantity INTEGER NOT NULL,
			confidence_score DOUBLE NOT NULL,
			predicted_revenue DECIMAL(12,2),
			ml_used BOOLEAN NOT NULL DEFAULT false,
			features VARCHAR NOT NULL,
			model_version VARCHAR NOT NULL,
			user_accepted BOOLEAN NOT NULL DEFAULT false,
			actual_quantity_brought INTEGER,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS feedback (
			id VARCHAR PRIMARY KEY,
			recommendation_id VARCHAR NOT NULL UNIQUE,
			vendor_id VARCHAR NOT NULL,
			recommended_quantity INTEGER NOT NULL,
			actual_quantity_sold INTEGER NOT NULL,
			actual_quantity_brought INTEGER,
			actual_revenue DECIMAL(12,2),
			rating INTEGER,
			comments VARCHAR,
			quantity_variance INTEGER NOT NULL,
			variance_percentage DOUBLE NOT NULL,
			was_accurate BOOLEAN NOT NULL,
			variance_high BOOLEAN NOT NULL,
			variance_low BOOLEAN NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,
	}
}

func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range indexQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

func indexQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_sales_vendor_time ON sales(vendor_id, sold_at);`,
		`CREATE INDEX IF NOT EXISTS idx_sales_venue ON sales(vendor_id, venue_id);`,
		`CREATE INDEX IF NOT EXISTS idx_line_items_product ON sale_line_items(product_id);`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_vendor ON recommendations(vendor_id, market_date);`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_vendor_time ON feedback(vendor_id, created_at);`,
	}
}
