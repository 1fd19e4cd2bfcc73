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

	"github.com/shopspring/decimal"

	"github.com/tomtom215/marketcast/internal/forecast"
)

// UpsertProduct creates or replaces a catalog entry.
func (db *DB) UpsertProduct(ctx context.Context, p *forecast.Product) (err error) {
	if p.VendorID == "" || p.ID == "" {
		return &forecast.ValidationError{Field: "product", Reason: "vendor_id and id are required"}
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("upsert", "products", start, err) }()

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO products (vendor_id, id, name, price, active)
		VALUES (?, ?, ?, CAST(? AS DECIMAL(12,2)), ?)
		ON CONFLICT (vendor_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			active = EXCLUDED.active`,
		p.VendorID, p.ID, p.Name, decimalArg(p.Price), p.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
	}
	return nil
}

// GetProduct returns forecast.ErrNotFound for an unknown product.
func (db *DB) GetProduct(ctx context.Context, vendorID, productID string) (p *forecast.Product, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("select", "products", start, err) }()

	row := db.conn.QueryRowContext(ctx, `
		SELECT vendor_id, id, name, CAST(price AS VARCHAR), active
		FROM products WHERE vendor_id = ? AND id = ?`, vendorID, productID)
	p, err = scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", productID, forecast.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", productID, err)
	}
	return p, nil
}

// ListActiveProducts returns up to limit active products ordered by ID.
// A non-positive limit returns all of them.
func (db *DB) ListActiveProducts(ctx context.Context, vendorID string, limit int) (out []forecast.Product, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("select", "products", start, err) }()

	query := `
		SELECT vendor_id, id, name, CAST(price AS VARCHAR), active
		FROM products WHERE vendor_id = ? AND active
		ORDER BY id`
	args := []any{vendorID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer closeWithLog(rows, "product rows")

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*forecast.Product, error) {
	var (
		p     forecast.Product
		price decimal.NullDecimal
	)
	if err := row.Scan(&p.VendorID, &p.ID, &p.Name, &price, &p.Active); err != nil {
		return nil, err
	}
	p.Price = price
	return &p, nil
}
