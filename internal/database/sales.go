// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tomtom215/marketcast/internal/forecast"
)

// InsertSales imports sales records. Records whose ID already exists are
// skipped, so re-importing a point-of-sale export is idempotent. It returns
// the number of new records.
func (db *DB) InsertSales(ctx context.Context, records []forecast.SalesRecord) (n int, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("insert", "sales", start, err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	for i := range records {
		rec := &records[i]
		if rec.ID == "" || rec.VendorID == "" {
			rollbackQuietly(tx)
			return 0, fmt.Errorf("sale %d: id and vendor_id are required", i)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO sales (id, vendor_id, venue_id, sold_at, total)
			VALUES (?, ?, ?, ?, CAST(? AS DECIMAL(12,2)))
			ON CONFLICT DO NOTHING`,
			rec.ID, rec.VendorID, nullString(rec.VenueID), rec.Timestamp.UTC(), rec.Total.String())
		if err != nil {
			rollbackQuietly(tx)
			return 0, fmt.Errorf("failed to insert sale %s: %w", rec.ID, err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			continue
		}
		for pos, li := range rec.LineItems {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sale_line_items (sale_id, position, product_id, quantity, unit_price)
				VALUES (?, ?, ?, ?, CAST(? AS DECIMAL(12,2)))`,
				rec.ID, pos, li.ProductID, li.Quantity, li.UnitPrice.String()); err != nil {
				rollbackQuietly(tx)
				return 0, fmt.Errorf("failed to insert line item %d of sale %s: %w", pos, rec.ID, err)
			}
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sales: %w", err)
	}
	return n, nil
}

// QuerySales returns the vendor's sales matching q, newest first. With a
// ProductID set only sales containing that product are returned, but each
// record still carries all of its line items.
func (db *DB) QuerySales(ctx context.Context, q forecast.SalesQuery) (out []forecast.SalesRecord, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("select", "sales", start, err) }()

	var (
		where = []string{"s.vendor_id = ?"}
		args  = []any{q.VendorID}
	)
	if q.VenueID != "" {
		where = append(where, "s.venue_id = ?")
		args = append(args, q.VenueID)
	}
	if !q.Start.IsZero() {
		where = append(where, "s.sold_at >= ?")
		args = append(args, q.Start.UTC())
	}
	if !q.End.IsZero() {
		where = append(where, "s.sold_at < ?")
		args = append(args, q.End.UTC())
	}
	if q.ProductID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM sale_line_items x WHERE x.sale_id = s.id AND x.product_id = ?)")
		args = append(args, q.ProductID)
	}

	query := `
		SELECT s.id, s.vendor_id, s.venue_id, s.sold_at, CAST(s.total AS VARCHAR),
		       li.product_id, li.quantity, CAST(li.unit_price AS VARCHAR)
		FROM sales s
		LEFT JOIN sale_line_items li ON li.sale_id = s.id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY s.sold_at DESC, s.id, li.position`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer closeWithLog(rows, "sales rows")

	for rows.Next() {
		var (
			id, vendorID string
			venueID      sql.NullString
			soldAt       time.Time
			total        decimal.Decimal
			productID    sql.NullString
			quantity     sql.NullInt64
			unitPrice    decimal.NullDecimal
		)
		if err := rows.Scan(&id, &vendorID, &venueID, &soldAt, &total, &productID, &quantity, &unitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, forecast.SalesRecord{
				ID:        id,
				VendorID:  vendorID,
				VenueID:   venueID.String,
				Timestamp: soldAt.UTC(),
				Total:     total,
			})
		}
		if productID.Valid {
			cur := &out[len(out)-1]
			cur.LineItems = append(cur.LineItems, forecast.LineItem{
				ProductID: productID.String,
				Quantity:  int(quantity.Int64),
				UnitPrice: unitPrice.Decimal,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sales: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intFromNull(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// decimalArg returns the text form of d, or nil when it is not set.
func decimalArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}
