package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReservationRepo struct{ DB *pgxpool.Pool }

// AlreadyReserved reports whether every line of the order holds a reservation.
func (r *ReservationRepo) AlreadyReserved(ctx context.Context, orderID int64, itemCount int) (bool, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE order_id = $1 AND status = 'RESERVED'`, orderID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n == itemCount, nil
}

// lockOrder takes the order row lock that serializes reservation against
// cancellation, and returns the order's status.
func lockOrder(ctx context.Context, tx pgx.Tx, orderID int64) (Status, error) {
	var st Status
	err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&st)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
	}
	return st, err
}

// ReserveAll locks each variant row, decrements stock and records a
// reservation. If any variant is short nothing is committed and the shortages
// are returned. An order that already holds its reservations is reported ok
// without touching stock; an order that is no longer pending yields
// apperr.ErrConflict.
func (r *ReservationRepo) ReserveAll(ctx context.Context, orderID int64, items []ItemQty) (ok bool, details []StockRejectedDetail, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	st, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return false, nil, err
	}
	var held int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE order_id = $1 AND status = 'RESERVED'`, orderID).Scan(&held); err != nil {
		return false, nil, err
	}
	if held > 0 && held == len(items) {
		return true, nil, nil
	}
	if st != StatusPending {
		return false, nil, fmt.Errorf("order %d is %s: %w", orderID, st, apperr.ErrConflict)
	}

	var rejects []StockRejectedDetail
	for _, it := range items {
		var stock int
		if err := tx.QueryRow(ctx, `SELECT stock_quantity FROM product_variants WHERE id = $1 FOR UPDATE`, it.VariantID).Scan(&stock); err != nil {
			return false, nil, err
		}
		if stock < it.Qty {
			rejects = append(rejects, StockRejectedDetail{VariantID: it.VariantID, Required: it.Qty, Available: stock})
			continue
		}
		if _, err := tx.Exec(ctx, `UPDATE product_variants SET stock_quantity = stock_quantity - $2, updated_at = now() WHERE id = $1`, it.VariantID, it.Qty); err != nil {
			return false, nil, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO reservations (order_id, variant_id, qty, status)
			VALUES ($1, $2, $3, 'RESERVED')
			ON CONFLICT (order_id, variant_id) DO NOTHING`, orderID, it.VariantID, it.Qty); err != nil {
			return false, nil, err
		}
	}

	if len(rejects) > 0 {
		return false, rejects, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

// ReleaseAll puts reserved stock back, e.g. when an order is cancelled.
func (r *ReservationRepo) ReleaseAll(ctx context.Context, orderID int64) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := lockOrder(ctx, tx, orderID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	rows, err := tx.Query(ctx, `
		UPDATE reservations SET status = 'RELEASED'
		WHERE order_id = $1 AND status = 'RESERVED'
		RETURNING variant_id, qty`, orderID)
	if err != nil {
		return err
	}
	released, err := pgx.CollectRows(rows, pgx.RowToStructByPos[ItemQty])
	if err != nil {
		return err
	}

	for _, it := range released {
		if _, err := tx.Exec(ctx, `UPDATE product_variants SET stock_quantity = stock_quantity + $2, updated_at = now() WHERE id = $1`, it.VariantID, it.Qty); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
