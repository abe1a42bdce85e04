package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repo struct{ DB *pgxpool.Pool }

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const itemsSQL = `
	SELECT ci.variant_id, ci.quantity, p.id, p.name, p.slug, v.size, v.color, v.sku, v.stock_quantity,
	       p.price, p.sale_price,
	       COALESCE((SELECT url FROM product_images pi WHERE pi.product_id = p.id
	                 ORDER BY pi.is_primary DESC, pi.sort_order, pi.id LIMIT 1), '')
	FROM cart_items ci
	JOIN product_variants v ON v.id = ci.variant_id
	JOIN products p ON p.id = v.product_id
	WHERE ci.user_id = $1
	ORDER BY ci.created_at, ci.id`

func (r *Repo) Items(ctx context.Context, userID int64) ([]Item, error) {
	return queryItems(ctx, r.DB, itemsSQL, userID)
}

// LockItems reads the user's cart inside tx and row-locks the cart lines
// until tx ends. A concurrent checkout of the same cart blocks here and then
// sees the lines already deleted.
func LockItems(ctx context.Context, tx pgx.Tx, userID int64) ([]Item, error) {
	return queryItems(ctx, tx, itemsSQL+` FOR UPDATE OF ci`, userID)
}

// ClearIn deletes the listed cart lines of the user inside tx. Only the
// lines read by LockItems are passed, so a line inserted concurrently by
// another request survives the checkout.
func ClearIn(ctx context.Context, tx pgx.Tx, userID int64, variantIDs []int64) error {
	_, err := tx.Exec(ctx, clearLinesSQL, userID, variantIDs)
	return err
}

const clearLinesSQL = `DELETE FROM cart_items WHERE user_id = $1 AND variant_id = ANY($2)`

func queryItems(ctx context.Context, q querier, sql string, userID int64) ([]Item, error) {
	rows, err := q.Query(ctx, sql, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var (
			it   Item
			sale decimal.NullDecimal
		)
		err := row.Scan(&it.VariantID, &it.Quantity, &it.ProductID, &it.ProductName, &it.ProductSlug,
			&it.Size, &it.Color, &it.SKU, &it.StockQuantity, &it.Price, &sale, &it.ImageURL)
		if sale.Valid {
			it.SalePrice = &sale.Decimal
		}
		return it, err
	})
}

func (r *Repo) VariantExists(ctx context.Context, variantID int64) (bool, error) {
	var ok bool
	err := r.DB.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM product_variants v JOIN products p ON p.id = v.product_id
			WHERE v.id = $1 AND p.is_active)`, variantID).Scan(&ok)
	return ok, err
}

func (r *Repo) Add(ctx context.Context, userID, variantID int64, qty int) (Line, error) {
	l := Line{UserID: userID}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO cart_items (user_id, variant_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, variant_id)
		DO UPDATE SET quantity = LEAST(cart_items.quantity + EXCLUDED.quantity, $4), updated_at = now()
		RETURNING variant_id, quantity, created_at, updated_at`,
		userID, variantID, qty, MaxQuantity).Scan(&l.VariantID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return Line{}, fmt.Errorf("add cart item: %w", err)
	}
	return l, nil
}

func (r *Repo) SetQuantity(ctx context.Context, userID, variantID int64, qty int) (*Line, error) {
	l := Line{UserID: userID}
	err := r.DB.QueryRow(ctx, `
		UPDATE cart_items SET quantity = $3, updated_at = now()
		WHERE user_id = $1 AND variant_id = $2
		RETURNING variant_id, quantity, created_at, updated_at`,
		userID, variantID, qty).Scan(&l.VariantID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	return &l, nil
}

func (r *Repo) Delete(ctx context.Context, userID, variantID int64) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND variant_id = $2`, userID, variantID)
	return err
}

func (r *Repo) Clear(ctx context.Context, userID int64) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}
