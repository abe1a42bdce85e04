package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// InCheckoutTx runs fn in one transaction. Nothing fn wrote survives unless fn
// returns nil and the commit succeeds.
func (r *Repo) InCheckoutTx(ctx context.Context, fn func(CheckoutTx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&checkoutTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type checkoutTx struct{ tx pgx.Tx }

func (c *checkoutTx) LockCart(ctx context.Context, userID int64) ([]cart.Item, error) {
	return cart.LockItems(ctx, c.tx, userID)
}

func (c *checkoutTx) ClearCart(ctx context.Context, userID int64, variantIDs []int64) error {
	return cart.ClearIn(ctx, c.tx, userID, variantIDs)
}

func (c *checkoutTx) InsertOrder(ctx context.Context, o *Order) error {
	err := c.tx.QueryRow(ctx, `
		INSERT INTO orders (reference, user_id, status, subtotal_amount, shipping_amount, tax_amount, total_amount, shipping_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		o.Reference, o.UserID, o.Status, o.Subtotal, o.Shipping, o.Tax, o.Total, o.ShippingAddress,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		l := &o.Items[i]
		l.OrderID = o.ID
		err := c.tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, variant_id, quantity, unit_price, product_name, size, color)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			o.ID, l.VariantID, l.Quantity, l.UnitPrice, l.ProductName, l.Size, l.Color,
		).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

const orderColumns = `id, reference, user_id, status, subtotal_amount, shipping_amount, tax_amount, total_amount,
	shipping_address, tracking_number, created_at, updated_at`

func scanOrder(row pgx.CollectableRow) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Reference, &o.UserID, &o.Status, &o.Subtotal, &o.Shipping, &o.Tax, &o.Total,
		&o.ShippingAddress, &o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *Repo) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *Repo) GetForUser(ctx context.Context, id, userID int64) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *Repo) Get(ctx context.Context, id int64) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *Repo) getOne(ctx context.Context, q string, args ...any) (*Order, error) {
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %v: %w", args[0], apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	list := []Order{o}
	if err := r.loadItems(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *Repo) loadItems(ctx context.Context, list []Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]int64, len(list))
	idx := make(map[int64]int, len(list))
	for i := range list {
		ids[i] = list[i].ID
		idx[list[i].ID] = i
		list[i].Items = []Line{}
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, variant_id, quantity, unit_price, product_name, size, color
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`, ids)
	if err != nil {
		return err
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Line, error) {
		var l Line
		err := row.Scan(&l.ID, &l.OrderID, &l.VariantID, &l.Quantity, &l.UnitPrice, &l.ProductName, &l.Size, &l.Color)
		return l, err
	})
	if err != nil {
		return err
	}
	for _, l := range lines {
		i := idx[l.OrderID]
		list[i].Items = append(list[i].Items, l)
	}
	return nil
}

// UpdateStatus moves an order from one status to another only if it is still
// in the expected status; a concurrent change yields ErrConflict.
func (r *Repo) UpdateStatus(ctx context.Context, id int64, from, to Status, tracking *string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = $3, tracking_number = COALESCE($4, tracking_number), updated_at = now()
		WHERE id = $1 AND status = $2`, id, from, to, tracking)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("order %d is no longer %s: %w", id, from, apperr.ErrConflict)
	}
	return nil
}
