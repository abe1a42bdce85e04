package orders

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/pricing"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CheckoutTx is the view of the store available while an order is being
// placed. Everything done through it commits or rolls back together.
type CheckoutTx interface {
	// LockCart returns the user's cart lines and holds them until the
	// transaction ends, so a concurrent checkout of the same cart waits.
	LockCart(ctx context.Context, userID int64) ([]cart.Item, error)
	InsertOrder(ctx context.Context, o *Order) error
	// ClearCart deletes the given lines of the user's cart. Lines added
	// after LockCart are left in place.
	ClearCart(ctx context.Context, userID int64, variantIDs []int64) error
}

type Store interface {
	InCheckoutTx(ctx context.Context, fn func(CheckoutTx) error) error
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	GetForUser(ctx context.Context, id, userID int64) (*Order, error)
	Get(ctx context.Context, id int64) (*Order, error)
	UpdateStatus(ctx context.Context, id int64, from, to Status, tracking *string) error
}

// Releaser returns reserved stock of a cancelled order.
type Releaser interface {
	ReleaseAll(ctx context.Context, orderID int64) error
}

type Service struct {
	Store       Store
	Publisher   Publisher     // optional
	Redis       *redis.Client // optional, enables idempotency keys
	Releaser    Releaser      // optional
	ServiceName string
}

type PlaceInput struct {
	ShippingAddress string
	IdempotencyKey  string
	TraceID         string
}

// Place turns the user's cart into an order. The cart read, order insert and
// cart clear run in one transaction: either all happen or none do, and two
// concurrent calls for the same cart produce at most one order (the loser
// sees an empty cart). replayed is true when the idempotency key matched an
// order placed earlier.
func (s *Service) Place(ctx context.Context, userID int64, in PlaceInput) (o *Order, replayed bool, err error) {
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	if in.ShippingAddress == "" {
		return nil, false, fmt.Errorf("shipping address is required: %w", apperr.ErrInvalid)
	}

	if in.IdempotencyKey != "" && s.Redis != nil {
		key := fmt.Sprintf(redisx.KeyIdemOrderPlace, userID, in.IdempotencyKey)
		owned, cerr := redisx.Claim(ctx, s.Redis, key, redisx.TTLIdempotency)
		if cerr != nil {
			return nil, false, fmt.Errorf("idempotency claim: %w", cerr)
		}
		if !owned {
			prev, rerr := s.replay(ctx, key, userID)
			return prev, rerr == nil, rerr
		}
		// reads the named results: the key is released unless an order exists
		defer func() {
			bg := context.WithoutCancel(ctx)
			if err != nil || o == nil {
				_ = s.Redis.Del(bg, key).Err()
				return
			}
			if e := s.Redis.Set(bg, key, strconv.FormatInt(o.ID, 10), redisx.TTLIdempotency).Err(); e != nil {
				log.Printf("orders: store idempotency key for order %d: %v", o.ID, e)
			}
		}()
	}

	o, err = s.finalize(ctx, userID, in.ShippingAddress)
	if err != nil {
		return nil, false, err
	}
	s.publishPlaced(o, in.TraceID)
	return o, false, nil
}

func (s *Service) replay(ctx context.Context, key string, userID int64) (*Order, error) {
	v, pending, found, err := redisx.Resolve(ctx, s.Redis, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if !found || pending {
		return nil, fmt.Errorf("order placement with this key is in progress: %w", apperr.ErrConflict)
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("idempotency value %q: %w", v, err)
	}
	return s.Store.GetForUser(ctx, id, userID)
}

func (s *Service) finalize(ctx context.Context, userID int64, address string) (*Order, error) {
	var o *Order
	err := s.Store.InCheckoutTx(ctx, func(tx CheckoutTx) error {
		items, err := tx.LockCart(ctx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("user %d: %w", userID, apperr.ErrEmptyCart)
		}
		o = buildOrder(userID, address, items)
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		ids := make([]int64, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.VariantID)
		}
		return tx.ClearCart(ctx, userID, ids)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// buildOrder freezes the cart: names, attributes and sale-aware unit prices
// are copied so later catalog changes leave the order untouched.
func buildOrder(userID int64, address string, items []cart.Item) *Order {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{
			VariantID:   it.VariantID,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice(),
			ProductName: it.ProductName,
			Size:        it.Size,
			Color:       it.Color,
		})
	}
	t := pricing.Calculate(cart.PricingLines(items))
	return &Order{
		Reference:       newReference(time.Now()),
		UserID:          userID,
		Status:          StatusPending,
		Subtotal:        t.Subtotal,
		Shipping:        t.Shipping,
		Tax:             t.Tax,
		Total:           t.Total,
		ShippingAddress: address,
		Items:           lines,
	}
}

// newReference yields e.g. "20261016T093000-3f2a9c1d".
func newReference(now time.Time) string {
	return now.UTC().Format("20060102T150405") + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (s *Service) publishPlaced(o *Order, traceID string) {
	items := make([]PlacedItem, 0, len(o.Items))
	for _, l := range o.Items {
		items = append(items, PlacedItem{
			VariantID:   l.VariantID,
			Qty:         l.Quantity,
			UnitPrice:   pricing.Format(l.UnitPrice),
			ProductName: l.ProductName,
			Size:        l.Size,
			Color:       l.Color,
		})
	}
	Emit(s.Publisher, o.ID, NewEnvelope(EventOrderPlaced, s.ServiceName, traceID, o.Reference, OrderPlacedPayload{
		OrderID:   o.ID,
		Reference: o.Reference,
		UserID:    o.UserID,
		Items:     items,
		Subtotal:  pricing.Format(o.Subtotal),
		Shipping:  pricing.Format(o.Shipping),
		Tax:       pricing.Format(o.Tax),
		Total:     pricing.Format(o.Total),
	}))
}

func (s *Service) List(ctx context.Context, userID int64) ([]Order, error) {
	list, err := s.Store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Order{}
	}
	return list, nil
}

// Get returns one of the user's orders. Orders of other users are NotFound.
func (s *Service) Get(ctx context.Context, userID, id int64) (*Order, error) {
	return s.Store.GetForUser(ctx, id, userID)
}

// UpdateStatus is the back-office transition. Moving to shipped may set a
// tracking number; moving to cancelled releases reserved stock.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string, tracking *string) (*Order, error) {
	to, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, fmt.Errorf("order %d: %s -> %s: %w", id, o.Status, to, apperr.ErrConflict)
	}
	if to != StatusShipped || (tracking != nil && strings.TrimSpace(*tracking) == "") {
		tracking = nil
	}
	if err := s.Store.UpdateStatus(ctx, id, o.Status, to, tracking); err != nil {
		return nil, err
	}
	if to == StatusCancelled {
		s.release(ctx, id)
	}
	return s.Store.Get(ctx, id)
}

// Cancel lets a customer withdraw an order that has not been paid yet.
func (s *Service) Cancel(ctx context.Context, userID, id int64) (*Order, error) {
	o, err := s.Store.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, fmt.Errorf("order %d is %s: %w", id, o.Status, apperr.ErrConflict)
	}
	if err := s.Store.UpdateStatus(ctx, id, StatusPending, StatusCancelled, nil); err != nil {
		return nil, err
	}
	s.release(ctx, id)
	return s.Store.GetForUser(ctx, id, userID)
}

func (s *Service) release(ctx context.Context, id int64) {
	if s.Releaser == nil {
		return
	}
	if err := s.Releaser.ReleaseAll(ctx, id); err != nil {
		log.Printf("orders: release stock of order %d: %v", id, err)
	}
}
