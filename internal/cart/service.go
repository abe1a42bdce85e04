package cart

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/pricing"
)

type Store interface {
	Items(ctx context.Context, userID int64) ([]Item, error)
	VariantExists(ctx context.Context, variantID int64) (bool, error)
	// Add inserts the line or increments the quantity of an existing one,
	// capped at MaxQuantity.
	Add(ctx context.Context, userID, variantID int64, qty int) (Line, error)
	// SetQuantity returns nil when the user has no line for the variant.
	SetQuantity(ctx context.Context, userID, variantID int64, qty int) (*Line, error)
	Delete(ctx context.Context, userID, variantID int64) error
	Clear(ctx context.Context, userID int64) error
}

type Service struct {
	Store Store
}

// CheckQuantity rejects quantities outside 1..MaxQuantity.
func CheckQuantity(qty int) error {
	if qty < 1 {
		return fmt.Errorf("quantity must be at least 1: %w", apperr.ErrInvalid)
	}
	if qty > MaxQuantity {
		return fmt.Errorf("quantity must be at most %d: %w", MaxQuantity, apperr.ErrInvalid)
	}
	return nil
}

// AddItem adds qty of a variant to the cart. Merging into an existing line
// caps the line at MaxQuantity.
func (s *Service) AddItem(ctx context.Context, userID, variantID int64, qty int) (Line, error) {
	if err := CheckQuantity(qty); err != nil {
		return Line{}, err
	}
	ok, err := s.Store.VariantExists(ctx, variantID)
	if err != nil {
		return Line{}, err
	}
	if !ok {
		return Line{}, fmt.Errorf("variant %d: %w", variantID, apperr.ErrNotFound)
	}
	return s.Store.Add(ctx, userID, variantID, qty)
}

// UpdateQuantity sets the quantity of an existing line. A quantity <= 0
// removes the line. Updating a line that does not exist is a no-op and
// returns (nil, nil), not ErrNotFound.
func (s *Service) UpdateQuantity(ctx context.Context, userID, variantID int64, qty int) (*Line, error) {
	if qty <= 0 {
		return nil, s.Store.Delete(ctx, userID, variantID)
	}
	if err := CheckQuantity(qty); err != nil {
		return nil, err
	}
	return s.Store.SetQuantity(ctx, userID, variantID, qty)
}

func (s *Service) RemoveItem(ctx context.Context, userID, variantID int64) error {
	return s.Store.Delete(ctx, userID, variantID)
}

func (s *Service) Clear(ctx context.Context, userID int64) error {
	return s.Store.Clear(ctx, userID)
}

// Get returns the cart with totals computed server-side from live prices.
func (s *Service) Get(ctx context.Context, userID int64) (Cart, error) {
	items, err := s.Store.Items(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	if items == nil {
		items = []Item{}
	}
	return Cart{Items: items, Totals: pricing.Calculate(PricingLines(items))}, nil
}
