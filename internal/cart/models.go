package cart

import (
	"time"

	"github.com/ariefcatur/go-storefront/internal/pricing"
	"github.com/shopspring/decimal"
)

// MaxQuantity caps a single cart line.
const MaxQuantity = 999

// Line is one (user, variant) quantity entry. Quantity is always within
// 1..MaxQuantity; a line that would drop to zero is deleted instead.
type Line struct {
	UserID    int64     `json:"-"`
	VariantID int64     `json:"variantId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Item is a cart line resolved against the live catalog.
type Item struct {
	VariantID     int64            `json:"variantId"`
	Quantity      int              `json:"quantity"`
	ProductID     int64            `json:"productId"`
	ProductName   string           `json:"productName"`
	ProductSlug   string           `json:"productSlug"`
	Size          string           `json:"size"`
	Color         string           `json:"color"`
	SKU           string           `json:"sku"`
	StockQuantity int              `json:"stockQuantity"`
	Price         decimal.Decimal  `json:"price"`
	SalePrice     *decimal.Decimal `json:"salePrice"`
	ImageURL      string           `json:"imageUrl,omitempty"`
}

func (i Item) UnitPrice() decimal.Decimal {
	return pricing.UnitPrice(i.Price, i.SalePrice)
}

// PricingLines converts items to calculator input using sale-aware unit prices.
func PricingLines(items []Item) []pricing.Line {
	out := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.Line{UnitPrice: it.UnitPrice(), Quantity: it.Quantity})
	}
	return out
}

// Cart is the priced view of a user's cart returned to the storefront.
type Cart struct {
	Items  []Item         `json:"items"`
	Totals pricing.Totals `json:"totals"`
}
