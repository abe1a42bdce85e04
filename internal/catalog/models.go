package catalog

import (
	"time"

	"github.com/ariefcatur/go-storefront/internal/pricing"
	"github.com/shopspring/decimal"
)

type Brand struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	LogoURL     string    `json:"logoUrl,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Products    []Product `json:"products,omitempty"`
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Product struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Slug        string           `json:"slug"`
	Description string           `json:"description"`
	Price       decimal.Decimal  `json:"price"`
	SalePrice   *decimal.Decimal `json:"salePrice"`
	Featured    bool             `json:"isFeatured"`
	Active      bool             `json:"isActive"`
	CreatedAt   time.Time        `json:"createdAt"`
	Brand       Brand            `json:"brand"`
	Category    Category         `json:"category"`
	Variants    []Variant        `json:"variants"`
	Images      []Image          `json:"images"`
}

// EffectivePrice is the price a buyer pays: the sale price when it undercuts the list price.
func (p Product) EffectivePrice() decimal.Decimal {
	return pricing.UnitPrice(p.Price, p.SalePrice)
}

func (p Product) OnSale() bool {
	return p.SalePrice != nil && p.SalePrice.LessThan(p.Price)
}

// Variant is a purchasable size/color combination with its own stock and SKU.
type Variant struct {
	ID              int64           `json:"id"`
	ProductID       int64           `json:"productId"`
	Size            string          `json:"size"`
	Color           string          `json:"color"`
	SKU             string          `json:"sku"`
	StockQuantity   int             `json:"stockQuantity"`
	PriceAdjustment decimal.Decimal `json:"priceAdjustment"`
}

type Image struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"productId"`
	URL       string `json:"url"`
	AltText   string `json:"altText,omitempty"`
	Primary   bool   `json:"isPrimary"`
	SortOrder int    `json:"sortOrder"`
}

// PrimaryImage returns the image flagged primary, else the first one.
func (p Product) PrimaryImage() string {
	for _, img := range p.Images {
		if img.Primary {
			return img.URL
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].URL
	}
	return ""
}
