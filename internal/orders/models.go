package orders

import (
	"encoding/json"
	"time"

	"github.com/ariefcatur/go-storefront/internal/pricing"
	"github.com/shopspring/decimal"
)

// Order is immutable once placed apart from its status and tracking number.
// Items are a frozen copy of the cart taken inside the placing transaction.
type Order struct {
	ID              int64
	Reference       string
	UserID          int64
	Status          Status
	Subtotal        decimal.Decimal
	Shipping        decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	ShippingAddress string
	TrackingNumber  *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Items           []Line
}

// Line captures product name, variant attributes and unit price at order time
// so later catalog edits never rewrite history.
type Line struct {
	ID          int64
	OrderID     int64
	VariantID   int64
	Quantity    int
	UnitPrice   decimal.Decimal
	ProductName string
	Size        string
	Color       string
}

type orderJSON struct {
	ID              int64      `json:"id"`
	Reference       string     `json:"reference"`
	Status          Status     `json:"status"`
	SubtotalAmount  string     `json:"subtotalAmount"`
	ShippingAmount  string     `json:"shippingAmount"`
	TaxAmount       string     `json:"taxAmount"`
	TotalAmount     string     `json:"totalAmount"`
	ShippingAddress string     `json:"shippingAddress"`
	TrackingNumber  *string    `json:"trackingNumber"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	Items           []lineJSON `json:"items"`
}

type lineJSON struct {
	VariantID   int64  `json:"variantId"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	ProductName string `json:"productName"`
	Size        string `json:"size"`
	Color       string `json:"color"`
}

// MarshalJSON renders money with exactly two decimals.
func (o Order) MarshalJSON() ([]byte, error) {
	items := make([]lineJSON, 0, len(o.Items))
	for _, l := range o.Items {
		items = append(items, lineJSON{
			VariantID:   l.VariantID,
			Quantity:    l.Quantity,
			UnitPrice:   pricing.Format(l.UnitPrice),
			ProductName: l.ProductName,
			Size:        l.Size,
			Color:       l.Color,
		})
	}
	return json.Marshal(orderJSON{
		ID:              o.ID,
		Reference:       o.Reference,
		Status:          o.Status,
		SubtotalAmount:  pricing.Format(o.Subtotal),
		ShippingAmount:  pricing.Format(o.Shipping),
		TaxAmount:       pricing.Format(o.Tax),
		TotalAmount:     pricing.Format(o.Total),
		ShippingAddress: o.ShippingAddress,
		TrackingNumber:  o.TrackingNumber,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           items,
	})
}
