// Package pricing computes cart and order totals on decimal.Decimal.
package pricing

import "github.com/shopspring/decimal"

var (
	FreeShippingThreshold = decimal.NewFromInt(100)
	FlatShipping          = decimal.RequireFromString("9.99")
	TaxRate               = decimal.RequireFromString("0.08")
)

// Line is one priced quantity, typically a cart line with its resolved unit price.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// UnitPrice returns the sale price when it is set and lower than the list price.
func UnitPrice(price decimal.Decimal, sale *decimal.Decimal) decimal.Decimal {
	if sale != nil && sale.LessThan(price) {
		return *sale
	}
	return price
}

// Calculate prices the given lines. Components are rounded to cents and the
// total is the sum of the rounded components, so Total == Subtotal+Shipping+Tax
// holds exactly.
func Calculate(lines []Line) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	subtotal = subtotal.Round(2)

	shipping := FlatShipping
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(TaxRate).Round(2)

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}

// Format renders an amount with exactly two decimals, e.g. "9.99" or "108.00".
func Format(d decimal.Decimal) string { return d.StringFixed(2) }
