package catalog

import (
	"io"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/pricing"
	"github.com/tealeg/xlsx"
)

var exportHeaders = []string{
	"ID", "Name", "Slug", "Brand", "Category", "Price", "SalePrice",
	"Active", "Featured", "Variants", "Stock", "CreatedAt",
}

// WriteXLSX writes one sheet with a row per product.
func WriteXLSX(w io.Writer, products []Product) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return err
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetString(h)
	}

	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetInt64(p.ID)
		row.AddCell().SetString(p.Name)
		row.AddCell().SetString(p.Slug)
		row.AddCell().SetString(p.Brand.Slug)
		row.AddCell().SetString(p.Category.Slug)
		row.AddCell().SetString(pricing.Format(p.Price))
		if p.SalePrice != nil {
			row.AddCell().SetString(pricing.Format(*p.SalePrice))
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetBool(p.Active)
		row.AddCell().SetBool(p.Featured)

		skus := make([]string, 0, len(p.Variants))
		stock := 0
		for _, v := range p.Variants {
			skus = append(skus, v.SKU)
			stock += v.StockQuantity
		}
		row.AddCell().SetString(strings.Join(skus, ","))
		row.AddCell().SetString(strconv.Itoa(stock))
		row.AddCell().SetString(p.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	return file.Write(w)
}
