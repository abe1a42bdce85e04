package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repo struct{ DB *pgxpool.Pool }

const featuredLimit = 8

// ListProducts returns one page of active products matching f, with total count.
func (r *Repo) ListProducts(ctx context.Context, f Filter) (Page[Product], error) {
	f = f.Normalize()

	countSQL, countArgs, err := BuildCountQuery(f)
	if err != nil {
		return Page[Product]{}, err
	}
	var total int64
	if err := r.DB.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return Page[Product]{}, fmt.Errorf("count products: %w", err)
	}

	listSQL, listArgs, err := BuildListQuery(f)
	if err != nil {
		return Page[Product]{}, err
	}
	ps, err := r.queryProducts(ctx, listSQL, listArgs...)
	if err != nil {
		return Page[Product]{}, err
	}
	return Page[Product]{Data: ps, Meta: NewMeta(total, f.Page, f.Limit)}, nil
}

func (r *Repo) Featured(ctx context.Context) ([]Product, error) {
	q, args, err := productsFrom(psql.Select(productColumns...)).
		Where("p.is_active AND p.is_featured").
		OrderBy("p.created_at DESC").
		Limit(featuredLimit).
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryProducts(ctx, q, args...)
}

func (r *Repo) ProductBySlug(ctx context.Context, slug string) (*Product, error) {
	q, args, err := productsFrom(psql.Select(productColumns...)).
		Where("p.is_active").
		Where("p.slug = ?", slug).
		ToSql()
	if err != nil {
		return nil, err
	}
	ps, err := r.queryProducts(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, fmt.Errorf("product %q: %w", slug, apperr.ErrNotFound)
	}
	return &ps[0], nil
}

func (r *Repo) ProductsByCategory(ctx context.Context, categorySlug string) ([]Product, error) {
	if _, err := r.CategoryBySlug(ctx, categorySlug); err != nil {
		return nil, err
	}
	q, args, err := BuildListQuery(Filter{Category: categorySlug, Limit: MaxLimit})
	if err != nil {
		return nil, err
	}
	return r.queryProducts(ctx, q, args...)
}

// AllProducts returns every product, active or not, for export.
func (r *Repo) AllProducts(ctx context.Context) ([]Product, error) {
	q, args, err := productsFrom(psql.Select(productColumns...)).OrderBy("p.id").ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryProducts(ctx, q, args...)
}

func (r *Repo) Brands(ctx context.Context) ([]Brand, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, COALESCE(name, ''), COALESCE(slug, ''), COALESCE(logo_url, ''), COALESCE(description, ''), created_at
		FROM brands ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Brand, error) {
		var b Brand
		err := row.Scan(&b.ID, &b.Name, &b.Slug, &b.LogoURL, &b.Description, &b.CreatedAt)
		return b, err
	})
}

// BrandBySlug returns the brand with its active products.
func (r *Repo) BrandBySlug(ctx context.Context, slug string) (*Brand, error) {
	var b Brand
	err := r.DB.QueryRow(ctx, `
		SELECT id, COALESCE(name, ''), COALESCE(slug, ''), COALESCE(logo_url, ''), COALESCE(description, ''), created_at
		FROM brands WHERE slug = $1`, slug).
		Scan(&b.ID, &b.Name, &b.Slug, &b.LogoURL, &b.Description, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("brand %q: %w", slug, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	q, args, err := BuildListQuery(Filter{Brands: []string{slug}, Limit: MaxLimit})
	if err != nil {
		return nil, err
	}
	if b.Products, err = r.queryProducts(ctx, q, args...); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repo) Categories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, COALESCE(slug, ''), COALESCE(description, ''), COALESCE(image_url, ''), created_at
		FROM categories WHERE name IS NOT NULL ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanCategory)
}

func (r *Repo) CategoryBySlug(ctx context.Context, slug string) (*Category, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, COALESCE(name, ''), COALESCE(slug, ''), COALESCE(description, ''), COALESCE(image_url, ''), created_at
		FROM categories WHERE slug = $1`, slug)
	if err != nil {
		return nil, err
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("category %q: %w", slug, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCategory(row pgx.CollectableRow) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.ImageURL, &c.CreatedAt)
	return c, err
}

// queryProducts runs a product select built from productColumns and then
// loads variants and images for the whole result in two batched queries.
func (r *Repo) queryProducts(ctx context.Context, q string, args ...any) ([]Product, error) {
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	ps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		var (
			p    Product
			sale decimal.NullDecimal
		)
		err := row.Scan(
			&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &sale,
			&p.Featured, &p.Active, &p.CreatedAt,
			&p.Brand.ID, &p.Brand.Name, &p.Brand.Slug,
			&p.Category.ID, &p.Category.Name, &p.Category.Slug,
		)
		if sale.Valid {
			p.SalePrice = &sale.Decimal
		}
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	if len(ps) == 0 {
		return ps, nil
	}

	ids := make([]int64, len(ps))
	idx := make(map[int64]int, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
		idx[p.ID] = i
		ps[i].Variants = []Variant{}
		ps[i].Images = []Image{}
	}

	vrows, err := r.DB.Query(ctx, `
		SELECT id, product_id, size, color, sku, stock_quantity, price_adjustment
		FROM product_variants WHERE product_id = ANY($1) ORDER BY product_id, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	variants, err := pgx.CollectRows(vrows, func(row pgx.CollectableRow) (Variant, error) {
		var v Variant
		err := row.Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.SKU, &v.StockQuantity, &v.PriceAdjustment)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan variants: %w", err)
	}
	for _, v := range variants {
		i := idx[v.ProductID]
		ps[i].Variants = append(ps[i].Variants, v)
	}

	irows, err := r.DB.Query(ctx, `
		SELECT id, product_id, url, COALESCE(alt_text, ''), is_primary, sort_order
		FROM product_images WHERE product_id = ANY($1) ORDER BY product_id, sort_order, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	images, err := pgx.CollectRows(irows, func(row pgx.CollectableRow) (Image, error) {
		var img Image
		err := row.Scan(&img.ID, &img.ProductID, &img.URL, &img.AltText, &img.Primary, &img.SortOrder)
		return img, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan images: %w", err)
	}
	for _, img := range images {
		i := idx[img.ProductID]
		ps[i].Images = append(ps[i].Images, img)
	}
	return ps, nil
}
