package catalog

import (
	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const effectivePriceExpr = "(CASE WHEN p.sale_price IS NOT NULL AND p.sale_price < p.price THEN p.sale_price ELSE p.price END)"

var productColumns = []string{
	"p.id", "p.name", "p.slug", "COALESCE(p.description, '')", "p.price", "p.sale_price",
	"p.is_featured", "p.is_active", "p.created_at",
	"b.id", "COALESCE(b.name, '')", "COALESCE(b.slug, '')",
	"c.id", "COALESCE(c.name, '')", "COALESCE(c.slug, '')",
}

func productsFrom(b sq.SelectBuilder) sq.SelectBuilder {
	return b.From("products p").
		Join("brands b ON b.id = p.brand_id").
		Join("categories c ON c.id = p.category_id")
}

// applyFilter adds every predicate of f. Variant constraints go through an
// EXISTS subquery so a product with several matching variants is returned once.
func applyFilter(b sq.SelectBuilder, f Filter) sq.SelectBuilder {
	b = b.Where(sq.Eq{"p.is_active": true})

	if f.Search != "" {
		pat := "%" + escapeLike(f.Search) + "%"
		b = b.Where(sq.Or{
			sq.ILike{"p.name": pat},
			sq.ILike{"p.description": pat},
			sq.ILike{"b.name": pat},
		})
	}
	if len(f.Brands) > 0 {
		b = b.Where(sq.Eq{"b.slug": f.Brands})
	}
	if f.Category != "" {
		b = b.Where(sq.Eq{"c.slug": f.Category})
	}
	if f.MinPrice != nil {
		b = b.Where(sq.GtOrEq{effectivePriceExpr: *f.MinPrice})
	}
	if f.MaxPrice != nil {
		b = b.Where(sq.LtOrEq{effectivePriceExpr: *f.MaxPrice})
	}
	if f.OnSale {
		b = b.Where("p.sale_price IS NOT NULL AND p.sale_price < p.price")
	}
	if len(f.Sizes) > 0 || len(f.Colors) > 0 {
		sub := sq.Select("1").From("product_variants v").Where("v.product_id = p.id")
		if len(f.Sizes) > 0 {
			sub = sub.Where(sq.Eq{"v.size": f.Sizes})
		}
		if len(f.Colors) > 0 {
			sub = sub.Where(sq.Eq{"v.color": f.Colors})
		}
		b = b.Where(sq.Expr("EXISTS (?)", sub))
	}
	return b
}

func orderBy(s Sort) []string {
	switch s {
	case SortPriceAsc:
		return []string{effectivePriceExpr + " ASC", "p.id ASC"}
	case SortPriceDesc:
		return []string{effectivePriceExpr + " DESC", "p.id DESC"}
	case SortName:
		return []string{"p.name ASC", "p.id ASC"}
	default:
		return []string{"p.created_at DESC", "p.id DESC"}
	}
}

// BuildListQuery returns the SQL for one page of products matching f.
func BuildListQuery(f Filter) (string, []any, error) {
	f = f.Normalize()
	b := applyFilter(productsFrom(psql.Select(productColumns...)), f).
		OrderBy(orderBy(f.Sort)...).
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset()))
	return b.ToSql()
}

// BuildCountQuery returns the SQL counting every product matching f.
func BuildCountQuery(f Filter) (string, []any, error) {
	return applyFilter(productsFrom(psql.Select("COUNT(*)")), f.Normalize()).ToSql()
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
