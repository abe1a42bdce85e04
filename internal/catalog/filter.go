package catalog

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/shopspring/decimal"
)

type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortName      Sort = "name"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	// maxOffset bounds Page*Limit well inside int and the BIGINT of OFFSET.
	maxOffset = math.MaxInt32
)

// Filter is the typed form of a product listing request. Zero values mean
// "no constraint"; the active-only predicate is always applied.
type Filter struct {
	Search   string
	Brands   []string
	Sizes    []string
	Colors   []string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	OnSale   bool
	Sort     Sort
	Page     int
	Limit    int
}

func (f Filter) Normalize() Filter {
	f.Search = strings.TrimSpace(f.Search)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Page > maxPage(f.Limit) {
		f.Page = maxPage(f.Limit)
	}
	switch f.Sort {
	case SortNewest, SortPriceAsc, SortPriceDesc, SortName:
	default:
		f.Sort = SortNewest
	}
	return f
}

func (f Filter) Offset() int { return (f.Page - 1) * f.Limit }

func maxPage(limit int) int { return maxOffset / limit }

// ParseFilter reads listing parameters from a query string. Set-valued
// parameters accept either repetition (?brands=a&brands=b) or CSV (?brands=a,b).
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		Search:   q.Get("search"),
		Brands:   multi(q, "brands"),
		Sizes:    multi(q, "sizes"),
		Colors:   multi(q, "colors"),
		Category: strings.TrimSpace(q.Get("category")),
		Sort:     Sort(q.Get("sort")),
	}

	var err error
	if f.MinPrice, err = optDecimal(q, "minPrice"); err != nil {
		return Filter{}, err
	}
	if f.MaxPrice, err = optDecimal(q, "maxPrice"); err != nil {
		return Filter{}, err
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return Filter{}, fmt.Errorf("minPrice greater than maxPrice: %w", apperr.ErrInvalid)
	}
	if f.Page, err = optInt(q, "page"); err != nil {
		return Filter{}, err
	}
	if f.Limit, err = optInt(q, "limit"); err != nil {
		return Filter{}, err
	}
	if v := q.Get("onSale"); v != "" {
		if f.OnSale, err = strconv.ParseBool(v); err != nil {
			return Filter{}, fmt.Errorf("onSale: %w", apperr.ErrInvalid)
		}
	}
	n := f.Normalize()
	if f.Page > maxPage(n.Limit) {
		return Filter{}, fmt.Errorf("page beyond %d: %w", maxPage(n.Limit), apperr.ErrInvalid)
	}
	return n, nil
}

func multi(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, p := range strings.Split(raw, ",") {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

func optDecimal(q url.Values, key string) (*decimal.Decimal, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return nil, fmt.Errorf("%s: %w", key, apperr.ErrInvalid)
	}
	return &d, nil
}

func optInt(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, apperr.ErrInvalid)
	}
	return i, nil
}

// Meta describes one page of a listing.
type Meta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	LastPage int   `json:"lastPage"`
	PerPage  int   `json:"perPage"`
}

type Page[T any] struct {
	Data []T `json:"data"`
	Meta Meta `json:"meta"`
}

// NewMeta computes lastPage as ceil(total/limit).
func NewMeta(total int64, page, limit int) Meta {
	last := 0
	if limit > 0 {
		last = int((total + int64(limit) - 1) / int64(limit))
	}
	return Meta{Total: total, Page: page, LastPage: last, PerPage: limit}
}
