package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

// Catalog is satisfied by *catalog.Repo.
type Catalog interface {
	ListProducts(ctx context.Context, f catalog.Filter) (catalog.Page[catalog.Product], error)
	Featured(ctx context.Context) ([]catalog.Product, error)
	ProductBySlug(ctx context.Context, slug string) (*catalog.Product, error)
	ProductsByCategory(ctx context.Context, categorySlug string) ([]catalog.Product, error)
	AllProducts(ctx context.Context) ([]catalog.Product, error)
	Brands(ctx context.Context) ([]catalog.Brand, error)
	BrandBySlug(ctx context.Context, slug string) (*catalog.Brand, error)
	Categories(ctx context.Context) ([]catalog.Category, error)
}

type CatalogHandler struct {
	Catalog Catalog
	Redis   *redis.Client // optional list cache
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/featured", h.featured)
	r.Get("/products/{slug}", h.productBySlug)
	r.Get("/categories", h.categories)
	r.Get("/categories/{slug}/products", h.productsByCategory)
	r.Get("/brands", h.brands)
	r.Get("/brands/{slug}", h.brandBySlug)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	f, err := catalog.ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	page, err := h.Catalog.ListProducts(ctx, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if page.Data == nil {
		page.Data = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *CatalogHandler) featured(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, "featured", func(ctx context.Context) (any, error) {
		ps, err := h.Catalog.Featured(ctx)
		return nonNil(ps), err
	})
}

func (h *CatalogHandler) productBySlug(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Catalog.ProductBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) productsByCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ProductsByCategory(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ps))
}

func (h *CatalogHandler) brands(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, "brands", func(ctx context.Context) (any, error) {
		bs, err := h.Catalog.Brands(ctx)
		return nonNil(bs), err
	})
}

func (h *CatalogHandler) brandBySlug(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	b, err := h.Catalog.BrandBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *CatalogHandler) categories(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, "categories", func(ctx context.Context) (any, error) {
		cs, err := h.Catalog.Categories(ctx)
		return nonNil(cs), err
	})
}

// cached serves a read-mostly list from Redis, filling it from load on a miss.
func (h *CatalogHandler) cached(w http.ResponseWriter, r *http.Request, name string, load func(context.Context) (any, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyCatalog, name)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	v, err := load(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.Redis != nil {
		if err := h.Redis.Set(ctx, key, b, redisx.TTLCatalog).Err(); err != nil {
			log.Printf("catalog cache %s: %v", key, err)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
