package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(origins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// API groups every handler the storefront exposes.
type API struct {
	Catalog *CatalogHandler
	Auth    *AuthHandler
	Cart    *CartHandler
	Orders  *OrdersHandler
	Admin   *AdminHandler
	Tokens  *auth.Tokens
}

// Register mounts public routes on r and the rest behind bearer auth.
func (a *API) Register(r chi.Router) {
	a.Catalog.Register(r)
	a.Auth.Register(r)
	a.Admin.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(a.Tokens))
		a.Auth.RegisterAccount(r)
		a.Cart.Register(r)
		a.Orders.Register(r)
	})
}
