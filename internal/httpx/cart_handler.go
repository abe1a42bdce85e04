package httpx

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/go-chi/chi/v5"
)

// Carts is satisfied by *cart.Service.
type Carts interface {
	AddItem(ctx context.Context, userID, variantID int64, qty int) (cart.Line, error)
	UpdateQuantity(ctx context.Context, userID, variantID int64, qty int) (*cart.Line, error)
	RemoveItem(ctx context.Context, userID, variantID int64) error
	Clear(ctx context.Context, userID int64) error
	Get(ctx context.Context, userID int64) (cart.Cart, error)
}

type CartHandler struct {
	Cart Carts
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.get)
	r.Post("/cart/items", h.add)
	r.Put("/cart/items/{variantId}", h.update)
	r.Delete("/cart/items/{variantId}", h.remove)
	r.Delete("/cart", h.clear)
}

type addItemReq struct {
	VariantID int64 `json:"variantId"`
	Quantity  *int  `json:"quantity"`
}

type updateItemReq struct {
	Quantity *int `json:"quantity"`
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	uid, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Cart.Get(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	uid, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req addItemReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.VariantID <= 0 {
		writeError(w, r, fmt.Errorf("variantId is required: %w", apperr.ErrInvalid))
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	if _, err := h.Cart.AddItem(r.Context(), uid, req.VariantID, qty); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCart(w, r, uid, http.StatusCreated)
}

func (h *CartHandler) update(w http.ResponseWriter, r *http.Request) {
	uid, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	vid, err := pathID(r, "variantId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateItemReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Quantity == nil {
		writeError(w, r, fmt.Errorf("quantity is required: %w", apperr.ErrInvalid))
		return
	}
	if _, err := h.Cart.UpdateQuantity(r.Context(), uid, vid, *req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCart(w, r, uid, http.StatusOK)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	uid, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	vid, err := pathID(r, "variantId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Cart.RemoveItem(r.Context(), uid, vid); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCart(w, r, uid, http.StatusOK)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	uid, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Cart.Clear(r.Context(), uid); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondCart answers with the whole priced cart.
func (h *CartHandler) respondCart(w http.ResponseWriter, r *http.Request, uid int64, code int) {
	c, err := h.Cart.Get(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, code, c)
}
