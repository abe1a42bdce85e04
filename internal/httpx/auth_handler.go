package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/users"
	"github.com/go-chi/chi/v5"
)

type Authenticator interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
}

// Accounts is satisfied by *users.Repo.
type Accounts interface {
	FindByID(ctx context.Context, id int64) (*users.User, error)
	Addresses(ctx context.Context, userID int64) ([]users.Address, error)
	AddAddress(ctx context.Context, a *users.Address) error
}

type AuthHandler struct {
	Auth  Authenticator
	Users Accounts
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
}

// RegisterAccount mounts the routes that need an authenticated user.
func (h *AuthHandler) RegisterAccount(r chi.Router) {
	r.Get("/me", h.me)
	r.Get("/me/addresses", h.addresses)
	r.Post("/me/addresses", h.addAddress)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.Auth.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	uid, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.Users.FindByID(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) addresses(w http.ResponseWriter, r *http.Request) {
	uid, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.Users.Addresses(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *AuthHandler) addAddress(w http.ResponseWriter, r *http.Request) {
	uid, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var a users.Address
	if err := decodeJSON(r, &a); err != nil {
		writeError(w, r, err)
		return
	}
	if err := users.NormalizeAddress(&a); err != nil {
		writeError(w, r, err)
		return
	}
	a.UserID = uid
	if err := h.Users.AddAddress(r.Context(), &a); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}
