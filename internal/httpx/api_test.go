package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/pricing"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/users"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	mu         sync.Mutex
	lastFilter catalog.Filter
	brandCalls int
	products   []catalog.Product
}

func (f *fakeCatalog) ListProducts(_ context.Context, fl catalog.Filter) (catalog.Page[catalog.Product], error) {
	f.mu.Lock()
	f.lastFilter = fl
	f.mu.Unlock()
	return catalog.Page[catalog.Product]{Data: f.products, Meta: catalog.NewMeta(int64(len(f.products)), fl.Page, fl.Limit)}, nil
}

func (f *fakeCatalog) Featured(context.Context) ([]catalog.Product, error) { return nil, nil }

func (f *fakeCatalog) ProductBySlug(_ context.Context, slug string) (*catalog.Product, error) {
	for _, p := range f.products {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("product %s: %w", slug, apperr.ErrNotFound)
}

func (f *fakeCatalog) ProductsByCategory(context.Context, string) ([]catalog.Product, error) {
	return f.products, nil
}

func (f *fakeCatalog) AllProducts(context.Context) ([]catalog.Product, error) { return f.products, nil }

func (f *fakeCatalog) Brands(context.Context) ([]catalog.Brand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.brandCalls++
	return []catalog.Brand{{ID: 1, Name: "Acme", Slug: "acme"}}, nil
}

func (f *fakeCatalog) BrandBySlug(_ context.Context, slug string) (*catalog.Brand, error) {
	return nil, fmt.Errorf("brand %s: %w", slug, apperr.ErrNotFound)
}

func (f *fakeCatalog) Categories(context.Context) ([]catalog.Category, error) { return nil, nil }

type fakeCarts struct {
	mu    sync.Mutex
	lines map[int64]map[int64]int
}

func (f *fakeCarts) AddItem(_ context.Context, uid, vid int64, qty int) (cart.Line, error) {
	if err := cart.CheckQuantity(qty); err != nil {
		return cart.Line{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lines[uid] == nil {
		f.lines[uid] = map[int64]int{}
	}
	f.lines[uid][vid] += qty
	return cart.Line{UserID: uid, VariantID: vid, Quantity: f.lines[uid][vid]}, nil
}

func (f *fakeCarts) UpdateQuantity(_ context.Context, uid, vid int64, qty int) (*cart.Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lines[uid][vid]; !ok {
		return nil, nil
	}
	if qty <= 0 {
		delete(f.lines[uid], vid)
		return nil, nil
	}
	if err := cart.CheckQuantity(qty); err != nil {
		return nil, err
	}
	f.lines[uid][vid] = qty
	return &cart.Line{UserID: uid, VariantID: vid, Quantity: qty}, nil
}

func (f *fakeCarts) RemoveItem(_ context.Context, uid, vid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lines[uid], vid)
	return nil
}

func (f *fakeCarts) Clear(_ context.Context, uid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lines, uid)
	return nil
}

func (f *fakeCarts) Get(_ context.Context, uid int64) (cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []cart.Item{}
	for vid, q := range f.lines[uid] {
		items = append(items, cart.Item{VariantID: vid, Quantity: q, Price: decimal.RequireFromString("30")})
	}
	return cart.Cart{Items: items, Totals: pricing.Calculate(cart.PricingLines(items))}, nil
}

type fakeOrders struct {
	carts    *fakeCarts
	mu       sync.Mutex
	byKey    map[string]*orders.Order
	placed   []*orders.Order
	lastIn   orders.PlaceInput
	statuses map[int64]orders.Status
}

func (f *fakeOrders) Place(ctx context.Context, uid int64, in orders.PlaceInput) (*orders.Order, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastIn = in
	if o, ok := f.byKey[in.IdempotencyKey]; ok && in.IdempotencyKey != "" {
		return o, true, nil
	}
	c, _ := f.carts.Get(ctx, uid)
	if len(c.Items) == 0 {
		return nil, false, apperr.ErrEmptyCart
	}
	_ = f.carts.Clear(ctx, uid)
	o := &orders.Order{ID: int64(len(f.placed) + 1), UserID: uid, Status: orders.StatusPending,
		Subtotal: c.Totals.Subtotal, Shipping: c.Totals.Shipping, Tax: c.Totals.Tax, Total: c.Totals.Total,
		ShippingAddress: in.ShippingAddress}
	f.placed = append(f.placed, o)
	if in.IdempotencyKey != "" {
		f.byKey[in.IdempotencyKey] = o
	}
	return o, false, nil
}

func (f *fakeOrders) List(_ context.Context, uid int64) ([]orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []orders.Order{}
	for _, o := range f.placed {
		if o.UserID == uid {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) Get(_ context.Context, uid, id int64) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.placed {
		if o.ID == id && o.UserID == uid {
			return o, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id int64, status string, _ *string) (*orders.Order, error) {
	to, err := orders.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	from := f.statuses[id]
	if from == "" {
		from = orders.StatusPending
	}
	if !orders.CanTransition(from, to) {
		return nil, apperr.ErrConflict
	}
	f.statuses[id] = to
	return &orders.Order{ID: id, Status: to}, nil
}

func (f *fakeOrders) Cancel(_ context.Context, _, id int64) (*orders.Order, error) {
	return &orders.Order{ID: id, Status: orders.StatusCancelled}, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*users.User
	addrs map[int64][]users.Address
}

func (m *memUsers) Create(_ context.Context, u *users.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return apperr.ErrConflict
	}
	u.ID = int64(len(m.users) + 1)
	cp := *u
	m.users[u.Email] = &cp
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperr.ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id int64) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *memUsers) Addresses(_ context.Context, uid int64) ([]users.Address, error) {
	return m.addrs[uid], nil
}

func (m *memUsers) AddAddress(_ context.Context, a *users.Address) error {
	a.ID = int64(len(m.addrs[a.UserID]) + 1)
	m.addrs[a.UserID] = append(m.addrs[a.UserID], *a)
	return nil
}

type testEnv struct {
	srv     *httptest.Server
	catalog *fakeCatalog
	orders  *fakeOrders
	mr      *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	cat := &fakeCatalog{products: []catalog.Product{{ID: 1, Name: "Tee", Slug: "tee", Price: decimal.RequireFromString("30")}}}
	carts := &fakeCarts{lines: map[int64]map[int64]int{}}
	ords := &fakeOrders{carts: carts, byKey: map[string]*orders.Order{}, statuses: map[int64]orders.Status{}}
	accounts := &memUsers{users: map[string]*users.User{}, addrs: map[int64][]users.Address{}}
	tokens := &auth.Tokens{Secret: []byte("test"), TTL: time.Hour}

	r := NewRouter([]string{"http://localhost:3000"})
	api := &API{
		Catalog: &CatalogHandler{Catalog: cat, Redis: rdb},
		Auth:    &AuthHandler{Auth: &auth.Service{Users: accounts, Tokens: tokens}, Users: accounts},
		Cart:    &CartHandler{Cart: carts},
		Orders:  &OrdersHandler{Orders: ords},
		Admin:   &AdminHandler{Orders: ords, Catalog: cat, APIKey: "admin-key"},
		Tokens:  tokens,
	}
	api.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, catalog: cat, orders: ords, mr: mr}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": "correct-horse", "firstName": "Ana",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var sess struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &sess))
	return sess.Token
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestListProducts(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.do(t, http.MethodGet, "/products?brands=acme,zen&sizes=M&sort=price_desc&page=2&limit=5", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, []string{"acme", "zen"}, e.catalog.lastFilter.Brands)
	assert.Equal(t, catalog.SortPriceDesc, e.catalog.lastFilter.Sort)
	assert.Equal(t, 2, e.catalog.lastFilter.Page)

	var page struct {
		Data []map[string]any `json:"data"`
		Meta catalog.Meta     `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Len(t, page.Data, 1)
	assert.Equal(t, 5, page.Meta.PerPage)

	resp, _ = e.do(t, http.MethodGet, "/products?minPrice=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProductBySlug(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(t, http.MethodGet, "/products/tee", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := e.do(t, http.MethodGet, "/products/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "not found")

	resp, _ = e.do(t, http.MethodGet, "/brands/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBrandsAreCached(t *testing.T) {
	e := newTestEnv(t)
	for i := 0; i < 3; i++ {
		resp, body := e.do(t, http.MethodGet, "/brands", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `[{"id":1,"name":"Acme","slug":"acme","createdAt":"0001-01-01T00:00:00Z"}]`, string(body))
	}
	assert.Equal(t, 1, e.catalog.brandCalls)
	assert.True(t, e.mr.Exists(fmt.Sprintf(redisx.KeyCatalog, "brands")))

	resp, body := e.do(t, http.MethodGet, "/categories", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestCartRequiresAuth(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(t, http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = e.do(t, http.MethodPost, "/orders", "bad-token", map[string]string{"shippingAddress": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthFlow(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "ana@example.com")

	resp, _ := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": "ana@example.com", "password": "correct-horse"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &sess))

	resp, body = e.do(t, http.MethodGet, "/me", sess.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"email":"ana@example.com"`)
	assert.NotContains(t, string(body), "passwordHash")

	resp, _ = e.do(t, http.MethodPost, "/me/addresses", sess.Token, map[string]string{"streetAddress": "1 Main St"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/me/addresses", sess.Token, map[string]any{
		"streetAddress": "1 Main St", "city": "Springfield", "state": "IL", "postalCode": "62701", "isDefault": true,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = e.do(t, http.MethodGet, "/me/addresses", sess.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"country":"United States"`)
}

func TestCartAndCheckout(t *testing.T) {
	e := newTestEnv(t)
	tok := e.register(t, "ana@example.com")

	resp, _ := e.do(t, http.MethodPost, "/orders", tok, map[string]string{"shippingAddress": "1 Main St"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "empty cart")

	resp, _ = e.do(t, http.MethodPost, "/cart/items", tok, map[string]any{"variantId": 10, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = e.do(t, http.MethodPost, "/cart/items", tok, map[string]any{"variantId": 10, "quantity": 3000000000})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "quantity beyond the cap")

	resp, _ = e.do(t, http.MethodPost, "/cart/items", tok, map[string]any{"variantId": 10})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, body := e.do(t, http.MethodPost, "/cart/items", tok, map[string]any{"variantId": 10, "quantity": 2})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var c cart.Cart
	require.NoError(t, json.Unmarshal(body, &c))
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)

	resp, _ = e.do(t, http.MethodPut, "/cart/items/99", tok, map[string]any{"quantity": 4})
	assert.Equal(t, http.StatusOK, resp.StatusCode, "updating an absent line is a no-op")
	resp, _ = e.do(t, http.MethodPut, "/cart/items/abc", tok, map[string]any{"quantity": 4})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = e.do(t, http.MethodPut, "/cart/items/10", tok, map[string]any{"quantity": 3000000000})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = e.do(t, http.MethodGet, "/cart", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &c))
	assert.Equal(t, "90.00", c.Totals.Subtotal.StringFixed(2))
	assert.Equal(t, "9.99", c.Totals.Shipping.StringFixed(2))

	resp, body = e.do(t, http.MethodPost, "/orders", tok, map[string]string{"shippingAddress": "1 Main St"}, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, "k-1", e.orders.lastIn.IdempotencyKey)
	assert.NotEmpty(t, e.orders.lastIn.TraceID)
	var o map[string]any
	require.NoError(t, json.Unmarshal(body, &o))
	assert.Equal(t, "pending", o["status"])
	assert.Equal(t, "107.19", o["totalAmount"])

	resp, _ = e.do(t, http.MethodPost, "/orders", tok, map[string]string{"shippingAddress": "1 Main St"}, "Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("Idempotent-Replayed"))

	resp, body = e.do(t, http.MethodGet, "/orders", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)

	resp, _ = e.do(t, http.MethodGet, "/orders/1", tok, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	other := e.register(t, "bo@example.com")
	resp, _ = e.do(t, http.MethodGet, "/orders/1", other, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = e.do(t, http.MethodDelete, "/cart", tok, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAdminRoutes(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.do(t, http.MethodPatch, "/admin/orders/1/status", "", map[string]string{"status": "paid"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPatch, "/admin/orders/1/status", "", map[string]string{"status": "shipped"}, "X-API-Key", "admin-key")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPatch, "/admin/orders/1/status", "", map[string]string{"status": "bogus"}, "X-API-Key", "admin-key")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := e.do(t, http.MethodPatch, "/admin/orders/1/status", "", map[string]string{"status": "paid"}, "X-API-Key", "admin-key")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"paid"`)

	resp, body = e.do(t, http.MethodGet, "/admin/products/export", "", nil, "X-API-Key", "admin-key")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "application/vnd.openxmlformats"))
	assert.Equal(t, []byte("PK"), body[:2])
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", apperr.ErrNotFound), http.StatusNotFound},
		{apperr.ErrConflict, http.StatusConflict},
		{apperr.ErrEmptyCart, http.StatusUnprocessableEntity},
		{apperr.ErrInvalid, http.StatusBadRequest},
		{apperr.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}
