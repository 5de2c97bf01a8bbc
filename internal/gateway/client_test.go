package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	auth   string
	reqID  string
	body   map[string]any
}

type fakeBackend struct {
	m        sync.RWMutex
	requests []recordedRequest
	status   int
	body     string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		auth:   r.Header.Get("Authorization"),
		reqID:  r.Header.Get("X-Request-ID"),
	}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &rec.body)
	}

	f.m.Lock()
	f.requests = append(f.requests, rec)
	status, body := f.status, f.body
	f.m.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeBackend) respond(status int, body string) {
	f.m.Lock()
	defer f.m.Unlock()
	f.status, f.body = status, body
}

func (f *fakeBackend) last() recordedRequest {
	f.m.RLock()
	defer f.m.RUnlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeBackend) count() int {
	f.m.RLock()
	defer f.m.RUnlock()
	return len(f.requests)
}

func setupClient(t *testing.T, backend *fakeBackend, opts ...Option) *Client {
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api", opts...)
}

const cartJSON = `{"id": 1, "items": [{"id": 10, "product_id": 3, "quantity": 2, "subtotal": 19.98}], "total": 19.98}`

func TestGetCart_AttachesTokenAndRequestID(t *testing.T) {
	backend := &fakeBackend{body: cartJSON}
	client := setupClient(t, backend, WithTokenSource(TokenFunc(func() string { return "tok-1" })))

	cart, err := client.GetCart(context.Background())
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.ItemCount())
	assert.True(t, cart.Total.Decimal.Equal(decimal.RequireFromString("19.98")))

	req := backend.last()
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/api/cart", req.path)
	assert.Equal(t, "Bearer tok-1", req.auth)
	assert.NotEmpty(t, req.reqID)
}

func TestGetCart_NoTokenNoHeader(t *testing.T) {
	backend := &fakeBackend{body: cartJSON}
	client := setupClient(t, backend)

	_, err := client.GetCart(context.Background())
	require.NoError(t, err)
	assert.Empty(t, backend.last().auth)
}

func TestCartMutations_Contract(t *testing.T) {
	backend := &fakeBackend{body: cartJSON}
	client := setupClient(t, backend, WithTokenSource(TokenFunc(func() string { return "tok" })))
	ctx := context.Background()

	_, err := client.AddCartItem(ctx, 3, 2)
	require.NoError(t, err)
	req := backend.last()
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/api/cart/items", req.path)
	assert.Equal(t, float64(3), req.body["product_id"])
	assert.Equal(t, float64(2), req.body["quantity"])

	_, err = client.UpdateCartItem(ctx, 10, 4)
	require.NoError(t, err)
	req = backend.last()
	assert.Equal(t, http.MethodPatch, req.method)
	assert.Equal(t, "/api/cart/items/10", req.path)
	assert.Equal(t, float64(4), req.body["quantity"])

	_, err = client.RemoveCartItem(ctx, 10)
	require.NoError(t, err)
	req = backend.last()
	assert.Equal(t, http.MethodDelete, req.method)
	assert.Equal(t, "/api/cart/items/10", req.path)

	backend.respond(http.StatusOK, "")
	cart, err := client.ClearCart(ctx)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, "/api/cart", backend.last().path)
}

func TestUnauthorized_TriggersHandler(t *testing.T) {
	backend := &fakeBackend{status: http.StatusUnauthorized, body: `{"error": "token expired", "code": "unauthorized"}`}
	var calls atomic.Int32
	client := setupClient(t, backend,
		WithTokenSource(TokenFunc(func() string { return "stale" })),
		WithUnauthorizedHandler(func() { calls.Add(1) }),
	)

	_, err := client.GetCart(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoginRejected_IsRemoteNotUnauthorized(t *testing.T) {
	backend := &fakeBackend{status: http.StatusUnauthorized, body: `{"message": "Invalid credentials"}`}
	var calls atomic.Int32
	client := setupClient(t, backend, WithUnauthorizedHandler(func() { calls.Add(1) }))

	_, err := client.Login(context.Background(), domain.Credentials{Email: "a@b.c", Password: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrRemote))
	assert.Equal(t, "Invalid credentials", apperr.Message(err))
	assert.Equal(t, int32(0), calls.Load())
}

func TestLoginWhileSignedIn_SendsNoTokenAndKeepsSession(t *testing.T) {
	backend := &fakeBackend{status: http.StatusUnauthorized, body: `{"error": "Invalid credentials", "code": "invalid_credentials"}`}
	var calls atomic.Int32
	client := setupClient(t, backend,
		WithTokenSource(TokenFunc(func() string { return "live-token" })),
		WithUnauthorizedHandler(func() { calls.Add(1) }),
	)

	_, err := client.Login(context.Background(), domain.Credentials{Email: "a@b.c", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrRemote))
	assert.Equal(t, "Invalid credentials", apperr.Message(err))
	assert.Equal(t, int32(0), calls.Load(), "a rejected login must not sign the user out")
	assert.Empty(t, backend.last().auth)

	_, err = client.Register(context.Background(), domain.Registration{Username: "abc", Email: "a@b.c", Password: "secret1"})
	require.Error(t, err)
	assert.Empty(t, backend.last().auth)
	assert.Equal(t, int32(0), calls.Load())
}

func TestUnauthorized_KeepsBackendMessage(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
		code    string
	}{
		{"error field", `{"error": "invalid or expired token", "code": "token_expired"}`, "invalid or expired token", "token_expired"},
		{"no payload", ``, "Your session has expired. Please sign in again.", "unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{status: http.StatusUnauthorized, body: tt.body}
			client := setupClient(t, backend, WithTokenSource(TokenFunc(func() string { return "tok" })))

			_, err := client.GetCart(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
			assert.Equal(t, tt.message, apperr.Message(err))

			var e *apperr.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.code, e.Code)
		})
	}
}

func TestWithTimeout_LeavesCallerClientAlone(t *testing.T) {
	backend := &fakeBackend{body: cartJSON}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	shared := &http.Client{Timeout: time.Minute}
	client := New(srv.URL+"/api", WithHTTPClient(shared), WithTimeout(time.Second))

	_, err := client.GetCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Minute, shared.Timeout)
	assert.Equal(t, time.Second, client.httpClient.Timeout)
}

func TestRemoteError_MessageExtraction(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"message field", http.StatusBadRequest, `{"message": "Only 2 left in stock"}`, "Only 2 left in stock"},
		{"error field", http.StatusConflict, `{"error": "insufficient stock", "code": "insufficient_stock"}`, "insufficient stock"},
		{"no payload", http.StatusBadRequest, ``, apperr.GenericMessage},
		{"html payload", http.StatusBadGateway, `<html>bad gateway</html>`, apperr.GenericMessage},
		{"not found", http.StatusNotFound, `{}`, "Not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{status: tt.status, body: tt.body}
			client := setupClient(t, backend, WithTokenSource(TokenFunc(func() string { return "tok" })))

			_, err := client.AddCartItem(context.Background(), 1, 1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrRemote))
			assert.Equal(t, tt.message, apperr.Message(err))

			var e *apperr.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.status, e.Status)
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := New(url, WithTimeout(time.Second))
	_, err := client.GetCart(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNetwork))
	assert.Equal(t, apperr.NetworkMessage, apperr.Message(err))
}

func TestBreakerOpensAfterServerFailures(t *testing.T) {
	backend := &fakeBackend{status: http.StatusInternalServerError, body: `{"error": "boom"}`}
	client := setupClient(t, backend, WithBreaker(BreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute}))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.GetCart(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrRemote))
		assert.Equal(t, "boom", apperr.Message(err))
	}

	_, err := client.GetCart(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNetwork), "open breaker fails fast")
	assert.Equal(t, 2, backend.count(), "no request reaches the backend while open")
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	backend := &fakeBackend{status: http.StatusBadRequest, body: `{"error": "bad"}`}
	client := setupClient(t, backend, WithBreaker(BreakerSettings{MaxFailures: 1, OpenTimeout: time.Minute}))

	for i := 0; i < 3; i++ {
		_, err := client.GetCart(context.Background())
		assert.True(t, errors.Is(err, apperr.ErrRemote))
	}
	assert.Equal(t, 3, backend.count())
}

func TestInvalidJSONResponse(t *testing.T) {
	backend := &fakeBackend{body: `{"items": "nope"}`}
	client := setupClient(t, backend)

	_, err := client.GetCart(context.Background())
	require.Error(t, err)
	var e *apperr.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "invalid_response", e.Code)
}

func TestCreateOrder(t *testing.T) {
	backend := &fakeBackend{status: http.StatusCreated, body: `{"id": 42, "status": "pending", "total_amount": 53.19, "items": [{"product_id": 3, "quantity": 2}]}`}
	client := setupClient(t, backend, WithTokenSource(TokenFunc(func() string { return "tok" })))

	order, err := client.CreateOrder(context.Background(), "1 Main St, Springfield, IL 62701, United States")
	require.NoError(t, err)
	assert.Equal(t, int64(42), order.ID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("53.19")))

	req := backend.last()
	assert.Equal(t, "/api/orders", req.path)
	assert.Equal(t, "1 Main St, Springfield, IL 62701, United States", req.body["shipping_address"])
}

func TestCancelOrder(t *testing.T) {
	backend := &fakeBackend{body: `{"id": 42, "status": "cancelled", "total_amount": 53.19}`}
	client := setupClient(t, backend, WithTokenSource(TokenFunc(func() string { return "tok" })))

	order, err := client.CancelOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)

	req := backend.last()
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/api/orders/42/cancel", req.path)
	assert.Equal(t, "Bearer tok", req.auth)

	backend.respond(http.StatusConflict, `{"error": "Only pending or processing orders can be cancelled", "code": "illegal_transition"}`)
	_, err = client.CancelOrder(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, "Only pending or processing orders can be cancelled", apperr.Message(err))
}

func TestListProducts_BothShapes(t *testing.T) {
	backend := &fakeBackend{body: `[{"id": 1, "name": "Mug", "price": 12.5, "stock": 3}]`}
	client := setupClient(t, backend)

	products, err := client.ListProducts(context.Background(), ProductFilter{Category: "kitchen", Search: "mug"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "category=kitchen&search=mug", backend.last().query)

	backend.respond(http.StatusOK, `{"products": [{"id": 1}, {"id": 2}]}`)
	products, err = client.ListProducts(context.Background(), ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Empty(t, backend.last().query)
}

func TestLogin_AcceptsAccessToken(t *testing.T) {
	backend := &fakeBackend{body: `{"access_token": "jwt-abc", "user": {"id": 5, "username": "ann", "email": "ann@example.com"}}`}
	client := setupClient(t, backend)

	session, err := client.Login(context.Background(), domain.Credentials{Email: "ann@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "jwt-abc", session.Token)
	assert.Equal(t, int64(5), session.User.ID)

	backend.respond(http.StatusOK, `{"user": {"id": 5}}`)
	_, err = client.Login(context.Background(), domain.Credentials{Email: "ann@example.com", Password: "pw"})
	require.Error(t, err)
}

func TestRegister_BothShapes(t *testing.T) {
	backend := &fakeBackend{status: http.StatusCreated, body: `{"message": "created", "user": {"id": 9, "username": "bob"}}`}
	client := setupClient(t, backend)

	user, err := client.Register(context.Background(), domain.Registration{Username: "bob", Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, int64(9), user.ID)

	backend.respond(http.StatusCreated, `{"id": 10, "username": "bob"}`)
	user, err = client.Register(context.Background(), domain.Registration{Username: "bob"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), user.ID)
}
