package storefront

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/devserver"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend wraps the dev server so tests can count requests and inject 401s.
type backend struct {
	mu           sync.RWMutex
	handler      http.Handler
	requests     []string
	rejectCart   bool
	cartRequests atomic.Int32
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.requests = append(b.requests, r.Method+" "+r.URL.Path)
	reject := b.rejectCart
	b.mu.Unlock()

	if strings.HasPrefix(r.URL.Path, "/api/cart") {
		b.cartRequests.Add(1)
		if reject {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"token revoked","code":"unauthorized"}`))
			return
		}
	}
	b.handler.ServeHTTP(w, r)
}

func (b *backend) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.requests)
}

func (b *backend) setRejectCart(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectCart = v
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []domain.Order
}

func (n *recordingNotifier) OrderConfirmed(_ context.Context, o domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, o)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func setupBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()
	store := devserver.NewMemoryStore()
	require.NoError(t, devserver.Seed(store))
	tokens := devserver.NewTokenIssuer("e2e-secret", time.Hour)
	b := &backend{handler: devserver.NewRouter(devserver.NewHandler(store, tokens, nil), "/api", 5*time.Second)}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, srv
}

func testConfig(srv *httptest.Server) *config.Config {
	return &config.Config{
		APIBaseURL:         srv.URL + "/api",
		RequestTimeout:     5 * time.Second,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: time.Second,
		CatalogTTL:         time.Minute,
		JWTTTL:             time.Hour,
	}
}

func setupApp(t *testing.T, srv *httptest.Server, deps Deps) *App {
	t.Helper()
	if deps.SessionStore == nil {
		deps.SessionStore = auth.NewMemoryStore()
	}
	app, err := New(testConfig(srv), deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func login(t *testing.T, app *App) {
	t.Helper()
	require.NoError(t, app.Auth.Login(context.Background(), domain.Credentials{
		Email:    devserver.DemoEmail,
		Password: devserver.DemoPassword,
	}))
}

func TestCheckoutEndToEnd(t *testing.T) {
	_, srv := setupBackend(t)
	notifier := &recordingNotifier{}
	app := setupApp(t, srv, Deps{Notifier: notifier})
	ctx := context.Background()

	login(t, app)
	st := app.Cart.Snapshot()
	assert.True(t, st.SignedIn)
	assert.True(t, st.Loaded)
	assert.Equal(t, 0, st.ItemCount())

	require.NoError(t, app.Cart.AddItem(ctx, 6, 2)) // 2 x 20.00
	view := app.CartView()
	assert.Equal(t, 2, view.State.ItemCount())
	assert.Equal(t, "9.99", view.Pricing.Shipping.StringFixed(2))
	assert.Equal(t, "3.20", view.Pricing.Tax.StringFixed(2))
	assert.Equal(t, "53.19", view.Pricing.Total.StringFixed(2))
	assert.Equal(t, view.Pricing, app.Checkout.Quote())

	form := checkout.NewForm(devserver.DemoEmail)
	form.FirstName, form.LastName = "Demo", "User"
	form.Address, form.City, form.State, form.ZipCode = "1 Main St", "Springfield", "IL", "62701"
	form.CardNumber, form.ExpiryDate, form.CVV, form.NameOnCard = "4111111111111111", "12/30", "123", "Demo User"

	order, err := app.Checkout.Checkout(ctx, form)
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, "53.19", order.TotalAmount.StringFixed(2))
	assert.Equal(t, "1 Main St, Springfield, IL 62701, United States", order.ShippingAddress)
	assert.Equal(t, 0, app.Cart.ItemCount())

	orders, err := app.Checkout.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	require.Len(t, notifier.orders, 1)
	assert.Equal(t, order.ID, notifier.orders[0].ID)
}

func TestAddItem_UnauthenticatedNoNetwork(t *testing.T) {
	b, srv := setupBackend(t)
	app := setupApp(t, srv, Deps{})
	before := app.Cart.Snapshot()

	err := app.Cart.AddItem(context.Background(), 1, 1)

	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.Equal(t, 0, b.count())
	assert.Equal(t, before, app.Cart.Snapshot())
}

func TestFetchCart_UnauthorizedForcesLogout(t *testing.T) {
	b, srv := setupBackend(t)
	app := setupApp(t, srv, Deps{})
	ctx := context.Background()
	login(t, app)
	require.NoError(t, app.Cart.AddItem(ctx, 2, 1))

	var states []cart.State
	app.Cart.OnChange(func(s cart.State) { states = append(states, s) })

	b.setRejectCart(true)
	err := app.Cart.FetchCart(ctx)

	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.False(t, app.Auth.IsAuthenticated())
	st := app.Cart.Snapshot()
	assert.False(t, st.SignedIn)
	assert.True(t, st.Cart.IsEmpty())
	assert.Nil(t, st.Err)
	require.NotEmpty(t, states)
	assert.False(t, states[len(states)-1].SignedIn)

	calls := b.cartRequests.Load()
	require.ErrorIs(t, app.Cart.FetchCart(ctx), apperr.ErrUnauthenticated)
	assert.Equal(t, calls, b.cartRequests.Load())
}

func TestAddItem_StockCheckedAgainstCatalog(t *testing.T) {
	b, srv := setupBackend(t)
	app := setupApp(t, srv, Deps{})
	login(t, app)

	err := app.Cart.AddItem(context.Background(), 9, 1) // out of stock

	require.ErrorIs(t, err, cart.ErrInsufficientStock)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, r := range b.requests {
		assert.NotEqual(t, "POST /api/cart/items", r)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	_, srv := setupBackend(t)
	app := setupApp(t, srv, Deps{})

	err := app.Auth.Login(context.Background(), domain.Credentials{Email: devserver.DemoEmail, Password: "wrong"})

	require.ErrorIs(t, err, apperr.ErrRemote)
	assert.Equal(t, "Invalid credentials", apperr.Message(err))
	assert.False(t, app.Auth.IsAuthenticated())
}

func TestStart_RestoresSessionAndCart(t *testing.T) {
	_, srv := setupBackend(t)
	sessions := auth.NewMemoryStore()

	first := setupApp(t, srv, Deps{SessionStore: sessions})
	login(t, first)
	require.NoError(t, first.Cart.AddItem(context.Background(), 4, 3))

	second := setupApp(t, srv, Deps{SessionStore: sessions})
	require.NoError(t, second.Start(context.Background()))

	assert.True(t, second.Auth.IsAuthenticated())
	assert.Equal(t, 3, second.Cart.ItemCount())
}

func TestStart_RedisSession(t *testing.T) {
	_, srv := setupBackend(t)
	mr := miniredis.RunT(t)
	cfg := testConfig(srv)
	cfg.RedisAddr = mr.Addr()

	app, err := New(cfg, Deps{})
	require.NoError(t, err)
	login(t, app)
	require.True(t, mr.Exists("session:default"))
	require.NoError(t, app.Close())

	again, err := New(cfg, Deps{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = again.Close() })
	require.NoError(t, again.Start(context.Background()))
	assert.True(t, again.Auth.IsAuthenticated())
}

func TestLogout_ResetsCartAndCheckout(t *testing.T) {
	_, srv := setupBackend(t)
	app := setupApp(t, srv, Deps{})
	ctx := context.Background()
	login(t, app)
	require.NoError(t, app.Cart.AddItem(ctx, 2, 1))
	_, err := app.Checkout.SubmitOrder(ctx, "1 Main St")
	require.NoError(t, err)

	app.Auth.Logout()

	assert.False(t, app.Cart.Snapshot().SignedIn)
	_, ok := app.Checkout.Confirmation()
	assert.False(t, ok)
}

func TestCatalog_ThroughGateway(t *testing.T) {
	_, srv := setupBackend(t)
	app := setupApp(t, srv, Deps{})
	ctx := context.Background()

	featured, err := app.Catalog.Featured(ctx)
	require.NoError(t, err)
	assert.Len(t, featured, 8)

	p, err := app.Catalog.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Running Shoes", p.Name)

	_, err = app.Catalog.Get(ctx, 404)
	assert.Error(t, err)
}

func TestLogin_FailedReloginKeepsSession(t *testing.T) {
	_, srv := setupBackend(t)
	app := setupApp(t, srv, Deps{})
	ctx := context.Background()
	login(t, app)
	require.NoError(t, app.Cart.AddItem(ctx, 2, 1))

	err := app.Auth.Login(ctx, domain.Credentials{Email: devserver.DemoEmail, Password: "wrong-password"})

	require.ErrorIs(t, err, apperr.ErrRemote)
	assert.Equal(t, "Invalid credentials", apperr.Message(err))
	assert.True(t, app.Auth.IsAuthenticated())
	st := app.Cart.Snapshot()
	assert.True(t, st.SignedIn)
	assert.Equal(t, 1, st.ItemCount())
}

func TestCancelOrder_EndToEnd(t *testing.T) {
	_, srv := setupBackend(t)
	app := setupApp(t, srv, Deps{})
	ctx := context.Background()
	login(t, app)
	require.NoError(t, app.Cart.AddItem(ctx, 2, 1))
	order, err := app.Checkout.SubmitOrder(ctx, "1 Main St")
	require.NoError(t, err)

	cancelled, err := app.Checkout.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

	_, err = app.Checkout.CancelOrder(ctx, order.ID)
	require.ErrorIs(t, err, apperr.ErrRemote)
	assert.Equal(t, "Only pending or processing orders can be cancelled", apperr.Message(err))

	orders, err := app.Checkout.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderStatusCancelled, orders[0].Status)
}
