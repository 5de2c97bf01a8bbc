package storefront

import (
	"context"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps overrides the collaborators New would otherwise build from config.
type Deps struct {
	Logger       *zap.Logger
	HTTPClient   *http.Client
	SessionStore auth.SessionStore
	Notifier     checkout.Notifier
	Redis        *redis.Client
}

// App owns one signed-in (or signed-out) storefront client. Components are
// created by New and released by Close; nothing is package-global.
type App struct {
	Gateway  *gateway.Client
	Auth     *auth.Gate
	Cart     *cart.Store
	Catalog  *catalog.Cache
	Checkout *checkout.Orchestrator

	log      *zap.Logger
	notifier checkout.Notifier
	redis    *redis.Client
	ownRedis bool
}

// CartView is what both the cart and checkout screens render.
type CartView struct {
	State   cart.State
	Pricing checkout.Breakdown
}

func New(cfg *config.Config, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("storefront: nil config")
	}
	log := logger.OrNop(deps.Logger)
	app := &App{log: log, redis: deps.Redis}

	if app.redis == nil && cfg.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		app.ownRedis = true
	}

	var gate *auth.Gate
	opts := []gateway.Option{
		gateway.WithLogger(log.Named("gateway")),
		gateway.WithTokenSource(gateway.TokenFunc(func() string { return gate.Token() })),
		gateway.WithUnauthorizedHandler(func() { gate.ForceLogout() }),
		gateway.WithBreaker(gateway.BreakerSettings{
			MaxFailures: cfg.BreakerMaxFailures,
			OpenTimeout: cfg.BreakerOpenTimeout,
		}),
	}
	if deps.HTTPClient != nil {
		opts = append(opts, gateway.WithHTTPClient(deps.HTTPClient))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, gateway.WithTimeout(cfg.RequestTimeout))
	}
	app.Gateway = gateway.New(cfg.APIBaseURL, opts...)

	gate = auth.NewGate(app.Gateway, app.sessionStore(cfg, deps), log)
	app.Auth = gate

	catalogOpts := []catalog.Option{catalog.WithLogger(log)}
	if cfg.CatalogTTL > 0 {
		catalogOpts = append(catalogOpts, catalog.WithTTL(cfg.CatalogTTL))
	}
	if cfg.RequestTimeout > 0 {
		catalogOpts = append(catalogOpts, catalog.WithLoadTimeout(cfg.RequestTimeout))
	}
	if app.redis != nil {
		catalogOpts = append(catalogOpts, catalog.WithSnapshot(catalog.NewRedisSnapshot(app.redis, cfg.CatalogTTL)))
	}
	app.Catalog = catalog.New(app.Gateway, catalogOpts...)

	cartOpts := []cart.Option{cart.WithStockLookup(app.Catalog), cart.WithLogger(log)}
	checkoutOpts := []checkout.Option{checkout.WithLogger(log)}
	if cfg.RequestTimeout > 0 {
		cartOpts = append(cartOpts, cart.WithTimeout(cfg.RequestTimeout))
		checkoutOpts = append(checkoutOpts, checkout.WithTimeout(cfg.RequestTimeout))
	}
	app.Cart = cart.NewStore(app.Gateway, gate, cartOpts...)

	app.notifier = deps.Notifier
	if app.notifier == nil {
		if len(cfg.KafkaBrokers) > 0 {
			app.notifier = checkout.NewKafkaNotifier(cfg.OrderEventsTopic, cfg.KafkaBrokers...)
		} else {
			app.notifier = checkout.NopNotifier{}
		}
	}
	checkoutOpts = append(checkoutOpts, checkout.WithNotifier(app.notifier))
	app.Checkout = checkout.NewOrchestrator(app.Gateway, app.Cart, gate, checkoutOpts...)

	gate.OnLogin(func(ctx context.Context) {
		if err := app.Cart.FetchCart(ctx); err != nil {
			log.Warn("fetch cart after sign-in failed", zap.Error(err))
		}
	})
	gate.OnLogout(func(reason auth.LogoutReason) {
		app.Cart.Reset()
		app.Checkout.Reset()
	})

	return app, nil
}

func (a *App) sessionStore(cfg *config.Config, deps Deps) auth.SessionStore {
	switch {
	case deps.SessionStore != nil:
		return deps.SessionStore
	case a.redis != nil:
		return auth.NewRedisStore(a.redis, "default", cfg.JWTTTL)
	case cfg.SessionFile != "":
		return auth.NewFileStore(cfg.SessionFile)
	default:
		return auth.NewMemoryStore()
	}
}

// Start restores a persisted session, which also loads its cart.
func (a *App) Start(ctx context.Context) error {
	restored, err := a.Auth.Restore(ctx)
	if err != nil {
		return err
	}
	if restored {
		a.log.Debug("session restored")
	}
	return nil
}

// CartView prices the current cart.
func (a *App) CartView() CartView {
	st := a.Cart.Snapshot()
	return CartView{State: st, Pricing: checkout.Price(st.Total())}
}

func (a *App) Close() error {
	var errs []error
	if err := a.notifier.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.ownRedis {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
