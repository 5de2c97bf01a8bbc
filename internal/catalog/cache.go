package catalog

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const FeaturedCount = 8

var ErrProductNotFound = errors.New("product not found")

type Gateway interface {
	ListProducts(ctx context.Context, filter gateway.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type Option func(*Cache)

func WithSnapshot(s Snapshot) Option {
	return func(c *Cache) { c.snapshot = s }
}

// WithTTL sets how long the in-memory list is served before reloading.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

// WithLoadTimeout bounds the shared product list load, which runs detached
// from any single caller's context.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Cache) { c.loadTimeout = d }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) { c.log = logger.OrNop(log).Named("catalog") }
}

// Cache holds the fetched product list and an id index over everything
// seen so far.
type Cache struct {
	gw       Gateway
	snapshot Snapshot
	log      *zap.Logger
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time
	sfg         singleflight.Group // Coalesces concurrent loads

	mu       sync.RWMutex
	products []domain.Product
	byID     map[int64]domain.Product
	loadedAt time.Time
}

func New(gw Gateway, opts ...Option) *Cache {
	c := &Cache{
		gw:   gw,
		log:  zap.NewNop(),
		ttl:         5 * time.Minute,
		loadTimeout: 10 * time.Second,
		now:         time.Now,
		byID:        make(map[int64]domain.Product),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the full product list, fetching it when the in-memory copy
// is missing or older than the TTL.
func (c *Cache) Load(ctx context.Context) ([]domain.Product, error) {
	if products, ok := c.fresh(); ok {
		return products, nil
	}

	// The load is shared by every waiter, so one caller giving up must not
	// fail the others. Each caller still stops waiting when its ctx ends.
	ch := c.sfg.DoChan("products", func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		return c.load(loadCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			logger.WithContext(ctx, c.log).Warn("load products failed", zap.Error(res.Err))
			return nil, res.Err
		}
		return clone(res.Val.([]domain.Product)), nil
	}
}

func (c *Cache) load(ctx context.Context) ([]domain.Product, error) {
	if products, ok := c.fresh(); ok {
		return products, nil
	}
	if c.snapshot != nil {
		products, err := c.snapshot.Get(ctx)
		if err == nil {
			c.replace(products)
			return products, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			c.log.Warn("catalog snapshot get failed", zap.Error(err))
		}
	}

	products, err := c.gw.ListProducts(ctx, gateway.ProductFilter{})
	if err != nil {
		return nil, err
	}
	c.replace(products)

	if c.snapshot != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := c.snapshot.Set(ctx, products); err != nil {
				c.log.Warn("catalog snapshot set failed", zap.Error(err))
			}
		}()
	}
	return products, nil
}

// Search asks the backend for matching products and indexes the results.
// An empty filter is the same as Load.
func (c *Cache) Search(ctx context.Context, filter gateway.ProductFilter) ([]domain.Product, error) {
	if filter.IsZero() {
		return c.Load(ctx)
	}
	products, err := c.gw.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	c.index(products...)
	return products, nil
}

func (c *Cache) Featured(ctx context.Context) ([]domain.Product, error) {
	products, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(products) > FeaturedCount {
		products = products[:FeaturedCount]
	}
	return products, nil
}

// Categories lists the distinct categories of the loaded catalog.
func (c *Cache) Categories(ctx context.Context) ([]string, error) {
	products, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; !ok {
			seen[p.Category] = struct{}{}
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Get looks a product up by id, asking the backend on a miss.
func (c *Cache) Get(ctx context.Context, id int64) (domain.Product, error) {
	c.mu.RLock()
	p, ok := c.byID[id]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}
	return c.fetch(ctx, id)
}

// Stock returns the current stock of a product. It always asks the backend
// so cart checks are made against live numbers.
func (c *Cache) Stock(ctx context.Context, id int64) (int, error) {
	p, err := c.fetch(ctx, id)
	if err != nil {
		return 0, err
	}
	return p.Stock, nil
}

// Invalidate drops the in-memory list and the shared snapshot.
func (c *Cache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.products = nil
	c.byID = make(map[int64]domain.Product)
	c.loadedAt = time.Time{}
	c.mu.Unlock()

	if c.snapshot != nil {
		if err := c.snapshot.Delete(ctx); err != nil {
			c.log.Warn("catalog snapshot delete failed", zap.Error(err))
		}
	}
}

func (c *Cache) fetch(ctx context.Context, id int64) (domain.Product, error) {
	p, err := c.gw.GetProduct(ctx, id)
	if err != nil {
		var e *apperr.Error
		if errors.As(err, &e) && e.Status == http.StatusNotFound {
			return domain.Product{}, &apperr.Error{
				Kind:    apperr.KindRemote,
				Status:  e.Status,
				Code:    "product_not_found",
				Message: "Product not found",
				Err:     ErrProductNotFound,
			}
		}
		return domain.Product{}, err
	}
	c.index(*p)
	return *p, nil
}

func (c *Cache) fresh() ([]domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.products == nil || c.now().Sub(c.loadedAt) > c.ttl {
		return nil, false
	}
	return clone(c.products), true
}

func (c *Cache) replace(products []domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = clone(products)
	if c.products == nil {
		c.products = []domain.Product{}
	}
	c.loadedAt = c.now()
	for _, p := range products {
		c.byID[p.ID] = p
	}
}

func (c *Cache) index(products ...domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range products {
		c.byID[p.ID] = p
	}
}

func clone(products []domain.Product) []domain.Product {
	if products == nil {
		return nil
	}
	out := make([]domain.Product, len(products))
	copy(out, products)
	return out
}
