package cart

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Gateway is the remote cart API. Every call returns the canonical cart.
type Gateway interface {
	GetCart(ctx context.Context) (*domain.Cart, error)
	AddCartItem(ctx context.Context, productID int64, quantity int) (*domain.Cart, error)
	UpdateCartItem(ctx context.Context, itemID int64, quantity int) (*domain.Cart, error)
	RemoveCartItem(ctx context.Context, itemID int64) (*domain.Cart, error)
	ClearCart(ctx context.Context) (*domain.Cart, error)
}

// Authenticator reports whether a usable session exists.
type Authenticator interface {
	RequireSession() error
}

// StockLookup returns the known stock level of a product.
type StockLookup interface {
	Stock(ctx context.Context, productID int64) (int, error)
}

type Option func(*Store)

func WithStockLookup(l StockLookup) Option {
	return func(s *Store) { s.stock = l }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Store) { s.log = logger.OrNop(log).Named("cart") }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// Store is the in-process copy of the signed-in user's cart. It never
// changes the cart locally; every mutation adopts the server response.
type Store struct {
	gw      Gateway
	auth    Authenticator
	stock   StockLookup
	log     *zap.Logger
	timeout time.Duration

	mu        sync.RWMutex
	seq       uint64
	st        state
	listeners []func(State)
}

func NewStore(gw Gateway, auth Authenticator, opts ...Option) *Store {
	s := &Store{
		gw:      gw,
		auth:    auth,
		log:     zap.NewNop(),
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers fn to receive every new state.
func (s *Store) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns the current state. The cart is a copy.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.st.State
	out.Cart = out.Cart.Clone()
	return out
}

func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Cart.ItemCount()
}

// Total is the server total, or the sum of item subtotals when the
// server sent none.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Cart.DisplayTotal()
}

func (s *Store) FetchCart(ctx context.Context) error {
	if err := s.auth.RequireSession(); err != nil {
		return err
	}

	seq := s.next()
	s.dispatch(FetchStarted{Seq: seq})

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.gw.GetCart(ctx)
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("fetch cart failed", zap.Error(err))
		s.dispatch(FetchFailed{Seq: seq, Err: err})
		return err
	}
	s.dispatch(CartFetched{Seq: seq, Cart: *c})
	return nil
}

func (s *Store) AddItem(ctx context.Context, productID int64, quantity int) error {
	if quantity < 1 {
		return invalid(ErrInvalidQuantity, "invalid_quantity", "Quantity must be at least 1")
	}
	if err := s.auth.RequireSession(); err != nil {
		return err
	}
	held := s.Snapshot().Cart.QuantityOf(productID)
	if err := s.checkStock(ctx, productID, held+quantity); err != nil {
		return err
	}

	return s.mutate(ctx, "add item", func(ctx context.Context) (*domain.Cart, error) {
		return s.gw.AddCartItem(ctx, productID, quantity)
	}, func(seq uint64, c domain.Cart) Transition {
		return ItemAdded{Seq: seq, Cart: c}
	})
}

// UpdateItem sets the quantity of an item. Zero removes it.
func (s *Store) UpdateItem(ctx context.Context, itemID int64, quantity int) error {
	if quantity < 0 {
		return invalid(ErrInvalidQuantity, "invalid_quantity", "Quantity cannot be negative")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, itemID)
	}
	if err := s.auth.RequireSession(); err != nil {
		return err
	}
	item, err := s.localItem(itemID)
	if err != nil {
		return err
	}
	if item != nil {
		if err := s.checkStock(ctx, item.ProductRef(), quantity); err != nil {
			return err
		}
	}

	return s.mutate(ctx, "update item", func(ctx context.Context) (*domain.Cart, error) {
		return s.gw.UpdateCartItem(ctx, itemID, quantity)
	}, func(seq uint64, c domain.Cart) Transition {
		return ItemUpdated{Seq: seq, Cart: c}
	})
}

func (s *Store) RemoveItem(ctx context.Context, itemID int64) error {
	if err := s.auth.RequireSession(); err != nil {
		return err
	}
	if _, err := s.localItem(itemID); err != nil {
		return err
	}

	return s.mutate(ctx, "remove item", func(ctx context.Context) (*domain.Cart, error) {
		return s.gw.RemoveCartItem(ctx, itemID)
	}, func(seq uint64, c domain.Cart) Transition {
		return ItemRemoved{Seq: seq, Cart: c}
	})
}

func (s *Store) ClearCart(ctx context.Context) error {
	if err := s.auth.RequireSession(); err != nil {
		return err
	}

	return s.mutate(ctx, "clear cart", func(ctx context.Context) (*domain.Cart, error) {
		return s.gw.ClearCart(ctx)
	}, func(seq uint64, c domain.Cart) Transition {
		return Cleared{Seq: seq, Cart: c}
	})
}

// MarkCleared empties the local cart without a request. Used once the
// backend has consumed the cart into an order.
func (s *Store) MarkCleared() {
	current := s.Snapshot().Cart
	s.dispatch(Cleared{Seq: s.next(), Cart: domain.Cart{ID: current.ID, UserID: current.UserID}})
}

// Reset returns the store to the signed-out state. Responses to requests
// issued before the reset are dropped.
func (s *Store) Reset() {
	s.dispatch(SignedOut{Seq: s.next()})
}

func (s *Store) mutate(
	ctx context.Context,
	op string,
	call func(context.Context) (*domain.Cart, error),
	done func(seq uint64, c domain.Cart) Transition,
) error {
	seq := s.next()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := call(ctx)
	if err != nil {
		logger.WithContext(ctx, s.log).Warn(op+" failed", zap.Error(err))
		return err
	}
	if c == nil {
		c = &domain.Cart{}
	}
	s.dispatch(done(seq, *c))
	logger.WithContext(ctx, s.log).Debug(op+" succeeded", zap.Int("item_count", c.ItemCount()))
	return nil
}

// localItem finds itemID in the adopted snapshot. Before any snapshot is
// loaded it returns nil without error and the server decides.
func (s *Store) localItem(itemID int64) (*domain.CartItem, error) {
	st := s.Snapshot()
	if !st.Loaded {
		return nil, nil
	}
	item, ok := st.Cart.FindItem(itemID)
	if !ok {
		return nil, invalid(ErrItemNotFound, "item_not_found", "Item is no longer in your cart")
	}
	return &item, nil
}

func (s *Store) checkStock(ctx context.Context, productID int64, want int) error {
	if s.stock == nil {
		return nil
	}
	available, err := s.stock.Stock(ctx, productID)
	if err != nil {
		return err
	}
	if want > available {
		if available <= 0 {
			return invalid(ErrInsufficientStock, "insufficient_stock", "This product is out of stock")
		}
		return invalid(ErrInsufficientStock, "insufficient_stock", "Only %d left in stock", available)
	}
	return nil
}

func (s *Store) next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *Store) dispatch(t Transition) {
	s.mu.Lock()
	next, changed := reduce(s.st, t)
	if !changed {
		s.mu.Unlock()
		return
	}
	s.st = next
	snapshot := next.State
	listeners := append([]func(State){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		snapshot.Cart = next.Cart.Clone()
		fn(snapshot)
	}
}
