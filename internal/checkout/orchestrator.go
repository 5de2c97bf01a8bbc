package checkout

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/validation"
	"go.uber.org/zap"
)

type OrderGateway interface {
	CreateOrder(ctx context.Context, shippingAddress string) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	CancelOrder(ctx context.Context, id int64) (*domain.Order, error)
}

type CartStore interface {
	Snapshot() cart.State
	ClearCart(ctx context.Context) error
	MarkCleared()
}

type Authenticator interface {
	RequireSession() error
}

type Option func(*Orchestrator)

func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = logger.OrNop(log).Named("checkout") }
}

func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// Orchestrator turns the current cart into a submitted order.
type Orchestrator struct {
	orders   OrderGateway
	cart     CartStore
	auth     Authenticator
	notifier Notifier
	log      *zap.Logger
	timeout  time.Duration

	mu           sync.RWMutex
	phase        Phase
	inFlight     bool
	confirmation *domain.Order
	lastErr      error
}

func NewOrchestrator(orders OrderGateway, c CartStore, auth Authenticator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		orders:   orders,
		cart:     c,
		auth:     auth,
		notifier: NopNotifier{},
		log:      zap.NewNop(),
		timeout:  15 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Quote prices the current cart.
func (o *Orchestrator) Quote() Breakdown {
	return Price(o.cart.Snapshot().Total())
}

// Checkout validates the form and submits the order to its address.
func (o *Orchestrator) Checkout(ctx context.Context, form Form) (*domain.Order, error) {
	if err := o.auth.RequireSession(); err != nil {
		return nil, err
	}
	form = form.normalized()
	if err := validation.Struct(form); err != nil {
		return nil, err
	}
	return o.SubmitOrder(ctx, form.ShippingAddress())
}

// SubmitOrder places an order for the current cart. On success the cart is
// emptied and the confirmation is kept until Reset. On failure the cart is
// left as it was. A second call while one is in flight is rejected.
func (o *Orchestrator) SubmitOrder(ctx context.Context, shippingAddress string) (*domain.Order, error) {
	if err := o.auth.RequireSession(); err != nil {
		return nil, err
	}
	shippingAddress = strings.TrimSpace(shippingAddress)
	if shippingAddress == "" {
		return nil, rejected(ErrMissingAddress, "invalid_input", "Shipping address is required")
	}
	snapshot := o.cart.Snapshot().Cart
	if snapshot.IsEmpty() {
		return nil, rejected(ErrEmptyCart, "empty_cart", "Your cart is empty")
	}

	if err := o.begin(); err != nil {
		return nil, err
	}

	log := logger.WithContext(ctx, o.log)
	reqCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	order, err := o.orders.CreateOrder(reqCtx, shippingAddress)
	if err != nil {
		log.Warn("submit order failed", zap.Error(err))
		o.finish(PhaseFailed, nil, err)
		return nil, err
	}

	confirmation := order.Clone()
	if len(confirmation.Items) == 0 {
		confirmation.Items = domain.SnapshotItems(snapshot)
	}
	if confirmation.ShippingAddress == "" {
		confirmation.ShippingAddress = shippingAddress
	}
	o.finish(PhaseConfirmed, &confirmation, nil)

	// The order has consumed the cart; fall back to a local clear when
	// the follow-up request fails.
	if err := o.cart.ClearCart(ctx); err != nil {
		log.Warn("clear cart after order failed", zap.Int64("order_id", confirmation.ID), zap.Error(err))
		o.cart.MarkCleared()
	}

	if err := o.notifier.OrderConfirmed(ctx, confirmation.Clone()); err != nil {
		log.Error("order notification failed", zap.Int64("order_id", confirmation.ID), zap.Error(err))
	}

	log.Info("order placed",
		zap.Int64("order_id", confirmation.ID),
		zap.String("status", confirmation.Status.String()),
		zap.String("total", confirmation.TotalAmount.StringFixed(2)))

	out := confirmation.Clone()
	return &out, nil
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight {
		return rejected(ErrSubmissionInFlight, "submission_in_flight", "Your order is already being placed")
	}
	o.inFlight = true
	o.phase = PhaseSubmitting
	o.lastErr = nil
	return nil
}

func (o *Orchestrator) finish(phase Phase, confirmation *domain.Order, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight = false
	o.phase = phase
	o.lastErr = err
	if confirmation != nil {
		o.confirmation = confirmation
	}
}

func (o *Orchestrator) Phase() Phase {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.phase
}

// Submitting reports whether the submit control should be disabled.
func (o *Orchestrator) Submitting() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.inFlight
}

func (o *Orchestrator) LastError() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastErr
}

// Confirmation returns a copy of the last placed order.
func (o *Orchestrator) Confirmation() (domain.Order, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.confirmation == nil {
		return domain.Order{}, false
	}
	return o.confirmation.Clone(), true
}

// Reset leaves the confirmation state.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phase = PhaseIdle
	o.confirmation = nil
	o.lastErr = nil
}

// Orders lists the signed-in user's order history.
func (o *Orchestrator) Orders(ctx context.Context) ([]domain.Order, error) {
	if err := o.auth.RequireSession(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.orders.ListOrders(ctx)
}

func (o *Orchestrator) Order(ctx context.Context, id int64) (*domain.Order, error) {
	if err := o.auth.RequireSession(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.orders.GetOrder(ctx, id)
}

// CancelOrder asks the backend to cancel one of the user's orders. The backend
// decides whether the order is still cancellable; the updated order is
// returned and reflected in the confirmation when it is the one just placed.
func (o *Orchestrator) CancelOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if err := o.auth.RequireSession(); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, rejected(ErrInvalidOrderID, "invalid_order_id", "Order id must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	order, err := o.orders.CancelOrder(ctx, id)
	if err != nil {
		o.log.Warn("order cancellation failed", zap.Int64("order_id", id), zap.Error(err))
		return nil, err
	}

	o.mu.Lock()
	if o.confirmation != nil && o.confirmation.ID == order.ID {
		o.confirmation.Status = order.Status
	}
	o.mu.Unlock()

	o.log.Info("order cancelled", zap.Int64("order_id", order.ID))
	return order, nil
}
