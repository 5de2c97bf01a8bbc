package devserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrItemNotFound       = errors.New("cart item not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrOrderNotFound      = errors.New("order not found")
	ErrIllegalTransition  = errors.New("illegal order status transition")
)

type userRecord struct {
	user         domain.User
	passwordHash []byte
}

type cartLine struct {
	id        int64
	productID int64
	quantity  int
}

type ProductFilter struct {
	Category string
	Search   string
}

// MemoryStore is the backend state of the dev server.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[int64]*userRecord
	byEmail  map[string]int64
	products map[int64]*domain.Product
	order    []int64 // product listing order
	carts    map[int64][]cartLine
	orders   map[int64]*domain.Order

	nextUserID  int64
	nextLineID  int64
	nextOrderID int64
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]*userRecord),
		byEmail:  make(map[string]int64),
		products: make(map[int64]*domain.Product),
		carts:    make(map[int64][]cartLine),
		orders:   make(map[int64]*domain.Order),
		now:      time.Now,
	}
}

// AddProduct inserts or replaces a product.
func (s *MemoryStore) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.products[p.ID]; !exists {
		s.order = append(s.order, p.ID)
	}
	s.products[p.ID] = &p
}

func (s *MemoryStore) CreateUser(reg domain.Registration, isAdmin bool) (domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(reg.Email))
	if _, exists := s.byEmail[email]; exists {
		return domain.User{}, ErrEmailTaken
	}
	for _, rec := range s.users {
		if strings.EqualFold(rec.user.Username, reg.Username) {
			return domain.User{}, ErrUsernameTaken
		}
	}

	s.nextUserID++
	user := domain.User{ID: s.nextUserID, Username: reg.Username, Email: email, IsAdmin: isAdmin}
	s.users[user.ID] = &userRecord{user: user, passwordHash: hash}
	s.byEmail[email] = user.ID
	return user, nil
}

func (s *MemoryStore) Authenticate(email, password string) (domain.User, error) {
	s.mu.RLock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	var rec *userRecord
	if ok {
		rec = s.users[id]
	}
	s.mu.RUnlock()

	if rec == nil {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return rec.user, nil
}

func (s *MemoryStore) User(id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[id]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return rec.user, nil
}

func (s *MemoryStore) Products(filter ProductFilter) []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	result := make([]domain.Product, 0, len(s.order))
	for _, id := range s.order {
		p := s.products[id]
		if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		result = append(result, *p)
	}
	return result
}

func (s *MemoryStore) Product(id int64) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, ErrProductNotFound
	}
	return *p, nil
}

func (s *MemoryStore) Cart(userID int64) domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cartLocked(userID)
}

// AddItem merges into an existing line for the same product.
func (s *MemoryStore) AddItem(userID, productID int64, quantity int) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return domain.Cart{}, ErrProductNotFound
	}

	lines := s.carts[userID]
	for i, line := range lines {
		if line.productID == productID {
			if line.quantity+quantity > p.Stock {
				return domain.Cart{}, ErrInsufficientStock
			}
			lines[i].quantity += quantity
			return s.cartLocked(userID), nil
		}
	}

	if quantity > p.Stock {
		return domain.Cart{}, ErrInsufficientStock
	}
	s.nextLineID++
	s.carts[userID] = append(lines, cartLine{id: s.nextLineID, productID: productID, quantity: quantity})
	return s.cartLocked(userID), nil
}

func (s *MemoryStore) UpdateItem(userID, itemID int64, quantity int) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[userID]
	for i, line := range lines {
		if line.id != itemID {
			continue
		}
		if quantity > s.products[line.productID].Stock {
			return domain.Cart{}, ErrInsufficientStock
		}
		lines[i].quantity = quantity
		return s.cartLocked(userID), nil
	}
	return domain.Cart{}, ErrItemNotFound
}

func (s *MemoryStore) RemoveItem(userID, itemID int64) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[userID]
	for i, line := range lines {
		if line.id == itemID {
			s.carts[userID] = append(lines[:i:i], lines[i+1:]...)
			return s.cartLocked(userID), nil
		}
	}
	return domain.Cart{}, ErrItemNotFound
}

func (s *MemoryStore) ClearCart(userID int64) domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return s.cartLocked(userID)
}

// CreateOrder snapshots the cart into a pending order, takes the stock and
// empties the cart. The total includes shipping and tax.
func (s *MemoryStore) CreateOrder(userID int64, shippingAddress string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartLocked(userID)
	if c.IsEmpty() {
		return domain.Order{}, ErrEmptyCart
	}
	for _, line := range s.carts[userID] {
		if line.quantity > s.products[line.productID].Stock {
			return domain.Order{}, ErrInsufficientStock
		}
	}
	for _, line := range s.carts[userID] {
		s.products[line.productID].Stock -= line.quantity
	}

	s.nextOrderID++
	order := &domain.Order{
		ID:              s.nextOrderID,
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		ShippingAddress: shippingAddress,
		TotalAmount:     checkout.Price(c.SumOfSubtotals()).Total,
		Items:           domain.SnapshotItems(c),
		CreatedAt:       s.now().UTC(),
	}
	s.orders[order.ID] = order
	delete(s.carts, userID)
	return order.Clone(), nil
}

// Orders lists a user's orders, newest first.
func (s *MemoryStore) Orders(userID int64) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, o := range s.orders {
		if o.UserID == userID {
			result = append(result, o.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result
}

// Order returns an order owned by userID. Admins may read any order.
func (s *MemoryStore) Order(userID, orderID int64, isAdmin bool) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok || (!isAdmin && o.UserID != userID) {
		return domain.Order{}, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *MemoryStore) UpdateOrderStatus(orderID int64, status domain.OrderStatus) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, ErrOrderNotFound
	}
	return s.transitionLocked(o, status)
}

// CancelOrder cancels an order on behalf of its owner. Only pending and
// processing orders can be cancelled; the stock they took is returned.
func (s *MemoryStore) CancelOrder(userID, orderID int64) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.UserID != userID {
		return domain.Order{}, ErrOrderNotFound
	}
	return s.transitionLocked(o, domain.OrderStatusCancelled)
}

func (s *MemoryStore) transitionLocked(o *domain.Order, status domain.OrderStatus) (domain.Order, error) {
	if !o.Status.CanTransitionTo(status) {
		return domain.Order{}, ErrIllegalTransition
	}
	o.Status = status
	if status == domain.OrderStatusCancelled {
		for _, item := range o.Items {
			if p, ok := s.products[item.ProductID]; ok {
				p.Stock += item.Quantity
			}
		}
	}
	return o.Clone(), nil
}

func (s *MemoryStore) cartLocked(userID int64) domain.Cart {
	c := domain.Cart{ID: userID, UserID: userID, Items: make([]domain.CartItem, 0, len(s.carts[userID]))}
	for _, line := range s.carts[userID] {
		p := *s.products[line.productID]
		c.Items = append(c.Items, domain.CartItem{
			ID:        line.id,
			ProductID: line.productID,
			Product:   &p,
			Quantity:  line.quantity,
			Subtotal:  p.Price.Mul(decimal.NewFromInt(int64(line.quantity))),
		})
	}
	c.Total = decimal.NewNullDecimal(c.SumOfSubtotals())
	return c
}
