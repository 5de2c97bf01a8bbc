package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/validation"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponseDTO struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type RegisterResponseDTO struct {
	Message string      `json:"message"`
	User    domain.User `json:"user"`
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CreateOrderRequestDTO struct {
	ShippingAddress string `json:"shipping_address"`
}

type UpdateStatusRequestDTO struct {
	Status domain.OrderStatus `json:"status"`
}

type Handler struct {
	store  *MemoryStore
	tokens *TokenIssuer
	log    *zap.Logger
}

func NewHandler(store *MemoryStore, tokens *TokenIssuer, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: store, tokens: tokens, log: log}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	user, err := h.store.Authenticate(req.Email, req.Password)
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
		return
	}
	token, err := h.tokens.Issue(user)
	if err != nil {
		h.internalError(w, r, "issue token", err)
		return
	}

	h.respondJSON(w, http.StatusOK, LoginResponseDTO{Token: token, User: user})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_input", apperr.Message(err))
		return
	}

	user, err := h.store.CreateUser(req, false)
	switch {
	case errors.Is(err, ErrEmailTaken):
		h.respondError(w, http.StatusConflict, "email_taken", "Email already registered")
		return
	case errors.Is(err, ErrUsernameTaken):
		h.respondError(w, http.StatusConflict, "username_taken", "Username already taken")
		return
	case err != nil:
		h.internalError(w, r, "create user", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, RegisterResponseDTO{Message: "User created successfully", User: user})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	user, err := h.store.User(claims.UserID)
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "unauthorized", "user no longer exists")
		return
	}
	h.respondJSON(w, http.StatusOK, user)
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.respondJSON(w, http.StatusOK, h.store.Products(ProductFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.store.Product(id)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, p)
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	h.respondJSON(w, http.StatusOK, h.store.Cart(claims.UserID))
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at least 1")
		return
	}

	c, err := h.store.AddItem(claims.UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, c)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	itemID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity < 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity cannot be negative")
		return
	}

	var (
		c   domain.Cart
		err error
	)
	if req.Quantity == 0 {
		c, err = h.store.RemoveItem(claims.UserID, itemID)
	} else {
		c, err = h.store.UpdateItem(claims.UserID, itemID, req.Quantity)
	}
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, c)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	itemID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.store.RemoveItem(claims.UserID, itemID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, c)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	h.respondJSON(w, http.StatusOK, h.store.ClearCart(claims.UserID))
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req CreateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "shipping_address is required")
		return
	}

	order, err := h.store.CreateOrder(claims.UserID, req.ShippingAddress)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.log.Info("order created",
		zap.String("request_id", getRequestID(r.Context())),
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID))
	h.respondJSON(w, http.StatusCreated, order)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	h.respondJSON(w, http.StatusOK, h.store.Orders(claims.UserID))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.store.Order(claims.UserID, id, claims.IsAdmin)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, order)
}

// UpdateOrderStatus lets admins move any order along its lifecycle. Owners
// may only cancel their own orders.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if !req.Status.IsValid() {
		h.respondError(w, http.StatusBadRequest, "invalid_status", "unknown order status")
		return
	}

	if !claims.IsAdmin {
		if req.Status != domain.OrderStatusCancelled {
			h.respondError(w, http.StatusForbidden, "permission_denied", "admin access required")
			return
		}
		h.cancel(w, r, claims.UserID, id)
		return
	}

	order, err := h.store.UpdateOrderStatus(id, req.Status)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, order)
}

// CancelOrder cancels one of the caller's pending or processing orders.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	h.cancel(w, r, claims.UserID, id)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request, userID, orderID int64) {
	order, err := h.store.CancelOrder(userID, orderID)
	if errors.Is(err, ErrIllegalTransition) {
		h.respondError(w, http.StatusConflict, "illegal_transition", "Only pending or processing orders can be cancelled")
		return
	}
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.log.Info("order cancelled", zap.Int64("order_id", orderID), zap.Int64("user_id", userID))
	h.respondJSON(w, http.StatusOK, order)
}

func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		h.respondError(w, http.StatusNotFound, "not_found", "Product not found")
	case errors.Is(err, ErrItemNotFound):
		h.respondError(w, http.StatusNotFound, "not_found", "Cart item not found")
	case errors.Is(err, ErrOrderNotFound):
		h.respondError(w, http.StatusNotFound, "not_found", "Order not found")
	case errors.Is(err, ErrInsufficientStock):
		h.respondError(w, http.StatusBadRequest, "insufficient_stock", "insufficient stock")
	case errors.Is(err, ErrEmptyCart):
		h.respondError(w, http.StatusBadRequest, "empty_cart", "Cart is empty")
	case errors.Is(err, ErrIllegalTransition):
		h.respondError(w, http.StatusConflict, "illegal_transition", "order cannot move to that status")
	default:
		h.internalError(w, r, "store", err)
	}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.log.Error(op+" failed", zap.String("request_id", getRequestID(r.Context())), zap.Error(err))
	h.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(h.log, w, status, data)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, code, message string) {
	writeError(h.log, w, status, code, message)
}

func writeJSON(log *zap.Logger, w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn("failed to encode response", zap.Error(err))
	}
}

func writeError(log *zap.Logger, w http.ResponseWriter, status int, code, message string) {
	writeJSON(log, w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
