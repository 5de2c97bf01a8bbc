package checkout

import (
	"errors"

	"github.com/fjod/go_cart/storefront/internal/apperr"
)

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrSubmissionInFlight = errors.New("order submission already in progress")
	ErrMissingAddress     = errors.New("shipping address is required")
	ErrInvalidOrderID     = errors.New("order id must be positive")
)

func rejected(sentinel error, code, message string) *apperr.Error {
	return &apperr.Error{Kind: apperr.KindValidation, Code: code, Message: message, Err: sentinel}
}
