package cart

import (
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/apperr"
)

var (
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrItemNotFound      = errors.New("cart item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

func invalid(sentinel error, code, format string, args ...any) *apperr.Error {
	return &apperr.Error{
		Kind:    apperr.KindValidation,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     sentinel,
	}
}
