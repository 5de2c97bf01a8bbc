package validation

import (
	"errors"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Expiry   string `json:"expiry_date" validate:"omitempty,mmyy"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(signup{Email: "ann@example.com", Password: "secret1", Expiry: "09/27"}))

	tests := []struct {
		name    string
		in      signup
		message string
	}{
		{"missing email", signup{Password: "secret1"}, "email is required"},
		{"bad email", signup{Email: "ann", Password: "secret1"}, "email must be a valid email address"},
		{"short password", signup{Email: "ann@example.com", Password: "abc"}, "password must be at least 6 characters"},
		{"bad expiry", signup{Email: "ann@example.com", Password: "secret1", Expiry: "13/27"}, "expiry_date must be in MM/YY format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrValidation))
			assert.Equal(t, tt.message, apperr.Message(err))
		})
	}
}
