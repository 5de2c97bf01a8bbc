package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		shipping string
		tax      string
		total    string
		toFree   string
	}{
		{name: "below threshold", subtotal: "40.00", shipping: "9.99", tax: "3.20", total: "53.19", toFree: "10.00"},
		{name: "above threshold", subtotal: "60.00", shipping: "0.00", tax: "4.80", total: "64.80", toFree: "0.00"},
		{name: "exactly threshold pays shipping", subtotal: "50.00", shipping: "9.99", tax: "4.00", total: "63.99", toFree: "0.00"},
		{name: "just above threshold", subtotal: "50.01", shipping: "0.00", tax: "4.00", total: "54.01", toFree: "0.00"},
		{name: "empty", subtotal: "0", shipping: "9.99", tax: "0.00", total: "9.99", toFree: "50.00"},
		{name: "tax rounds to cents", subtotal: "19.99", shipping: "9.99", tax: "1.60", total: "31.58", toFree: "30.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Price(decimal.RequireFromString(tt.subtotal))

			assert.Equal(t, tt.shipping, b.Shipping.StringFixed(2))
			assert.Equal(t, tt.tax, b.Tax.StringFixed(2))
			assert.Equal(t, tt.total, b.Total.StringFixed(2))
			assert.Equal(t, tt.toFree, b.AmountToFreeShipping.StringFixed(2))
		})
	}
}

func TestPrice_Idempotent(t *testing.T) {
	s := decimal.RequireFromString("37.45")

	first := Price(s)
	second := Price(s)

	assert.True(t, first.Total.Equal(second.Total))
	assert.True(t, first.Tax.Equal(second.Tax))
	assert.True(t, first.Shipping.Equal(second.Shipping))
}

func TestBreakdown_FreeShipping(t *testing.T) {
	assert.True(t, Price(decimal.NewFromInt(75)).FreeShipping())
	assert.False(t, Price(decimal.NewFromInt(25)).FreeShipping())
}
