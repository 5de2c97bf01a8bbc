package checkout

import "github.com/shopspring/decimal"

var (
	FreeShippingThreshold = decimal.NewFromInt(50)
	ShippingFee           = decimal.RequireFromString("9.99")
	TaxRate               = decimal.RequireFromString("0.08")
)

// Breakdown is the price summary shown in both the cart and checkout views.
type Breakdown struct {
	Subtotal             decimal.Decimal `json:"subtotal"`
	Shipping             decimal.Decimal `json:"shipping"`
	Tax                  decimal.Decimal `json:"tax"`
	Total                decimal.Decimal `json:"total"`
	AmountToFreeShipping decimal.Decimal `json:"amount_to_free_shipping"`
}

func (b Breakdown) FreeShipping() bool {
	return b.Shipping.IsZero()
}

// Price computes shipping, tax and total for a cart subtotal. Shipping is
// free strictly above the threshold; tax is rounded to cents.
func Price(subtotal decimal.Decimal) Breakdown {
	shipping := ShippingFee
	if subtotal.GreaterThan(FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	toFree := decimal.Zero
	if subtotal.LessThan(FreeShippingThreshold) {
		toFree = FreeShippingThreshold.Sub(subtotal)
	}

	tax := subtotal.Mul(TaxRate).Round(2)
	return Breakdown{
		Subtotal:             subtotal,
		Shipping:             shipping,
		Tax:                  tax,
		Total:                subtotal.Add(shipping).Add(tax),
		AmountToFreeShipping: toFree,
	}
}
