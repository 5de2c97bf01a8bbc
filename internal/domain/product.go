package domain

import "github.com/shopspring/decimal"

// Product is read-only on the client; only admin tooling mutates it.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
}

// InStock reports whether quantity units can be put in a cart.
func (p Product) InStock(quantity int) bool {
	return quantity <= p.Stock
}
