package domain

import "github.com/shopspring/decimal"

type CartItem struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Product   *Product        `json:"product,omitempty"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// ProductRef returns the referenced product id, falling back to the
// embedded product when the backend omits product_id.
func (i CartItem) ProductRef() int64 {
	if i.ProductID == 0 && i.Product != nil {
		return i.Product.ID
	}
	return i.ProductID
}

// Cart is a snapshot of the server-side cart. Total is whatever the server
// returned; it is null when the response carried no total.
type Cart struct {
	ID     int64               `json:"id,omitempty"`
	UserID int64               `json:"user_id,omitempty"`
	Items  []CartItem          `json:"items"`
	Total  decimal.NullDecimal `json:"total"`
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemCount is the sum of quantities over all items.
func (c Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// SumOfSubtotals adds up the per-item subtotals as returned by the server.
func (c Cart) SumOfSubtotals() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.Subtotal)
	}
	return sum
}

// DisplayTotal is the server total, or the sum of subtotals when absent.
func (c Cart) DisplayTotal() decimal.Decimal {
	if c.Total.Valid {
		return c.Total.Decimal
	}
	return c.SumOfSubtotals()
}

func (c Cart) FindItem(itemID int64) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return CartItem{}, false
}

// QuantityOf returns how many units of productID the cart already holds.
func (c Cart) QuantityOf(productID int64) int {
	n := 0
	for _, item := range c.Items {
		if item.ProductRef() == productID {
			n += item.Quantity
		}
	}
	return n
}

// Clone returns a deep copy that shares no memory with c.
func (c Cart) Clone() Cart {
	out := c
	if c.Items != nil {
		out.Items = make([]CartItem, len(c.Items))
		for i, item := range c.Items {
			out.Items[i] = item
			if item.Product != nil {
				p := *item.Product
				out.Items[i].Product = &p
			}
		}
	}
	return out
}
