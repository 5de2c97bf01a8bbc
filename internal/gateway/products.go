package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

type ProductFilter struct {
	Category string
	Search   string
}

func (f ProductFilter) IsZero() bool {
	return f.Category == "" && f.Search == ""
}

func (f ProductFilter) query() url.Values {
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	return q
}

type productsResponse struct {
	Products []domain.Product `json:"products"`
}

// GET /products. Accepts a bare array or {"products": [...]}.
func (c *Client) ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/products", filter.query(), nil, &raw); err != nil {
		return nil, err
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '[' {
		var products []domain.Product
		if err := json.Unmarshal(raw, &products); err != nil {
			return nil, invalidResponse(err)
		}
		return products, nil
	}

	var wrapped productsResponse
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, invalidResponse(err)
	}
	return wrapped.Products, nil
}

// GET /products/{id}
func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func invalidResponse(err error) *apperr.Error {
	return &apperr.Error{
		Kind:    apperr.KindRemote,
		Status:  http.StatusOK,
		Code:    "invalid_response",
		Message: apperr.GenericMessage,
		Err:     err,
	}
}
