package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// GET /cart
func (c *Client) GetCart(ctx context.Context) (*domain.Cart, error) {
	var cart domain.Cart
	if err := c.do(ctx, http.MethodGet, "/cart", nil, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// POST /cart/items
func (c *Client) AddCartItem(ctx context.Context, productID int64, quantity int) (*domain.Cart, error) {
	var cart domain.Cart
	req := addItemRequest{ProductID: productID, Quantity: quantity}
	if err := c.do(ctx, http.MethodPost, "/cart/items", nil, req, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// PATCH /cart/items/{id}
func (c *Client) UpdateCartItem(ctx context.Context, itemID int64, quantity int) (*domain.Cart, error) {
	var cart domain.Cart
	path := fmt.Sprintf("/cart/items/%d", itemID)
	if err := c.do(ctx, http.MethodPatch, path, nil, updateItemRequest{Quantity: quantity}, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// DELETE /cart/items/{id}
func (c *Client) RemoveCartItem(ctx context.Context, itemID int64) (*domain.Cart, error) {
	var cart domain.Cart
	path := fmt.Sprintf("/cart/items/%d", itemID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// DELETE /cart. A body-less reply is read as an empty cart.
func (c *Client) ClearCart(ctx context.Context) (*domain.Cart, error) {
	var cart domain.Cart
	if err := c.do(ctx, http.MethodDelete, "/cart", nil, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}
