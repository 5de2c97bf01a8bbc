package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type loginResponse struct {
	Token       string      `json:"token"`
	AccessToken string      `json:"access_token"`
	User        domain.User `json:"user"`
}

// POST /login
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	var resp loginResponse
	if err := c.doPublic(ctx, http.MethodPost, "/login", creds, &resp); err != nil {
		return nil, err
	}

	token := resp.Token
	if token == "" {
		token = resp.AccessToken
	}
	if token == "" {
		return nil, invalidResponse(errors.New("login response carried no token"))
	}
	return &domain.Session{Token: token, User: resp.User}, nil
}

// POST /register. The backend may answer with the user or {"user": ...}.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	var raw json.RawMessage
	if err := c.doPublic(ctx, http.MethodPost, "/register", reg, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return &domain.User{Username: reg.Username, Email: reg.Email}, nil
	}

	var wrapped struct {
		User *domain.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, invalidResponse(err)
	}
	if wrapped.User != nil {
		return wrapped.User, nil
	}

	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, invalidResponse(err)
	}
	return &user, nil
}

// GET /profile
func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodGet, "/profile", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
