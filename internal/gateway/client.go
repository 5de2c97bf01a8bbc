package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxResponseBody = 1 << 20 // 1MB

// TokenSource supplies the current session token; empty means signed out.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

type BreakerSettings struct {
	MaxFailures uint32        // consecutive failures before opening
	OpenTimeout time.Duration // time spent open before a trial request
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithTimeout sets the per-request timeout on a copy of the HTTP client, so a
// client passed to WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		hc := *cl.httpClient
		hc.Timeout = d
		cl.httpClient = &hc
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(cl *Client) { cl.tokens = ts }
}

// WithUnauthorizedHandler registers fn to run when an authenticated request
// comes back 401.
func WithUnauthorizedHandler(fn func()) Option {
	return func(cl *Client) { cl.onUnauthorized = fn }
}

func WithLogger(log *zap.Logger) Option {
	return func(cl *Client) { cl.log = logger.OrNop(log) }
}

func WithBreaker(s BreakerSettings) Option {
	return func(cl *Client) { cl.breakerSettings = s }
}

// Client issues authenticated REST calls and normalizes every failure into
// an *apperr.Error. It never retries.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	tokens          TokenSource
	onUnauthorized  func()
	log             *zap.Logger
	breakerSettings BreakerSettings
	breaker         *gobreaker.CircuitBreaker[*response]
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
		tokens:          TokenFunc(func() string { return "" }),
		log:             zap.NewNop(),
		breakerSettings: BreakerSettings{MaxFailures: 5, OpenTimeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = newBreaker(c.breakerSettings, c.log)
	return c
}

func newBreaker(s BreakerSettings, log *zap.Logger) *gobreaker.CircuitBreaker[*response] {
	maxFailures := s.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	return gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "storefront-api",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

type response struct {
	status int
	body   []byte
}

// errServerFailure marks 5xx responses so the breaker counts them.
var errServerFailure = errors.New("server failure")

// do sends an authenticated request.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.send(ctx, method, path, query, body, out, true)
}

// doPublic sends a request without the session token. A 401 from a public
// endpoint is an ordinary remote error and never signs the user out.
func (c *Client) doPublic(ctx context.Context, method, path string, body, out any) error {
	return c.send(ctx, method, path, nil, body, out, false)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out any, authed bool) error {
	log := logger.WithContext(ctx, c.log).With(zap.String("method", method), zap.String("path", path))

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperr.Validationf("encode request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return apperr.Network(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	var token string
	if authed {
		token = c.tokens.Token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.breaker.Execute(func() (*response, error) {
		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		r := &response{status: httpResp.StatusCode, body: data}
		if r.status >= http.StatusInternalServerError {
			return r, errServerFailure
		}
		return r, nil
	})
	if err != nil && !errors.Is(err, errServerFailure) {
		log.Warn("request failed", zap.String("request_id", requestID), zap.Error(err))
		return apperr.Network(err)
	}

	log.Debug("request completed", zap.String("request_id", requestID), zap.Int("status", resp.status))

	if resp.status == http.StatusUnauthorized && token != "" {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return unauthorized(resp.status, resp.body)
	}
	if resp.status >= http.StatusBadRequest {
		e := decodeError(resp.status, resp.body)
		log.Warn("backend rejected request",
			zap.String("request_id", requestID),
			zap.Int("status", resp.status),
			zap.String("message", e.Message))
		return e
	}

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &apperr.Error{
			Kind:    apperr.KindRemote,
			Status:  resp.status,
			Code:    "invalid_response",
			Message: apperr.GenericMessage,
			Err:     fmt.Errorf("decode %s %s: %w", method, path, err),
		}
	}
	return nil
}
