package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/validation"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// API is the slice of the gateway the gate needs.
type API interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	Register(ctx context.Context, reg domain.Registration) (*domain.User, error)
	Profile(ctx context.Context) (*domain.User, error)
}

type LogoutReason string

const (
	LogoutRequested LogoutReason = "requested"
	LogoutExpired   LogoutReason = "expired"
	LogoutRejected  LogoutReason = "rejected" // backend answered 401
)

// Gate owns the session. Absence of a session disables every cart and
// order operation.
type Gate struct {
	api   API
	store SessionStore
	log   *zap.Logger
	now   func() time.Time

	mu       sync.RWMutex
	session  *domain.Session
	onLogin  []func(ctx context.Context)
	onLogout []func(reason LogoutReason)
}

func NewGate(api API, store SessionStore, log *zap.Logger) *Gate {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Gate{
		api:   api,
		store: store,
		log:   logger.OrNop(log).Named("auth"),
		now:   time.Now,
	}
}

// OnLogin registers fn to run after every successful login or restore.
func (g *Gate) OnLogin(fn func(ctx context.Context)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onLogin = append(g.onLogin, fn)
}

// OnLogout registers fn to run after the session is cleared.
func (g *Gate) OnLogout(fn func(reason LogoutReason)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onLogout = append(g.onLogout, fn)
}

func (g *Gate) Login(ctx context.Context, creds domain.Credentials) error {
	if err := validation.Struct(creds); err != nil {
		return err
	}

	session, err := g.api.Login(ctx, creds)
	if err != nil {
		logger.WithContext(ctx, g.log).Info("login failed", zap.String("email", creds.Email), zap.Error(err))
		return err
	}

	g.mu.Lock()
	g.session = session
	g.mu.Unlock()

	if err := g.store.Save(ctx, *session); err != nil {
		g.log.Warn("failed to persist session", zap.Error(err))
	}
	logger.WithContext(ctx, g.log).Info("signed in", zap.Int64("user_id", session.User.ID))

	g.notifyLogin(ctx)
	return nil
}

// Register creates an account. It does not sign the user in.
func (g *Gate) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	if err := validation.Struct(reg); err != nil {
		return nil, err
	}
	return g.api.Register(ctx, reg)
}

// Logout clears the session synchronously; no network call is made.
func (g *Gate) Logout() {
	g.clear(LogoutRequested)
}

// ForceLogout is called when the backend rejects the session.
func (g *Gate) ForceLogout() {
	g.clear(LogoutRejected)
}

func (g *Gate) clear(reason LogoutReason) {
	g.mu.Lock()
	hadSession := g.session != nil
	g.session = nil
	listeners := append([]func(LogoutReason){}, g.onLogout...)
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := g.store.Delete(ctx); err != nil {
		g.log.Warn("failed to delete persisted session", zap.Error(err))
	}

	if !hadSession {
		return
	}
	g.log.Info("signed out", zap.String("reason", string(reason)))
	for _, fn := range listeners {
		fn(reason)
	}
}

// Restore loads a persisted session. Expired tokens are discarded.
func (g *Gate) Restore(ctx context.Context) (bool, error) {
	session, err := g.store.Load(ctx)
	if errors.Is(err, ErrNoSession) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !session.Valid() || g.expired(session.Token) {
		if err := g.store.Delete(ctx); err != nil {
			g.log.Warn("failed to delete stale session", zap.Error(err))
		}
		return false, nil
	}

	g.mu.Lock()
	g.session = session
	g.mu.Unlock()

	g.notifyLogin(ctx)
	return true, nil
}

// Token implements gateway.TokenSource.
func (g *Gate) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil {
		return ""
	}
	return g.session.Token
}

func (g *Gate) IsAuthenticated() bool {
	return g.RequireSession() == nil
}

func (g *Gate) Session() (domain.Session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil {
		return domain.Session{}, false
	}
	return *g.session, true
}

// RequireSession returns an unauthenticated error when there is no usable
// session. An expired JWT forces a logout first.
func (g *Gate) RequireSession() error {
	token := g.Token()
	if token == "" {
		return apperr.Unauthenticated()
	}
	if g.expired(token) {
		g.clear(LogoutExpired)
		return apperr.Unauthenticated()
	}
	return nil
}

// Profile fetches the signed-in user and refreshes the cached identity.
func (g *Gate) Profile(ctx context.Context) (*domain.User, error) {
	if err := g.RequireSession(); err != nil {
		return nil, err
	}
	user, err := g.api.Profile(ctx)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	if g.session != nil {
		g.session.User = *user
	}
	g.mu.Unlock()
	return user, nil
}

func (g *Gate) notifyLogin(ctx context.Context) {
	g.mu.RLock()
	listeners := append([]func(context.Context){}, g.onLogin...)
	g.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx)
	}
}

// expired reports whether token is a JWT whose exp claim has passed.
// Opaque tokens never expire client-side.
func (g *Gate) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	return !claims.VerifyExpiresAt(g.now().Unix(), false)
}
