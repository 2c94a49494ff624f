package core

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"roster/internal/infra/persistence/memory"
	"roster/pkg/domain"
)

// SessionState is the gate's position in the Anonymous/Authenticated machine.
type SessionState string

const (
	SessionAnonymous     SessionState = "anonymous"
	SessionAuthenticated SessionState = "authenticated"
)

// SessionGate tracks whether a user is logged in and persists the session to
// the user entry so it survives restarts. There is a single session, no
// expiry and no token.
type SessionGate struct {
	mu      sync.RWMutex
	storage DurableStorage
	logger  *zap.Logger
	user    *User
}

// NewSessionGate returns an Anonymous gate over storage. A nil storage keeps
// the session in memory only.
func NewSessionGate(storage DurableStorage, logger *zap.Logger) *SessionGate {
	if storage == nil {
		storage = memory.NewStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionGate{storage: storage, logger: logger.Named("session")}
}

// Restore loads a persisted session. A corrupt payload is removed and the
// gate stays Anonymous. It reports whether the gate is Authenticated.
func (g *SessionGate) Restore(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	payload, ok, err := g.storage.GetItem(ctx, domain.KeyUser)
	if err != nil {
		g.logger.Warn("read session failed", zap.Error(err))
		return false
	}
	if !ok || payload == "" {
		return false
	}
	u, err := DecodeUser(payload)
	if err != nil {
		g.logger.Warn("corrupt session payload, discarding", zap.Error(err))
		if rerr := g.storage.RemoveItem(ctx, domain.KeyUser); rerr != nil {
			g.logger.Warn("remove corrupt session failed", zap.Error(rerr))
		}
		return false
	}
	g.user = &u
	return true
}

// Login authenticates username unconditionally and persists the session.
// Credentials are never checked; a persistence failure is logged and the
// in-memory session is kept.
func (g *SessionGate) Login(ctx context.Context, username string) (User, error) {
	if username == "" {
		return User{}, ErrEmptyCredentials
	}
	u := User{Username: username, Name: domain.DefaultDisplayName}
	payload, err := EncodeUser(u)
	if err != nil {
		return User{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.user = &u
	if err := g.storage.SetItem(ctx, domain.KeyUser, payload); err != nil {
		g.logger.Warn("persist session failed", zap.String("username", username), zap.Error(err))
	}
	g.logger.Info("logged in", zap.String("username", username))
	return u, nil
}

// Logout clears the session and its persisted copy. It is safe to call while
// Anonymous.
func (g *SessionGate) Logout(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.user = nil
	if err := g.storage.RemoveItem(ctx, domain.KeyUser); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Current returns the session and whether the gate is Authenticated.
func (g *SessionGate) Current() (User, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.user == nil {
		return User{}, false
	}
	return *g.user, true
}

// IsAuthenticated reports whether a session exists.
func (g *SessionGate) IsAuthenticated() bool {
	_, ok := g.Current()
	return ok
}

// State returns the current state.
func (g *SessionGate) State() SessionState {
	if g.IsAuthenticated() {
		return SessionAuthenticated
	}
	return SessionAnonymous
}
