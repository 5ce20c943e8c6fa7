package session

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

// ErrAuthExpired means the caller must authenticate again. It is never retried.
var ErrAuthExpired = errors.New("session expired, please login again")

// Guard admits protected actions while the credential is usable and is the
// only component that ends a session outside of an explicit logout.
type Guard struct {
	store  *Store
	now    func() time.Time
	logger *log.Logger

	mu        sync.Mutex
	listeners []func()
	teardowns int
}

type GuardOption func(*Guard)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

func NewGuard(store *Store, logger *log.Logger, opts ...GuardOption) *Guard {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	g := &Guard{store: store, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsValid reports whether c carries an exp claim in the future. Absent,
// malformed or past claims are all simply invalid.
func (g *Guard) IsValid(c Credential) bool {
	exp, err := c.ExpiresAt()
	if err != nil {
		return false
	}
	return g.now().Before(exp)
}

// Authenticated reports whether the stored credential is currently valid.
func (g *Guard) Authenticated() bool {
	c, ok := g.store.Current()
	return ok && g.IsValid(c)
}

// Admit runs action only if the stored credential is valid. Otherwise the
// session is torn down and ErrAuthExpired is returned without running action.
func (g *Guard) Admit(action func() error) error {
	c, ok := g.store.Current()
	if !ok || !g.IsValid(c) {
		g.teardown("credential missing or expired")
		return ErrAuthExpired
	}
	return action()
}

// OnRejected is the single handler for authorization-rejected responses.
// Repeated calls after the first are no-ops.
func (g *Guard) OnRejected() {
	g.teardown("server rejected credential")
}

// OnSignOut registers fn to be called whenever the session ends. It is the
// "go back to login" signal for the UI layer.
func (g *Guard) OnSignOut(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

// Establish installs a freshly issued credential (login or registration success).
func (g *Guard) Establish(c Credential, profile *models.User) error {
	if c.AccessToken == "" {
		return ErrNoCredential
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.set(c, profile)
}

// UpdateProfile caches the profile for the live session.
func (g *Guard) UpdateProfile(u models.User) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.setProfile(u)
}

// Logout ends the session on operator request.
func (g *Guard) Logout() error {
	g.mu.Lock()
	_, err := g.store.clear()
	listeners := append([]func(){}, g.listeners...)
	g.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
	return err
}

// Bootstrap restores a persisted session: an expired credential is torn down,
// a valid one is confirmed by fetching the profile, and a failed fetch also
// ends the session.
func (g *Guard) Bootstrap(ctx context.Context, fetch func(context.Context) (models.User, error)) (bool, error) {
	if err := g.store.Load(); err != nil {
		g.logger.Printf("WARN: discarding unreadable credentials: %v", err)
		if _, err := g.store.clear(); err != nil {
			return false, err
		}
		return false, nil
	}
	c, ok := g.store.Current()
	if !ok {
		g.teardown("no stored credential")
		return false, nil
	}
	if !g.IsValid(c) {
		g.teardown("stored credential expired")
		return false, nil
	}
	if fetch == nil {
		return true, nil
	}
	profile, err := fetch(ctx)
	if err != nil {
		g.logger.Printf("WARN: profile fetch failed: %v", err)
		g.teardown("profile fetch failed")
		return false, nil
	}
	return true, g.UpdateProfile(profile)
}

func (g *Guard) teardown(reason string) {
	g.mu.Lock()
	had, err := g.store.clear()
	if err != nil {
		g.logger.Printf("WARN: clearing credentials: %v", err)
	}
	if !had {
		g.mu.Unlock()
		return
	}
	g.teardowns++
	listeners := append([]func(){}, g.listeners...)
	g.mu.Unlock()

	g.logger.Printf("session ended: %s", reason)
	for _, fn := range listeners {
		fn()
	}
}
