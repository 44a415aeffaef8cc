package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/persona/internal/pkg/errors"
)

// AuthAPI is the slice of the platform client the session layer needs.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (string, error)
	ActAs(ctx context.Context, adminToken, userID string) (string, error)
}

// Manager owns the administrative session. The token is replaced, never
// mutated, under the lock; in-flight work keeps whatever token it read and
// recovers through the Bound retry path if that token has expired.
type Manager struct {
	auth     AuthAPI
	email    string
	password string

	mu    sync.RWMutex
	token string
}

func NewManager(auth AuthAPI, email, password string) *Manager {
	return &Manager{auth: auth, email: email, password: password}
}

// Login establishes a fresh administrative session.
func (m *Manager) Login(ctx context.Context) error {
	token, err := m.auth.Login(ctx, m.email, m.password)
	if err != nil {
		return fmt.Errorf("admin login: %w", err)
	}
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	logutil.GetLogger(ctx).Info("admin session established")
	return nil
}

func (m *Manager) current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// renew re-logs-in only if the stale token is still the current one;
// a concurrent unit of work may already have replaced it.
func (m *Manager) renew(ctx context.Context, stale string) error {
	m.mu.RLock()
	fresh := m.token != stale
	m.mu.RUnlock()
	if fresh {
		return nil
	}
	return m.Login(ctx)
}

// Admin returns a call handle bound to the administrative identity.
func (m *Manager) Admin() *Bound {
	return &Bound{mgr: m}
}

// Impersonate obtains a per-user identity by presenting the administrative
// session to the act-as endpoint.
func (m *Manager) Impersonate(ctx context.Context, userID string) (*Bound, error) {
	b := &Bound{mgr: m, userID: userID}
	if err := b.refresh(ctx, ""); err != nil {
		return nil, err
	}
	return b, nil
}

// Bound is an authenticated call handle: the administrative identity when
// userID is empty, an impersonated end-user identity otherwise. A user
// Bound is owned by a single unit of work and is not safe for concurrent
// use; the admin Bound reads the shared token and is.
type Bound struct {
	mgr    *Manager
	userID string
	token  string
}

func (b *Bound) UserID() string {
	return b.userID
}

func (b *Bound) current(ctx context.Context) (string, error) {
	if b.userID != "" {
		return b.token, nil
	}
	token := b.mgr.current()
	if token == "" {
		if err := b.mgr.Login(ctx); err != nil {
			return "", err
		}
		token = b.mgr.current()
	}
	return token, nil
}

func (b *Bound) refresh(ctx context.Context, stale string) error {
	if b.userID == "" {
		return b.mgr.renew(ctx, stale)
	}
	// re-impersonation runs through the admin handle, so an expired admin
	// session heals on the way
	return b.mgr.Admin().Do(ctx, func(ctx context.Context, adminToken string) error {
		token, err := b.mgr.auth.ActAs(ctx, adminToken, b.userID)
		if err != nil {
			return err
		}
		b.token = token
		return nil
	})
}

// Do executes fn with the current token. On an unauthorized result the
// session is re-established exactly once and fn retried exactly once; a
// second unauthorized result surfaces as ErrSessionExpired and is never
// retried again. Other failures pass through untouched.
func (b *Bound) Do(ctx context.Context, fn func(ctx context.Context, token string) error) error {
	token, err := b.current(ctx)
	if err != nil {
		return err
	}
	err = fn(ctx, token)
	if !errors.Is(err, appErr.ErrUnauthorized) {
		return err
	}
	logutil.GetLogger(ctx).Info("session rejected, renewing", zap.String("user_id", b.userID))
	if rerr := b.refresh(ctx, token); rerr != nil {
		return fmt.Errorf("renew session: %v: %w", rerr, appErr.ErrSessionExpired)
	}
	token, err = b.current(ctx)
	if err != nil {
		return err
	}
	err = fn(ctx, token)
	if errors.Is(err, appErr.ErrUnauthorized) {
		return fmt.Errorf("still unauthorized after relogin: %w", appErr.ErrSessionExpired)
	}
	return err
}
