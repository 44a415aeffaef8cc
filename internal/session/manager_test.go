package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/persona/internal/pkg/errors"
)

type fakeAuth struct {
	logins int
	actAs  int
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (string, error) {
	f.logins++
	return fmt.Sprintf("admin-token-%d", f.logins), nil
}

func (f *fakeAuth) ActAs(ctx context.Context, adminToken, userID string) (string, error) {
	f.actAs++
	return fmt.Sprintf("user-token-%s-%d", userID, f.actAs), nil
}

func TestAdminDoRetriesOnceAfterRelogin(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(auth, "admin@example.com", "secret")
	require.NoError(t, m.Login(context.Background()))

	var calls []string
	err := m.Admin().Do(context.Background(), func(ctx context.Context, token string) error {
		calls = append(calls, token)
		if len(calls) == 1 {
			return fmt.Errorf("boom: %w", appErr.ErrUnauthorized)
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, calls, 2)
	require.Equal(t, 2, auth.logins, "exactly one relogin beyond the initial login")
	require.NotEqual(t, calls[0], calls[1], "retry must see the renewed token")
}

func TestAdminDoSecondUnauthorizedIsSessionExpired(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(auth, "admin@example.com", "secret")
	require.NoError(t, m.Login(context.Background()))

	attempts := 0
	err := m.Admin().Do(context.Background(), func(ctx context.Context, token string) error {
		attempts++
		return appErr.ErrUnauthorized
	})
	require.ErrorIs(t, err, appErr.ErrSessionExpired)
	require.Equal(t, 2, attempts, "never retried a second time")
}

func TestAdminDoDoesNotRetryGenericFailures(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(auth, "admin@example.com", "secret")
	require.NoError(t, m.Login(context.Background()))

	attempts := 0
	err := m.Admin().Do(context.Background(), func(ctx context.Context, token string) error {
		attempts++
		return fmt.Errorf("server exploded")
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, appErr.ErrSessionExpired)
	require.Equal(t, 1, attempts)
	require.Equal(t, 1, auth.logins)
}

func TestAdminDoLogsInLazily(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(auth, "admin@example.com", "secret")

	err := m.Admin().Do(context.Background(), func(ctx context.Context, token string) error {
		require.NotEmpty(t, token)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, auth.logins)
}

func TestImpersonatedDoRenewsThroughAdmin(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(auth, "admin@example.com", "secret")
	require.NoError(t, m.Login(context.Background()))

	b, err := m.Impersonate(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", b.UserID())
	require.Equal(t, 1, auth.actAs)

	var tokens []string
	err = b.Do(context.Background(), func(ctx context.Context, token string) error {
		tokens = append(tokens, token)
		if len(tokens) == 1 {
			return appErr.ErrUnauthorized
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	require.Equal(t, 2, auth.actAs, "renewal re-ran act-as exactly once")
	require.NotEqual(t, tokens[0], tokens[1])
}

func TestConcurrentRenewLogsInOnce(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(auth, "admin@example.com", "secret")
	require.NoError(t, m.Login(context.Background()))

	stale := m.current()
	require.NoError(t, m.renew(context.Background(), stale))
	// second renewal with the same stale token sees the replacement and
	// does not log in again
	require.NoError(t, m.renew(context.Background(), stale))
	require.Equal(t, 2, auth.logins)
}
