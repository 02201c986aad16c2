package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rashiika/medtrax/internal/tokenstore"
	"github.com/rashiika/medtrax/pkg/client"
	"github.com/rashiika/medtrax/pkg/domain"
)

func newTestMachine(t *testing.T) (*Machine, *tokenstore.Store) {
	t.Helper()
	store := tokenstore.New(tokenstore.NewMemoryBackend(), zerolog.Nop())
	return NewMachine(store, zerolog.Nop()), store
}

func TestNextTable(t *testing.T) {
	tests := []struct {
		from    State
		ev      Event
		want    State
		wantErr bool
	}{
		{Hydrating, EventHydrateComplete, AuthenticatedComplete, false},
		{Hydrating, EventHydrateIncomplete, AuthenticatedIncomplete, false},
		{Hydrating, EventHydrateEmpty, Unauthenticated, false},
		{Hydrating, EventLoginComplete, Hydrating, true},
		{Unauthenticated, EventLoginComplete, AuthenticatedComplete, false},
		{Unauthenticated, EventLoginIncomplete, AuthenticatedIncomplete, false},
		{Unauthenticated, EventLogout, Unauthenticated, true},
		{Unauthenticated, EventProfileCompleted, Unauthenticated, true},
		{Unauthenticated, EventHydrateComplete, Unauthenticated, true},
		{AuthenticatedIncomplete, EventProfileCompleted, AuthenticatedComplete, false},
		{AuthenticatedIncomplete, EventLogout, Unauthenticated, false},
		{AuthenticatedIncomplete, EventSessionExpired, Unauthenticated, false},
		{AuthenticatedComplete, EventLogout, Unauthenticated, false},
		{AuthenticatedComplete, EventSessionExpired, Unauthenticated, false},
		{AuthenticatedComplete, EventProfileCompleted, AuthenticatedComplete, true},
		{AuthenticatedComplete, EventLoginComplete, AuthenticatedComplete, true},
		{AuthenticatedComplete, EventSelectRole, AuthenticatedComplete, true},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.ev.String(), func(t *testing.T) {
			got, err := Next(tt.from, tt.ev)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewMachineStartsHydrating(t *testing.T) {
	m, _ := newTestMachine(t)
	assert.Equal(t, Hydrating, m.State())
	assert.True(t, m.Session().IsHydrating())
}

func TestHydrateValidSnapshots(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		user      domain.User
		auth      bool
		complete  bool
		access    string
		wantState State
	}{
		{"complete doctor", domain.User{Email: "doc@medtrax.dev", Role: domain.RoleDoctor, Username: "drmeera"}, true, true, "acc", AuthenticatedComplete},
		{"incomplete patient", domain.User{Email: "pat@medtrax.dev", Role: domain.RolePatient}, true, false, "acc", AuthenticatedIncomplete},
		{"incomplete without token", domain.User{Email: "pat@medtrax.dev", Role: domain.RolePatient}, true, false, "", AuthenticatedIncomplete},
		{"signed out", domain.User{Email: "pat@medtrax.dev", Role: domain.RolePatient}, false, false, "", Unauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store := newTestMachine(t)
			u := tt.user
			store.Save(ctx, &u, u.Role, tt.auth, tt.complete)
			store.SetTokens(ctx, tt.access, "ref")

			st, err := m.Hydrate(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, st)

			snap := m.Snapshot()
			require.NotNil(t, snap.User)
			assert.Equal(t, tt.user, *snap.User)
			assert.Equal(t, tt.user.Role, snap.Role)
			assert.Equal(t, tt.auth, snap.IsAuthenticated)
			assert.Equal(t, tt.complete, snap.IsProfileComplete)
			assert.False(t, m.Session().IsHydrating())
		})
	}
}

func TestHydrateMissingOrMalformed(t *testing.T) {
	ctx := context.Background()
	backend := tokenstore.NewMemoryBackend()
	require.NoError(t, backend.SetMany(ctx, map[string][]byte{
		tokenstore.KeyUser:          []byte("{broken"),
		tokenstore.KeyRole:          []byte("doctor"),
		tokenstore.KeyAuthenticated: []byte("true"),
	}))

	for name, b := range map[string]tokenstore.Backend{"empty": tokenstore.NewMemoryBackend(), "malformed": backend} {
		t.Run(name, func(t *testing.T) {
			m := NewMachine(tokenstore.New(b, zerolog.Nop()), zerolog.Nop())
			var st State
			var err error
			assert.NotPanics(t, func() { st, err = m.Hydrate(ctx) })
			require.NoError(t, err)
			assert.Equal(t, Unauthenticated, st)
			sess := m.Session()
			assert.Nil(t, sess.User)
			assert.Empty(t, sess.Role)
			assert.False(t, sess.IsHydrating())
		})
	}
}

func TestHydrateCompleteWithoutTokenIsDiscarded(t *testing.T) {
	ctx := context.Background()
	m, store := newTestMachine(t)
	u := domain.User{Email: "doc@medtrax.dev", Role: domain.RoleDoctor}
	store.Save(ctx, &u, u.Role, true, true)

	st, err := m.Hydrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, st)
	assert.Nil(t, store.Load(ctx))
}

func TestHydrateOnce(t *testing.T) {
	ctx := context.Background()
	m, store := newTestMachine(t)

	st, err := m.Hydrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, st)

	u := domain.User{Email: "doc@medtrax.dev", Role: domain.RoleDoctor}
	store.Save(ctx, &u, u.Role, true, true)
	store.SetTokens(ctx, "acc", "ref")

	st, err = m.Hydrate(ctx)
	assert.ErrorIs(t, err, ErrAlreadyHydrated)
	assert.Equal(t, Unauthenticated, st)
}

func hydrated(t *testing.T) (*Machine, *tokenstore.Store) {
	t.Helper()
	m, store := newTestMachine(t)
	_, err := m.Hydrate(context.Background())
	require.NoError(t, err)
	return m, store
}

func TestApplyLogin(t *testing.T) {
	ctx := context.Background()
	doctor := domain.User{Email: "doc@medtrax.dev", Role: domain.RoleDoctor}

	t.Run("complete", func(t *testing.T) {
		m, store := hydrated(t)
		err := m.ApplyLogin(ctx, &client.LoginResult{Outcome: client.LoginComplete, User: doctor, Tokens: domain.TokenPair{Access: "a", Refresh: "r"}})
		require.NoError(t, err)
		assert.Equal(t, AuthenticatedComplete, m.State())

		snap := store.Load(ctx)
		require.NotNil(t, snap)
		assert.Equal(t, doctor, *snap.User)
		assert.True(t, snap.IsProfileComplete)
		assert.Equal(t, "a", store.AccessToken(ctx))
		assert.Equal(t, "r", store.RefreshToken(ctx))
	})

	t.Run("complete without token is rejected", func(t *testing.T) {
		m, store := hydrated(t)
		err := m.ApplyLogin(ctx, &client.LoginResult{Outcome: client.LoginComplete, User: doctor})
		assert.ErrorIs(t, err, ErrNoAccessToken)
		assert.Equal(t, Unauthenticated, m.State())
		assert.Nil(t, store.Load(ctx))
	})

	t.Run("incomplete replaces stale refresh token", func(t *testing.T) {
		m, store := hydrated(t)
		store.SetTokens(ctx, "old", "old-refresh")
		err := m.ApplyLogin(ctx, &client.LoginResult{Outcome: client.LoginIncomplete, User: doctor, Tokens: domain.TokenPair{Access: "a"}})
		require.NoError(t, err)
		assert.Equal(t, AuthenticatedIncomplete, m.State())
		assert.Equal(t, "a", store.AccessToken(ctx))
		assert.Empty(t, store.RefreshToken(ctx))
	})

	t.Run("not accepted while hydrating", func(t *testing.T) {
		m, _ := newTestMachine(t)
		err := m.ApplyLogin(ctx, &client.LoginResult{Outcome: client.LoginComplete, User: doctor, Tokens: domain.TokenPair{Access: "a"}})
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, Hydrating, m.State())
	})
}

func loggedIn(t *testing.T, outcome client.LoginOutcome, access string) (*Machine, *tokenstore.Store) {
	t.Helper()
	m, store := hydrated(t)
	u := domain.User{Email: "pat@medtrax.dev", Role: domain.RolePatient}
	require.NoError(t, m.ApplyLogin(context.Background(), &client.LoginResult{
		Outcome: outcome,
		User:    u,
		Tokens:  domain.TokenPair{Access: access, Refresh: "r"},
	}))
	return m, store
}

func TestApplyProfileCompleted(t *testing.T) {
	ctx := context.Background()

	t.Run("new tokens", func(t *testing.T) {
		m, store := loggedIn(t, client.LoginIncomplete, "a")
		require.NoError(t, m.ApplyProfileCompleted(ctx, domain.TokenPair{Access: "a2", Refresh: "r2"}))
		assert.Equal(t, AuthenticatedComplete, m.State())
		assert.True(t, store.Load(ctx).IsProfileComplete)
		assert.Equal(t, "a2", store.AccessToken(ctx))
		assert.Equal(t, "r2", store.RefreshToken(ctx))
	})

	t.Run("keeps existing token", func(t *testing.T) {
		m, store := loggedIn(t, client.LoginIncomplete, "a")
		require.NoError(t, m.ApplyProfileCompleted(ctx, domain.TokenPair{}))
		assert.Equal(t, AuthenticatedComplete, m.State())
		assert.Equal(t, "a", store.AccessToken(ctx))
	})

	t.Run("no token at all", func(t *testing.T) {
		m, store := loggedIn(t, client.LoginIncomplete, "")
		var changes []Change
		m.OnChange(func(c Change) { changes = append(changes, c) })

		err := m.ApplyProfileCompleted(ctx, domain.TokenPair{})
		assert.ErrorIs(t, err, ErrReauthenticate)
		assert.Equal(t, Unauthenticated, m.State())
		assert.Nil(t, store.Load(ctx))
		require.Len(t, changes, 1)
		assert.Equal(t, domain.RouteLogin, changes[0].Redirect)
	})

	t.Run("only from incomplete", func(t *testing.T) {
		m, _ := loggedIn(t, client.LoginComplete, "a")
		err := m.ApplyProfileCompleted(ctx, domain.TokenPair{Access: "x"})
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, AuthenticatedComplete, m.State())
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	m, store := loggedIn(t, client.LoginComplete, "a")

	require.NoError(t, m.Logout(ctx))
	assert.Equal(t, Unauthenticated, m.State())
	assert.Nil(t, store.Load(ctx))
	assert.Empty(t, store.AccessToken(ctx))
	assert.Empty(t, store.RefreshToken(ctx))
	assert.Nil(t, m.Session().User)

	assert.ErrorIs(t, m.Logout(ctx), ErrInvalidTransition)
}

func TestForceLogout(t *testing.T) {
	ctx := context.Background()
	m, store := loggedIn(t, client.LoginComplete, "a")
	var changes []Change
	m.OnChange(func(c Change) { changes = append(changes, c) })

	m.ForceLogout(ctx, client.ErrNoRefreshToken)
	assert.Equal(t, Unauthenticated, m.State())
	assert.Nil(t, store.Load(ctx))
	assert.Empty(t, m.AccessToken(ctx))
	require.Len(t, changes, 1)
	assert.Equal(t, EventSessionExpired, changes[0].Event)
	assert.Equal(t, domain.RouteLogin, changes[0].Redirect)
	assert.ErrorIs(t, changes[0].Reason, client.ErrNoRefreshToken)

	// A second force logout only clears storage.
	m.ForceLogout(ctx, nil)
	assert.Len(t, changes, 1)
}

func TestTokenSource(t *testing.T) {
	ctx := context.Background()
	m, store := loggedIn(t, client.LoginComplete, "a")

	assert.True(t, m.SetTokens(ctx, "a2", ""))
	assert.Equal(t, "a2", m.AccessToken(ctx))
	assert.Equal(t, "r", m.RefreshToken(ctx))
	assert.Equal(t, "a2", store.AccessToken(ctx))
	assert.Equal(t, "r", store.RefreshToken(ctx))

	assert.False(t, m.SetTokens(ctx, "", "ignored"))
	assert.Equal(t, "a2", m.AccessToken(ctx))

	// Dropping the access token of a complete session ends it.
	m.ClearTokens(ctx)
	assert.Equal(t, Unauthenticated, m.State())
	assert.Nil(t, store.Load(ctx))

	assert.False(t, m.SetTokens(ctx, "late", "late-refresh"))
	assert.Empty(t, m.AccessToken(ctx))
	assert.Empty(t, store.AccessToken(ctx))
	assert.Empty(t, store.RefreshToken(ctx))
}

func TestLogoutDuringRefreshDropsNewTokens(t *testing.T) {
	ctx := context.Background()
	m, store := loggedIn(t, client.LoginComplete, "stale")

	entered := make(chan struct{})
	release := make(chan struct{})
	var resentFresh atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token/refresh/" {
			close(entered)
			<-release
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access":"fresh","refresh":"r2"}`)
			return
		}
		if r.Header.Get("Authorization") == "Bearer fresh" {
			resentFresh.Store(true)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	api := client.New(srv.URL, m, client.WithSessionExpiredHandler(m.ForceLogout))
	errCh := make(chan error, 1)
	go func() {
		errCh <- api.Do(ctx, http.MethodGet, "/appointments/", nil, nil)
	}()

	<-entered
	require.NoError(t, m.Logout(ctx))
	close(release)
	err := <-errCh

	assert.True(t, client.IsStatus(err, http.StatusUnauthorized))
	assert.False(t, resentFresh.Load())
	assert.Equal(t, Unauthenticated, m.State())
	assert.Empty(t, m.AccessToken(ctx))
	assert.Empty(t, m.RefreshToken(ctx))
	assert.Nil(t, store.Load(ctx))
	assert.Empty(t, store.AccessToken(ctx))
	assert.Empty(t, store.RefreshToken(ctx))
}

func TestPersistOverwritesStaleTokens(t *testing.T) {
	ctx := context.Background()
	m, store := loggedIn(t, client.LoginIncomplete, "a")
	require.Equal(t, "r", store.RefreshToken(ctx))

	u := domain.User{Email: "pat@medtrax.dev", Role: domain.RolePatient}
	require.NoError(t, m.ApplyLogin(ctx, &client.LoginResult{Outcome: client.LoginIncomplete, User: u}))

	snap := store.Load(ctx)
	require.NotNil(t, snap)
	assert.True(t, snap.IsAuthenticated)
	assert.Empty(t, store.AccessToken(ctx))
	assert.Empty(t, store.RefreshToken(ctx))
}

func TestSelectRole(t *testing.T) {
	m, _ := hydrated(t)
	require.NoError(t, m.SelectRole(domain.RoleDoctor))
	assert.Equal(t, domain.RoleDoctor, m.Session().Role)
	assert.Equal(t, Unauthenticated, m.State())
	assert.Error(t, m.SelectRole(domain.Role("admin")))

	m2, _ := loggedIn(t, client.LoginComplete, "a")
	assert.ErrorIs(t, m2.SelectRole(domain.RoleDoctor), ErrInvalidTransition)
}

func TestSnapshotInvariant(t *testing.T) {
	for _, st := range []State{Hydrating, Unauthenticated, AuthenticatedIncomplete, AuthenticatedComplete} {
		snap := Session{State: st}.Snapshot()
		if !snap.IsAuthenticated {
			assert.False(t, snap.IsProfileComplete, st.String())
		}
	}
}
