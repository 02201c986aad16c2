package tokenstore

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rashiika/medtrax/pkg/domain"
)

// failingBackend simulates storage that is unavailable (quota, disabled).
type failingBackend struct{}

var errUnavailable = errors.New("storage disabled")

func (failingBackend) Get(context.Context, string) ([]byte, error)      { return nil, errUnavailable }
func (failingBackend) SetMany(context.Context, map[string][]byte) error { return errUnavailable }
func (failingBackend) Delete(context.Context, ...string) error          { return errUnavailable }

func newTestStore() (*Store, *MemoryBackend) {
	b := NewMemoryBackend()
	return New(b, zerolog.Nop()), b
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		user     domain.User
		auth     bool
		complete bool
	}{
		{"doctor complete", domain.User{Email: "doc@medtrax.dev", Role: domain.RoleDoctor, Username: "drhouse"}, true, true},
		{"patient incomplete", domain.User{Email: "pat@medtrax.dev", Role: domain.RolePatient}, true, false},
		{"patient signed out", domain.User{Email: "pat@medtrax.dev", Role: domain.RolePatient}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore()
			u := tt.user
			s.Save(ctx, &u, u.Role, tt.auth, tt.complete)

			snap := s.Load(ctx)
			require.NotNil(t, snap)
			assert.Equal(t, tt.user, *snap.User)
			assert.Equal(t, tt.user.Role, snap.Role)
			assert.Equal(t, tt.auth, snap.IsAuthenticated)
			assert.Equal(t, tt.complete, snap.IsProfileComplete)
		})
	}
}

func TestSaveUnauthenticatedNeverComplete(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore()
	s.Save(ctx, &domain.User{Email: "a@b.com", Role: domain.RolePatient}, domain.RolePatient, false, true)

	raw, err := b.Get(ctx, KeyProfileComplete)
	require.NoError(t, err)
	assert.Equal(t, "false", string(raw))
}

func TestLoadMissingOrMalformed(t *testing.T) {
	ctx := context.Background()
	valid := map[string][]byte{
		KeyUser:          []byte(`{"email":"a@b.com","role":"patient"}`),
		KeyRole:          []byte("patient"),
		KeyAuthenticated: []byte("true"),
	}

	tests := []struct {
		name   string
		mutate func(map[string][]byte)
	}{
		{"empty store", func(m map[string][]byte) { clear(m) }},
		{"missing user", func(m map[string][]byte) { delete(m, KeyUser) }},
		{"missing role", func(m map[string][]byte) { delete(m, KeyRole) }},
		{"missing auth flag", func(m map[string][]byte) { delete(m, KeyAuthenticated) }},
		{"user not json", func(m map[string][]byte) { m[KeyUser] = []byte("{oops") }},
		{"user null", func(m map[string][]byte) { m[KeyUser] = []byte("null") }},
		{"unknown role", func(m map[string][]byte) { m[KeyRole] = []byte("admin") }},
		{"role mismatch", func(m map[string][]byte) { m[KeyRole] = []byte("doctor") }},
		{"auth flag not bool", func(m map[string][]byte) { m[KeyAuthenticated] = []byte("yes please") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, b := newTestStore()
			entries := map[string][]byte{}
			for k, v := range valid {
				entries[k] = v
			}
			tt.mutate(entries)
			require.NoError(t, b.SetMany(ctx, entries))

			assert.NotPanics(t, func() {
				assert.Nil(t, s.Load(ctx))
			})
		})
	}
}

func TestLoadProfileCompleteDefaults(t *testing.T) {
	ctx := context.Background()
	base := map[string][]byte{
		KeyUser:          []byte(`{"email":"a@b.com","role":"doctor"}`),
		KeyRole:          []byte("doctor"),
		KeyAuthenticated: []byte("true"),
	}

	t.Run("absent", func(t *testing.T) {
		s, b := newTestStore()
		require.NoError(t, b.SetMany(ctx, base))
		snap := s.Load(ctx)
		require.NotNil(t, snap)
		assert.False(t, snap.IsProfileComplete)
	})

	t.Run("malformed", func(t *testing.T) {
		s, b := newTestStore()
		require.NoError(t, b.SetMany(ctx, base))
		require.NoError(t, b.SetMany(ctx, map[string][]byte{KeyProfileComplete: []byte("maybe")}))
		snap := s.Load(ctx)
		require.NotNil(t, snap)
		assert.False(t, snap.IsProfileComplete)
	})

	t.Run("complete but signed out", func(t *testing.T) {
		s, b := newTestStore()
		require.NoError(t, b.SetMany(ctx, base))
		require.NoError(t, b.SetMany(ctx, map[string][]byte{
			KeyAuthenticated:   []byte("false"),
			KeyProfileComplete: []byte("true"),
		}))
		snap := s.Load(ctx)
		require.NotNil(t, snap)
		assert.False(t, snap.IsAuthenticated)
		assert.False(t, snap.IsProfileComplete)
	})
}

func TestTokens(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	assert.Empty(t, s.AccessToken(ctx))
	assert.Empty(t, s.RefreshToken(ctx))

	s.SetTokens(ctx, "access-1", "refresh-1")
	assert.Equal(t, "access-1", s.AccessToken(ctx))
	assert.Equal(t, "refresh-1", s.RefreshToken(ctx))

	// No rotation: refresh slot is kept.
	s.SetTokens(ctx, "access-2", "")
	assert.Equal(t, "access-2", s.AccessToken(ctx))
	assert.Equal(t, "refresh-1", s.RefreshToken(ctx))

	s.SetTokens(ctx, "", "refresh-ignored")
	assert.Equal(t, "access-2", s.AccessToken(ctx))
	assert.Equal(t, "refresh-1", s.RefreshToken(ctx))

	s.ClearTokens(ctx)
	assert.Empty(t, s.AccessToken(ctx))
	assert.Empty(t, s.RefreshToken(ctx))
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore()
	u := domain.User{Email: "doc@medtrax.dev", Role: domain.RoleDoctor}
	s.Save(ctx, &u, u.Role, true, true)
	s.SetTokens(ctx, "a", "r")

	s.Clear(ctx)
	afterOne := b.Len()
	s.Clear(ctx)

	assert.Equal(t, 0, afterOne)
	assert.Equal(t, afterOne, b.Len())
	assert.Nil(t, s.Load(ctx))
	assert.Empty(t, s.AccessToken(ctx))
	assert.Empty(t, s.RefreshToken(ctx))
}

func TestUnavailableStorageIsSwallowed(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	s := New(failingBackend{}, zerolog.New(&buf))

	assert.NotPanics(t, func() {
		s.Save(ctx, &domain.User{Email: "a@b.com", Role: domain.RolePatient}, domain.RolePatient, true, false)
		s.SetTokens(ctx, "a", "r")
		s.Clear(ctx)
		assert.Nil(t, s.Load(ctx))
		assert.Empty(t, s.AccessToken(ctx))
	})
	assert.Contains(t, buf.String(), "storage disabled")
}

func TestNewNilBackendUsesMemory(t *testing.T) {
	ctx := context.Background()
	s := New(nil, zerolog.Nop())
	s.SetTokens(ctx, "a", "r")
	assert.Equal(t, "a", s.AccessToken(ctx))
}

// countingBackend records how many writes reach the wrapped backend.
type countingBackend struct {
	*MemoryBackend
	writes int
}

func (c *countingBackend) SetMany(ctx context.Context, entries map[string][]byte) error {
	c.writes++
	return c.MemoryBackend.SetMany(ctx, entries)
}

func (c *countingBackend) Delete(ctx context.Context, keys ...string) error {
	c.writes++
	return c.MemoryBackend.Delete(ctx, keys...)
}

func TestSaveSessionSingleWrite(t *testing.T) {
	ctx := context.Background()
	b := &countingBackend{MemoryBackend: NewMemoryBackend()}
	s := New(b, zerolog.Nop())
	u := domain.User{Email: "pat@medtrax.dev", Role: domain.RolePatient}

	s.SaveSession(ctx, &u, u.Role, false, domain.TokenPair{Access: "a1", Refresh: "r1"})
	assert.Equal(t, 1, b.writes)
	assert.Equal(t, 6, b.Len())

	snap := s.Load(ctx)
	require.NotNil(t, snap)
	assert.True(t, snap.IsAuthenticated)
	assert.False(t, snap.IsProfileComplete)
	assert.Equal(t, "a1", s.AccessToken(ctx))
	assert.Equal(t, "r1", s.RefreshToken(ctx))

	// Empty tokens overwrite stale ones in the same write.
	s.SaveSession(ctx, &u, u.Role, true, domain.TokenPair{Access: "a2"})
	assert.Equal(t, 2, b.writes)
	assert.True(t, s.Load(ctx).IsProfileComplete)
	assert.Equal(t, "a2", s.AccessToken(ctx))
	assert.Empty(t, s.RefreshToken(ctx))
}
