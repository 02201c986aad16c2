package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rashiika/medtrax/pkg/domain"
)

func TestFileBackendGetSetDelete(t *testing.T) {
	ctx := context.Background()
	b := NewFileBackend(filepath.Join(t.TempDir(), "nested"))

	_, err := b.Get(ctx, KeyRole)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.SetMany(ctx, map[string][]byte{KeyRole: []byte("doctor"), KeyAccessToken: []byte("tok")}))
	v, err := b.Get(ctx, KeyRole)
	require.NoError(t, err)
	assert.Equal(t, "doctor", string(v))

	require.NoError(t, b.Delete(ctx, KeyRole))
	_, err = b.Get(ctx, KeyRole)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Delete(ctx, KeyAccessToken))
	_, err = os.Stat(b.Path())
	assert.True(t, os.IsNotExist(err), "file should be removed once empty")

	// Deleting from a missing file is a no-op.
	require.NoError(t, b.Delete(ctx, AllKeys...))
}

func TestFileBackendPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), ".medtrax")
	b := NewFileBackend(dir)
	require.NoError(t, b.SetMany(ctx, map[string][]byte{KeyAccessToken: []byte("tok")}))

	fi, err := os.Stat(b.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())

	di, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), di.Mode().Perm())
}

func TestFileBackendCorruptDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := NewFileBackend(dir)
	require.NoError(t, os.WriteFile(b.Path(), []byte("not json"), 0600))

	s := New(b, zerolog.Nop())
	assert.Nil(t, s.Load(ctx))

	// A write replaces the corrupt document.
	s.SetTokens(ctx, "a", "r")
	assert.Equal(t, "a", s.AccessToken(ctx))

	require.NoError(t, os.WriteFile(b.Path(), []byte("still not json"), 0600))
	s.Clear(ctx)
	_, err := os.Stat(b.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestFileBackendPersistsAcrossStores(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := New(NewFileBackend(dir), zerolog.Nop())
	u := domain.User{Email: "doc@medtrax.dev", Role: domain.RoleDoctor}
	first.Save(ctx, &u, u.Role, true, true)
	first.SetTokens(ctx, "access", "refresh")

	second := New(NewFileBackend(dir), zerolog.Nop())
	snap := second.Load(ctx)
	require.NotNil(t, snap)
	assert.Equal(t, u, *snap.User)
	assert.True(t, snap.IsProfileComplete)
	assert.Equal(t, "access", second.AccessToken(ctx))
	assert.Equal(t, "refresh", second.RefreshToken(ctx))

	second.Clear(ctx)
	second.Clear(ctx)
	assert.Nil(t, first.Load(ctx))
}
