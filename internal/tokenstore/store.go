// Package tokenstore persists the session credentials and profile flags in a
// flat set of named slots.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/rashiika/medtrax/pkg/domain"
)

// Slot names. These are shared by every install reading the same persisted
// session and must never change.
const (
	KeyUser            = "medtrax.user"
	KeyRole            = "medtrax.role"
	KeyAuthenticated   = "medtrax.isAuthenticated"
	KeyProfileComplete = "medtrax.isProfileComplete"
	KeyAccessToken     = "medtrax.accessToken"
	KeyRefreshToken    = "medtrax.refreshToken"
)

// AllKeys lists every slot the store owns.
var AllKeys = []string{
	KeyUser, KeyRole, KeyAuthenticated, KeyProfileComplete, KeyAccessToken, KeyRefreshToken,
}

// Store is a typed view over a Backend. Storage failures are logged and
// swallowed so the app keeps running without persistence.
type Store struct {
	backend Backend
	log     zerolog.Logger
}

// New creates a Store over backend. A nil backend falls back to memory.
func New(backend Backend, log zerolog.Logger) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	return &Store{backend: backend, log: log.With().Str("component", "tokenstore").Logger()}
}

// Save writes the four profile slots in one backend write.
func (s *Store) Save(ctx context.Context, user *domain.User, role domain.Role, isAuthenticated, isProfileComplete bool) {
	entries, err := profileEntries(user, role, isAuthenticated, isProfileComplete)
	if err != nil {
		s.log.Warn().Err(err).Msg("marshal user record")
		return
	}
	if err := s.backend.SetMany(ctx, entries); err != nil {
		s.log.Warn().Err(err).Msg("save session; continuing without persistence")
	}
}

// SaveSession overwrites all six slots of an authenticated session in one
// backend write. An empty token is stored empty, which reads back as absent.
func (s *Store) SaveSession(ctx context.Context, user *domain.User, role domain.Role, isProfileComplete bool, tokens domain.TokenPair) {
	entries, err := profileEntries(user, role, true, isProfileComplete)
	if err != nil {
		s.log.Warn().Err(err).Msg("marshal user record")
		return
	}
	entries[KeyAccessToken] = []byte(tokens.Access)
	entries[KeyRefreshToken] = []byte(tokens.Refresh)
	if err := s.backend.SetMany(ctx, entries); err != nil {
		s.log.Warn().Err(err).Msg("save session; continuing without persistence")
	}
}

func profileEntries(user *domain.User, role domain.Role, isAuthenticated, isProfileComplete bool) (map[string][]byte, error) {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}
	// Profile completeness is meaningless without a session.
	if !isAuthenticated {
		isProfileComplete = false
	}
	return map[string][]byte{
		KeyUser:            userJSON,
		KeyRole:            []byte(role),
		KeyAuthenticated:   []byte(strconv.FormatBool(isAuthenticated)),
		KeyProfileComplete: []byte(strconv.FormatBool(isProfileComplete)),
	}, nil
}

// Load returns the persisted snapshot, or nil when any required slot is
// missing or unreadable.
func (s *Store) Load(ctx context.Context) *domain.Snapshot {
	rawUser, ok := s.get(ctx, KeyUser)
	if !ok {
		return nil
	}
	rawRole, ok := s.get(ctx, KeyRole)
	if !ok {
		return nil
	}
	rawAuth, ok := s.get(ctx, KeyAuthenticated)
	if !ok {
		return nil
	}

	var user *domain.User
	if err := json.Unmarshal(rawUser, &user); err != nil || user == nil {
		s.log.Warn().Str("slot", KeyUser).Msg("discarding unreadable slot")
		return nil
	}
	role, err := domain.ParseRole(string(rawRole))
	if err != nil {
		s.log.Warn().Str("slot", KeyRole).Msg("discarding unreadable slot")
		return nil
	}
	if user.Role != "" && user.Role != role {
		s.log.Warn().Str("slot", KeyRole).Msg("role slot disagrees with user record")
		return nil
	}
	user.Role = role
	isAuthenticated, err := strconv.ParseBool(string(rawAuth))
	if err != nil {
		s.log.Warn().Str("slot", KeyAuthenticated).Msg("discarding unreadable slot")
		return nil
	}

	isProfileComplete := false
	if raw, ok := s.get(ctx, KeyProfileComplete); ok {
		if v, err := strconv.ParseBool(string(raw)); err == nil {
			isProfileComplete = v
		}
	}

	return &domain.Snapshot{
		User:              user,
		Role:              role,
		IsAuthenticated:   isAuthenticated,
		IsProfileComplete: isAuthenticated && isProfileComplete,
	}
}

// Clear removes every slot, tokens included. Clearing an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) {
	if err := s.backend.Delete(ctx, AllKeys...); err != nil {
		s.log.Warn().Err(err).Msg("clear session")
	}
}

// AccessToken returns the persisted access token or "".
func (s *Store) AccessToken(ctx context.Context) string {
	v, _ := s.get(ctx, KeyAccessToken)
	return string(v)
}

// RefreshToken returns the persisted refresh token or "".
func (s *Store) RefreshToken(ctx context.Context) string {
	v, _ := s.get(ctx, KeyRefreshToken)
	return string(v)
}

// SetTokens persists the credential slots in one write. An empty refresh
// leaves the stored refresh token unchanged; an empty access is ignored.
func (s *Store) SetTokens(ctx context.Context, access, refresh string) {
	if access == "" {
		return
	}
	entries := map[string][]byte{KeyAccessToken: []byte(access)}
	if refresh != "" {
		entries[KeyRefreshToken] = []byte(refresh)
	}
	if err := s.backend.SetMany(ctx, entries); err != nil {
		s.log.Warn().Err(err).Msg("save tokens; continuing without persistence")
	}
}

// ClearTokens removes only the credential slots.
func (s *Store) ClearTokens(ctx context.Context) {
	if err := s.backend.Delete(ctx, KeyAccessToken, KeyRefreshToken); err != nil {
		s.log.Warn().Err(err).Msg("clear tokens")
	}
}

func (s *Store) get(ctx context.Context, key string) ([]byte, bool) {
	v, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn().Err(err).Str("slot", key).Msg("read slot")
		}
		return nil, false
	}
	return v, true
}
