package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rashiika/medtrax/internal/tokenstore"
	"github.com/rashiika/medtrax/pkg/client"
	"github.com/rashiika/medtrax/pkg/domain"
)

// Machine owns the Session. Every mutation goes through a transition and is
// written through to the token store before listeners are told.
type Machine struct {
	mu        sync.RWMutex
	sess      Session
	hydrated  bool
	store     *tokenstore.Store
	listeners []func(Change)
	log       zerolog.Logger
}

var _ client.TokenSource = (*Machine)(nil)

// NewMachine creates a Machine in the Hydrating state.
func NewMachine(store *tokenstore.Store, log zerolog.Logger) *Machine {
	if store == nil {
		store = tokenstore.New(nil, log)
	}
	return &Machine{
		sess:  Session{State: Hydrating},
		store: store,
		log:   log.With().Str("component", "session").Logger(),
	}
}

// OnChange registers fn to receive every applied transition. Listeners run
// synchronously, in registration order, after the store has been updated.
func (m *Machine) OnChange(fn func(Change)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess.State
}

// Session returns a copy of the current session.
func (m *Machine) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.sess
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Snapshot returns the four session fields the route guard reads.
func (m *Machine) Snapshot() domain.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess.Snapshot()
}

// Hydrate reconstructs the session from the token store. It runs once; the
// machine leaves Hydrating before it returns.
func (m *Machine) Hydrate(ctx context.Context) (State, error) {
	m.mu.Lock()
	if m.hydrated {
		st := m.sess.State
		m.mu.Unlock()
		return st, ErrAlreadyHydrated
	}
	m.hydrated = true

	snap := m.store.Load(ctx)
	access := m.store.AccessToken(ctx)
	refresh := m.store.RefreshToken(ctx)

	next := Session{}
	ev := EventHydrateEmpty
	switch {
	case snap == nil:
	case snap.IsAuthenticated && snap.IsProfileComplete && access == "":
		m.log.Warn().Msg("persisted complete session has no access token; discarding")
		m.store.Clear(ctx)
	case snap.IsAuthenticated:
		ev = EventHydrateIncomplete
		if snap.IsProfileComplete {
			ev = EventHydrateComplete
		}
		next = Session{User: snap.User, Role: snap.Role, AccessToken: access, RefreshToken: refresh}
	default:
		// Signed out, but the last user and role are kept for the login form.
		next = Session{User: snap.User, Role: snap.Role}
	}

	change, err := m.transitionLocked(ev, func(s *Session) {
		s.User, s.Role = next.User, next.Role
		s.AccessToken, s.RefreshToken = next.AccessToken, next.RefreshToken
	})
	listeners := m.listeners
	st := m.sess.State
	m.mu.Unlock()
	if err != nil {
		return st, err
	}

	m.log.Info().Str("state", st.String()).Msg("session hydrated")
	notify(listeners, change)
	return st, nil
}

// SelectRole records the role chosen before a user record exists (signup,
// login form). It is held in memory only.
func (m *Machine) SelectRole(role domain.Role) error {
	if !role.Valid() {
		return ErrInvalidTransition
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.transitionLocked(EventSelectRole, func(s *Session) { s.Role = role })
	return err
}

// ApplyLogin moves the session to the authenticated state matching res and
// persists it.
func (m *Machine) ApplyLogin(ctx context.Context, res *client.LoginResult) error {
	ev := EventLoginIncomplete
	if res.Outcome == client.LoginComplete {
		ev = EventLoginComplete
		if res.Tokens.Access == "" {
			return ErrNoAccessToken
		}
	}
	user := res.User
	return m.apply(ctx, ev, func(s *Session) {
		s.User = &user
		s.Role = user.Role
		s.AccessToken = res.Tokens.Access
		s.RefreshToken = res.Tokens.Refresh
	})
}

// ApplyProfileCompleted finishes the one-time profile step. Tokens returned
// by the server replace the current ones. If no access token is left the
// session is ended and ErrReauthenticate returned.
func (m *Machine) ApplyProfileCompleted(ctx context.Context, tokens domain.TokenPair) error {
	m.mu.RLock()
	state, access := m.sess.State, m.sess.AccessToken
	m.mu.RUnlock()

	if state != AuthenticatedIncomplete {
		_, err := Next(state, EventProfileCompleted)
		return err
	}
	if tokens.Access == "" && access == "" {
		m.ForceLogout(ctx, ErrReauthenticate)
		return ErrReauthenticate
	}
	return m.apply(ctx, EventProfileCompleted, func(s *Session) {
		if tokens.Access != "" {
			s.AccessToken = tokens.Access
		}
		if tokens.Refresh != "" {
			s.RefreshToken = tokens.Refresh
		}
	})
}

// Logout ends an authenticated session and clears the token store.
func (m *Machine) Logout(ctx context.Context) error {
	return m.apply(ctx, EventLogout, clearSession)
}

// ForceLogout ends the session after an unrecoverable failure and asks
// listeners to navigate to the login view. The store is cleared even when
// no session was active.
func (m *Machine) ForceLogout(ctx context.Context, reason error) {
	m.mu.Lock()
	if !m.sess.State.Authenticated() {
		m.sess.AccessToken, m.sess.RefreshToken = "", ""
		m.mu.Unlock()
		m.store.Clear(ctx)
		return
	}
	change, err := m.transitionLocked(EventSessionExpired, clearSession)
	listeners := m.listeners
	m.mu.Unlock()
	if err != nil {
		return
	}
	m.store.Clear(ctx)

	change.Redirect = domain.RouteLogin
	change.Reason = reason
	m.log.Warn().AnErr("reason", reason).Msg("session ended")
	notify(listeners, change)
}

// AccessToken implements client.TokenSource.
func (m *Machine) AccessToken(context.Context) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess.AccessToken
}

// RefreshToken implements client.TokenSource.
func (m *Machine) RefreshToken(context.Context) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess.RefreshToken
}

// SetTokens stores refreshed credentials in memory and in the token store.
// An empty refresh keeps the current refresh token. Credentials arriving
// after the session ended are dropped and false is returned.
func (m *Machine) SetTokens(ctx context.Context, access, refresh string) bool {
	if access == "" {
		return false
	}
	// The store write stays under the lock so a concurrent logout cannot
	// clear the store between the state check and the write.
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.sess.State.Authenticated() {
		m.log.Info().Msg("dropping tokens for an ended session")
		return false
	}
	m.sess.AccessToken = access
	if refresh != "" {
		m.sess.RefreshToken = refresh
	}
	m.store.SetTokens(ctx, access, refresh)
	return true
}

// ClearTokens drops the credentials. A complete session cannot exist
// without an access token, so it is ended as well.
func (m *Machine) ClearTokens(ctx context.Context) {
	m.mu.Lock()
	m.sess.AccessToken, m.sess.RefreshToken = "", ""
	complete := m.sess.State == AuthenticatedComplete
	m.mu.Unlock()
	m.store.ClearTokens(ctx)
	if complete {
		m.ForceLogout(ctx, ErrReauthenticate)
	}
}

// apply runs one transition and reconciles the store with the new session.
func (m *Machine) apply(ctx context.Context, ev Event, mutate func(*Session)) error {
	m.mu.Lock()
	change, err := m.transitionLocked(ev, mutate)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	sess := m.sess
	listeners := m.listeners
	m.mu.Unlock()

	m.persist(ctx, sess)
	m.log.Info().Str("event", ev.String()).Str("from", change.From.String()).Str("to", change.To.String()).Msg("session transition")
	notify(listeners, change)
	return nil
}

// transitionLocked validates ev against the table and applies mutate.
// The caller holds m.mu.
func (m *Machine) transitionLocked(ev Event, mutate func(*Session)) (Change, error) {
	from := m.sess.State
	to, err := Next(from, ev)
	if err != nil {
		return Change{}, err
	}
	if mutate != nil {
		mutate(&m.sess)
	}
	m.sess.State = to
	return Change{From: from, To: to, Event: ev}, nil
}

func (m *Machine) persist(ctx context.Context, s Session) {
	if !s.State.Authenticated() {
		m.store.Clear(ctx)
		return
	}
	m.store.SaveSession(ctx, s.User, s.Role, s.State == AuthenticatedComplete,
		domain.TokenPair{Access: s.AccessToken, Refresh: s.RefreshToken})
}

func clearSession(s *Session) {
	*s = Session{State: s.State}
}

func notify(listeners []func(Change), c Change) {
	for _, fn := range listeners {
		fn(c)
	}
}
