// Package session holds the process-wide auth session and the state machine
// that is the only writer of it.
package session

import (
	"errors"
	"fmt"

	"github.com/rashiika/medtrax/pkg/domain"
)

var (
	// ErrInvalidTransition is returned for an event the current state does not accept.
	ErrInvalidTransition = errors.New("session: invalid transition")
	// ErrAlreadyHydrated is returned when Hydrate runs a second time.
	ErrAlreadyHydrated = errors.New("session: already hydrated")
	// ErrReauthenticate means the session ended and the user must log in again.
	ErrReauthenticate = errors.New("session: please log in again")
	// ErrNoAccessToken is returned when a complete login carries no access token.
	ErrNoAccessToken = errors.New("session: login response has no access token")
	// ErrRoleMismatch is returned when a profile is submitted for the wrong role.
	ErrRoleMismatch = errors.New("session: profile role does not match session role")
)

// State is one of the four named session states.
type State int

const (
	Hydrating State = iota
	Unauthenticated
	AuthenticatedIncomplete
	AuthenticatedComplete
)

func (s State) String() string {
	switch s {
	case Hydrating:
		return "hydrating"
	case Unauthenticated:
		return "unauthenticated"
	case AuthenticatedIncomplete:
		return "authenticated-incomplete"
	case AuthenticatedComplete:
		return "authenticated-complete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Authenticated reports whether s carries a signed-in user.
func (s State) Authenticated() bool {
	return s == AuthenticatedIncomplete || s == AuthenticatedComplete
}

// Event drives a transition.
type Event int

const (
	EventHydrateComplete Event = iota + 1
	EventHydrateIncomplete
	EventHydrateEmpty
	EventLoginComplete
	EventLoginIncomplete
	EventProfileCompleted
	EventLogout
	EventSessionExpired
	EventSelectRole
)

var eventNames = map[Event]string{
	EventHydrateComplete:   "hydrate-complete",
	EventHydrateIncomplete: "hydrate-incomplete",
	EventHydrateEmpty:      "hydrate-empty",
	EventLoginComplete:     "login-complete",
	EventLoginIncomplete:   "login-incomplete",
	EventProfileCompleted:  "profile-completed",
	EventLogout:            "logout",
	EventSessionExpired:    "session-expired",
	EventSelectRole:        "select-role",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// transitions is the complete table. Anything missing is rejected.
var transitions = map[State]map[Event]State{
	Hydrating: {
		EventHydrateComplete:   AuthenticatedComplete,
		EventHydrateIncomplete: AuthenticatedIncomplete,
		EventHydrateEmpty:      Unauthenticated,
	},
	Unauthenticated: {
		EventLoginComplete:   AuthenticatedComplete,
		EventLoginIncomplete: AuthenticatedIncomplete,
		EventSelectRole:      Unauthenticated,
	},
	AuthenticatedIncomplete: {
		EventLoginComplete:    AuthenticatedComplete,
		EventLoginIncomplete:  AuthenticatedIncomplete,
		EventProfileCompleted: AuthenticatedComplete,
		EventLogout:           Unauthenticated,
		EventSessionExpired:   Unauthenticated,
	},
	AuthenticatedComplete: {
		EventLogout:         Unauthenticated,
		EventSessionExpired: Unauthenticated,
	},
}

// Next returns the state reached from s on ev.
func Next(s State, ev Event) (State, error) {
	to, ok := transitions[s][ev]
	if !ok {
		return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s)
	}
	return to, nil
}

// Session is the in-memory session record.
type Session struct {
	State        State
	User         *domain.User
	Role         domain.Role
	AccessToken  string
	RefreshToken string
}

// IsHydrating is true only before the startup read from the token store finishes.
func (s Session) IsHydrating() bool { return s.State == Hydrating }

func (s Session) IsAuthenticated() bool { return s.State.Authenticated() }

func (s Session) IsProfileComplete() bool { return s.State == AuthenticatedComplete }

// Snapshot returns the four persisted fields of s.
func (s Session) Snapshot() domain.Snapshot {
	var user *domain.User
	if s.User != nil {
		u := *s.User
		user = &u
	}
	return domain.Snapshot{
		User:              user,
		Role:              s.Role,
		IsAuthenticated:   s.IsAuthenticated(),
		IsProfileComplete: s.IsProfileComplete(),
	}
}

// Change describes one applied transition. Redirect is set when the user
// must be navigated away immediately.
type Change struct {
	From     State
	To       State
	Event    Event
	Redirect domain.Route
	Reason   error
}
