package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rashiika/medtrax/pkg/client"
	"github.com/rashiika/medtrax/pkg/domain"
)

// API is the part of the portal client the Authenticator needs.
type API interface {
	Login(ctx context.Context, email, password string) (*client.LoginResult, error)
	CompleteProfile(ctx context.Context, profile domain.Profile) (*client.ProfileResult, error)
}

// Authenticator runs the user-initiated flows: it calls the API and feeds
// the classified result into the Machine.
type Authenticator struct {
	api     API
	machine *Machine
	log     zerolog.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(api API, machine *Machine, log zerolog.Logger) *Authenticator {
	return &Authenticator{
		api:     api,
		machine: machine,
		log:     log.With().Str("component", "auth").Logger(),
	}
}

// Login signs in. A failed login leaves the session untouched.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*client.LoginResult, error) {
	if st := a.machine.State(); st != Unauthenticated && st != AuthenticatedIncomplete {
		return nil, fmt.Errorf("session.Login: %w: already %s", ErrInvalidTransition, st)
	}
	res, err := a.api.Login(ctx, email, password)
	if err != nil {
		a.log.Info().Str("reason", client.Message(err)).Msg("login failed")
		return nil, fmt.Errorf("session.Login: %w", err)
	}
	if err := a.machine.ApplyLogin(ctx, res); err != nil {
		return nil, fmt.Errorf("session.Login: %w", err)
	}
	a.log.Info().Str("role", res.User.Role.String()).Str("outcome", res.Outcome.String()).Msg("logged in")
	return res, nil
}

// CompleteProfile submits the one-time profile for the signed-in user.
func (a *Authenticator) CompleteProfile(ctx context.Context, profile domain.Profile) (*client.ProfileResult, error) {
	sess := a.machine.Session()
	if sess.State != AuthenticatedIncomplete {
		return nil, fmt.Errorf("session.CompleteProfile: %w: %s", ErrInvalidTransition, sess.State)
	}
	if profile.ProfileRole() != sess.Role {
		return nil, fmt.Errorf("session.CompleteProfile: %w", ErrRoleMismatch)
	}
	res, err := a.api.CompleteProfile(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("session.CompleteProfile: %w", err)
	}
	if err := a.machine.ApplyProfileCompleted(ctx, res.Tokens); err != nil {
		return nil, fmt.Errorf("session.CompleteProfile: %w", err)
	}
	return res, nil
}

// Logout ends the session.
func (a *Authenticator) Logout(ctx context.Context) error {
	if err := a.machine.Logout(ctx); err != nil {
		return fmt.Errorf("session.Logout: %w", err)
	}
	return nil
}
