package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rashiika/medtrax/pkg/domain"
)

// LoginOutcome classifies a login that did not fail.
type LoginOutcome int

const (
	// LoginComplete means the account has finished profile completion.
	LoginComplete LoginOutcome = iota + 1
	// LoginIncomplete means the account still has to complete its profile.
	LoginIncomplete
)

func (o LoginOutcome) String() string {
	switch o {
	case LoginComplete:
		return "complete"
	case LoginIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// LoginResult is a successful login, already classified.
type LoginResult struct {
	Outcome LoginOutcome
	User    domain.User
	Tokens  domain.TokenPair
	Message string
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginUser struct {
	Email             string `json:"email"`
	Role              string `json:"role"`
	Username          string `json:"username"`
	IsProfileComplete *bool  `json:"is_profile_complete"`
}

// loginPayload covers both the success body and the incomplete-profile
// error body of POST /login/.
type loginPayload struct {
	User              *loginUser `json:"user"`
	Email             string     `json:"email"`
	Role              string     `json:"role"`
	IsProfileComplete *bool      `json:"is_profile_complete"`
	AccessToken       string     `json:"access_token"`
	RefreshToken      string     `json:"refresh_token"`
	Message           string     `json:"message"`
}

// Login signs in with email and password. An error response carrying
// is_profile_complete=false is returned as a LoginIncomplete result, not an error.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	req, err := newRequest(http.MethodPost, "/login/", loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}

	var payload loginPayload
	if err := c.execute(ctx, req.withoutRefresh(), &payload); err != nil {
		if res, ok := incompleteLogin(err); ok {
			return res, nil
		}
		return nil, fmt.Errorf("client.Login: %w", err)
	}

	res, err := payload.result()
	if err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	return res, nil
}

// incompleteLogin recognises the 4xx body {is_profile_complete: false, role, email, message}.
func incompleteLogin(err error) (*LoginResult, bool) {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode < 400 || httpErr.StatusCode >= 500 {
		return nil, false
	}
	var payload loginPayload
	if jsonErr := json.Unmarshal(httpErr.Body, &payload); jsonErr != nil {
		return nil, false
	}
	if payload.IsProfileComplete == nil || *payload.IsProfileComplete {
		return nil, false
	}
	res, perr := payload.result()
	if perr != nil {
		return nil, false
	}
	return res, true
}

func (p loginPayload) result() (*LoginResult, error) {
	user := domain.User{Email: p.Email}
	rawRole := p.Role
	complete := p.IsProfileComplete
	if p.User != nil {
		user.Email = p.User.Email
		user.Username = p.User.Username
		if p.User.Role != "" {
			rawRole = p.User.Role
		}
		if complete == nil {
			complete = p.User.IsProfileComplete
		}
	}
	if user.Email == "" {
		return nil, errors.New("login response has no email")
	}
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return nil, err
	}
	user.Role = role

	outcome := LoginComplete
	if complete != nil && !*complete {
		outcome = LoginIncomplete
	}
	return &LoginResult{
		Outcome: outcome,
		User:    user,
		Tokens:  domain.TokenPair{Access: p.AccessToken, Refresh: p.RefreshToken},
		Message: p.Message,
	}, nil
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Refresh exchanges a refresh token for a new access token. It bypasses the
// interceptor so a rejected refresh token never triggers another refresh.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	req, err := newRequest(http.MethodPost, "/token/refresh/", refreshRequest{Refresh: refreshToken})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("client.Refresh: %w", err)
	}
	var pair domain.TokenPair
	if err := c.send(ctx, req.withoutRefresh(), "", &pair); err != nil {
		return domain.TokenPair{}, fmt.Errorf("client.Refresh: %w", err)
	}
	if pair.Access == "" {
		return domain.TokenPair{}, errors.New("client.Refresh: response has no access token")
	}
	return pair, nil
}

// ProfileResult is the server's answer to a completed profile.
type ProfileResult struct {
	Message string
	Tokens  domain.TokenPair
}

type profileResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Error        string `json:"error"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// CompleteProfile submits the one-time profile for the profile's role.
func (c *Client) CompleteProfile(ctx context.Context, profile domain.Profile) (*ProfileResult, error) {
	var path string
	switch profile.ProfileRole() {
	case domain.RoleDoctor:
		path = "/complete-doctor-profile/"
	case domain.RolePatient:
		path = "/complete-patient-profile/"
	default:
		return nil, fmt.Errorf("client.CompleteProfile: unknown role %q", profile.ProfileRole())
	}

	var resp profileResponse
	if err := c.post(ctx, path, profile, &resp); err != nil {
		return nil, fmt.Errorf("client.CompleteProfile: %w", err)
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = resp.Message
		}
		return nil, fmt.Errorf("client.CompleteProfile: %w", &RejectedError{Message: msg})
	}
	return &ProfileResult{
		Message: resp.Message,
		Tokens:  domain.TokenPair{Access: resp.AccessToken, Refresh: resp.RefreshToken},
	}, nil
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The client cannot verify tokens; this is for display only.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
