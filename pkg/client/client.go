// Package client is the MedTrax portal API client. Every call goes through
// the auth interceptor, which attaches the bearer token and recovers once
// from an expired access token.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout applies to every call unless overridden with WithTimeout.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 1 << 20

// TokenSource supplies and receives the session credentials.
type TokenSource interface {
	AccessToken(ctx context.Context) string
	RefreshToken(ctx context.Context) string
	// SetTokens stores refreshed credentials. It reports false when the
	// session they belong to has ended and the credentials were dropped.
	SetTokens(ctx context.Context, access, refresh string) bool
	ClearTokens(ctx context.Context)
}

// StaticToken is a read-only TokenSource holding a fixed access token.
// It never refreshes.
type StaticToken string

func (t StaticToken) AccessToken(context.Context) string           { return string(t) }
func (StaticToken) RefreshToken(context.Context) string            { return "" }
func (StaticToken) SetTokens(context.Context, string, string) bool { return false }
func (StaticToken) ClearTokens(context.Context)                    {}

// Client is the MedTrax API client.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	log        zerolog.Logger
	onExpired  func(ctx context.Context, cause error)

	refreshGroup singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the blanket per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log.With().Str("component", "client").Logger() }
}

// WithSessionExpiredHandler registers fn to run on an unrecoverable refresh
// failure. The tokens are cleared right after fn returns.
func WithSessionExpiredHandler(fn func(ctx context.Context, cause error)) Option {
	return func(c *Client) { c.onExpired = fn }
}

// New creates a new API client. A nil tokens source sends every call
// without credentials.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	if tokens == nil {
		tokens = StaticToken("")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends an arbitrary API call through the interceptor. body and out may be nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	req, err := newRequest(method, path, body)
	if err != nil {
		return fmt.Errorf("client.Do: %w", err)
	}
	if err := c.execute(ctx, req, out); err != nil {
		return fmt.Errorf("client.Do: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.execute(ctx, request{method: http.MethodGet, path: path}, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	req, err := newRequest(http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return c.execute(ctx, req, out)
}

// send performs a single attempt of req with the given bearer token.
func (c *Client) send(ctx context.Context, r request, token string, out any) error {
	var reqBody io.Reader
	if r.body != nil {
		reqBody = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("request_id", reqID).Str("path", r.path).Msg("transport error")
		return &HTTPError{Message: err.Error(), cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	c.log.Debug().
		Str("request_id", reqID).
		Str("method", r.method).
		Str("path", r.path).
		Int("status", resp.StatusCode).
		Int("attempt", r.attempt).
		Msg("api call")

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    extractMessage(resp.StatusCode, respBody),
			Body:       respBody,
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
