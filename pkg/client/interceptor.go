package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// maxRetries bounds how many times one call is resent after a refresh.
const maxRetries = 1

// request describes one API call and its retry bookkeeping. It is passed by
// value; a retry is a new value with attempt incremented.
type request struct {
	method    string
	path      string
	body      []byte
	attempt   int
	noRefresh bool
}

func newRequest(method, path string, body any) (request, error) {
	r := request{method: method, path: path}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return request{}, fmt.Errorf("marshal body: %w", err)
		}
		r.body = data
	}
	return r, nil
}

// withoutRefresh marks r so a 401 is returned as-is instead of refreshing.
func (r request) withoutRefresh() request {
	r.noRefresh = true
	return r
}

func (r request) retry() request {
	r.attempt++
	return r
}

func (r request) canRetry() bool {
	return !r.noRefresh && r.attempt < maxRetries
}

// execute sends r and, on the first 401, refreshes the access token and
// resends once. If the refresh fails the original 401 is returned.
func (c *Client) execute(ctx context.Context, r request, out any) error {
	err := c.send(ctx, r, c.tokens.AccessToken(ctx), out)
	if !IsStatus(err, http.StatusUnauthorized) || !r.canRetry() {
		return err
	}

	access, refreshErr := c.refreshAccess(ctx)
	if refreshErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return c.send(ctx, r.retry(), access, out)
}

// refreshAccess exchanges the stored refresh token for a new access token.
// Concurrent callers share one refresh call, which is detached from any
// single caller's cancellation and bounded by the client timeout. A caller
// whose ctx ends stops waiting without affecting the shared refresh.
func (c *Client) refreshAccess(ctx context.Context) (string, error) {
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout())
		defer cancel()
		return c.runRefresh(fctx)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// runRefresh performs one refresh. A rejected or missing refresh token
// expires the session; transport failures leave it untouched.
func (c *Client) runRefresh(ctx context.Context) (string, error) {
	refresh := c.tokens.RefreshToken(ctx)
	if refresh == "" {
		c.expire(ctx, ErrNoRefreshToken)
		return "", ErrNoRefreshToken
	}
	pair, err := c.Refresh(ctx, refresh)
	if err != nil {
		if IsTransport(err) {
			c.log.Warn().Err(err).Msg("refresh failed in transport; keeping session")
			return "", err
		}
		c.expire(ctx, err)
		return "", err
	}
	if !c.tokens.SetTokens(ctx, pair.Access, pair.Refresh) {
		c.log.Info().Msg("session ended during refresh; dropping new tokens")
		return "", ErrSessionEnded
	}
	c.log.Info().Bool("rotated", pair.Refresh != "").Msg("access token refreshed")
	return pair.Access, nil
}

func (c *Client) refreshTimeout() time.Duration {
	if c.httpClient.Timeout > 0 {
		return c.httpClient.Timeout
	}
	return DefaultTimeout
}

func (c *Client) expire(ctx context.Context, cause error) {
	c.log.Warn().Str("reason", Message(cause)).Msg("session expired")
	if c.onExpired != nil {
		c.onExpired(ctx, cause)
	}
	c.tokens.ClearTokens(ctx)
}
