package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// FallbackMessage is shown when no better message can be extracted.
const FallbackMessage = "something went wrong"

// ErrNoRefreshToken is returned by the refresh flow when no refresh token is stored.
var ErrNoRefreshToken = errors.New("client: no refresh token")

// ErrSessionEnded is returned when a refresh completes after the session it
// was started for has ended. The new tokens are discarded.
var ErrSessionEnded = errors.New("client: session ended during refresh")

// HTTPError represents a failed API call. StatusCode is 0 for transport
// failures (unreachable host, timeout), in which case the cause is wrapped.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       []byte

	cause error
}

func (e *HTTPError) Error() string {
	if e.StatusCode == 0 {
		return "transport: " + e.Message
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.cause
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// IsTransport reports whether err is a transport failure (no HTTP response)
// or a context cancellation, neither of which says anything about the
// credentials.
func IsTransport(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == 0
}

// RejectedError is returned when the server answers 2xx but reports
// {"success": false}.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return "rejected: " + e.Message
}

// Message returns the human-readable text for err, suitable for display.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) && rejected.Message != "" {
		return rejected.Message
	}
	if errors.As(err, &httpErr) {
		return FallbackMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return FallbackMessage
}

// extractMessage picks the message for an error response body: the "error"
// field, then the "message" field, then a status line.
func extractMessage(status int, body []byte) string {
	var fields map[string]any
	if json.Unmarshal(body, &fields) == nil {
		if s, ok := fields["error"].(string); ok && s != "" {
			return s
		}
		if s, ok := fields["message"].(string); ok && s != "" {
			return s
		}
	}
	return fmt.Sprintf("request failed with status code %d", status)
}
