package mastodon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// FailureKind classifies an error for the engine's retry policy.
type FailureKind string

const (
	// FailureTransport covers connection refused, DNS, TLS, resets.
	// Retryable for idempotent requests.
	FailureTransport FailureKind = "transport"

	// FailureTimeout is a deadline expiry, distinguishable from a
	// server-reported error. Retryable for idempotent requests.
	FailureTimeout FailureKind = "timeout"

	// FailureAuth is an expired or invalid credential. Never retried;
	// surfaces as a session-level needs-reauth state.
	FailureAuth FailureKind = "auth"

	// FailureServer is a 4xx/5xx with a server message. Never retried
	// automatically.
	FailureServer FailureKind = "server"

	// FailureDecode is a malformed payload. Logged and dropped at the
	// smallest granularity.
	FailureDecode FailureKind = "decode"
)

// APIError is a non-2xx response carrying the server's message verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server error %d", e.StatusCode)
}

// Auth reports whether the response indicates a credential problem.
func (e *APIError) Auth() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// DecodeError is a payload that failed to parse.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode response: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// Classify maps an error from any client call onto the taxonomy.
func Classify(err error) FailureKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Auth() {
			return FailureAuth
		}
		return FailureServer
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return FailureDecode
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return FailureTransport
	}
	return FailureTransport
}

// Retryable reports whether a failure of this kind may be retried for an
// idempotent request. Mutations are never auto-retried regardless.
func (k FailureKind) Retryable() bool {
	return k == FailureTransport || k == FailureTimeout
}
