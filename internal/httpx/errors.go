// Package httpx provides the error classification and retry machinery
// shared by every outbound HTTP collaborator (GitHub, AI backends).
package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

// ErrorType classifies a failure by its shape. Classification is total
// and deterministic; it drives retry eligibility.
type ErrorType int

const (
	// ErrTypeHTTP4xx is a caller error; retrying cannot help.
	ErrTypeHTTP4xx ErrorType = iota
	// ErrTypeHTTP5xx is a server error; retryable.
	ErrTypeHTTP5xx
	// ErrTypeNetwork is a connection-level failure with no response; retryable.
	ErrTypeNetwork
	// ErrTypeTimeout is an elapsed deadline; retryable.
	ErrTypeTimeout
	// ErrTypeUnknown is anything else. Not retried by default: retrying an
	// unknown failure risks duplicate side effects.
	ErrTypeUnknown
)

// String returns the wire name of the error type, matching the
// errorType field on failure events.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeHTTP4xx:
		return "HTTP_4XX"
	case ErrTypeHTTP5xx:
		return "HTTP_5XX"
	case ErrTypeNetwork:
		return "NETWORK"
	case ErrTypeTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// IsTransient reports whether an error of this type is expected to
// succeed on retry.
func (t ErrorType) IsTransient() bool {
	return t == ErrTypeHTTP5xx || t == ErrTypeNetwork || t == ErrTypeTimeout
}

// Error is a classified failure from an outbound HTTP call.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Provider   string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s: %s (status: %d)", e.Provider, e.Type, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Type, e.Message)
}

// Is matches errors by type so callers can use errors.Is with a sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewStatusError builds an Error from an HTTP response status code.
func NewStatusError(provider string, statusCode int, message string) *Error {
	typ := ErrTypeUnknown
	switch {
	case statusCode >= 400 && statusCode < 500:
		typ = ErrTypeHTTP4xx
	case statusCode >= 500 && statusCode < 600:
		typ = ErrTypeHTTP5xx
	}
	return &Error{Type: typ, Message: message, StatusCode: statusCode, Provider: provider}
}

// NewTransportError classifies a request error that produced no response.
func NewTransportError(provider string, err error) *Error {
	return &Error{Type: classifyTransport(err), Message: err.Error(), Provider: provider}
}

// Classify returns the ErrorType for an arbitrary error. Checked in
// precedence order: typed *Error first, then timeouts, then connection
// failures; everything else is UNKNOWN.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrTypeUnknown
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type
	}
	return classifyTransport(err)
}

func classifyTransport(err error) ErrorType {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTypeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTypeTimeout
	}
	// url.Error wraps everything the http client returns; unwrap before
	// probing for connection-level causes.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrTypeNetwork
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return ErrTypeNetwork
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrTypeNetwork
	}
	return ErrTypeUnknown
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return Classify(err).IsTransient()
}
