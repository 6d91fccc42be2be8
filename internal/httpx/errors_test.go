package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorTypeString(t *testing.T) {
	assert.Equal(t, "HTTP_4XX", ErrTypeHTTP4xx.String())
	assert.Equal(t, "HTTP_5XX", ErrTypeHTTP5xx.String())
	assert.Equal(t, "NETWORK", ErrTypeNetwork.String())
	assert.Equal(t, "TIMEOUT", ErrTypeTimeout.String())
	assert.Equal(t, "UNKNOWN", ErrTypeUnknown.String())
}

func TestIsTransient(t *testing.T) {
	assert.False(t, ErrTypeHTTP4xx.IsTransient())
	assert.True(t, ErrTypeHTTP5xx.IsTransient())
	assert.True(t, ErrTypeNetwork.IsTransient())
	assert.True(t, ErrTypeTimeout.IsTransient())
	assert.False(t, ErrTypeUnknown.IsTransient())
}

func TestNewStatusError(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{400, ErrTypeHTTP4xx},
		{404, ErrTypeHTTP4xx},
		{422, ErrTypeHTTP4xx},
		{429, ErrTypeHTTP4xx},
		{500, ErrTypeHTTP5xx},
		{502, ErrTypeHTTP5xx},
		{503, ErrTypeHTTP5xx},
		{302, ErrTypeUnknown},
	}
	for _, tt := range tests {
		err := NewStatusError("github", tt.status, "boom")
		assert.Equal(t, tt.want, err.Type, "status %d", tt.status)
		assert.Equal(t, tt.status, err.StatusCode)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrTypeUnknown},
		{"typed 4xx", NewStatusError("github", 404, "not found"), ErrTypeHTTP4xx},
		{"typed 5xx wrapped", fmt.Errorf("call failed: %w", NewStatusError("github", 503, "unavailable")), ErrTypeHTTP5xx},
		{"deadline", context.DeadlineExceeded, ErrTypeTimeout},
		{"wrapped deadline", fmt.Errorf("get diff: %w", context.DeadlineExceeded), ErrTypeTimeout},
		{"connection refused", &url.Error{Op: "Post", URL: "http://localhost:1", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}, ErrTypeNetwork},
		{"connection reset", syscall.ECONNRESET, ErrTypeNetwork},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "api.invalid"}, ErrTypeNetwork},
		{"plain error", errors.New("something odd"), ErrTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifyNetTimeout(t *testing.T) {
	err := &url.Error{Op: "Get", URL: "http://example.com", Err: &timeoutError{}}
	assert.Equal(t, ErrTypeTimeout, Classify(err))
}

type timeoutError struct{}

func (*timeoutError) Error() string   { return "deadline exceeded" }
func (*timeoutError) Timeout() bool   { return true }
func (*timeoutError) Temporary() bool { return true }

func TestErrorIsMatchesByType(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewStatusError("gemini", 500, "overloaded"))
	assert.True(t, errors.Is(err, &Error{Type: ErrTypeHTTP5xx}))
	assert.False(t, errors.Is(err, &Error{Type: ErrTypeHTTP4xx}))
}

func TestErrorString(t *testing.T) {
	withStatus := NewStatusError("github", 404, "not found")
	assert.Equal(t, "github: HTTP_4XX: not found (status: 404)", withStatus.Error())

	transport := NewTransportError("ollama", syscall.ECONNREFUSED)
	assert.Equal(t, "ollama: NETWORK: connection refused", transport.Error())
}

func TestBackoffGrowsAndClamps(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2.0}

	// With ±25% jitter, attempt 0 stays within [75ms, 125ms].
	for i := 0; i < 20; i++ {
		d := Backoff(0, cfg)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}

	// Deep attempts clamp at MaxBackoff regardless of jitter.
	for i := 0; i < 20; i++ {
		assert.LessOrEqual(t, Backoff(10, cfg), time.Second)
	}
}

func TestBackoffClampNeverExceedsOneSecond(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: time.Minute, Multiplier: 10}
	for i := 0; i < 20; i++ {
		assert.LessOrEqual(t, Backoff(5, cfg), time.Second)
	}
}
