package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/review-pipeline/internal/httpx"
)

func fastRetry() httpx.RetryConfig {
	return httpx.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2.0}
}

func TestReviewCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama2", req.Model)
		assert.False(t, req.Stream)

		_ = json.NewEncoder(w).Encode(GenerateResponse{
			Model:    "llama2",
			Response: "### Review\n\nConsider error handling here.",
			Done:     true,
		})
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, Model: "llama2", Retry: fastRetry()})

	got, err := c.ReviewCode(context.Background(), "review this")
	require.NoError(t, err)
	assert.Equal(t, "### Review\n\nConsider error handling here.", got)
}

func TestReviewCodeServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "model not loaded"})
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, Model: "llama2", Retry: fastRetry()})

	_, err := c.ReviewCode(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, httpx.ErrTypeHTTP5xx, httpx.Classify(err))
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestReviewCodeConnectionRefused(t *testing.T) {
	// Grab a port that nothing is listening on.
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(Config{BaseURL: url, Model: "llama2", Retry: httpx.RetryConfig{
		MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2.0,
	}})

	_, err := c.ReviewCode(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, httpx.ErrTypeNetwork, httpx.Classify(err))
}

func TestIsReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, Model: "llama2"})
	assert.True(t, c.IsReady(context.Background()))

	server.Close()
	assert.False(t, c.IsReady(context.Background()))
}
