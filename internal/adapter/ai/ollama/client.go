// Package ollama is the local Ollama backend for review generation.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bkyoung/review-pipeline/internal/httpx"
)

const (
	providerName = "ollama"
	// Local models can be slow, so the default timeout is generous.
	defaultTimeout = 120 * time.Second
	defaultTokens  = 8000
)

// Client is an HTTP client for the Ollama Generate API, implementing
// ai.Backend.
type Client struct {
	baseURL   string
	model     string
	maxTokens int
	timeout   time.Duration
	retryConf httpx.RetryConfig
	client    *http.Client
}

// Config holds the Ollama backend settings.
type Config struct {
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Retry     httpx.RetryConfig
}

// NewClient creates an Ollama client. Zero-valued config fields fall
// back to defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultTokens
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = httpx.DefaultRetryConfig()
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		retryConf: cfg.Retry,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) ReviewCode(ctx context.Context, prompt string) (string, error) {
	return c.call(ctx, prompt)
}

func (c *Client) ReviewMerge(ctx context.Context, prompt string) (string, error) {
	return c.call(ctx, prompt)
}

func (c *Client) MaxTokens() int                { return c.maxTokens }
func (c *Client) RequestTimeout() time.Duration { return c.timeout }
func (c *Client) ModelName() string             { return c.model }
func (c *Client) ProviderName() string          { return providerName }

// IsReady probes the local server. A model that is not running is the
// common case on developer machines, so the probe is short.
func (c *Client) IsReady(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) call(ctx context.Context, prompt string) (string, error) {
	reqBody := GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	url := c.baseURL + "/api/generate"

	var body []byte
	err = httpx.Do(ctx, c.retryConf, func(ctx context.Context) error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if reqErr != nil {
			return &httpx.Error{Type: httpx.ErrTypeUnknown, Message: reqErr.Error(), Provider: providerName}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, callErr := c.client.Do(req)
		if callErr != nil {
			return httpx.NewTransportError(providerName, callErr)
		}
		defer resp.Body.Close()

		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return &httpx.Error{
				Type:       httpx.ErrTypeUnknown,
				Message:    fmt.Sprintf("HTTP %d (failed to read response: %v)", resp.StatusCode, readErr),
				StatusCode: resp.StatusCode,
				Provider:   providerName,
			}
		}

		if resp.StatusCode >= 400 {
			return httpx.NewStatusError(providerName, resp.StatusCode, errorMessage(resp.StatusCode, respBody))
		}

		body = respBody
		return nil
	})
	if err != nil {
		return "", err
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("parse ollama response: %w", err)
	}
	return genResp.Response, nil
}

func errorMessage(statusCode int, body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Sprintf("HTTP %d", statusCode)
	}
	return errResp.Error
}
