// Package gemini is the Google Gemini backend for review generation.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bkyoung/review-pipeline/internal/httpx"
)

const (
	providerName   = "gemini"
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultTimeout = 60 * time.Second
	defaultTokens  = 30000
)

// Client is an HTTP client for the Gemini generateContent API,
// implementing ai.Backend.
type Client struct {
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
	timeout   time.Duration
	retryConf httpx.RetryConfig
	client    *http.Client
}

// Config holds the Gemini backend settings.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
	Retry     httpx.RetryConfig
}

// NewClient creates a Gemini client. Zero-valued config fields fall back
// to defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
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
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		baseURL:   cfg.BaseURL,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		retryConf: cfg.Retry,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// SetBaseURL sets a custom base URL (for testing).
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

func (c *Client) ReviewCode(ctx context.Context, prompt string) (string, error) {
	return c.call(ctx, prompt)
}

func (c *Client) ReviewMerge(ctx context.Context, prompt string) (string, error) {
	return c.call(ctx, prompt)
}

func (c *Client) MaxTokens() int                 { return c.maxTokens }
func (c *Client) RequestTimeout() time.Duration  { return c.timeout }
func (c *Client) ModelName() string              { return c.model }
func (c *Client) ProviderName() string           { return providerName }
func (c *Client) IsReady(_ context.Context) bool { return c.apiKey != "" }

func (c *Client) call(ctx context.Context, prompt string) (string, error) {
	reqBody := GenerateContentRequest{
		Contents: []Content{{Parts: []Part{{Text: prompt}}}},
		GenerationConfig: &GenerationConfig{
			MaxOutputTokens: c.maxTokens,
			CandidateCount:  1,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

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

	var genResp GenerateContentResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("parse gemini response: %w", err)
	}
	if len(genResp.Candidates) == 0 {
		return "", fmt.Errorf("gemini response contained no candidates")
	}

	candidate := genResp.Candidates[0]
	if candidate.FinishReason == "SAFETY" {
		return "", &httpx.Error{
			Type:     httpx.ErrTypeUnknown,
			Message:  "content blocked by safety filters",
			Provider: providerName,
		}
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		parts = append(parts, part.Text)
	}
	return strings.Join(parts, ""), nil
}

func errorMessage(statusCode int, body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return fmt.Sprintf("HTTP %d", statusCode)
	}
	return errResp.Error.Message
}
