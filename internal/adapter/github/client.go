package github

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
	defaultBaseURL    = "https://api.github.com"
	defaultTimeout    = 30 * time.Second
	defaultAPIVersion = "2022-11-28"

	acceptJSON = "application/vnd.github+json"
	acceptDiff = "application/vnd.github.v3.diff"
)

// Client is an HTTP client for the GitHub REST API.
type Client struct {
	token      string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	retryConf  httpx.RetryConfig
}

// NewClient creates a GitHub API client. The token is a personal access
// token or the installation token from Actions.
func NewClient(token string) *Client {
	return &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		apiVersion: defaultAPIVersion,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retryConf:  httpx.DefaultRetryConfig(),
	}
}

// SetBaseURL sets a custom base URL (for testing and GitHub Enterprise).
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// SetAPIVersion overrides the X-GitHub-Api-Version sent on requests.
func (c *Client) SetAPIVersion(version string) {
	if version != "" {
		c.apiVersion = version
	}
}

// SetTimeout sets the HTTP timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// SetRetryConfig overrides the retry policy.
func (c *Client) SetRetryConfig(cfg httpx.RetryConfig) {
	c.retryConf = cfg
}

// GetDiff fetches the unified diff for a pull request. The body comes
// back raw; callers run it through the diff validator before use.
func (c *Client) GetDiff(ctx context.Context, owner, repo string, pullNumber int) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, pullNumber)

	body, err := c.do(ctx, http.MethodGet, url, acceptDiff, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ListFiles returns every changed file in a pull request, following
// pagination.
func (c *Client) ListFiles(ctx context.Context, owner, repo string, pullNumber int) ([]PullRequestFile, error) {
	var all []PullRequestFile
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/files?per_page=100&page=%d",
			c.baseURL, owner, repo, pullNumber, page)

		body, err := c.do(ctx, http.MethodGet, url, acceptJSON, nil)
		if err != nil {
			return nil, err
		}

		var files []PullRequestFile
		if err := json.Unmarshal(body, &files); err != nil {
			return nil, fmt.Errorf("parse pull request files: %w", err)
		}
		all = append(all, files...)
		if len(files) < 100 {
			return all, nil
		}
	}
}

// CreateReview posts a pull request review.
func (c *Client) CreateReview(ctx context.Context, owner, repo string, pullNumber int, input CreateReviewRequest) (*CreateReviewResponse, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/reviews", c.baseURL, owner, repo, pullNumber)

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal review request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, url, acceptJSON, payload)
	if err != nil {
		return nil, err
	}

	var resp CreateReviewResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse review response: %w", err)
	}
	return &resp, nil
}

// CreateIssueComment posts a plain comment on the PR conversation. Used
// for failure notices where a full review is not possible.
func (c *Client) CreateIssueComment(ctx context.Context, owner, repo string, number int, comment string) (*IssueCommentResponse, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.baseURL, owner, repo, number)

	payload, err := json.Marshal(IssueCommentRequest{Body: comment})
	if err != nil {
		return nil, fmt.Errorf("marshal comment request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, url, acceptJSON, payload)
	if err != nil {
		return nil, err
	}

	var resp IssueCommentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse comment response: %w", err)
	}
	return &resp, nil
}

// do executes one API call with retry, returning the response body.
func (c *Client) do(ctx context.Context, method, url, accept string, payload []byte) ([]byte, error) {
	var body []byte
	err := httpx.Do(ctx, c.retryConf, func(ctx context.Context) error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, reqErr := http.NewRequestWithContext(ctx, method, url, reader)
		if reqErr != nil {
			return &httpx.Error{Type: httpx.ErrTypeUnknown, Message: reqErr.Error(), Provider: providerName}
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", accept)
		req.Header.Set("X-GitHub-Api-Version", c.apiVersion)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, callErr := c.httpClient.Do(req)
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
			return MapHTTPError(resp.StatusCode, respBody)
		}

		body = respBody
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
