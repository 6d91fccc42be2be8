package github

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bkyoung/review-pipeline/internal/httpx"
)

const providerName = "github"

// MapHTTPError maps a GitHub API error response to a classified
// httpx.Error so the shared retry machinery decides retryability.
func MapHTTPError(statusCode int, body []byte) *httpx.Error {
	return httpx.NewStatusError(providerName, statusCode, parseErrorMessage(statusCode, body))
}

// parseErrorMessage extracts a readable message from GitHub's response.
func parseErrorMessage(statusCode int, body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 100 {
			bodyPreview = bodyPreview[:100] + "..."
		}
		if bodyPreview == "" {
			return fmt.Sprintf("HTTP %d", statusCode)
		}
		return fmt.Sprintf("HTTP %d: %s", statusCode, bodyPreview)
	}

	if errResp.Message == "" {
		return fmt.Sprintf("HTTP %d", statusCode)
	}

	if len(errResp.Errors) > 0 {
		var details []string
		for _, e := range errResp.Errors {
			if e.Message != "" {
				details = append(details, e.Message)
			} else if e.Field != "" {
				details = append(details, fmt.Sprintf("%s: %s", e.Field, e.Code))
			}
		}
		if len(details) > 0 {
			return fmt.Sprintf("%s: %s", errResp.Message, strings.Join(details, "; "))
		}
	}

	return errResp.Message
}
