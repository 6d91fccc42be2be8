// Package ai defines the backend abstraction over AI model providers
// and the router that selects which backend reviews a pull request.
package ai

import (
	"context"
	"time"
)

// Backend is one AI model provider capable of generating reviews.
type Backend interface {
	// ReviewCode generates review feedback for one prompt.
	ReviewCode(ctx context.Context, prompt string) (string, error)
	// ReviewMerge combines several partial reviews into one.
	ReviewMerge(ctx context.Context, prompt string) (string, error)
	// MaxTokens is the prompt budget for a single call.
	MaxTokens() int
	// RequestTimeout bounds one model call.
	RequestTimeout() time.Duration
	// IsReady reports whether the backend can serve requests right now.
	IsReady(ctx context.Context) bool
	ModelName() string
	ProviderName() string
}
