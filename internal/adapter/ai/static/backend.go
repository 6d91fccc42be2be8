// Package static is a deterministic Backend used in tests and local
// runs where no real model is available.
package static

import (
	"context"
	"time"
)

const providerName = "static"

// Backend returns a canned review for every prompt.
type Backend struct {
	model string
}

// NewBackend constructs a static backend.
func NewBackend(model string) *Backend {
	if model == "" {
		model = "static-v1"
	}
	return &Backend{model: model}
}

func (b *Backend) ReviewCode(_ context.Context, _ string) (string, error) {
	return "### Review\n\nNo blocking issues found. This is a canned review from the static backend.", nil
}

func (b *Backend) ReviewMerge(_ context.Context, _ string) (string, error) {
	return "### Review\n\nMerged review from the static backend.", nil
}

func (b *Backend) MaxTokens() int                { return 100000 }
func (b *Backend) RequestTimeout() time.Duration { return time.Second }
func (b *Backend) IsReady(context.Context) bool  { return true }
func (b *Backend) ModelName() string             { return b.model }
func (b *Backend) ProviderName() string          { return providerName }
