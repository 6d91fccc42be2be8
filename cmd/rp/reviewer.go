package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/bkyoung/review-pipeline/internal/adapter/ai"
	"github.com/bkyoung/review-pipeline/internal/adapter/ai/gemini"
	"github.com/bkyoung/review-pipeline/internal/adapter/ai/ollama"
	"github.com/bkyoung/review-pipeline/internal/adapter/ai/static"
	"github.com/bkyoung/review-pipeline/internal/bus"
	"github.com/bkyoung/review-pipeline/internal/config"
	"github.com/bkyoung/review-pipeline/internal/httpx"
	"github.com/bkyoung/review-pipeline/internal/observability"
	"github.com/bkyoung/review-pipeline/internal/stage"
	"github.com/bkyoung/review-pipeline/internal/usecase/review"
)

func newReviewerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reviewer",
		Short: "Run the AI reviewer consumer (stage 4)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			router := a.buildRouter()
			b := a.redisBus("reviewer")
			service := review.NewService(routerSelector{router}, b, ai.EstimateTokens,
				a.cfg.Review.Instructions, a.cfg.Review.MergeEnabled,
				observability.Component(a.logger, "reviewer"))

			runner := stage.NewRunner("reviewer", a.idempotencyStore(), a.logger)
			if err := b.Subscribe(bus.TopicContextCollected, runner.Wrap(service.Handle)); err != nil {
				return err
			}
			return runConsumer(b, a.logger, "reviewer")
		},
	}
}

// buildRouter registers every enabled backend. Registration order is the
// fallback order when the configured backend is not ready.
func (a *app) buildRouter() *ai.Router {
	router := ai.NewRouter(a.cfg.Router.Provider, observability.Component(a.logger, "ai"))

	if p, ok := a.enabledProvider("gemini"); ok {
		timeout, retry := a.providerHTTP(p, 60*time.Second)
		router.Register(gemini.NewClient(gemini.Config{
			APIKey:    p.APIKey,
			Model:     p.Model,
			BaseURL:   p.BaseURL,
			MaxTokens: p.MaxTokens,
			Timeout:   timeout,
			Retry:     retry,
		}))
	}
	if p, ok := a.enabledProvider("ollama"); ok {
		timeout, retry := a.providerHTTP(p, 120*time.Second)
		router.Register(ollama.NewClient(ollama.Config{
			BaseURL:   p.BaseURL,
			Model:     p.Model,
			MaxTokens: p.MaxTokens,
			Timeout:   timeout,
			Retry:     retry,
		}))
	}
	if p, ok := a.enabledProvider("static"); ok {
		router.Register(static.NewBackend(p.Model))
	}

	return router
}

func (a *app) enabledProvider(name string) (config.ProviderConfig, bool) {
	p, ok := a.cfg.Providers[name]
	return p, ok && p.Enabled
}

// providerHTTP resolves a provider's timeout and retry settings, letting
// per-provider overrides win over the global HTTP config.
func (a *app) providerHTTP(p config.ProviderConfig, fallbackTimeout time.Duration) (time.Duration, httpx.RetryConfig) {
	timeout := fallbackTimeout
	if p.Timeout != nil {
		timeout = parseDuration(*p.Timeout, fallbackTimeout)
	}

	retry := a.retryConfig()
	if p.MaxRetries != nil && *p.MaxRetries > 0 {
		retry.MaxAttempts = *p.MaxRetries
	}
	if p.InitialBackoff != nil {
		retry.InitialBackoff = parseDuration(*p.InitialBackoff, retry.InitialBackoff)
	}
	if p.MaxBackoff != nil {
		retry.MaxBackoff = parseDuration(*p.MaxBackoff, retry.MaxBackoff)
	}
	return timeout, retry
}

// routerSelector narrows the router's backend type to the reviewer's
// port.
type routerSelector struct {
	router *ai.Router
}

func (s routerSelector) Active(ctx context.Context) (review.Backend, error) {
	backend, err := s.router.Active(ctx)
	if err != nil {
		return nil, err
	}
	return backend, nil
}
