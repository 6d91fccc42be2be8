package main

import (
	"github.com/spf13/cobra"

	"github.com/bkyoung/review-pipeline/internal/adapter/github"
	"github.com/bkyoung/review-pipeline/internal/bus"
	"github.com/bkyoung/review-pipeline/internal/observability"
	"github.com/bkyoung/review-pipeline/internal/stage"
	"github.com/bkyoung/review-pipeline/internal/usecase/collect"
)

func newCollectorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collector",
		Short: "Run the context collector consumer (stage 2)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			b := a.redisBus("collector")
			source := github.NewContextSource(a.githubClient())
			service := collect.NewService(source, b, a.cfg.Collector.MaxDiffBytes,
				observability.Component(a.logger, "collector"))

			runner := stage.NewRunner("collector", a.idempotencyStore(), a.logger)
			if err := b.Subscribe(bus.TopicPullRequestReceived, runner.Wrap(service.Handle)); err != nil {
				return err
			}
			return runConsumer(b, a.logger, "collector")
		},
	}
}

func (a *app) githubClient() *github.Client {
	client := github.NewClient(a.cfg.GitHub.Token)
	if a.cfg.GitHub.BaseURL != "" {
		client.SetBaseURL(a.cfg.GitHub.BaseURL)
	}
	client.SetAPIVersion(a.cfg.GitHub.APIVersion)
	client.SetTimeout(a.httpTimeout())
	client.SetRetryConfig(a.retryConfig())
	return client
}
