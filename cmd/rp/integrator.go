package main

import (
	"github.com/spf13/cobra"

	"github.com/bkyoung/review-pipeline/internal/adapter/github"
	"github.com/bkyoung/review-pipeline/internal/adapter/store/sqlite"
	"github.com/bkyoung/review-pipeline/internal/bus"
	"github.com/bkyoung/review-pipeline/internal/observability"
	"github.com/bkyoung/review-pipeline/internal/stage"
	"github.com/bkyoung/review-pipeline/internal/usecase/integrate"
)

func newIntegratorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "integrator",
		Short: "Run the comment integrator consumer (stage 5)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			var recorder integrate.OutcomeRecorder
			if a.cfg.Store.Enabled {
				store, err := sqlite.NewStore(a.cfg.Store.Path)
				if err != nil {
					return err
				}
				defer store.Close()
				recorder = sqlite.NewRecorder(store)
			}

			b := a.redisBus("integrator")
			poster := github.NewReviewPoster(a.githubClient())
			service := integrate.NewService(poster, b, recorder,
				observability.Component(a.logger, "integrator"))

			runner := stage.NewRunner("integrator", a.idempotencyStore(), a.logger)
			if err := b.Subscribe(bus.TopicReviewCompleted, runner.Wrap(service.HandleCompleted)); err != nil {
				return err
			}
			if err := b.Subscribe(bus.TopicReviewFailed, runner.Wrap(service.HandleFailed)); err != nil {
				return err
			}
			if err := b.Subscribe(bus.TopicContextCollected, runner.Wrap(service.HandleContextCollected)); err != nil {
				return err
			}
			return runConsumer(b, a.logger, "integrator")
		},
	}
}
