package main

import (
	"github.com/spf13/cobra"

	"github.com/bkyoung/review-pipeline/internal/bus"
	"github.com/bkyoung/review-pipeline/internal/observability"
	"github.com/bkyoung/review-pipeline/internal/stage"
	"github.com/bkyoung/review-pipeline/internal/usecase/policy"
)

func newPolicyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "Run the policy evaluator consumer (stage 3)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			var evaluators []policy.Evaluator
			if a.cfg.Policy.Enabled {
				evaluators = append(evaluators, policy.NewNamePattern(a.cfg.Policy))
			}

			b := a.redisBus("policy")
			service := policy.NewService(b, observability.Component(a.logger, "policy"), evaluators...)

			runner := stage.NewRunner("policy", a.idempotencyStore(), a.logger)
			if err := b.Subscribe(bus.TopicContextCollected, runner.Wrap(service.Handle)); err != nil {
				return err
			}
			return runConsumer(b, a.logger, "policy")
		},
	}
}
