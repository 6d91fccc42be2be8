package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	webhookadapter "github.com/bkyoung/review-pipeline/internal/adapter/webhook"
	"github.com/bkyoung/review-pipeline/internal/observability"
	webhookusecase "github.com/bkyoung/review-pipeline/internal/usecase/webhook"
)

func newWebhookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "webhook",
		Short: "Run the webhook ingestion server (stage 1)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			b := a.redisBus("webhook")
			verifier := webhookadapter.NewHMACVerifier(a.cfg.Webhook.Secret)
			service := webhookusecase.NewService(verifier, b, a.idempotencyStore(),
				observability.Component(a.logger, "webhook"))

			server := webhookadapter.NewServer(webhookadapter.ServerConfig{
				Addr:            a.cfg.Server.Addr,
				ReadTimeout:     parseDuration(a.cfg.Server.ReadTimeout, 10*time.Second),
				ShutdownTimeout: parseDuration(a.cfg.Server.ShutdownTimeout, 15*time.Second),
				MaxBodyBytes:    a.cfg.Webhook.MaxBodyBytes,
			}, service, a.logger)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			server.Start()
			a.logger.Info("webhook server running", "addr", a.cfg.Server.Addr)
			<-ctx.Done()
			return server.Stop(context.Background())
		},
	}
}
