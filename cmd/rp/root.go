package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/bkyoung/review-pipeline/internal/bus"
	"github.com/bkyoung/review-pipeline/internal/config"
	"github.com/bkyoung/review-pipeline/internal/httpx"
	"github.com/bkyoung/review-pipeline/internal/idempotency"
	"github.com/bkyoung/review-pipeline/internal/observability"
	"github.com/bkyoung/review-pipeline/internal/version"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rp",
		Short:         "AI-assisted pull request review pipeline",
		Version:       version.Get(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default rp.yaml in . or ~/.config/rp)")

	root.AddCommand(
		newWebhookCmd(),
		newCollectorCmd(),
		newPolicyCmd(),
		newReviewerCmd(),
		newIntegratorCmd(),
	)
	return root
}

// app holds what every stage needs after bootstrap.
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

func newApp() (*app, error) {
	cfg, err := config.Load(config.LoaderOptions{
		ConfigFile:  cfgFile,
		ConfigPaths: defaultConfigPaths(),
		FileName:    "rp",
		EnvPrefix:   "RP",
	})
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	logger := observability.Setup(observability.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	})

	return &app{cfg: cfg, logger: logger}, nil
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "rp"))
	}
	return paths
}

// redisBus connects the streams bus for one stage. Each stage gets its
// own consumer group so every stage sees every event it subscribes to.
func (a *app) redisBus(stage string) *bus.Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})

	group := a.cfg.Redis.Group
	if group == "" {
		group = "review-pipeline"
	}
	consumer := a.cfg.Redis.Consumer
	if consumer == "" {
		host, _ := os.Hostname()
		consumer = fmt.Sprintf("%s-%d", host, os.Getpid())
	}

	return bus.NewRedis(client, bus.RedisConfig{
		Partitions:    a.cfg.Redis.Partitions,
		Group:         group + "." + stage,
		Consumer:      consumer,
		Block:         parseDuration(a.cfg.Redis.Block, 5*time.Second),
		MinIdle:       parseDuration(a.cfg.Redis.MinIdle, 30*time.Second),
		MaxDeliveries: a.cfg.Redis.MaxDeliveries,
	}, observability.Component(a.logger, "bus"))
}

func (a *app) idempotencyStore() *idempotency.CacheStore {
	ttl := parseDuration(a.cfg.Idempotency.TTL, 24*time.Hour)
	maxEntries := a.cfg.Idempotency.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return idempotency.NewCacheStore(ttl, maxEntries,
		idempotency.WithLogger(observability.Component(a.logger, "idempotency")))
}

// retryConfig maps the global HTTP settings onto the retry helper.
func (a *app) retryConfig() httpx.RetryConfig {
	cfg := httpx.DefaultRetryConfig()
	if a.cfg.HTTP.MaxRetries > 0 {
		cfg.MaxAttempts = a.cfg.HTTP.MaxRetries
	}
	cfg.InitialBackoff = parseDuration(a.cfg.HTTP.InitialBackoff, cfg.InitialBackoff)
	cfg.MaxBackoff = parseDuration(a.cfg.HTTP.MaxBackoff, cfg.MaxBackoff)
	if a.cfg.HTTP.BackoffMultiplier > 0 {
		cfg.Multiplier = a.cfg.HTTP.BackoffMultiplier
	}
	return cfg
}

func (a *app) httpTimeout() time.Duration {
	return parseDuration(a.cfg.HTTP.Timeout, 30*time.Second)
}

// runConsumer blocks on the bus until a shutdown signal arrives.
func runConsumer(b *bus.Redis, logger *slog.Logger, stage string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("stage running", "stage", stage)
	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("stage stopped", "stage", stage)
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
