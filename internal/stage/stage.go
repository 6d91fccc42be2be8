// Package stage wraps bus handlers with the cross-cutting behavior every
// pipeline stage needs: correlation propagation and duplicate
// suppression. Stage business logic stays in the usecase packages; this
// is the plumbing around it.
package stage

import (
	"context"
	"log/slog"

	"github.com/bkyoung/review-pipeline/internal/bus"
	"github.com/bkyoung/review-pipeline/internal/correlation"
	"github.com/bkyoung/review-pipeline/internal/idempotency"
)

// Runner decorates handlers for one named stage.
type Runner struct {
	name   string
	idem   *idempotency.CacheStore
	logger *slog.Logger
}

// NewRunner creates a stage runner. The idempotency store may be shared
// across stages because event ids are globally unique.
func NewRunner(name string, idem *idempotency.CacheStore, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		name:   name,
		idem:   idem,
		logger: logger.With("stage", name),
	}
}

// Wrap returns a handler with correlation and idempotency applied:
//
//  1. The envelope's correlation id is placed on the context so every
//     log line and downstream event carries it.
//  2. A duplicate event id is acknowledged without running the handler;
//     at-least-once delivery makes duplicates normal, not errors.
//  3. A handler failure releases the idempotency claim so the
//     redelivered event gets processed, then propagates the error to
//     leave the delivery pending.
func (r *Runner) Wrap(h bus.Handler) bus.Handler {
	return func(ctx context.Context, env bus.Envelope) error {
		if env.CorrelationID != "" {
			ctx = correlation.NewContext(ctx, env.CorrelationID)
		}

		if !r.idem.TryStart(env.EventID) {
			r.logger.InfoContext(ctx, "duplicate event discarded",
				"event_id", env.EventID, "topic", env.Topic, "attempt", env.Attempt)
			return nil
		}

		if err := h(ctx, env); err != nil {
			r.idem.Forget(env.EventID)
			r.logger.WarnContext(ctx, "stage handler failed",
				"event_id", env.EventID, "topic", env.Topic, "attempt", env.Attempt, "error", err)
			return err
		}

		r.idem.MarkProcessed(env.EventID)
		return nil
	}
}
