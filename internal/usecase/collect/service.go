// Package collect builds the pull request context the review pipeline
// works on: it fetches the diff and file metadata from GitHub, validates
// that the diff is reviewable, and publishes a context-collected event
// for every terminal outcome so downstream stages always hear back.
package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bkyoung/review-pipeline/internal/bus"
	"github.com/bkyoung/review-pipeline/internal/diff"
	"github.com/bkyoung/review-pipeline/internal/domain"
	"github.com/bkyoung/review-pipeline/internal/httpx"
)

// DefaultMaxDiffBytes caps the diff size the pipeline will review.
const DefaultMaxDiffBytes = 500 * 1024

// ContextSource fetches pull request data from the hosting platform.
type ContextSource interface {
	GetDiff(ctx context.Context, owner, repo string, number int) (string, error)
	ListFiles(ctx context.Context, owner, repo string, number int) ([]domain.FileChange, error)
}

// Service is the context collection stage. It consumes
// pull-request-received events and publishes context-collected events.
type Service struct {
	source       ContextSource
	publisher    bus.Publisher
	maxDiffBytes int
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(source ContextSource, publisher bus.Publisher, maxDiffBytes int, logger *slog.Logger) *Service {
	if maxDiffBytes <= 0 {
		maxDiffBytes = DefaultMaxDiffBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source:       source,
		publisher:    publisher,
		maxDiffBytes: maxDiffBytes,
		logger:       logger,
		now:          time.Now,
	}
}

// Handle processes one pull-request-received delivery. Collection always
// ends in a terminal status: COMPLETED when the diff is reviewable,
// SKIPPED when it is valid but out of scope, FAILED when it cannot be
// fetched or parsed. The terminal event is published in every case so
// the pipeline never goes silent on a pull request.
func (s *Service) Handle(ctx context.Context, env bus.Envelope) error {
	var received domain.PullRequestReceivedEvent
	if err := json.Unmarshal(env.Payload, &received); err != nil {
		// A payload that does not parse will not parse on redelivery
		// either; drop it instead of poisoning the partition.
		s.logger.ErrorContext(ctx, "discarding undecodable event",
			"topic", env.Topic, "event_id", env.EventID, "error", err)
		return nil
	}

	prCtx := domain.PullRequestContext{
		ContextID:         uuid.NewString(),
		RepositoryOwner:   received.RepositoryOwner,
		RepositoryName:    received.RepositoryName,
		PullRequestNumber: received.PullRequestNumber,
		Title:             received.Title,
		Status:            domain.CollectionInProgress,
		CorrelationID:     received.CorrelationID,
	}

	s.logger.InfoContext(ctx, "collecting pull request context",
		"repo", prCtx.RepositoryOwner+"/"+prCtx.RepositoryName,
		"pr", prCtx.PullRequestNumber,
		"context_id", prCtx.ContextID)

	reason := s.collect(ctx, &prCtx)
	prCtx.CollectedAt = s.now().UTC()

	event := domain.ContextCollectedEvent{
		EventMeta: domain.EventMeta{
			EventID:           uuid.NewString(),
			CorrelationID:     received.CorrelationID,
			RepositoryOwner:   received.RepositoryOwner,
			RepositoryName:    received.RepositoryName,
			PullRequestNumber: received.PullRequestNumber,
			Timestamp:         prCtx.CollectedAt,
		},
		ContextID: prCtx.ContextID,
		Title:     prCtx.Title,
		Author:    received.Author,
		CommitSHA: received.CommitSHA,
		Status:    prCtx.Status,
		Reason:    reason,
	}
	if prCtx.IsReadyForReview() {
		event.Diff = prCtx.Diff
		event.Files = prCtx.Files
	}

	s.logger.InfoContext(ctx, "context collection finished",
		"context_id", prCtx.ContextID,
		"status", prCtx.Status,
		"reason", reason,
		"files", len(prCtx.Files))

	if err := s.publisher.Publish(ctx, bus.TopicContextCollected, event); err != nil {
		return fmt.Errorf("publish context-collected event: %w", err)
	}
	return nil
}

// collect runs the state machine to a terminal status and returns the
// reason for a SKIPPED or FAILED outcome.
func (s *Service) collect(ctx context.Context, prCtx *domain.PullRequestContext) string {
	raw, err := s.source.GetDiff(ctx, prCtx.RepositoryOwner, prCtx.RepositoryName, prCtx.PullRequestNumber)
	if err != nil {
		prCtx.Status = domain.CollectionFailed
		s.logger.WarnContext(ctx, "diff fetch failed",
			"context_id", prCtx.ContextID,
			"error_type", httpx.Classify(err).String(),
			"error", err)
		return fmt.Sprintf("diff fetch failed: %v", err)
	}

	if len(raw) > s.maxDiffBytes {
		prCtx.Status = domain.CollectionSkipped
		return fmt.Sprintf("diff size %d exceeds limit %d", len(raw), s.maxDiffBytes)
	}

	result := diff.Validate(raw)
	switch {
	case result.ShouldSkip():
		prCtx.Status = domain.CollectionSkipped
		return string(result.Reason)
	case result.IsInvalid():
		prCtx.Status = domain.CollectionFailed
		return string(result.Reason)
	}

	files, err := s.source.ListFiles(ctx, prCtx.RepositoryOwner, prCtx.RepositoryName, prCtx.PullRequestNumber)
	if err != nil {
		// File metadata is supplementary; the diff alone is reviewable.
		s.logger.WarnContext(ctx, "file metadata fetch failed, continuing without it",
			"context_id", prCtx.ContextID, "error", err)
		files = nil
	}

	prCtx.Diff = raw
	prCtx.Files = files
	prCtx.Status = domain.CollectionCompleted
	return ""
}
