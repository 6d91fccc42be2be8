// Package integrate is the final pipeline stage: it posts review
// results back to the pull request and records every posting outcome.
// Success posts the review as a COMMENT review; a failed review posts a
// notice comment so the author knows the pipeline gave up; a posting
// that cannot be delivered raises a comment-posting-failed event.
package integrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bkyoung/review-pipeline/internal/bus"
	"github.com/bkyoung/review-pipeline/internal/domain"
	"github.com/bkyoung/review-pipeline/internal/httpx"
)

// Posting outcome statuses recorded in the review log.
const (
	StatusPosted       = "posted"
	StatusFailedNotice = "failed_notice"
	StatusFailed       = "failed"
)

// CommentPoster is the outbound port to the hosting platform.
type CommentPoster interface {
	PostReview(ctx context.Context, owner, repo string, number int, commitSHA, body string) error
	PostIssueComment(ctx context.Context, owner, repo string, number int, body string) error
}

// Outcome is one posting attempt's result for the review log.
type Outcome struct {
	Owner         string
	Repo          string
	PullNumber    int
	CorrelationID string
	Provider      string
	Model         string
	Status        string
	Error         string
}

// OutcomeRecorder persists posting outcomes for operator queries.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, outcome Outcome) error
}

// Service consumes review-completed and review-failed events.
type Service struct {
	poster    CommentPoster
	publisher bus.Publisher
	recorder  OutcomeRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates the integration stage. recorder may be nil when
// the review log is disabled.
func NewService(poster CommentPoster, publisher bus.Publisher, recorder OutcomeRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		poster:    poster,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleCompleted posts a finished review to the pull request.
func (s *Service) HandleCompleted(ctx context.Context, env bus.Envelope) error {
	var completed domain.ReviewCompletedEvent
	if err := json.Unmarshal(env.Payload, &completed); err != nil {
		s.logger.ErrorContext(ctx, "discarding undecodable event",
			"topic", env.Topic, "event_id", env.EventID, "error", err)
		return nil
	}

	err := s.poster.PostReview(ctx,
		completed.RepositoryOwner, completed.RepositoryName, completed.PullRequestNumber,
		completed.CommitSHA, completed.ReviewMarkdown)
	if err != nil {
		return s.postingFailed(ctx, completed.EventMeta, completed.ReviewID,
			completed.AIProvider, completed.AIModel, StatusFailed, err)
	}

	s.logger.InfoContext(ctx, "review posted",
		"review_id", completed.ReviewID,
		"repo", completed.PartitionKey(),
		"pr", completed.PullRequestNumber)
	s.record(ctx, completed.EventMeta, completed.AIProvider, completed.AIModel, StatusPosted, "")
	return nil
}

// HandleFailed posts a failure notice so the author knows no review is
// coming for this revision.
func (s *Service) HandleFailed(ctx context.Context, env bus.Envelope) error {
	var failed domain.ReviewFailedEvent
	if err := json.Unmarshal(env.Payload, &failed); err != nil {
		s.logger.ErrorContext(ctx, "discarding undecodable event",
			"topic", env.Topic, "event_id", env.EventID, "error", err)
		return nil
	}

	notice := failureNotice(failed)
	err := s.poster.PostIssueComment(ctx,
		failed.RepositoryOwner, failed.RepositoryName, failed.PullRequestNumber, notice)
	if err != nil {
		return s.postingFailed(ctx, failed.EventMeta, failed.ReviewID, "", "", StatusFailed, err)
	}

	s.logger.InfoContext(ctx, "failure notice posted",
		"review_id", failed.ReviewID,
		"repo", failed.PartitionKey(),
		"pr", failed.PullRequestNumber)
	s.record(ctx, failed.EventMeta, "", "", StatusFailedNotice, failed.ErrorMessage)
	return nil
}

// HandleContextCollected posts a notice when context collection ends
// without a reviewable context. COMPLETED collections belong to the
// review stage and are acknowledged without action here.
func (s *Service) HandleContextCollected(ctx context.Context, env bus.Envelope) error {
	var collected domain.ContextCollectedEvent
	if err := json.Unmarshal(env.Payload, &collected); err != nil {
		s.logger.ErrorContext(ctx, "discarding undecodable event",
			"topic", env.Topic, "event_id", env.EventID, "error", err)
		return nil
	}
	if collected.Status == domain.CollectionCompleted {
		return nil
	}

	notice := collectionNotice(collected)
	err := s.poster.PostIssueComment(ctx,
		collected.RepositoryOwner, collected.RepositoryName, collected.PullRequestNumber, notice)
	if err != nil {
		return s.postingFailed(ctx, collected.EventMeta, collected.ContextID, "", "", StatusFailed, err)
	}

	s.logger.InfoContext(ctx, "collection status notice posted",
		"context_id", collected.ContextID,
		"repo", collected.PartitionKey(),
		"pr", collected.PullRequestNumber,
		"status", collected.Status)
	s.record(ctx, collected.EventMeta, "", "", StatusFailedNotice, collected.Reason)
	return nil
}

// postingFailed gives up on the posting: the platform client has
// already retried transient errors, so whatever reaches here is
// permanent or exhausted. It records the outcome and raises
// comment-posting-failed with the classified error type.
func (s *Service) postingFailed(ctx context.Context, meta domain.EventMeta, reviewID, provider, model, status string, err error) error {
	errType := httpx.Classify(err)
	s.logger.WarnContext(ctx, "comment posting failed",
		"review_id", reviewID,
		"repo", meta.PartitionKey(),
		"pr", meta.PullRequestNumber,
		"error_type", errType.String(),
		"error", err)

	s.record(ctx, meta, provider, model, status, err.Error())

	event := domain.CommentPostingFailedEvent{
		EventMeta: domain.EventMeta{
			EventID:           uuid.NewString(),
			CorrelationID:     meta.CorrelationID,
			RepositoryOwner:   meta.RepositoryOwner,
			RepositoryName:    meta.RepositoryName,
			PullRequestNumber: meta.PullRequestNumber,
			Timestamp:         s.now().UTC(),
		},
		ReviewID:     reviewID,
		ErrorMessage: err.Error(),
		ErrorType:    errType.String(),
	}
	if pubErr := s.publisher.Publish(ctx, bus.TopicCommentPostingFailed, event); pubErr != nil {
		return fmt.Errorf("publish comment-posting-failed event: %w", pubErr)
	}
	return nil
}

// record is best-effort; a review log failure never blocks posting.
func (s *Service) record(ctx context.Context, meta domain.EventMeta, provider, model, status, errMsg string) {
	if s.recorder == nil {
		return
	}
	outcome := Outcome{
		Owner:         meta.RepositoryOwner,
		Repo:          meta.RepositoryName,
		PullNumber:    meta.PullRequestNumber,
		CorrelationID: meta.CorrelationID,
		Provider:      provider,
		Model:         model,
		Status:        status,
		Error:         errMsg,
	}
	if err := s.recorder.RecordOutcome(ctx, outcome); err != nil {
		s.logger.WarnContext(ctx, "review log write failed", "error", err)
	}
}

// collectionNotice renders the comment telling the author why no
// review will be produced for this revision.
func collectionNotice(collected domain.ContextCollectedEvent) string {
	var b strings.Builder
	switch collected.Status {
	case domain.CollectionSkipped:
		b.WriteString("## Automated Review Skipped\n\n")
		b.WriteString("The automated code review was skipped for this pull request.\n\n")
	default:
		b.WriteString("## Automated Review Failed\n\n")
		b.WriteString("The automated code review could not be started because context collection failed.\n\n")
	}
	if collected.Reason != "" {
		fmt.Fprintf(&b, "**Reason:** %s\n\n", collected.Reason)
	}
	fmt.Fprintf(&b, "_Reference: `%s`_\n", collected.CorrelationID)
	return b.String()
}

// failureNotice renders the comment telling the author the automated
// review could not be produced. The correlation id lets an operator
// find every log line for the run.
func failureNotice(failed domain.ReviewFailedEvent) string {
	var b strings.Builder
	b.WriteString("## Automated Review Failed\n\n")
	b.WriteString("The automated code review for this pull request could not be completed.\n\n")
	fmt.Fprintf(&b, "**Reason:** %s\n\n", failed.ErrorMessage)
	fmt.Fprintf(&b, "_Reference: `%s`_\n", failed.CorrelationID)
	return b.String()
}
