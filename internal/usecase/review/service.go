// Package review is the AI review stage: it turns a collected pull
// request context into a posted-ready review by fanning the diff out to
// the active AI backend file by file and merging the results.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bkyoung/review-pipeline/internal/bus"
	"github.com/bkyoung/review-pipeline/internal/diff"
	"github.com/bkyoung/review-pipeline/internal/domain"
)

// maxConcurrentFiles bounds the per-file fan-out so a large pull request
// does not open dozens of simultaneous AI requests.
const maxConcurrentFiles = 4

// Backend is the outbound port for AI review calls.
type Backend interface {
	ReviewCode(ctx context.Context, prompt string) (string, error)
	ReviewMerge(ctx context.Context, prompt string) (string, error)
	MaxTokens() int
	RequestTimeout() time.Duration
	ProviderName() string
	ModelName() string
}

// BackendSelector picks the backend to use for a review, falling back
// when the preferred one is unavailable.
type BackendSelector interface {
	Active(ctx context.Context) (Backend, error)
}

// TokenCounter estimates the token count of a prompt.
type TokenCounter func(text string) int

// Service is the review stage. It consumes context-collected events and
// publishes review-started, then review-completed or review-failed.
type Service struct {
	backends     BackendSelector
	publisher    bus.Publisher
	countTokens  TokenCounter
	instructions string
	mergeEnabled bool
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(backends BackendSelector, publisher bus.Publisher, countTokens TokenCounter, instructions string, mergeEnabled bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backends:     backends,
		publisher:    publisher,
		countTokens:  countTokens,
		instructions: instructions,
		mergeEnabled: mergeEnabled,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *Service) Handle(ctx context.Context, env bus.Envelope) error {
	var collected domain.ContextCollectedEvent
	if err := json.Unmarshal(env.Payload, &collected); err != nil {
		s.logger.ErrorContext(ctx, "discarding undecodable event",
			"topic", env.Topic, "event_id", env.EventID, "error", err)
		return nil
	}

	if collected.Status != domain.CollectionCompleted || collected.Diff == "" {
		s.logger.DebugContext(ctx, "context not reviewable, skipping",
			"context_id", collected.ContextID, "status", collected.Status)
		return nil
	}

	reviewID := uuid.NewString()

	backend, err := s.backends.Active(ctx)
	if err != nil {
		return s.publishFailed(ctx, collected, reviewID, fmt.Sprintf("no ai backend available: %v", err))
	}

	s.logger.InfoContext(ctx, "review started",
		"review_id", reviewID,
		"context_id", collected.ContextID,
		"provider", backend.ProviderName(),
		"model", backend.ModelName())

	// Started is advisory; losing it must not abort the review.
	started := domain.ReviewStartedEvent{
		EventMeta: s.meta(collected),
		ReviewID:  reviewID,
		ContextID: collected.ContextID,
	}
	if err := s.publisher.Publish(ctx, bus.TopicReviewStarted, started); err != nil {
		s.logger.WarnContext(ctx, "review-started publish failed", "review_id", reviewID, "error", err)
	}

	markdown, err := s.review(ctx, backend, collected)
	if err != nil {
		s.logger.WarnContext(ctx, "review failed",
			"review_id", reviewID, "context_id", collected.ContextID, "error", err)
		return s.publishFailed(ctx, collected, reviewID, err.Error())
	}

	completed := domain.ReviewCompletedEvent{
		EventMeta:      s.meta(collected),
		ReviewID:       reviewID,
		ContextID:      collected.ContextID,
		CommitSHA:      collected.CommitSHA,
		ReviewMarkdown: markdown,
		AIProvider:     backend.ProviderName(),
		AIModel:        backend.ModelName(),
	}
	if err := s.publisher.Publish(ctx, bus.TopicReviewCompleted, completed); err != nil {
		return fmt.Errorf("publish review-completed event: %w", err)
	}
	return nil
}

// review produces the final Markdown for one context or an error when
// no review could be generated.
func (s *Service) review(ctx context.Context, backend Backend, collected domain.ContextCollectedEvent) (string, error) {
	pr := domain.NewPRContext(collected.Title)
	chunks := diff.SplitFiles(collected.Diff)
	if len(chunks) == 0 {
		return "", fmt.Errorf("diff contains no file chunks")
	}

	prompts := make([]string, 0, len(chunks))
	var skipped []string
	for _, chunk := range chunks {
		prompt := buildFilePrompt(pr, s.instructions, chunk)
		if s.countTokens(prompt) > backend.MaxTokens() {
			skipped = append(skipped, chunkFilename(chunk))
			continue
		}
		prompts = append(prompts, prompt)
	}
	if len(prompts) == 0 {
		return "", fmt.Errorf("all %d files exceed the %d token limit", len(chunks), backend.MaxTokens())
	}

	sections, err := s.reviewFiles(ctx, backend, prompts)
	if err != nil {
		return "", err
	}

	markdown := s.merge(ctx, backend, pr, sections)
	if len(skipped) > 0 {
		markdown += skippedNotice(skipped)
	}
	return markdown, nil
}

// reviewFiles runs the per-file prompts concurrently, preserving input
// order in the results. The first error wins and fails the review.
func (s *Service) reviewFiles(ctx context.Context, backend Backend, prompts []string) ([]string, error) {
	sections := make([]string, len(prompts))
	errs := make([]error, len(prompts))
	sem := make(chan struct{}, maxConcurrentFiles)

	var wg sync.WaitGroup
	for i, prompt := range prompts {
		wg.Add(1)
		go func(i int, prompt string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			callCtx, cancel := context.WithTimeout(ctx, backend.RequestTimeout())
			defer cancel()
			sections[i], errs[i] = backend.ReviewCode(callCtx, prompt)
		}(i, prompt)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("file review failed: %w", err)
		}
	}
	return sections, nil
}

// merge combines per-file reviews into one document, falling back to
// plain concatenation when the merge pass is disabled, the combined
// input exceeds the token limit, or the merge call fails.
func (s *Service) merge(ctx context.Context, backend Backend, pr domain.PRContext, sections []string) string {
	if len(sections) == 1 {
		return sections[0]
	}
	if !s.mergeEnabled {
		return concatSections(sections)
	}

	prompt := buildMergePrompt(pr, sections)
	if s.countTokens(prompt) > backend.MaxTokens() {
		s.logger.InfoContext(ctx, "combined reviews exceed token limit, concatenating",
			"sections", len(sections))
		return concatSections(sections)
	}

	callCtx, cancel := context.WithTimeout(ctx, backend.RequestTimeout())
	defer cancel()
	merged, err := backend.ReviewMerge(callCtx, prompt)
	if err != nil {
		s.logger.WarnContext(ctx, "merge pass failed, concatenating", "error", err)
		return concatSections(sections)
	}
	return merged
}

func (s *Service) publishFailed(ctx context.Context, collected domain.ContextCollectedEvent, reviewID, message string) error {
	failed := domain.ReviewFailedEvent{
		EventMeta:    s.meta(collected),
		ReviewID:     reviewID,
		ContextID:    collected.ContextID,
		ErrorMessage: message,
	}
	if err := s.publisher.Publish(ctx, bus.TopicReviewFailed, failed); err != nil {
		return fmt.Errorf("publish review-failed event: %w", err)
	}
	return nil
}

func (s *Service) meta(collected domain.ContextCollectedEvent) domain.EventMeta {
	return domain.EventMeta{
		EventID:           uuid.NewString(),
		CorrelationID:     collected.CorrelationID,
		RepositoryOwner:   collected.RepositoryOwner,
		RepositoryName:    collected.RepositoryName,
		PullRequestNumber: collected.PullRequestNumber,
		Timestamp:         s.now().UTC(),
	}
}

// chunkFilename extracts the target path from a "diff --git a/x b/y"
// header for the skipped-files notice.
func chunkFilename(chunk string) string {
	line, _, _ := strings.Cut(chunk, "\n")
	if idx := strings.Index(line, " b/"); idx >= 0 {
		return line[idx+len(" b/"):]
	}
	return "(unknown file)"
}
