package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bkyoung/review-pipeline/internal/bus"
	"github.com/bkyoung/review-pipeline/internal/domain"
)

// Service is the policy stage. It consumes context-collected events and
// publishes a findings event for every COMPLETED context, including an
// empty findings list when all checks pass.
type Service struct {
	evaluators []Evaluator
	publisher  bus.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(publisher bus.Publisher, logger *slog.Logger, evaluators ...Evaluator) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		evaluators: evaluators,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Service) Handle(ctx context.Context, env bus.Envelope) error {
	var collected domain.ContextCollectedEvent
	if err := json.Unmarshal(env.Payload, &collected); err != nil {
		s.logger.ErrorContext(ctx, "discarding undecodable event",
			"topic", env.Topic, "event_id", env.EventID, "error", err)
		return nil
	}

	if collected.Status != domain.CollectionCompleted {
		s.logger.DebugContext(ctx, "skipping non-completed context",
			"context_id", collected.ContextID, "status", collected.Status)
		return nil
	}

	in := Input{
		Title: collected.Title,
		Files: collected.Files,
		Diff:  collected.Diff,
	}

	var findings []domain.PolicyFinding
	for _, e := range s.evaluators {
		results := e.Evaluate(ctx, in)
		s.logger.DebugContext(ctx, "evaluator finished",
			"evaluator", e.Name(), "findings", len(results))
		findings = append(findings, results...)
	}

	s.logger.InfoContext(ctx, "policy evaluation finished",
		"context_id", collected.ContextID, "findings", len(findings))

	event := domain.PolicyFindingsEvent{
		EventMeta: domain.EventMeta{
			EventID:           uuid.NewString(),
			CorrelationID:     collected.CorrelationID,
			RepositoryOwner:   collected.RepositoryOwner,
			RepositoryName:    collected.RepositoryName,
			PullRequestNumber: collected.PullRequestNumber,
			Timestamp:         s.now().UTC(),
		},
		ContextID: collected.ContextID,
		Findings:  findings,
	}
	if err := s.publisher.Publish(ctx, bus.TopicPolicyFindings, event); err != nil {
		return fmt.Errorf("publish policy-findings event: %w", err)
	}
	return nil
}
