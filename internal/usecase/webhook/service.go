// Package webhook holds the ingestion use case: authenticate a GitHub
// delivery, map it to a domain event, suppress duplicates, and publish
// onto the bus.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/bkyoung/review-pipeline/internal/bus"
	"github.com/bkyoung/review-pipeline/internal/correlation"
	"github.com/bkyoung/review-pipeline/internal/domain"
)

// ErrInvalidSignature rejects deliveries whose HMAC does not verify.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrMalformedPayload rejects deliveries whose JSON body cannot be
// mapped to a pull request event.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// ValidationResult reports the outcome of signature verification. The
// failure reason is set exactly when Valid is false.
type ValidationResult struct {
	Valid         bool
	FailureReason string
}

// ValidResult returns a passing verification result.
func ValidResult() ValidationResult {
	return ValidationResult{Valid: true}
}

// InvalidResult returns a failing verification result with a reason.
func InvalidResult(reason string) ValidationResult {
	return ValidationResult{Valid: false, FailureReason: reason}
}

// SignatureVerifier authenticates a raw delivery body against its
// X-Hub-Signature-256 header value.
type SignatureVerifier interface {
	Verify(payload []byte, signature string) ValidationResult
}

// DeliveryLog suppresses duplicate webhook deliveries. TryStart claims a
// delivery id; Forget releases it when publishing fails so GitHub's
// redelivery can succeed.
type DeliveryLog interface {
	TryStart(deliveryID string) bool
	Forget(deliveryID string)
}

// Service is the webhook ingestion use case.
type Service struct {
	verifier   SignatureVerifier
	publisher  bus.Publisher
	deliveries DeliveryLog
	logger     *slog.Logger
	now        func() time.Time
}

// NewService wires the ingestion use case.
func NewService(verifier SignatureVerifier, publisher bus.Publisher, deliveries DeliveryLog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		verifier:   verifier,
		publisher:  publisher,
		deliveries: deliveries,
		logger:     logger,
		now:        time.Now,
	}
}

// Receive authenticates, parses, and publishes one delivery. A nil
// return means the delivery was handled, including the cases where it
// was a duplicate or an action that does not trigger review.
func (s *Service) Receive(ctx context.Context, payload []byte, signature, deliveryID string) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}
	if signature == "" {
		return fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}

	result := s.verifier.Verify(payload, signature)
	if !result.Valid {
		s.logger.WarnContext(ctx, "webhook signature validation failed",
			"reason", result.FailureReason, "delivery_id", deliveryID)
		return fmt.Errorf("%w: %s", ErrInvalidSignature, result.FailureReason)
	}

	event, action, err := s.mapToEvent(payload)
	if err != nil {
		return err
	}
	if action == "" {
		// Unsupported or blank action, acknowledged without publishing.
		return nil
	}
	if !event.Action.TriggersReview() {
		s.logger.DebugContext(ctx, "action does not trigger review",
			"action", string(event.Action), "pr", event.PullRequestNumber)
		return nil
	}

	if deliveryID != "" && !s.deliveries.TryStart(deliveryID) {
		s.logger.InfoContext(ctx, "duplicate delivery suppressed", "delivery_id", deliveryID)
		return nil
	}

	ctx = correlation.NewContext(ctx, event.CorrelationID)
	if err := s.publisher.Publish(ctx, bus.TopicPullRequestReceived, event); err != nil {
		// Release the delivery id so GitHub redelivery is not treated as
		// a duplicate of an event that never made it onto the bus.
		if deliveryID != "" {
			s.deliveries.Forget(deliveryID)
		}
		s.logger.ErrorContext(ctx, "webhook publish failed", "error", err, "delivery_id", deliveryID)
		return fmt.Errorf("publish pull request event: %w", err)
	}

	s.logger.InfoContext(ctx, "pull request event published",
		"repo", event.PartitionKey(), "pr", event.PullRequestNumber, "action", string(event.Action))
	return nil
}

type pullRequestPayload struct {
	Action     string `json:"action"`
	Number     int    `json:"number"`
	Repository struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
	PullRequest struct {
		Title string `json:"title"`
		User  struct {
			Login string `json:"login"`
		} `json:"user"`
		Head struct {
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
}

func (s *Service) mapToEvent(payload []byte) (domain.PullRequestReceivedEvent, domain.WebhookAction, error) {
	var dto pullRequestPayload
	if err := json.Unmarshal(payload, &dto); err != nil {
		return domain.PullRequestReceivedEvent{}, "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	action, supported := domain.ParseWebhookAction(dto.Action)
	if !supported {
		return domain.PullRequestReceivedEvent{}, "", nil
	}

	if dto.Repository.Owner.Login == "" {
		return domain.PullRequestReceivedEvent{}, "", fmt.Errorf("%w: missing repository owner", ErrMalformedPayload)
	}
	if dto.Repository.Name == "" {
		return domain.PullRequestReceivedEvent{}, "", fmt.Errorf("%w: missing repository name", ErrMalformedPayload)
	}
	if dto.Number <= 0 {
		return domain.PullRequestReceivedEvent{}, "", fmt.Errorf("%w: missing or invalid pull request number", ErrMalformedPayload)
	}
	if dto.PullRequest.Head.SHA == "" {
		return domain.PullRequestReceivedEvent{}, "", fmt.Errorf("%w: missing commit sha", ErrMalformedPayload)
	}

	author := dto.PullRequest.User.Login
	if author == "" {
		author = "unknown"
	}
	var installationID string
	if dto.Installation.ID != 0 {
		installationID = strconv.FormatInt(dto.Installation.ID, 10)
	}

	event := domain.PullRequestReceivedEvent{
		EventMeta: domain.EventMeta{
			EventID:           uuid.NewString(),
			CorrelationID:     correlation.Generate(),
			RepositoryOwner:   dto.Repository.Owner.Login,
			RepositoryName:    dto.Repository.Name,
			PullRequestNumber: dto.Number,
			Timestamp:         s.now().UTC(),
		},
		Action:         action,
		Title:          dto.PullRequest.Title,
		Author:         author,
		CommitSHA:      dto.PullRequest.Head.SHA,
		Platform:       "github",
		InstallationID: installationID,
	}
	return event, action, nil
}
