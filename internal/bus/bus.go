// Package bus is the event transport between pipeline stages. The
// production implementation rides Redis Streams with consumer groups; an
// in-memory implementation backs tests. Both deliver at-least-once and
// preserve publish order per partition key.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/bkyoung/review-pipeline/internal/domain"
)

// Topic names, one per stage transition.
const (
	TopicPullRequestReceived  = "pull-request-received"
	TopicContextCollected     = "context-collected"
	TopicPolicyFindings       = "policy-findings"
	TopicReviewStarted        = "review-started"
	TopicReviewCompleted      = "review-completed"
	TopicReviewFailed         = "review-failed"
	TopicCommentPostingFailed = "comment-posting-failed"
)

// Envelope is the wire frame around one event.
type Envelope struct {
	EventID       string
	Topic         string
	Key           string
	CorrelationID string
	Payload       []byte
	Attempt       int
}

// Decode unmarshals the payload into the topic's concrete event type.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s event: %w", e.Topic, err)
	}
	return nil
}

// Handler processes one delivered envelope. Returning nil acknowledges
// the delivery; returning an error leaves it eligible for redelivery.
type Handler func(ctx context.Context, env Envelope) error

// Publisher publishes events. Publish returns only after the broker has
// acknowledged persistence; a failure is surfaced to the caller, which
// decides whether to retry or drop with a logged failure. Publish never
// retries silently.
type Publisher interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
}

// Consumer delivers events to one registered handler per topic. Within a
// partition key, handlers run one at a time in publish order.
type Consumer interface {
	Subscribe(topic string, h Handler) error
	// Run blocks, dispatching deliveries until ctx is cancelled.
	Run(ctx context.Context) error
}

// Seal wraps an event into its envelope. Fails if the event cannot be
// marshalled; events are plain structs so that indicates a programming error.
func Seal(topic string, event domain.Event) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s event: %w", topic, err)
	}
	return Envelope{
		EventID:       event.ID(),
		Topic:         topic,
		Key:           event.PartitionKey(),
		CorrelationID: event.Correlation(),
		Payload:       payload,
		Attempt:       1,
	}, nil
}

// Partition maps a key onto one of n partitions. Same key, same
// partition, always: that is what makes per-repository ordering hold.
func Partition(key string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
