package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/bkyoung/review-pipeline/internal/domain"
)

// Memory is the in-process bus used by tests and single-binary runs. It
// delivers synchronously in publish order, which trivially satisfies the
// per-key ordering guarantee, and records everything it publishes so
// tests can assert on the traffic.
type Memory struct {
	mu        sync.Mutex
	handlers  map[string]Handler
	published map[string][]Envelope

	// FailPublish, when set, makes Publish return this error without
	// delivering. Lets tests exercise publish-failure paths.
	FailPublish error
}

// NewMemory creates an empty in-memory bus.
func NewMemory() *Memory {
	return &Memory{
		handlers:  make(map[string]Handler),
		published: make(map[string][]Envelope),
	}
}

var _ Publisher = (*Memory)(nil)
var _ Consumer = (*Memory)(nil)

// Publish seals the event, records it, and delivers it inline to the
// topic's handler if one is subscribed.
func (m *Memory) Publish(ctx context.Context, topic string, event domain.Event) error {
	if m.FailPublish != nil {
		return m.FailPublish
	}

	env, err := Seal(topic, event)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.published[topic] = append(m.published[topic], env)
	h := m.handlers[topic]
	m.mu.Unlock()

	if h != nil {
		// Handler errors are a consumer concern, not a publisher one; the
		// publish itself succeeded. Tests redeliver explicitly.
		_ = h(ctx, env)
	}
	return nil
}

// Subscribe registers the single handler for a topic.
func (m *Memory) Subscribe(topic string, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.handlers[topic]; dup {
		return fmt.Errorf("topic %s already subscribed", topic)
	}
	m.handlers[topic] = h
	return nil
}

// Run blocks until ctx is cancelled; delivery happens inline in Publish.
func (m *Memory) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Deliver re-injects an envelope to the topic handler, simulating an
// at-least-once redelivery.
func (m *Memory) Deliver(ctx context.Context, env Envelope) error {
	m.mu.Lock()
	h := m.handlers[env.Topic]
	m.mu.Unlock()
	if h == nil {
		return fmt.Errorf("no handler for topic %s", env.Topic)
	}
	env.Attempt++
	return h(ctx, env)
}

// Published returns a copy of everything published to a topic.
func (m *Memory) Published(topic string) []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Envelope, len(m.published[topic]))
	copy(out, m.published[topic])
	return out
}
