package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStreamNaming(t *testing.T) {
	r := NewRedis(nil, RedisConfig{Partitions: 4, Group: "review-pipeline.collector"}, nil)
	assert.Equal(t, "pull-request-received.p0", r.stream(TopicPullRequestReceived, 0))
	assert.Equal(t, "context-collected.p3", r.stream(TopicContextCollected, 3))
}

func TestRedisConfigDefaults(t *testing.T) {
	cfg := RedisConfig{}.withDefaults()
	assert.Equal(t, 4, cfg.Partitions)
	assert.NotZero(t, cfg.Block)
	assert.NotZero(t, cfg.MinIdle)
	assert.Equal(t, 5, cfg.MaxDeliveries)
}

func TestDeadLetterStreamNaming(t *testing.T) {
	assert.Equal(t, "review-completed.dlt", deadLetterStream(TopicReviewCompleted))
}

func TestRedisDispatchCarriesDeliveryAttempt(t *testing.T) {
	r := NewRedis(nil, RedisConfig{}, nil)
	var got Envelope
	require.NoError(t, r.Subscribe(TopicReviewCompleted, func(ctx context.Context, env Envelope) error {
		got = env
		return errors.New("boom")
	}))

	msg := redis.XMessage{ID: "1-0", Values: map[string]any{"payload": "{}", "attempt": "1"}}
	r.dispatch(context.Background(), TopicReviewCompleted, "review-completed.p0", msg, 4)
	assert.Equal(t, 4, got.Attempt)
}

func TestParseEnvelope(t *testing.T) {
	msg := redis.XMessage{
		ID: "1-0",
		Values: map[string]any{
			"event_id":       "evt-1",
			"key":            "octocat/repo",
			"correlation_id": "corr-1",
			"payload":        `{"field":"value"}`,
			"attempt":        "3",
		},
	}

	env, err := parseEnvelope(TopicContextCollected, msg)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", env.EventID)
	assert.Equal(t, "octocat/repo", env.Key)
	assert.Equal(t, "corr-1", env.CorrelationID)
	assert.Equal(t, TopicContextCollected, env.Topic)
	assert.Equal(t, 3, env.Attempt)
	assert.JSONEq(t, `{"field":"value"}`, string(env.Payload))
}

func TestParseEnvelopeDefaultsAttempt(t *testing.T) {
	env, err := parseEnvelope(TopicReviewStarted, redis.XMessage{
		Values: map[string]any{"payload": "{}"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, env.Attempt)
}

func TestParseEnvelopeMissingPayload(t *testing.T) {
	_, err := parseEnvelope(TopicReviewStarted, redis.XMessage{Values: map[string]any{}})
	assert.Error(t, err)
}
