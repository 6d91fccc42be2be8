package bus

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/review-pipeline/internal/domain"
)

func sampleEvent(eventID, owner, repo string) domain.PullRequestReceivedEvent {
	return domain.PullRequestReceivedEvent{
		EventMeta: domain.EventMeta{
			EventID:           eventID,
			CorrelationID:     "corr-1",
			RepositoryOwner:   owner,
			RepositoryName:    repo,
			PullRequestNumber: 1,
			Timestamp:         time.Now().UTC(),
		},
		Action: domain.ActionOpened,
	}
}

func TestSealCarriesEventIdentity(t *testing.T) {
	env, err := Seal(TopicPullRequestReceived, sampleEvent("evt-1", "octocat", "repo"))
	require.NoError(t, err)

	assert.Equal(t, "evt-1", env.EventID)
	assert.Equal(t, TopicPullRequestReceived, env.Topic)
	assert.Equal(t, "octocat/repo", env.Key)
	assert.Equal(t, "corr-1", env.CorrelationID)
	assert.Equal(t, 1, env.Attempt)

	var decoded domain.PullRequestReceivedEvent
	require.NoError(t, env.Decode(&decoded))
	assert.Equal(t, domain.ActionOpened, decoded.Action)
}

func TestPartitionIsStable(t *testing.T) {
	for n := 1; n <= 16; n++ {
		p := Partition("octocat/repo", n)
		for i := 0; i < 10; i++ {
			assert.Equal(t, p, Partition("octocat/repo", n))
		}
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, n)
	}
}

func TestPartitionSinglePartition(t *testing.T) {
	assert.Zero(t, Partition("anything", 1))
	assert.Zero(t, Partition("anything", 0))
}

func TestPartitionSpreadsKeys(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 100; i++ {
		seen[Partition(fmt.Sprintf("owner/repo-%d", i), 4)] = true
	}
	assert.Len(t, seen, 4)
}

func TestMemoryDeliversInlineAndRecords(t *testing.T) {
	m := NewMemory()

	var got []string
	require.NoError(t, m.Subscribe(TopicPullRequestReceived, func(ctx context.Context, env Envelope) error {
		got = append(got, env.EventID)
		return nil
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Publish(context.Background(), TopicPullRequestReceived,
			sampleEvent(fmt.Sprintf("evt-%d", i), "octocat", "repo")))
	}

	// Synchronous delivery preserves publish order.
	assert.Equal(t, []string{"evt-0", "evt-1", "evt-2"}, got)
	assert.Len(t, m.Published(TopicPullRequestReceived), 3)
}

func TestMemoryPreservesPerKeyOrder(t *testing.T) {
	m := NewMemory()

	type seen struct {
		key    string
		action domain.WebhookAction
	}
	var got []seen
	require.NoError(t, m.Subscribe(TopicPullRequestReceived, func(ctx context.Context, env Envelope) error {
		var event domain.PullRequestReceivedEvent
		require.NoError(t, env.Decode(&event))
		got = append(got, seen{key: env.Key, action: event.Action})
		return nil
	}))

	opened := sampleEvent("evt-open", "octocat", "repo")
	synchronized := sampleEvent("evt-sync", "octocat", "repo")
	synchronized.Action = domain.ActionSynchronize

	require.NoError(t, m.Publish(context.Background(), TopicPullRequestReceived, opened))
	require.NoError(t, m.Publish(context.Background(), TopicPullRequestReceived, synchronized))

	// Both events share the repository key, so the opened event must be
	// observed before the synchronize that followed it.
	require.Len(t, got, 2)
	assert.Equal(t, "octocat/repo", got[0].key)
	assert.Equal(t, domain.ActionOpened, got[0].action)
	assert.Equal(t, "octocat/repo", got[1].key)
	assert.Equal(t, domain.ActionSynchronize, got[1].action)
}

func TestMemoryDuplicateSubscribeFails(t *testing.T) {
	m := NewMemory()
	h := func(ctx context.Context, env Envelope) error { return nil }
	require.NoError(t, m.Subscribe(TopicReviewStarted, h))
	assert.Error(t, m.Subscribe(TopicReviewStarted, h))
}

func TestMemoryFailPublish(t *testing.T) {
	m := NewMemory()
	m.FailPublish = errors.New("broker down")

	err := m.Publish(context.Background(), TopicPullRequestReceived, sampleEvent("evt-1", "o", "r"))
	assert.EqualError(t, err, "broker down")
	assert.Empty(t, m.Published(TopicPullRequestReceived))
}

func TestMemoryDeliverIncrementsAttempt(t *testing.T) {
	m := NewMemory()

	var attempts []int
	require.NoError(t, m.Subscribe(TopicReviewFailed, func(ctx context.Context, env Envelope) error {
		attempts = append(attempts, env.Attempt)
		return nil
	}))

	env, err := Seal(TopicReviewFailed, sampleEvent("evt-1", "o", "r"))
	require.NoError(t, err)

	require.NoError(t, m.Deliver(context.Background(), env))
	require.NoError(t, m.Deliver(context.Background(), env))
	assert.Equal(t, []int{2, 2}, attempts)
}

func TestMemoryDeliverWithoutHandler(t *testing.T) {
	m := NewMemory()
	err := m.Deliver(context.Background(), Envelope{Topic: "nobody-home"})
	assert.Error(t, err)
}
