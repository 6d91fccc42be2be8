package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseWebhookAction(t *testing.T) {
	tests := []struct {
		raw    string
		want   WebhookAction
		wantOK bool
	}{
		{"opened", ActionOpened, true},
		{"synchronize", ActionSynchronize, true},
		{"reopened", ActionReopened, true},
		{"closed", ActionClosed, true},
		{"edited", ActionEdited, true},
		{"labeled", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseWebhookAction(tt.raw)
		assert.Equal(t, tt.wantOK, ok, "action %q", tt.raw)
		assert.Equal(t, tt.want, got, "action %q", tt.raw)
	}
}

func TestTriggersReview(t *testing.T) {
	assert.True(t, ActionOpened.TriggersReview())
	assert.True(t, ActionSynchronize.TriggersReview())
	assert.True(t, ActionReopened.TriggersReview())
	assert.False(t, ActionClosed.TriggersReview())
	assert.False(t, ActionEdited.TriggersReview())
}

func TestCollectionStatusTerminal(t *testing.T) {
	assert.False(t, CollectionPending.Terminal())
	assert.False(t, CollectionInProgress.Terminal())
	assert.True(t, CollectionCompleted.Terminal())
	assert.True(t, CollectionSkipped.Terminal())
	assert.True(t, CollectionFailed.Terminal())
}

func TestIsReadyForReview(t *testing.T) {
	ready := PullRequestContext{Status: CollectionCompleted, Diff: "diff --git a/x b/x\n"}
	assert.True(t, ready.IsReadyForReview())

	assert.False(t, PullRequestContext{Status: CollectionCompleted}.IsReadyForReview())
	assert.False(t, PullRequestContext{Status: CollectionSkipped, Diff: "x"}.IsReadyForReview())
	assert.False(t, PullRequestContext{Status: CollectionFailed, Diff: "x"}.IsReadyForReview())
}

func TestEventMetaPartitionKey(t *testing.T) {
	meta := EventMeta{RepositoryOwner: "octocat", RepositoryName: "repo"}
	assert.Equal(t, "octocat/repo", meta.PartitionKey())
}

func TestDetectPRType(t *testing.T) {
	tests := []struct {
		title string
		want  PRType
	}{
		{"feat: add webhook receiver", PRTypeFeature},
		{"feature(api): pagination", PRTypeFeature},
		{"fix: nil deref in collector", PRTypeBugfix},
		{"Fix race in bus", PRTypeBugfix},
		{"refactor(core): split stages", PRTypeRefactor},
		{"docs: update readme", PRTypeDocs},
		{"test: cover retry paths", PRTypeTest},
		{"chore: bump deps", PRTypeChore},
		{"perf: cache tokenizer", PRTypePerformance},
		{"security: rotate signing keys", PRTypeSecurity},
		{"Patch XSS vulnerability in templates", PRTypeSecurity},
		{"Add new exporter", PRTypeFeature},
		{"", PRTypeUnknown},
		{"   ", PRTypeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectPRType(tt.title), "title %q", tt.title)
	}
}

func TestSecurityBeatsFixWhenBothMatch(t *testing.T) {
	assert.Equal(t, PRTypeSecurity, DetectPRType("fix: patch security vulnerability"))
}

func TestNewPRContext(t *testing.T) {
	pr := NewPRContext("fix: handle timeouts")
	assert.Equal(t, PRTypeBugfix, pr.Type)
	assert.Equal(t, "fix: handle timeouts", pr.Title)
	assert.NotEmpty(t, pr.Type.Focus)
}
