package policy_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/review-pipeline/internal/bus"
	"github.com/bkyoung/review-pipeline/internal/config"
	"github.com/bkyoung/review-pipeline/internal/domain"
	"github.com/bkyoung/review-pipeline/internal/usecase/policy"
)

func strictConfig() config.PolicyConfig {
	return config.PolicyConfig{
		Enabled:       true,
		MaxFileLines:  600,
		MaxFiles:      50,
		BlockSecrets:  true,
		BlockBigFiles: true,
	}
}

func evaluate(t *testing.T, cfg config.PolicyConfig, files []domain.FileChange) []domain.PolicyFinding {
	t.Helper()
	return policy.NewNamePattern(cfg).Evaluate(context.Background(), policy.Input{Files: files})
}

func TestNamePatternCleanChangeset(t *testing.T) {
	files := []domain.FileChange{
		{Filename: "internal/server/server.go", Status: domain.FileStatusModified, Additions: 40, Deletions: 12},
		{Filename: "README.md", Status: domain.FileStatusModified, Additions: 3},
	}
	assert.Empty(t, evaluate(t, strictConfig(), files))
}

func TestNamePatternFlagsSecretFilenames(t *testing.T) {
	files := []domain.FileChange{
		{Filename: "deploy/prod.pem", Status: domain.FileStatusAdded},
		{Filename: "config/.env", Status: domain.FileStatusAdded},
		{Filename: ".ssh/id_rsa", Status: domain.FileStatusAdded},
		{Filename: "aws_credentials.json", Status: domain.FileStatusAdded},
		{Filename: "main.go", Status: domain.FileStatusModified},
	}
	findings := evaluate(t, strictConfig(), files)
	require.Len(t, findings, 4)
	for _, f := range findings {
		assert.Equal(t, "secrets/filename", f.RuleID)
		assert.Equal(t, policy.SeverityBlocker, f.Severity)
		assert.NotEmpty(t, f.File)
	}
}

func TestNamePatternSecretsDisabled(t *testing.T) {
	cfg := strictConfig()
	cfg.BlockSecrets = false
	files := []domain.FileChange{{Filename: "prod.pem", Status: domain.FileStatusAdded}}
	assert.Empty(t, evaluate(t, cfg, files))
}

func TestNamePatternFlagsOversizedFile(t *testing.T) {
	files := []domain.FileChange{
		{Filename: "internal/generated/schema.go", Status: domain.FileStatusModified, Additions: 900, Deletions: 10},
	}
	findings := evaluate(t, strictConfig(), files)
	require.Len(t, findings, 1)
	assert.Equal(t, "changeset/max-file-lines", findings[0].RuleID)
	assert.Equal(t, policy.SeverityBlocker, findings[0].Severity)
	assert.Contains(t, findings[0].Message, "910 changed lines")
}

func TestNamePatternBigFileWarnsWhenNotBlocking(t *testing.T) {
	cfg := strictConfig()
	cfg.BlockBigFiles = false
	files := []domain.FileChange{{Filename: "big.go", Additions: 700}}
	findings := evaluate(t, cfg, files)
	require.Len(t, findings, 1)
	assert.Equal(t, policy.SeverityWarning, findings[0].Severity)
}

func TestNamePatternFlagsTooManyFiles(t *testing.T) {
	cfg := strictConfig()
	cfg.MaxFiles = 2
	files := []domain.FileChange{
		{Filename: "a.go"}, {Filename: "b.go"}, {Filename: "c.go"},
	}
	findings := evaluate(t, cfg, files)
	require.Len(t, findings, 1)
	assert.Equal(t, "changeset/max-files", findings[0].RuleID)
	assert.Equal(t, policy.SeverityWarning, findings[0].Severity)
}

func collectedEnvelope(t *testing.T, status domain.CollectionStatus, files []domain.FileChange) bus.Envelope {
	t.Helper()
	env, err := bus.Seal(bus.TopicContextCollected, domain.ContextCollectedEvent{
		EventMeta: domain.EventMeta{
			EventID:           "evt-1",
			CorrelationID:     "corr-1",
			RepositoryOwner:   "octocat",
			RepositoryName:    "repo",
			PullRequestNumber: 7,
			Timestamp:         time.Now().UTC(),
		},
		ContextID: "ctx-1",
		Title:     "feat: add thing",
		Diff:      "diff --git a/a.go b/a.go\n",
		Files:     files,
		Status:    status,
	})
	require.NoError(t, err)
	return env
}

func TestServicePublishesFindings(t *testing.T) {
	mem := bus.NewMemory()
	svc := policy.NewService(mem, nil, policy.NewNamePattern(strictConfig()))

	files := []domain.FileChange{{Filename: "secrets/.env", Status: domain.FileStatusAdded}}
	require.NoError(t, svc.Handle(context.Background(), collectedEnvelope(t, domain.CollectionCompleted, files)))

	published := mem.Published(bus.TopicPolicyFindings)
	require.Len(t, published, 1)

	var event domain.PolicyFindingsEvent
	require.NoError(t, json.Unmarshal(published[0].Payload, &event))
	assert.Equal(t, "ctx-1", event.ContextID)
	assert.Equal(t, "corr-1", event.CorrelationID)
	require.Len(t, event.Findings, 1)
	assert.Equal(t, "secrets/filename", event.Findings[0].RuleID)
}

func TestServicePublishesEmptyFindingsForCleanContext(t *testing.T) {
	mem := bus.NewMemory()
	svc := policy.NewService(mem, nil, policy.NewNamePattern(strictConfig()))

	files := []domain.FileChange{{Filename: "main.go", Additions: 5}}
	require.NoError(t, svc.Handle(context.Background(), collectedEnvelope(t, domain.CollectionCompleted, files)))

	published := mem.Published(bus.TopicPolicyFindings)
	require.Len(t, published, 1)

	var event domain.PolicyFindingsEvent
	require.NoError(t, json.Unmarshal(published[0].Payload, &event))
	assert.Empty(t, event.Findings)
}

func TestServiceIgnoresNonCompletedContexts(t *testing.T) {
	mem := bus.NewMemory()
	svc := policy.NewService(mem, nil, policy.NewNamePattern(strictConfig()))

	require.NoError(t, svc.Handle(context.Background(), collectedEnvelope(t, domain.CollectionSkipped, nil)))
	require.NoError(t, svc.Handle(context.Background(), collectedEnvelope(t, domain.CollectionFailed, nil)))

	assert.Empty(t, mem.Published(bus.TopicPolicyFindings))
}
