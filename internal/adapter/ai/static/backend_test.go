package static

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendAlwaysReady(t *testing.T) {
	b := NewBackend("")
	assert.True(t, b.IsReady(context.Background()))
	assert.Equal(t, "static", b.ProviderName())
	assert.Equal(t, "static-v1", b.ModelName())
}

func TestBackendReturnsCannedReview(t *testing.T) {
	b := NewBackend("static-v2")

	review, err := b.ReviewCode(context.Background(), "anything")
	require.NoError(t, err)
	assert.Contains(t, review, "Review")

	merged, err := b.ReviewMerge(context.Background(), "anything")
	require.NoError(t, err)
	assert.Contains(t, merged, "Review")
}
