package github

import (
	"context"

	"github.com/bkyoung/review-pipeline/internal/domain"
)

// ContextSource adapts Client to the collector's pull request data port,
// translating API file records into domain file changes.
type ContextSource struct {
	client *Client
}

func NewContextSource(client *Client) *ContextSource {
	return &ContextSource{client: client}
}

func (s *ContextSource) GetDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	return s.client.GetDiff(ctx, owner, repo, number)
}

func (s *ContextSource) ListFiles(ctx context.Context, owner, repo string, number int) ([]domain.FileChange, error) {
	files, err := s.client.ListFiles(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	changes := make([]domain.FileChange, 0, len(files))
	for _, f := range files {
		changes = append(changes, domain.FileChange{
			Filename:  f.Filename,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Patch:     f.Patch,
		})
	}
	return changes, nil
}
