package github

import "context"

// ReviewPoster adapts Client to the integrator's posting port. Reviews
// are posted as COMMENT reviews so the bot never blocks a merge.
type ReviewPoster struct {
	client *Client
}

func NewReviewPoster(client *Client) *ReviewPoster {
	return &ReviewPoster{client: client}
}

func (p *ReviewPoster) PostReview(ctx context.Context, owner, repo string, number int, commitSHA, body string) error {
	_, err := p.client.CreateReview(ctx, owner, repo, number, CreateReviewRequest{
		CommitID: commitSHA,
		Body:     body,
		Event:    EventComment,
	})
	return err
}

func (p *ReviewPoster) PostIssueComment(ctx context.Context, owner, repo string, number int, body string) error {
	_, err := p.client.CreateIssueComment(ctx, owner, repo, number, body)
	return err
}
