package domain

import "time"

// Event is implemented by every message that crosses a stage boundary.
// Events are immutable once published: consumers read them and emit new
// events, they never mutate what they received.
type Event interface {
	// ID is the globally unique event id assigned by the publisher.
	ID() string
	// Correlation is the correlation id minted at webhook ingestion and
	// propagated unchanged through every downstream event.
	Correlation() string
	// PartitionKey is the bus partition key, always "owner/name", so all
	// events for one repository are observed in publish order.
	PartitionKey() string
}

// EventMeta carries the fields shared by every pipeline event.
type EventMeta struct {
	EventID           string    `json:"eventId"`
	CorrelationID     string    `json:"correlationId"`
	RepositoryOwner   string    `json:"repositoryOwner"`
	RepositoryName    string    `json:"repositoryName"`
	PullRequestNumber int       `json:"pullRequestNumber"`
	Timestamp         time.Time `json:"timestamp"`
}

func (m EventMeta) ID() string          { return m.EventID }
func (m EventMeta) Correlation() string { return m.CorrelationID }

func (m EventMeta) PartitionKey() string {
	return m.RepositoryOwner + "/" + m.RepositoryName
}

// PullRequestReceivedEvent is published by the webhook receiver for each
// authenticated pull_request delivery.
type PullRequestReceivedEvent struct {
	EventMeta
	Action         WebhookAction `json:"action"`
	Title          string        `json:"title"`
	Author         string        `json:"author"`
	CommitSHA      string        `json:"commitSha"`
	Platform       string        `json:"platform"`
	InstallationID string        `json:"installationId,omitempty"`
}

// TriggersReview reports whether this delivery should flow into review.
func (e PullRequestReceivedEvent) TriggersReview() bool {
	return e.Action.TriggersReview()
}

// ContextCollectedEvent is published by the context collector for every
// terminal collection outcome, including SKIPPED and FAILED.
type ContextCollectedEvent struct {
	EventMeta
	ContextID string           `json:"contextId"`
	Title     string           `json:"title"`
	Author    string           `json:"author,omitempty"`
	CommitSHA string           `json:"commitSha,omitempty"`
	Diff      string           `json:"diff,omitempty"`
	Files     []FileChange     `json:"files,omitempty"`
	Status    CollectionStatus `json:"status"`
	// Reason explains a SKIPPED or FAILED outcome.
	Reason string `json:"reason,omitempty"`
}

// PolicyFinding is a single rule violation reported by the policy stage.
// The rule logic itself lives outside the pipeline core; only this event
// contract is stable.
type PolicyFinding struct {
	RuleID   string `json:"ruleId"`
	Severity string `json:"severity"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Message  string `json:"message"`
}

// PolicyFindingsEvent carries the findings for one collected context.
type PolicyFindingsEvent struct {
	EventMeta
	ContextID string          `json:"contextId"`
	Findings  []PolicyFinding `json:"findings"`
}

// ReviewStartedEvent marks the beginning of an AI review attempt.
type ReviewStartedEvent struct {
	EventMeta
	ReviewID  string `json:"reviewId"`
	ContextID string `json:"contextId"`
}

// ReviewCompletedEvent carries the finished review text for posting.
type ReviewCompletedEvent struct {
	EventMeta
	ReviewID       string `json:"reviewId"`
	ContextID      string `json:"contextId"`
	CommitSHA      string `json:"commitSha,omitempty"`
	ReviewMarkdown string `json:"reviewMarkdown"`
	AIProvider     string `json:"aiProvider"`
	AIModel        string `json:"aiModel"`
}

// ReviewFailedEvent is published when a review cannot be produced.
type ReviewFailedEvent struct {
	EventMeta
	ReviewID     string `json:"reviewId"`
	ContextID    string `json:"contextId"`
	ErrorMessage string `json:"errorMessage"`
}

// CommentPostingFailedEvent signals that a review result could not be
// delivered to GitHub, so observers can take compensating action.
type CommentPostingFailedEvent struct {
	EventMeta
	ReviewID     string `json:"reviewId"`
	ErrorMessage string `json:"errorMessage"`
	ErrorType    string `json:"errorType"`
}
