package domain

import "time"

// CollectionStatus is the state machine for context collection.
// PENDING -> IN_PROGRESS -> {COMPLETED | SKIPPED | FAILED}.
type CollectionStatus string

const (
	CollectionPending    CollectionStatus = "PENDING"
	CollectionInProgress CollectionStatus = "IN_PROGRESS"
	CollectionCompleted  CollectionStatus = "COMPLETED"
	// CollectionSkipped is a terminal success state: the diff was valid but
	// out of scope for review (binary-only, rename-only, oversized, ...).
	CollectionSkipped CollectionStatus = "SKIPPED"
	CollectionFailed  CollectionStatus = "FAILED"
)

// Terminal reports whether the status ends the collection state machine.
func (s CollectionStatus) Terminal() bool {
	return s == CollectionCompleted || s == CollectionSkipped || s == CollectionFailed
}

const (
	FileStatusAdded    = "added"
	FileStatusModified = "modified"
	FileStatusRemoved  = "removed"
	FileStatusRenamed  = "renamed"
)

// FileChange describes one file touched by a pull request.
type FileChange struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}

// PullRequestContext aggregates everything the review stage needs about
// one pull request.
type PullRequestContext struct {
	ContextID         string
	RepositoryOwner   string
	RepositoryName    string
	PullRequestNumber int
	Title             string
	Diff              string
	Files             []FileChange
	Metadata          string
	Status            CollectionStatus
	CorrelationID     string
	CollectedAt       time.Time
}

// IsReadyForReview gates entry into the review stage.
func (c PullRequestContext) IsReadyForReview() bool {
	return c.Status == CollectionCompleted && c.Diff != ""
}
