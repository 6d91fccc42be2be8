package github

// ReviewEvent is the review action submitted with a PR review.
type ReviewEvent string

const (
	// EventComment posts feedback without approving or blocking.
	EventComment ReviewEvent = "COMMENT"
	// EventApprove approves the pull request.
	EventApprove ReviewEvent = "APPROVE"
	// EventRequestChanges blocks the pull request.
	EventRequestChanges ReviewEvent = "REQUEST_CHANGES"
)

// CreateReviewRequest is the POST body for the Reviews API.
type CreateReviewRequest struct {
	CommitID string      `json:"commit_id,omitempty"`
	Body     string      `json:"body"`
	Event    ReviewEvent `json:"event"`
}

// CreateReviewResponse is the subset of the Reviews API response we use.
type CreateReviewResponse struct {
	ID    int64  `json:"id"`
	State string `json:"state"`
	Body  string `json:"body"`
}

// IssueCommentRequest is the POST body for the Issue Comments API.
type IssueCommentRequest struct {
	Body string `json:"body"`
}

// IssueCommentResponse is the subset of the Issue Comments response we use.
type IssueCommentResponse struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
}

// PullRequestFile is one entry from the List Pull Request Files API.
type PullRequestFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch"`
}

// ErrorResponse is GitHub's error body shape.
type ErrorResponse struct {
	Message string `json:"message"`
	Errors  []struct {
		Resource string `json:"resource"`
		Field    string `json:"field"`
		Code     string `json:"code"`
		Message  string `json:"message"`
	} `json:"errors"`
}
