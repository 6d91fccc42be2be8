package domain

import "strings"

// WebhookAction is the pull_request action reported by GitHub.
type WebhookAction string

const (
	ActionOpened      WebhookAction = "OPENED"
	ActionSynchronize WebhookAction = "SYNCHRONIZE"
	ActionReopened    WebhookAction = "REOPENED"
	ActionClosed      WebhookAction = "CLOSED"
	ActionEdited      WebhookAction = "EDITED"
)

// ParseWebhookAction maps the raw webhook action string to a WebhookAction.
// Unsupported actions return false; callers skip those deliveries.
func ParseWebhookAction(raw string) (WebhookAction, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "opened":
		return ActionOpened, true
	case "synchronize":
		return ActionSynchronize, true
	case "reopened":
		return ActionReopened, true
	case "closed":
		return ActionClosed, true
	case "edited":
		return ActionEdited, true
	default:
		return "", false
	}
}

// TriggersReview reports whether the action should start a review.
// Closed and edited PRs are tracked but never reviewed.
func (a WebhookAction) TriggersReview() bool {
	return a == ActionOpened || a == ActionSynchronize || a == ActionReopened
}
