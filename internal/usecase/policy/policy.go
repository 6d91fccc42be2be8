// Package policy runs deterministic checks against a collected pull
// request context and publishes the findings. Rule logic is pluggable;
// the pipeline only fixes the evaluator interface and the findings
// event contract.
package policy

import (
	"context"

	"github.com/bkyoung/review-pipeline/internal/domain"
)

// Severity levels reported in findings.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityBlocker = "blocker"
)

// Input is the slice of a collected context the evaluators see.
type Input struct {
	Title string
	Files []domain.FileChange
	Diff  string
}

// Evaluator produces findings for one pull request context. Evaluators
// must be pure: same input, same findings, no side effects.
type Evaluator interface {
	// Name identifies the evaluator in logs.
	Name() string
	Evaluate(ctx context.Context, in Input) []domain.PolicyFinding
}
