package review

import (
	"fmt"
	"strings"

	"github.com/bkyoung/review-pipeline/internal/domain"
)

// buildFilePrompt renders the review prompt for one file's diff. The PR
// type steers the reviewer's focus: a bugfix review cares about edge
// cases, a docs review about accuracy.
func buildFilePrompt(pr domain.PRContext, instructions, fileDiff string) string {
	var b strings.Builder
	b.WriteString("You are an expert software engineer performing a code review.\n")
	b.WriteString("Review the following diff and report concrete, actionable findings in Markdown.\n")
	b.WriteString("Comment only on the changed lines. If the change looks good, say so briefly.\n\n")

	fmt.Fprintf(&b, "Pull Request: %s\n", pr.Title)
	fmt.Fprintf(&b, "Change Type: %s\n", pr.Type.Name)
	if pr.Type.Focus != "" {
		fmt.Fprintf(&b, "Review Focus: %s\n", pr.Type.Focus)
	}
	if instructions != "" {
		fmt.Fprintf(&b, "Instructions: %s\n", instructions)
	}

	b.WriteString("\nUnified Diff:\n")
	b.WriteString(fileDiff)
	return b.String()
}

// buildMergePrompt renders the prompt that combines per-file reviews
// into one coherent summary.
func buildMergePrompt(pr domain.PRContext, sections []string) string {
	var b strings.Builder
	b.WriteString("You are an expert software engineer consolidating a code review.\n")
	b.WriteString("Below are per-file review results for one pull request. Merge them into a ")
	b.WriteString("single coherent review in Markdown: deduplicate overlapping findings, order ")
	b.WriteString("by severity, and keep every concrete finding.\n\n")

	fmt.Fprintf(&b, "Pull Request: %s\n", pr.Title)
	fmt.Fprintf(&b, "Change Type: %s\n\n", pr.Type.Name)

	for i, section := range sections {
		fmt.Fprintf(&b, "--- Review %d ---\n", i+1)
		b.WriteString(section)
		b.WriteString("\n\n")
	}
	return b.String()
}

// concatSections is the fallback when the merge pass is disabled or the
// combined reviews exceed the model's token limit.
func concatSections(sections []string) string {
	return strings.Join(sections, "\n\n---\n\n")
}

// skippedNotice lists files that were left out of the review because
// their diffs exceed the model's token limit.
func skippedNotice(skipped []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n\n---\n\n> **Note:** %d file(s) were not reviewed because their diffs exceed the model's token limit:\n", len(skipped))
	for _, name := range skipped {
		fmt.Fprintf(&b, "> - `%s`\n", name)
	}
	return b.String()
}
