// Package diff validates unified diffs fetched from GitHub before they
// enter the review pipeline. Validation decides three ways: reviewable,
// skip (valid but nothing worth reviewing), or invalid (not a diff).
package diff

import "regexp"
import "strings"

// Verdict is the outcome of validating a diff.
type Verdict int

const (
	// VerdictValid means the diff has reviewable content changes.
	VerdictValid Verdict = iota
	// VerdictSkip means the diff is well-formed but review is not needed.
	VerdictSkip
	// VerdictInvalid means the payload is not a usable diff.
	VerdictInvalid
)

// Reason explains a verdict.
type Reason string

const (
	ReasonContentChanges Reason = "diff contains reviewable content changes"

	ReasonRenameOnly     Reason = "file rename without content changes"
	ReasonNewEmptyFile   Reason = "new empty file created"
	ReasonDeletedFile    Reason = "file deleted"
	ReasonBinaryFile     Reason = "binary file change"
	ReasonCopyOnly       Reason = "file copy without content changes"
	ReasonPermissionOnly Reason = "file permission change only"
	ReasonDiffTooLarge   Reason = "diff exceeds the message size limit"

	ReasonEmptyResponse Reason = "empty or null response"
	ReasonJSONResponse  Reason = "response is JSON, not diff format"
	ReasonHTMLResponse  Reason = "response is HTML, not diff format"
	ReasonNoDiffHeader  Reason = "missing required diff header"
	ReasonMalformedDiff Reason = "malformed diff format"
)

// Result pairs a verdict with its reason. An invalid or skip result
// always carries a reason other than ReasonContentChanges.
type Result struct {
	Verdict Verdict
	Reason  Reason
}

func (r Result) IsValid() bool    { return r.Verdict == VerdictValid }
func (r Result) ShouldSkip() bool { return r.Verdict == VerdictSkip }
func (r Result) IsInvalid() bool  { return r.Verdict == VerdictInvalid }

var (
	diffHeader = regexp.MustCompile(`(?m)^diff --git a/.+ b/.+`)
	hunkHeader = regexp.MustCompile(`(?m)^@@ -\d+(?:,\d+)? \+\d+(?:,\d+)? @@`)
	renameFrom = regexp.MustCompile(`(?m)^rename from `)
	renameTo   = regexp.MustCompile(`(?m)^rename to `)
	copyFrom   = regexp.MustCompile(`(?m)^copy from `)
	copyTo     = regexp.MustCompile(`(?m)^copy to `)
	newFile    = regexp.MustCompile(`(?m)^new file mode `)
	deleted    = regexp.MustCompile(`(?m)^deleted file mode `)
	oldMode    = regexp.MustCompile(`(?m)^old mode `)
	newMode    = regexp.MustCompile(`(?m)^new mode `)
)

type hunklessCheck struct {
	match  func(string) bool
	reason Reason
}

// Checked in order until the first match; unknown hunk-less shapes fall
// through to malformed for safety.
var hunklessChecks = []hunklessCheck{
	{isBinary, ReasonBinaryFile},
	{isRename, ReasonRenameOnly},
	{isCopy, ReasonCopyOnly},
	{isModeOnly, ReasonPermissionOnly},
	{isNewFile, ReasonNewEmptyFile},
	{isDeletedFile, ReasonDeletedFile},
}

// Validate classifies a raw diff response.
func Validate(raw string) Result {
	if r, bad := checkInvalidResponse(raw); bad {
		return r
	}
	if !diffHeader.MatchString(raw) {
		return Result{VerdictInvalid, ReasonNoDiffHeader}
	}
	if hunkHeader.MatchString(raw) {
		return Result{VerdictValid, ReasonContentChanges}
	}
	for _, check := range hunklessChecks {
		if check.match(raw) {
			return Result{VerdictSkip, check.reason}
		}
	}
	return Result{VerdictInvalid, ReasonMalformedDiff}
}

// checkInvalidResponse catches upstream error bodies served with a 200:
// empty responses, JSON error objects, and HTML error pages.
func checkInvalidResponse(raw string) (Result, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{VerdictInvalid, ReasonEmptyResponse}, true
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return Result{VerdictInvalid, ReasonJSONResponse}, true
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html") {
		return Result{VerdictInvalid, ReasonHTMLResponse}, true
	}
	return Result{}, false
}

func isBinary(d string) bool {
	return strings.Contains(d, "Binary files") || strings.Contains(d, "GIT binary patch")
}

func isRename(d string) bool   { return renameFrom.MatchString(d) && renameTo.MatchString(d) }
func isCopy(d string) bool     { return copyFrom.MatchString(d) && copyTo.MatchString(d) }
func isModeOnly(d string) bool { return oldMode.MatchString(d) && newMode.MatchString(d) }
func isNewFile(d string) bool  { return newFile.MatchString(d) }

func isDeletedFile(d string) bool { return deleted.MatchString(d) }

var fileSplit = regexp.MustCompile(`(?m)(^diff --git )`)

// SplitFiles splits a multi-file diff into per-file chunks on
// "diff --git" boundaries. Input that does not start with a diff header
// is returned whole.
func SplitFiles(raw string) []string {
	if !strings.HasPrefix(raw, "diff --git ") {
		return []string{raw}
	}
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	idx := fileSplit.FindAllStringIndex(normalized, -1)
	chunks := make([]string, 0, len(idx))
	for i, loc := range idx {
		end := len(normalized)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		chunk := normalized[loc[0]:end]
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) == 0 {
		return []string{normalized}
	}
	return chunks
}
