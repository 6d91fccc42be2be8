package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewableDiff = `diff --git a/main.go b/main.go
index 1234567..89abcde 100644
--- a/main.go
+++ b/main.go
@@ -1,3 +1,4 @@
 package main
+
 func main() {}
`

func TestValidateContentChanges(t *testing.T) {
	r := Validate(reviewableDiff)
	assert.True(t, r.IsValid())
	assert.Equal(t, ReasonContentChanges, r.Reason)
}

func TestValidateInvalidResponses(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason Reason
	}{
		{"empty", "", ReasonEmptyResponse},
		{"whitespace only", "   \n\t  ", ReasonEmptyResponse},
		{"json object", `{"message":"Not Found"}`, ReasonJSONResponse},
		{"json array", `[{"sha":"abc"}]`, ReasonJSONResponse},
		{"html doctype", "<!DOCTYPE html><html></html>", ReasonHTMLResponse},
		{"html tag", "<html><body>error</body></html>", ReasonHTMLResponse},
		{"plain text", "not a diff at all", ReasonNoDiffHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Validate(tt.input)
			assert.True(t, r.IsInvalid())
			assert.Equal(t, tt.reason, r.Reason)
		})
	}
}

func TestValidateSkippableDiffs(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason Reason
	}{
		{
			"binary file",
			"diff --git a/logo.png b/logo.png\nindex 1234567..89abcde 100644\nBinary files a/logo.png and b/logo.png differ\n",
			ReasonBinaryFile,
		},
		{
			"git binary patch",
			"diff --git a/logo.png b/logo.png\nGIT binary patch\ndelta 120\n",
			ReasonBinaryFile,
		},
		{
			"pure rename",
			"diff --git a/old.go b/new.go\nsimilarity index 100%\nrename from old.go\nrename to new.go\n",
			ReasonRenameOnly,
		},
		{
			"pure copy",
			"diff --git a/a.go b/b.go\nsimilarity index 100%\ncopy from a.go\ncopy to b.go\n",
			ReasonCopyOnly,
		},
		{
			"mode change only",
			"diff --git a/run.sh b/run.sh\nold mode 100644\nnew mode 100755\n",
			ReasonPermissionOnly,
		},
		{
			"new empty file",
			"diff --git a/empty.txt b/empty.txt\nnew file mode 100644\nindex 0000000..e69de29\n",
			ReasonNewEmptyFile,
		},
		{
			"deleted file",
			"diff --git a/gone.txt b/gone.txt\ndeleted file mode 100644\nindex e69de29..0000000\n",
			ReasonDeletedFile,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Validate(tt.input)
			assert.True(t, r.ShouldSkip())
			assert.Equal(t, tt.reason, r.Reason)
		})
	}
}

func TestValidateMalformed(t *testing.T) {
	// Header present, no hunks, and no recognizable hunk-less shape.
	in := "diff --git a/x.go b/x.go\nindex 1234567..89abcde 100644\n"
	r := Validate(in)
	assert.True(t, r.IsInvalid())
	assert.Equal(t, ReasonMalformedDiff, r.Reason)
}

func TestValidateRenameWithEdits(t *testing.T) {
	in := "diff --git a/old.go b/new.go\nsimilarity index 90%\nrename from old.go\nrename to new.go\n--- a/old.go\n+++ b/new.go\n@@ -1,2 +1,2 @@\n-old\n+new\n"
	r := Validate(in)
	assert.True(t, r.IsValid())
}

func TestSplitFiles(t *testing.T) {
	multi := "diff --git a/a.go b/a.go\n@@ -1 +1 @@\n-x\n+y\ndiff --git a/b.go b/b.go\n@@ -1 +1 @@\n-p\n+q\n"
	chunks := SplitFiles(multi)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0], "a/a.go")
	assert.Contains(t, chunks[1], "a/b.go")
}

func TestSplitFilesSingle(t *testing.T) {
	chunks := SplitFiles(reviewableDiff)
	require.Len(t, chunks, 1)
}

func TestSplitFilesNonDiff(t *testing.T) {
	chunks := SplitFiles("plain text")
	require.Len(t, chunks, 1)
	assert.Equal(t, "plain text", chunks[0])
}
