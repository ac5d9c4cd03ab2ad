package diffparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

const sampleDiff = `diff --git a/main.go b/main.go
index 1111111..2222222 100644
--- a/main.go
+++ b/main.go
@@ -1,5 +1,5 @@
 package main

-func old() int {
-	return 1
+func new() int {
+	return 2
 }
`

func TestParseClassifiesAddDeleteModify(t *testing.T) {
	parsed, err := Parse(sampleDiff)
	require.NoError(t, err)
	require.Len(t, parsed.Files, 1)

	f := parsed.Files[0]
	assert.Equal(t, "main.go", f.FilePath)
	assert.Equal(t, "go", f.Language)
	assert.False(t, f.IsBinary)
	assert.Len(t, f.Modifications, 2)
	assert.Empty(t, f.Additions)
	assert.Empty(t, f.Deletions)
}

func TestParseSinglePairProducesOneModify(t *testing.T) {
	diff := `diff --git a/x.py b/x.py
--- a/x.py
+++ b/x.py
@@ -1,1 +1,1 @@
-old line
+new line
`
	parsed, err := Parse(diff)
	require.NoError(t, err)
	require.Len(t, parsed.Files, 1)
	f := parsed.Files[0]
	require.Len(t, f.Modifications, 1)
	assert.Equal(t, "old line", f.Modifications[0].OldContent)
	assert.Equal(t, "new line", f.Modifications[0].Content)
	assert.Equal(t, "python", f.Language)
}

func TestParsePureAdditionsAndDeletions(t *testing.T) {
	diff := `diff --git a/a.rb b/a.rb
--- a/a.rb
+++ b/a.rb
@@ -1,3 +1,3 @@
-dropped line
 context line
-removed line
+added one
+added two
`
	parsed, err := Parse(diff)
	require.NoError(t, err)
	f := parsed.Files[0]
	require.Len(t, f.Deletions, 1)
	require.Len(t, f.Additions, 1)
	require.Len(t, f.Modifications, 1)
	assert.Equal(t, "ruby", f.Language)
}

func TestParseDetectsBinaryFile(t *testing.T) {
	diff := `diff --git a/image.png b/image.png
index 1111111..2222222 100644
Binary files a/image.png and b/image.png differ
`
	parsed, err := Parse(diff)
	require.NoError(t, err)
	require.Len(t, parsed.Files, 1)
	assert.True(t, parsed.Files[0].IsBinary)
	assert.Empty(t, parsed.Files[0].Additions)
}

func TestParseHandlesDeletedFile(t *testing.T) {
	diff := `diff --git a/gone.js b/gone.js
--- a/gone.js
+++ /dev/null
@@ -1,2 +0,0 @@
-line one
-line two
`
	parsed, err := Parse(diff)
	require.NoError(t, err)
	f := parsed.Files[0]
	assert.Equal(t, "gone.js", f.FilePath)
	assert.Equal(t, "javascript", f.Language)
	require.Len(t, f.Deletions, 2)
}

func TestParseSkipsMalformedHunkButKeepsRest(t *testing.T) {
	diff := `diff --git a/b.c b/b.c
--- a/b.c
+++ b/b.c
@@ not a real header @@
+garbage
@@ -1,1 +1,2 @@
 context
+added
`
	parsed, err := Parse(diff)
	require.NoError(t, err)
	f := parsed.Files[0]
	require.Len(t, f.Additions, 1)
	assert.Equal(t, "added", f.Additions[0].Content)
}

func TestParseMultipleFiles(t *testing.T) {
	diff := sampleDiff + `diff --git a/util.rs b/util.rs
--- a/util.rs
+++ b/util.rs
@@ -1,1 +1,2 @@
 fn main() {}
+// trailing
`
	parsed, err := Parse(diff)
	require.NoError(t, err)
	require.Len(t, parsed.Files, 2)
	assert.Equal(t, "main.go", parsed.Files[0].FilePath)
	assert.Equal(t, "util.rs", parsed.Files[1].FilePath)
}

func TestParseRejectsEmptyInput(t *testing.T) {
	_, err := Parse("   ")
	require.Error(t, err)
}

func TestParseRejectsNonDiffText(t *testing.T) {
	_, err := Parse("just some plain text\nwith no diff headers\n")
	require.Error(t, err)
}

func TestParseUnknownExtensionYieldsUnknownLanguage(t *testing.T) {
	diff := `diff --git a/README b/README
--- a/README
+++ b/README
@@ -1,1 +1,1 @@
-old
+new
`
	parsed, err := Parse(diff)
	require.NoError(t, err)
	assert.Equal(t, "unknown", parsed.Files[0].Language)
}

func TestNonBinaryFilesFiltersBinary(t *testing.T) {
	p := &reviewmodel.ParsedDiff{Files: []reviewmodel.FileChange{
		{FilePath: "a.go", IsBinary: false},
		{FilePath: "b.png", IsBinary: true},
	}}
	assert.Len(t, p.NonBinaryFiles(), 1)
}
