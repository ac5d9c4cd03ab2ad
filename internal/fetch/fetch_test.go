package fetch

import (
	"context"
	"errors"
	"net/http"
	"testing"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livereview-cr/livereview-cr/internal/apperrors"
	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

func fakeResponse(status int) *http.Response {
	return &http.Response{StatusCode: status}
}

func TestParseMergeRequestURLExtractsProjectAndIID(t *testing.T) {
	path, iid, err := parseMergeRequestURL("https://gitlab.example.com/group/sub/project/-/merge_requests/42")
	require.NoError(t, err)
	assert.Equal(t, "group/sub/project", path)
	assert.Equal(t, 42, iid)
}

func TestParseMergeRequestURLRejectsMalformedInput(t *testing.T) {
	_, _, err := parseMergeRequestURL("https://gitlab.example.com/group/project/issues/5")
	assert.Error(t, err)
}

func TestParseMergeRequestURLRejectsNonURL(t *testing.T) {
	_, _, err := parseMergeRequestURL("::not a url::")
	assert.Error(t, err)
}

func TestFetchManualSourceIsPassthrough(t *testing.T) {
	f := NewGitLabFetcher("https://gitlab.com")
	meta := &reviewmodel.ChangeMetadata{Repository: "local/diff"}
	source := reviewmodel.ChangeSource{
		Kind:     reviewmodel.ChangeSourceManual,
		DiffText: "--- a/x\n+++ b/x\n",
		Metadata: meta,
	}

	got, diff, err := f.Fetch(context.Background(), source)
	require.NoError(t, err)
	assert.Same(t, meta, got)
	assert.Equal(t, source.DiffText, diff)
}

func TestFetchRemoteSourceRejectsMalformedURL(t *testing.T) {
	f := NewGitLabFetcher("https://gitlab.com")
	source := reviewmodel.ChangeSource{
		Kind:        reviewmodel.ChangeSourceRemote,
		ProviderURL: "https://gitlab.com/group/project",
	}

	_, _, err := f.Fetch(context.Background(), source)
	require.Error(t, err)

	var cse *apperrors.ChangeSourceError
	require.ErrorAs(t, err, &cse)
	assert.Equal(t, apperrors.ChangeSourceURLFormat, cse.Kind)
}

func TestRenderUnifiedDiffHandlesAddedModifiedAndDeletedFiles(t *testing.T) {
	changes := []*gitlab.MergeRequestDiff{
		{OldPath: "/dev/null", NewPath: "new.go", NewFile: true, Diff: "@@ -0,0 +1 @@\n+package new\n"},
		{OldPath: "mod.go", NewPath: "mod.go", Diff: "@@ -1 +1 @@\n-old\n+new\n"},
		{OldPath: "gone.go", NewPath: "/dev/null", DeletedFile: true, Diff: "@@ -1 +0,0 @@\n-bye\n"},
	}

	out := renderUnifiedDiff(changes)
	assert.Contains(t, out, "diff --git a//dev/null b/new.go")
	assert.Contains(t, out, "new file mode 100644")
	assert.Contains(t, out, "+++ b/new.go")
	assert.Contains(t, out, "--- a/mod.go")
	assert.Contains(t, out, "+++ /dev/null")
}

func TestClassifyMapsStatusCodesToChangeSourceKinds(t *testing.T) {
	f := NewGitLabFetcher("https://gitlab.com")

	cases := []struct {
		status int
		want   apperrors.ChangeSourceErrorKind
	}{
		{404, apperrors.ChangeSourceNotFound},
		{401, apperrors.ChangeSourceAuth},
		{403, apperrors.ChangeSourceAuth},
		{429, apperrors.ChangeSourceRateLimited},
		{500, apperrors.ChangeSourceTransport},
	}

	for _, c := range cases {
		err := f.classify(&gitlab.ErrorResponse{Response: fakeResponse(c.status)}, "boom")
		var cse *apperrors.ChangeSourceError
		require.ErrorAs(t, err, &cse)
		assert.Equal(t, c.want, cse.Kind, "status %d", c.status)
	}
}

func TestShouldRetryOnlyTransportAndRateLimited(t *testing.T) {
	f := NewGitLabFetcher("https://gitlab.com")

	assert.True(t, f.shouldRetry(&apperrors.ChangeSourceError{Kind: apperrors.ChangeSourceTransport}))
	assert.True(t, f.shouldRetry(&apperrors.ChangeSourceError{Kind: apperrors.ChangeSourceRateLimited}))
	assert.False(t, f.shouldRetry(&apperrors.ChangeSourceError{Kind: apperrors.ChangeSourceAuth}))
	assert.False(t, f.shouldRetry(errors.New("untyped")))
}
