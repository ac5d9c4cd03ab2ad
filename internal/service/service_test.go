package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livereview-cr/livereview-cr/internal/orchestrator"
	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

type fakeFetcher struct {
	metadata *reviewmodel.ChangeMetadata
	diffText string
	err      error
}

func (f *fakeFetcher) Fetch(ctx context.Context, source reviewmodel.ChangeSource) (*reviewmodel.ChangeMetadata, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.metadata, f.diffText, nil
}

type fakeStore struct {
	saved []reviewmodel.ReviewResult
	err   error
}

func (s *fakeStore) Save(ctx context.Context, r reviewmodel.ReviewResult) (uuid.UUID, error) {
	if s.err != nil {
		return uuid.Nil, s.err
	}
	s.saved = append(s.saved, r)
	return r.ReviewID, nil
}

type stubAnalyzer struct {
	category reviewmodel.Category
	findings []reviewmodel.Finding
	failure  *reviewmodel.AnalyzerFailure
}

func (s *stubAnalyzer) Category() reviewmodel.Category { return s.category }

func (s *stubAnalyzer) Analyze(ctx context.Context, rc *reviewmodel.ReviewContext) ([]reviewmodel.Finding, *reviewmodel.AnalyzerFailure) {
	if s.failure != nil {
		return nil, s.failure
	}
	return s.findings, nil
}

const sampleDiff = `diff --git a/a.go b/a.go
--- a/a.go
+++ b/a.go
@@ -1,1 +1,1 @@
-old
+new
`

func TestReviewPersistsAndReturnsResult(t *testing.T) {
	fetcher := &fakeFetcher{metadata: &reviewmodel.ChangeMetadata{Repository: "acme/widgets", HeadCommitSHA: "abc123"}, diffText: sampleDiff}
	logic := &stubAnalyzer{category: reviewmodel.CategoryLogic, findings: []reviewmodel.Finding{
		{FilePath: "a.go", LineNumber: 1, Severity: reviewmodel.SeverityHigh, Category: reviewmodel.CategoryLogic, Description: "issue", AgentSource: reviewmodel.CategoryLogic},
	}}
	store := &fakeStore{}

	svc := New(fetcher, orchestrator.New(logic), store)
	result, err := svc.Review(context.Background(), reviewmodel.ChangeSource{Kind: reviewmodel.ChangeSourceRemote}, nil)

	require.NoError(t, err)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "abc123", result.CommitSHA)
	require.Len(t, store.saved, 1)
	assert.Equal(t, result.ReviewID, store.saved[0].ReviewID)
}

func TestReviewReturnsZeroFindingsOnBlankDiff(t *testing.T) {
	fetcher := &fakeFetcher{metadata: &reviewmodel.ChangeMetadata{}, diffText: "   "}
	store := &fakeStore{}

	svc := New(fetcher, orchestrator.New(), store)
	result, err := svc.Review(context.Background(), reviewmodel.ChangeSource{Kind: reviewmodel.ChangeSourceManual, DiffText: "   "}, nil)

	require.NoError(t, err)
	assert.Empty(t, result.Findings)
	assert.Equal(t, 0, result.Summary.FilesAnalyzed)
}

func TestReviewPropagatesFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("not found")}
	store := &fakeStore{}

	svc := New(fetcher, orchestrator.New(), store)
	_, err := svc.Review(context.Background(), reviewmodel.ChangeSource{Kind: reviewmodel.ChangeSourceRemote}, nil)
	assert.Error(t, err)
	assert.Empty(t, store.saved)
}

func TestReviewCarriesAnalyzerFailuresAsDiagnosticsWithoutFailingTheReview(t *testing.T) {
	fetcher := &fakeFetcher{metadata: &reviewmodel.ChangeMetadata{}, diffText: sampleDiff}
	logic := &stubAnalyzer{category: reviewmodel.CategoryLogic, findings: []reviewmodel.Finding{
		{FilePath: "a.go", LineNumber: 1, Severity: reviewmodel.SeverityHigh, Category: reviewmodel.CategoryLogic, Description: "issue", AgentSource: reviewmodel.CategoryLogic},
	}}
	performance := &stubAnalyzer{category: reviewmodel.CategoryPerformance, failure: &reviewmodel.AnalyzerFailure{
		Category: reviewmodel.CategoryPerformance, Kind: "timeout", Message: "analyzer deadline exceeded",
	}}
	store := &fakeStore{}

	svc := New(fetcher, orchestrator.New(logic, performance), store)
	result, err := svc.Review(context.Background(), reviewmodel.ChangeSource{Kind: reviewmodel.ChangeSourceRemote}, nil)

	require.NoError(t, err)
	require.Len(t, result.Findings, 1, "a sibling analyzer's findings must still be reported")
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, reviewmodel.CategoryPerformance, result.Diagnostics[0].Category)
	assert.Equal(t, "timeout", result.Diagnostics[0].Kind)
	require.Len(t, store.saved, 1)
	assert.Equal(t, result.Diagnostics, store.saved[0].Diagnostics)
}

func TestReviewPropagatesStoreError(t *testing.T) {
	fetcher := &fakeFetcher{metadata: &reviewmodel.ChangeMetadata{}, diffText: sampleDiff}
	store := &fakeStore{err: errors.New("db down")}

	svc := New(fetcher, orchestrator.New(), store)
	_, err := svc.Review(context.Background(), reviewmodel.ChangeSource{Kind: reviewmodel.ChangeSourceRemote}, nil)
	assert.Error(t, err)
}
