package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

type stubAnalyzer struct {
	category reviewmodel.Category
	findings []reviewmodel.Finding
	failure  *reviewmodel.AnalyzerFailure
	delay    time.Duration
}

func (s *stubAnalyzer) Category() reviewmodel.Category { return s.category }

func (s *stubAnalyzer) Analyze(ctx context.Context, rc *reviewmodel.ReviewContext) ([]reviewmodel.Finding, *reviewmodel.AnalyzerFailure) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, nil
		}
	}
	return s.findings, s.failure
}

func baseContext(cfg reviewmodel.ReviewConfig) *reviewmodel.ReviewContext {
	return &reviewmodel.ReviewContext{Config: cfg}
}

func TestRunAggregatesFindingsAcrossAnalyzers(t *testing.T) {
	logic := &stubAnalyzer{category: reviewmodel.CategoryLogic, findings: []reviewmodel.Finding{
		{FilePath: "b.go", LineNumber: 1, Severity: reviewmodel.SeverityHigh, AgentSource: reviewmodel.CategoryLogic},
	}}
	security := &stubAnalyzer{category: reviewmodel.CategorySecurity, findings: []reviewmodel.Finding{
		{FilePath: "a.go", LineNumber: 1, Severity: reviewmodel.SeverityCritical, AgentSource: reviewmodel.CategorySecurity},
	}}

	o := New(logic, security)
	cfg := reviewmodel.DefaultReviewConfig()
	findings, failures := o.Run(context.Background(), baseContext(cfg))

	require.Empty(t, failures)
	require.Len(t, findings, 2)
	assert.Equal(t, "a.go", findings[0].FilePath) // sorted by file_path first
	assert.Equal(t, "b.go", findings[1].FilePath)
}

func TestRunIsolatesOneAnalyzerFailureFromOthers(t *testing.T) {
	ok := &stubAnalyzer{category: reviewmodel.CategoryLogic, findings: []reviewmodel.Finding{
		{FilePath: "a.go", LineNumber: 1, Severity: reviewmodel.SeverityLow, AgentSource: reviewmodel.CategoryLogic},
	}}
	broken := &stubAnalyzer{category: reviewmodel.CategorySecurity, failure: &reviewmodel.AnalyzerFailure{
		Category: reviewmodel.CategorySecurity, Kind: "gateway_error", Message: "boom",
	}}

	o := New(ok, broken)
	cfg := reviewmodel.DefaultReviewConfig()
	findings, failures := o.Run(context.Background(), baseContext(cfg))

	require.Len(t, findings, 1)
	require.Len(t, failures, 1)
	assert.Equal(t, reviewmodel.CategorySecurity, failures[0].Category)
}

func TestRunSkipsDisabledCategories(t *testing.T) {
	logic := &stubAnalyzer{category: reviewmodel.CategoryLogic, findings: []reviewmodel.Finding{
		{FilePath: "a.go", LineNumber: 1, AgentSource: reviewmodel.CategoryLogic},
	}}
	readability := &stubAnalyzer{category: reviewmodel.CategoryReadability, findings: []reviewmodel.Finding{
		{FilePath: "a.go", LineNumber: 2, AgentSource: reviewmodel.CategoryReadability},
	}}

	o := New(logic, readability)
	cfg := reviewmodel.DefaultReviewConfig()
	cfg.EnabledCategories = map[reviewmodel.Category]bool{reviewmodel.CategoryLogic: true}

	findings, failures := o.Run(context.Background(), baseContext(cfg))
	require.Empty(t, failures)
	require.Len(t, findings, 1)
	assert.Equal(t, reviewmodel.CategoryLogic, findings[0].AgentSource)
}

func TestRunRecordsTimeoutFailureAndDropsPartialFindings(t *testing.T) {
	slow := &stubAnalyzer{category: reviewmodel.CategoryPerformance, delay: 50 * time.Millisecond}

	o := New(slow)
	cfg := reviewmodel.DefaultReviewConfig()
	cfg.AnalyzerTimeout = 5 * time.Millisecond

	findings, failures := o.Run(context.Background(), baseContext(cfg))
	assert.Empty(t, findings)
	require.Len(t, failures, 1)
	assert.Equal(t, "timeout", failures[0].Kind)
}
