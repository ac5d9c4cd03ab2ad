package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

func TestConfigRoundTripsThroughJSON(t *testing.T) {
	cfg := reviewmodel.DefaultReviewConfig()
	cfg.CustomRules = map[string]string{"max-line-length": "120"}

	data, err := marshalConfig(cfg)
	require.NoError(t, err)

	got, err := unmarshalConfig(data)
	require.NoError(t, err)

	assert.Equal(t, cfg.SeverityThreshold, got.SeverityThreshold)
	assert.Equal(t, cfg.EnabledCategories, got.EnabledCategories)
	assert.Equal(t, cfg.CustomRules, got.CustomRules)
	assert.Equal(t, cfg.AnalyzerTimeout, got.AnalyzerTimeout)
	assert.Equal(t, cfg.ReviewTimeout, got.ReviewTimeout)
	assert.Equal(t, cfg.MaxFilesPerReview, got.MaxFilesPerReview)
	assert.Equal(t, cfg.MaxDiffLines, got.MaxDiffLines)
}

func TestMatchesFindingFiltersWithNoFilters(t *testing.T) {
	r := &reviewmodel.ReviewResult{}
	assert.True(t, matchesFindingFilters(r, QueryParams{}))
}

func TestMatchesFindingFiltersBySeverity(t *testing.T) {
	r := &reviewmodel.ReviewResult{Findings: []reviewmodel.Finding{
		{Severity: reviewmodel.SeverityLow},
	}}
	assert.False(t, matchesFindingFilters(r, QueryParams{MinSeverity: reviewmodel.SeverityHigh}))

	r.Findings = append(r.Findings, reviewmodel.Finding{Severity: reviewmodel.SeverityCritical})
	assert.True(t, matchesFindingFilters(r, QueryParams{MinSeverity: reviewmodel.SeverityHigh}))
}

func TestMatchesFindingFiltersByCategory(t *testing.T) {
	r := &reviewmodel.ReviewResult{Findings: []reviewmodel.Finding{
		{Category: reviewmodel.CategoryLogic},
	}}
	assert.False(t, matchesFindingFilters(r, QueryParams{Category: reviewmodel.CategorySecurity}))
	assert.True(t, matchesFindingFilters(r, QueryParams{Category: reviewmodel.CategoryLogic}))
}

func TestMatchesFindingFiltersCombinesSeverityAndCategory(t *testing.T) {
	r := &reviewmodel.ReviewResult{Findings: []reviewmodel.Finding{
		{Category: reviewmodel.CategoryLogic, Severity: reviewmodel.SeverityLow},
		{Category: reviewmodel.CategorySecurity, Severity: reviewmodel.SeverityCritical},
	}}
	params := QueryParams{Category: reviewmodel.CategoryLogic, MinSeverity: reviewmodel.SeverityHigh}
	assert.False(t, matchesFindingFilters(r, params), "no single finding satisfies both filters at once")
}
