// Package api exposes the review pipeline over HTTP (spec.md §6): trigger
// a review, fetch a completed one, poll its async status, list review
// history, and a liveness check. Grounded on the teacher's extensive
// internal/api/*_handler.go + echo.NewHTTPError idiom; this package keeps
// that shape at a fraction of the teacher's surface, since spec.md names
// exactly five routes and no auth/org/billing model.
package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

// TriggerReviewRequest is the POST /api/reviews request body. Exactly one
// of (ProviderURL, DiffText) must be set.
type TriggerReviewRequest struct {
	ProviderURL       string                 `json:"provider_url,omitempty"`
	Repository        string                 `json:"repository,omitempty"`
	PRNumber          int                    `json:"pr_number,omitempty"`
	AccessToken       string                 `json:"access_token,omitempty"`
	DiffText          string                 `json:"diff_text,omitempty"`
	SeverityThreshold reviewmodel.Severity   `json:"severity_threshold,omitempty"`
	Categories        []reviewmodel.Category `json:"categories,omitempty"`
}

// toChangeSource converts the request into the Review Service's
// ChangeSource tagged union.
func (r TriggerReviewRequest) toChangeSource() reviewmodel.ChangeSource {
	if r.DiffText != "" {
		return reviewmodel.ChangeSource{
			Kind:     reviewmodel.ChangeSourceManual,
			DiffText: r.DiffText,
			Metadata: &reviewmodel.ChangeMetadata{Repository: r.Repository, PRNumber: r.PRNumber},
		}
	}
	return reviewmodel.ChangeSource{
		Kind:        reviewmodel.ChangeSourceRemote,
		ProviderURL: r.ProviderURL,
		Repository:  r.Repository,
		PRNumber:    r.PRNumber,
		AccessToken: r.AccessToken,
	}
}

// toReviewConfig overlays the request's overrides, if any, onto the
// default review configuration.
func (r TriggerReviewRequest) toReviewConfig() reviewmodel.ReviewConfig {
	cfg := reviewmodel.DefaultReviewConfig()
	if r.SeverityThreshold != "" {
		cfg.SeverityThreshold = r.SeverityThreshold
	}
	if len(r.Categories) > 0 {
		enabled := make(map[reviewmodel.Category]bool, len(reviewmodel.AllCategories))
		for _, c := range r.Categories {
			enabled[c] = true
		}
		cfg.EnabledCategories = enabled
	}
	return cfg
}

// TriggerReviewResponse is the POST /api/reviews response: the review has
// been queued, not necessarily completed.
type TriggerReviewResponse struct {
	ReviewID uuid.UUID `json:"review_id"`
	Status   string    `json:"status"`
}

// StatusResponse is the GET /api/reviews/:id/status response body.
type StatusResponse struct {
	ReviewID uuid.UUID `json:"review_id"`
	Status   string    `json:"status"`
	Detail   string    `json:"detail,omitempty"`
}

// changeMetadata is the wire shape for reviewmodel.ChangeMetadata, whose
// fields carry no json tags (it is a pure domain type).
type changeMetadata struct {
	Repository    string `json:"repository,omitempty"`
	PRNumber      int    `json:"pr_number,omitempty"`
	Title         string `json:"title,omitempty"`
	Author        string `json:"author,omitempty"`
	HeadCommitSHA string `json:"head_commit_sha,omitempty"`
	BaseBranch    string `json:"base_branch,omitempty"`
	HeadBranch    string `json:"head_branch,omitempty"`
}

// reviewSummary is the wire shape for reviewmodel.ReviewSummary.
type reviewSummary struct {
	TotalFindings int                          `json:"total_findings"`
	BySeverity    map[reviewmodel.Severity]int `json:"by_severity"`
	ByCategory    map[reviewmodel.Category]int `json:"by_category"`
	FilesAnalyzed int                          `json:"files_analyzed"`
	LinesChanged  int                          `json:"lines_changed"`
}

func toReviewSummaryView(s reviewmodel.ReviewSummary) reviewSummary {
	return reviewSummary{
		TotalFindings: s.TotalFindings,
		BySeverity:    s.BySeverity,
		ByCategory:    s.ByCategory,
		FilesAnalyzed: s.FilesAnalyzed,
		LinesChanged:  s.LinesChanged,
	}
}

// analyzerFailure is the wire shape for reviewmodel.AnalyzerFailure, whose
// fields carry no json tags (it is a pure domain type).
type analyzerFailure struct {
	Category reviewmodel.Category `json:"category"`
	Kind     string               `json:"kind"`
	Message  string               `json:"message"`
}

// reviewResult is the wire shape for reviewmodel.ReviewResult. Findings
// pass through reviewmodel.Finding's own MarshalJSON/UnmarshalJSON (which
// already carries the description/message alias spec.md §6/§9 requires);
// Metadata, Summary, and Diagnostics get wire types since those domain
// types carry no json tags. Diagnostics lists every AnalyzerFailure the
// Orchestrator recorded (spec.md §7): captured failures never fail the
// review, but they are reported here rather than discarded.
type reviewResult struct {
	ReviewID    uuid.UUID             `json:"review_id"`
	Metadata    *changeMetadata       `json:"metadata,omitempty"`
	CommitSHA   string                `json:"commit_sha,omitempty"`
	Findings    []reviewmodel.Finding `json:"findings"`
	Summary     reviewSummary         `json:"summary"`
	Diagnostics []analyzerFailure     `json:"diagnostics"`
	Timestamp   time.Time             `json:"timestamp"`
}

func toReviewResultView(r *reviewmodel.ReviewResult) reviewResult {
	findings := r.Findings
	if findings == nil {
		findings = []reviewmodel.Finding{}
	}
	var meta *changeMetadata
	if r.Metadata != nil {
		meta = &changeMetadata{
			Repository:    r.Metadata.Repository,
			PRNumber:      r.Metadata.PRNumber,
			Title:         r.Metadata.Title,
			Author:        r.Metadata.Author,
			HeadCommitSHA: r.Metadata.HeadCommitSHA,
			BaseBranch:    r.Metadata.BaseBranch,
			HeadBranch:    r.Metadata.HeadBranch,
		}
	}
	diagnostics := make([]analyzerFailure, 0, len(r.Diagnostics))
	for _, f := range r.Diagnostics {
		diagnostics = append(diagnostics, analyzerFailure{Category: f.Category, Kind: f.Kind, Message: f.Message})
	}
	return reviewResult{
		ReviewID:    r.ReviewID,
		Metadata:    meta,
		CommitSHA:   r.CommitSHA,
		Findings:    findings,
		Summary:     toReviewSummaryView(r.Summary),
		Diagnostics: diagnostics,
		Timestamp:   r.Timestamp,
	}
}

// historyResponse is the GET /api/reviews/history response body.
type historyResponse struct {
	Reviews []reviewResult `json:"reviews"`
}
