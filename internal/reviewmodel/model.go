// Package reviewmodel holds the data model shared by every stage of the
// review pipeline: diff ingestion, analysis, aggregation, and persistence.
package reviewmodel

import (
	"time"

	"github.com/google/uuid"
)

// Severity is a totally ordered finding severity.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank gives the total order low < medium < high < critical.
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the ordinal position of s in the severity order, defaulting
// unknown values to SeverityMedium's rank.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return severityRank[SeverityMedium]
}

// AtLeast reports whether s is ordered at or above threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return s.Rank() >= threshold.Rank()
}

// Valid reports whether s is one of the four closed severity values.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Category identifies one of the four built-in analyzer categories.
type Category string

const (
	CategoryLogic       Category = "logic"
	CategoryReadability Category = "readability"
	CategoryPerformance Category = "performance"
	CategorySecurity    Category = "security"
)

// AllCategories is the built-in analyzer set, in a stable order.
var AllCategories = []Category{CategoryLogic, CategoryReadability, CategoryPerformance, CategorySecurity}

// ValidCategory reports whether c is one of the four built-in categories.
func ValidCategory(c Category) bool {
	for _, known := range AllCategories {
		if known == c {
			return true
		}
	}
	return false
}

// LineKind classifies one line event inside a parsed diff hunk.
type LineKind string

const (
	LineAdd    LineKind = "add"
	LineDelete LineKind = "delete"
	LineModify LineKind = "modify"
)

// LineChange is a single classified line event within a FileChange.
type LineChange struct {
	Kind LineKind

	// Content holds the post-change text for add/modify, the pre-change
	// text for delete. OldContent additionally holds the pre-change text
	// for modify.
	Content    string
	OldContent string

	// NewLine is set for add/modify (post-change line number).
	NewLine int
	// OldLine is set for delete/modify (pre-change line number).
	OldLine int
}

// FileChange is one file's worth of a parsed diff.
type FileChange struct {
	FilePath string
	Language string
	IsBinary bool

	Additions     []LineChange
	Deletions     []LineChange
	Modifications []LineChange
}

// LineCount returns the total number of line events recorded for the file.
func (f *FileChange) LineCount() int {
	return len(f.Additions) + len(f.Deletions) + len(f.Modifications)
}

// HasLine reports whether postLine (a post-change line number) appears
// among the file's additions or modifications.
func (f *FileChange) HasLine(postLine int) bool {
	for _, lc := range f.Additions {
		if lc.NewLine == postLine {
			return true
		}
	}
	for _, lc := range f.Modifications {
		if lc.NewLine == postLine {
			return true
		}
	}
	return false
}

// ParsedDiff is the structured representation of a unified diff.
type ParsedDiff struct {
	Files []FileChange
}

// NonBinaryFiles returns the subset of Files that are not binary.
func (p *ParsedDiff) NonBinaryFiles() []FileChange {
	out := make([]FileChange, 0, len(p.Files))
	for _, f := range p.Files {
		if !f.IsBinary {
			out = append(out, f)
		}
	}
	return out
}

// FindFile returns the FileChange for path, if present.
func (p *ParsedDiff) FindFile(path string) (*FileChange, bool) {
	for i := range p.Files {
		if p.Files[i].FilePath == path {
			return &p.Files[i], true
		}
	}
	return nil, false
}

// ChangeMetadata describes the pull/merge request a review is about.
// Every field is optional in the manual-diff path.
type ChangeMetadata struct {
	Repository    string
	PRNumber      int
	Title         string
	Author        string
	HeadCommitSHA string
	BaseBranch    string
	HeadBranch    string
}

// ChangeSourceKind tags which variant of ChangeSource is populated.
type ChangeSourceKind string

const (
	ChangeSourceRemote ChangeSourceKind = "remote"
	ChangeSourceManual ChangeSourceKind = "manual"
)

// ChangeSource is a tagged union: either a remote PR reference or a raw
// manual diff payload.
type ChangeSource struct {
	Kind ChangeSourceKind

	// Remote fields.
	ProviderURL string
	Repository  string
	PRNumber    int
	AccessToken string

	// Manual fields.
	DiffText string
	// Metadata is caller-supplied labeling for the manual path; it may be
	// partially populated or entirely absent.
	Metadata *ChangeMetadata
}

// ReviewConfig governs how a single review run is carried out.
type ReviewConfig struct {
	SeverityThreshold Severity
	EnabledCategories map[Category]bool
	CustomRules       map[string]string

	// AnalyzerTimeout bounds a single analyzer's total work, LLM retries
	// included. ReviewTimeout bounds the whole pipeline.
	AnalyzerTimeout time.Duration
	ReviewTimeout   time.Duration

	MaxFilesPerReview int
	MaxDiffLines      int
}

// DefaultReviewConfig returns the spec's documented defaults.
func DefaultReviewConfig() ReviewConfig {
	enabled := make(map[Category]bool, len(AllCategories))
	for _, c := range AllCategories {
		enabled[c] = true
	}
	return ReviewConfig{
		SeverityThreshold: SeverityMedium,
		EnabledCategories: enabled,
		CustomRules:       nil,
		AnalyzerTimeout:   300 * time.Second,
		ReviewTimeout:     600 * time.Second,
		MaxFilesPerReview: 50,
		MaxDiffLines:      10000,
	}
}

// CategoryEnabled reports whether cat is turned on in this config.
func (c *ReviewConfig) CategoryEnabled(cat Category) bool {
	if c.EnabledCategories == nil {
		return true
	}
	return c.EnabledCategories[cat]
}

// ReviewContext is the immutable bundle handed to every analyzer.
type ReviewContext struct {
	FileChanges []FileChange
	Config      ReviewConfig
	Metadata    *ChangeMetadata
}

// Finding is a single structured critique tied to a file and line.
type Finding struct {
	FilePath    string
	LineNumber  int
	Severity    Severity
	Category    Category
	Description string
	Suggestion  string
	AgentSource Category
}

// AnalyzerFailure records a per-analyzer terminal outcome that does not
// fail the overall review.
type AnalyzerFailure struct {
	Category Category
	Kind     string
	Message  string
}

// SeverityHistogram maps severity name to count.
type SeverityHistogram map[Severity]int

// CategoryHistogram maps category name to count.
type CategoryHistogram map[Category]int

// ReviewSummary totals and buckets a review's findings.
type ReviewSummary struct {
	TotalFindings int
	BySeverity    SeverityHistogram
	ByCategory    CategoryHistogram
	FilesAnalyzed int
	LinesChanged  int
}

// ReviewResult is the persisted, externally addressable outcome of one
// pipeline execution.
type ReviewResult struct {
	ReviewID  uuid.UUID
	Metadata  *ChangeMetadata
	CommitSHA string
	Config    ReviewConfig
	Findings  []Finding
	Summary   ReviewSummary
	// Diagnostics lists every AnalyzerFailure the Orchestrator recorded
	// (gateway errors, parse failures, per-analyzer timeouts). Per spec.md
	// §7, none of these fail the review; they are reported alongside the
	// findings instead of being silently dropped.
	Diagnostics []AnalyzerFailure
	Timestamp   time.Time
}
