package analyzer

import (
	"context"
	"fmt"

	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/livereview-cr/livereview-cr/internal/llmgateway"
	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

const securitySystemPrompt = `You are a security-focused senior engineer reviewing a code change.
Look specifically for: injection vulnerabilities (SQL, command, template),
missing input validation, authentication or authorization weaknesses, and
exposed secrets or credentials. Every finding's suggestion MUST describe
concrete remediation steps.`

// SecurityAnalyzer is the security category's analyzer: the shared LLM
// Base, plus a gitleaks pattern-based secret scan over every added line so
// a literal leaked credential is flagged even on a model miss. The scan runs
// only after a successful LLM pass; a gateway failure skips it.
type SecurityAnalyzer struct {
	*Base
	detector *detect.Detector
}

// NewSecurity builds the security analyzer: required fields line,
// description, severity, remediation as suggestion (spec.md §4.D), backed
// by gitleaks' default rule set for the credential-detection half of that
// requirement.
func NewSecurity(gateway llmgateway.Invoker, agentID string) *SecurityAnalyzer {
	base := NewBase(Spec{
		Category:          reviewmodel.CategorySecurity,
		AgentID:           agentID,
		SystemPrompt:      securitySystemPrompt,
		BuildUserPrompt:   buildDiffPrompt,
		IgnoreLanguages:   map[string]bool{"unknown": true},
		RequireSeverity:   true,
		RequireSuggestion: true,
	}, gateway)

	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		// Default ruleset always parses; nil just disables the secret
		// scan half and leaves the LLM pass as the sole source of truth.
		detector = nil
	}

	return &SecurityAnalyzer{Base: base, detector: detector}
}

// Analyze runs the LLM-driven pass, then layers gitleaks secret-scan
// findings on top. A gateway/parse failure from the LLM pass still aborts
// the whole analyzer per spec.md §4.D; the secret scan never contributes
// to that failure since it runs entirely offline.
func (s *SecurityAnalyzer) Analyze(ctx context.Context, rc *reviewmodel.ReviewContext) ([]reviewmodel.Finding, *reviewmodel.AnalyzerFailure) {
	findings, failure := s.Base.Analyze(ctx, rc)
	if failure != nil {
		return findings, failure
	}
	if s.detector == nil {
		return findings, nil
	}
	return append(findings, s.scanForSecrets(rc)...), nil
}

// scanForSecrets runs gitleaks' detector over every added line in the
// diff, including the new text of modified lines. Deletions and untouched
// context lines are not scanned: a secret already removed from the change
// isn't this review's concern.
func (s *SecurityAnalyzer) scanForSecrets(rc *reviewmodel.ReviewContext) []reviewmodel.Finding {
	var found []reviewmodel.Finding
	for _, fc := range rc.FileChanges {
		if fc.IsBinary {
			continue
		}
		added := append(append([]reviewmodel.LineChange{}, fc.Additions...), fc.Modifications...)
		for _, add := range added {
			fragment := detect.Fragment{Raw: add.Content, FilePath: fc.FilePath}
			for _, leak := range s.detector.Detect(fragment) {
				found = append(found, reviewmodel.Finding{
					FilePath:    fc.FilePath,
					LineNumber:  add.NewLine,
					Severity:    reviewmodel.SeverityCritical,
					Category:    reviewmodel.CategorySecurity,
					Description: fmt.Sprintf("potential leaked credential (rule %q): %s", leak.RuleID, leak.Description),
					Suggestion:  "Remove the secret from source control and rotate the credential immediately.",
					AgentSource: reviewmodel.CategorySecurity,
				})
			}
		}
	}
	return found
}
