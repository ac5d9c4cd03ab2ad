// Package analyzer implements the four built-in review analyzers (logic,
// readability, performance, security) on top of a shared base that drives
// the LLM Gateway and parses its structured reply. Adapted from the
// teacher's internal/ai/provider.go Provider interface and
// internal/ai/langchain/provider.go's per-file prompt-then-parse loop,
// narrowed to the fixed four-category shape spec.md §4.D specifies.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/livereview-cr/livereview-cr/internal/llmgateway"
	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

// Analyzer is the shared contract every built-in category implements.
type Analyzer interface {
	Category() reviewmodel.Category
	Analyze(ctx context.Context, rc *reviewmodel.ReviewContext) ([]reviewmodel.Finding, *reviewmodel.AnalyzerFailure)
}

// PromptBuilder renders the per-file portion of the user prompt. It
// receives the file under review; the base appends instructions forcing
// post-change line numbers, the closed severity set, and non-empty
// descriptions, per spec.md §4.D.
type PromptBuilder func(fc reviewmodel.FileChange) string

// Spec configures one analyzer instance.
type Spec struct {
	Category          reviewmodel.Category
	AgentID           string
	SystemPrompt      string
	BuildUserPrompt   PromptBuilder
	IgnoreLanguages   map[string]bool
	RequireSeverity   bool
	RequireSuggestion bool
}

// Base is the shared analyzer machinery: per-file loop, gateway call,
// strict JSON-array parsing, Finding construction.
type Base struct {
	spec    Spec
	gateway llmgateway.Invoker
}

// NewBase builds an analyzer from spec using gateway for every LLM call.
func NewBase(spec Spec, gateway llmgateway.Invoker) *Base {
	return &Base{spec: spec, gateway: gateway}
}

func (b *Base) Category() reviewmodel.Category { return b.spec.Category }

// Analyze walks every non-binary, non-ignored-language file in rc, asking
// the gateway for findings and parsing the strict JSON-array reply. Per
// spec.md §4.D, any gateway or parse failure aborts the whole analyzer: it
// returns no findings and a recorded AnalyzerFailure rather than a partial
// result.
func (b *Base) Analyze(ctx context.Context, rc *reviewmodel.ReviewContext) ([]reviewmodel.Finding, *reviewmodel.AnalyzerFailure) {
	var findings []reviewmodel.Finding

	for _, fc := range rc.FileChanges {
		if fc.IsBinary {
			continue
		}
		if b.spec.IgnoreLanguages[fc.Language] {
			continue
		}
		if fc.LineCount() == 0 {
			continue
		}

		userPrompt := b.spec.BuildUserPrompt(fc) + "\n\n" + responseFormatInstructions(b.spec)

		cfg := llmgateway.DefaultCallConfig()
		raw, err := b.gateway.Invoke(ctx, b.spec.AgentID, b.spec.SystemPrompt, userPrompt, cfg)
		if err != nil {
			return nil, &reviewmodel.AnalyzerFailure{
				Category: b.spec.Category,
				Kind:     "gateway_error",
				Message:  err.Error(),
			}
		}

		rawFindings, err := llmgateway.ExtractJSONArray(raw)
		if err != nil {
			return nil, &reviewmodel.AnalyzerFailure{
				Category: b.spec.Category,
				Kind:     "parse_error",
				Message:  err.Error(),
			}
		}

		for _, rf := range rawFindings {
			finding, ok := b.toFinding(fc.FilePath, rf)
			if !ok {
				continue
			}
			findings = append(findings, finding)
		}
	}

	return findings, nil
}

// toFinding validates and converts one raw model object. Objects lacking a
// line or a non-empty description are discarded, as are objects without a
// severity (when Spec.RequireSeverity) or a suggestion (when
// Spec.RequireSuggestion); severity is clamped to the legal set, defaulting
// to medium on unknown values.
func (b *Base) toFinding(filePath string, rf llmgateway.RawFinding) (reviewmodel.Finding, bool) {
	if rf.Line <= 0 {
		return reviewmodel.Finding{}, false
	}
	if strings.TrimSpace(rf.Description) == "" {
		return reviewmodel.Finding{}, false
	}
	if b.spec.RequireSeverity && strings.TrimSpace(rf.Severity) == "" {
		return reviewmodel.Finding{}, false
	}
	if b.spec.RequireSuggestion && strings.TrimSpace(rf.Suggestion) == "" {
		return reviewmodel.Finding{}, false
	}

	severity := clampSeverity(rf.Severity)

	return reviewmodel.Finding{
		FilePath:    filePath,
		LineNumber:  rf.Line,
		Severity:    severity,
		Category:    b.spec.Category,
		Description: rf.Description,
		Suggestion:  rf.Suggestion,
		AgentSource: b.spec.Category,
	}, true
}

func clampSeverity(raw string) reviewmodel.Severity {
	s := reviewmodel.Severity(strings.ToLower(strings.TrimSpace(raw)))
	if s.Valid() {
		return s
	}
	return reviewmodel.SeverityMedium
}

func responseFormatInstructions(spec Spec) string {
	fields := "line, description, severity"
	if spec.RequireSuggestion {
		fields = "line, description, severity, suggestion"
	}
	return fmt.Sprintf(
		"Respond with a strict JSON array only, no prose before or after. "+
			"Each element is an object with fields: %s. "+
			"line MUST refer to the post-change (new) file's line numbers. "+
			"severity MUST be one of: low, medium, high, critical. "+
			"description MUST be non-empty.",
		fields,
	)
}
