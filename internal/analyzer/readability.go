package analyzer

import (
	"github.com/livereview-cr/livereview-cr/internal/llmgateway"
	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

const readabilitySystemPrompt = `You are a senior engineer reviewing a code change for readability.
Look specifically for: high cyclomatic complexity, unclear naming, excessive
nesting depth, and missing documentation on exported or public symbols. Every
finding MUST include a concrete suggestion for improving it.`

// NewReadability builds the readability analyzer: required fields line,
// description, suggestion (suggestion MUST be present, spec.md §4.D).
func NewReadability(gateway llmgateway.Invoker, agentID string) *Base {
	return NewBase(Spec{
		Category:          reviewmodel.CategoryReadability,
		AgentID:           agentID,
		SystemPrompt:      readabilitySystemPrompt,
		BuildUserPrompt:   buildDiffPrompt,
		IgnoreLanguages:   map[string]bool{"unknown": true},
		RequireSuggestion: true,
	}, gateway)
}
