package analyzer

import (
	"github.com/livereview-cr/livereview-cr/internal/llmgateway"
	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

const performanceSystemPrompt = `You are a senior engineer reviewing a code change for performance.
Look specifically for: poor algorithmic complexity, redundant recomputation,
and N+1 I/O patterns (repeated network or database calls inside a loop).
Every finding's description MUST embed a short sentence describing the
expected performance impact, and MUST include a concrete suggestion.`

// NewPerformance builds the performance analyzer: required fields line,
// description, suggestion, with an impact sentence embedded in the
// description (spec.md §4.D).
func NewPerformance(gateway llmgateway.Invoker, agentID string) *Base {
	return NewBase(Spec{
		Category:          reviewmodel.CategoryPerformance,
		AgentID:           agentID,
		SystemPrompt:      performanceSystemPrompt,
		BuildUserPrompt:   buildDiffPrompt,
		IgnoreLanguages:   map[string]bool{"unknown": true},
		RequireSuggestion: true,
	}, gateway)
}
