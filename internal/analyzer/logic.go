package analyzer

import (
	"fmt"

	"github.com/livereview-cr/livereview-cr/internal/llmgateway"
	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

const logicSystemPrompt = `You are a senior engineer reviewing a code change for logic defects.
Look specifically for: null or None dereferences, unreachable code, off-by-one
errors, incorrect loop termination conditions, and wrong parameter types or
argument order. Ignore style and naming; another reviewer covers those.`

// NewLogic builds the logic analyzer: required fields line, description,
// severity (spec.md §4.D).
func NewLogic(gateway llmgateway.Invoker, agentID string) *Base {
	return NewBase(Spec{
		Category:        reviewmodel.CategoryLogic,
		AgentID:         agentID,
		SystemPrompt:    logicSystemPrompt,
		BuildUserPrompt: buildDiffPrompt,
		IgnoreLanguages: map[string]bool{"unknown": true},
		RequireSeverity: true,
	}, gateway)
}

func buildDiffPrompt(fc reviewmodel.FileChange) string {
	return fmt.Sprintf("File: %s (language: %s)\n\n%s", fc.FilePath, fc.Language, renderFileChange(fc))
}

// renderFileChange turns a FileChange's line events into a readable diff
// excerpt with both old and new line numbers, the way the teacher's
// langchain provider formats hunks before handing them to the model.
func renderFileChange(fc reviewmodel.FileChange) string {
	out := ""
	for _, lc := range fc.Deletions {
		out += fmt.Sprintf("- [old:%d] %s\n", lc.OldLine, lc.Content)
	}
	for _, lc := range fc.Modifications {
		out += fmt.Sprintf("- [old:%d] %s\n+ [new:%d] %s\n", lc.OldLine, lc.OldContent, lc.NewLine, lc.Content)
	}
	for _, lc := range fc.Additions {
		out += fmt.Sprintf("+ [new:%d] %s\n", lc.NewLine, lc.Content)
	}
	return out
}
