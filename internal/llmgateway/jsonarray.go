package llmgateway

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/livereview-cr/livereview-cr/internal/apperrors"
)

// RawFinding is the loosely-typed shape an analyzer prompt asks the model
// to emit, per spec.md §4.D: {line, description, severity, suggestion?}.
type RawFinding struct {
	Line        int    `json:"line"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Suggestion  string `json:"suggestion"`
}

// ExtractJSONArray locates the first "[" and the matching final "]" in raw
// text to tolerate preamble/trailing prose, then parses the array into
// RawFindings, falling back to github.com/kaptinlin/jsonrepair when the
// slice isn't valid JSON as-is. Adapted from the teacher's
// internal/llm/json_repair.go + response_processor.go extraction/repair
// pipeline, narrowed to the array-only shape this gateway's callers need.
func ExtractJSONArray(raw string) ([]RawFinding, error) {
	candidate := sliceToArray(raw)
	if candidate == "" {
		return nil, &apperrors.LLMError{Kind: apperrors.LLMParse, Message: "no JSON array found in response"}
	}

	var findings []RawFinding
	if err := json.Unmarshal([]byte(candidate), &findings); err == nil {
		return findings, nil
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, &apperrors.LLMError{Kind: apperrors.LLMParse, Message: "json repair failed", Cause: err}
	}
	if err := json.Unmarshal([]byte(repaired), &findings); err != nil {
		return nil, &apperrors.LLMError{Kind: apperrors.LLMParse, Message: "json parse failed after repair", Cause: err}
	}
	return findings, nil
}

// sliceToArray returns the substring spanning the first "[" through its
// matching "]", tracking string state so brackets inside quoted strings
// don't throw off the bracket count.
func sliceToArray(raw string) string {
	start := strings.Index(raw, "[")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escapeNext := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escapeNext = true
			}
		case '"':
			inString = !inString
		case '[':
			if !inString {
				depth++
			}
		case ']':
			if !inString {
				depth--
				if depth == 0 {
					return raw[start : i+1]
				}
			}
		}
	}
	return raw[start:]
}
