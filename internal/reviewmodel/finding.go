package reviewmodel

import (
	"encoding/json"
	"sort"
)

// findingWire is the on-wire shape of a Finding. It carries both
// "description" and the backward-compatibility alias "message" holding the
// same value, per the aperture documented in spec.md §6/§9. The in-memory
// Finding type has a single canonical field; this is a serialization-only
// concern.
type findingWire struct {
	FilePath    string   `json:"file_path"`
	LineNumber  int      `json:"line_number"`
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Message     string   `json:"message"`
	Suggestion  string   `json:"suggestion,omitempty"`
	AgentSource Category `json:"agent_source"`
}

// MarshalJSON implements json.Marshaler, emitting description and its
// message alias side by side.
func (f Finding) MarshalJSON() ([]byte, error) {
	return json.Marshal(findingWire{
		FilePath:    f.FilePath,
		LineNumber:  f.LineNumber,
		Severity:    f.Severity,
		Category:    f.Category,
		Description: f.Description,
		Message:     f.Description,
		Suggestion:  f.Suggestion,
		AgentSource: f.AgentSource,
	})
}

// UnmarshalJSON implements json.Unmarshaler, accepting either field for the
// description and preferring "description" when both are present.
func (f *Finding) UnmarshalJSON(data []byte) error {
	var w findingWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	desc := w.Description
	if desc == "" {
		desc = w.Message
	}
	*f = Finding{
		FilePath:    w.FilePath,
		LineNumber:  w.LineNumber,
		Severity:    w.Severity,
		Category:    w.Category,
		Description: desc,
		Suggestion:  w.Suggestion,
		AgentSource: w.AgentSource,
	}
	return nil
}

// SortFindings imposes the deterministic total order from spec.md §4.E:
// file_path ascending, line_number ascending, severity descending
// (critical first), agent_source ascending.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.LineNumber != b.LineNumber {
			return a.LineNumber < b.LineNumber
		}
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		return a.AgentSource < b.AgentSource
	})
}
