// Package aggregate implements the Aggregator/Formatter: severity
// filtering, out-of-range dropping, (file_path, line_number) grouping,
// summary computation, and Markdown rendering. Adapted from the teacher's
// internal/prompts/summary_section.go strings.Builder rendering style and
// internal/reviewmodel/builders.go's map-then-flatten grouping pattern,
// generalized from GitLab discussion threads to review findings.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

// Result bundles everything the Review Service needs after aggregation.
type Result struct {
	Findings []reviewmodel.Finding
	Summary  reviewmodel.ReviewSummary
	Markdown string
}

// Run filters, groups, summarizes, and renders findings per spec.md §4.F.
func Run(findings []reviewmodel.Finding, parsed *reviewmodel.ParsedDiff, config reviewmodel.ReviewConfig) Result {
	inRange := dropOutOfRange(findings, parsed)
	filtered := filterBySeverity(inRange, config.SeverityThreshold)
	summary := summarize(filtered, parsed)
	markdown := renderMarkdown(filtered, summary)

	return Result{Findings: filtered, Summary: summary, Markdown: markdown}
}

// dropOutOfRange removes findings whose line_number does not correspond to
// an actual line in its file_path within the parsed diff (spec.md's
// invariant on Finding.line_number). A missing file also drops the finding.
func dropOutOfRange(findings []reviewmodel.Finding, parsed *reviewmodel.ParsedDiff) []reviewmodel.Finding {
	if parsed == nil {
		return nil
	}
	out := make([]reviewmodel.Finding, 0, len(findings))
	for _, f := range findings {
		fc, ok := parsed.FindFile(f.FilePath)
		if !ok || fc.IsBinary {
			continue
		}
		if !fc.HasLine(f.LineNumber) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// filterBySeverity drops findings ordered below threshold.
func filterBySeverity(findings []reviewmodel.Finding, threshold reviewmodel.Severity) []reviewmodel.Finding {
	out := make([]reviewmodel.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Severity.AtLeast(threshold) {
			out = append(out, f)
		}
	}
	return out
}

func summarize(findings []reviewmodel.Finding, parsed *reviewmodel.ParsedDiff) reviewmodel.ReviewSummary {
	summary := reviewmodel.ReviewSummary{
		TotalFindings: len(findings),
		BySeverity:    reviewmodel.SeverityHistogram{},
		ByCategory:    reviewmodel.CategoryHistogram{},
	}
	for _, f := range findings {
		summary.BySeverity[f.Severity]++
		summary.ByCategory[f.Category]++
	}

	if parsed != nil {
		for _, fc := range parsed.Files {
			if fc.IsBinary {
				continue
			}
			summary.FilesAnalyzed++
			summary.LinesChanged += fc.LineCount()
		}
	}

	return summary
}

// group is one logical comment: every finding on the same (file_path,
// line_number).
type group struct {
	filePath   string
	lineNumber int
	findings   []reviewmodel.Finding
}

func groupFindings(findings []reviewmodel.Finding) []group {
	index := map[string]int{}
	var groups []group

	for _, f := range findings {
		key := fmt.Sprintf("%s:%d", f.FilePath, f.LineNumber)
		if i, ok := index[key]; ok {
			groups[i].findings = append(groups[i].findings, f)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, group{filePath: f.FilePath, lineNumber: f.LineNumber, findings: []reviewmodel.Finding{f}})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].filePath != groups[j].filePath {
			return groups[i].filePath < groups[j].filePath
		}
		return groups[i].lineNumber < groups[j].lineNumber
	})

	return groups
}

// renderMarkdown builds the review report: one top-level section per file,
// subsections per line, one bullet per finding in the line's group. When
// there are no findings it still emits a positive summary document.
func renderMarkdown(findings []reviewmodel.Finding, summary reviewmodel.ReviewSummary) string {
	var b strings.Builder

	b.WriteString("# Code Review Report\n\n")
	writeSummarySection(&b, summary)

	if len(findings) == 0 {
		b.WriteString("\nNo issues detected. The changes look good.\n")
		return b.String()
	}

	groups := groupFindings(findings)

	var currentFile string
	for _, g := range groups {
		if g.filePath != currentFile {
			currentFile = g.filePath
			b.WriteString(fmt.Sprintf("\n## %s\n", escapeMarkdown(currentFile)))
		}
		b.WriteString(fmt.Sprintf("\n### Line %d\n", g.lineNumber))
		for _, f := range g.findings {
			b.WriteString(fmt.Sprintf("- **[%s/%s]** %s", f.Category, f.Severity, escapeMarkdown(f.Description)))
			if strings.TrimSpace(f.Suggestion) != "" {
				b.WriteString(fmt.Sprintf("\n  - Suggestion: %s", escapeMarkdown(f.Suggestion)))
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func writeSummarySection(b *strings.Builder, summary reviewmodel.ReviewSummary) {
	b.WriteString("## Summary\n\n")
	b.WriteString(fmt.Sprintf("- Total findings: %d\n", summary.TotalFindings))
	b.WriteString(fmt.Sprintf("- Files analyzed: %d\n", summary.FilesAnalyzed))
	b.WriteString(fmt.Sprintf("- Lines changed: %d\n", summary.LinesChanged))

	if len(summary.BySeverity) > 0 {
		b.WriteString("- By severity:")
		for _, sev := range []reviewmodel.Severity{reviewmodel.SeverityCritical, reviewmodel.SeverityHigh, reviewmodel.SeverityMedium, reviewmodel.SeverityLow} {
			if count, ok := summary.BySeverity[sev]; ok && count > 0 {
				b.WriteString(fmt.Sprintf(" %s=%d", sev, count))
			}
		}
		b.WriteString("\n")
	}

	if len(summary.ByCategory) > 0 {
		b.WriteString("- By category:")
		for _, cat := range reviewmodel.AllCategories {
			if count, ok := summary.ByCategory[cat]; ok && count > 0 {
				b.WriteString(fmt.Sprintf(" %s=%d", cat, count))
			}
		}
		b.WriteString("\n")
	}
}

// escapeMarkdown escapes Markdown-significant characters in untrusted text
// (finding descriptions and suggestions sourced from model output or code
// under review) so they render as literal text.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"*", "\\*",
		"_", "\\_",
		"`", "\\`",
		"[", "\\[",
		"]", "\\]",
		"#", "\\#",
		"|", "\\|",
	)
	return replacer.Replace(s)
}
