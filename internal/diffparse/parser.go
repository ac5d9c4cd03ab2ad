// Package diffparse turns a raw unified diff into the structured
// reviewmodel.ParsedDiff the rest of the pipeline operates on. Adapted from
// the teacher's internal/diff/parser.go file-splitting approach and the
// line-walking counters in internal/reviewmodel/diff_helpers.go's
// AnnotateUnifiedDiffHunk, generalized to the full add/delete/modify
// classification spec.md §4.B requires.
package diffparse

import (
	"regexp"
	"strings"

	"github.com/livereview-cr/livereview-cr/internal/apperrors"
	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

var fileHeaderRe = regexp.MustCompile(`(?m)^diff --git a/(.+) b/(.+)$`)
var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// languageByExt is a closed map; extensions absent from it resolve to
// "unknown" rather than guessing.
var languageByExt = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".hpp":  "cpp",
	".go":   "go",
	".rs":   "rust",
	".rb":   "ruby",
	".php":  "php",
	".cs":   "csharp",
	".kt":   "kotlin",
	".swift": "swift",
}

// Parse splits raw unified diff text into per-file changes. It returns a
// *apperrors.ParseError when the text contains no recognizable file diff at
// all; a single malformed hunk within an otherwise valid diff is skipped
// rather than failing the whole parse, per spec.md §4.B's malformed-hunk
// recovery requirement.
func Parse(raw string) (*reviewmodel.ParsedDiff, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &apperrors.ParseError{Message: "empty diff"}
	}

	blocks := splitFileBlocks(raw)
	if len(blocks) == 0 {
		return nil, &apperrors.ParseError{Message: "no file headers found in diff"}
	}

	parsed := &reviewmodel.ParsedDiff{}
	for _, block := range blocks {
		fc, ok := parseFileBlock(block)
		if ok {
			parsed.Files = append(parsed.Files, fc)
		}
	}
	return parsed, nil
}

// splitFileBlocks breaks the raw diff into one string per "diff --git"
// section, keeping the header line at the start of each block.
func splitFileBlocks(raw string) []string {
	locs := fileHeaderRe.FindAllStringIndex(raw, -1)
	if len(locs) == 0 {
		return nil
	}
	blocks := make([]string, 0, len(locs))
	for i, loc := range locs {
		start := loc[0]
		end := len(raw)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks = append(blocks, raw[start:end])
	}
	return blocks
}

func parseFileBlock(block string) (reviewmodel.FileChange, bool) {
	m := fileHeaderRe.FindStringSubmatch(block)
	if m == nil {
		return reviewmodel.FileChange{}, false
	}
	prePath, postPath := m[1], m[2]

	path := resolvePath(block, prePath, postPath)
	fc := reviewmodel.FileChange{
		FilePath: path,
		Language: detectLanguage(path),
	}

	if isBinaryBlock(block) {
		fc.IsBinary = true
		return fc, true
	}

	lines := strings.Split(block, "\n")
	hunkStarts := []int{}
	for i, line := range lines {
		if hunkHeaderRe.MatchString(line) {
			hunkStarts = append(hunkStarts, i)
		}
	}

	for i, start := range hunkStarts {
		end := len(lines)
		if i+1 < len(hunkStarts) {
			end = hunkStarts[i+1]
		}
		oldStart, newStart, ok := parseHunkHeader(lines[start])
		if !ok {
			continue // malformed hunk header: skip this hunk, keep the rest
		}
		adds, dels, mods := parseHunkBody(lines[start+1:end], oldStart, newStart)
		fc.Additions = append(fc.Additions, adds...)
		fc.Deletions = append(fc.Deletions, dels...)
		fc.Modifications = append(fc.Modifications, mods...)
	}

	return fc, true
}

func parseHunkHeader(header string) (oldStart, newStart int, ok bool) {
	m := hunkHeaderRe.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, false
	}
	oldStart = atoiDefault(m[1], 0)
	newStart = atoiDefault(m[3], 0)
	return oldStart, newStart, true
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}

type pendingLine struct {
	content string
	line    int
}

// parseHunkBody walks one hunk's body lines, pairing consecutive runs of
// removed lines with consecutive runs of added lines into modify events
// (one pair per position, per spec.md's "single - immediately followed by
// + at the same hunk position produces exactly one modify event"), with any
// length difference falling back to pure deletes or adds.
func parseHunkBody(lines []string, oldStart, newStart int) (adds, dels, mods []reviewmodel.LineChange) {
	oldLine, newLine := oldStart, newStart
	var pendingOld, pendingNew []pendingLine

	flush := func() {
		n := len(pendingOld)
		if len(pendingNew) < n {
			n = len(pendingNew)
		}
		for i := 0; i < n; i++ {
			mods = append(mods, reviewmodel.LineChange{
				Kind:       reviewmodel.LineModify,
				Content:    pendingNew[i].content,
				OldContent: pendingOld[i].content,
				NewLine:    pendingNew[i].line,
				OldLine:    pendingOld[i].line,
			})
		}
		for i := n; i < len(pendingOld); i++ {
			dels = append(dels, reviewmodel.LineChange{
				Kind:    reviewmodel.LineDelete,
				Content: pendingOld[i].content,
				OldLine: pendingOld[i].line,
			})
		}
		for i := n; i < len(pendingNew); i++ {
			adds = append(adds, reviewmodel.LineChange{
				Kind:    reviewmodel.LineAdd,
				Content: pendingNew[i].content,
				NewLine: pendingNew[i].line,
			})
		}
		pendingOld = nil
		pendingNew = nil
	}

	for _, line := range lines {
		if line == "" {
			continue
		}
		switch line[0] {
		case '-':
			pendingOld = append(pendingOld, pendingLine{content: line[1:], line: oldLine})
			oldLine++
		case '+':
			pendingNew = append(pendingNew, pendingLine{content: line[1:], line: newLine})
			newLine++
		case '\\':
			// "\ No newline at end of file" marker, not a content line.
		case ' ':
			flush()
			oldLine++
			newLine++
		default:
			flush()
		}
	}
	flush()
	return adds, dels, mods
}

func isBinaryBlock(block string) bool {
	return strings.Contains(block, "Binary files ") && strings.Contains(block, " differ") ||
		strings.Contains(block, "GIT binary patch")
}

// resolvePath prefers the +++ b/ path (the post-change name), falling back
// to the --- a/ path for pure deletions where b/ resolves to /dev/null, and
// finally to the diff --git header paths.
func resolvePath(block, prePath, postPath string) string {
	for _, line := range strings.Split(block, "\n") {
		if strings.HasPrefix(line, "+++ ") {
			p := strings.TrimPrefix(line, "+++ ")
			if p == "/dev/null" {
				continue
			}
			return strings.TrimPrefix(p, "b/")
		}
	}
	for _, line := range strings.Split(block, "\n") {
		if strings.HasPrefix(line, "--- ") {
			p := strings.TrimPrefix(line, "--- ")
			if p != "/dev/null" {
				return strings.TrimPrefix(p, "a/")
			}
		}
	}
	if postPath != "" {
		return postPath
	}
	return prePath
}

func detectLanguage(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 || idx == len(path)-1 {
		return "unknown"
	}
	ext := strings.ToLower(path[idx:])
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	return "unknown"
}
