package application

import (
	"strings"

	"github.com/jmbish04/gh-bot/internal/domain/model"
)

// PatchResult is the detailed outcome of planning a file change.
type PatchResult struct {
	Changes model.FileChangeSet
	// Applied counts suggestions that were spliced into the file.
	Applied int
	// Ambiguous holds suggestions whose anchor only matched after whitespace
	// was collapsed. They are skipped rather than risk corrupting the file.
	Ambiguous []string
	// Unmatched holds suggestions whose anchor was not found at all.
	Unmatched []string
}

// Skipped returns the number of suggestions that were not applied.
func (r PatchResult) Skipped() int {
	return len(r.Ambiguous) + len(r.Unmatched)
}

// ExtractBeforeSpan returns the text a diff hunk is anchored to: the context
// and deletion lines with their one-character marker removed, joined by
// newlines, with trailing whitespace trimmed. Hunk headers and
// "\ No newline" markers are ignored.
func ExtractBeforeSpan(diffHunk string) string {
	var lines []string
	for _, line := range strings.Split(normalizeNewlines(diffHunk), "\n") {
		switch {
		case strings.HasPrefix(line, "@@"), strings.HasPrefix(line, `\`):
			continue
		case strings.HasPrefix(line, " "), strings.HasPrefix(line, "-"):
			lines = append(lines, line[1:])
		case line == "":
			lines = append(lines, "")
		}
	}
	return strings.TrimRight(strings.Join(lines, "\n"), " \t\r\n")
}

// ExtractAddedSpan returns the pure addition lines of a diff hunk with their
// marker removed. The "+++" header is skipped.
func ExtractAddedSpan(diffHunk string) string {
	return addedLines(normalizeNewlines(diffHunk))
}

// BuildFileChanges computes the new content of filePath after applying the
// suggestions anchored by diffHunk. currentContent is nil when the file does
// not exist at the target commit. The result is empty when nothing applied.
func BuildFileChanges(currentContent *string, diffHunk string, suggestions []string, filePath string) model.FileChangeSet {
	return PlanFileChanges(currentContent, diffHunk, suggestions, filePath).Changes
}

// PlanFileChanges is BuildFileChanges with a report of what was skipped.
func PlanFileChanges(currentContent *string, diffHunk string, suggestions []string, filePath string) PatchResult {
	result := PatchResult{Changes: model.FileChangeSet{}}
	if currentContent == nil {
		return result
	}

	before := ExtractBeforeSpan(diffHunk)
	added := strings.TrimRight(ExtractAddedSpan(diffHunk), " \t\r\n")

	if before == "" && added == "" && *currentContent == "" {
		var parts []string
		for _, s := range suggestions {
			if strings.TrimSpace(s) != "" {
				parts = append(parts, normalizeNewlines(s))
			}
		}
		if len(parts) > 0 {
			result.Changes[filePath] = strings.Join(parts, "\n\n")
			result.Applied = len(parts)
		}
		return result
	}

	var candidates []string
	for _, span := range []string{before, added} {
		if span != "" {
			candidates = append(candidates, span)
		}
	}

	original := *currentContent
	working := normalizeNewlines(original)

	for _, raw := range suggestions {
		suggestion := normalizeNewlines(raw)

		replaced := false
		for _, span := range candidates {
			if strings.Contains(working, span) {
				working = strings.Replace(working, span, suggestion, 1)
				replaced = true
				break
			}
		}
		if replaced {
			result.Applied++
			continue
		}

		if looseMatch(working, candidates) {
			result.Ambiguous = append(result.Ambiguous, raw)
		} else {
			result.Unmatched = append(result.Unmatched, raw)
		}
	}

	if result.Applied > 0 && working != original {
		result.Changes[filePath] = working
	}

	return result
}

// looseMatch reports whether any span is contained in content once runs of
// whitespace are collapsed in both.
func looseMatch(content string, spans []string) bool {
	collapsed := collapseWhitespace(content)
	for _, span := range spans {
		if c := collapseWhitespace(span); c != "" && strings.Contains(collapsed, c) {
			return true
		}
	}
	return false
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
