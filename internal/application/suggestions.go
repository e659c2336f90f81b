package application

import (
	"regexp"
	"strings"
)

// fencePattern matches fenced code blocks and captures the info string and
// the body. The closing fence must use at least as many backticks as a
// typical opener; nested fences are not supported.
var fencePattern = regexp.MustCompile("(?s)(`{3,})[ \t]*([^\n`]*)\n(.*?)\n?`{3,}")

// codeHintPattern recognizes text that looks like source code rather than prose.
var codeHintPattern = regexp.MustCompile(`[{}()]|[^=!<>]=[^=]|\b(function|class|import|def|return)\b`)

// codeLanguages are the fence info strings accepted as generic code blocks.
var codeLanguages = map[string]bool{
	"js": true, "javascript": true, "jsx": true, "ts": true, "typescript": true, "tsx": true,
	"py": true, "python": true, "go": true, "golang": true, "java": true, "kotlin": true,
	"rb": true, "ruby": true, "rs": true, "rust": true, "c": true, "cpp": true, "c++": true,
	"cs": true, "csharp": true, "php": true, "swift": true, "scala": true,
	"sh": true, "bash": true, "shell": true, "sql": true, "html": true, "css": true,
	"json": true, "yaml": true, "yml": true, "toml": true,
}

// ExtractSuggestions returns the candidate replacement blocks found in a
// comment body or diff hunk, in first-seen order. Duplicates are kept.
//
// Fenced blocks tagged "suggestion" are always accepted; fenced blocks tagged
// with a common language are accepted when they look like code. When no fence
// qualifies, the "+" lines of a unified diff are reassembled into a single
// candidate.
func ExtractSuggestions(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	text = normalizeNewlines(text)

	var suggestions []string
	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		info := strings.ToLower(strings.TrimSpace(m[2]))
		lang, _, _ := strings.Cut(info, " ")
		body := m[3]

		switch {
		case lang == "suggestion":
		case codeLanguages[lang] && codeHintPattern.MatchString(body):
		default:
			continue
		}

		if strings.TrimSpace(body) == "" {
			continue
		}
		suggestions = append(suggestions, body)
	}

	if len(suggestions) > 0 {
		return suggestions
	}

	if added := addedLines(text); strings.TrimSpace(added) != "" {
		return []string{added}
	}

	return nil
}

// addedLines joins the "+" lines of a unified diff with their marker removed.
// The "+++" file header is skipped.
func addedLines(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "+++") || !strings.HasPrefix(line, "+") {
			continue
		}
		lines = append(lines, line[1:])
	}
	return strings.Join(lines, "\n")
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
