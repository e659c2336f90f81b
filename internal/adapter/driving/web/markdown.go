package web

import (
	"bytes"
	"strings"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// maxMarkdownBytes bounds the source rendered for one cell. Generated prompts
// embed whole files and can be large.
const maxMarkdownBytes = 16 << 10

const truncatedNote = "\n\n*(truncated)*"

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

// RenderMarkdown converts a markdown string to sanitized HTML.
// Returns empty string for empty input.
func RenderMarkdown(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	if len(src) > maxMarkdownBytes {
		src = truncateUTF8(src, maxMarkdownBytes) + truncatedNote
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}

// RenderSuggestion renders a code suggestion as escaped lines with diff classes.
// Text that is a unified diff keeps its line roles; plain replacement code is
// shown entirely as additions.
func RenderSuggestion(text string) string {
	if text == "" {
		return ""
	}

	text = strings.TrimSuffix(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := strings.Split(text, "\n")
	isDiff := looksLikeDiff(lines)

	var buf strings.Builder
	buf.Grow(len(text) * 2)

	for i, line := range lines {
		if i > 0 {
			buf.WriteByte('\n')
		}

		cssClass := "diff-add"
		if isDiff {
			cssClass = classForDiffLine(line)
		}

		buf.WriteString(`<span class="`)
		buf.WriteString(cssClass)
		buf.WriteString(`">`)
		buf.WriteString(templ.EscapeString(line))
		buf.WriteString(`</span>`)
	}

	return buf.String()
}

func looksLikeDiff(lines []string) bool {
	for _, line := range lines {
		if strings.HasPrefix(line, "@@") {
			return true
		}
	}
	for _, line := range lines {
		if line != "" && !strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, " ") {
			return false
		}
	}
	return len(lines) > 0 && lines[0] != ""
}

func classForDiffLine(line string) string {
	switch {
	case strings.HasPrefix(line, "@@"):
		return "diff-header"
	case strings.HasPrefix(line, "+"):
		return "diff-add"
	case strings.HasPrefix(line, "-"):
		return "diff-del"
	}
	return "diff-ctx"
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
