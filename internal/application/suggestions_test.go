package application_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmbish04/gh-bot/internal/application"
)

func TestExtractSuggestions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "suggestion fence",
			text: "Consider this:\n```suggestion\nconst x = 2;\n```\n",
			want: []string{"const x = 2;"},
		},
		{
			name: "suggestion fence accepted without code hints",
			text: "```suggestion\nHello world\n```",
			want: []string{"Hello world"},
		},
		{
			name: "language fence that looks like code",
			text: "Try:\n```go\nreturn fmt.Errorf(\"x: %w\", err)\n```",
			want: []string{"return fmt.Errorf(\"x: %w\", err)"},
		},
		{
			name: "language fence with prose is ignored",
			text: "```python\njust some words here\n```",
			want: nil,
		},
		{
			name: "untagged fence is ignored",
			text: "```\nx = 1\n```",
			want: nil,
		},
		{
			name: "order preserved and duplicates kept",
			text: "```suggestion\na()\n```\ntext\n```suggestion\nb()\n```\n```suggestion\na()\n```",
			want: []string{"a()", "b()", "a()"},
		},
		{
			name: "whitespace-only fence discarded",
			text: "```suggestion\n   \n```",
			want: nil,
		},
		{
			name: "diff fallback skips file header",
			text: "--- a/x.go\n+++ b/x.go\n@@ -1 +1,2 @@\n-old\n+new one\n+new two",
			want: []string{"new one\nnew two"},
		},
		{
			name: "crlf normalized",
			text: "```suggestion\r\nline1\r\nline2\r\n```",
			want: []string{"line1\nline2"},
		},
		{
			name: "plain prose yields nothing",
			text: "Looks good to me!",
			want: nil,
		},
		{
			name: "empty input",
			text: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, application.ExtractSuggestions(tt.text))
		})
	}
}
