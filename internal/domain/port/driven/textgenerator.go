package driven

import "context"

// TextGenerator is the LLM capability used for summaries, issue drafting and
// categorization. Callers must treat it as fallible.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
