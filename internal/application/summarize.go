package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// maxPatchChars bounds how much of each file's patch is sent to the LLM.
const maxPatchChars = 2000

// maxPromptFiles bounds how many files are described in a summary prompt.
const maxPromptFiles = 30

// handleSummarize serves the legacy /summarize trigger.
func (w *EventWorkflow) handleSummarize(
	ctx context.Context,
	gh driven.GitHubClient,
	ev model.Event,
	_ model.Command,
	op *operation,
) (commandResult, error) {
	op.step(ctx, "fetching pull request")
	pr, err := gh.GetPullRequest(ctx, ev.Repo, ev.PRNumber)
	if err != nil {
		return commandResult{}, collaborator("get pull request", err)
	}

	op.step(ctx, "listing changed files")
	files, err := gh.ListPullRequestFiles(ctx, ev.Repo, ev.PRNumber)
	if err != nil {
		return commandResult{}, collaborator("list pull request files", err)
	}

	op.step(ctx, "generating summary")
	prompt := summaryPrompt(pr, files)
	summary, generated := w.generate(ctx, prompt, fallbackSummary(pr, files))

	op.step(ctx, "posting summary")
	body := "## 📝 Pull request summary\n\n" + summary
	if err := gh.CreateIssueComment(ctx, ev.Repo, ev.PRNumber, body); err != nil {
		return commandResult{}, collaborator("post summary", err)
	}

	return commandResult{
		prompt: prompt,
		data: map[string]any{
			"files":     len(files),
			"generated": generated,
		},
	}, nil
}

// generate asks the LLM for text and falls back to the deterministic text
// when no generator is configured or the call fails. generated reports
// whether the LLM output was used.
func (w *EventWorkflow) generate(ctx context.Context, prompt, fallback string) (text string, generated bool) {
	if w.llm == nil {
		return fallback, false
	}
	out, err := w.llm.Generate(ctx, prompt)
	if err != nil {
		w.logger.Warn("text generation failed, using fallback", "error", err)
		return fallback, false
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return fallback, false
	}
	return out, true
}

func summaryPrompt(pr *model.PullRequest, files []model.ChangedFile) string {
	var b strings.Builder
	b.WriteString("Summarize this GitHub pull request for a reviewer. ")
	b.WriteString("Use a short overview paragraph followed by a bulleted list of notable changes and any risks. ")
	b.WriteString("Answer in GitHub-flavored markdown.\n\n")
	fmt.Fprintf(&b, "Title: %s\nAuthor: %s\n\n", pr.Title, pr.Author)
	if body := strings.TrimSpace(pr.Body); body != "" {
		fmt.Fprintf(&b, "Description:\n%s\n\n", body)
	}
	b.WriteString("Changed files:\n")
	for i, f := range files {
		if i == maxPromptFiles {
			fmt.Fprintf(&b, "... and %d more files\n", len(files)-maxPromptFiles)
			break
		}
		fmt.Fprintf(&b, "\n### %s (%s, +%d/-%d)\n", f.Filename, f.Status, f.Additions, f.Deletions)
		if patch := f.Patch; patch != "" {
			if len(patch) > maxPatchChars {
				patch = patch[:maxPatchChars] + "\n... (truncated)"
			}
			fmt.Fprintf(&b, "```diff\n%s\n```\n", patch)
		}
	}
	return b.String()
}

func fallbackSummary(pr *model.PullRequest, files []model.ChangedFile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** by @%s\n\n", pr.Title, pr.Author)

	additions, deletions := 0, 0
	for _, f := range files {
		additions += f.Additions
		deletions += f.Deletions
	}
	fmt.Fprintf(&b, "%d file(s) changed, +%d/-%d lines.\n\n", len(files), additions, deletions)
	for _, f := range files {
		fmt.Fprintf(&b, "- `%s` (%s, +%d/-%d)\n", f.Filename, f.Status, f.Additions, f.Deletions)
	}
	return strings.TrimRight(b.String(), "\n")
}
