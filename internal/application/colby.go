package application

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// copilotAssignee is the login GitHub uses for the Copilot coding agent.
const copilotAssignee = "Copilot"

// generalFile groups bot suggestions that are not attached to a file.
const generalFile = "(general)"

// HelpText is the static command reference posted by /colby help.
const HelpText = `## 🤖 Colby commands

| Command | What it does |
|---|---|
| ` + "`/colby implement`" + ` | Apply the suggestion in this comment, or every review suggestion on the PR |
| ` + "`/colby create issue`" + ` | Open an issue from this conversation (add "and assign to copilot" to assign it) |
| ` + "`/colby bookmark this suggestion`" + ` | Save the suggestion as a best practice |
| ` + "`/colby extract suggestions`" + ` | Collect suggestions left by review bots |
| ` + "`/colby extract suggestions to issues`" + ` | Same, opening one issue per file |
| ` + "`/colby help`" + ` | Show this message |
| ` + "`/apply`" + ` | Apply the suggestion in this review comment |
| ` + "`/summarize`" + ` | Summarize the pull request |

Review comments with suggestion blocks are applied automatically when no command is given.`

// dispatchColby runs every /colby command of the event in order. One
// command's failure never stops the next one. The event is a conflict if any
// command hit a moved head, and a failure if nothing completed and at least
// one command failed on a collaborator, so a retry policy can see both.
func (w *EventWorkflow) dispatchColby(ctx context.Context, gh driven.GitHubClient, ev model.Event) Outcome {
	cmds := ParseColbyCommands(ev.Triggers)
	entries := w.ledger.queue(ctx, ev, cmds)

	var completed, conflict, collaboratorFailed, failed int
	for _, entry := range entries {
		err := w.runCommand(ctx, gh, ev, entry, w.colbyHandler(entry.command.Name))
		var collab *CollaboratorError
		switch {
		case err == nil:
			completed++
		case Classify(err) == OutcomeConflict:
			conflict++
		case errors.As(err, &collab):
			collaboratorFailed++
		default:
			failed++
		}
	}

	msg := fmt.Sprintf("processed %d command(s), %d failed", len(entries), conflict+collaboratorFailed+failed)
	switch {
	case conflict > 0:
		return Outcome{Kind: OutcomeConflict, Message: msg}
	case completed == 0 && collaboratorFailed > 0:
		return Outcome{Kind: OutcomeFailed, Message: msg}
	}
	return Outcome{Kind: OutcomeOK, Message: msg}
}

// colbyHandler maps a command to its handler.
func (w *EventWorkflow) colbyHandler(name model.CommandName) commandHandler {
	switch name {
	case model.CommandImplement:
		return w.handleImplement
	case model.CommandCreateIssue:
		return w.handleCreateIssue
	case model.CommandBookmarkSuggestion:
		return w.handleBookmark
	case model.CommandExtractSuggestions, model.CommandExtractSuggestionsToIssues:
		return w.handleExtract
	case model.CommandHelp:
		return w.handleHelp
	default:
		return handleUnknown
	}
}

func (w *EventWorkflow) handleImplement(
	ctx context.Context,
	gh driven.GitHubClient,
	ev model.Event,
	_ model.Command,
	op *operation,
) (commandResult, error) {
	var targets []applyTarget
	var detached []string
	var err error
	if len(ev.Suggestions) > 0 {
		targets, detached, err = w.eventTargets(ctx, gh, ev)
	} else {
		targets, err = w.harvestTargets(ctx, gh, ev)
	}
	if err != nil {
		return commandResult{}, err
	}

	if len(targets) == 0 {
		if len(detached) > 0 {
			report := applyReport{detached: detached}
			w.bestEffortComment(ctx, gh, ev, noChangesComment(report))
			return commandResult{data: report.resultData()}, nil
		}
		w.bestEffortComment(ctx, gh, ev, "No suggestions found on this pull request, nothing to implement.")
		return commandResult{data: map[string]any{"status": "no_suggestions"}}, nil
	}

	report, err := w.applyTargets(ctx, gh, ev, targets, detached, op)
	if err != nil {
		return commandResult{}, err
	}
	return commandResult{data: report.resultData()}, nil
}

func (w *EventWorkflow) handleCreateIssue(
	ctx context.Context,
	gh driven.GitHubClient,
	ev model.Event,
	cmd model.Command,
	op *operation,
) (commandResult, error) {
	op.step(ctx, "gathering context")
	pr, err := gh.GetPullRequest(ctx, ev.Repo, ev.PRNumber)
	if err != nil {
		return commandResult{}, collaborator("get pull request", err)
	}
	thread, err := w.conversation(ctx, gh, ev)
	if err != nil {
		return commandResult{}, err
	}

	op.step(ctx, "drafting issue")
	prompt := issuePrompt(pr, ev, thread)
	draft, generated := w.generate(ctx, prompt, "")
	title, body := parseIssueDraft(draft)
	if title == "" {
		title, body = fallbackIssue(pr, ev, thread)
	}
	body += fmt.Sprintf("\n\n---\nCreated from %s by @%s via `/colby create issue`.", pr.URL, ev.Author)

	op.step(ctx, "creating issue")
	issue, err := gh.CreateIssue(ctx, ev.Repo, title, body, []string{"colby"})
	if err != nil {
		return commandResult{}, collaborator("create issue", err)
	}

	assigned := false
	if cmd.Args.AssignToCopilot {
		if err := gh.AssignIssue(ctx, ev.Repo, issue.Number, []string{copilotAssignee}); err != nil {
			w.logger.Warn("failed to assign issue to copilot",
				"repo", ev.Repo, "issue_number", issue.Number, "error", err)
		} else {
			assigned = true
		}
	}

	w.linkIssue(ctx, ev, issue, cmd.Name, ev.FilePath)

	op.step(ctx, "posting link")
	msg := fmt.Sprintf("📌 Created issue [#%d](%s): %s", issue.Number, issue.URL, title)
	switch {
	case assigned:
		msg += "\n\nAssigned to @Copilot."
	case cmd.Args.AssignToCopilot:
		msg += "\n\n⚠️ Could not assign the issue to Copilot. Is the coding agent enabled for this repository?"
	}
	w.bestEffortComment(ctx, gh, ev, msg)

	return commandResult{
		prompt: prompt,
		data: map[string]any{
			"issue_number": issue.Number,
			"issue_url":    issue.URL,
			"assigned":     assigned,
			"generated":    generated,
		},
	}, nil
}

// conversation returns the comments around the event: the whole review
// thread for a review comment, otherwise the recent PR conversation.
func (w *EventWorkflow) conversation(ctx context.Context, gh driven.GitHubClient, ev model.Event) ([]string, error) {
	if ev.Kind == model.EventKindReviewComment && ev.CommentID != 0 {
		comments, err := gh.ListReviewComments(ctx, ev.Repo, ev.PRNumber)
		if err != nil {
			return nil, collaborator("list review comments", err)
		}
		var lines []string
		for _, c := range threadOf(comments, ev.CommentID) {
			lines = append(lines, fmt.Sprintf("@%s on %s:%d: %s", c.Author, c.Path, c.Line, strings.TrimSpace(c.Body)))
		}
		return lines, nil
	}

	comments, err := gh.ListIssueComments(ctx, ev.Repo, ev.PRNumber)
	if err != nil {
		return nil, collaborator("list issue comments", err)
	}
	if len(comments) > 10 {
		comments = comments[len(comments)-10:]
	}
	lines := make([]string, 0, len(comments))
	for _, c := range comments {
		lines = append(lines, fmt.Sprintf("@%s: %s", c.Author, strings.TrimSpace(c.Body)))
	}
	return lines, nil
}

// threadOf returns the root of commentID's thread followed by its replies,
// in the order GitHub listed them.
func threadOf(comments []model.ReviewComment, commentID int64) []model.ReviewComment {
	root := commentID
	for _, c := range comments {
		if c.ID == commentID && c.InReplyToID != nil {
			root = *c.InReplyToID
			break
		}
	}

	var thread []model.ReviewComment
	for _, c := range comments {
		if c.ID == root || (c.InReplyToID != nil && *c.InReplyToID == root) {
			thread = append(thread, c)
		}
	}
	return thread
}

func issuePrompt(pr *model.PullRequest, ev model.Event, thread []string) string {
	var b strings.Builder
	b.WriteString("Write a GitHub issue capturing the follow-up work discussed below. ")
	b.WriteString("Reply with the issue title on the first line, then a blank line, then the issue body in markdown. ")
	b.WriteString("The body should state the problem, the proposed change and acceptance criteria.\n\n")
	fmt.Fprintf(&b, "Pull request: #%d %s\n", pr.Number, pr.Title)
	if ev.FilePath != "" {
		fmt.Fprintf(&b, "File: %s (line %d)\n", ev.FilePath, ev.Line)
	}
	if ev.DiffHunk != "" {
		fmt.Fprintf(&b, "\nCode:\n```diff\n%s\n```\n", ev.DiffHunk)
	}
	b.WriteString("\nConversation:\n")
	for _, line := range thread {
		b.WriteString("- " + line + "\n")
	}
	return b.String()
}

// parseIssueDraft splits LLM output into a title and body.
func parseIssueDraft(draft string) (string, string) {
	draft = strings.TrimSpace(draft)
	if draft == "" {
		return "", ""
	}
	title, body, _ := strings.Cut(draft, "\n")
	title = strings.TrimSpace(strings.TrimLeft(title, "# "))
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))
	title = strings.Trim(title, "*\"")
	if len(title) > 120 {
		title = title[:117] + "..."
	}
	return title, strings.TrimSpace(body)
}

func fallbackIssue(pr *model.PullRequest, ev model.Event, thread []string) (string, string) {
	title := fmt.Sprintf("Follow-up from PR #%d: %s", pr.Number, pr.Title)
	if len(title) > 120 {
		title = title[:117] + "..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Follow-up work requested by @%s on %s.\n", ev.Author, pr.URL)
	if ev.FilePath != "" {
		fmt.Fprintf(&b, "\nLocation: `%s` line %d\n", ev.FilePath, ev.Line)
	}
	if len(thread) > 0 {
		b.WriteString("\n### Conversation\n\n")
		for _, line := range thread {
			b.WriteString("> " + strings.ReplaceAll(line, "\n", "\n> ") + "\n>\n")
		}
	}
	return title, strings.TrimRight(b.String(), ">\n")
}

func (w *EventWorkflow) linkIssue(ctx context.Context, ev model.Event, issue *model.Issue, cmd model.CommandName, filePath string) {
	if w.issueLinks == nil {
		return
	}
	err := w.issueLinks.Add(ctx, model.IssueLink{
		Repo:        ev.Repo,
		PRNumber:    ev.PRNumber,
		IssueNumber: issue.Number,
		IssueURL:    issue.URL,
		Command:     cmd,
		FilePath:    filePath,
	})
	if err != nil {
		w.logger.Error("failed to record issue link",
			"repo", ev.Repo, "issue_number", issue.Number, "error", err)
	}
}

func (w *EventWorkflow) handleBookmark(
	ctx context.Context,
	gh driven.GitHubClient,
	ev model.Event,
	_ model.Command,
	op *operation,
) (commandResult, error) {
	op.step(ctx, "collecting suggestions")
	suggestions := ev.Suggestions
	filePath := ev.FilePath
	if len(suggestions) == 0 && ev.Kind == model.EventKindReviewComment && ev.CommentID != 0 {
		comments, err := gh.ListReviewComments(ctx, ev.Repo, ev.PRNumber)
		if err != nil {
			return commandResult{}, collaborator("list review comments", err)
		}
		if thread := threadOf(comments, ev.CommentID); len(thread) > 0 {
			root := thread[0]
			suggestions = ExtractSuggestions(root.Body)
			if len(suggestions) == 0 && strings.TrimSpace(root.Body) != "" {
				suggestions = []string{strings.TrimSpace(root.Body)}
			}
			if filePath == "" {
				filePath = root.Path
			}
		}
	}
	if len(suggestions) == 0 {
		return commandResult{}, errors.New("no suggestion found to bookmark; reply to a review comment that contains one")
	}

	op.step(ctx, "categorizing")
	var prompts []string
	var allTags []string
	saved := 0
	for _, s := range suggestions {
		prompt := categoryPrompt(s, filePath)
		prompts = append(prompts, prompt)
		out, _ := w.generate(ctx, prompt, "")
		tags := parseTags(out)
		if len(tags) == 0 {
			tags = heuristicTags(filePath)
		}

		op.step(ctx, "saving best practice")
		_, err := w.bestPractices.Add(ctx, model.BestPractice{
			Repo:       ev.Repo,
			PRNumber:   ev.PRNumber,
			Author:     ev.Author,
			Suggestion: s,
			FilePath:   filePath,
			Category:   tags[0],
			Tags:       tags,
			Status:     model.BestPracticePending,
		})
		if err != nil {
			return commandResult{}, collaborator("save best practice", err)
		}
		saved++
		allTags = appendUnique(allTags, tags...)
	}

	w.bestEffortComment(ctx, gh, ev, fmt.Sprintf(
		"🔖 Bookmarked %d suggestion(s) as best practice. Tags: %s", saved, "`"+strings.Join(allTags, "`, `")+"`"))

	return commandResult{
		prompt: strings.Join(prompts, "\n---\n"),
		data:   map[string]any{"bookmarked": saved, "tags": allTags},
	}, nil
}

func categoryPrompt(suggestion, filePath string) string {
	return fmt.Sprintf("Classify this code review suggestion with one to four short lowercase category tags "+
		"(for example: security, performance, readability, testing, error-handling, typescript, go). "+
		"Reply with the tags only, comma separated.\n\nFile: %s\n\n```\n%s\n```", filePath, suggestion)
}

// parseTags reads comma or newline separated tags from LLM output.
func parseTags(out string) []string {
	var tags []string
	for _, f := range strings.FieldsFunc(out, func(r rune) bool { return r == ',' || r == '\n' }) {
		tag := strings.ToLower(strings.Trim(strings.TrimSpace(f), "`*-#.\""))
		tag = strings.Join(strings.Fields(tag), "-")
		if tag == "" || len(tag) > 32 {
			continue
		}
		tags = appendUnique(tags, tag)
		if len(tags) == 4 {
			break
		}
	}
	return tags
}

var extensionLanguages = map[string]string{
	".go":   "go",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".py":   "python",
	".rb":   "ruby",
	".rs":   "rust",
	".java": "java",
	".kt":   "kotlin",
	".cs":   "csharp",
	".sql":  "sql",
	".sh":   "shell",
	".yml":  "config",
	".yaml": "config",
	".json": "config",
	".md":   "docs",
}

func heuristicTags(filePath string) []string {
	if lang, ok := extensionLanguages[strings.ToLower(path.Ext(filePath))]; ok {
		return []string{lang, "general"}
	}
	return []string{"general"}
}

// botSuggestion is one suggestion left by a review bot.
type botSuggestion struct {
	author string
	url    string
	text   string
}

func (w *EventWorkflow) handleExtract(
	ctx context.Context,
	gh driven.GitHubClient,
	ev model.Event,
	cmd model.Command,
	op *operation,
) (commandResult, error) {
	op.step(ctx, "scanning review comments")
	comments, err := gh.ListReviewComments(ctx, ev.Repo, ev.PRNumber)
	if err != nil {
		return commandResult{}, collaborator("list review comments", err)
	}

	bots := w.botUsernames(ctx)
	byFile := map[string][]botSuggestion{}
	total := 0
	for _, c := range comments {
		if !c.AuthorIsBot && !isBotUser(c.Author, bots) {
			continue
		}
		file := c.Path
		if file == "" {
			file = generalFile
		}
		for _, s := range ExtractSuggestions(c.Body) {
			byFile[file] = append(byFile[file], botSuggestion{author: c.Author, url: c.URL, text: s})
			total++
		}
	}

	if total == 0 {
		w.bestEffortComment(ctx, gh, ev, "No suggestions from review bots were found on this pull request.")
		return commandResult{data: map[string]any{"suggestions": 0}}, nil
	}

	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	data := map[string]any{"suggestions": total, "files": len(files)}

	if cmd.Name != model.CommandExtractSuggestionsToIssues {
		op.step(ctx, "posting summary")
		w.bestEffortComment(ctx, gh, ev, extractionSummary(files, byFile, total))
		return commandResult{data: data}, nil
	}

	op.step(ctx, "creating issues")
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Opened %d issue(s) for %d bot suggestion(s):\n\n", len(files), total)
	var issues []int
	for _, f := range files {
		issue, err := gh.CreateIssue(ctx, ev.Repo,
			fmt.Sprintf("Review suggestions for %s (PR #%d)", f, ev.PRNumber),
			fileIssueBody(ev, f, byFile[f]),
			[]string{"colby", "review-suggestions"})
		if err != nil {
			return commandResult{}, collaborator("create issue", err)
		}
		linkPath := f
		if f == generalFile {
			linkPath = ""
		}
		w.linkIssue(ctx, ev, issue, cmd.Name, linkPath)
		issues = append(issues, issue.Number)
		fmt.Fprintf(&b, "- `%s`: [#%d](%s)\n", f, issue.Number, issue.URL)
	}
	data["issues"] = issues

	w.bestEffortComment(ctx, gh, ev, strings.TrimRight(b.String(), "\n"))
	return commandResult{data: data}, nil
}

func extractionSummary(files []string, byFile map[string][]botSuggestion, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## 🤖 Suggestions from review bots\n\nFound %d suggestion(s) across %d file(s).\n", total, len(files))
	for _, f := range files {
		fmt.Fprintf(&b, "\n### `%s`\n", f)
		for _, s := range byFile[f] {
			fmt.Fprintf(&b, "\nFrom @%s", s.author)
			if s.url != "" {
				fmt.Fprintf(&b, " ([comment](%s))", s.url)
			}
			fmt.Fprintf(&b, ":\n```suggestion\n%s\n```\n", s.text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func fileIssueBody(ev model.Event, file string, suggestions []botSuggestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review bots left %d suggestion(s) for `%s` on #%d.\n", len(suggestions), file, ev.PRNumber)
	for i, s := range suggestions {
		fmt.Fprintf(&b, "\n### Suggestion %d (from @%s)\n\n```\n%s\n```\n", i+1, s.author, s.text)
		if s.url != "" {
			fmt.Fprintf(&b, "\n%s\n", s.url)
		}
	}
	fmt.Fprintf(&b, "\n---\nExtracted by `/colby extract suggestions to issues` at the request of @%s.", ev.Author)
	return b.String()
}

func (w *EventWorkflow) handleHelp(
	ctx context.Context,
	gh driven.GitHubClient,
	ev model.Event,
	_ model.Command,
	_ *operation,
) (commandResult, error) {
	w.bestEffortComment(ctx, gh, ev, HelpText)
	return commandResult{data: map[string]any{"status": "help_posted"}}, nil
}

func handleUnknown(
	_ context.Context,
	_ driven.GitHubClient,
	_ model.Event,
	cmd model.Command,
	_ *operation,
) (commandResult, error) {
	return commandResult{}, &UnknownCommandError{Trigger: cmd.Trigger}
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
