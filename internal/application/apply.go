package application

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// applyTarget is one review location and the suggestions aimed at it.
type applyTarget struct {
	path        string
	hunk        string
	suggestions []string
	commentID   int64
}

// applyReport summarizes one run of the apply pipeline.
type applyReport struct {
	commit    *model.CommitResult
	applied   int
	ambiguous []string
	unmatched []string
	missing   []string
	// detached are review body suggestions that no review comment carries.
	detached []string
}

func (r applyReport) resultData() map[string]any {
	data := map[string]any{
		"applied":   r.applied,
		"ambiguous": len(r.ambiguous),
		"unmatched": len(r.unmatched),
	}
	if len(r.missing) > 0 {
		data["missing_files"] = r.missing
	}
	if len(r.detached) > 0 {
		data["detached"] = len(r.detached)
	}
	if r.commit != nil {
		data["commit_sha"] = r.commit.SHA
		data["commit_url"] = r.commit.URL
		data["files"] = r.commit.FilesChanged
	} else {
		data["status"] = "no_changes"
	}
	return data
}

// handleApply serves the legacy /apply trigger.
func (w *EventWorkflow) handleApply(
	ctx context.Context,
	gh driven.GitHubClient,
	ev model.Event,
	_ model.Command,
	op *operation,
) (commandResult, error) {
	if len(ev.Suggestions) == 0 {
		if ev.Kind == model.EventKindIssueComment {
			w.bestEffortComment(ctx, gh, ev, applyUsageHint)
			return commandResult{data: map[string]any{"status": "usage_hint"}}, nil
		}
		w.bestEffortComment(ctx, gh, ev, "No suggestions found in this comment, nothing to apply.")
		return commandResult{data: map[string]any{"status": "no_suggestions"}}, nil
	}

	targets, detached, err := w.eventTargets(ctx, gh, ev)
	if err != nil {
		return commandResult{}, err
	}

	report, err := w.applyTargets(ctx, gh, ev, targets, detached, op)
	if err != nil {
		return commandResult{}, err
	}
	return commandResult{data: report.resultData()}, nil
}

// handleAutoApply applies suggestions on a review event that carried no
// triggers, honoring the per-repo policy and the suggestion cap.
func (w *EventWorkflow) handleAutoApply(
	ctx context.Context,
	gh driven.GitHubClient,
	ev model.Event,
	_ model.Command,
	op *operation,
) (commandResult, error) {
	enabled, limit := w.autoApplyPolicy(ctx, ev.Repo)
	if !enabled {
		w.logger.Info("auto-apply disabled for repository", "repo", ev.Repo, "pr_number", ev.PRNumber)
		return commandResult{data: map[string]any{"status": "disabled"}}, nil
	}

	if total := len(ev.Suggestions); total > limit {
		ev = ev.WithSuggestions(ev.Suggestions[:limit])
		w.bestEffortComment(ctx, gh, ev, fmt.Sprintf(
			"ℹ️ This review carries %d suggestions. To keep the commit reviewable only the first %d are applied automatically; "+
				"comment `/colby implement` to apply the rest.", total, limit))
	}

	targets, detached, err := w.eventTargets(ctx, gh, ev)
	if err != nil {
		return commandResult{}, err
	}

	// Nobody asked for this run, so a review whose suggestions point at no
	// line of code is left alone instead of answered with a no-op comment.
	if len(targets) == 0 {
		w.logger.Info("no review comment carries the review's suggestions, skipping auto-apply",
			"repo", ev.Repo, "pr_number", ev.PRNumber, "detached", len(detached))
		return commandResult{data: map[string]any{"status": "no_targets", "detached": len(detached)}}, nil
	}

	report, err := w.applyTargets(ctx, gh, ev, targets, detached, op)
	if err != nil {
		return commandResult{}, err
	}
	return commandResult{data: report.resultData()}, nil
}

// autoApplyPolicy returns whether implicit auto-apply is enabled for the
// repository and the suggestion cap to use.
func (w *EventWorkflow) autoApplyPolicy(ctx context.Context, repo string) (bool, int) {
	enabled, limit := true, w.cfg.AutoApplyCap
	if w.repoSettings == nil {
		return enabled, limit
	}

	settings, err := w.repoSettings.GetSettings(ctx, repo)
	if err != nil {
		w.logger.Warn("failed to load repo settings, using defaults", "repo", repo, "error", err)
		return enabled, limit
	}
	if settings == nil {
		return enabled, limit
	}
	if settings.AutoApplyEnabled != nil {
		enabled = *settings.AutoApplyEnabled
	}
	if settings.AutoApplyCap != nil && *settings.AutoApplyCap > 0 {
		limit = *settings.AutoApplyCap
	}
	return enabled, limit
}

// eventTargets derives apply targets from the event itself. A review
// submission has no single location, so its suggestions are matched back to
// the review comments they came from; the ones no comment carries are
// returned as detached.
func (w *EventWorkflow) eventTargets(ctx context.Context, gh driven.GitHubClient, ev model.Event) ([]applyTarget, []string, error) {
	if ev.FilePath != "" {
		return []applyTarget{{
			path:        ev.FilePath,
			hunk:        ev.DiffHunk,
			suggestions: ev.Suggestions,
			commentID:   ev.CommentID,
		}}, nil, nil
	}

	harvested, err := w.harvestTargets(ctx, gh, ev)
	if err != nil {
		return nil, nil, err
	}

	used := make(map[string]bool, len(ev.Suggestions))
	var targets []applyTarget
	for _, t := range harvested {
		var matched []string
		for _, s := range t.suggestions {
			if slices.Contains(ev.Suggestions, s) {
				matched = append(matched, s)
				used[s] = true
			}
		}
		if len(matched) > 0 {
			t.suggestions = matched
			targets = append(targets, t)
		}
	}

	var detached []string
	for _, s := range ev.Suggestions {
		if !used[s] {
			detached = append(detached, s)
		}
	}
	return targets, detached, nil
}

// harvestTargets scans every review comment on the PR for suggestions.
func (w *EventWorkflow) harvestTargets(ctx context.Context, gh driven.GitHubClient, ev model.Event) ([]applyTarget, error) {
	comments, err := gh.ListReviewComments(ctx, ev.Repo, ev.PRNumber)
	if err != nil {
		return nil, collaborator("list review comments", err)
	}

	var targets []applyTarget
	for _, c := range comments {
		if c.Path == "" {
			continue
		}
		suggestions := ExtractSuggestions(c.Body)
		if len(suggestions) == 0 {
			continue
		}
		targets = append(targets, applyTarget{
			path:        c.Path,
			hunk:        c.DiffHunk,
			suggestions: suggestions,
			commentID:   c.ID,
		})
	}
	return targets, nil
}

// applyTargets builds the change set for all targets against the branch
// head and commits it. Targets on the same file apply in order on top of
// each other.
func (w *EventWorkflow) applyTargets(
	ctx context.Context,
	gh driven.GitHubClient,
	ev model.Event,
	targets []applyTarget,
	detached []string,
	op *operation,
) (applyReport, error) {
	report := applyReport{detached: detached}

	op.step(ctx, "resolving branch head")
	ev, err := w.resolveHead(ctx, gh, ev)
	if err != nil {
		return report, err
	}

	op.step(ctx, "building file changes")
	changes := model.FileChangeSet{}
	contents := map[string]*string{}
	for _, t := range targets {
		current, ok := contents[t.path]
		if !ok {
			content, found, err := gh.GetFileContent(ctx, ev.Repo, t.path, ev.HeadSHA)
			if err != nil {
				return report, collaborator("get file content", err)
			}
			if found {
				current = &content
			}
			contents[t.path] = current
		}
		if current == nil {
			report.missing = append(report.missing, t.path)
			continue
		}

		plan := PlanFileChanges(current, t.hunk, t.suggestions, t.path)
		report.applied += plan.Applied
		report.ambiguous = append(report.ambiguous, plan.Ambiguous...)
		report.unmatched = append(report.unmatched, plan.Unmatched...)
		if next, ok := plan.Changes[t.path]; ok {
			contents[t.path] = &next
			changes[t.path] = next
		}
	}

	if len(changes) == 0 {
		w.bestEffortComment(ctx, gh, ev, noChangesComment(report))
		return report, nil
	}

	op.step(ctx, "committing")
	commit, err := w.applier.Apply(ctx, gh, ev.Repo, model.CommitPrecondition{
		Branch:          ev.HeadRef,
		ExpectedHeadSHA: ev.HeadSHA,
	}, changes, commitMessage(ev, report.applied))
	if err != nil {
		return report, err
	}
	report.commit = commit

	op.step(ctx, "posting confirmation")
	w.bestEffortComment(ctx, gh, ev, appliedComment(report))
	return report, nil
}

// resolveHead fills in the branch and head sha when the event lacks them.
// The event's own head sha stays the precondition when present.
func (w *EventWorkflow) resolveHead(ctx context.Context, gh driven.GitHubClient, ev model.Event) (model.Event, error) {
	if ev.HeadRef != "" && ev.HeadSHA != "" {
		return ev, nil
	}
	pr, err := gh.GetPullRequest(ctx, ev.Repo, ev.PRNumber)
	if err != nil {
		return ev, collaborator("get pull request", err)
	}
	sha := ev.HeadSHA
	if sha == "" {
		sha = pr.HeadSHA
	}
	return ev.WithHead(pr.HeadRef, sha), nil
}

const applyUsageHint = "ℹ️ `/apply` works on review comments that contain a suggestion block. " +
	"A conversation comment is not attached to a line of code, so there is nothing to apply here. " +
	"Reply `/apply` on the review comment instead, or comment `/colby implement` to apply every review suggestion on this PR."

func commitMessage(ev model.Event, applied int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Apply %d review suggestion", applied)
	if applied != 1 {
		b.WriteString("s")
	}
	fmt.Fprintf(&b, " on #%d\n\nRequested by @%s.", ev.PRNumber, ev.Author)
	return b.String()
}

func appliedComment(r applyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Applied %d suggestion(s) in [`%s`](%s).\n\n", r.applied, shortSHA(r.commit.SHA), r.commit.URL)
	for _, f := range r.commit.FilesChanged {
		fmt.Fprintf(&b, "- `%s`\n", f)
	}
	writeSkipped(&b, r)
	return strings.TrimRight(b.String(), "\n")
}

func noChangesComment(r applyReport) string {
	var b strings.Builder
	b.WriteString("No changes were applied.\n")
	writeSkipped(&b, r)
	return strings.TrimRight(b.String(), "\n")
}

func writeSkipped(b *strings.Builder, r applyReport) {
	if len(r.ambiguous) > 0 {
		fmt.Fprintf(b, "\n⚠️ Skipped %d suggestion(s): the target code only matches when whitespace is ignored, "+
			"so applying it could corrupt the file.\n", len(r.ambiguous))
	}
	if len(r.unmatched) > 0 {
		fmt.Fprintf(b, "\n⚠️ Skipped %d suggestion(s): the code they replace was not found on the current head.\n", len(r.unmatched))
	}
	if len(r.detached) > 0 {
		fmt.Fprintf(b, "\n⚠️ Skipped %d suggestion(s) from the review body: no review comment on a line of code carries them, "+
			"so there is no location to apply them to.\n", len(r.detached))
	}
	for _, m := range r.missing {
		fmt.Fprintf(b, "\n⚠️ `%s` does not exist on the current head.\n", m)
	}
}
