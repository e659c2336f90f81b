// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// DefaultAutoApplyCap is the suggestion count above which implicit
// auto-apply truncates and tells the user why.
const DefaultAutoApplyCap = 50

// finishTimeout bounds the ledger writes and failure comment that close out
// a command after the event context is done.
const finishTimeout = 15 * time.Second

// WorkflowConfig holds the policy knobs of the EventWorkflow.
type WorkflowConfig struct {
	// AutoApplyCap limits implicit auto-apply. Zero means DefaultAutoApplyCap.
	AutoApplyCap int
	// EventTimeout bounds the handling of one event once its PR lock is held.
	// Zero disables the bound.
	EventTimeout time.Duration
	// BotUsernames are merged with the bot_config table when deciding which
	// review comments were written by bots.
	BotUsernames []string
}

// WorkflowDeps are the collaborators of the EventWorkflow. TextGenerator may
// be nil, in which case deterministic fallback text is always used.
type WorkflowDeps struct {
	Clients       driven.GitHubClientFactory
	Commands      driven.CommandStore
	Operations    driven.OperationStore
	BestPractices driven.BestPracticeStore
	IssueLinks    driven.IssueLinkStore
	RepoSettings  driven.RepoSettingsStore
	BotConfig     driven.BotConfigStore
	TextGenerator driven.TextGenerator
}

// EventWorkflow is the per-pull-request controller. It validates events,
// serializes them per PR, resolves explicit commands against implicit
// auto-apply, and converts failures into user comments, ledger updates and
// an outcome kind.
type EventWorkflow struct {
	clients       driven.GitHubClientFactory
	ledger        *ledger
	bestPractices driven.BestPracticeStore
	issueLinks    driven.IssueLinkStore
	repoSettings  driven.RepoSettingsStore
	botConfig     driven.BotConfigStore
	llm           driven.TextGenerator
	locks         *PRLock
	applier       *CommitApplier
	cfg           WorkflowConfig
	logger        *slog.Logger
}

// NewEventWorkflow creates an EventWorkflow with all required dependencies.
func NewEventWorkflow(deps WorkflowDeps, cfg WorkflowConfig, logger *slog.Logger) *EventWorkflow {
	if cfg.AutoApplyCap <= 0 {
		cfg.AutoApplyCap = DefaultAutoApplyCap
	}
	return &EventWorkflow{
		clients: deps.Clients,
		ledger: &ledger{
			commands:   deps.Commands,
			operations: deps.Operations,
			logger:     logger,
		},
		bestPractices: deps.BestPractices,
		issueLinks:    deps.IssueLinks,
		repoSettings:  deps.RepoSettings,
		botConfig:     deps.BotConfig,
		llm:           deps.TextGenerator,
		locks:         NewPRLock(),
		applier:       NewCommitApplier(logger),
		cfg:           cfg,
		logger:        logger,
	}
}

// HandleEvent processes one event to completion. Events for the same pull
// request never run concurrently; a second event waits for the first.
func (w *EventWorkflow) HandleEvent(ctx context.Context, ev model.Event) Outcome {
	if err := validateEvent(ev); err != nil {
		w.logger.Warn("rejected event", "delivery_id", ev.DeliveryID, "error", err)
		return Outcome{Kind: OutcomeInvalid, Message: err.Error()}
	}

	unlock, err := w.locks.Lock(ctx, ev.Key())
	if err != nil {
		w.logger.Error("gave up waiting for pr lock", "key", ev.Key(), "delivery_id", ev.DeliveryID, "error", err)
		return Outcome{Kind: OutcomeFailed, Message: "timed out waiting for earlier events on this pull request"}
	}
	defer unlock()

	if w.cfg.EventTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.EventTimeout)
		defer cancel()
	}

	gh, err := w.clients.ForInstallation(ctx, ev.InstallationID)
	if err != nil {
		w.logger.Error("failed to resolve github client",
			"installation_id", ev.InstallationID, "delivery_id", ev.DeliveryID, "error", err)
		return Outcome{Kind: OutcomeFailed, Message: "github client unavailable"}
	}

	w.logger.Info("handling event",
		"kind", ev.Kind, "repo", ev.Repo, "pr_number", ev.PRNumber,
		"delivery_id", ev.DeliveryID, "triggers", len(ev.Triggers), "suggestions", len(ev.Suggestions))

	return w.process(ctx, gh, ev)
}

// process applies the precedence rules: explicit triggers first, then
// implicit auto-apply, then lifecycle acknowledgement, then the fallback.
func (w *EventWorkflow) process(ctx context.Context, gh driven.GitHubClient, ev model.Event) Outcome {
	if ev.HasTriggers() {
		w.acknowledge(ctx, gh, ev)

		switch {
		case anyTrigger(ev.Triggers, IsColbyTrigger):
			return w.dispatchColby(ctx, gh, ev)
		case anyTrigger(ev.Triggers, IsApplyTrigger):
			return w.runLegacy(ctx, gh, ev, model.Command{Name: model.CommandApply, Trigger: applyTrigger}, w.handleApply)
		case anyTrigger(ev.Triggers, IsSummarizeTrigger):
			return w.runLegacy(ctx, gh, ev, model.Command{Name: model.CommandSummarize, Trigger: summarizeTrigger}, w.handleSummarize)
		}
		return Outcome{Kind: OutcomeOK, Message: "no recognized command"}
	}

	if (ev.Kind == model.EventKindReviewComment || ev.Kind == model.EventKindPRReview) && len(ev.Suggestions) > 0 {
		return w.runLegacy(ctx, gh, ev, model.Command{Name: model.CommandAutoApply}, w.handleAutoApply)
	}

	if ev.Kind == model.EventKindPullRequest {
		return Outcome{Kind: OutcomeOK, Message: "pull request event acknowledged"}
	}

	return Outcome{Kind: OutcomeOK, Message: "ok"}
}

// commandResult is what a command handler reports to the ledger.
type commandResult struct {
	prompt string
	data   map[string]any
}

type commandHandler func(ctx context.Context, gh driven.GitHubClient, ev model.Event, cmd model.Command, op *operation) (commandResult, error)

// runLegacy runs a single recorded command at the workflow boundary. Any
// error is commented back to the PR, recorded, and classified.
func (w *EventWorkflow) runLegacy(
	ctx context.Context,
	gh driven.GitHubClient,
	ev model.Event,
	cmd model.Command,
	handler commandHandler,
) Outcome {
	entries := w.ledger.queue(ctx, ev, []model.Command{cmd})
	err := w.runCommand(ctx, gh, ev, entries[0], handler)
	if err != nil {
		return Outcome{Kind: Classify(err), Message: err.Error()}
	}
	return Outcome{Kind: OutcomeOK, Message: string(cmd.Name) + " completed"}
}

// runCommand moves one queued record through working to a terminal state.
func (w *EventWorkflow) runCommand(
	ctx context.Context,
	gh driven.GitHubClient,
	ev model.Event,
	entry commandEntry,
	handler commandHandler,
) error {
	if err := ctx.Err(); err != nil {
		return w.abandon(ctx, gh, ev, entry, err)
	}

	w.ledger.working(ctx, entry)
	op := w.ledger.begin(ctx, string(entry.command.Name), ev, stepsFor(entry.command.Name))

	res, err := invoke(ctx, gh, ev, entry.command, op, handler)

	// The event deadline may have expired inside the handler. Terminal writes
	// and the failure comment still have to land.
	finishCtx, cancel := finishContext(ctx)
	defer cancel()

	if err != nil {
		w.logger.Error("command failed",
			"command", entry.command.Name, "repo", ev.Repo, "pr_number", ev.PRNumber,
			"delivery_id", ev.DeliveryID, "operation_id", op.id, "error", err)

		w.bestEffortComment(finishCtx, gh, ev, failureComment(entry.command, err))
		w.ledger.fail(finishCtx, entry, err.Error())
		op.fail(finishCtx, err)
		return err
	}

	w.ledger.complete(finishCtx, entry, res.prompt, res.data)
	op.complete(finishCtx, res.data)
	return nil
}

// abandon fails a queued command the event ran out of time to start.
func (w *EventWorkflow) abandon(ctx context.Context, gh driven.GitHubClient, ev model.Event, entry commandEntry, cause error) error {
	err := &CollaboratorError{Op: "start " + string(entry.command.Name), Err: cause}
	w.logger.Warn("command not started",
		"command", entry.command.Name, "repo", ev.Repo, "pr_number", ev.PRNumber,
		"delivery_id", ev.DeliveryID, "error", cause)

	finishCtx, cancel := finishContext(ctx)
	defer cancel()
	w.bestEffortComment(finishCtx, gh, ev, failureComment(entry.command, err))
	w.ledger.fail(finishCtx, entry, err.Error())
	return err
}

// finishContext detaches from ctx's cancellation and bounds the result by
// finishTimeout.
func finishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
}

// invoke calls handler, converting a panic into an error so the ledger
// still reaches a terminal state.
func invoke(
	ctx context.Context,
	gh driven.GitHubClient,
	ev model.Event,
	cmd model.Command,
	op *operation,
	handler commandHandler,
) (res commandResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", cmd.Name, r)
		}
	}()
	return handler(ctx, gh, ev, cmd, op)
}

// acknowledge gives the user fast feedback before any slow work starts.
func (w *EventWorkflow) acknowledge(ctx context.Context, gh driven.GitHubClient, ev model.Event) {
	var err error
	switch {
	case ev.Kind == model.EventKindReviewComment && ev.CommentID != 0:
		err = gh.AddReviewCommentReaction(ctx, ev.Repo, ev.CommentID, "eyes")
	case ev.Kind == model.EventKindIssueComment && ev.CommentID != 0:
		err = gh.AddIssueCommentReaction(ctx, ev.Repo, ev.CommentID, "eyes")
	default:
		err = gh.CreateIssueComment(ctx, ev.Repo, ev.PRNumber,
			fmt.Sprintf("👀 Received `%s`, working on it.", ev.Triggers[0]))
	}
	if err != nil {
		w.logger.Warn("failed to acknowledge event", "repo", ev.Repo, "pr_number", ev.PRNumber, "error", err)
	}
}

// postComment replies in the review thread the event came from, or on the
// PR conversation otherwise.
func (w *EventWorkflow) postComment(ctx context.Context, gh driven.GitHubClient, ev model.Event, body string) error {
	if ev.Kind == model.EventKindReviewComment && ev.CommentID != 0 {
		return gh.ReplyToReviewComment(ctx, ev.Repo, ev.PRNumber, ev.CommentID, body)
	}
	return gh.CreateIssueComment(ctx, ev.Repo, ev.PRNumber, body)
}

// bestEffortComment posts body and only logs a failure.
func (w *EventWorkflow) bestEffortComment(ctx context.Context, gh driven.GitHubClient, ev model.Event, body string) {
	if err := w.postComment(ctx, gh, ev, body); err != nil {
		w.logger.Warn("failed to post comment", "repo", ev.Repo, "pr_number", ev.PRNumber, "error", err)
	}
}

// botUsernames merges configured and stored bot usernames.
func (w *EventWorkflow) botUsernames(ctx context.Context) []string {
	names := append([]string(nil), w.cfg.BotUsernames...)
	if w.botConfig == nil {
		return names
	}
	stored, err := w.botConfig.GetUsernames(ctx)
	if err != nil {
		w.logger.Warn("failed to load bot usernames", "error", err)
		return names
	}
	return append(names, stored...)
}

func validateEvent(ev model.Event) error {
	if !ev.Kind.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("unknown event kind %q", ev.Kind)}
	}
	if _, _, err := model.SplitRepo(ev.Repo); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	if ev.Kind.RequiresInstallation() && ev.InstallationID == 0 {
		return &ValidationError{Reason: fmt.Sprintf("%s event requires an installation id", ev.Kind)}
	}
	if ev.PRNumber <= 0 {
		return &ValidationError{Reason: "pull request number must be positive"}
	}
	return nil
}

func anyTrigger(triggers []string, match func(string) bool) bool {
	for _, t := range triggers {
		if match(t) {
			return true
		}
	}
	return false
}

func failureComment(cmd model.Command, err error) string {
	var unknown *UnknownCommandError
	if errors.As(err, &unknown) {
		return fmt.Sprintf("❓ Unknown command `%s`. Comment `/colby help` to see what I can do.", unknown.Trigger)
	}

	name := cmd.Trigger
	if name == "" {
		name = string(cmd.Name)
	}

	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return fmt.Sprintf("⚠️ `%s` was not applied: the branch `%s` moved while I was working. "+
			"Re-run the command against the latest commit.", name, conflict.Branch)
	}

	return fmt.Sprintf("❌ `%s` failed: %s", name, strings.TrimSpace(err.Error()))
}

func stepsFor(name model.CommandName) int {
	switch name {
	case model.CommandImplement, model.CommandApply, model.CommandAutoApply,
		model.CommandSummarize, model.CommandCreateIssue:
		return 4
	case model.CommandExtractSuggestions, model.CommandExtractSuggestionsToIssues, model.CommandBookmarkSuggestion:
		return 3
	}
	return 1
}
