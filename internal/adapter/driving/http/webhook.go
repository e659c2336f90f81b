package httphandler

import (
	"net/http"
	"strings"

	gh "github.com/google/go-github/v82/github"

	"github.com/jmbish04/gh-bot/internal/application"
	"github.com/jmbish04/gh-bot/internal/domain/model"
)

// handledEvents lists the X-GitHub-Event types that are parsed.
var handledEvents = map[string]bool{
	"pull_request_review_comment": true,
	"pull_request_review":         true,
	"issue_comment":               true,
	"pull_request":                true,
	"ping":                        true,
}

// Webhook validates and translates a GitHub delivery into an Event.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if len(h.webhook.Secret) == 0 {
		h.logger.Error("webhook delivery rejected: no webhook secret configured")
		writeError(w, http.StatusUnauthorized, "webhook secret not configured")
		return
	}

	payload, err := gh.ValidatePayload(r, h.webhook.Secret)
	if err != nil {
		h.logger.Warn("webhook signature rejected", "delivery_id", gh.DeliveryID(r), "error", err)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	eventType := gh.WebHookType(r)
	deliveryID := gh.DeliveryID(r)

	if !handledEvents[eventType] {
		writeJSON(w, http.StatusOK, OutcomeResponse{Outcome: "ignored", Message: "event type " + eventType + " is not handled"})
		return
	}

	parsed, err := gh.ParseWebHook(eventType, payload)
	if err != nil {
		h.logger.Warn("invalid webhook payload", "event", eventType, "delivery_id", deliveryID, "error", err)
		writeError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	ev, reason := h.toEvent(parsed)
	if reason != "" {
		h.logger.Debug("webhook ignored", "event", eventType, "delivery_id", deliveryID, "reason", reason)
		writeJSON(w, http.StatusOK, OutcomeResponse{Outcome: "ignored", Message: reason})
		return
	}

	ev.DeliveryID = deliveryID
	if ev.InstallationID == 0 {
		ev.InstallationID = h.webhook.DefaultInstallationID
	}

	h.dispatch(w, r, ev)
}

// toEvent maps a parsed webhook to an Event. A non-empty reason means the
// delivery is acknowledged without processing.
func (h *Handler) toEvent(parsed any) (model.Event, string) {
	switch e := parsed.(type) {
	case *gh.PullRequestReviewCommentEvent:
		if e.GetAction() != "created" {
			return model.Event{}, "review comment action " + e.GetAction()
		}
		c := e.GetComment()
		if h.isSelf(c.GetUser().GetLogin()) {
			return model.Event{}, "comment authored by the bot"
		}
		body := c.GetBody()
		return model.Event{
			Kind:           model.EventKindReviewComment,
			Repo:           e.GetRepo().GetFullName(),
			PRNumber:       e.GetPullRequest().GetNumber(),
			Author:         c.GetUser().GetLogin(),
			Suggestions:    application.ExtractSuggestions(body),
			Triggers:       application.ExtractTriggers(body),
			InstallationID: e.GetInstallation().GetID(),
			CommentID:      c.GetID(),
			FilePath:       c.GetPath(),
			Line:           c.GetLine(),
			DiffHunk:       c.GetDiffHunk(),
			HeadRef:        e.GetPullRequest().GetHead().GetRef(),
			HeadSHA:        e.GetPullRequest().GetHead().GetSHA(),
		}, ""

	case *gh.PullRequestReviewEvent:
		if e.GetAction() != "submitted" {
			return model.Event{}, "review action " + e.GetAction()
		}
		review := e.GetReview()
		if h.isSelf(review.GetUser().GetLogin()) {
			return model.Event{}, "review authored by the bot"
		}
		body := review.GetBody()
		return model.Event{
			Kind:           model.EventKindPRReview,
			Repo:           e.GetRepo().GetFullName(),
			PRNumber:       e.GetPullRequest().GetNumber(),
			Author:         review.GetUser().GetLogin(),
			Suggestions:    application.ExtractSuggestions(body),
			Triggers:       application.ExtractTriggers(body),
			InstallationID: e.GetInstallation().GetID(),
			HeadRef:        e.GetPullRequest().GetHead().GetRef(),
			HeadSHA:        e.GetPullRequest().GetHead().GetSHA(),
		}, ""

	case *gh.IssueCommentEvent:
		if e.GetAction() != "created" {
			return model.Event{}, "issue comment action " + e.GetAction()
		}
		if !e.GetIssue().IsPullRequest() {
			return model.Event{}, "comment is not on a pull request"
		}
		c := e.GetComment()
		if h.isSelf(c.GetUser().GetLogin()) {
			return model.Event{}, "comment authored by the bot"
		}
		body := c.GetBody()
		return model.Event{
			Kind:           model.EventKindIssueComment,
			Repo:           e.GetRepo().GetFullName(),
			PRNumber:       e.GetIssue().GetNumber(),
			Author:         c.GetUser().GetLogin(),
			Suggestions:    application.ExtractSuggestions(body),
			Triggers:       application.ExtractTriggers(body),
			InstallationID: e.GetInstallation().GetID(),
			CommentID:      c.GetID(),
		}, ""

	case *gh.PullRequestEvent:
		switch e.GetAction() {
		case "opened", "reopened", "synchronize", "ready_for_review":
		default:
			return model.Event{}, "pull request action " + e.GetAction()
		}
		pr := e.GetPullRequest()
		return model.Event{
			Kind:           model.EventKindPullRequest,
			Repo:           e.GetRepo().GetFullName(),
			PRNumber:       pr.GetNumber(),
			Author:         pr.GetUser().GetLogin(),
			Suggestions:    []string{},
			Triggers:       []string{},
			InstallationID: e.GetInstallation().GetID(),
			HeadRef:        pr.GetHead().GetRef(),
			HeadSHA:        pr.GetHead().GetSHA(),
		}, ""

	case *gh.PingEvent:
		return model.Event{}, "ping"
	}

	return model.Event{}, "event type not handled"
}

// isSelf reports whether login is the bot's own account.
func (h *Handler) isSelf(login string) bool {
	return h.webhook.BotLogin != "" && strings.EqualFold(login, h.webhook.BotLogin)
}
