// Package httphandler is the HTTP driving adapter: GitHub webhook ingestion,
// the JSON event entry point, and the ledger and research read API.
package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jmbish04/gh-bot/internal/application"
	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// EventProcessor runs one Event through the command workflow.
type EventProcessor interface {
	HandleEvent(ctx context.Context, ev model.Event) application.Outcome
}

// ResearchRunner exposes the research sweep to the API.
type ResearchRunner interface {
	Status() model.ResearchRun
	Results(ctx context.Context, minScore float64, limit int) ([]model.Project, error)
	Trigger() bool
}

// Deps holds the collaborators of a Handler. Research may be nil when the
// sweep is disabled.
type Deps struct {
	Workflow      EventProcessor
	Commands      driven.CommandStore
	Operations    driven.OperationStore
	BestPractices driven.BestPracticeStore
	IssueLinks    driven.IssueLinkStore
	RepoSettings  driven.RepoSettingsStore
	BotConfig     driven.BotConfigStore
	Research      ResearchRunner
}

// WebhookConfig controls webhook ingestion.
type WebhookConfig struct {
	Secret   []byte
	BotLogin string
	// DefaultInstallationID is used for deliveries without an installation,
	// as sent by repository webhooks authenticated with a token.
	DefaultInstallationID int64
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	deps    Deps
	webhook WebhookConfig
	logger  *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(deps Deps, webhook WebhookConfig, logger *slog.Logger) *Handler {
	return &Handler{deps: deps, webhook: webhook, logger: logger}
}

// RegisterAPIRoutes registers every API route on mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("POST /github/webhook", h.Webhook)
	mux.HandleFunc("POST /events", h.PostEvent)

	mux.HandleFunc("GET /colby/commands", h.ListCommands)
	mux.HandleFunc("GET /colby/commands/{id}", h.GetCommand)
	mux.HandleFunc("GET /colby/operations/{id}", h.GetOperation)
	mux.HandleFunc("GET /colby/best-practices", h.ListBestPractices)
	mux.HandleFunc("GET /colby/repo/{owner}/{repo}", h.RepoActivity)
	mux.HandleFunc("GET /colby/repo/{owner}/{repo}/settings", h.GetRepoSettings)
	mux.HandleFunc("PUT /colby/repo/{owner}/{repo}/settings", h.PutRepoSettings)
	mux.HandleFunc("GET /colby/bots", h.ListBots)
	mux.HandleFunc("POST /colby/bots", h.AddBot)
	mux.HandleFunc("DELETE /colby/bots/{username}", h.RemoveBot)

	mux.HandleFunc("GET /research/status", h.ResearchStatus)
	mux.HandleFunc("GET /research/results", h.ResearchResults)
	mux.HandleFunc("POST /research/run", h.RunResearch)

	mux.HandleFunc("GET /health", h.Health)
}

// NewServeMux creates an http.Handler with the API routes registered and
// wrapped with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	RegisterAPIRoutes(mux, h)
	return ApplyMiddleware(mux, logger)
}

// PostEvent accepts a JSON-encoded Event and answers with the outcome.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := decodeJSON(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event body")
		return
	}

	h.dispatch(w, r, ev)
}

// dispatch runs the event to completion. The client disconnecting does not
// abort the run; the workflow applies its own timeout.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, ev model.Event) {
	if ev.Suggestions == nil {
		ev.Suggestions = []string{}
	}
	if ev.Triggers == nil {
		ev.Triggers = []string{}
	}

	outcome := h.deps.Workflow.HandleEvent(context.WithoutCancel(r.Context()), ev)
	writeJSON(w, statusForOutcome(outcome.Kind), OutcomeResponse{
		Outcome: outcome.Kind.String(),
		Message: outcome.Message,
	})
}

// statusForOutcome maps a workflow outcome to the HTTP status it is reported with.
func statusForOutcome(kind application.OutcomeKind) int {
	switch kind {
	case application.OutcomeOK:
		return http.StatusOK
	case application.OutcomeInvalid:
		return http.StatusBadRequest
	case application.OutcomeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

var errBadQuery = errors.New("bad query parameter")

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errBadQuery
	}
	return n, nil
}

// paging reads limit and offset. limit defaults to 50 and is capped at 100.
func paging(r *http.Request) (int, int, error) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		return 0, 0, err
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	if limit == 0 {
		limit = 50
	}
	return min(limit, 100), offset, nil
}

// isValidRepoName validates that name is in owner/repo format where each part
// contains only alphanumeric characters, hyphens, dots, or underscores.
func isValidRepoName(owner, repo string) bool {
	for _, part := range []string{owner, repo} {
		if part == "" {
			return false
		}
		for _, ch := range part {
			if !isValidRepoChar(ch) {
				return false
			}
		}
	}
	return true
}

// isValidRepoChar returns true if the rune is allowed in a repository owner or name.
func isValidRepoChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '.' || ch == '_'
}
