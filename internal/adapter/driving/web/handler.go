// Package web implements the HTML dashboard driving adapter using templ components.
package web

import (
	"context"
	"log/slog"
	"net/http"

	vm "github.com/jmbish04/gh-bot/internal/adapter/driving/web/viewmodel"
	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

const (
	dashboardCommandLimit   = 25
	dashboardOperationLimit = 10
	dashboardBookmarkLimit  = 10
	dashboardProjectLimit   = 10
)

// ResearchRunner is the part of the research sweep the dashboard shows.
type ResearchRunner interface {
	Status() model.ResearchRun
	Results(ctx context.Context, minScore float64, limit int) ([]model.Project, error)
	Trigger() bool
}

// Handler is the web driving adapter that serves HTML via templ components.
type Handler struct {
	commands      driven.CommandStore
	operations    driven.OperationStore
	bestPractices driven.BestPracticeStore
	research      ResearchRunner
	logger        *slog.Logger
}

// NewHandler creates a Handler. research may be nil when the sweep is disabled.
func NewHandler(
	commands driven.CommandStore,
	operations driven.OperationStore,
	bestPractices driven.BestPracticeStore,
	research ResearchRunner,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		commands:      commands,
		operations:    operations,
		bestPractices: bestPractices,
		research:      research,
		logger:        logger,
	}
}

// Dashboard renders the main dashboard page with the full HTML layout.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := vm.DashboardViewModel{CSRFToken: csrfToken(w, r)}

	records, err := h.commands.List(ctx, driven.CommandFilter{Limit: dashboardCommandLimit})
	if err != nil {
		h.logger.Error("failed to list commands for dashboard", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	for _, rec := range records {
		data.Commands = append(data.Commands, toCommandRowViewModel(rec))
	}

	ops, err := h.operations.ListRecent(ctx, dashboardOperationLimit)
	if err != nil {
		h.logger.Error("failed to list operations for dashboard", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	for _, op := range ops {
		data.Operations = append(data.Operations, toOperationRowViewModel(op))
	}

	// Bookmarks and research are best-effort; the ledger is the primary view.
	bookmarks, err := h.bestPractices.List(ctx, driven.BestPracticeFilter{Limit: dashboardBookmarkLimit})
	if err != nil {
		h.logger.Warn("failed to list best practices for dashboard", "error", err)
	}
	for _, bp := range bookmarks {
		data.BestPractices = append(data.BestPractices, toBestPracticeViewModel(bp))
	}

	if h.research != nil {
		projects, err := h.research.Results(ctx, 0, dashboardProjectLimit)
		if err != nil {
			h.logger.Warn("failed to list research results for dashboard", "error", err)
		}
		data.Research = toResearchViewModel(h.research.Status(), projects)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := Layout("Colby", Dashboard(data)).Render(ctx, w); err != nil {
		h.logger.Error("failed to render dashboard", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// RunResearch queues a research sweep from the dashboard form.
func (h *Handler) RunResearch(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid csrf token", http.StatusForbidden)
		return
	}
	if h.research == nil {
		http.Error(w, "research sweep is disabled", http.StatusServiceUnavailable)
		return
	}

	if !h.research.Trigger() {
		h.logger.Info("research sweep already queued")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
