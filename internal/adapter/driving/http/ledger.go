package httphandler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// ListCommands returns ledger records newest first.
func (h *Handler) ListCommands(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit and offset must be non-negative integers")
		return
	}

	records, err := h.deps.Commands.List(r.Context(), driven.CommandFilter{
		Repo:   r.URL.Query().Get("repo"),
		Author: r.URL.Query().Get("author"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.logger.Error("failed to list commands", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]CommandResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toCommandResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetCommand returns a single ledger record.
func (h *Handler) GetCommand(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid command id")
		return
	}

	rec, err := h.deps.Commands.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get command", "command_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "command not found")
		return
	}

	writeJSON(w, http.StatusOK, toCommandResponse(*rec))
}

// GetOperation returns the live progress of one operation.
func (h *Handler) GetOperation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	op, err := h.deps.Operations.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get operation", "operation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if op == nil {
		writeError(w, http.StatusNotFound, "operation not found")
		return
	}

	writeJSON(w, http.StatusOK, toOperationResponse(*op))
}

// ListBestPractices returns bookmarked suggestions.
func (h *Handler) ListBestPractices(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit and offset must be non-negative integers")
		return
	}

	status := model.BestPracticeStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.BestPracticePending, model.BestPracticeApproved, model.BestPracticeRejected:
	default:
		writeError(w, http.StatusBadRequest, "status must be pending, approved or rejected")
		return
	}

	items, err := h.deps.BestPractices.List(r.Context(), driven.BestPracticeFilter{
		Category: r.URL.Query().Get("category"),
		Status:   status,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.logger.Error("failed to list best practices", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]BestPracticeResponse, 0, len(items))
	for _, bp := range items {
		resp = append(resp, toBestPracticeResponse(bp))
	}

	writeJSON(w, http.StatusOK, resp)
}

// RepoActivity returns the recent commands, operations and issue links of a repository.
func (h *Handler) RepoActivity(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	if !isValidRepoName(owner, repo) {
		writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
		return
	}
	fullName := owner + "/" + repo
	ctx := r.Context()

	records, err := h.deps.Commands.List(ctx, driven.CommandFilter{Repo: fullName, Limit: 20})
	if err != nil {
		h.logger.Error("failed to list commands", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	ops, err := h.deps.Operations.ListByRepo(ctx, fullName, 20)
	if err != nil {
		h.logger.Error("failed to list operations", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	links, err := h.deps.IssueLinks.ListByRepo(ctx, fullName, 20)
	if err != nil {
		h.logger.Error("failed to list issue links", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := RepoActivityResponse{
		Repository: fullName,
		Commands:   make([]CommandResponse, 0, len(records)),
		Operations: make([]OperationResponse, 0, len(ops)),
		IssueLinks: make([]IssueLinkResponse, 0, len(links)),
	}
	for _, rec := range records {
		resp.Commands = append(resp.Commands, toCommandResponse(rec))
	}
	for _, op := range ops {
		resp.Operations = append(resp.Operations, toOperationResponse(op))
	}
	for _, link := range links {
		resp.IssueLinks = append(resp.IssueLinks, toIssueLinkResponse(link))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetRepoSettings returns the effective per-repository overrides.
func (h *Handler) GetRepoSettings(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	if !isValidRepoName(owner, repo) {
		writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
		return
	}
	fullName := owner + "/" + repo

	settings, err := h.deps.RepoSettings.GetSettings(r.Context(), fullName)
	if err != nil {
		h.logger.Error("failed to get repo settings", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if settings == nil {
		settings = &model.RepoSettings{RepoFullName: fullName}
	}

	writeJSON(w, http.StatusOK, toRepoSettingsResponse(*settings))
}

// PutRepoSettings replaces the per-repository overrides.
func (h *Handler) PutRepoSettings(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	if !isValidRepoName(owner, repo) {
		writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
		return
	}

	var req RepoSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AutoApplyCap != nil && *req.AutoApplyCap < 1 {
		writeError(w, http.StatusBadRequest, "auto_apply_cap must be at least 1")
		return
	}

	settings := model.RepoSettings{
		RepoFullName:     owner + "/" + repo,
		AutoApplyEnabled: req.AutoApplyEnabled,
		AutoApplyCap:     req.AutoApplyCap,
	}
	if err := h.deps.RepoSettings.SetSettings(r.Context(), settings); err != nil {
		h.logger.Error("failed to set repo settings", "repo", settings.RepoFullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toRepoSettingsResponse(settings))
}

// ListBots returns all configured bot usernames.
func (h *Handler) ListBots(w http.ResponseWriter, r *http.Request) {
	bots, err := h.deps.BotConfig.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list bots", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]BotConfigResponse, 0, len(bots))
	for _, bot := range bots {
		resp = append(resp, toBotConfigResponse(bot))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddBot adds a new bot username to the configuration.
func (h *Handler) AddBot(w http.ResponseWriter, r *http.Request) {
	var req AddBotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	saved, err := h.deps.BotConfig.Add(r.Context(), model.BotConfig{
		Username: username,
		AddedAt:  time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, driven.ErrBotAlreadyExists) {
			writeError(w, http.StatusConflict, "bot username already exists")
			return
		}
		h.logger.Error("failed to add bot", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toBotConfigResponse(saved))
}

// RemoveBot removes a bot username from the configuration.
func (h *Handler) RemoveBot(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	if err := h.deps.BotConfig.Remove(r.Context(), username); err != nil {
		if errors.Is(err, driven.ErrBotNotFound) {
			writeError(w, http.StatusNotFound, "bot not found")
			return
		}
		h.logger.Error("failed to remove bot", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
