package httphandler

import (
	"net/http"
	"strconv"
)

// ResearchStatus reports the last research sweep.
func (h *Handler) ResearchStatus(w http.ResponseWriter, _ *http.Request) {
	if h.deps.Research == nil {
		writeError(w, http.StatusServiceUnavailable, "research sweep is disabled")
		return
	}
	writeJSON(w, http.StatusOK, toResearchStatusResponse(h.deps.Research.Status()))
}

// ResearchResults lists discovered projects by score.
func (h *Handler) ResearchResults(w http.ResponseWriter, r *http.Request) {
	if h.deps.Research == nil {
		writeError(w, http.StatusServiceUnavailable, "research sweep is disabled")
		return
	}

	minScore := 0.0
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "min_score must be a non-negative number")
			return
		}
		minScore = v
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if limit == 0 {
		limit = 50
	}

	projects, err := h.deps.Research.Results(r.Context(), minScore, min(limit, 100))
	if err != nil {
		h.logger.Error("failed to list research results", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, toProjectResponse(p))
	}

	writeJSON(w, http.StatusOK, resp)
}

// RunResearch queues a sweep. A sweep that is already queued is not queued twice.
func (h *Handler) RunResearch(w http.ResponseWriter, _ *http.Request) {
	if h.deps.Research == nil {
		writeError(w, http.StatusServiceUnavailable, "research sweep is disabled")
		return
	}
	if !h.deps.Research.Trigger() {
		writeError(w, http.StatusConflict, "a research sweep is already queued")
		return
	}
	writeJSON(w, http.StatusAccepted, OutcomeResponse{Outcome: "queued", Message: "research sweep queued"})
}
