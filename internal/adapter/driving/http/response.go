package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jmbish04/gh-bot/internal/domain/model"
)

// maxJSONBody caps the size of decoded request bodies.
const maxJSONBody = 1 << 20

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeJSON decodes a single JSON value from the request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return errors.New("decode request body: trailing data")
	}
	return nil
}

// formatTime renders t as RFC 3339 in UTC, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// OutcomeResponse reports how an event or action was handled.
type OutcomeResponse struct {
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// CommandResponse is the JSON representation of a ledger record.
type CommandResponse struct {
	ID              int64          `json:"id"`
	DeliveryID      string         `json:"delivery_id"`
	Repository      string         `json:"repository"`
	PRNumber        int            `json:"pr_number"`
	Author          string         `json:"author"`
	Command         string         `json:"command"`
	AssignToCopilot bool           `json:"assign_to_copilot"`
	Status          string         `json:"status"`
	PromptGenerated string         `json:"prompt_generated,omitempty"`
	Result          map[string]any `json:"result,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	CreatedAt       string         `json:"created_at"`
	CompletedAt     string         `json:"completed_at,omitempty"`
}

// OperationResponse is the JSON representation of an operation's progress.
type OperationResponse struct {
	OperationID     string         `json:"operation_id"`
	OperationType   string         `json:"operation_type"`
	Repository      string         `json:"repository"`
	PRNumber        int            `json:"pr_number"`
	Status          string         `json:"status"`
	CurrentStep     string         `json:"current_step"`
	ProgressPercent int            `json:"progress_percent"`
	StepsCompleted  int            `json:"steps_completed"`
	StepsTotal      int            `json:"steps_total"`
	Result          map[string]any `json:"result,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
}

// BestPracticeResponse is the JSON representation of a bookmarked suggestion.
type BestPracticeResponse struct {
	ID         int64    `json:"id"`
	Repository string   `json:"repository"`
	PRNumber   int      `json:"pr_number"`
	Author     string   `json:"author"`
	Suggestion string   `json:"suggestion"`
	FilePath   string   `json:"file_path,omitempty"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Status     string   `json:"status"`
	CreatedAt  string   `json:"created_at"`
}

// IssueLinkResponse is the JSON representation of an issue created from a PR.
type IssueLinkResponse struct {
	IssueNumber int    `json:"issue_number"`
	IssueURL    string `json:"issue_url"`
	PRNumber    int    `json:"pr_number"`
	Command     string `json:"command"`
	FilePath    string `json:"file_path,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// RepoActivityResponse groups the recent activity of one repository.
type RepoActivityResponse struct {
	Repository string              `json:"repository"`
	Commands   []CommandResponse   `json:"commands"`
	Operations []OperationResponse `json:"operations"`
	IssueLinks []IssueLinkResponse `json:"issue_links"`
}

// RepoSettingsResponse is the JSON representation of per-repository overrides.
// A null field means the global default applies.
type RepoSettingsResponse struct {
	Repository       string `json:"repository"`
	AutoApplyEnabled *bool  `json:"auto_apply_enabled"`
	AutoApplyCap     *int   `json:"auto_apply_cap"`
}

// RepoSettingsRequest is the JSON body for the settings update endpoint.
type RepoSettingsRequest struct {
	AutoApplyEnabled *bool `json:"auto_apply_enabled"`
	AutoApplyCap     *int  `json:"auto_apply_cap"`
}

// BotConfigResponse is the JSON representation of a bot configuration entry.
type BotConfigResponse struct {
	Username string `json:"username"`
	AddedAt  string `json:"added_at"`
}

// AddBotRequest is the JSON body for the add bot endpoint.
type AddBotRequest struct {
	Username string `json:"username"`
}

// ProjectResponse is the JSON representation of a discovered project.
type ProjectResponse struct {
	FullName    string   `json:"full_name"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Language    string   `json:"language"`
	Stars       int      `json:"stars"`
	Topics      []string `json:"topics"`
	Query       string   `json:"query"`
	Score       float64  `json:"score"`
	Summary     string   `json:"summary,omitempty"`
	PushedAt    string   `json:"pushed_at,omitempty"`
	FirstSeenAt string   `json:"first_seen_at"`
}

// ResearchStatusResponse reports the most recent research sweep.
type ResearchStatusResponse struct {
	InProgress bool   `json:"in_progress"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
	Queries    int    `json:"queries"`
	Discovered int    `json:"discovered"`
	Summarized int    `json:"summarized"`
	LastError  string `json:"last_error,omitempty"`
}

func toCommandResponse(rec model.CommandRecord) CommandResponse {
	resp := CommandResponse{
		ID:              rec.ID,
		DeliveryID:      rec.DeliveryID,
		Repository:      rec.Repo,
		PRNumber:        rec.PRNumber,
		Author:          rec.Author,
		Command:         string(rec.Command),
		AssignToCopilot: rec.Args.AssignToCopilot,
		Status:          string(rec.Status),
		PromptGenerated: rec.PromptGenerated,
		Result:          rec.ResultData,
		ErrorMessage:    rec.ErrorMessage,
		CreatedAt:       formatTime(rec.CreatedAt),
	}
	if rec.CompletedAt != nil {
		resp.CompletedAt = formatTime(*rec.CompletedAt)
	}
	return resp
}

func toOperationResponse(op model.OperationProgress) OperationResponse {
	return OperationResponse{
		OperationID:     op.OperationID,
		OperationType:   op.OperationType,
		Repository:      op.Repo,
		PRNumber:        op.PRNumber,
		Status:          string(op.Status),
		CurrentStep:     op.CurrentStep,
		ProgressPercent: op.ProgressPercent,
		StepsCompleted:  op.StepsCompleted,
		StepsTotal:      op.StepsTotal,
		Result:          op.ResultData,
		ErrorMessage:    op.ErrorMessage,
		CreatedAt:       formatTime(op.CreatedAt),
		UpdatedAt:       formatTime(op.UpdatedAt),
	}
}

func toBestPracticeResponse(bp model.BestPractice) BestPracticeResponse {
	tags := bp.Tags
	if tags == nil {
		tags = []string{}
	}
	return BestPracticeResponse{
		ID:         bp.ID,
		Repository: bp.Repo,
		PRNumber:   bp.PRNumber,
		Author:     bp.Author,
		Suggestion: bp.Suggestion,
		FilePath:   bp.FilePath,
		Category:   bp.Category,
		Tags:       tags,
		Status:     string(bp.Status),
		CreatedAt:  formatTime(bp.CreatedAt),
	}
}

func toIssueLinkResponse(link model.IssueLink) IssueLinkResponse {
	return IssueLinkResponse{
		IssueNumber: link.IssueNumber,
		IssueURL:    link.IssueURL,
		PRNumber:    link.PRNumber,
		Command:     string(link.Command),
		FilePath:    link.FilePath,
		CreatedAt:   formatTime(link.CreatedAt),
	}
}

func toRepoSettingsResponse(s model.RepoSettings) RepoSettingsResponse {
	return RepoSettingsResponse{
		Repository:       s.RepoFullName,
		AutoApplyEnabled: s.AutoApplyEnabled,
		AutoApplyCap:     s.AutoApplyCap,
	}
}

// toBotConfigResponse converts a domain BotConfig to its JSON representation.
func toBotConfigResponse(bot model.BotConfig) BotConfigResponse {
	return BotConfigResponse{
		Username: bot.Username,
		AddedAt:  formatTime(bot.AddedAt),
	}
}

func toProjectResponse(p model.Project) ProjectResponse {
	topics := p.Topics
	if topics == nil {
		topics = []string{}
	}
	return ProjectResponse{
		FullName:    p.FullName,
		URL:         p.URL,
		Description: p.Description,
		Language:    p.Language,
		Stars:       p.Stars,
		Topics:      topics,
		Query:       p.Query,
		Score:       p.Score,
		Summary:     p.Summary,
		PushedAt:    formatTime(p.PushedAt),
		FirstSeenAt: formatTime(p.FirstSeenAt),
	}
}

func toResearchStatusResponse(run model.ResearchRun) ResearchStatusResponse {
	return ResearchStatusResponse{
		InProgress: run.InProgress,
		StartedAt:  formatTime(run.StartedAt),
		FinishedAt: formatTime(run.FinishedAt),
		Queries:    run.Queries,
		Discovered: run.Discovered,
		Summarized: run.Summarized,
		LastError:  run.LastError,
	}
}
