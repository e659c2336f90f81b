package web_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmbish04/gh-bot/internal/adapter/driving/web"
	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

type stubCommands struct {
	driven.CommandStore
	records []model.CommandRecord
	err     error
}

func (s *stubCommands) List(_ context.Context, _ driven.CommandFilter) ([]model.CommandRecord, error) {
	return s.records, s.err
}

type stubOperations struct {
	driven.OperationStore
	ops []model.OperationProgress
}

func (s *stubOperations) ListRecent(_ context.Context, _ int) ([]model.OperationProgress, error) {
	return s.ops, nil
}

type stubBestPractices struct {
	driven.BestPracticeStore
	items []model.BestPractice
	err   error
}

func (s *stubBestPractices) List(_ context.Context, _ driven.BestPracticeFilter) ([]model.BestPractice, error) {
	return s.items, s.err
}

type stubResearch struct {
	run       model.ResearchRun
	projects  []model.Project
	triggered int
}

func (s *stubResearch) Status() model.ResearchRun { return s.run }
func (s *stubResearch) Results(_ context.Context, _ float64, _ int) ([]model.Project, error) {
	return s.projects, nil
}
func (s *stubResearch) Trigger() bool {
	s.triggered++
	return true
}

var testTime = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func newMux(cmds *stubCommands, research web.ResearchRunner) *http.ServeMux {
	h := web.NewHandler(
		cmds,
		&stubOperations{ops: []model.OperationProgress{{
			OperationID:     "op-1",
			OperationType:   "implement",
			Repo:            "octo/app",
			PRNumber:        7,
			Status:          model.OperationStatusRunning,
			CurrentStep:     "committing",
			ProgressPercent: 60,
			StepsCompleted:  3,
			StepsTotal:      5,
			UpdatedAt:       testTime,
		}}},
		&stubBestPractices{items: []model.BestPractice{{
			Repo:       "octo/app",
			PRNumber:   7,
			Suggestion: "return <nil>",
			Category:   "go",
			Status:     model.BestPracticePending,
		}}},
		research,
		slog.Default(),
	)
	mux := http.NewServeMux()
	web.RegisterRoutes(mux, h)
	return mux
}

func TestDashboard_RendersLedger(t *testing.T) {
	cmds := &stubCommands{records: []model.CommandRecord{{
		ID:              1,
		Repo:            "octo/app",
		PRNumber:        7,
		Author:          "<alice>",
		Command:         model.CommandCreateIssue,
		Status:          model.CommandStatusFailed,
		ErrorMessage:    "assignee rejected",
		PromptGenerated: "**Fix** the loop",
		CreatedAt:       testTime,
	}}}
	research := &stubResearch{
		run: model.ResearchRun{FinishedAt: testTime, Discovered: 4, Summarized: 1},
		projects: []model.Project{{
			FullName: "octo/tool",
			URL:      "https://github.com/octo/tool",
			Stars:    12,
			Score:    3.25,
			Summary:  "A *fast* tool",
		}},
	}
	mux := newMux(cmds, research)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "<!DOCTYPE html>"))
	assert.Contains(t, body, "create issue")
	assert.Contains(t, body, `class="status-failed"`)
	assert.Contains(t, body, "assignee rejected")
	assert.Contains(t, body, "&lt;alice&gt;")
	assert.NotContains(t, body, "<alice>")
	assert.Contains(t, body, "<strong>Fix</strong>")
	assert.Contains(t, body, `<progress max="100" value="60">`)
	assert.Contains(t, body, "3/5")
	assert.Contains(t, body, "return &lt;nil&gt;")
	assert.Contains(t, body, "4 discovered, 1 summarized")
	assert.Contains(t, body, "score 3.25")
	assert.Contains(t, body, "<em>fast</em>")

	var csrf *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "csrf_token" {
			csrf = c
		}
	}
	require.NotNil(t, csrf)
	assert.Contains(t, body, `value="`+csrf.Value+`"`)
}

func TestDashboard_EmptyStateWithoutResearch(t *testing.T) {
	mux := newMux(&stubCommands{}, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No commands yet.")
	assert.NotContains(t, rec.Body.String(), `id="research"`)
}

func TestDashboard_LedgerError(t *testing.T) {
	mux := newMux(&stubCommands{err: errors.New("db closed")}, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRunResearch_RequiresCSRF(t *testing.T) {
	research := &stubResearch{}
	mux := newMux(&stubCommands{}, research)

	form := url.Values{"csrf_token": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/app/research/run", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "expected"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, research.triggered)
}

func TestRunResearch_TriggersAndRedirects(t *testing.T) {
	research := &stubResearch{}
	mux := newMux(&stubCommands{}, research)

	form := url.Values{"csrf_token": {"tok"}}
	req := httptest.NewRequest(http.MethodPost, "/app/research/run", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, 1, research.triggered)
}

func TestStaticAssets(t *testing.T) {
	mux := newMux(&stubCommands{}, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/colby.css", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".diff-add")
}
