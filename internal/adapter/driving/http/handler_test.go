package httphandler_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/jmbish04/gh-bot/internal/adapter/driving/http"
	"github.com/jmbish04/gh-bot/internal/application"
	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockWorkflow struct {
	mu      sync.Mutex
	events  []model.Event
	outcome application.Outcome
}

func (m *mockWorkflow) HandleEvent(_ context.Context, ev model.Event) application.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.outcome
}

func (m *mockWorkflow) received() []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Event(nil), m.events...)
}

type mockCommandStore struct {
	records    []model.CommandRecord
	record     *model.CommandRecord
	err        error
	lastFilter driven.CommandFilter
}

func (m *mockCommandStore) Create(_ context.Context, _ model.CommandRecord) (int64, error) {
	return 1, nil
}
func (m *mockCommandStore) MarkWorking(_ context.Context, _ int64) error { return nil }
func (m *mockCommandStore) Complete(_ context.Context, _ int64, _ string, _ map[string]any) error {
	return nil
}
func (m *mockCommandStore) Fail(_ context.Context, _ int64, _ string) error { return nil }
func (m *mockCommandStore) Get(_ context.Context, _ int64) (*model.CommandRecord, error) {
	return m.record, m.err
}
func (m *mockCommandStore) List(_ context.Context, filter driven.CommandFilter) ([]model.CommandRecord, error) {
	m.lastFilter = filter
	return m.records, m.err
}

type mockOperationStore struct {
	ops []model.OperationProgress
	op  *model.OperationProgress
	err error
}

func (m *mockOperationStore) Start(_ context.Context, _ model.OperationProgress) error { return nil }
func (m *mockOperationStore) UpdateProgress(_ context.Context, _, _ string, _, _ int) error {
	return nil
}
func (m *mockOperationStore) Finish(_ context.Context, _ string, _ model.OperationStatus, _ map[string]any, _ string) error {
	return nil
}
func (m *mockOperationStore) Get(_ context.Context, _ string) (*model.OperationProgress, error) {
	return m.op, m.err
}
func (m *mockOperationStore) ListByRepo(_ context.Context, _ string, _ int) ([]model.OperationProgress, error) {
	return m.ops, m.err
}
func (m *mockOperationStore) ListRecent(_ context.Context, _ int) ([]model.OperationProgress, error) {
	return m.ops, m.err
}

type mockBestPracticeStore struct {
	items      []model.BestPractice
	lastFilter driven.BestPracticeFilter
}

func (m *mockBestPracticeStore) Add(_ context.Context, _ model.BestPractice) (int64, error) {
	return 1, nil
}
func (m *mockBestPracticeStore) List(_ context.Context, filter driven.BestPracticeFilter) ([]model.BestPractice, error) {
	m.lastFilter = filter
	return m.items, nil
}

type mockIssueLinkStore struct {
	links []model.IssueLink
}

func (m *mockIssueLinkStore) Add(_ context.Context, _ model.IssueLink) error { return nil }
func (m *mockIssueLinkStore) ListByRepo(_ context.Context, _ string, _ int) ([]model.IssueLink, error) {
	return m.links, nil
}

type mockRepoSettingsStore struct {
	settings *model.RepoSettings
	saved    *model.RepoSettings
}

func (m *mockRepoSettingsStore) GetSettings(_ context.Context, _ string) (*model.RepoSettings, error) {
	return m.settings, nil
}
func (m *mockRepoSettingsStore) SetSettings(_ context.Context, s model.RepoSettings) error {
	m.saved = &s
	return nil
}

type mockBotConfigStore struct {
	bots      []model.BotConfig
	usernames []string
	err       error
	addErr    error
	removeErr error
}

func (m *mockBotConfigStore) Add(_ context.Context, bot model.BotConfig) (model.BotConfig, error) {
	bot.ID = 7
	return bot, m.addErr
}
func (m *mockBotConfigStore) Remove(_ context.Context, _ string) error {
	return m.removeErr
}
func (m *mockBotConfigStore) ListAll(_ context.Context) ([]model.BotConfig, error) {
	return m.bots, m.err
}
func (m *mockBotConfigStore) GetUsernames(_ context.Context) ([]string, error) {
	return m.usernames, m.err
}

type mockResearch struct {
	run       model.ResearchRun
	projects  []model.Project
	queued    bool
	lastScore float64
	lastLimit int
}

func (m *mockResearch) Status() model.ResearchRun { return m.run }
func (m *mockResearch) Results(_ context.Context, minScore float64, limit int) ([]model.Project, error) {
	m.lastScore = minScore
	m.lastLimit = limit
	return m.projects, nil
}
func (m *mockResearch) Trigger() bool { return m.queued }

// --- Test helpers ---

const (
	testSecret   = "s3cret"
	testBotLogin = "colby[bot]"
)

var (
	testTime    = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	testTimeStr = "2026-02-10T12:00:00Z"
)

func defaultDeps() httphandler.Deps {
	return httphandler.Deps{
		Workflow:      &mockWorkflow{outcome: application.Outcome{Kind: application.OutcomeOK}},
		Commands:      &mockCommandStore{},
		Operations:    &mockOperationStore{},
		BestPractices: &mockBestPracticeStore{},
		IssueLinks:    &mockIssueLinkStore{},
		RepoSettings:  &mockRepoSettingsStore{},
		BotConfig:     &mockBotConfigStore{},
		Research:      &mockResearch{},
	}
}

func setupMux(deps httphandler.Deps) http.Handler {
	h := httphandler.NewHandler(deps, httphandler.WebhookConfig{
		Secret:                []byte(testSecret),
		BotLogin:              testBotLogin,
		DefaultInstallationID: 1,
	}, slog.Default())
	return httphandler.NewServeMux(h, slog.Default())
}

func serve(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	err := json.NewDecoder(rec.Body).Decode(v)
	require.NoError(t, err)
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func webhookRequest(eventType, payload, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/github/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", eventType)
	req.Header.Set("X-GitHub-Delivery", "delivery-1")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	return req
}

const reviewCommentPayload = `{
	"action": "created",
	"comment": {
		"id": 11,
		"body": "Looks off.\n/colby implement",
		"user": {"login": "alice", "type": "User"},
		"path": "main.go",
		"line": 3,
		"diff_hunk": "@@ -1,3 +1,3 @@"
	},
	"pull_request": {"number": 7, "head": {"ref": "feat", "sha": "abc123"}},
	"repository": {"full_name": "octo/app"},
	"installation": {"id": 99}
}`

// --- Webhook ---

func TestWebhook_ReviewCommentDispatchesEvent(t *testing.T) {
	deps := defaultDeps()
	wf := deps.Workflow.(*mockWorkflow)
	mux := setupMux(deps)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, webhookRequest("pull_request_review_comment", reviewCommentPayload, sign(testSecret, reviewCommentPayload)))

	require.Equal(t, http.StatusOK, rec.Code)
	var body httphandler.OutcomeResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, "ok", body.Outcome)

	events := wf.received()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, model.EventKindReviewComment, ev.Kind)
	assert.Equal(t, "octo/app", ev.Repo)
	assert.Equal(t, 7, ev.PRNumber)
	assert.Equal(t, "alice", ev.Author)
	assert.Equal(t, int64(99), ev.InstallationID)
	assert.Equal(t, int64(11), ev.CommentID)
	assert.Equal(t, "main.go", ev.FilePath)
	assert.Equal(t, 3, ev.Line)
	assert.Equal(t, "feat", ev.HeadRef)
	assert.Equal(t, "abc123", ev.HeadSHA)
	assert.Equal(t, "delivery-1", ev.DeliveryID)
	assert.Equal(t, []string{"/colby implement"}, ev.Triggers)
	assert.NotNil(t, ev.Suggestions)
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	deps := defaultDeps()
	wf := deps.Workflow.(*mockWorkflow)
	mux := setupMux(deps)

	tests := []struct {
		name      string
		signature string
	}{
		{name: "missing", signature: ""},
		{name: "wrong secret", signature: sign("other", reviewCommentPayload)},
		{name: "garbage", signature: "sha256=zz"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, webhookRequest("pull_request_review_comment", reviewCommentPayload, tc.signature))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
	assert.Empty(t, wf.received())
}

func TestWebhook_NoSecretConfigured(t *testing.T) {
	deps := defaultDeps()
	h := httphandler.NewHandler(deps, httphandler.WebhookConfig{}, slog.Default())
	mux := httphandler.NewServeMux(h, slog.Default())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, webhookRequest("pull_request_review_comment", reviewCommentPayload, sign("", reviewCommentPayload)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, deps.Workflow.(*mockWorkflow).received())
}

func TestWebhook_IgnoredDeliveries(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		payload   string
	}{
		{
			name:      "unhandled event type",
			eventType: "star",
			payload:   `{"action":"created"}`,
		},
		{
			name:      "ping",
			eventType: "ping",
			payload:   `{"zen":"Keep it logically awesome.","hook_id":1}`,
		},
		{
			name:      "edited review comment",
			eventType: "pull_request_review_comment",
			payload:   strings.Replace(reviewCommentPayload, `"created"`, `"edited"`, 1),
		},
		{
			name:      "comment by the bot itself",
			eventType: "pull_request_review_comment",
			payload:   strings.Replace(reviewCommentPayload, `"alice"`, `"Colby[bot]"`, 1),
		},
		{
			name:      "issue comment on a plain issue",
			eventType: "issue_comment",
			payload: `{"action":"created","issue":{"number":3},"comment":{"id":1,"body":"/colby help","user":{"login":"alice"}},
				"repository":{"full_name":"octo/app"}}`,
		},
		{
			name:      "closed pull request",
			eventType: "pull_request",
			payload:   `{"action":"closed","number":7,"pull_request":{"number":7},"repository":{"full_name":"octo/app"}}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := defaultDeps()
			mux := setupMux(deps)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, webhookRequest(tc.eventType, tc.payload, sign(testSecret, tc.payload)))

			require.Equal(t, http.StatusOK, rec.Code)
			var body httphandler.OutcomeResponse
			decodeJSON(t, rec, &body)
			assert.Equal(t, "ignored", body.Outcome)
			assert.Empty(t, deps.Workflow.(*mockWorkflow).received())
		})
	}
}

func TestWebhook_IssueCommentOnPullRequest(t *testing.T) {
	deps := defaultDeps()
	wf := deps.Workflow.(*mockWorkflow)
	mux := setupMux(deps)

	payload := `{"action":"created",
		"issue":{"number":12,"pull_request":{"url":"https://api.github.com/repos/octo/app/pulls/12"}},
		"comment":{"id":5,"body":"/summarize","user":{"login":"bob"}},
		"repository":{"full_name":"octo/app"}}`

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, webhookRequest("issue_comment", payload, sign(testSecret, payload)))

	require.Equal(t, http.StatusOK, rec.Code)
	events := wf.received()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventKindIssueComment, events[0].Kind)
	assert.Equal(t, 12, events[0].PRNumber)
	assert.Equal(t, []string{"/summarize"}, events[0].Triggers)
	assert.Equal(t, int64(1), events[0].InstallationID, "falls back to the default installation")
}

func TestWebhook_PullRequestOpened(t *testing.T) {
	deps := defaultDeps()
	wf := deps.Workflow.(*mockWorkflow)
	mux := setupMux(deps)

	payload := `{"action":"opened","number":4,
		"pull_request":{"number":4,"user":{"login":"carol"},"head":{"ref":"topic","sha":"fff"}},
		"repository":{"full_name":"octo/app"},"installation":{"id":5}}`

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, webhookRequest("pull_request", payload, sign(testSecret, payload)))

	require.Equal(t, http.StatusOK, rec.Code)
	events := wf.received()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventKindPullRequest, events[0].Kind)
	assert.Equal(t, "topic", events[0].HeadRef)
	assert.Empty(t, events[0].Triggers)
}

// --- POST /events ---

func TestPostEvent_OutcomeStatus(t *testing.T) {
	tests := []struct {
		name       string
		outcome    application.Outcome
		wantStatus int
		wantKind   string
	}{
		{name: "ok", outcome: application.Outcome{Kind: application.OutcomeOK}, wantStatus: http.StatusOK, wantKind: "ok"},
		{name: "invalid", outcome: application.Outcome{Kind: application.OutcomeInvalid, Message: "missing repo"}, wantStatus: http.StatusBadRequest, wantKind: "invalid"},
		{name: "conflict", outcome: application.Outcome{Kind: application.OutcomeConflict, Message: "head moved"}, wantStatus: http.StatusConflict, wantKind: "conflict"},
		{name: "failed", outcome: application.Outcome{Kind: application.OutcomeFailed, Message: "boom"}, wantStatus: http.StatusInternalServerError, wantKind: "failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := defaultDeps()
			deps.Workflow = &mockWorkflow{outcome: tc.outcome}
			mux := setupMux(deps)

			rec := serve(mux, http.MethodPost, "/events",
				`{"kind":"issue_comment","repo":"octo/app","prNumber":1,"author":"alice","triggers":["/colby help"],"installationId":1}`)

			assert.Equal(t, tc.wantStatus, rec.Code)
			var body httphandler.OutcomeResponse
			decodeJSON(t, rec, &body)
			assert.Equal(t, tc.wantKind, body.Outcome)
			assert.Equal(t, tc.outcome.Message, body.Message)
		})
	}
}

func TestPostEvent_NormalizesNilSlices(t *testing.T) {
	deps := defaultDeps()
	wf := deps.Workflow.(*mockWorkflow)
	mux := setupMux(deps)

	rec := serve(mux, http.MethodPost, "/events", `{"kind":"pull_request","repo":"octo/app","prNumber":2}`)

	require.Equal(t, http.StatusOK, rec.Code)
	events := wf.received()
	require.Len(t, events, 1)
	assert.NotNil(t, events[0].Suggestions)
	assert.NotNil(t, events[0].Triggers)
}

func TestPostEvent_InvalidBody(t *testing.T) {
	deps := defaultDeps()
	mux := setupMux(deps)

	for _, body := range []string{"", "{", `{"kind":"x"} {"kind":"y"}`} {
		rec := serve(mux, http.MethodPost, "/events", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
	assert.Empty(t, deps.Workflow.(*mockWorkflow).received())
}

// --- Ledger ---

func TestListCommands(t *testing.T) {
	completed := testTime.Add(time.Minute)
	store := &mockCommandStore{records: []model.CommandRecord{{
		ID:          3,
		DeliveryID:  "d-3",
		Repo:        "octo/app",
		PRNumber:    7,
		Author:      "alice",
		Command:     model.CommandCreateIssue,
		Args:        model.CommandArgs{AssignToCopilot: true},
		Status:      model.CommandStatusCompleted,
		ResultData:  map[string]any{"issue_number": 42},
		CreatedAt:   testTime,
		CompletedAt: &completed,
	}}}
	deps := defaultDeps()
	deps.Commands = store
	mux := setupMux(deps)

	rec := serve(mux, http.MethodGet, "/colby/commands?repo=octo/app&author=alice&limit=500&offset=10", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body []map[string]any
	decodeJSON(t, rec, &body)
	require.Len(t, body, 1)
	assert.Equal(t, float64(3), body[0]["id"])
	assert.Equal(t, "create_issue", body[0]["command"])
	assert.Equal(t, true, body[0]["assign_to_copilot"])
	assert.Equal(t, "completed", body[0]["status"])
	assert.Equal(t, testTimeStr, body[0]["created_at"])
	assert.Equal(t, "2026-02-10T12:01:00Z", body[0]["completed_at"])

	assert.Equal(t, driven.CommandFilter{Repo: "octo/app", Author: "alice", Limit: 100, Offset: 10}, store.lastFilter)
}

func TestListCommands_EmptyIsArray(t *testing.T) {
	mux := setupMux(defaultDeps())

	rec := serve(mux, http.MethodGet, "/colby/commands", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListCommands_BadPaging(t *testing.T) {
	mux := setupMux(defaultDeps())

	for _, q := range []string{"limit=-1", "limit=abc", "offset=-5"} {
		rec := serve(mux, http.MethodGet, "/colby/commands?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestListCommands_StoreError(t *testing.T) {
	deps := defaultDeps()
	deps.Commands = &mockCommandStore{err: errors.New("db down")}
	mux := setupMux(deps)

	rec := serve(mux, http.MethodGet, "/colby/commands", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetCommand(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		record     *model.CommandRecord
		wantStatus int
	}{
		{name: "found", path: "/colby/commands/3", record: &model.CommandRecord{ID: 3, Status: model.CommandStatusQueued}, wantStatus: http.StatusOK},
		{name: "missing", path: "/colby/commands/4", wantStatus: http.StatusNotFound},
		{name: "not a number", path: "/colby/commands/abc", wantStatus: http.StatusBadRequest},
		{name: "zero", path: "/colby/commands/0", wantStatus: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := defaultDeps()
			deps.Commands = &mockCommandStore{record: tc.record}
			mux := setupMux(deps)

			rec := serve(mux, http.MethodGet, tc.path, "")
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestGetOperation(t *testing.T) {
	deps := defaultDeps()
	deps.Operations = &mockOperationStore{op: &model.OperationProgress{
		OperationID:     "op-1",
		OperationType:   "implement",
		Repo:            "octo/app",
		PRNumber:        7,
		Status:          model.OperationStatusRunning,
		CurrentStep:     "committing",
		ProgressPercent: 60,
		StepsCompleted:  3,
		StepsTotal:      5,
		CreatedAt:       testTime,
		UpdatedAt:       testTime,
	}}
	mux := setupMux(deps)

	rec := serve(mux, http.MethodGet, "/colby/operations/op-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body httphandler.OperationResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, "op-1", body.OperationID)
	assert.Equal(t, "running", body.Status)
	assert.Equal(t, 60, body.ProgressPercent)
	assert.Equal(t, 5, body.StepsTotal)
}

func TestGetOperation_NotFound(t *testing.T) {
	mux := setupMux(defaultDeps())

	rec := serve(mux, http.MethodGet, "/colby/operations/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBestPractices(t *testing.T) {
	store := &mockBestPracticeStore{items: []model.BestPractice{{
		ID:         1,
		Repo:       "octo/app",
		Suggestion: "use context",
		Category:   "go",
		Status:     model.BestPracticePending,
		CreatedAt:  testTime,
	}}}
	deps := defaultDeps()
	deps.BestPractices = store
	mux := setupMux(deps)

	rec := serve(mux, http.MethodGet, "/colby/best-practices?category=go&status=pending", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body []httphandler.BestPracticeResponse
	decodeJSON(t, rec, &body)
	require.Len(t, body, 1)
	assert.Equal(t, "use context", body[0].Suggestion)
	assert.Equal(t, []string{}, body[0].Tags)
	assert.Equal(t, "go", store.lastFilter.Category)
	assert.Equal(t, model.BestPracticePending, store.lastFilter.Status)
	assert.Equal(t, 50, store.lastFilter.Limit)
}

func TestListBestPractices_BadStatus(t *testing.T) {
	mux := setupMux(defaultDeps())

	rec := serve(mux, http.MethodGet, "/colby/best-practices?status=archived", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRepoActivity(t *testing.T) {
	deps := defaultDeps()
	deps.Commands = &mockCommandStore{records: []model.CommandRecord{{ID: 1, Repo: "octo/app", CreatedAt: testTime}}}
	deps.Operations = &mockOperationStore{ops: []model.OperationProgress{{OperationID: "op-1", Repo: "octo/app"}}}
	deps.IssueLinks = &mockIssueLinkStore{links: []model.IssueLink{{IssueNumber: 9, IssueURL: "https://github.com/octo/app/issues/9"}}}
	mux := setupMux(deps)

	rec := serve(mux, http.MethodGet, "/colby/repo/octo/app", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body httphandler.RepoActivityResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, "octo/app", body.Repository)
	assert.Len(t, body.Commands, 1)
	assert.Len(t, body.Operations, 1)
	require.Len(t, body.IssueLinks, 1)
	assert.Equal(t, 9, body.IssueLinks[0].IssueNumber)
}

func TestRepoActivity_InvalidName(t *testing.T) {
	mux := setupMux(defaultDeps())

	rec := serve(mux, http.MethodGet, "/colby/repo/octo/ap$p", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Repo settings ---

func TestRepoSettings_DefaultsWhenUnset(t *testing.T) {
	mux := setupMux(defaultDeps())

	rec := serve(mux, http.MethodGet, "/colby/repo/octo/app/settings", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"repository":"octo/app","auto_apply_enabled":null,"auto_apply_cap":null}`, rec.Body.String())
}

func TestRepoSettings_Put(t *testing.T) {
	store := &mockRepoSettingsStore{}
	deps := defaultDeps()
	deps.RepoSettings = store
	mux := setupMux(deps)

	rec := serve(mux, http.MethodPut, "/colby/repo/octo/app/settings", `{"auto_apply_enabled":false,"auto_apply_cap":10}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.saved)
	assert.Equal(t, "octo/app", store.saved.RepoFullName)
	require.NotNil(t, store.saved.AutoApplyEnabled)
	assert.False(t, *store.saved.AutoApplyEnabled)
	require.NotNil(t, store.saved.AutoApplyCap)
	assert.Equal(t, 10, *store.saved.AutoApplyCap)
}

func TestRepoSettings_PutRejectsBadCap(t *testing.T) {
	store := &mockRepoSettingsStore{}
	deps := defaultDeps()
	deps.RepoSettings = store
	mux := setupMux(deps)

	rec := serve(mux, http.MethodPut, "/colby/repo/octo/app/settings", `{"auto_apply_cap":0}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, store.saved)
}

// --- Bots ---

func TestListBots(t *testing.T) {
	deps := defaultDeps()
	deps.BotConfig = &mockBotConfigStore{bots: []model.BotConfig{{ID: 1, Username: "coderabbitai", AddedAt: testTime}}}
	mux := setupMux(deps)

	rec := serve(mux, http.MethodGet, "/colby/bots", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"username":"coderabbitai","added_at":"2026-02-10T12:00:00Z"}]`, rec.Body.String())
}

func TestAddBot(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		addErr     error
		wantStatus int
	}{
		{name: "created", body: `{"username":"  renovate[bot] "}`, wantStatus: http.StatusCreated},
		{name: "duplicate", body: `{"username":"coderabbitai"}`, addErr: driven.ErrBotAlreadyExists, wantStatus: http.StatusConflict},
		{name: "blank", body: `{"username":"   "}`, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{"username":`, wantStatus: http.StatusBadRequest},
		{name: "store failure", body: `{"username":"x"}`, addErr: errors.New("disk full"), wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := defaultDeps()
			deps.BotConfig = &mockBotConfigStore{addErr: tc.addErr}
			mux := setupMux(deps)

			rec := serve(mux, http.MethodPost, "/colby/bots", tc.body)
			assert.Equal(t, tc.wantStatus, rec.Code)

			if tc.wantStatus == http.StatusCreated {
				var body httphandler.BotConfigResponse
				decodeJSON(t, rec, &body)
				assert.Equal(t, "renovate[bot]", body.Username)
			}
		})
	}
}

func TestRemoveBot(t *testing.T) {
	tests := []struct {
		name       string
		removeErr  error
		wantStatus int
	}{
		{name: "removed", wantStatus: http.StatusNoContent},
		{name: "missing", removeErr: driven.ErrBotNotFound, wantStatus: http.StatusNotFound},
		{name: "store failure", removeErr: errors.New("locked"), wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := defaultDeps()
			deps.BotConfig = &mockBotConfigStore{removeErr: tc.removeErr}
			mux := setupMux(deps)

			rec := serve(mux, http.MethodDelete, "/colby/bots/coderabbitai", "")
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

// --- Research ---

func TestResearchStatus(t *testing.T) {
	deps := defaultDeps()
	deps.Research = &mockResearch{run: model.ResearchRun{
		StartedAt:  testTime,
		FinishedAt: testTime.Add(time.Minute),
		Queries:    3,
		Discovered: 12,
		Summarized: 2,
	}}
	mux := setupMux(deps)

	rec := serve(mux, http.MethodGet, "/research/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body httphandler.ResearchStatusResponse
	decodeJSON(t, rec, &body)
	assert.False(t, body.InProgress)
	assert.Equal(t, testTimeStr, body.StartedAt)
	assert.Equal(t, 12, body.Discovered)
}

func TestResearchResults(t *testing.T) {
	research := &mockResearch{projects: []model.Project{{
		FullName:    "octo/tool",
		Stars:       120,
		Score:       4.5,
		FirstSeenAt: testTime,
	}}}
	deps := defaultDeps()
	deps.Research = research
	mux := setupMux(deps)

	rec := serve(mux, http.MethodGet, "/research/results?min_score=2.5&limit=1000", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body []httphandler.ProjectResponse
	decodeJSON(t, rec, &body)
	require.Len(t, body, 1)
	assert.Equal(t, "octo/tool", body[0].FullName)
	assert.Equal(t, []string{}, body[0].Topics)
	assert.InDelta(t, 2.5, research.lastScore, 1e-9)
	assert.Equal(t, 100, research.lastLimit)
}

func TestResearchResults_BadQuery(t *testing.T) {
	mux := setupMux(defaultDeps())

	for _, q := range []string{"min_score=high", "min_score=-1", "limit=-2"} {
		rec := serve(mux, http.MethodGet, "/research/results?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestRunResearch(t *testing.T) {
	deps := defaultDeps()
	deps.Research = &mockResearch{queued: true}
	mux := setupMux(deps)

	rec := serve(mux, http.MethodPost, "/research/run", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	deps.Research = &mockResearch{queued: false}
	mux = setupMux(deps)

	rec = serve(mux, http.MethodPost, "/research/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestResearch_Disabled(t *testing.T) {
	deps := defaultDeps()
	deps.Research = nil
	mux := setupMux(deps)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/research/status"},
		{http.MethodGet, "/research/results"},
		{http.MethodPost, "/research/run"},
	} {
		rec := serve(mux, tc.method, tc.path, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
	}
}

// --- Health and middleware ---

func TestHealth(t *testing.T) {
	mux := setupMux(defaultDeps())

	rec := serve(mux, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body httphandler.HealthResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, "ok", body.Status)
	_, err := time.Parse(time.RFC3339, body.Time)
	assert.NoError(t, err)
}

func TestApplyMiddleware_RecoversPanic(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})
	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	rec := serve(handler, http.MethodGet, "/boom", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	mux := setupMux(defaultDeps())

	rec := serve(mux, http.MethodGet, "/events", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
