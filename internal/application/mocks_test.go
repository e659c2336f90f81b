package application_test

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// --- GitHub fake ---

type fakeCommit struct {
	tree   string
	parent string
}

type createdIssue struct {
	title  string
	body   string
	labels []string
}

// fakeGitHub models just enough of a repository's git data and PR
// conversation for the workflow to run against.
type fakeGitHub struct {
	mu sync.Mutex

	pr             model.PullRequest
	branches       map[string]string
	commits        map[string]fakeCommit
	trees          map[string]map[string]string
	reviewComments []model.ReviewComment
	issueComments  []model.IssueComment
	changedFiles   []model.ChangedFile
	searchResults  map[string][]model.Project

	posted    []string
	replies   []int64
	reactions []string
	issues    []createdIssue
	assigned  []string
	searches  []string
	seq       int

	getPRErr   error
	assignErr  error
	commentErr error
	searchErr  error
	onGetFile  func()
	// blockReviewComments makes ListReviewComments wait for its context.
	blockReviewComments bool
}

var _ driven.GitHubClient = (*fakeGitHub)(nil)

func newFakeGitHub(branch, sha string, files map[string]string) *fakeGitHub {
	tree := "tree-" + sha
	return &fakeGitHub{
		pr: model.PullRequest{
			Number:       7,
			RepoFullName: "octo/widgets",
			Title:        "Add widget parser",
			Author:       "alice",
			URL:          "https://github.com/octo/widgets/pull/7",
			HeadRef:      branch,
			HeadSHA:      sha,
			BaseRef:      "main",
		},
		branches: map[string]string{branch: sha},
		commits:  map[string]fakeCommit{sha: {tree: tree}},
		trees:    map[string]map[string]string{tree: maps.Clone(files)},
	}
}

// contentAt returns the file content at the tip of branch.
func (f *fakeGitHub) contentAt(branch, path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.trees[f.commits[f.branches[branch]].tree][path]
	return c, ok
}

// moveBranch simulates another writer pushing to branch.
func (f *fakeGitHub) moveBranch(branch, sha string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parent := f.branches[branch]
	f.commits[sha] = fakeCommit{tree: f.commits[parent].tree, parent: parent}
	f.branches[branch] = sha
}

func (f *fakeGitHub) postedComments() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.posted)
}

func (f *fakeGitHub) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeGitHub) GetPullRequest(_ context.Context, _ string, _ int) (*model.PullRequest, error) {
	if f.getPRErr != nil {
		return nil, f.getPRErr
	}
	pr := f.pr
	return &pr, nil
}

func (f *fakeGitHub) ListPullRequestFiles(_ context.Context, _ string, _ int) ([]model.ChangedFile, error) {
	return f.changedFiles, nil
}

func (f *fakeGitHub) ListReviewComments(ctx context.Context, _ string, _ int) ([]model.ReviewComment, error) {
	if f.blockReviewComments {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.reviewComments, nil
}

func (f *fakeGitHub) ListIssueComments(_ context.Context, _ string, _ int) ([]model.IssueComment, error) {
	return f.issueComments, nil
}

func (f *fakeGitHub) GetFileContent(_ context.Context, _, path, ref string) (string, bool, error) {
	if f.onGetFile != nil {
		f.onGetFile()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	commit, ok := f.commits[ref]
	if !ok {
		return "", false, fmt.Errorf("no commit %s", ref)
	}
	c, ok := f.trees[commit.tree][path]
	return c, ok, nil
}

func (f *fakeGitHub) GetBranchHead(_ context.Context, _, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sha, ok := f.branches[branch]
	if !ok {
		return "", driven.ErrNotFound
	}
	return sha, nil
}

func (f *fakeGitHub) GetCommitTree(_ context.Context, _, commitSHA string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.commits[commitSHA]
	if !ok {
		return "", driven.ErrNotFound
	}
	return c.tree, nil
}

func (f *fakeGitHub) CreateTree(_ context.Context, _, baseTreeSHA string, files []driven.TreeFile) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tree := maps.Clone(f.trees[baseTreeSHA])
	if tree == nil {
		tree = map[string]string{}
	}
	for _, file := range files {
		tree[file.Path] = file.Content
	}
	sha := f.next("tree")
	f.trees[sha] = tree
	return sha, nil
}

func (f *fakeGitHub) CreateCommit(_ context.Context, repo, _, treeSHA, parentSHA string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sha := f.next("commit")
	f.commits[sha] = fakeCommit{tree: treeSHA, parent: parentSHA}
	return sha, "https://github.com/" + repo + "/commit/" + sha, nil
}

func (f *fakeGitHub) UpdateBranchRef(_ context.Context, _, branch, newSHA string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commits[newSHA].parent != f.branches[branch] {
		return fmt.Errorf("update ref %s: %w", branch, driven.ErrHeadMoved)
	}
	f.branches[branch] = newSHA
	return nil
}

func (f *fakeGitHub) CreateIssueComment(ctx context.Context, _ string, _ int, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commentErr != nil {
		return f.commentErr
	}
	f.posted = append(f.posted, body)
	return nil
}

func (f *fakeGitHub) ReplyToReviewComment(ctx context.Context, _ string, _ int, commentID int64, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commentErr != nil {
		return f.commentErr
	}
	f.posted = append(f.posted, body)
	f.replies = append(f.replies, commentID)
	return nil
}

func (f *fakeGitHub) AddIssueCommentReaction(_ context.Context, _ string, commentID int64, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, fmt.Sprintf("issue:%d:%s", commentID, content))
	return nil
}

func (f *fakeGitHub) AddReviewCommentReaction(_ context.Context, _ string, commentID int64, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, fmt.Sprintf("review:%d:%s", commentID, content))
	return nil
}

func (f *fakeGitHub) CreateIssue(_ context.Context, repo, title, body string, labels []string) (*model.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues = append(f.issues, createdIssue{title: title, body: body, labels: labels})
	n := 100 + len(f.issues)
	return &model.Issue{Number: n, URL: fmt.Sprintf("https://github.com/%s/issues/%d", repo, n), Title: title}, nil
}

func (f *fakeGitHub) AssignIssue(_ context.Context, _ string, _ int, assignees []string) error {
	if f.assignErr != nil {
		return f.assignErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned = append(f.assigned, assignees...)
	return nil
}

func (f *fakeGitHub) SearchRepositories(_ context.Context, query string, limit int) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	results := f.searchResults[query]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

type fakeFactory struct {
	client driven.GitHubClient
	err    error
}

func (f fakeFactory) ForInstallation(_ context.Context, _ int64) (driven.GitHubClient, error) {
	return f.client, f.err
}

// --- LLM fake ---

type fakeLLM struct {
	mu      sync.Mutex
	out     string
	err     error
	prompts []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.out, f.err
}

// --- Ledger stores ---

// memCommandStore enforces forward-only transitions and keeps a journal of
// every write so tests can assert ordering. Like a real store, it refuses
// writes on a done context.
type memCommandStore struct {
	mu      sync.Mutex
	records []model.CommandRecord
	journal []string
}

func (s *memCommandStore) Create(_ context.Context, rec model.CommandRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = int64(len(s.records) + 1)
	rec.CreatedAt = time.Now()
	s.records = append(s.records, rec)
	s.journal = append(s.journal, "create:"+rec.DeliveryID)
	return rec.ID, nil
}

func (s *memCommandStore) transition(ctx context.Context, id int64, next model.CommandStatus, apply func(*model.CommandRecord)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &s.records[id-1]
	if !rec.Status.CanTransitionTo(next) {
		return driven.ErrInvalidTransition
	}
	rec.Status = next
	if next.IsTerminal() {
		now := time.Now()
		rec.CompletedAt = &now
	}
	if apply != nil {
		apply(rec)
	}
	s.journal = append(s.journal, string(next)+":"+rec.DeliveryID)
	return nil
}

func (s *memCommandStore) MarkWorking(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.CommandStatusWorking, nil)
}

func (s *memCommandStore) Complete(ctx context.Context, id int64, prompt string, result map[string]any) error {
	return s.transition(ctx, id, model.CommandStatusCompleted, func(r *model.CommandRecord) {
		r.PromptGenerated = prompt
		r.ResultData = result
	})
}

func (s *memCommandStore) Fail(ctx context.Context, id int64, message string) error {
	return s.transition(ctx, id, model.CommandStatusFailed, func(r *model.CommandRecord) {
		r.ErrorMessage = message
	})
}

func (s *memCommandStore) Get(_ context.Context, id int64) (*model.CommandRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 1 || int(id) > len(s.records) {
		return nil, nil
	}
	rec := s.records[id-1]
	return &rec, nil
}

func (s *memCommandStore) List(_ context.Context, _ driven.CommandFilter) ([]model.CommandRecord, error) {
	return s.all(), nil
}

func (s *memCommandStore) all() []model.CommandRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

func (s *memCommandStore) entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.journal)
}

type memOperationStore struct {
	mu  sync.Mutex
	ops map[string]*model.OperationProgress
}

func newMemOperationStore() *memOperationStore {
	return &memOperationStore{ops: map[string]*model.OperationProgress{}}
}

func (s *memOperationStore) Start(_ context.Context, op model.OperationProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops[op.OperationID] = &op
	return nil
}

func (s *memOperationStore) UpdateProgress(_ context.Context, id, step string, stepsCompleted, percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := s.ops[id]
	op.Status = model.OperationStatusRunning
	op.CurrentStep = step
	op.StepsCompleted = stepsCompleted
	op.ProgressPercent = max(op.ProgressPercent, percent)
	return nil
}

func (s *memOperationStore) Finish(ctx context.Context, id string, status model.OperationStatus, result map[string]any, errMsg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	op := s.ops[id]
	op.Status = status
	op.ResultData = result
	op.ErrorMessage = errMsg
	if status == model.OperationStatusCompleted {
		op.ProgressPercent = 100
	}
	return nil
}

func (s *memOperationStore) Get(_ context.Context, id string) (*model.OperationProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[id]
	if !ok {
		return nil, nil
	}
	cp := *op
	return &cp, nil
}

func (s *memOperationStore) ListByRepo(_ context.Context, _ string, _ int) ([]model.OperationProgress, error) {
	return s.all(), nil
}

func (s *memOperationStore) ListRecent(_ context.Context, _ int) ([]model.OperationProgress, error) {
	return s.all(), nil
}

func (s *memOperationStore) all() []model.OperationProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.OperationProgress, 0, len(s.ops))
	for _, op := range s.ops {
		out = append(out, *op)
	}
	return out
}

type memBestPracticeStore struct {
	items []model.BestPractice
}

func (s *memBestPracticeStore) Add(_ context.Context, bp model.BestPractice) (int64, error) {
	bp.ID = int64(len(s.items) + 1)
	s.items = append(s.items, bp)
	return bp.ID, nil
}

func (s *memBestPracticeStore) List(_ context.Context, _ driven.BestPracticeFilter) ([]model.BestPractice, error) {
	return s.items, nil
}

type memIssueLinkStore struct {
	links []model.IssueLink
}

func (s *memIssueLinkStore) Add(_ context.Context, link model.IssueLink) error {
	s.links = append(s.links, link)
	return nil
}

func (s *memIssueLinkStore) ListByRepo(_ context.Context, _ string, _ int) ([]model.IssueLink, error) {
	return s.links, nil
}

type memRepoSettingsStore struct {
	settings map[string]model.RepoSettings
}

func (s *memRepoSettingsStore) GetSettings(_ context.Context, repo string) (*model.RepoSettings, error) {
	rs, ok := s.settings[repo]
	if !ok {
		return nil, nil
	}
	return &rs, nil
}

func (s *memRepoSettingsStore) SetSettings(_ context.Context, rs model.RepoSettings) error {
	if s.settings == nil {
		s.settings = map[string]model.RepoSettings{}
	}
	s.settings[rs.RepoFullName] = rs
	return nil
}

type memBotConfigStore struct {
	usernames []string
}

func (s *memBotConfigStore) Add(_ context.Context, cfg model.BotConfig) (model.BotConfig, error) {
	s.usernames = append(s.usernames, cfg.Username)
	return cfg, nil
}

func (s *memBotConfigStore) Remove(_ context.Context, _ string) error { return nil }

func (s *memBotConfigStore) ListAll(_ context.Context) ([]model.BotConfig, error) {
	out := make([]model.BotConfig, 0, len(s.usernames))
	for _, u := range s.usernames {
		out = append(out, model.BotConfig{Username: u})
	}
	return out, nil
}

func (s *memBotConfigStore) GetUsernames(_ context.Context) ([]string, error) {
	return s.usernames, nil
}

type memProjectStore struct {
	mu       sync.Mutex
	projects map[string]model.Project
}

func (s *memProjectStore) Upsert(_ context.Context, p model.Project) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.projects == nil {
		s.projects = map[string]model.Project{}
	}
	_, exists := s.projects[p.FullName]
	s.projects[p.FullName] = p
	return !exists, nil
}

func (s *memProjectStore) SetSummary(_ context.Context, fullName, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.projects[fullName]
	p.Summary = summary
	s.projects[fullName] = p
	return nil
}

func (s *memProjectStore) List(_ context.Context, minScore float64, _ int) ([]model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Project
	for _, p := range s.projects {
		if p.Score >= minScore {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memProjectStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.projects), nil
}
