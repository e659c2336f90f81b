package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// errEmptyChangeSet is returned when Apply is called with nothing to commit.
var errEmptyChangeSet = errors.New("empty change set")

// CommitApplier turns a FileChangeSet into a single commit on a branch,
// guarded by an expected-head precondition. It never retries a conflict.
type CommitApplier struct {
	logger *slog.Logger
}

// NewCommitApplier creates a CommitApplier.
func NewCommitApplier(logger *slog.Logger) *CommitApplier {
	return &CommitApplier{logger: logger}
}

// Apply commits changes on top of pre.ExpectedHeadSHA and moves pre.Branch to
// the new commit. If the branch no longer points at the expected head, the
// returned error is a *ConflictError wrapping driven.ErrHeadMoved.
func (a *CommitApplier) Apply(
	ctx context.Context,
	gh driven.GitHubClient,
	repoFullName string,
	pre model.CommitPrecondition,
	changes model.FileChangeSet,
	message string,
) (*model.CommitResult, error) {
	if len(changes) == 0 {
		return nil, errEmptyChangeSet
	}
	if pre.Branch == "" || pre.ExpectedHeadSHA == "" {
		return nil, &ValidationError{Reason: "commit requires a branch and an expected head sha"}
	}

	head, err := gh.GetBranchHead(ctx, repoFullName, pre.Branch)
	if err != nil {
		return nil, collaborator("resolve branch head", err)
	}
	if head != pre.ExpectedHeadSHA {
		return nil, &ConflictError{
			Branch:   pre.Branch,
			Expected: pre.ExpectedHeadSHA,
			Err:      fmt.Errorf("%w: now at %s", driven.ErrHeadMoved, shortSHA(head)),
		}
	}

	baseTree, err := gh.GetCommitTree(ctx, repoFullName, pre.ExpectedHeadSHA)
	if err != nil {
		return nil, collaborator("get base tree", err)
	}

	paths := changes.Paths()
	files := make([]driven.TreeFile, 0, len(paths))
	for _, p := range paths {
		files = append(files, driven.TreeFile{Path: p, Content: changes[p]})
	}

	tree, err := gh.CreateTree(ctx, repoFullName, baseTree, files)
	if err != nil {
		return nil, collaborator("create tree", err)
	}

	sha, url, err := gh.CreateCommit(ctx, repoFullName, message, tree, pre.ExpectedHeadSHA)
	if err != nil {
		return nil, collaborator("create commit", err)
	}

	if err := gh.UpdateBranchRef(ctx, repoFullName, pre.Branch, sha); err != nil {
		if errors.Is(err, driven.ErrHeadMoved) {
			return nil, &ConflictError{Branch: pre.Branch, Expected: pre.ExpectedHeadSHA, Err: err}
		}
		return nil, collaborator("update branch ref", err)
	}

	a.logger.Info("committed suggestions",
		"repo", repoFullName, "branch", pre.Branch, "sha", shortSHA(sha), "files", len(paths))

	return &model.CommitResult{SHA: sha, URL: url, FilesChanged: paths}, nil
}
