// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/jmbish04/gh-bot/internal/domain/model"
)

// ErrHeadMoved indicates a branch no longer points at the commit the caller
// expected. It is the optimistic-concurrency failure of a commit.
var ErrHeadMoved = errors.New("branch head moved")

// ErrNotFound indicates the requested GitHub resource does not exist.
var ErrNotFound = errors.New("not found")

// TreeFile is one blob to layer on top of a base tree.
type TreeFile struct {
	Path    string
	Content string
}

// GitHubClient defines the driven port for the GitHub API, scoped to one
// installation's credentials.
type GitHubClient interface {
	// Read methods

	GetPullRequest(ctx context.Context, repoFullName string, prNumber int) (*model.PullRequest, error)
	ListPullRequestFiles(ctx context.Context, repoFullName string, prNumber int) ([]model.ChangedFile, error)
	ListReviewComments(ctx context.Context, repoFullName string, prNumber int) ([]model.ReviewComment, error)
	ListIssueComments(ctx context.Context, repoFullName string, prNumber int) ([]model.IssueComment, error)
	// GetFileContent returns the file's content at ref. found is false when
	// the path does not exist at that ref.
	GetFileContent(ctx context.Context, repoFullName, path, ref string) (content string, found bool, err error)

	// Git data methods

	// GetBranchHead returns the commit SHA the branch currently points at,
	// bypassing any response cache.
	GetBranchHead(ctx context.Context, repoFullName, branch string) (string, error)
	// GetCommitTree returns the tree SHA of the given commit.
	GetCommitTree(ctx context.Context, repoFullName, commitSHA string) (string, error)
	CreateTree(ctx context.Context, repoFullName, baseTreeSHA string, files []TreeFile) (string, error)
	// CreateCommit creates a commit with a single parent and returns its SHA and HTML URL.
	CreateCommit(ctx context.Context, repoFullName, message, treeSHA, parentSHA string) (sha, url string, err error)
	// UpdateBranchRef moves the branch to newSHA without forcing. If the
	// update is not a fast-forward from the current head it returns an error
	// wrapping ErrHeadMoved.
	UpdateBranchRef(ctx context.Context, repoFullName, branch, newSHA string) error

	// Write methods

	CreateIssueComment(ctx context.Context, repoFullName string, prNumber int, body string) error
	// ReplyToReviewComment replies in a review thread. Implementations fall
	// back to GraphQL when the REST reply endpoint returns 404.
	ReplyToReviewComment(ctx context.Context, repoFullName string, prNumber int, commentID int64, body string) error
	AddIssueCommentReaction(ctx context.Context, repoFullName string, commentID int64, content string) error
	AddReviewCommentReaction(ctx context.Context, repoFullName string, commentID int64, content string) error
	CreateIssue(ctx context.Context, repoFullName, title, body string, labels []string) (*model.Issue, error)
	AssignIssue(ctx context.Context, repoFullName string, issueNumber int, assignees []string) error

	// Search

	SearchRepositories(ctx context.Context, query string, limit int) ([]model.Project, error)
}

// GitHubClientFactory resolves a client for an installation's credential scope.
type GitHubClientFactory interface {
	ForInstallation(ctx context.Context, installationID int64) (GitHubClient, error)
}
