// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh         *gh.Client
	httpClient *http.Client // go-github's transport stack, shared by GraphQL calls.
	token      string       // Stored for GraphQL Authorization header.
	graphqlURL string       // "https://api.github.com/graphql" in production; derived from baseURL in tests.
	logger     *slog.Logger
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. primary rate limit retry (sleeps until reset on an exhausted quota, retries once)
//  3. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  4. go-github (GitHub REST API client with PAT auth)
//
// timeout bounds every call; zero means no client-side bound. GraphQL
// requests go through the same stack.
func NewClient(token string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cacheTransport := httpcache.NewMemoryCacheTransport()
	primary := newPrimaryRateLimitTransport(cacheTransport, maxRateLimitWait, logger)
	rateLimitClient := github_ratelimit.NewClient(primary)
	rateLimitClient.Timeout = timeout
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{
		gh:         client,
		httpClient: client.Client(),
		token:      token,
		graphqlURL: "https://api.github.com/graphql",
		logger:     logger,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	// Derive graphqlURL from baseURL so httptest servers can intercept GraphQL requests.
	graphqlU := *u
	graphqlU.Path = "/graphql"

	return &Client{
		gh:         client,
		httpClient: client.Client(),
		token:      token,
		graphqlURL: graphqlU.String(),
		logger:     slog.Default(),
	}, nil
}

// GetPullRequest retrieves a single pull request.
func (c *Client) GetPullRequest(ctx context.Context, repoFullName string, prNumber int) (*model.PullRequest, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	pr, resp, err := c.gh.PullRequests.Get(ctx, owner, repo, prNumber)
	if err != nil {
		return nil, wrapNotFound(fmt.Errorf("getting pull request %s#%d: %w", repoFullName, prNumber, err), err)
	}
	c.logRateLimit(resp, repoFullName+"/pull", 0, 1)

	mapped := mapPullRequest(pr, repoFullName)
	return &mapped, nil
}

// ListPullRequestFiles retrieves every file changed by a pull request.
// It handles pagination automatically.
func (c *Client) ListPullRequestFiles(ctx context.Context, repoFullName string, prNumber int) ([]model.ChangedFile, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListOptions{PerPage: 100}
	var allFiles []model.ChangedFile

	for {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, repo, prNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("listing files for %s#%d (page %d): %w", repoFullName, prNumber, opts.Page, err)
		}

		c.logRateLimit(resp, repoFullName+"/files", opts.Page, len(files))

		for _, f := range files {
			allFiles = append(allFiles, model.ChangedFile{
				Filename:  f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
				Patch:     f.GetPatch(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allFiles, nil
}

// ListReviewComments retrieves all inline review comments for a pull request.
// It handles pagination automatically and maps go-github types to domain model types.
func (c *Client) ListReviewComments(ctx context.Context, repoFullName string, prNumber int) ([]model.ReviewComment, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.PullRequestListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	var allComments []model.ReviewComment

	for {
		comments, resp, err := c.gh.PullRequests.ListComments(ctx, owner, repo, prNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("listing review comments for %s#%d (page %d): %w", repoFullName, prNumber, opts.Page, err)
		}

		c.logRateLimit(resp, repoFullName+"/review-comments", opts.Page, len(comments))

		for _, comment := range comments {
			allComments = append(allComments, mapReviewComment(comment))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allComments, nil
}

// ListIssueComments retrieves all general PR-level comments via the Issues API.
// It handles pagination automatically.
func (c *Client) ListIssueComments(ctx context.Context, repoFullName string, prNumber int) ([]model.IssueComment, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	var allComments []model.IssueComment

	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, prNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("listing issue comments for %s#%d (page %d): %w", repoFullName, prNumber, opts.Page, err)
		}

		c.logRateLimit(resp, repoFullName+"/issue-comments", opts.Page, len(comments))

		for _, comment := range comments {
			allComments = append(allComments, mapIssueComment(comment))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allComments, nil
}

// GetFileContent returns a file's decoded content at ref. A missing path is
// reported with found=false rather than an error.
func (c *Client) GetFileContent(ctx context.Context, repoFullName, path, ref string) (string, bool, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", false, err
	}

	file, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, &gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("getting %s at %s in %s: %w", path, shortRef(ref), repoFullName, err)
	}
	c.logRateLimit(resp, repoFullName+"/contents", 0, 1)

	if file == nil {
		return "", false, fmt.Errorf("%s in %s is a directory", path, repoFullName)
	}

	content, err := file.GetContent()
	if err != nil {
		return "", false, fmt.Errorf("decoding %s in %s: %w", path, repoFullName, err)
	}
	return content, true, nil
}

func mapPullRequest(pr *gh.PullRequest, repoFullName string) model.PullRequest {
	return model.PullRequest{
		Number:       pr.GetNumber(),
		RepoFullName: repoFullName,
		Title:        pr.GetTitle(),
		Body:         pr.GetBody(),
		Author:       pr.GetUser().GetLogin(),
		State:        pr.GetState(),
		URL:          pr.GetHTMLURL(),
		HeadRef:      pr.GetHead().GetRef(),
		HeadSHA:      pr.GetHead().GetSHA(),
		BaseRef:      pr.GetBase().GetRef(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedFiles: pr.GetChangedFiles(),
		CreatedAt:    pr.GetCreatedAt().Time,
		UpdatedAt:    pr.GetUpdatedAt().Time,
	}
}

func mapReviewComment(c *gh.PullRequestComment) model.ReviewComment {
	rc := model.ReviewComment{
		ID:          c.GetID(),
		ReviewID:    c.GetPullRequestReviewID(),
		Author:      c.GetUser().GetLogin(),
		AuthorIsBot: c.GetUser().GetType() == "Bot",
		Body:        c.GetBody(),
		Path:        c.GetPath(),
		Line:        c.GetLine(),
		StartLine:   c.GetStartLine(),
		DiffHunk:    c.GetDiffHunk(),
		CommitID:    c.GetCommitID(),
		URL:         c.GetHTMLURL(),
		CreatedAt:   c.GetCreatedAt().Time,
		UpdatedAt:   c.GetUpdatedAt().Time,
	}
	if c.InReplyTo != nil {
		id := c.GetInReplyTo()
		rc.InReplyToID = &id
	}
	return rc
}

func mapIssueComment(c *gh.IssueComment) model.IssueComment {
	return model.IssueComment{
		ID:        c.GetID(),
		Author:    c.GetUser().GetLogin(),
		Body:      c.GetBody(),
		URL:       c.GetHTMLURL(),
		CreatedAt: c.GetCreatedAt().Time,
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func (c *Client) logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	c.logger.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		c.logger.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}

// isStatus reports whether err is a GitHub API error with the given status.
func isStatus(err error, status int) bool {
	var ghErr *gh.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == status
}

// wrapNotFound joins driven.ErrNotFound onto wrapped when cause is a 404.
func wrapNotFound(wrapped, cause error) error {
	if isStatus(cause, http.StatusNotFound) {
		return errors.Join(wrapped, driven.ErrNotFound)
	}
	return wrapped
}

func shortRef(ref string) string {
	if len(ref) == 40 {
		return ref[:7]
	}
	return ref
}
