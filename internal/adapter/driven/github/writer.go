package github

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	gh "github.com/google/go-github/v82/github"

	"github.com/jmbish04/gh-bot/internal/domain/model"
)

// CreateIssueComment creates a top-level (non-diff) comment on a pull request.
func (c *Client) CreateIssueComment(ctx context.Context, repoFullName string, prNumber int, body string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	_, _, err = c.gh.Issues.CreateComment(ctx, owner, repo, prNumber, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("creating issue comment on %s#%d: %w", repoFullName, prNumber, err)
	}

	return nil
}

// ReplyToReviewComment replies in the thread of an inline review comment.
// The REST reply endpoint 404s for some comment shapes (for example comments
// on outdated diffs); the GraphQL mutation is used as a fallback then.
func (c *Client) ReplyToReviewComment(ctx context.Context, repoFullName string, prNumber int, commentID int64, body string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	_, _, err = c.gh.PullRequests.CreateCommentInReplyTo(ctx, owner, repo, prNumber, body, commentID)
	if err == nil {
		return nil
	}
	if !isStatus(err, http.StatusNotFound) {
		return fmt.Errorf("replying to review comment %d on %s#%d: %w", commentID, repoFullName, prNumber, err)
	}

	c.logger.Debug("rest reply returned 404, falling back to graphql",
		"repo", repoFullName,
		"pr", prNumber,
		"comment_id", commentID,
	)

	comment, _, err := c.gh.PullRequests.GetComment(ctx, owner, repo, commentID)
	if err != nil {
		return wrapNotFound(fmt.Errorf("fetching review comment %d node ID: %w", commentID, err), err)
	}
	nodeID := comment.GetNodeID()
	if nodeID == "" {
		return fmt.Errorf("review comment %d has no node ID", commentID)
	}

	return c.replyViaGraphQL(ctx, repoFullName, nodeID, body)
}

// AddIssueCommentReaction reacts to a PR-level comment.
func (c *Client) AddIssueCommentReaction(ctx context.Context, repoFullName string, commentID int64, content string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	if _, _, err := c.gh.Reactions.CreateIssueCommentReaction(ctx, owner, repo, commentID, content); err != nil {
		return fmt.Errorf("reacting %q to issue comment %d in %s: %w", content, commentID, repoFullName, err)
	}
	return nil
}

// AddReviewCommentReaction reacts to an inline review comment.
func (c *Client) AddReviewCommentReaction(ctx context.Context, repoFullName string, commentID int64, content string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	if _, _, err := c.gh.Reactions.CreatePullRequestCommentReaction(ctx, owner, repo, commentID, content); err != nil {
		return fmt.Errorf("reacting %q to review comment %d in %s: %w", content, commentID, repoFullName, err)
	}
	return nil
}

// CreateIssue opens a new issue.
func (c *Client) CreateIssue(ctx context.Context, repoFullName, title, body string, labels []string) (*model.Issue, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	req := &gh.IssueRequest{
		Title: gh.Ptr(title),
		Body:  gh.Ptr(body),
	}
	if len(labels) > 0 {
		req.Labels = &labels
	}

	issue, resp, err := c.gh.Issues.Create(ctx, owner, repo, req)
	if err != nil {
		return nil, fmt.Errorf("creating issue in %s: %w", repoFullName, err)
	}
	c.logRateLimit(resp, repoFullName+"/issues", 0, 1)

	return &model.Issue{
		Number: issue.GetNumber(),
		URL:    issue.GetHTMLURL(),
		Title:  issue.GetTitle(),
	}, nil
}

// AssignIssue adds assignees to an issue. GitHub silently drops logins that
// cannot be assigned, so the response is checked for each requested login.
func (c *Client) AssignIssue(ctx context.Context, repoFullName string, issueNumber int, assignees []string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	issue, _, err := c.gh.Issues.AddAssignees(ctx, owner, repo, issueNumber, assignees)
	if err != nil {
		return fmt.Errorf("assigning %s#%d: %w", repoFullName, issueNumber, err)
	}

	got := make([]string, 0, len(issue.Assignees))
	for _, u := range issue.Assignees {
		got = append(got, strings.ToLower(u.GetLogin()))
	}
	for _, want := range assignees {
		if !slices.Contains(got, strings.ToLower(want)) {
			return fmt.Errorf("assigning %s#%d: %s was not accepted as an assignee", repoFullName, issueNumber, want)
		}
	}
	return nil
}
