package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v82/github"

	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// blobMode is the git file mode of a regular, non-executable file.
const blobMode = "100644"

// GetBranchHead returns the commit the branch points at. Git.GetRef would be
// answered from httpcache for up to max-age, so the request is built by hand
// with Cache-Control: no-cache and a moved head is never hidden.
func (c *Client) GetBranchHead(ctx context.Context, repoFullName, branch string) (string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("repos/%s/%s/git/ref/heads/%s", owner, repo, escapeRef(branch))
	req, err := c.gh.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("building ref request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	var ref gh.Reference
	resp, err := c.gh.Do(ctx, req, &ref)
	if err != nil {
		return "", wrapNotFound(fmt.Errorf("getting head of %s:%s: %w", repoFullName, branch, err), err)
	}
	c.logRateLimit(resp, repoFullName+"/git/ref", 0, 1)

	sha := ref.GetObject().GetSHA()
	if sha == "" {
		return "", fmt.Errorf("ref heads/%s in %s has no object", branch, repoFullName)
	}
	return sha, nil
}

// GetCommitTree returns the tree SHA of a commit.
func (c *Client) GetCommitTree(ctx context.Context, repoFullName, commitSHA string) (string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", err
	}

	commit, resp, err := c.gh.Git.GetCommit(ctx, owner, repo, commitSHA)
	if err != nil {
		return "", wrapNotFound(fmt.Errorf("getting commit %s in %s: %w", shortRef(commitSHA), repoFullName, err), err)
	}
	c.logRateLimit(resp, repoFullName+"/git/commits", 0, 1)

	return commit.GetTree().GetSHA(), nil
}

// CreateTree layers files as regular blobs on top of baseTreeSHA.
func (c *Client) CreateTree(ctx context.Context, repoFullName, baseTreeSHA string, files []driven.TreeFile) (string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", err
	}

	entries := make([]*gh.TreeEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, &gh.TreeEntry{
			Path:    gh.Ptr(f.Path),
			Mode:    gh.Ptr(blobMode),
			Type:    gh.Ptr("blob"),
			Content: gh.Ptr(f.Content),
		})
	}

	tree, resp, err := c.gh.Git.CreateTree(ctx, owner, repo, baseTreeSHA, entries)
	if err != nil {
		return "", fmt.Errorf("creating tree in %s: %w", repoFullName, err)
	}
	c.logRateLimit(resp, repoFullName+"/git/trees", 0, len(files))

	return tree.GetSHA(), nil
}

// CreateCommit creates a single-parent commit.
func (c *Client) CreateCommit(ctx context.Context, repoFullName, message, treeSHA, parentSHA string) (string, string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", "", err
	}

	commit, resp, err := c.gh.Git.CreateCommit(ctx, owner, repo, gh.Commit{
		Message: gh.Ptr(message),
		Tree:    &gh.Tree{SHA: gh.Ptr(treeSHA)},
		Parents: []*gh.Commit{{SHA: gh.Ptr(parentSHA)}},
	}, nil)
	if err != nil {
		return "", "", fmt.Errorf("creating commit in %s: %w", repoFullName, err)
	}
	c.logRateLimit(resp, repoFullName+"/git/commits", 0, 1)

	return commit.GetSHA(), commit.GetHTMLURL(), nil
}

// UpdateBranchRef fast-forwards the branch to newSHA. GitHub rejects a
// non-fast-forward update with 422, which is reported as driven.ErrHeadMoved.
func (c *Client) UpdateBranchRef(ctx context.Context, repoFullName, branch, newSHA string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	_, resp, err := c.gh.Git.UpdateRef(ctx, owner, repo, "heads/"+branch, gh.UpdateRef{
		SHA:   newSHA,
		Force: gh.Ptr(false),
	})
	if err != nil {
		wrapped := fmt.Errorf("updating %s:%s to %s: %w", repoFullName, branch, shortRef(newSHA), err)
		if headMoved(err) {
			return errors.Join(wrapped, driven.ErrHeadMoved)
		}
		return wrapped
	}
	c.logRateLimit(resp, repoFullName+"/git/refs", 0, 1)
	return nil
}

func headMoved(err error) bool {
	if isStatus(err, http.StatusConflict) {
		return true
	}
	var ghErr *gh.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil || ghErr.Response.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	return strings.Contains(strings.ToLower(ghErr.Message), "fast forward")
}

// escapeRef escapes each segment of a branch name, keeping the slashes.
func escapeRef(branch string) string {
	parts := strings.Split(branch, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
