package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v82/github"

	"github.com/jmbish04/gh-bot/internal/domain/model"
)

// SearchRepositories runs a repository search ordered by stars and returns
// up to limit results.
func (c *Client) SearchRepositories(ctx context.Context, query string, limit int) ([]model.Project, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	opts := &gh.SearchOptions{
		Sort:        "stars",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: limit},
	}

	result, resp, err := c.gh.Search.Repositories(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("searching repositories for %q: %w", query, err)
	}
	c.logRateLimit(resp, "search/repositories", 0, len(result.Repositories))

	projects := make([]model.Project, 0, len(result.Repositories))
	for _, r := range result.Repositories {
		projects = append(projects, model.Project{
			FullName:    r.GetFullName(),
			URL:         r.GetHTMLURL(),
			Description: r.GetDescription(),
			Language:    r.GetLanguage(),
			Stars:       r.GetStargazersCount(),
			Topics:      r.Topics,
			Query:       query,
			PushedAt:    r.GetPushedAt().Time,
		})
	}
	return projects, nil
}
