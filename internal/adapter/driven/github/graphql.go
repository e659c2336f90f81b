package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const replyToThreadMutation = `mutation($inReplyTo: ID!, $body: String!) {
	addPullRequestReviewComment(input: {inReplyTo: $inReplyTo, body: $body}) {
		comment { id }
	}
}`

// graphqlRequest is the JSON body sent to the GitHub GraphQL API.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphqlMutationResponse represents the minimal response shape for GraphQL mutations.
// We only check for errors; the actual mutation payload is not inspected.
type graphqlMutationResponse struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// replyViaGraphQL posts a reply into the thread of the review comment with
// the given node ID.
func (c *Client) replyViaGraphQL(ctx context.Context, repoFullName, nodeID, body string) error {
	return c.mutate(ctx, repoFullName, replyToThreadMutation, map[string]any{
		"inReplyTo": nodeID,
		"body":      body,
	})
}

func (c *Client) mutate(ctx context.Context, repoFullName, mutation string, vars map[string]any) error {
	if c.token == "" {
		return fmt.Errorf("graphql mutation for %s requires a GitHub token", repoFullName)
	}

	bodyBytes, err := json.Marshal(graphqlRequest{Query: mutation, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshaling graphql mutation: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating graphql request: %w", err)
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("bearer %s", c.token))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("graphql mutation for %s: %w", repoFullName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql mutation for %s: HTTP %d", repoFullName, resp.StatusCode)
	}

	var gqlResp graphqlMutationResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return fmt.Errorf("decoding graphql response for %s: %w", repoFullName, err)
	}

	if len(gqlResp.Errors) > 0 {
		return fmt.Errorf("graphql mutation for %s: %s", repoFullName, gqlResp.Errors[0].Message)
	}

	return nil
}
