package github

import (
	"context"
	"fmt"
)

// Issue is the subset of issue fields returned to dispatch callers.
type Issue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
	State   string `json:"state"`
}

// CreateIssue opens an issue with the given labels.
func (c *Client) CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (*Issue, error) {
	payload := map[string]any{
		"title":  title,
		"body":   body,
		"labels": labels,
	}
	var issue Issue
	if err := c.post(ctx, fmt.Sprintf("/repos/%s/%s/issues", owner, repo), payload, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// AddAssignees assigns users to an issue. Assignment failures are the
// caller's to tolerate; the issue exists either way.
func (c *Client) AddAssignees(ctx context.Context, owner, repo string, number int, assignees []string) error {
	payload := map[string]any{"assignees": assignees}
	return c.post(ctx, fmt.Sprintf("/repos/%s/%s/issues/%d/assignees", owner, repo, number), payload, nil)
}
