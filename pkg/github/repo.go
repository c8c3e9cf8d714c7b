package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
)

// User is the authenticated GitHub user.
type User struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// Repo is the subset of repository fields the platform uses.
type Repo struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Owner         User   `json:"owner"`
	Description   string `json:"description"`
	Private       bool   `json:"private"`
	HTMLURL       string `json:"html_url"`
	CloneURL      string `json:"clone_url"`
	DefaultBranch string `json:"default_branch"`
	Stars         int    `json:"stargazers_count"`
	Forks         int    `json:"forks_count"`
	IsTemplate    bool   `json:"is_template"`
	UpdatedAt     string `json:"updated_at"`
}

var repoURLRe = regexp.MustCompile(`github\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`)

// ParseRepoURL extracts owner and repo from a github.com URL.
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	m := repoURLRe.FindStringSubmatch(repoURL)
	if m == nil {
		return "", "", fmt.Errorf("could not extract owner/repo from URL: %s", repoURL)
	}
	return m[1], m[2], nil
}

// AuthenticatedUser fetches the token's user.
func (c *Client) AuthenticatedUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "/user", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetRepo fetches a repository.
func (c *Client) GetRepo(ctx context.Context, owner, repo string) (*Repo, error) {
	var r Repo
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Fork forks owner/repo into the authenticated user's account, or into
// organization when non-empty. GitHub answers 202 while the fork is still
// materializing.
func (c *Client) Fork(ctx context.Context, owner, repo, organization string) (*Repo, error) {
	var body map[string]string
	if organization != "" {
		body = map[string]string{"organization": organization}
	}
	var r Repo
	if err := c.post(ctx, fmt.Sprintf("/repos/%s/%s/forks", owner, repo), body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRepoRequest is the payload for repository creation.
type CreateRepoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private"`
	AutoInit    bool   `json:"auto_init"`
	HasIssues   bool   `json:"has_issues"`
}

// CreateRepo creates a repository under the authenticated user, or under
// org when non-empty.
func (c *Client) CreateRepo(ctx context.Context, org string, req CreateRepoRequest) (*Repo, error) {
	path := "/user/repos"
	if org != "" {
		path = "/orgs/" + org + "/repos"
	}
	var r Repo
	if err := c.post(ctx, path, req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GenerateFromTemplate creates a new repository from a GitHub template
// repository, populated with the template's default branch.
func (c *Client) GenerateFromTemplate(ctx context.Context, tmplOwner, tmplRepo, owner, name string, private bool) (*Repo, error) {
	body := map[string]any{
		"owner":   owner,
		"name":    name,
		"private": private,
	}
	var r Repo
	path := fmt.Sprintf("/repos/%s/%s/generate", tmplOwner, tmplRepo)
	if err := c.post(ctx, path, body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// RenameRepo renames a repository and returns its updated record.
func (c *Client) RenameRepo(ctx context.Context, owner, repo, newName string) (*Repo, error) {
	var r Repo
	if err := c.patch(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), map[string]string{"name": newName}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRepo removes a repository. Used to clean up empty shells before
// advising a manual fork.
func (c *Client) DeleteRepo(ctx context.Context, owner, repo string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/repos/%s/%s", owner, repo), nil, nil)
}

// ListUserRepos returns the authenticated user's repositories, paginated.
func (c *Client) ListUserRepos(ctx context.Context, sort, direction string, perPage, page int) ([]Repo, error) {
	q := url.Values{}
	q.Set("sort", sort)
	q.Set("direction", direction)
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))

	var repos []Repo
	if err := c.get(ctx, "/user/repos?"+q.Encode(), &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// SearchUserRepos searches the authenticated user's repositories by name,
// description, and readme.
func (c *Client) SearchUserRepos(ctx context.Context, query, sort, order string, perPage, page int) ([]Repo, error) {
	user, err := c.AuthenticatedUser(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", fmt.Sprintf("%s user:%s in:name,description,readme", query, user.Login))
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	q.Set("sort", sort)
	q.Set("order", order)

	var result struct {
		Items []Repo `json:"items"`
	}
	if err := c.get(ctx, "/search/repositories?"+q.Encode(), &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// RepoIsEmpty reports whether the repository has no contents. A 404 from
// the contents listing usually means an empty repo.
func (c *Client) RepoIsEmpty(ctx context.Context, owner, repo string) (bool, error) {
	var entries []ContentEntry
	err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/contents", owner, repo), &entries)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			return true, nil
		}
		return false, err
	}
	return len(entries) == 0, nil
}
