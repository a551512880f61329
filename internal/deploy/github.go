package deploy

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/exponent-ml/exponent/internal/domain"
)

// GitHubClient wraps the GitHub REST API calls used for deployment:
// identity check, repository lookup/creation, and content pushes.
type GitHubClient struct {
	client  *resty.Client
	baseURL string
}

// GitHubConfig holds configuration for the GitHub client.
type GitHubConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// NewGitHubClient creates a GitHub API client. The token comes either from
// GITHUB_TOKEN or from a stored OAuth credential.
func NewGitHubClient(cfg *GitHubConfig) *GitHubClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.Token)
	client.SetHeader("Accept", "application/vnd.github+json")
	client.SetTimeout(timeout)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500
	})

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &GitHubClient{client: client, baseURL: baseURL}
}

// Repo is the subset of GitHub's repository object this tool uses.
type Repo struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
	Private  bool   `json:"private"`
}

type githubUser struct {
	Login string `json:"login"`
}

type githubError struct {
	Message string `json:"message"`
}

// AuthenticatedUser verifies the token and returns the account login.
func (g *GitHubClient) AuthenticatedUser(ctx context.Context) (string, error) {
	var user githubUser
	resp, err := g.client.R().
		SetContext(ctx).
		SetResult(&user).
		Get(g.baseURL + "/user")
	if err != nil {
		return "", fmt.Errorf("failed to reach GitHub: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return "", fmt.Errorf("%w: GitHub rejected the token", domain.ErrAuthentication)
	}
	if resp.IsError() {
		return "", fmt.Errorf("GitHub returned HTTP %d", resp.StatusCode())
	}
	return user.Login, nil
}

// RepoExists checks whether owner/name already exists.
func (g *GitHubClient) RepoExists(ctx context.Context, owner, name string) (bool, error) {
	resp, err := g.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/repos/%s/%s", g.baseURL, owner, name))
	if err != nil {
		return false, fmt.Errorf("failed to reach GitHub: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return false, nil
	case resp.IsSuccess():
		return true, nil
	case resp.StatusCode() == http.StatusUnauthorized:
		return false, fmt.Errorf("%w: GitHub rejected the token", domain.ErrAuthentication)
	default:
		return false, fmt.Errorf("GitHub returned HTTP %d", resp.StatusCode())
	}
}

// CreateRepo creates a private repository under the authenticated user.
func (g *GitHubClient) CreateRepo(ctx context.Context, name, description string) (*Repo, error) {
	var repo Repo
	var ghErr githubError
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"name":        name,
			"description": description,
			"private":     true,
			"auto_init":   false,
		}).
		SetResult(&repo).
		SetError(&ghErr).
		Post(g.baseURL + "/user/repos")
	if err != nil {
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}
	if resp.StatusCode() == http.StatusUnprocessableEntity {
		// name already taken on this account
		return nil, fmt.Errorf("%w: %s", domain.ErrRepositoryExists, name)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("GitHub returned HTTP %d: %s", resp.StatusCode(), ghErr.Message)
	}
	return &repo, nil
}

// PushFile creates one file in the repository via the contents API.
func (g *GitHubClient) PushFile(ctx context.Context, owner, repo, path string, content []byte, message string) error {
	var ghErr githubError
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"message": message,
			"content": base64.StdEncoding.EncodeToString(content),
		}).
		SetError(&ghErr).
		Put(fmt.Sprintf("%s/repos/%s/%s/contents/%s", g.baseURL, owner, repo, path))
	if err != nil {
		return fmt.Errorf("failed to push %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to push %s: HTTP %d: %s", path, resp.StatusCode(), ghErr.Message)
	}
	return nil
}

// ListRepos returns the authenticated user's repositories, most recently
// updated first.
func (g *GitHubClient) ListRepos(ctx context.Context) ([]Repo, error) {
	var repos []Repo
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"sort": "updated", "per_page": "30"}).
		SetResult(&repos).
		Get(g.baseURL + "/user/repos")
	if err != nil {
		return nil, fmt.Errorf("failed to reach GitHub: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: GitHub rejected the token", domain.ErrAuthentication)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("GitHub returned HTTP %d", resp.StatusCode())
	}
	return repos, nil
}
