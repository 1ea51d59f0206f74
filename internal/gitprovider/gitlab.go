package gitprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/smartdevs17/pricing-admin/internal/config"
)

const defaultGitLabURL = "https://gitlab.com"

// GitLabProvider checks a personal access token against the GitLab REST API
type GitLabProvider struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

type gitlabUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// NewGitLabProvider creates a GitLab provider for gitlab.com or a self-hosted instance
func NewGitLabProvider(cfg config.GitProviderConfig) *GitLabProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGitLabURL
	}

	p := &GitLabProvider{token: cfg.Token, baseURL: baseURL}
	if cfg.Token != "" {
		p.httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: cfg.Token},
		))
	}
	return p
}

// Name returns the provider key
func (p *GitLabProvider) Name() string {
	return GitLab
}

// Configured reports whether a token is set
func (p *GitLabProvider) Configured() bool {
	return p.token != ""
}

// TestConnection fetches the user owning the token
func (p *GitLabProvider) TestConnection(ctx context.Context) (string, error) {
	if !p.Configured() {
		return "", ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/v4/user", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build gitlab request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gitlab request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gitlab authentication failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var user gitlabUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("failed to decode gitlab user: %w", err)
	}

	return user.Username, nil
}
