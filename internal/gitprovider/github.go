package gitprovider

import (
	"context"
	"fmt"

	"github.com/google/go-github/v69/github"
	"golang.org/x/oauth2"

	"github.com/smartdevs17/pricing-admin/internal/config"
)

// GitHubProvider checks a personal access token against the GitHub API
type GitHubProvider struct {
	token  string
	client *github.Client
}

// NewGitHubProvider creates a GitHub provider. A non-empty BaseURL targets a
// GitHub Enterprise server.
func NewGitHubProvider(cfg config.GitProviderConfig) (*GitHubProvider, error) {
	p := &GitHubProvider{token: cfg.Token}
	if cfg.Token == "" {
		return p, nil
	}

	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: cfg.Token},
	))
	client := github.NewClient(httpClient)

	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL %q: %w", cfg.BaseURL, err)
		}
	}

	p.client = client
	return p, nil
}

// Name returns the provider key
func (p *GitHubProvider) Name() string {
	return GitHub
}

// Configured reports whether a token is set
func (p *GitHubProvider) Configured() bool {
	return p.token != ""
}

// TestConnection fetches the authenticated user
func (p *GitHubProvider) TestConnection(ctx context.Context) (string, error) {
	if !p.Configured() {
		return "", ErrNotConfigured
	}

	user, _, err := p.client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("github authentication failed: %w", err)
	}

	return user.GetLogin(), nil
}
