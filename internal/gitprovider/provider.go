package gitprovider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider names used as keys in connectivity results
const (
	GitHub = "github"
	GitLab = "gitlab"
)

// ErrNotConfigured is reported for a provider without an access token
var ErrNotConfigured = errors.New("access token not configured")

// Provider checks connectivity to a single git hosting service
type Provider interface {
	// Name returns the provider key, e.g. "github"
	Name() string
	// Configured reports whether credentials are present
	Configured() bool
	// TestConnection authenticates against the provider and returns the account name
	TestConnection(ctx context.Context) (string, error)
}

// Result is the outcome of one provider check
type Result struct {
	Provider  string        `json:"provider"`
	Connected bool          `json:"connected"`
	Account   string        `json:"account,omitempty"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency"`
}

// Status is the combined outcome of checking every provider
type Status struct {
	Providers map[string]bool `json:"providers"`
	Results   []Result        `json:"results"`
}

// FormatStatusMessage renders the connectivity of GitHub and GitLab as
// "GitHub: Connected, GitLab: Disconnected"
func FormatStatusMessage(providers map[string]bool) string {
	return fmt.Sprintf("GitHub: %s, GitLab: %s",
		connectionLabel(providers[GitHub]),
		connectionLabel(providers[GitLab]))
}

func connectionLabel(connected bool) string {
	if connected {
		return "Connected"
	}
	return "Disconnected"
}
