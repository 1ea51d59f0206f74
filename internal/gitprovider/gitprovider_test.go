package gitprovider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/pricing-admin/internal/config"
	"github.com/smartdevs17/pricing-admin/internal/metrics"
)

type stubProvider struct {
	name       string
	configured bool
	account    string
	err        error
	delay      time.Duration
	calls      atomic.Int32
}

func (s *stubProvider) Name() string     { return s.name }
func (s *stubProvider) Configured() bool { return s.configured }

func (s *stubProvider) TestConnection(ctx context.Context) (string, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.account, s.err
}

func TestFormatStatusMessage(t *testing.T) {
	tests := []struct {
		providers map[string]bool
		want      string
	}{
		{map[string]bool{GitHub: false, GitLab: false}, "GitHub: Disconnected, GitLab: Disconnected"},
		{map[string]bool{GitHub: true, GitLab: false}, "GitHub: Connected, GitLab: Disconnected"},
		{map[string]bool{GitHub: false, GitLab: true}, "GitHub: Disconnected, GitLab: Connected"},
		{map[string]bool{GitHub: true, GitLab: true}, "GitHub: Connected, GitLab: Connected"},
		{map[string]bool{}, "GitHub: Disconnected, GitLab: Disconnected"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatStatusMessage(tt.providers))
	}
}

func TestGitHubProviderConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/user" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer gh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Bad credentials"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"login":"pricing-bot","id":42}`))
	}))
	defer server.Close()

	provider, err := NewGitHubProvider(config.GitProviderConfig{Token: "gh-token", BaseURL: server.URL})
	require.NoError(t, err)

	account, err := provider.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pricing-bot", account)

	bad, err := NewGitHubProvider(config.GitProviderConfig{Token: "wrong", BaseURL: server.URL})
	require.NoError(t, err)
	_, err = bad.TestConnection(context.Background())
	assert.Error(t, err)
}

func TestGitLabProviderConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/user" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer gl-token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"401 Unauthorized"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":7,"username":"pricing-ops"}`))
	}))
	defer server.Close()

	provider := NewGitLabProvider(config.GitProviderConfig{Token: "gl-token", BaseURL: server.URL + "/"})
	account, err := provider.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pricing-ops", account)

	bad := NewGitLabProvider(config.GitProviderConfig{Token: "nope", BaseURL: server.URL})
	_, err = bad.TestConnection(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestProvidersWithoutToken(t *testing.T) {
	github, err := NewGitHubProvider(config.GitProviderConfig{})
	require.NoError(t, err)
	gitlab := NewGitLabProvider(config.GitProviderConfig{})

	for _, p := range []Provider{github, gitlab} {
		assert.False(t, p.Configured())
		_, err := p.TestConnection(context.Background())
		assert.ErrorIs(t, err, ErrNotConfigured)
	}
	assert.Equal(t, defaultGitLabURL, gitlab.baseURL)
}

func TestTestAllMixedResults(t *testing.T) {
	manager := metrics.NewManager()
	github := &stubProvider{name: GitHub, configured: true, account: "octo"}
	gitlab := &stubProvider{name: GitLab, configured: true, err: errors.New("401 Unauthorized")}

	factory := NewFactoryWithProviders([]Provider{github, gitlab}, config.GitProvidersConfig{Timeout: time.Second}, manager)
	status, err := factory.TestAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{GitHub: true, GitLab: false}, status.Providers)
	require.Len(t, status.Results, 2)
	assert.Equal(t, "octo", status.Results[0].Account)
	assert.NotEmpty(t, status.Results[1].Error)
	assert.Equal(t, "GitHub: Connected, GitLab: Disconnected", FormatStatusMessage(status.Providers))

	checks := manager.GetPrometheusMetrics().GitProviderChecksTotal
	assert.Equal(t, 1.0, testutil.ToFloat64(checks.WithLabelValues(GitHub, "connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(checks.WithLabelValues(GitLab, "disconnected")))
}

func TestTestAllSkipsUnconfigured(t *testing.T) {
	github := &stubProvider{name: GitHub}
	gitlab := &stubProvider{name: GitLab}

	factory := NewFactoryWithProviders([]Provider{github, gitlab}, config.GitProvidersConfig{}, nil)
	status, err := factory.TestAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{GitHub: false, GitLab: false}, status.Providers)
	assert.Equal(t, int32(0), github.calls.Load())
	assert.Equal(t, int32(0), gitlab.calls.Load())
	assert.Equal(t, ErrNotConfigured.Error(), status.Results[0].Error)
}

func TestTestAllTimeout(t *testing.T) {
	slow := &stubProvider{name: GitHub, configured: true, account: "late", delay: time.Second}
	fast := &stubProvider{name: GitLab, configured: true, account: "quick"}

	factory := NewFactoryWithProviders([]Provider{slow, fast}, config.GitProvidersConfig{Timeout: 50 * time.Millisecond}, nil)

	start := time.Now()
	status, err := factory.TestAll(context.Background())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, status.Providers[GitHub])
	assert.True(t, status.Providers[GitLab])
}

func TestTestAllRetries(t *testing.T) {
	flaky := &stubProvider{name: GitHub, configured: true, err: errors.New("connection reset")}

	factory := NewFactoryWithProviders([]Provider{flaky}, config.GitProvidersConfig{Timeout: 5 * time.Second, RetryAttempts: 2}, nil)
	status, err := factory.TestAll(context.Background())
	require.NoError(t, err)

	assert.False(t, status.Providers[GitHub])
	assert.Equal(t, int32(2), flaky.calls.Load())
	// gitlab is always present in the map
	assert.Contains(t, status.Providers, GitLab)
}

func TestTestAllCancelled(t *testing.T) {
	factory := NewFactoryWithProviders([]Provider{&stubProvider{name: GitHub, configured: true}}, config.GitProvidersConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := factory.TestAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFactoryRejectsBadGitHubURL(t *testing.T) {
	_, err := NewFactory(config.GitProvidersConfig{
		GitHub: config.GitProviderConfig{Token: "t", BaseURL: "://bad"},
	}, nil)
	assert.Error(t, err)
}
