package gitprovider

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/smartdevs17/pricing-admin/internal/config"
	"github.com/smartdevs17/pricing-admin/internal/metrics"
	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

const (
	defaultCheckTimeout = 10 * time.Second
	retryInitialDelay   = 200 * time.Millisecond
)

// Factory owns the configured providers and checks them together
type Factory struct {
	providers      []Provider
	timeout        time.Duration
	retryAttempts  int
	metricsManager *metrics.Manager
	logger         *logrus.Entry
}

// NewFactory builds the GitHub and GitLab providers from configuration
func NewFactory(cfg config.GitProvidersConfig, metricsManager *metrics.Manager) (*Factory, error) {
	github, err := NewGitHubProvider(cfg.GitHub)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Invalid GitHub provider configuration", err.Error())
	}

	return NewFactoryWithProviders([]Provider{github, NewGitLabProvider(cfg.GitLab)}, cfg, metricsManager), nil
}

// NewFactoryWithProviders creates a factory over an explicit provider list
func NewFactoryWithProviders(providers []Provider, cfg config.GitProvidersConfig, metricsManager *metrics.Manager) *Factory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCheckTimeout
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}

	return &Factory{
		providers:      providers,
		timeout:        cfg.Timeout,
		retryAttempts:  cfg.RetryAttempts,
		metricsManager: metricsManager,
		logger:         utils.ComponentLogger("git_providers"),
	}
}

// Providers returns the configured providers
func (f *Factory) Providers() []Provider {
	return f.providers
}

// TestAll checks every provider concurrently. A failing provider is reported
// as disconnected; only cancellation of ctx fails the whole call.
func (f *Factory) TestAll(ctx context.Context) (*Status, error) {
	results := make([]Result, len(f.providers))

	var mu sync.Mutex
	connected := make(map[string]bool, len(f.providers)+2)
	connected[GitHub] = false
	connected[GitLab] = false

	g, gctx := errgroup.WithContext(ctx)
	for i, provider := range f.providers {
		g.Go(func() error {
			result := f.check(gctx, provider)
			results[i] = result

			mu.Lock()
			connected[result.Provider] = result.Connected
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Status{Providers: connected, Results: results}, nil
}

func (f *Factory) check(ctx context.Context, provider Provider) Result {
	result := Result{Provider: provider.Name()}
	logger := f.logger.WithField("provider", provider.Name())

	if !provider.Configured() {
		result.Error = ErrNotConfigured.Error()
		logger.Debug("Skipping git provider check, no token configured")
		f.record(result)
		return result
	}

	start := time.Now()

	r := retry.New[string](retry.Config{
		MaxAttempts:   f.retryAttempts,
		InitialDelay:  retryInitialDelay,
		BackoffPolicy: retry.BackoffExponential,
	})
	t := timeout.New[string](timeout.Config{
		DefaultTimeout: f.timeout,
	})

	account, err := t.Execute(ctx, f.timeout, func(ctx context.Context) (string, error) {
		return r.Do(ctx, provider.TestConnection)
	})
	result.Latency = time.Since(start)

	if err != nil {
		result.Error = err.Error()
		logger.WithError(err).Warn("Git provider connection test failed")
	} else {
		result.Connected = true
		result.Account = account
		logger.WithFields(logrus.Fields{
			"account": account,
			"latency": result.Latency,
		}).Info("Git provider connected")
	}

	f.record(result)
	return result
}

func (f *Factory) record(result Result) {
	if f.metricsManager == nil {
		return
	}
	f.metricsManager.GetPrometheusMetrics().RecordGitProviderCheck(result.Provider, result.Connected, result.Latency)
}
