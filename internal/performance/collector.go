package performance

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/pricing-admin/internal/config"
	"github.com/smartdevs17/pricing-admin/internal/metrics"
	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

// Sample is a single handled HTTP request
type Sample struct {
	Method    string        `json:"method"`
	Route     string        `json:"route"`
	Status    int           `json:"status"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Collector keeps a bounded in-memory window of request samples and builds
// reports over it
type Collector struct {
	mu      sync.RWMutex
	samples []Sample
	// samples at or before horizon may have been evicted or pruned
	horizon time.Time

	retention     time.Duration
	maxSamples    int
	pruneInterval time.Duration

	metricsManager *metrics.Manager
	logger         *logrus.Entry
	now            func() time.Time

	runMu    sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewCollector creates a collector
func NewCollector(cfg config.PerformanceConfig, metricsManager *metrics.Manager) *Collector {
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = 100000
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = 5 * time.Minute
	}

	return &Collector{
		samples:        make([]Sample, 0, 1024),
		retention:      cfg.Retention,
		maxSamples:     cfg.MaxSamples,
		pruneInterval:  cfg.PruneInterval,
		metricsManager: metricsManager,
		logger:         utils.ComponentLogger("performance"),
		now:            time.Now,
	}
}

// Record adds a sample. Once the collector holds max samples the oldest is evicted.
func (c *Collector) Record(sample Sample) {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = c.now()
	}

	c.mu.Lock()
	c.samples = append(c.samples, sample)
	if overflow := len(c.samples) - c.maxSamples; overflow > 0 {
		for _, dropped := range c.samples[:overflow] {
			if dropped.Timestamp.After(c.horizon) {
				c.horizon = dropped.Timestamp
			}
		}
		c.samples = append(c.samples[:0], c.samples[overflow:]...)
	}
	count := len(c.samples)
	c.mu.Unlock()

	if c.metricsManager != nil {
		c.metricsManager.GetPrometheusMetrics().UpdatePerformanceSamples(count)
	}
}

// Len returns the number of retained samples
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}

// Prune drops samples older than the retention window and returns how many were dropped
func (c *Collector) Prune() int {
	cutoff := c.now().Add(-c.retention)

	c.mu.Lock()
	kept := c.samples[:0]
	for _, s := range c.samples {
		if s.Timestamp.After(cutoff) {
			kept = append(kept, s)
		}
	}
	removed := len(c.samples) - len(kept)
	c.samples = kept
	if removed > 0 && cutoff.After(c.horizon) {
		c.horizon = cutoff
	}
	count := len(kept)
	c.mu.Unlock()

	if c.metricsManager != nil {
		c.metricsManager.GetPrometheusMetrics().UpdatePerformanceSamples(count)
	}
	return removed
}

// MaxReportHours is the longest window a report can cover: the retention
// rounded up to whole hours
func (c *Collector) MaxReportHours() int {
	hours := int((c.retention + time.Hour - 1) / time.Hour)
	if hours < 1 {
		return 1
	}
	return hours
}

// GenerateReport summarizes the last hours of traffic and compares it with the
// window of the same length before it. Windows longer than MaxReportHours are
// shortened to it. The trend is "n/a" when the previous window reaches past the
// retained history.
func (c *Collector) GenerateReport(ctx context.Context, hours int) (*Report, error) {
	if hours <= 0 {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Report window must be a positive number of hours")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit := c.MaxReportHours(); hours > limit {
		hours = limit
	}

	to := c.now()
	window := time.Duration(hours) * time.Hour
	from := to.Add(-window)
	previousFrom := from.Add(-window)

	var current, previous []Sample
	c.mu.RLock()
	trendComplete := !previousFrom.Before(to.Add(-c.retention)) && !previousFrom.Before(c.horizon)
	for _, s := range c.samples {
		switch {
		case s.Timestamp.After(from) && !s.Timestamp.After(to):
			current = append(current, s)
		case s.Timestamp.After(previousFrom) && !s.Timestamp.After(from):
			previous = append(previous, s)
		}
	}
	c.mu.RUnlock()

	report := buildReport(current, previous, from, to, hours, trendComplete)

	c.logger.WithFields(logrus.Fields{
		"hours":    hours,
		"requests": report.Summary.TotalRequests,
	}).Debug("Performance report generated")

	return report, nil
}

// Start launches the background pruning loop
func (c *Collector) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.running {
		return utils.NewAppError(utils.ErrCodeInternal, "Collector already running")
	}

	c.running = true
	c.stopChan = make(chan struct{})

	c.wg.Add(1)
	go c.pruneLoop(ctx, c.stopChan)

	c.logger.WithField("prune_interval", c.pruneInterval).Info("Performance collector started")
	return nil
}

// Stop halts the pruning loop and waits for it to exit
func (c *Collector) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if !c.running {
		return
	}

	c.running = false
	close(c.stopChan)
	c.wg.Wait()

	c.logger.Info("Performance collector stopped")
}

func (c *Collector) pruneLoop(ctx context.Context, stop <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if removed := c.Prune(); removed > 0 {
				c.logger.WithField("removed", removed).Debug("Pruned performance samples")
			}
		}
	}
}
