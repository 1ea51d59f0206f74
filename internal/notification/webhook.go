// File: internal/notification/webhook.go
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/pricing-admin/internal/config"
	"github.com/smartdevs17/pricing-admin/internal/metrics"
	"github.com/smartdevs17/pricing-admin/internal/models"
	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

const (
	payloadSource    = "pricing-admin"
	payloadType      = "audit.alert"
	payloadVersion   = "1.0"
	defaultQueueSize = 100
)

// WebhookPayload is the body posted for every alert
type WebhookPayload struct {
	Type      string             `json:"type"`
	Source    string             `json:"source"`
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Data      *models.AuditEntry `json:"data"`
}

// WebhookNotifier posts audit entries at or above a minimum severity to a webhook.
// Notify only queues; a background worker started with Start delivers.
type WebhookNotifier struct {
	url            string
	headers        map[string]string
	minSeverity    models.AuditSeverity
	timeout        time.Duration
	retryAttempts  int
	retryDelay     time.Duration
	httpClient     *http.Client
	metricsManager *metrics.Manager
	logger         *logrus.Entry
	now            func() time.Time

	queue    chan *models.AuditEntry
	runMu    sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWebhookNotifier creates a notifier. It returns nil when no webhook URL is configured.
func NewWebhookNotifier(cfg config.NotificationConfig, metricsManager *metrics.Manager) (*WebhookNotifier, error) {
	if cfg.WebhookURL == "" {
		return nil, nil
	}

	minSeverity := ParseSeverity(cfg.MinSeverity)
	if !minSeverity.Valid() {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Unknown notification severity", cfg.MinSeverity)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	return &WebhookNotifier{
		url:            cfg.WebhookURL,
		headers:        cfg.Headers,
		minSeverity:    minSeverity,
		timeout:        cfg.Timeout,
		retryAttempts:  cfg.RetryAttempts,
		retryDelay:     cfg.RetryDelay,
		metricsManager: metricsManager,
		logger:         utils.ComponentLogger("webhook_notifier"),
		now:            time.Now,
		queue:          make(chan *models.AuditEntry, cfg.QueueSize),
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}, nil
}

// Start launches the delivery worker
func (n *WebhookNotifier) Start(ctx context.Context) error {
	n.runMu.Lock()
	defer n.runMu.Unlock()

	if n.running {
		return utils.NewAppError(utils.ErrCodeInternal, "Webhook notifier already running")
	}

	n.running = true
	n.stopChan = make(chan struct{})

	n.wg.Add(1)
	go n.deliveryLoop(ctx, n.stopChan)

	n.logger.WithField("queue_size", cap(n.queue)).Info("Webhook notifier started")
	return nil
}

// Stop halts the worker and waits for an in-flight delivery. Queued alerts are dropped.
func (n *WebhookNotifier) Stop() {
	n.runMu.Lock()
	defer n.runMu.Unlock()

	if !n.running {
		return
	}

	n.running = false
	close(n.stopChan)
	n.wg.Wait()

	if pending := len(n.queue); pending > 0 {
		n.logger.WithField("pending", pending).Warn("Webhook notifier stopped with undelivered alerts")
	}
	n.logger.Info("Webhook notifier stopped")
}

func (n *WebhookNotifier) deliveryLoop(ctx context.Context, stop <-chan struct{}) {
	defer n.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case entry := <-n.queue:
			n.Send(ctx, entry)
		}
	}
}

// Notify queues entry for delivery when its severity meets the threshold. It never
// blocks; a full queue drops the alert and returns an error.
func (n *WebhookNotifier) Notify(_ context.Context, entry *models.AuditEntry) error {
	if !n.accepts(entry) {
		return nil
	}

	select {
	case n.queue <- entry:
		return nil
	default:
		n.record("dropped")
		return utils.NewAppError(utils.ErrCodeExternal, "Webhook alert queue is full", entry.ID)
	}
}

// Send delivers entry now, retrying within the delivery budget. Entries below the
// threshold are ignored.
func (n *WebhookNotifier) Send(ctx context.Context, entry *models.AuditEntry) error {
	if !n.accepts(entry) {
		return nil
	}

	body, err := json.Marshal(WebhookPayload{
		Type:      payloadType,
		Source:    payloadSource,
		Timestamp: n.now().UTC(),
		Version:   payloadVersion,
		Data:      entry,
	})
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "Failed to encode webhook payload", err.Error())
	}

	budget := n.deliveryBudget()
	r := retry.New[int](retry.Config{
		MaxAttempts:   n.retryAttempts,
		InitialDelay:  n.retryDelay,
		BackoffPolicy: retry.BackoffExponential,
	})
	t := timeout.New[int](timeout.Config{
		DefaultTimeout: budget,
	})

	start := time.Now()
	status, err := t.Execute(ctx, budget, func(ctx context.Context) (int, error) {
		return r.Do(ctx, func(ctx context.Context) (int, error) {
			return n.send(ctx, body)
		})
	})

	logger := n.logger.WithFields(logrus.Fields{
		"audit_id": entry.ID,
		"action":   entry.Action,
		"duration": time.Since(start),
	})
	if err != nil {
		n.record("failed")
		logger.WithError(err).Error("Audit alert webhook failed")
		return err
	}

	n.record("sent")
	logger.WithField("status_code", status).Info("Audit alert webhook delivered")
	return nil
}

// deliveryBudget covers every attempt at the request timeout plus the
// exponential backoff between them
func (n *WebhookNotifier) deliveryBudget() time.Duration {
	budget := n.timeout * time.Duration(n.retryAttempts)
	delay := n.retryDelay
	for i := 1; i < n.retryAttempts; i++ {
		budget += delay
		delay *= 2
	}
	return budget
}

func (n *WebhookNotifier) accepts(entry *models.AuditEntry) bool {
	return entry != nil && entry.Severity.Rank() >= n.minSeverity.Rank()
}

func (n *WebhookNotifier) record(status string) {
	if n.metricsManager != nil {
		n.metricsManager.GetPrometheusMetrics().RecordNotification(status)
	}
}

func (n *WebhookNotifier) send(ctx context.Context, body []byte) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeConfiguration, "Invalid webhook URL", err.Error())
	}
	n.setRequestHeaders(req)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeConnection, "Webhook request failed", err.Error())
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, utils.NewAppError(utils.ErrCodeExternal, "Webhook rejected alert",
			fmt.Sprintf("status %d", resp.StatusCode))
	}

	return resp.StatusCode, nil
}

func (n *WebhookNotifier) setRequestHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pricing-admin/1.0")
	req.Header.Set("X-Timestamp", fmt.Sprintf("%d", n.now().Unix()))
	req.Header.Set("X-Request-ID", utils.GenerateID())

	for key, value := range n.headers {
		req.Header.Set(key, value)
	}
}
