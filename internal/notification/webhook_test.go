package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/smartdevs17/pricing-admin/internal/config"
	"github.com/smartdevs17/pricing-admin/internal/metrics"
	"github.com/smartdevs17/pricing-admin/internal/models"
	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

func criticalEntry() *models.AuditEntry {
	return &models.AuditEntry{
		ID:        "0190f1b2-0000-7000-8000-000000000001",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Actor:     "admin@example.com",
		Action:    models.ActionAuditCleanup,
		Severity:  models.SeverityCritical,
	}
}

func TestNewWebhookNotifierDisabled(t *testing.T) {
	notifier, err := NewWebhookNotifier(config.NotificationConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, notifier)
}

func TestNewWebhookNotifierRejectsSeverity(t *testing.T) {
	_, err := NewWebhookNotifier(config.NotificationConfig{WebhookURL: "http://localhost", MinSeverity: "panic"}, nil)
	assert.True(t, utils.HasCode(err, utils.ErrCodeConfiguration))
}

func TestSendPostsPayload(t *testing.T) {
	var got WebhookPayload
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	manager := metrics.NewManager()
	notifier, err := NewWebhookNotifier(config.NotificationConfig{
		WebhookURL: srv.URL,
		Headers:    map[string]string{"X-Api-Key": "k"},
	}, manager)
	require.NoError(t, err)

	require.NoError(t, notifier.Send(context.Background(), criticalEntry()))

	assert.Equal(t, "audit.alert", got.Type)
	assert.Equal(t, "pricing-admin", got.Source)
	require.NotNil(t, got.Data)
	assert.Equal(t, models.ActionAuditCleanup, got.Data.Action)
	assert.Equal(t, "admin@example.com", got.Data.Actor)
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "k", headers.Get("X-Api-Key"))
	assert.NotEmpty(t, headers.Get("X-Request-ID"))

	sent := manager.GetPrometheusMetrics().NotificationsSentTotal
	assert.Equal(t, 1.0, testutil.ToFloat64(sent.WithLabelValues("sent")))
}

func TestSendSkipsBelowThreshold(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	notifier, err := NewWebhookNotifier(config.NotificationConfig{WebhookURL: srv.URL, MinSeverity: "warning"}, nil)
	require.NoError(t, err)

	entry := criticalEntry()
	entry.Severity = models.SeverityInfo
	require.NoError(t, notifier.Send(context.Background(), entry))
	assert.Equal(t, int32(0), calls.Load())

	entry.Severity = models.SeverityWarning
	require.NoError(t, notifier.Send(context.Background(), entry))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendRetriesRejectedDelivery(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier, err := NewWebhookNotifier(config.NotificationConfig{
		WebhookURL:    srv.URL,
		RetryAttempts: 3,
		RetryDelay:    5 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	require.NoError(t, notifier.Send(context.Background(), criticalEntry()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	manager := metrics.NewManager()
	notifier, err := NewWebhookNotifier(config.NotificationConfig{
		WebhookURL:    srv.URL,
		RetryAttempts: 1,
	}, manager)
	require.NoError(t, err)

	err = notifier.Send(context.Background(), criticalEntry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")

	sent := manager.GetPrometheusMetrics().NotificationsSentTotal
	assert.Equal(t, 1.0, testutil.ToFloat64(sent.WithLabelValues("failed")))
}

func TestDeliveryBudgetIncludesBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 5 * time.Second},
		{2, 11 * time.Second},
		{3, 18 * time.Second},
		{4, 27 * time.Second},
	}

	for _, tt := range tests {
		notifier, err := NewWebhookNotifier(config.NotificationConfig{
			WebhookURL:    "http://localhost",
			Timeout:       5 * time.Second,
			RetryAttempts: tt.attempts,
			RetryDelay:    time.Second,
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, tt.want, notifier.deliveryBudget(), "attempts=%d", tt.attempts)
	}
}

func TestSendRetriesSlowWebhookWithinBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier, err := NewWebhookNotifier(config.NotificationConfig{
		WebhookURL:    srv.URL,
		Timeout:       100 * time.Millisecond,
		RetryAttempts: 3,
		RetryDelay:    50 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	// two timed out attempts plus 150ms of backoff exceed timeout*attempts
	require.NoError(t, notifier.Send(context.Background(), criticalEntry()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNotifyDeliversInBackground(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	delivered := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		var payload WebhookPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
		delivered <- payload.Data.ID
	}))
	defer srv.Close()

	manager := metrics.NewManager()
	notifier, err := NewWebhookNotifier(config.NotificationConfig{WebhookURL: srv.URL}, manager)
	require.NoError(t, err)
	require.NoError(t, notifier.Start(context.Background()))
	defer notifier.Stop()

	done := make(chan error, 1)
	go func() { done <- notifier.Notify(context.Background(), criticalEntry()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a slow webhook")
	}

	close(release)
	select {
	case id := <-delivered:
		assert.Equal(t, criticalEntry().ID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("alert was not delivered")
	}

	sent := manager.GetPrometheusMetrics().NotificationsSentTotal
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(sent.WithLabelValues("sent")) == 1
	}, time.Second, 10*time.Millisecond)

	notifier.Stop()
	notifier.httpClient.CloseIdleConnections()
}

func TestNotifyDropsWhenQueueFull(t *testing.T) {
	manager := metrics.NewManager()
	notifier, err := NewWebhookNotifier(config.NotificationConfig{
		WebhookURL: "http://localhost",
		QueueSize:  1,
	}, manager)
	require.NoError(t, err)

	// not started, so nothing drains the queue
	require.NoError(t, notifier.Notify(context.Background(), criticalEntry()))
	err = notifier.Notify(context.Background(), criticalEntry())
	assert.True(t, utils.HasCode(err, utils.ErrCodeExternal))

	entry := criticalEntry()
	entry.Severity = models.SeverityInfo
	assert.NoError(t, notifier.Notify(context.Background(), entry), "below threshold is never queued")

	sent := manager.GetPrometheusMetrics().NotificationsSentTotal
	assert.Equal(t, 1.0, testutil.ToFloat64(sent.WithLabelValues("dropped")))
}

func TestNotifierStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	notifier, err := NewWebhookNotifier(config.NotificationConfig{WebhookURL: "http://localhost"}, nil)
	require.NoError(t, err)

	require.NoError(t, notifier.Start(context.Background()))
	assert.True(t, utils.HasCode(notifier.Start(context.Background()), utils.ErrCodeInternal))

	notifier.Stop()
	notifier.Stop()

	require.NoError(t, notifier.Start(context.Background()))
	notifier.Stop()
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, models.SeverityCritical, ParseSeverity(""))
	assert.Equal(t, models.SeverityWarning, ParseSeverity("warning"))
	assert.False(t, ParseSeverity("loud").Valid())
}
