package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/pricing-admin/internal/auth"
	"github.com/smartdevs17/pricing-admin/internal/config"
	"github.com/smartdevs17/pricing-admin/internal/metrics"
	"github.com/smartdevs17/pricing-admin/internal/models"
	"github.com/smartdevs17/pricing-admin/internal/storage"
	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

// recordingRepo captures calls and returns canned results
type recordingRepo struct {
	mu         sync.Mutex
	saved      []*models.AuditEntry
	lastFilter models.AuditFilter
	lastLimit  int
	lastOffset int
	total      int64
	deleted    int64
	err        error
}

func (r *recordingRepo) SaveAuditEntry(_ context.Context, entry *models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, entry)
	return nil
}

func (r *recordingRepo) QueryAuditEntries(_ context.Context, filter models.AuditFilter, limit, offset int) ([]*models.AuditEntry, error) {
	r.lastFilter, r.lastLimit, r.lastOffset = filter, limit, offset
	return []*models.AuditEntry{}, r.err
}

func (r *recordingRepo) CountAuditEntries(_ context.Context, _ models.AuditFilter) (int64, error) {
	return r.total, r.err
}

func (r *recordingRepo) GetAuditStats(_ context.Context, _ time.Time) (*models.AuditStats, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &models.AuditStats{TotalLogs: r.total}, nil
}

func (r *recordingRepo) DeleteExpiredAuditEntries(_ context.Context, _ time.Time) (int64, error) {
	return r.deleted, r.err
}

type staticIdentity struct {
	identity *auth.Identity
}

func (s staticIdentity) Identity(*http.Request) (*auth.Identity, error) {
	if s.identity == nil {
		return nil, utils.NewAppError(utils.ErrCodeUnauthorized, "No active session")
	}
	return s.identity, nil
}

func testConfig() config.AuditConfig {
	return config.AuditConfig{RetentionDays: 30, DefaultPageSize: 50, MaxPageSize: 200}
}

func TestLogFillsDefaults(t *testing.T) {
	repo := &recordingRepo{}
	logger := NewLogger(repo, testConfig(), metrics.NewManager())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	logger.now = func() time.Time { return fixed }

	require.NoError(t, logger.Log(context.Background(), &models.AuditEntry{Action: models.ActionKVSet}))

	require.Len(t, repo.saved, 1)
	entry := repo.saved[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "system", entry.Actor)
	assert.Equal(t, models.SeverityInfo, entry.Severity)
	assert.Equal(t, fixed, entry.Timestamp)
	assert.Equal(t, fixed.Add(30*24*time.Hour), entry.ExpiresAt)
}

type recordingNotifier struct {
	entries []*models.AuditEntry
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, entry *models.AuditEntry) error {
	n.entries = append(n.entries, entry)
	return n.err
}

func TestLogNotifies(t *testing.T) {
	repo := &recordingRepo{}
	notifier := &recordingNotifier{err: errors.New("webhook down")}
	logger := NewLogger(repo, testConfig(), nil)
	logger.SetNotifier(notifier)

	err := logger.Log(context.Background(), &models.AuditEntry{Action: models.ActionAuditCleanup, Severity: models.SeverityCritical})
	require.NoError(t, err, "notifier failures must not fail the write")

	require.Len(t, notifier.entries, 1)
	assert.Same(t, repo.saved[0], notifier.entries[0])

	repo.err = errors.New("disk full")
	assert.Error(t, logger.Log(context.Background(), &models.AuditEntry{Action: models.ActionKVSet}))
	assert.Len(t, notifier.entries, 1)
}

func TestLogValidation(t *testing.T) {
	logger := NewLogger(&recordingRepo{}, testConfig(), nil)

	err := logger.Log(context.Background(), &models.AuditEntry{})
	assert.True(t, utils.HasCode(err, utils.ErrCodeValidation))

	err = logger.Log(context.Background(), &models.AuditEntry{Action: "x", Severity: "loud"})
	assert.True(t, utils.HasCode(err, utils.ErrCodeValidation))
}

func TestGetLogsPagination(t *testing.T) {
	tests := []struct {
		name                  string
		page, limit           int
		total                 int64
		wantPage, wantLimit   int
		wantOffset, wantPages int
	}{
		{"defaults", 0, 0, 120, 1, 50, 0, 3},
		{"second page", 2, 25, 60, 2, 25, 25, 3},
		{"limit capped", 1, 1000, 10, 1, 200, 0, 1},
		{"negative page", -4, 10, 0, 1, 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &recordingRepo{total: tt.total}
			logger := NewLogger(repo, testConfig(), nil)

			page, err := logger.GetLogs(context.Background(), nil, tt.page, tt.limit)
			require.NoError(t, err)

			assert.Equal(t, tt.wantPage, page.Page)
			assert.Equal(t, tt.wantLimit, page.Limit)
			assert.Equal(t, tt.wantPages, page.TotalPages)
			assert.Equal(t, tt.wantOffset, repo.lastOffset)
			assert.Equal(t, tt.wantLimit, repo.lastLimit)
		})
	}
}

func TestGetLogsPassesFilter(t *testing.T) {
	repo := &recordingRepo{}
	logger := NewLogger(repo, testConfig(), nil)

	filter := &models.AuditFilter{Action: models.ActionKVDelete, Actor: "ops@example.com"}
	_, err := logger.GetLogs(context.Background(), filter, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, *filter, repo.lastFilter)

	_, err = logger.GetLogs(context.Background(), &models.AuditFilter{Severity: "meh"}, 1, 10)
	assert.True(t, utils.HasCode(err, utils.ErrCodeValidation))
}

func TestActionsRequireSession(t *testing.T) {
	actions := NewActions(NewLogger(&recordingRepo{}, testConfig(), nil), staticIdentity{})
	req := httptest.NewRequest(http.MethodGet, "/api/audit/logs", nil)

	for _, result := range []ActionResult{
		actions.GetAuditLogs(req, nil, 1, 10),
		actions.GetAuditStats(req),
		actions.CleanupExpiredLogs(req),
	} {
		assert.False(t, result.Success)
		assert.Equal(t, http.StatusUnauthorized, result.Status)
		assert.Equal(t, "Unauthorized", result.Error)
	}
}

func TestActionsCollaboratorFailure(t *testing.T) {
	repo := &recordingRepo{err: errors.New("database is locked")}
	identity := staticIdentity{identity: &auth.Identity{Email: "admin@example.com"}}
	actions := NewActions(NewLogger(repo, testConfig(), nil), identity)
	req := httptest.NewRequest(http.MethodGet, "/api/audit/stats", nil)

	logs := actions.GetAuditLogs(req, nil, 1, 10)
	assert.Equal(t, http.StatusInternalServerError, logs.Status)
	assert.Equal(t, "Failed to fetch audit logs", logs.Error)

	stats := actions.GetAuditStats(req)
	assert.Equal(t, http.StatusInternalServerError, stats.Status)
	assert.False(t, stats.Success)

	cleanup := actions.CleanupExpiredLogs(req)
	assert.Equal(t, http.StatusInternalServerError, cleanup.Status)
}

func TestCleanupRecordsActor(t *testing.T) {
	repo := &recordingRepo{deleted: 7}
	identity := staticIdentity{identity: &auth.Identity{Email: "admin@example.com"}}
	actions := NewActions(NewLogger(repo, testConfig(), nil), identity)

	req := httptest.NewRequest(http.MethodPost, "/api/audit/cleanup", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("User-Agent", "admin-ui")

	result := actions.CleanupExpiredLogs(req)
	require.True(t, result.Success)
	assert.Equal(t, map[string]interface{}{"deletedCount": int64(7)}, result.Data)

	require.Len(t, repo.saved, 1)
	entry := repo.saved[0]
	assert.Equal(t, "admin@example.com", entry.Actor)
	assert.Equal(t, models.ActionAuditCleanup, entry.Action)
	assert.Equal(t, models.SeverityCritical, entry.Severity)
	assert.Equal(t, "203.0.113.9", entry.IPAddress)
	assert.Equal(t, "admin-ui", entry.UserAgent)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "192.0.2.10", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", ClientIP(req))
}

func TestLoggerWithSQLiteStorage(t *testing.T) {
	store, err := storage.Open(&config.StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "audit.db"),
		MaxConnections:   2,
	})
	require.NoError(t, err)
	defer store.Close()

	logger := NewLogger(store, testConfig(), nil)
	ctx := context.Background()

	old := time.Now().Add(-40 * 24 * time.Hour)
	require.NoError(t, logger.Log(ctx, &models.AuditEntry{Action: models.ActionKVSet, Actor: "a@example.com", Timestamp: old}))
	require.NoError(t, logger.Log(ctx, &models.AuditEntry{Action: models.ActionKVDelete, Actor: "b@example.com"}))

	page, err := logger.GetLogs(ctx, nil, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, models.ActionKVDelete, page.Logs[0].Action)

	stats, err := logger.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ExpiredLogs)

	deleted, err := logger.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestRunCleanupLoopStopsOnCancel(t *testing.T) {
	repo := &recordingRepo{}
	logger := NewLogger(repo, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		logger.RunCleanupLoop(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}
