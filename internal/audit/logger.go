package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/pricing-admin/internal/config"
	"github.com/smartdevs17/pricing-admin/internal/metrics"
	"github.com/smartdevs17/pricing-admin/internal/models"
	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

// Repository is the persistence the audit logger needs
type Repository interface {
	SaveAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	QueryAuditEntries(ctx context.Context, filter models.AuditFilter, limit, offset int) ([]*models.AuditEntry, error)
	CountAuditEntries(ctx context.Context, filter models.AuditFilter) (int64, error)
	GetAuditStats(ctx context.Context, now time.Time) (*models.AuditStats, error)
	DeleteExpiredAuditEntries(ctx context.Context, now time.Time) (int64, error)
}

// Notifier is told about every recorded entry
type Notifier interface {
	Notify(ctx context.Context, entry *models.AuditEntry) error
}

// Logger records administrative actions and answers audit queries
type Logger struct {
	repo           Repository
	notifier       Notifier
	config         config.AuditConfig
	metricsManager *metrics.Manager
	logger         *logrus.Entry
	now            func() time.Time
}

// NewLogger creates an audit logger
func NewLogger(repo Repository, cfg config.AuditConfig, metricsManager *metrics.Manager) *Logger {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 90
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 200
	}
	if cfg.DefaultPageSize <= 0 || cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = 50
	}

	return &Logger{
		repo:           repo,
		config:         cfg,
		metricsManager: metricsManager,
		logger:         utils.ComponentLogger("audit"),
		now:            time.Now,
	}
}

// SetNotifier registers n to receive entries after they are stored
func (l *Logger) SetNotifier(n Notifier) {
	l.notifier = n
}

// Log stores an entry, filling in its ID, timestamp, severity and expiry when unset
func (l *Logger) Log(ctx context.Context, entry *models.AuditEntry) error {
	if entry.Action == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "Audit action is required")
	}
	if entry.Actor == "" {
		entry.Actor = "system"
	}
	if entry.ID == "" {
		entry.ID = utils.GenerateID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}
	if entry.Severity == "" {
		entry.Severity = models.SeverityInfo
	}
	if !entry.Severity.Valid() {
		return utils.NewAppError(utils.ErrCodeValidation, "Unknown audit severity", string(entry.Severity))
	}
	if entry.ExpiresAt.IsZero() {
		entry.ExpiresAt = entry.Timestamp.Add(l.retention())
	}

	if err := l.repo.SaveAuditEntry(ctx, entry); err != nil {
		return err
	}

	if l.metricsManager != nil {
		l.metricsManager.GetPrometheusMetrics().RecordAuditEntry(entry.Action)
	}

	l.logger.WithFields(logrus.Fields{
		"audit_id": entry.ID,
		"actor":    entry.Actor,
		"action":   entry.Action,
		"entity":   entry.EntityType + ":" + entry.EntityID,
	}).Info("Audit entry recorded")

	if l.notifier != nil {
		if err := l.notifier.Notify(ctx, entry); err != nil {
			l.logger.WithError(err).WithField("audit_id", entry.ID).Warn("Failed to notify audit entry")
		}
	}

	return nil
}

// GetLogs returns one page of entries matching filter. Pages start at 1.
func (l *Logger) GetLogs(ctx context.Context, filter *models.AuditFilter, page, limit int) (*models.AuditPage, error) {
	var f models.AuditFilter
	if filter != nil {
		f = *filter
	}
	if f.Severity != "" && !f.Severity.Valid() {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Unknown audit severity", string(f.Severity))
	}

	page, limit = l.normalizePage(page, limit)

	total, err := l.repo.CountAuditEntries(ctx, f)
	if err != nil {
		return nil, err
	}

	logs, err := l.repo.QueryAuditEntries(ctx, f, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	return &models.AuditPage{
		Logs:       logs,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

// GetStats aggregates the audit log
func (l *Logger) GetStats(ctx context.Context) (*models.AuditStats, error) {
	return l.repo.GetAuditStats(ctx, l.now().UTC())
}

// CleanupExpired removes entries past their expiry and returns how many were removed
func (l *Logger) CleanupExpired(ctx context.Context) (int64, error) {
	deleted, err := l.repo.DeleteExpiredAuditEntries(ctx, l.now().UTC())
	if err != nil {
		return 0, err
	}

	if l.metricsManager != nil {
		l.metricsManager.GetPrometheusMetrics().RecordAuditCleanup(deleted)
	}
	l.logger.WithField("deleted", deleted).Info("Expired audit entries cleaned up")

	return deleted, nil
}

// RunCleanupLoop calls CleanupExpired every interval until ctx is cancelled
func (l *Logger) RunCleanupLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.CleanupExpired(ctx); err != nil {
				l.logger.WithError(err).Error("Scheduled audit cleanup failed")
			}
		}
	}
}

func (l *Logger) normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = l.config.DefaultPageSize
	}
	if limit > l.config.MaxPageSize {
		limit = l.config.MaxPageSize
	}
	return page, limit
}

func (l *Logger) retention() time.Duration {
	return time.Duration(l.config.RetentionDays) * 24 * time.Hour
}
