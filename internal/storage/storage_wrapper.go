package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/pricing-admin/internal/metrics"
	"github.com/smartdevs17/pricing-admin/internal/models"
)

// StorageWithMetrics wraps a storage implementation with metrics
type StorageWithMetrics struct {
	Storage
	metricsManager *metrics.Manager
}

// NewStorageWithMetrics creates a storage wrapper with metrics
func NewStorageWithMetrics(storage Storage, metricsManager *metrics.Manager) *StorageWithMetrics {
	return &StorageWithMetrics{
		Storage:        storage,
		metricsManager: metricsManager,
	}
}

func (s *StorageWithMetrics) record(operation, table string, start time.Time, err error) {
	if s.metricsManager == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metricsManager.GetPrometheusMetrics().RecordDatabaseOperation(operation, table, status, time.Since(start))
}

// GetValue reads a key-value entry and records metrics
func (s *StorageWithMetrics) GetValue(ctx context.Context, key string) (*models.KVEntry, error) {
	start := time.Now()
	entry, err := s.Storage.GetValue(ctx, key)
	s.record("select", "kv_entries", start, err)
	return entry, err
}

// SetValue upserts a key-value entry and records metrics
func (s *StorageWithMetrics) SetValue(ctx context.Context, entry *models.KVEntry) error {
	start := time.Now()
	err := s.Storage.SetValue(ctx, entry)
	s.record("upsert", "kv_entries", start, err)
	return err
}

// DeleteValue deletes a key-value entry and records metrics
func (s *StorageWithMetrics) DeleteValue(ctx context.Context, key string) error {
	start := time.Now()
	err := s.Storage.DeleteValue(ctx, key)
	s.record("delete", "kv_entries", start, err)
	return err
}

// SaveAuditEntry saves an audit entry and records metrics
func (s *StorageWithMetrics) SaveAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	start := time.Now()
	err := s.Storage.SaveAuditEntry(ctx, entry)
	s.record("insert", "audit_logs", start, err)
	return err
}

// QueryAuditEntries queries audit entries and records metrics
func (s *StorageWithMetrics) QueryAuditEntries(ctx context.Context, filter models.AuditFilter, limit, offset int) ([]*models.AuditEntry, error) {
	start := time.Now()
	entries, err := s.Storage.QueryAuditEntries(ctx, filter, limit, offset)
	s.record("select", "audit_logs", start, err)
	return entries, err
}

// DeleteExpiredAuditEntries purges expired audit entries and records metrics
func (s *StorageWithMetrics) DeleteExpiredAuditEntries(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()
	deleted, err := s.Storage.DeleteExpiredAuditEntries(ctx, now)
	s.record("delete", "audit_logs", start, err)
	return deleted, err
}
