// File: internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/pricing-admin/internal/models"
)

// Storage defines the interface for key-value and audit persistence
type Storage interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Key-value operations
	GetValue(ctx context.Context, key string) (*models.KVEntry, error)
	SetValue(ctx context.Context, entry *models.KVEntry) error
	DeleteValue(ctx context.Context, key string) error
	PurgeExpiredValues(ctx context.Context, now time.Time) (int64, error)

	// Audit operations
	SaveAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	QueryAuditEntries(ctx context.Context, filter models.AuditFilter, limit, offset int) ([]*models.AuditEntry, error)
	CountAuditEntries(ctx context.Context, filter models.AuditFilter) (int64, error)
	GetAuditStats(ctx context.Context, now time.Time) (*models.AuditStats, error)
	DeleteExpiredAuditEntries(ctx context.Context, now time.Time) (int64, error)

	// Statistics and monitoring
	GetHealth() *StorageHealth
	GetStats() (*StorageStats, error)
}

// StorageHealth describes the result of a storage health check
type StorageHealth struct {
	StorageType string            `json:"storage_type"`
	Healthy     bool              `json:"healthy"`
	Details     map[string]string `json:"details,omitempty"`
	LastPing    time.Time         `json:"last_ping"`
}

// StorageStats provides storage statistics
type StorageStats struct {
	StorageType   string `json:"storage_type"`
	TotalKeys     int64  `json:"total_keys"`
	TotalAuditLog int64  `json:"total_audit_logs"`
	DatabaseSize  int64  `json:"database_size_bytes"`
	OpenConns     int    `json:"open_connections"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
}
