package storage

import (
	"time"
)

// Migration represents a database migration
type Migration struct {
	Version     string    `db:"version"`
	Description string    `db:"description"`
	SQL         string    `db:"sql"`
	AppliedAt   time.Time `db:"applied_at"`
}

// Timestamps are stored as unix milliseconds in both dialects.

// GetSQLiteMigrations returns SQLite migration scripts
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create kv_entries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS kv_entries (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL, -- JSON
					expires_at INTEGER,
					updated_at INTEGER NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_kv_entries_expires_at ON kv_entries(expires_at);
			`,
		},
		{
			Version:     "002",
			Description: "Create audit_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id TEXT PRIMARY KEY,
					timestamp INTEGER NOT NULL,
					actor TEXT NOT NULL,
					action TEXT NOT NULL,
					entity_type TEXT NOT NULL DEFAULT '',
					entity_id TEXT NOT NULL DEFAULT '',
					severity TEXT NOT NULL DEFAULT 'info',
					ip_address TEXT NOT NULL DEFAULT '',
					user_agent TEXT NOT NULL DEFAULT '',
					details TEXT, -- JSON
					expires_at INTEGER NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_actor ON audit_logs(actor);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity_type, entity_id);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_expires_at ON audit_logs(expires_at);
			`,
		},
	}
}

// GetPostgresMigrations returns PostgreSQL migration scripts
func GetPostgresMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create kv_entries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS kv_entries (
					key VARCHAR(256) PRIMARY KEY,
					value JSONB NOT NULL,
					expires_at BIGINT,
					updated_at BIGINT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_kv_entries_expires_at ON kv_entries(expires_at);
			`,
		},
		{
			Version:     "002",
			Description: "Create audit_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id UUID PRIMARY KEY,
					timestamp BIGINT NOT NULL,
					actor VARCHAR(255) NOT NULL,
					action VARCHAR(100) NOT NULL,
					entity_type VARCHAR(100) NOT NULL DEFAULT '',
					entity_id VARCHAR(255) NOT NULL DEFAULT '',
					severity VARCHAR(20) NOT NULL DEFAULT 'info',
					ip_address VARCHAR(64) NOT NULL DEFAULT '',
					user_agent TEXT NOT NULL DEFAULT '',
					details JSONB,
					expires_at BIGINT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_actor ON audit_logs(actor);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity_type, entity_id);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_expires_at ON audit_logs(expires_at);
			`,
		},
	}
}
