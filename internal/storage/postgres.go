package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

// PostgreSQLStorage implements Storage interface using PostgreSQL
type PostgreSQLStorage struct {
	sqlStore
	config     *StorageConfig
	logger     *logrus.Entry
	migrations []*Migration
}

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
func NewPostgreSQLStorage(config *StorageConfig) *PostgreSQLStorage {
	return &PostgreSQLStorage{
		sqlStore: sqlStore{
			placeholder: dollarPlaceholder,
			upsertValue: `
				INSERT INTO kv_entries (key, value, expires_at, updated_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (key) DO UPDATE SET
					value = EXCLUDED.value,
					expires_at = EXCLUDED.expires_at,
					updated_at = EXCLUDED.updated_at
			`,
		},
		config:     config,
		logger:     utils.ComponentLogger("postgres_storage"),
		migrations: GetPostgresMigrations(),
	}
}

// Connect establishes database connection
func (p *PostgreSQLStorage) Connect() error {
	db, err := sql.Open("postgres", p.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open PostgreSQL database", err.Error())
	}

	// Configure connection pool
	if p.config.MaxConnections > 0 {
		db.SetMaxOpenConns(p.config.MaxConnections)
		db.SetMaxIdleConns(p.config.MaxConnections / 2)
	}
	db.SetConnMaxLifetime(p.config.MaxIdleTime)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to ping PostgreSQL database", err.Error())
	}

	p.db = db
	p.logger.Info("PostgreSQL database connected")

	return nil
}

// Close closes the database connection
func (p *PostgreSQLStorage) Close() error {
	if p.db != nil {
		err := p.db.Close()
		p.db = nil
		p.logger.Info("PostgreSQL database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (p *PostgreSQLStorage) Ping() error {
	if err := p.requireDB(); err != nil {
		return err
	}
	return p.db.Ping()
}

// Migrate runs database migrations inside a single transaction
func (p *PostgreSQLStorage) Migrate() error {
	if err := p.requireDB(); err != nil {
		return err
	}

	p.logger.Info("Starting PostgreSQL database migrations")

	tx, err := p.db.Begin()
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to begin migration transaction", err.Error())
	}
	defer tx.Rollback()

	for _, migration := range p.migrations {
		p.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Debug("Applying migration")

		if _, err := tx.Exec(migration.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version),
				err.Error())
		}
	}

	if err := tx.Commit(); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to commit migrations", err.Error())
	}

	p.logger.Info("PostgreSQL database migrations completed")
	return nil
}

// GetHealth pings the database
func (p *PostgreSQLStorage) GetHealth() *StorageHealth {
	return &StorageHealth{
		StorageType: "PostgreSQL",
		Healthy:     p.Ping() == nil,
		LastPing:    time.Now(),
	}
}

// GetStats returns row counts and the database size
func (p *PostgreSQLStorage) GetStats() (*StorageStats, error) {
	keys, audits, err := p.countTables()
	if err != nil {
		return nil, err
	}

	stats := &StorageStats{
		StorageType:   "postgres",
		TotalKeys:     keys,
		TotalAuditLog: audits,
		OpenConns:     p.db.Stats().OpenConnections,
	}
	if err := p.db.QueryRow(`SELECT pg_database_size(current_database())`).Scan(&stats.DatabaseSize); err != nil {
		p.logger.WithError(err).Warn("Failed to read database size")
	}

	return stats, nil
}
