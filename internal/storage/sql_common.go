package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smartdevs17/pricing-admin/internal/models"
	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

// sqlStore holds the queries shared by the SQLite and PostgreSQL implementations.
// Dialect differences are limited to placeholders and the key-value upsert.
type sqlStore struct {
	db          *sql.DB
	placeholder func(n int) string
	upsertValue string
}

func questionPlaceholder(int) string { return "?" }

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func (s *sqlStore) requireDB() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return nil
}

// Key-value operations

// GetValue retrieves a key-value entry, returning a NOT_FOUND error when absent
func (s *sqlStore) GetValue(ctx context.Context, key string) (*models.KVEntry, error) {
	if err := s.requireDB(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT key, value, expires_at, updated_at FROM kv_entries WHERE key = %s`, s.placeholder(1))

	var (
		entry     models.KVEntry
		value     []byte
		expiresAt sql.NullInt64
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&entry.Key, &value, &expiresAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.NewAppError(utils.ErrCodeNotFound, "Key not found", key)
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get value", err.Error())
	}

	entry.Value = json.RawMessage(value)
	entry.UpdatedAt = fromMillis(updatedAt)
	if expiresAt.Valid {
		t := fromMillis(expiresAt.Int64)
		entry.ExpiresAt = &t
	}

	return &entry, nil
}

// SetValue inserts or replaces a key-value entry
func (s *sqlStore) SetValue(ctx context.Context, entry *models.KVEntry) error {
	if err := s.requireDB(); err != nil {
		return err
	}
	if !json.Valid(entry.Value) {
		return utils.NewAppError(utils.ErrCodeValidation, "Value must be valid JSON", entry.Key)
	}

	var expiresAt interface{}
	if entry.ExpiresAt != nil {
		expiresAt = toMillis(*entry.ExpiresAt)
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.upsertValue, entry.Key, string(entry.Value), expiresAt, toMillis(entry.UpdatedAt))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to set value", err.Error())
	}
	return nil
}

// DeleteValue removes a key-value entry, returning a NOT_FOUND error when absent
func (s *sqlStore) DeleteValue(ctx context.Context, key string) error {
	if err := s.requireDB(); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM kv_entries WHERE key = %s`, s.placeholder(1))
	result, err := s.db.ExecContext(ctx, query, key)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to delete value", err.Error())
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to delete value", err.Error())
	}
	if affected == 0 {
		return utils.NewAppError(utils.ErrCodeNotFound, "Key not found", key)
	}
	return nil
}

// PurgeExpiredValues removes entries whose expiry is at or before now
func (s *sqlStore) PurgeExpiredValues(ctx context.Context, now time.Time) (int64, error) {
	if err := s.requireDB(); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= %s`, s.placeholder(1))
	result, err := s.db.ExecContext(ctx, query, toMillis(now))
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to purge expired values", err.Error())
	}
	return result.RowsAffected()
}

// Audit operations

// SaveAuditEntry stores a single audit entry
func (s *sqlStore) SaveAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	if err := s.requireDB(); err != nil {
		return err
	}

	var details interface{}
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to marshal audit details", err.Error())
		}
		details = string(raw)
	}

	placeholders := make([]string, 11)
	for i := range placeholders {
		placeholders[i] = s.placeholder(i + 1)
	}
	query := fmt.Sprintf(`
		INSERT INTO audit_logs
		(id, timestamp, actor, action, entity_type, entity_id, severity, ip_address, user_agent, details, expires_at)
		VALUES (%s)
	`, strings.Join(placeholders, ", "))

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, toMillis(entry.Timestamp), entry.Actor, entry.Action, entry.EntityType,
		entry.EntityID, string(entry.Severity), entry.IPAddress, entry.UserAgent, details,
		toMillis(entry.ExpiresAt))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save audit entry", err.Error())
	}
	return nil
}

// buildAuditWhere renders the filter as a WHERE clause and its arguments
func (s *sqlStore) buildAuditWhere(filter models.AuditFilter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)

	add := func(column, op string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s %s %s", column, op, s.placeholder(len(args))))
	}

	if filter.Action != "" {
		add("action", "=", filter.Action)
	}
	if filter.EntityType != "" {
		add("entity_type", "=", filter.EntityType)
	}
	if filter.EntityID != "" {
		add("entity_id", "=", filter.EntityID)
	}
	if filter.Actor != "" {
		add("actor", "=", filter.Actor)
	}
	if filter.Severity != "" {
		add("severity", "=", string(filter.Severity))
	}
	if filter.Since != nil {
		add("timestamp", ">=", toMillis(*filter.Since))
	}
	if filter.Until != nil {
		add("timestamp", "<=", toMillis(*filter.Until))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// QueryAuditEntries returns entries matching the filter, newest first
func (s *sqlStore) QueryAuditEntries(ctx context.Context, filter models.AuditFilter, limit, offset int) ([]*models.AuditEntry, error) {
	if err := s.requireDB(); err != nil {
		return nil, err
	}

	where, args := s.buildAuditWhere(filter)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT id, timestamp, actor, action, entity_type, entity_id, severity, ip_address, user_agent, details, expires_at
		FROM audit_logs%s
		ORDER BY timestamp DESC, id DESC
		LIMIT %s OFFSET %s
	`, where, s.placeholder(len(args)-1), s.placeholder(len(args)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query audit entries", err.Error())
	}
	defer rows.Close()

	entries := make([]*models.AuditEntry, 0)
	for rows.Next() {
		var (
			entry     models.AuditEntry
			timestamp int64
			expiresAt int64
			severity  string
			details   []byte
		)
		if err := rows.Scan(&entry.ID, &timestamp, &entry.Actor, &entry.Action, &entry.EntityType,
			&entry.EntityID, &severity, &entry.IPAddress, &entry.UserAgent, &details, &expiresAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan audit entry", err.Error())
		}

		entry.Timestamp = fromMillis(timestamp)
		entry.ExpiresAt = fromMillis(expiresAt)
		entry.Severity = models.AuditSeverity(severity)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to unmarshal audit details", err.Error())
			}
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to iterate audit entries", err.Error())
	}

	return entries, nil
}

// CountAuditEntries counts entries matching the filter
func (s *sqlStore) CountAuditEntries(ctx context.Context, filter models.AuditFilter) (int64, error) {
	if err := s.requireDB(); err != nil {
		return 0, err
	}

	where, args := s.buildAuditWhere(filter)
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&count); err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count audit entries", err.Error())
	}
	return count, nil
}

// GetAuditStats aggregates the audit log relative to now
func (s *sqlStore) GetAuditStats(ctx context.Context, now time.Time) (*models.AuditStats, error) {
	if err := s.requireDB(); err != nil {
		return nil, err
	}

	stats := &models.AuditStats{
		ByAction:   make(map[string]int64),
		BySeverity: make(map[string]int64),
		ByActor:    make(map[string]int64),
	}

	var oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), MIN(timestamp), MAX(timestamp) FROM audit_logs`).
		Scan(&stats.TotalLogs, &oldest, &newest)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read audit totals", err.Error())
	}
	if oldest.Valid {
		t := fromMillis(oldest.Int64)
		stats.OldestEntry = &t
	}
	if newest.Valid {
		t := fromMillis(newest.Int64)
		stats.NewestEntry = &t
	}

	dayAgo := fmt.Sprintf(`SELECT COUNT(*) FROM audit_logs WHERE timestamp >= %s`, s.placeholder(1))
	if err := s.db.QueryRowContext(ctx, dayAgo, toMillis(now.Add(-24*time.Hour))).Scan(&stats.Last24Hours); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count recent audit entries", err.Error())
	}

	expired := fmt.Sprintf(`SELECT COUNT(*) FROM audit_logs WHERE expires_at <= %s`, s.placeholder(1))
	if err := s.db.QueryRowContext(ctx, expired, toMillis(now)).Scan(&stats.ExpiredLogs); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count expired audit entries", err.Error())
	}

	groups := map[string]map[string]int64{
		"action":   stats.ByAction,
		"severity": stats.BySeverity,
		"actor":    stats.ByActor,
	}
	for column, target := range groups {
		if err := s.countGroupedBy(ctx, column, target); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

func (s *sqlStore) countGroupedBy(ctx context.Context, column string, target map[string]int64) error {
	query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM audit_logs GROUP BY %s`, column, column)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to group audit entries", err.Error())
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			count int64
		)
		if err := rows.Scan(&key, &count); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan audit group", err.Error())
		}
		target[key] = count
	}
	return rows.Err()
}

// DeleteExpiredAuditEntries removes entries whose expiry is at or before now
func (s *sqlStore) DeleteExpiredAuditEntries(ctx context.Context, now time.Time) (int64, error) {
	if err := s.requireDB(); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`DELETE FROM audit_logs WHERE expires_at <= %s`, s.placeholder(1))
	result, err := s.db.ExecContext(ctx, query, toMillis(now))
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to delete expired audit entries", err.Error())
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to delete expired audit entries", err.Error())
	}
	return deleted, nil
}

// countTables returns row counts used by GetStats
func (s *sqlStore) countTables() (keys, audits int64, err error) {
	if err = s.requireDB(); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM kv_entries`).Scan(&keys); err != nil {
		return 0, 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count keys", err.Error())
	}
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM audit_logs`).Scan(&audits); err != nil {
		return 0, 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count audit logs", err.Error())
	}
	return keys, audits, nil
}
