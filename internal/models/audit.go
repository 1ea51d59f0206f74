package models

import "time"

// AuditSeverity classifies how sensitive an administrative action is
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityCritical AuditSeverity = "critical"
)

// Valid reports whether the severity is one of the known levels
func (s AuditSeverity) Valid() bool {
	return s.Rank() > 0
}

// Rank orders severities from info (1) to critical (3). Unknown levels rank 0.
func (s AuditSeverity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	}
	return 0
}

// Audit actions recorded by the admin backend
const (
	ActionSessionCreate  = "session.create"
	ActionSessionDestroy = "session.destroy"
	ActionKVSet          = "kv.set"
	ActionKVDelete       = "kv.delete"
	ActionAuditCleanup   = "audit.cleanup"
)

// AuditEntry is a single record of an administrative action
type AuditEntry struct {
	ID         string                 `json:"id" db:"id"`
	Timestamp  time.Time              `json:"timestamp" db:"timestamp"`
	Actor      string                 `json:"actor" db:"actor"`
	Action     string                 `json:"action" db:"action"`
	EntityType string                 `json:"entityType,omitempty" db:"entity_type"`
	EntityID   string                 `json:"entityId,omitempty" db:"entity_id"`
	Severity   AuditSeverity          `json:"severity" db:"severity"`
	IPAddress  string                 `json:"ipAddress,omitempty" db:"ip_address"`
	UserAgent  string                 `json:"userAgent,omitempty" db:"user_agent"`
	Details    map[string]interface{} `json:"details,omitempty" db:"details"`
	ExpiresAt  time.Time              `json:"expiresAt" db:"expires_at"`
}

// AuditFilter narrows an audit log query. Empty fields match everything.
type AuditFilter struct {
	Action     string        `json:"action,omitempty"`
	EntityType string        `json:"entityType,omitempty"`
	EntityID   string        `json:"entityId,omitempty"`
	Actor      string        `json:"actor,omitempty"`
	Severity   AuditSeverity `json:"severity,omitempty"`
	Since      *time.Time    `json:"since,omitempty"`
	Until      *time.Time    `json:"until,omitempty"`
}

// AuditPage is one page of audit log results
type AuditPage struct {
	Logs       []*AuditEntry `json:"logs"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"totalPages"`
}

// AuditStats aggregates the audit log
type AuditStats struct {
	TotalLogs   int64            `json:"totalLogs"`
	Last24Hours int64            `json:"last24Hours"`
	ExpiredLogs int64            `json:"expiredLogs"`
	ByAction    map[string]int64 `json:"byAction"`
	BySeverity  map[string]int64 `json:"bySeverity"`
	ByActor     map[string]int64 `json:"byActor"`
	OldestEntry *time.Time       `json:"oldestEntry,omitempty"`
	NewestEntry *time.Time       `json:"newestEntry,omitempty"`
}
