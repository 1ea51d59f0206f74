package notification

import (
	"context"

	"github.com/smartdevs17/pricing-admin/internal/models"
)

// Notifier delivers alerts about recorded audit entries
type Notifier interface {
	Notify(ctx context.Context, entry *models.AuditEntry) error
}

// ParseSeverity maps a configured level onto an audit severity. Empty means critical.
func ParseSeverity(level string) models.AuditSeverity {
	if level == "" {
		return models.SeverityCritical
	}
	return models.AuditSeverity(level)
}
