package audit

import (
	"net"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/pricing-admin/internal/auth"
	"github.com/smartdevs17/pricing-admin/internal/models"
	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

// IdentityResolver reads the administrator from a request's cookies
type IdentityResolver interface {
	Identity(r *http.Request) (*auth.Identity, error)
}

// ActionResult is the envelope returned by the audit actions
type ActionResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Status  int         `json:"-"`
}

func succeeded(data interface{}) ActionResult {
	return ActionResult{Success: true, Data: data, Status: http.StatusOK}
}

func failed(status int, message string) ActionResult {
	return ActionResult{Success: false, Error: message, Status: status}
}

// Actions are the audit operations exposed to the admin UI. Each resolves the
// session from the request cookies before touching the audit log.
type Actions struct {
	logger     *Logger
	identities IdentityResolver
	log        *logrus.Entry
}

// NewActions creates the audit actions
func NewActions(logger *Logger, identities IdentityResolver) *Actions {
	return &Actions{
		logger:     logger,
		identities: identities,
		log:        utils.ComponentLogger("audit_actions"),
	}
}

// GetAuditLogs returns a page of audit entries matching filter
func (a *Actions) GetAuditLogs(r *http.Request, filter *models.AuditFilter, page, limit int) ActionResult {
	if _, ok := a.authorize(r); !ok {
		return failed(http.StatusUnauthorized, "Unauthorized")
	}

	result, err := a.logger.GetLogs(r.Context(), filter, page, limit)
	if err != nil {
		if appErr, ok := utils.AsAppError(err); ok && appErr.Code == utils.ErrCodeValidation {
			return failed(http.StatusBadRequest, appErr.Message)
		}
		a.log.WithError(err).Error("Failed to fetch audit logs")
		return failed(http.StatusInternalServerError, "Failed to fetch audit logs")
	}

	return succeeded(result)
}

// GetAuditStats returns aggregate audit statistics
func (a *Actions) GetAuditStats(r *http.Request) ActionResult {
	if _, ok := a.authorize(r); !ok {
		return failed(http.StatusUnauthorized, "Unauthorized")
	}

	stats, err := a.logger.GetStats(r.Context())
	if err != nil {
		a.log.WithError(err).Error("Failed to fetch audit stats")
		return failed(http.StatusInternalServerError, "Failed to fetch audit stats")
	}

	return succeeded(stats)
}

// CleanupExpiredLogs purges expired entries and records who did it
func (a *Actions) CleanupExpiredLogs(r *http.Request) ActionResult {
	identity, ok := a.authorize(r)
	if !ok {
		return failed(http.StatusUnauthorized, "Unauthorized")
	}

	deleted, err := a.logger.CleanupExpired(r.Context())
	if err != nil {
		a.log.WithError(err).Error("Failed to cleanup expired audit logs")
		return failed(http.StatusInternalServerError, "Failed to cleanup expired logs")
	}

	entry := NewEntry(r, identity.Email, models.ActionAuditCleanup)
	entry.Severity = models.SeverityCritical
	entry.EntityType = "audit_log"
	entry.Details = map[string]interface{}{"deletedCount": deleted}
	if err := a.logger.Log(r.Context(), entry); err != nil {
		a.log.WithError(err).Warn("Failed to record audit cleanup")
	}

	return succeeded(map[string]interface{}{"deletedCount": deleted})
}

func (a *Actions) authorize(r *http.Request) (*auth.Identity, bool) {
	identity, err := a.identities.Identity(r)
	if err != nil {
		a.log.WithFields(logrus.Fields{
			"path":  r.URL.Path,
			"error": err,
		}).Debug("Audit action rejected")
		return nil, false
	}
	return identity, true
}

// NewEntry builds an audit entry for actor carrying the request's client details
func NewEntry(r *http.Request, actor, action string) *models.AuditEntry {
	return &models.AuditEntry{
		Actor:     actor,
		Action:    action,
		IPAddress: ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// ClientIP returns the originating client address, preferring the first
// X-Forwarded-For hop when the app sits behind a proxy
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
