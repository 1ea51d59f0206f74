package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/smartdevs17/pricing-admin/internal/audit"
	"github.com/smartdevs17/pricing-admin/internal/auth"
	"github.com/smartdevs17/pricing-admin/internal/models"
	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

const maxRequestBody = 1 << 20

// Audit Handlers

// auditLogsHandler returns a filtered page of the audit log
func (s *HTTPServer) auditLogsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := &models.AuditFilter{
		Action:     query.Get("action"),
		EntityType: query.Get("entityType"),
		EntityID:   query.Get("entityId"),
		Actor:      query.Get("actor"),
		Severity:   models.AuditSeverity(query.Get("severity")),
	}

	var err error
	if filter.Since, err = parseTimeParam(query.Get("since")); err != nil {
		s.writeFailure(w, r, http.StatusBadRequest, "Invalid since parameter", err)
		return
	}
	if filter.Until, err = parseTimeParam(query.Get("until")); err != nil {
		s.writeFailure(w, r, http.StatusBadRequest, "Invalid until parameter", err)
		return
	}

	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	s.writeActionResult(w, s.auditActions.GetAuditLogs(r, filter, page, limit))
}

// auditStatsHandler returns aggregate audit statistics
func (s *HTTPServer) auditStatsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeActionResult(w, s.auditActions.GetAuditStats(r))
}

// auditCleanupHandler removes expired audit entries
func (s *HTTPServer) auditCleanupHandler(w http.ResponseWriter, r *http.Request) {
	s.writeActionResult(w, s.auditActions.CleanupExpiredLogs(r))
}

func (s *HTTPServer) writeActionResult(w http.ResponseWriter, result audit.ActionResult) {
	status := result.Status
	if status == 0 {
		status = http.StatusOK
	}
	s.writeJSON(w, status, result)
}

func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Session Handlers

type sessionRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// createSessionHandler exchanges the admin token for a session cookie
func (s *HTTPServer) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.writeFailure(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	identity, err := s.sessions.Login(w, r, req.Email, req.Token)
	if err != nil {
		s.writeAppError(w, r, err, "Failed to create session")
		return
	}

	entry := audit.NewEntry(r, identity.Email, models.ActionSessionCreate)
	entry.EntityType = "session"
	s.recordAudit(r, entry)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    identity,
	})
}

// destroySessionHandler clears the session cookie
func (s *HTTPServer) destroySessionHandler(w http.ResponseWriter, r *http.Request) {
	identity, _ := s.sessions.Identity(r)

	if err := s.sessions.Logout(w, r); err != nil {
		s.writeFailure(w, r, http.StatusInternalServerError, "Failed to destroy session", err)
		return
	}

	if identity != nil {
		entry := audit.NewEntry(r, identity.Email, models.ActionSessionDestroy)
		entry.EntityType = "session"
		s.recordAudit(r, entry)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// KV Write Handlers

type kvSetRequest struct {
	Key        string          `json:"key"`
	Value      json.RawMessage `json:"value"`
	TTLSeconds int             `json:"ttlSeconds,omitempty"`
}

// kvSetHandler stores a JSON value under a key
func (s *HTTPServer) kvSetHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	var req kvSetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.writeFailure(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Key == "" {
		s.writeFailure(w, r, http.StatusBadRequest, "Key is required", nil)
		return
	}
	if len(req.Value) == 0 {
		s.writeFailure(w, r, http.StatusBadRequest, "Value is required", nil)
		return
	}
	if req.TTLSeconds < 0 {
		s.writeFailure(w, r, http.StatusBadRequest, "ttlSeconds must not be negative", nil)
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	if err := s.kv.Set(r.Context(), req.Key, req.Value, ttl); err != nil {
		s.writeAppError(w, r, err, "Failed to set value")
		return
	}

	entry := audit.NewEntry(r, identity.Email, models.ActionKVSet)
	entry.EntityType = "kv_entry"
	entry.EntityID = req.Key
	if req.TTLSeconds > 0 {
		entry.Details = map[string]interface{}{"ttlSeconds": req.TTLSeconds}
	}
	s.recordAudit(r, entry)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// kvDeleteHandler removes a key
func (s *HTTPServer) kvDeleteHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeFailure(w, r, http.StatusBadRequest, "Key is required", nil)
		return
	}

	if err := s.kv.Delete(r.Context(), key); err != nil {
		s.writeAppError(w, r, err, "Failed to delete value")
		return
	}

	entry := audit.NewEntry(r, identity.Email, models.ActionKVDelete)
	entry.EntityType = "kv_entry"
	entry.EntityID = key
	entry.Severity = models.SeverityWarning
	s.recordAudit(r, entry)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, err := s.sessions.Identity(r)
	if err != nil {
		s.writeFailure(w, r, http.StatusUnauthorized, "Unauthorized", nil)
		return nil, false
	}
	return identity, true
}

// writeAppError maps validation and auth errors to 4xx and everything else to
// a 500 carrying fallback
func (s *HTTPServer) writeAppError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if appErr, ok := utils.AsAppError(err); ok {
		switch appErr.Code {
		case utils.ErrCodeValidation:
			s.writeFailure(w, r, http.StatusBadRequest, appErr.Message, err)
			return
		case utils.ErrCodeUnauthorized:
			s.writeFailure(w, r, http.StatusUnauthorized, "Unauthorized", err)
			return
		}
	}
	s.writeFailure(w, r, http.StatusInternalServerError, fallback, err)
}

// recordAudit stores entry. Audit failures are logged and never fail the request.
func (s *HTTPServer) recordAudit(r *http.Request, entry *models.AuditEntry) {
	if err := s.auditLogger.Log(r.Context(), entry); err != nil {
		s.logger.WithError(err).WithField("action", entry.Action).Warn("Failed to record audit entry")
	}
}
