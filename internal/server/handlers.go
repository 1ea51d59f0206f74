package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/smartdevs17/pricing-admin/internal/gitprovider"
	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

// gitProviderTestHandler reports GitHub and GitLab connectivity
func (s *HTTPServer) gitProviderTestHandler(w http.ResponseWriter, r *http.Request) {
	status, err := s.gitProviders.TestAll(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to test git providers")
		s.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to test git providers",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"providers": status.Providers,
		"message":   gitprovider.FormatStatusMessage(status.Providers),
	})
}

// kvGetHandler returns the value stored under the key query parameter
func (s *HTTPServer) kvGetHandler(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeFailure(w, r, http.StatusBadRequest, "Key is required", nil)
		return
	}

	value, err := s.kv.Get(r.Context(), key)
	if err != nil {
		if appErr, ok := utils.AsAppError(err); ok && appErr.Code == utils.ErrCodeValidation {
			s.writeFailure(w, r, http.StatusBadRequest, appErr.Message, err)
			return
		}
		s.writeFailure(w, r, http.StatusInternalServerError, "Failed to get value", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    value,
	})
}

// performanceReportHandler builds a report over the last hours of traffic
func (s *HTTPServer) performanceReportHandler(w http.ResponseWriter, r *http.Request) {
	hours := parseHours(r.URL.Query().Get("hours"), s.defaultReportHours, s.maxReportHours)

	report, err := s.performance.GenerateReport(r.Context(), hours)
	if err != nil {
		s.writeFailure(w, r, http.StatusInternalServerError, "Failed to generate performance report", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"data":        report,
		"generatedAt": time.Now().UTC().Format(time.RFC3339),
		"timeframe":   utils.FormatTimeframe(hours),
	})
}

// parseHours reads a positive integer capped at max, falling back to def for
// anything else
func parseHours(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		return def
	}
	if hours > max {
		return max
	}
	return hours
}
