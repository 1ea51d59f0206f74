// File: internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/pricing-admin/internal/audit"
	"github.com/smartdevs17/pricing-admin/internal/auth"
	"github.com/smartdevs17/pricing-admin/internal/config"
	"github.com/smartdevs17/pricing-admin/internal/gitprovider"
	"github.com/smartdevs17/pricing-admin/internal/kv"
	"github.com/smartdevs17/pricing-admin/internal/metrics"
	"github.com/smartdevs17/pricing-admin/internal/performance"
	"github.com/smartdevs17/pricing-admin/internal/storage"
	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

const (
	defaultReportHours    = 24
	defaultMaxReportHours = 7 * 24
)

// PerformanceCollector records request samples and builds reports from them
type PerformanceCollector interface {
	Record(sample performance.Sample)
	GenerateReport(ctx context.Context, hours int) (*performance.Report, error)
}

// GitProviderTester checks connectivity to the configured git providers
type GitProviderTester interface {
	TestAll(ctx context.Context) (*gitprovider.Status, error)
}

// Dependencies are the collaborators the HTTP handlers forward to
type Dependencies struct {
	Storage            storage.Storage
	KV                 kv.Store
	Audit              *audit.Logger
	Sessions           *auth.SessionManager
	Performance        PerformanceCollector
	GitProviders       GitProviderTester
	Metrics            *metrics.Manager
	DefaultReportHours int
	MaxReportHours     int
	Version            string
}

// HTTPServer represents the HTTP server
type HTTPServer struct {
	config             *config.ServerConfig
	server             *http.Server
	router             *mux.Router
	storage            storage.Storage
	kv                 kv.Store
	auditLogger        *audit.Logger
	auditActions       *audit.Actions
	sessions           *auth.SessionManager
	performance        PerformanceCollector
	gitProviders       GitProviderTester
	metricsManager     *metrics.Manager
	defaultReportHours int
	maxReportHours     int
	version            string
	logger             *logrus.Entry

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(cfg *config.ServerConfig, deps Dependencies) (*HTTPServer, error) {
	if cfg == nil {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Server configuration is required")
	}
	if deps.KV == nil || deps.Audit == nil || deps.Sessions == nil || deps.Performance == nil || deps.GitProviders == nil {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Server is missing a required dependency")
	}

	maxHours := deps.MaxReportHours
	if maxHours <= 0 {
		maxHours = defaultMaxReportHours
	}
	reportHours := deps.DefaultReportHours
	if reportHours <= 0 {
		reportHours = defaultReportHours
	}
	if reportHours > maxHours {
		reportHours = maxHours
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	server := &HTTPServer{
		config:             cfg,
		storage:            deps.Storage,
		kv:                 deps.KV,
		auditLogger:        deps.Audit,
		auditActions:       audit.NewActions(deps.Audit, deps.Sessions),
		sessions:           deps.Sessions,
		performance:        deps.Performance,
		gitProviders:       deps.GitProviders,
		metricsManager:     deps.Metrics,
		defaultReportHours: reportHours,
		maxReportHours:     maxHours,
		version:            version,
		logger:             utils.ComponentLogger("http"),
		stopChan:           make(chan struct{}),
	}

	server.setupRouter()

	server.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server, nil
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.metricsMiddleware)

	if s.config.EnableHealth {
		s.router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
		s.router.HandleFunc("/health/detailed", s.detailedHealthHandler).Methods(http.MethodGet)
	}
	if s.config.EnableMetrics && s.metricsManager != nil {
		s.router.Handle("/metrics", s.metricsManager.Handler()).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/git-provider/test", s.gitProviderTestHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/kv/get", s.kvGetHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/kv/set", s.kvSetHandler).Methods(http.MethodPut, http.MethodOptions)
	api.HandleFunc("/kv/delete", s.kvDeleteHandler).Methods(http.MethodDelete, http.MethodOptions)
	api.HandleFunc("/performance/reports", s.performanceReportHandler).Methods(http.MethodGet, http.MethodOptions)

	api.HandleFunc("/audit/logs", s.auditLogsHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/audit/stats", s.auditStatsHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/audit/cleanup", s.auditCleanupHandler).Methods(http.MethodPost, http.MethodOptions)

	api.HandleFunc("/auth/session", s.createSessionHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/auth/session", s.destroySessionHandler).Methods(http.MethodDelete)
}

// Handler returns the root handler, used by tests and embedding servers
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.server.Addr,
		"metrics_enabled": s.config.EnableMetrics,
	}).Info("Starting HTTP server")

	// Update once so the gauges appear on the first scrape
	if s.metricsManager != nil {
		s.updateRuntimeMetrics()
		go s.systemMetricsUpdater()
	}

	errChan := make(chan error, 1)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server error")
			errChan <- err
		}
	}()

	// Give the server a moment to start and check for immediate binding errors
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// systemMetricsUpdater updates system metrics periodically
func (s *HTTPServer) systemMetricsUpdater() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.updateRuntimeMetrics()
		}
	}
}

func (s *HTTPServer) updateRuntimeMetrics() {
	s.metricsManager.UpdateSystemMetrics()
	if s.storage != nil {
		health := s.storage.GetHealth()
		s.metricsManager.GetPrometheusMetrics().UpdateComponentHealth("storage", health.Healthy)
	}
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	s.stopOnce.Do(func() { close(s.stopChan) })

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return s.server.Shutdown(ctx)
}

// Health Handlers

// healthHandler returns basic health status
func (s *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		"version":         s.version,
		"metrics_enabled": s.config.EnableMetrics,
	})
}

// detailedHealthHandler returns health of each component
func (s *HTTPServer) detailedHealthHandler(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	components := map[string]interface{}{}

	if s.storage != nil {
		health := s.storage.GetHealth()
		components["storage"] = health
		if !health.Healthy {
			status = "degraded"
		}
		if stats, err := s.storage.GetStats(); err == nil {
			components["storage_stats"] = stats
		}
	}
	if collector, ok := s.performance.(*performance.Collector); ok {
		components["performance"] = map[string]interface{}{"samples": collector.Len()}
	}

	resp := map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"version":    s.version,
		"components": components,
	}
	if s.metricsManager != nil {
		resp["uptime"] = s.metricsManager.Uptime().String()
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

// Utility Methods

// writeJSON writes a JSON response
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeFailure writes a {success:false, error} envelope and logs the cause
func (s *HTTPServer) writeFailure(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if err != nil {
		entry := s.logger.WithFields(logrus.Fields{
			"path":   r.URL.Path,
			"status": status,
		}).WithError(err)
		if status >= http.StatusInternalServerError {
			entry.Error(message)
		} else {
			entry.Warn(message)
		}
	}

	s.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
