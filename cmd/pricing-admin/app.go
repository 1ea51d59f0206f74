// File: cmd/pricing-admin/app.go
package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/pricing-admin/internal/audit"
	"github.com/smartdevs17/pricing-admin/internal/auth"
	"github.com/smartdevs17/pricing-admin/internal/config"
	"github.com/smartdevs17/pricing-admin/internal/gitprovider"
	"github.com/smartdevs17/pricing-admin/internal/kv"
	"github.com/smartdevs17/pricing-admin/internal/metrics"
	"github.com/smartdevs17/pricing-admin/internal/notification"
	"github.com/smartdevs17/pricing-admin/internal/performance"
	"github.com/smartdevs17/pricing-admin/internal/server"
	"github.com/smartdevs17/pricing-admin/internal/storage"
	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

// Application wires the admin backend together
type Application struct {
	config       *config.Config
	logger       *logrus.Logger
	metrics      *metrics.Manager
	storage      storage.Storage
	kv           *kv.StorageStore
	audit        *audit.Logger
	sessions     *auth.SessionManager
	collector    *performance.Collector
	notifier     *notification.WebhookNotifier
	gitProviders *gitprovider.Factory
	server       *server.HTTPServer
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeLogger(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := app.initializeComponents(); err != nil {
		cancel()
		if app.storage != nil {
			app.storage.Close()
		}
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeLogger initializes the application logger
func (app *Application) initializeLogger() error {
	logCfg := app.config.Logging

	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return err
	}

	app.logger = utils.GetLogger()
	app.logger.WithFields(logrus.Fields{
		"level":  logCfg.Level,
		"format": logCfg.Format,
		"output": logCfg.Output,
	}).Info("Logger initialized")

	return nil
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	app.logger.Info("Initializing application components")

	app.metrics = metrics.NewManager()

	if err := app.initializeStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.kv = kv.NewStorageStore(app.storage, app.metrics)
	app.audit = audit.NewLogger(app.storage, app.config.Audit, app.metrics)

	notifier, err := notification.NewWebhookNotifier(app.config.Notification, app.metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize notifications: %w", err)
	}
	if notifier != nil {
		app.notifier = notifier
		app.audit.SetNotifier(notifier)
		app.logger.WithField("min_severity", app.config.Notification.MinSeverity).Info("Audit alert webhook enabled")
	}

	app.collector = performance.NewCollector(app.config.Performance, app.metrics)

	app.sessions, err = auth.NewSessionManager(app.config.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize sessions: %w", err)
	}

	app.gitProviders, err = gitprovider.NewFactory(app.config.GitProviders, app.metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize git providers: %w", err)
	}

	app.server, err = server.NewHTTPServer(&app.config.Server, server.Dependencies{
		Storage:            app.storage,
		KV:                 app.kv,
		Audit:              app.audit,
		Sessions:           app.sessions,
		Performance:        app.collector,
		GitProviders:       app.gitProviders,
		Metrics:            app.metrics,
		DefaultReportHours: app.config.Performance.DefaultReportHours,
		MaxReportHours:     app.collector.MaxReportHours(),
		Version:            AppVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	app.logger.Info("All components initialized successfully")
	return nil
}

// initializeStorage opens the database and wraps it with metrics
func (app *Application) initializeStorage() error {
	app.logger.WithField("type", app.config.Storage.Type).Info("Initializing storage layer")

	store, err := storage.Open(&app.config.Storage)
	if err != nil {
		return err
	}

	app.storage = storage.NewStorageWithMetrics(store, app.metrics)

	app.logger.Info("Storage layer initialized successfully")
	return nil
}

// Start starts the application
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":     AppVersion,
		"environment": app.config.App.Environment,
	}).Info("Starting pricing admin backend")

	if err := app.collector.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start performance collector: %w", err)
	}

	if app.notifier != nil {
		if err := app.notifier.Start(app.ctx); err != nil {
			return fmt.Errorf("failed to start webhook notifier: %w", err)
		}
	}

	if err := app.server.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	app.wg.Add(2)
	go func() {
		defer app.wg.Done()
		app.audit.RunCleanupLoop(app.ctx, app.config.Audit.CleanupInterval)
	}()
	go func() {
		defer app.wg.Done()
		app.purgeExpiredKeys(app.config.Audit.CleanupInterval)
	}()

	app.logger.WithFields(logrus.Fields{
		"server_address": fmt.Sprintf("%s:%d", app.config.Server.Host, app.config.Server.Port),
		"storage":        app.config.Storage.Type,
	}).Info("Pricing admin backend started successfully")

	return nil
}

// purgeExpiredKeys drops expired KV entries every interval
func (app *Application) purgeExpiredKeys(interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.kv.PurgeExpired(app.ctx); err != nil {
				app.logger.WithError(err).Error("Failed to purge expired keys")
			}
		}
	}
}

// Stop stops the application gracefully
func (app *Application) Stop() error {
	app.logger.Info("Stopping pricing admin backend")

	app.cancel()

	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.server.Stop(ctx); err != nil {
			app.logger.WithError(err).Error("Failed to stop HTTP server")
		}
	}

	if app.collector != nil {
		app.collector.Stop()
	}
	if app.notifier != nil {
		app.notifier.Stop()
	}

	app.wg.Wait()

	if app.storage != nil {
		if err := app.storage.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close storage")
		}
	}

	app.logger.Info("Pricing admin backend stopped successfully")
	return nil
}
