// File: internal/config/config.go
package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Audit        AuditConfig        `mapstructure:"audit"`
	Performance  PerformanceConfig  `mapstructure:"performance"`
	GitProviders GitProvidersConfig `mapstructure:"git_providers"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
	AllowedOrigin string        `mapstructure:"allowed_origin"`
}

// StorageConfig contains database configuration
type StorageConfig struct {
	Type             string        `mapstructure:"type"` // sqlite, postgres
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
}

// AuthConfig contains admin session configuration
type AuthConfig struct {
	AdminToken     string `mapstructure:"admin_token"`
	SessionSecret  string `mapstructure:"session_secret"`
	SessionName    string `mapstructure:"session_name"`
	SessionMaxAge  int    `mapstructure:"session_max_age"` // seconds
	CookieSecure   bool   `mapstructure:"cookie_secure"`
	CookieSameSite string `mapstructure:"cookie_same_site"` // lax, strict, none
}

// AuditConfig contains audit log configuration
type AuditConfig struct {
	RetentionDays   int           `mapstructure:"retention_days"`
	DefaultPageSize int           `mapstructure:"default_page_size"`
	MaxPageSize     int           `mapstructure:"max_page_size"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// PerformanceConfig contains request metrics collection configuration
type PerformanceConfig struct {
	Retention          time.Duration `mapstructure:"retention"`
	MaxSamples         int           `mapstructure:"max_samples"`
	PruneInterval      time.Duration `mapstructure:"prune_interval"`
	DefaultReportHours int           `mapstructure:"default_report_hours"`
}

// GitProvidersConfig contains git provider connectivity configuration
type GitProvidersConfig struct {
	GitHub        GitProviderConfig `mapstructure:"github"`
	GitLab        GitProviderConfig `mapstructure:"gitlab"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	RetryAttempts int               `mapstructure:"retry_attempts"`
}

// GitProviderConfig contains the credentials for a single git provider
type GitProviderConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
}

// NotificationConfig contains audit alert webhook configuration
type NotificationConfig struct {
	WebhookURL    string            `mapstructure:"webhook_url"`
	Headers       map[string]string `mapstructure:"headers"`
	MinSeverity   string            `mapstructure:"min_severity"` // info, warning, critical
	Timeout       time.Duration     `mapstructure:"timeout"`
	RetryAttempts int               `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration     `mapstructure:"retry_delay"`
	QueueSize     int               `mapstructure:"queue_size"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, stderr, file
	File   string `mapstructure:"file"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Set environment variable prefix
	v.SetEnvPrefix("PRICING_ADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && configPath == "" {
			fmt.Println("Config file not found, using defaults and environment variables")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override with well-known environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Storage.ConnectionString = dbURL
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" && config.GitProviders.GitHub.Token == "" {
		config.GitProviders.GitHub.Token = token
	}
	if token := os.Getenv("GITLAB_TOKEN"); token != "" && config.GitProviders.GitLab.Token == "" {
		config.GitProviders.GitLab.Token = token
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "pricing-admin")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.enable_metrics", true)
	v.SetDefault("server.enable_health", true)
	v.SetDefault("server.allowed_origin", "*")

	// Storage defaults
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.connection_string", "./data/pricing-admin.db")
	v.SetDefault("storage.max_connections", 25)
	v.SetDefault("storage.max_idle_time", "15m")

	// Auth defaults
	v.SetDefault("auth.session_name", "admin-session")
	v.SetDefault("auth.session_max_age", 86400*7)
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.cookie_same_site", "lax")

	// Audit defaults
	v.SetDefault("audit.retention_days", 90)
	v.SetDefault("audit.default_page_size", 50)
	v.SetDefault("audit.max_page_size", 200)
	v.SetDefault("audit.cleanup_interval", "24h")

	// Performance defaults
	v.SetDefault("performance.retention", "168h")
	v.SetDefault("performance.max_samples", 100000)
	v.SetDefault("performance.prune_interval", "5m")
	v.SetDefault("performance.default_report_hours", 24)

	// Git provider defaults
	v.SetDefault("git_providers.timeout", "10s")
	v.SetDefault("git_providers.retry_attempts", 1)
	v.SetDefault("git_providers.github.base_url", "")
	v.SetDefault("git_providers.gitlab.base_url", "https://gitlab.com")

	// Notification defaults
	v.SetDefault("notification.webhook_url", "")
	v.SetDefault("notification.min_severity", "critical")
	v.SetDefault("notification.timeout", "5s")
	v.SetDefault("notification.retry_attempts", 3)
	v.SetDefault("notification.retry_delay", "1s")
	v.SetDefault("notification.queue_size", 100)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if c.Storage.ConnectionString == "" {
		return fmt.Errorf("storage connection string is required")
	}
	if c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention days must be positive")
	}
	if c.Audit.DefaultPageSize <= 0 || c.Audit.DefaultPageSize > c.Audit.MaxPageSize {
		return fmt.Errorf("audit default page size must be between 1 and max page size")
	}
	if c.Performance.MaxSamples <= 0 {
		return fmt.Errorf("performance max samples must be positive")
	}
	if c.Performance.Retention <= 0 {
		return fmt.Errorf("performance retention must be positive")
	}
	if c.GitProviders.Timeout <= 0 {
		return fmt.Errorf("git provider timeout must be positive")
	}
	if _, err := c.Auth.SameSiteMode(); err != nil {
		return err
	}
	switch c.Notification.MinSeverity {
	case "", "info", "warning", "critical":
	default:
		return fmt.Errorf("unsupported notification min_severity %q", c.Notification.MinSeverity)
	}
	return nil
}

// SameSiteMode maps the configured cookie SameSite policy to its http constant
func (a AuthConfig) SameSiteMode() (http.SameSite, error) {
	switch strings.ToLower(a.CookieSameSite) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return http.SameSiteDefaultMode, fmt.Errorf("unsupported cookie same_site value %q", a.CookieSameSite)
	}
}
