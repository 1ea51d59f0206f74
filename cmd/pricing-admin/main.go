// File: cmd/pricing-admin/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartdevs17/pricing-admin/internal/audit"
	"github.com/smartdevs17/pricing-admin/internal/config"
	"github.com/smartdevs17/pricing-admin/internal/gitprovider"
	"github.com/smartdevs17/pricing-admin/internal/storage"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// rootCmd runs the admin backend when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "pricing-admin",
	Short:   "Pricing and promotions admin backend",
	Long:    `Administrative API for the pricing platform: key-value lookups, audit log, request performance reports and git provider checks.`,
	Version: AppVersion,
	RunE:    runServer,
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if level := viper.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if viper.GetBool("debug") {
		cfg.App.Debug = true
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runServer starts the backend and blocks until a shutdown signal
func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	if err := app.Start(); err != nil {
		app.Stop()
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-signalChan
	fmt.Println("\nReceived shutdown signal, stopping application...")

	return app.Stop()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pricing-admin %s\n", AppVersion)
	},
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

// validateConfigCmd validates the configuration
var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Environment: %s\n", cfg.App.Environment)
		fmt.Printf("Listen: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("Database: %s\n", cfg.Storage.Type)
		fmt.Printf("Audit retention: %d days\n", cfg.Audit.RetentionDays)
		fmt.Printf("GitHub token: %t, GitLab token: %t\n",
			cfg.GitProviders.GitHub.Token != "", cfg.GitProviders.GitLab.Token != "")

		return nil
	},
}

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test storage and git provider connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Println("Testing pricing admin connectivity...")

		fmt.Printf("Testing storage connection (%s)...\n", cfg.Storage.Type)
		store, err := storage.Open(&cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()
		if err := store.Ping(); err != nil {
			return fmt.Errorf("storage ping failed: %w", err)
		}
		fmt.Println("✓ Storage connection successful")

		fmt.Println("Testing git providers...")
		factory, err := gitprovider.NewFactory(cfg.GitProviders, nil)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GitProviders.Timeout+5*time.Second)
		defer cancel()

		status, err := factory.TestAll(ctx)
		if err != nil {
			return fmt.Errorf("git provider test failed: %w", err)
		}
		for _, result := range status.Results {
			if result.Connected {
				fmt.Printf("✓ %s connected as %s (%s)\n", result.Provider, result.Account, result.Latency)
			} else {
				fmt.Printf("✗ %s: %s\n", result.Provider, result.Error)
			}
		}
		fmt.Println(gitprovider.FormatStatusMessage(status.Providers))

		return nil
	},
}

// auditCmd groups audit log maintenance commands
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log maintenance commands",
}

// auditCleanupCmd removes expired audit entries
var auditCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete audit entries past their retention",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := storage.Open(&cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()

		deleted, err := audit.NewLogger(store, cfg.Audit, nil).CleanupExpired(cmd.Context())
		if err != nil {
			return fmt.Errorf("audit cleanup failed: %w", err)
		}

		fmt.Printf("Deleted %d expired audit entries\n", deleted)
		return nil
	},
}

// init initializes the CLI commands
func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug mode")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(auditCmd)
	configCmd.AddCommand(validateConfigCmd)
	auditCmd.AddCommand(auditCleanupCmd)
}

// main is the entry point
func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
