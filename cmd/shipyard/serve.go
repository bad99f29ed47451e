package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Scrappy-Poet-LLC/shipyard/internal/config"
	"github.com/Scrappy-Poet-LLC/shipyard/internal/githubapp"
	"github.com/Scrappy-Poet-LLC/shipyard/internal/registry"
	"github.com/Scrappy-Poet-LLC/shipyard/internal/server"
	"github.com/Scrappy-Poet-LLC/shipyard/internal/syncer"
	"github.com/Scrappy-Poet-LLC/shipyard/pkg/fileutil"
)

var (
	configFile string
	logFile    string
	dbPath     string
	host       string
	port       int
	testMode   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the status server",
	Long: `Start the HTTP server that serves the deployment status API.

The server answers board queries, receives GitHub App installation webhooks,
and keeps the service registry in sync with installed repositories.`,
	RunE: runServe,
}

func init() {
	// Flags for serve command
	serveCmd.Flags().StringVarP(&configFile, "config", "c", getEnvOrDefault("SHIPYARD_CONFIG_FILE", ""), "Path to shipyard.yaml configuration file")
	serveCmd.Flags().StringVar(&logFile, "log", getEnvOrDefault("SHIPYARD_LOG_FILE", "./shipyard.log"), "Path to log file")
	serveCmd.Flags().StringVar(&dbPath, "db", getEnvOrDefault("SHIPYARD_DB_PATH", ""), "Path to SQLite database (overrides config)")
	serveCmd.Flags().StringVar(&host, "host", getEnvOrDefault("SHIPYARD_HOST", ""), "Host to bind to (overrides config)")
	serveCmd.Flags().IntVarP(&port, "port", "p", getEnvOrDefaultInt("SHIPYARD_PORT", 0), "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&testMode, "test-mode", os.Getenv("SHIPYARD_SKIP_RATE_LIMITS") == "1", "Enable test mode (skip rate limiting)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Set up logging
	logger, logFileHandle, err := setupLogging(logFile)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFileHandle.Close()

	logger.Info("Starting shipyard")

	cfg, reg, app, err := bootstrap(cmd.Context(), logger)
	if err != nil {
		return err
	}
	defer reg.Close()

	sync := syncer.New(reg, app, logger)
	auth := server.NewTokenAuthenticator(cfg.Server.APIToken)

	srv := server.NewServer(reg, app, sync, auth, logger, testMode)

	bindHost := cfg.Server.Host
	if host != "" {
		bindHost = host
	}
	bindPort := cfg.Server.Port
	if port != 0 {
		bindPort = port
	}

	logger.Info("Starting HTTP server", "host", bindHost, "port", bindPort)
	if err := srv.Start(bindHost, bindPort); err != nil {
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// bootstrap loads configuration, opens the registry database, seeds the
// environments, and builds the GitHub App credential broker. Shared by the
// serve and sync commands.
func bootstrap(ctx context.Context, logger *slog.Logger) (*config.Config, *registry.Registry, *githubapp.App, error) {
	path := configFile
	if path == "" {
		// Search in default locations using pkg/fileutil
		searchPaths := fileutil.DefaultConfigPaths("shipyard.yaml")
		path = fileutil.SearchPathsOptional(searchPaths)
		if path == "" {
			fmt.Fprintf(os.Stderr, "Error: No configuration file found in default locations:\n")
			for _, p := range searchPaths {
				fmt.Fprintf(os.Stderr, "  - %s\n", p)
			}
			fmt.Fprintf(os.Stderr, "Use --config flag to specify a custom location\n")
			return nil, nil, nil, fmt.Errorf("configuration file not found")
		}
	}

	logger.Info("Loading configuration", "config", path)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	database := cfg.Database
	if dbPath != "" {
		database = dbPath
	}

	logger.Info("Opening registry database", "db", database)
	reg, err := registry.Open(database)
	if err != nil {
		logger.Error("Failed to open registry database", "error", err)
		return nil, nil, nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	envs := make([]registry.Environment, 0, len(cfg.Environments))
	for _, env := range cfg.Environments {
		envs = append(envs, registry.Environment{
			Name:          env.Name,
			Slug:          env.Slug,
			CommitCeiling: env.CommitCeiling,
		})
	}
	if err := reg.SeedEnvironments(ctx, envs); err != nil {
		reg.Close()
		logger.Error("Failed to seed environments", "error", err)
		return nil, nil, nil, fmt.Errorf("failed to seed environments: %w", err)
	}
	logger.Info("Environments seeded", "count", len(envs))

	app, err := githubapp.New(githubapp.Config{
		AppID:         cfg.GitHub.AppID,
		PrivateKey:    cfg.PrivateKey,
		WebhookSecret: cfg.GitHub.WebhookSecret,
		BaseURL:       cfg.GitHub.BaseURL,
	})
	if err != nil {
		reg.Close()
		logger.Error("Failed to initialize GitHub App", "error", err)
		return nil, nil, nil, fmt.Errorf("failed to initialize GitHub App: %w", err)
	}

	return cfg, reg, app, nil
}

// setupLogging configures slog for file logging
// Returns both the logger and the file handle (caller must close the file)
func setupLogging(logPath string) (*slog.Logger, *os.File, error) {
	// Create log directory if needed
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Open log file with secure permissions
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Create multi-writer to log to both file and console
	multiWriter := io.MultiWriter(os.Stdout, file)

	// Create JSON handler for structured logging
	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	logger := slog.New(handler)

	return logger, file, nil
}

// Helper functions for environment variables
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
