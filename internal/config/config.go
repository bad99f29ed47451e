// Package config loads the shipyard YAML configuration: GitHub App identity,
// server settings, and the environment seed list.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Scrappy-Poet-LLC/shipyard/internal/security"
)

const (
	MinSecretLength      = 32
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 5000
	DefaultCommitCeiling = 30
)

var ForbiddenSecrets = map[string]bool{
	"replace-with-secret":     true,
	"github-webhook-password": true,
	"topsecret":               true,
	"secret":                  true,
	"password":                true,
	"changeme":                true,
}

// GitHubConfig is the GitHub App identity section.
type GitHubConfig struct {
	AppID          int64  `yaml:"app_id"`
	PrivateKeyFile string `yaml:"private_key_file"`
	WebhookSecret  string `yaml:"webhook_secret"`
	// BaseURL points at a GitHub Enterprise API root; empty means github.com.
	BaseURL string `yaml:"base_url"`
}

// ServerConfig is the HTTP server section.
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	APIToken string `yaml:"api_token"`
}

// EnvironmentConfig seeds one environment row.
type EnvironmentConfig struct {
	Name          string `yaml:"name"`
	Slug          string `yaml:"slug"`
	CommitCeiling int    `yaml:"commit_ceiling"`
}

// Config is the root configuration structure.
type Config struct {
	GitHub       GitHubConfig        `yaml:"github"`
	Server       ServerConfig        `yaml:"server"`
	Database     string              `yaml:"database"`
	Environments []EnvironmentConfig `yaml:"environments"`

	// PrivateKey holds the loaded PEM bytes, populated by LoadConfig.
	PrivateKey []byte `yaml:"-"`
}

// LoadConfig loads and validates the configuration from a YAML file, reading
// the referenced private key file into Config.PrivateKey.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Apply defaults before validation
	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}
	if config.Server.Port == 0 {
		config.Server.Port = DefaultPort
	}
	if config.Database == "" {
		config.Database = "./shipyard.db"
	}
	for i := range config.Environments {
		if config.Environments[i].CommitCeiling <= 0 {
			config.Environments[i].CommitCeiling = DefaultCommitCeiling
		}
	}

	if errors := Validate(&config); len(errors) > 0 {
		return nil, fmt.Errorf("invalid configuration:\n%s", strings.Join(errors, "\n"))
	}

	key, err := os.ReadFile(config.GitHub.PrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read github app private key: %w", err)
	}
	config.PrivateKey = key

	return &config, nil
}

// Validate checks the configuration and returns a list of problems, one per
// line, so the operator sees every defect at once.
func Validate(config *Config) []string {
	var errors []string

	if config.GitHub.AppID <= 0 {
		errors = append(errors, "  - github.app_id must be a positive integer")
	}
	if config.GitHub.PrivateKeyFile == "" {
		errors = append(errors, "  - github.private_key_file is required")
	}

	errors = append(errors, validateSecret("github.webhook_secret", config.GitHub.WebhookSecret)...)
	errors = append(errors, validateSecret("server.api_token", config.Server.APIToken)...)

	if config.Server.Port < 1 || config.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("  - server.port must be in [1, 65535], got %d", config.Server.Port))
	}

	if len(config.Environments) == 0 {
		errors = append(errors, "  - at least one environment must be configured")
	}

	seen := make(map[string]bool)
	for i, env := range config.Environments {
		if env.Slug == "" {
			errors = append(errors, fmt.Sprintf("  - environments[%d]: missing required 'slug' field", i))
			continue
		}
		if env.Name == "" {
			errors = append(errors, fmt.Sprintf("  - environments[%d] ('%s'): missing required 'name' field", i, env.Slug))
		}
		if seen[env.Slug] {
			errors = append(errors, fmt.Sprintf("  - environments[%d]: duplicate slug '%s'", i, env.Slug))
		}
		seen[env.Slug] = true
	}

	return errors
}

func validateSecret(field, secret string) []string {
	var errors []string

	if secret == "" {
		errors = append(errors, fmt.Sprintf("  - %s: missing required field", field))
		return errors
	}
	if len(secret) < MinSecretLength {
		errors = append(errors, fmt.Sprintf("  - %s: too short (minimum %d characters)", field, MinSecretLength))
	}
	if ForbiddenSecrets[strings.ToLower(secret)] {
		errors = append(errors, fmt.Sprintf("  - %s: appears to be a placeholder value, replace with real secret", field))
	} else if security.IsWeakSecret(secret) {
		errors = append(errors, fmt.Sprintf("  - %s: appears weak (repeated or low-entropy value), generate a random secret", field))
	}

	return errors
}
