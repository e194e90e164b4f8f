// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/joho/godotenv"
)

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development)
// or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	AppID      string // secret name in Secret Manager

	// DBPath is the SQLite file backing sessions and the past-kitchen
	// cache. Empty falls back to an in-memory store.
	DBPath string

	// MinAppVersion is the oldest app build allowed to mutate carts.
	// Empty disables the forced-upgrade gate.
	MinAppVersion string

	// Backend holds ordering-backend settings (loaded from secrets).
	Backend BackendConfig

	// JWTSecret verifies bearer tokens from the ordering platform.
	JWTSecret string
}

// BackendConfig contains ordering-backend settings.
// In production, this is loaded from Secret Manager as JSON.
// In development, loaded from individual env vars or CONFIG_FILE.
type BackendConfig struct {
	BaseURL   string `json:"base_url"`
	APIKey    string `json:"api_key"`
	JWTSecret string `json:"jwt_secret"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) -> ENV vars / Secret Manager.
// A .env file in the working directory is loaded first so local
// development needs no exported variables.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// Best effort; a missing .env file is the normal case outside dev.
	godotenv.Load()

	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:          envOrDefault("PORT", "8080"),
		Environment:   envOrDefault("ENVIRONMENT", "development"),
		LogLevel:      envOrDefault("LOG_LEVEL", "info"),
		GCPProject:    os.Getenv("GCP_PROJECT"),
		AppID:         os.Getenv("APP_ID"),
		DBPath:        os.Getenv("DB_PATH"),
		MinAppVersion: os.Getenv("MIN_APP_VERSION"),
	}

	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.AppID == "" {
			return nil, fmt.Errorf("APP_ID required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading backend config: %w", err)
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = cfg.Backend.JWTSecret
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Use a struct that matches the JSON structure
	var fileConfig struct {
		Port          string        `json:"port"`
		Environment   string        `json:"environment"`
		LogLevel      string        `json:"log_level"`
		DBPath        string        `json:"db_path"`
		MinAppVersion string        `json:"min_app_version"`
		Backend       BackendConfig `json:"backend"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:          withDefault(fileConfig.Port, "8080"),
		Environment:   withDefault(fileConfig.Environment, "development"),
		LogLevel:      withDefault(fileConfig.LogLevel, "info"),
		DBPath:        fileConfig.DBPath,
		MinAppVersion: fileConfig.MinAppVersion,
		Backend:       fileConfig.Backend,
		JWTSecret:     fileConfig.Backend.JWTSecret,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches backend config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{app_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.AppID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Backend); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	return nil
}

// loadFromEnv reads backend config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Backend = BackendConfig{
		BaseURL:   os.Getenv("BACKEND_BASE_URL"),
		APIKey:    os.Getenv("BACKEND_API_KEY"),
		JWTSecret: os.Getenv("JWT_SECRET"),
	}
	return nil
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base_url is required")
	}
	if c.Backend.APIKey == "" {
		return fmt.Errorf("backend api_key is required")
	}

	// Validate backend URL is well-formed
	if _, err := url.Parse(c.Backend.BaseURL); err != nil {
		return fmt.Errorf("invalid backend base_url: %w", err)
	}

	return nil
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
