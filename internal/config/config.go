// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/draw-labs/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	PublicURL      string // Base of image URLs; empty derives it from the request
	FrontendURL    string
	DBDriver       string // "sqlite" or "postgres"
	DBPath         string
	DatabaseURL    string
	StorageDir     string
	MaxUploadBytes int64
	PromptTZ       *time.Location
	PromptsFile    string
	CORSOrigins    []string
	ShutdownGrace  time.Duration
	SweepInterval  time.Duration // 0 disables the orphaned image sweeper
	SweepGrace     time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	tzName := getEnv("PROMPT_TZ", "Asia/Tokyo")
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: PROMPT_TZ %q: %w", tzName, err)
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		PublicURL:      strings.TrimRight(getEnv("PUBLIC_URL", ""), "/"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBPath:         getEnv("DB_PATH", "./data/drawings.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		StorageDir:     getEnv("STORAGE_DIR", "./data/storage"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", domain.MaxImageBytes)),
		PromptTZ:       tz,
		PromptsFile:    getEnv("PROMPTS_FILE", ""),
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"*"}),
		ShutdownGrace:  getEnvDuration("SHUTDOWN_GRACE", 10*time.Second),
		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", time.Hour),
		SweepGrace:     getEnvDuration("SWEEP_GRACE", 15*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.StorageDir == "" {
		return fmt.Errorf("STORAGE_DIR cannot be empty")
	}
	if c.MaxUploadBytes <= 0 || c.MaxUploadBytes > domain.MaxImageBytes {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be in (0, %d]", domain.MaxImageBytes)
	}
	if c.SweepInterval < 0 || c.SweepGrace < 0 {
		return fmt.Errorf("SWEEP_INTERVAL and SWEEP_GRACE cannot be negative")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
