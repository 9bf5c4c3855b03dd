package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ServerPort   int
	DatabasePath string
	AppEnv       string
	LogLevel     string

	JWTSecret string
	TokenTTL  time.Duration // zero means tokens carry no expiry

	CORSAllowedOrigins []string

	// PublicMessageList exposes GET /admin/messages without the auth gate.
	PublicMessageList bool

	MessageRetention     time.Duration // zero disables the purge job
	MessagePurgeSchedule string
}

// IsProduction reports whether cookies should be marked Secure.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load loads configuration from environment variables or sets defaults.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	tokenTTL, err := getEnvAsDuration("TOKEN_TTL", 0)
	if err != nil {
		return nil, err
	}

	retention, err := getEnvAsDuration("MESSAGE_RETENTION", 0)
	if err != nil {
		return nil, err
	}

	publicMessages, err := strconv.ParseBool(getEnv("PUBLIC_MESSAGE_LIST", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid PUBLIC_MESSAGE_LIST: %w", err)
	}

	return &Config{
		ServerPort:           port,
		DatabasePath:         getEnv("DATABASE_PATH", "./blog.db"),
		AppEnv:               getEnv("APP_ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		TokenTTL:             tokenTTL,
		CORSAllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		PublicMessageList:    publicMessages,
		MessageRetention:     retention,
		MessagePurgeSchedule: getEnv("MESSAGE_PURGE_SCHEDULE", "@daily"),
	}, nil
}

// Validate checks the settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.TokenTTL < 0 {
		return fmt.Errorf("TOKEN_TTL must not be negative")
	}
	if c.MessageRetention < 0 {
		return fmt.Errorf("MESSAGE_RETENTION must not be negative")
	}
	return nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
