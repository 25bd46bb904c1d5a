package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// Following 12-factor app principles, all config is loaded from environment variables
type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Backend  BackendConfig
	Payment  PaymentConfig
	Draft    DraftConfig
	Session  SessionConfig
	Tracing  bool
	LogLevel string
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
	AllowedOrigins  []string
}

type AuthConfig struct {
	JWTSecret string // HS256 key shared with the storefront login
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type PaymentConfig struct {
	GatewayURL string
	APIKey     string
	PG         string
	PayMethod  string
	Timeout    time.Duration
}

// Draft drivers.
const (
	DraftMemory   = "memory"
	DraftFile     = "file"
	DraftPostgres = "postgres"
)

type DraftConfig struct {
	Driver      string
	Dir         string
	DatabaseURL string
}

type SessionConfig struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	CalendarTZ    string
}

// Load reads configuration from environment variables. A .env file in the
// working directory, when present, fills variables that are not set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsInt("READ_TIMEOUT", 15),
			WriteTimeout:    getEnvAsInt("WRITE_TIMEOUT", 60),
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 30),
			AllowedOrigins:  getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Backend: BackendConfig{
			BaseURL: getEnv("BACKEND_URL", "http://localhost:8000"),
			Timeout: getEnvAsDuration("BACKEND_TIMEOUT", 10*time.Second),
		},
		Payment: PaymentConfig{
			GatewayURL: getEnv("PAYMENT_GATEWAY_URL", ""),
			APIKey:     getEnv("PAYMENT_API_KEY", ""),
			PG:         getEnv("PAYMENT_PG", "html5_inicis"),
			PayMethod:  getEnv("PAYMENT_PAY_METHOD", "card"),
			Timeout:    getEnvAsDuration("PAYMENT_TIMEOUT", 30*time.Second),
		},
		Draft: DraftConfig{
			Driver:      strings.ToLower(getEnv("DRAFT_DRIVER", DraftMemory)),
			Dir:         getEnv("DRAFT_DIR", "./data/drafts"),
			DatabaseURL: getEnv("DATABASE_URL", ""),
		},
		Session: SessionConfig{
			IdleTimeout:   getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),
			CalendarTZ:    getEnv("CALENDAR_TZ", "Asia/Seoul"),
		},
		Tracing:  getEnvAsBool("ENABLE_TRACING", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("PORT is required")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	if c.Backend.BaseURL == "" {
		return errors.New("BACKEND_URL is required")
	}

	if c.Payment.GatewayURL == "" {
		return errors.New("PAYMENT_GATEWAY_URL is required")
	}

	switch c.Draft.Driver {
	case DraftMemory:
	case DraftFile:
		if c.Draft.Dir == "" {
			return errors.New("DRAFT_DIR is required for the file driver")
		}
	case DraftPostgres:
		if c.Draft.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid draft driver: %s (must be memory, file, or postgres)", c.Draft.Driver)
	}

	if _, err := c.Session.Location(); err != nil {
		return fmt.Errorf("invalid CALENDAR_TZ: %w", err)
	}

	if c.Session.IdleTimeout <= 0 {
		return errors.New("SESSION_IDLE_TIMEOUT must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// Location is the zone calendar dates are read in.
func (s SessionConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.CalendarTZ)
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
