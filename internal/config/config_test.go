package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Server:  ServerConfig{Port: "8080"},
		Auth:    AuthConfig{JWTSecret: "secret"},
		Backend: BackendConfig{BaseURL: "http://backend"},
		Payment: PaymentConfig{GatewayURL: "http://gateway"},
		Draft:   DraftConfig{Driver: DraftMemory},
		Session: SessionConfig{
			IdleTimeout: time.Minute,
			CalendarTZ:  "Asia/Seoul",
		},
		LogLevel: "info",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "JWT_SECRET"},
		{name: "missing gateway", mutate: func(c *Config) { c.Payment.GatewayURL = "" }, wantErr: "PAYMENT_GATEWAY_URL"},
		{name: "unknown driver", mutate: func(c *Config) { c.Draft.Driver = "redis" }, wantErr: "draft driver"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Draft.Driver = DraftPostgres }, wantErr: "DATABASE_URL"},
		{name: "file driver", mutate: func(c *Config) {
			c.Draft.Driver = DraftFile
			c.Draft.Dir = "/tmp/drafts"
		}},
		{name: "bad zone", mutate: func(c *Config) { c.Session.CalendarTZ = "Mars/Olympus" }, wantErr: "CALENDAR_TZ"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "verbose" }, wantErr: "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PAYMENT_GATEWAY_URL", "http://gateway")
	t.Setenv("BACKEND_TIMEOUT", "5")
	t.Setenv("SESSION_IDLE_TIMEOUT", "2m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DRAFT_DRIVER", "MEMORY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Timeout != 5*time.Second {
		t.Errorf("backend timeout = %v", cfg.Backend.Timeout)
	}
	if cfg.Session.IdleTimeout != 2*time.Minute {
		t.Errorf("idle timeout = %v", cfg.Session.IdleTimeout)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Draft.Driver != DraftMemory {
		t.Errorf("driver = %q", cfg.Draft.Driver)
	}
	if cfg.Payment.PG != "html5_inicis" {
		t.Errorf("pg = %q", cfg.Payment.PG)
	}
}
