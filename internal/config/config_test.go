package config

import (
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("POSTGRES_HOST", "testhost")
	t.Setenv("CACHE_EVENTS_TTL", "45s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://holopass.app, https://staging.holopass.app,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}
	if !cfg.Database.Postgres.Configured() {
		t.Errorf("Database.Postgres.Configured() = false, want true")
	}
	if cfg.Cache.EventsTTL != 45*time.Second {
		t.Errorf("Cache.EventsTTL = %v, want %v", cfg.Cache.EventsTTL, 45*time.Second)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Errorf("Server.AllowedOrigins = %v, want 2 entries", cfg.Server.AllowedOrigins)
	}
	if cfg.QR.TTL != 24*time.Hour {
		t.Errorf("QR.TTL = %v, want 24h", cfg.QR.TTL)
	}
	if cfg.Auth.Domain != "holopass.app" {
		t.Errorf("Auth.Domain = %v, want holopass.app", cfg.Auth.Domain)
	}
}

func TestLoadConfig_DemoModeByDefault(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Database.Postgres.Configured() {
		t.Errorf("Postgres should not be configured without DATABASE_URL or POSTGRES_HOST")
	}
	if cfg.Eventbrite.Configured() {
		t.Errorf("Eventbrite should not be configured without a token")
	}
	if cfg.Chain.Configured() {
		t.Errorf("Chain should not be configured without an RPC endpoint")
	}
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "auth required without secret",
			env:  map[string]string{"AUTH_REQUIRED": "true"},
		},
		{
			name: "stamp mirroring without signer",
			env:  map[string]string{"CHAIN_MIRROR_STAMPS": "true", "CHAIN_RPC_PRIMARY": "http://localhost:8545"},
		},
		{
			name: "non-positive rate limit",
			env:  map[string]string{"RATE_LIMIT_PER_MINUTE": "-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Errorf("LoadConfig() expected error")
			}
		})
	}
}

func TestWeb3Configured(t *testing.T) {
	tests := []struct {
		projectID string
		want      bool
	}{
		{"", false},
		{"demo-project-id", false},
		{"3f2a9c", true},
	}

	for _, tt := range tests {
		t.Run(tt.projectID, func(t *testing.T) {
			cfg := AuthConfig{WalletConnectProjectID: tt.projectID}
			if got := cfg.Web3Configured(); got != tt.want {
				t.Errorf("Web3Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPostgresConnString(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: "5433", Database: "holopass", User: "hp", Password: "secret"}
	want := "postgres://hp:secret@db:5433/holopass?sslmode=disable"
	if got := cfg.ConnString(); got != want {
		t.Errorf("ConnString() = %v, want %v", got, want)
	}

	cfg.URL = "postgres://override"
	if got := cfg.ConnString(); got != "postgres://override" {
		t.Errorf("ConnString() = %v, want URL override", got)
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{"returns integer when valid", "TEST_INT", 100, "200", 200},
		{"returns default when invalid", "TEST_INT_INVALID", 100, "invalid", 100},
		{"returns default when not set", "TEST_INT_NOTSET", 100, "", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}
			if got := getEnvAsInt(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"true literal", "true", false, true},
		{"numeric one", "1", false, true},
		{"false literal", "false", true, false},
		{"invalid keeps default", "maybe", true, true},
		{"unset keeps default", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_BOOL", tt.envValue)
			}
			if got := getEnvAsBool("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvAsBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{"returns duration when valid", "TEST_DURATION", 10 * time.Second, "30s", 30 * time.Second},
		{"returns default when invalid", "TEST_DURATION_INVALID", 10 * time.Second, "invalid", 10 * time.Second},
		{"returns default when not set", "TEST_DURATION_NOTSET", 10 * time.Second, "", 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}
			if got := getEnvAsDuration(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnvAsDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}
