// Package config provides configuration management for the HoloPass backend.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// placeholderProjectID is the WalletConnect id shipped in sample env files.
const placeholderProjectID = "demo-project-id"

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Chain      ChainConfig
	Eventbrite EventbriteConfig
	Auth       AuthConfig
	QR         QRConfig
	Cache      CacheConfig
	Worker     WorkerConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Host           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration.
// When both URL and Host are empty the service runs against the in-memory demo store.
type PostgresConfig struct {
	URL            string
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// Configured reports whether a relational database has been configured.
func (c PostgresConfig) Configured() bool {
	return c.URL != "" || c.Host != ""
}

// ConnString returns the pgx connection string.
func (c PostgresConfig) ConnString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database,
	)
}

// ClickHouseConfig holds ClickHouse configuration. Analytics are disabled when Host is empty.
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// Configured reports whether attendance analytics are enabled.
func (c ClickHouseConfig) Configured() bool {
	return c.Host != ""
}

// RedisConfig holds Redis configuration. Caching falls back to no-op when Host is empty.
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// Configured reports whether Redis has been configured.
func (c RedisConfig) Configured() bool {
	return c.Host != ""
}

// ChainConfig holds the HoloPass contract configuration
type ChainConfig struct {
	ChainID          int64
	RPCPrimary       string
	RPCSecondary     string
	ContractAddress  string
	SignerPrivateKey string
	ConfirmTimeout   time.Duration
	RequestsPerSec   int
	MetadataGateway  string
	MintOnCheckIn    bool
}

// Configured reports whether on-chain reads are possible.
func (c ChainConfig) Configured() bool {
	return c.RPCPrimary != ""
}

// CanWrite reports whether on-chain writes are possible.
func (c ChainConfig) CanWrite() bool {
	return c.Configured() && c.SignerPrivateKey != ""
}

// EventbriteConfig holds the external event catalog configuration
type EventbriteConfig struct {
	Token   string
	BaseURL string
	OrgID   string
	Timeout time.Duration
}

// Configured reports whether the external catalog is enabled.
func (c EventbriteConfig) Configured() bool {
	return c.Token != ""
}

// AuthConfig holds wallet sign-in configuration
type AuthConfig struct {
	JWTSecret              string
	TokenTTL               time.Duration
	NonceTTL               time.Duration
	Required               bool
	Domain                 string
	URI                    string
	WalletConnectProjectID string
}

// Web3Configured reports whether a real WalletConnect project id is present.
func (c AuthConfig) Web3Configured() bool {
	return c.WalletConnectProjectID != "" && c.WalletConnectProjectID != placeholderProjectID
}

// QRConfig holds QR payload configuration
type QRConfig struct {
	TTL           time.Duration
	SigningSecret string
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	EventsTTL   time.Duration
	MetadataTTL time.Duration
}

// WorkerConfig holds stamp worker configuration
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	RequestsPerMinute      int // anonymous clients, keyed by remote address
	AuthenticatedPerMinute int // clients with a session token, keyed by wallet
	GlobalPerMinute        int // all clients together, Redis limiter only
	Burst                  int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				URL:            getEnv("DATABASE_URL", ""),
				Host:           getEnv("POSTGRES_HOST", ""),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "holopass"),
				User:           getEnv("POSTGRES_USER", "holopass"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", ""),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "holopass"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", ""),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Chain: ChainConfig{
			ChainID:          int64(getEnvAsInt("CHAIN_ID", 1)),
			RPCPrimary:       getEnv("CHAIN_RPC_PRIMARY", ""),
			RPCSecondary:     getEnv("CHAIN_RPC_SECONDARY", ""),
			ContractAddress:  getEnv("HOLOPASS_CONTRACT_ADDRESS", ""),
			SignerPrivateKey: getEnv("SIGNER_PRIVATE_KEY", ""),
			ConfirmTimeout:   getEnvAsDuration("CHAIN_CONFIRM_TIMEOUT", 2*time.Minute),
			RequestsPerSec:   getEnvAsInt("CHAIN_REQUESTS_PER_SEC", 10),
			MetadataGateway:  getEnv("IPFS_GATEWAY", "https://ipfs.io/ipfs/"),
			MintOnCheckIn:    getEnvAsBool("CHAIN_MIRROR_STAMPS", false),
		},
		Eventbrite: EventbriteConfig{
			Token:   getEnv("EVENTBRITE_PRIVATE_TOKEN", ""),
			BaseURL: getEnv("EVENTBRITE_BASE_URL", "https://www.eventbriteapi.com/v3"),
			OrgID:   getEnv("EVENTBRITE_ORGANIZATION_ID", ""),
			Timeout: getEnvAsDuration("EVENTBRITE_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("JWT_SECRET", ""),
			TokenTTL:               getEnvAsDuration("AUTH_TOKEN_TTL", 24*time.Hour),
			NonceTTL:               getEnvAsDuration("AUTH_NONCE_TTL", 10*time.Minute),
			Required:               getEnvAsBool("AUTH_REQUIRED", false),
			Domain:                 getEnv("AUTH_DOMAIN", "holopass.app"),
			URI:                    getEnv("AUTH_URI", "https://holopass.app"),
			WalletConnectProjectID: getEnv("WALLETCONNECT_PROJECT_ID", ""),
		},
		QR: QRConfig{
			TTL:           getEnvAsDuration("QR_TTL", 24*time.Hour),
			SigningSecret: getEnv("QR_SIGNING_SECRET", ""),
		},
		Cache: CacheConfig{
			EventsTTL:   getEnvAsDuration("CACHE_EVENTS_TTL", 30*time.Second),
			MetadataTTL: getEnvAsDuration("CACHE_METADATA_TTL", 10*time.Minute),
		},
		Worker: WorkerConfig{
			PollInterval: getEnvAsDuration("WORKER_POLL_INTERVAL", 15*time.Second),
			BatchSize:    getEnvAsInt("WORKER_BATCH_SIZE", 10),
			MaxAttempts:  getEnvAsInt("WORKER_MAX_ATTEMPTS", 5),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute:      getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
			AuthenticatedPerMinute: getEnvAsInt("RATE_LIMIT_AUTH_PER_MINUTE", 300),
			GlobalPerMinute:        getEnvAsInt("RATE_LIMIT_GLOBAL_PER_MINUTE", 6000),
			Burst:                  getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks combinations of settings that cannot work together.
func (c *Config) Validate() error {
	if c.Auth.Required && c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_REQUIRED is set but JWT_SECRET is empty")
	}
	if c.Chain.MintOnCheckIn && !c.Chain.CanWrite() {
		return fmt.Errorf("CHAIN_MIRROR_STAMPS requires CHAIN_RPC_PRIMARY and SIGNER_PRIVATE_KEY")
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimit.RequestsPerMinute)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
