// Package config provides configuration management for the AvaxSlap backend.
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

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Wallet    WalletConfig
	Auth      AuthConfig
	Twitter   TwitterConfig
	Chain     ChainConfig
	Chat      ChatConfig
	Archive   ArchiveConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
	// FrontendOrigin is where OAuth callbacks redirect back to
	FrontendOrigin string
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// WalletConfig holds wallet connector configuration published to the front end
type WalletConfig struct {
	WalletConnectProjectID string
	AppName                string
	AppDescription         string
	AppURL                 string
	Connectors             []string
	ChainIDs               []int64
	ChallengeTTL           time.Duration
}

// AuthConfig holds wallet session token configuration
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// TwitterConfig holds Twitter OAuth 2.0 configuration
type TwitterConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	StateTTL     time.Duration
}

// Enabled reports whether Twitter sign-in is configured
func (c TwitterConfig) Enabled() bool {
	return c.ClientID != ""
}

// ChainConfig holds Avalanche RPC configuration for balance lookups
type ChainConfig struct {
	RPCURL          string
	ChainID         int64
	Timeout         time.Duration
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// ChatConfig holds TrollBox configuration
type ChatConfig struct {
	HistoryLimit  int
	MaxBodyLength int
	SendPerMinute int
}

// ArchiveConfig holds realtime event archiver configuration
type ArchiveConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	MaxRetries    int
}

// RateLimitConfig holds per-client HTTP rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
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

	frontend := getEnv("FRONTEND_ORIGIN", "http://localhost:3000")

	config := &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			FrontendOrigin: frontend,
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{frontend}),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "avaxslap"),
				User:           getEnv("POSTGRES_USER", "avaxslap"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 25),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "avaxslap"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Wallet: WalletConfig{
			WalletConnectProjectID: getEnv("WALLETCONNECT_PROJECT_ID", ""),
			AppName:                getEnv("APP_NAME", "AvaxSlap"),
			AppDescription:         getEnv("APP_DESCRIPTION", "AvaxSlap - Slap your way to the top on Avalanche"),
			AppURL:                 getEnv("APP_URL", "https://avaxslap.com"),
			Connectors:             getEnvAsList("WALLET_CONNECTORS", []string{"core", "metamask", "walletconnect"}),
			ChainIDs:               getEnvAsInt64List("WALLET_CHAIN_IDS", []int64{43114, 43113}),
			ChallengeTTL:           getEnvAsDuration("WALLET_CHALLENGE_TTL", 5*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "avaxslap"),
			TokenTTL:  getEnvAsDuration("JWT_TTL", 24*time.Hour),
		},
		Twitter: TwitterConfig{
			ClientID:     getEnv("TWITTER_CLIENT_ID", ""),
			ClientSecret: getEnv("TWITTER_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("TWITTER_REDIRECT_URL", "http://localhost:8080/api/auth/twitter/callback"),
			AuthURL:      getEnv("TWITTER_AUTH_URL", "https://twitter.com/i/oauth2/authorize"),
			TokenURL:     getEnv("TWITTER_TOKEN_URL", "https://api.twitter.com/2/oauth2/token"),
			UserInfoURL:  getEnv("TWITTER_USERINFO_URL", "https://api.twitter.com/2/users/me"),
			StateTTL:     getEnvAsDuration("TWITTER_STATE_TTL", 10*time.Minute),
		},
		Chain: ChainConfig{
			RPCURL:          getEnv("AVALANCHE_RPC_URL", "https://api.avax.network/ext/bc/C/rpc"),
			ChainID:         int64(getEnvAsInt("AVALANCHE_CHAIN_ID", 43114)),
			Timeout:         getEnvAsDuration("AVALANCHE_RPC_TIMEOUT", 10*time.Second),
			BreakerFailures: getEnvAsInt("AVALANCHE_BREAKER_FAILURES", 5),
			BreakerTimeout:  getEnvAsDuration("AVALANCHE_BREAKER_TIMEOUT", 30*time.Second),
		},
		Chat: ChatConfig{
			HistoryLimit:  getEnvAsInt("CHAT_HISTORY_LIMIT", 50),
			MaxBodyLength: getEnvAsInt("CHAT_MAX_BODY_LENGTH", 500),
			SendPerMinute: getEnvAsInt("CHAT_SEND_PER_MINUTE", 20),
		},
		Archive: ArchiveConfig{
			BatchSize:     getEnvAsInt("ARCHIVE_BATCH_SIZE", 100),
			FlushInterval: getEnvAsDuration("ARCHIVE_FLUSH_INTERVAL", 5*time.Second),
			MaxRetries:    getEnvAsInt("ARCHIVE_MAX_RETRIES", 5),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 300),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 50),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// Validate checks settings the server cannot start without.
// A missing WalletConnect project id is fatal: the connector catalogue would advertise a connector that cannot pair.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Wallet.WalletConnectProjectID) == "" && containsFold(c.Wallet.Connectors, "walletconnect") {
		problems = append(problems, "WALLETCONNECT_PROJECT_ID is required when the walletconnect connector is enabled")
	}
	if len(c.Auth.JWTSecret) < 32 {
		problems = append(problems, "JWT_SECRET must be at least 32 characters")
	}
	if c.Chat.HistoryLimit <= 0 {
		problems = append(problems, "CHAT_HISTORY_LIMIT must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RedisAddr returns host:port for the Redis client
func (c RedisConfig) RedisAddr() string {
	return c.Host + ":" + c.Port
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), want) {
			return true
		}
	}
	return false
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

// getEnvAsList splits a comma-separated variable, dropping blanks
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

// getEnvAsInt64List parses a comma-separated list of integers; any bad entry yields the default
func getEnvAsInt64List(key string, defaultValue []int64) []int64 {
	parts := getEnvAsList(key, nil)
	if parts == nil {
		return defaultValue
	}

	out := make([]int64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, v)
	}
	return out
}
