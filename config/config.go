package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Webhook   WebhookConfig
	Snapshot  SnapshotConfig
	AdBackend AdBackendConfig
	AWS       AWSConfig
	Stream    StreamConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings for the air log.
// Leave URL and Host empty to run without Postgres (air log disabled).
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// WebhookConfig holds inbound ad-server webhook settings.
type WebhookConfig struct {
	Secret            string // shared HMAC secret; webhooks are refused without it
	ToleranceSec      int    // accepted clock skew for the signed timestamp
	IdempotencyTTLSec int    // window in which duplicate delivery keys are suppressed
}

// SnapshotConfig holds room snapshot store settings.
type SnapshotConfig struct {
	TTLSec int // snapshot expiry in Redis after last write
}

// AdBackendConfig holds the outbound ad-server API settings (idle stop call).
type AdBackendConfig struct {
	BaseURL    string
	TimeoutSec int
}

// StreamConfig holds viewer stream settings.
type StreamConfig struct {
	KeepAliveSec int // interval between SSE keep-alive comments
}

// AWSConfig holds AWS credentials and the creatives bucket for ad images.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	CreativesBucket      string
	CreativesPrivate     bool // pre-sign creative URLs instead of serving public object URLs
	PresignExpireMinutes int
}

// DSN returns the PostgreSQL connection string, or "" when no database is configured.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Host == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "adsync"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Webhook: WebhookConfig{
			Secret:            getEnv("AD_WEBHOOK_SECRET", ""),
			ToleranceSec:      getEnvInt("AD_SIGNATURE_TOLERANCE_SEC", 300),
			IdempotencyTTLSec: getEnvInt("AD_IDEMPOTENCY_TTL_SEC", 300),
		},
		Snapshot: SnapshotConfig{
			TTLSec: getEnvInt("AD_SNAPSHOT_TTL_SEC", 600),
		},
		AdBackend: AdBackendConfig{
			BaseURL:    strings.TrimRight(getEnv("AD_BACKEND_BASE_URL", ""), "/"),
			TimeoutSec: getEnvInt("AD_BACKEND_TIMEOUT_SEC", 5),
		},
		Stream: StreamConfig{
			KeepAliveSec: getEnvInt("STREAM_KEEPALIVE_SEC", 10),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			CreativesBucket:      getEnv("AWS_S3_CREATIVES_BUCKET", ""),
			CreativesPrivate:     getEnvBool("AWS_S3_CREATIVES_PRIVATE", false),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
