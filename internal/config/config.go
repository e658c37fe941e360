package config

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv       string
	DBPath       string
	DBDriver     string
	RedisAddr    string
	HTTPPort     int
	CacheTTL     time.Duration
	SSEKeepAlive time.Duration
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *Config {
	return &Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		DBPath:       getEnv("DB_PATH", "./data/profiles.db"),
		DBDriver:     getEnv("DB_DRIVER", "sqlite3"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		HTTPPort:     getEnvInt("HTTP_PORT", 8080),
		CacheTTL:     getEnvDuration("CACHE_TTL", time.Minute),
		SSEKeepAlive: getEnvDuration("SSE_KEEPALIVE", 20*time.Second),
	}
}

// DSN builds the sqlite data source name with foreign keys enforced.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite3" {
		return "file:" + c.DBPath + "?_foreign_keys=on"
	}
	return c.DBPath
}

// NewLogger creates a new Zap logger based on the config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return val
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return val
}
