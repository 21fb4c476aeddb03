package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	LedgerBackendRedis  = "redis"
	LedgerBackendDynamo = "dynamodb"
	LedgerBackendMemory = "memory"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	DynamoDB DynamoDBConfig
	JWT      JWTConfig
	Cookie   CookieConfig
	Ledger   LedgerConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// AllowedOrigins lists the origins CORS responses are granted to.
	// Cookies ride on cross-site requests (SameSite=None), so origins
	// not listed here get no CORS headers at all.
	AllowedOrigins []string
}

type DatabaseConfig struct {
	DSN string
}

type RedisConfig struct {
	Endpoint string
	Password string
	DB       int
}

type DynamoDBConfig struct {
	Endpoint  string
	Region    string
	TableName string
}

type JWTConfig struct {
	SecretKey     string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	// ClockSkew is the leeway applied to expiry checks at verification time.
	ClockSkew time.Duration
}

type CookieConfig struct {
	Domain string
}

type LedgerConfig struct {
	Backend string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", nil),
		},
		Database: DatabaseConfig{
			DSN: getEnv("DATABASE_DSN", ""),
		},
		Redis: RedisConfig{
			Endpoint: getEnv("REDIS_ENDPOINT", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		DynamoDB: DynamoDBConfig{
			Endpoint:  getEnv("DYNAMODB_ENDPOINT", ""),
			Region:    getEnv("DYNAMODB_REGION", "us-east-1"),
			TableName: getEnv("DYNAMODB_TABLE_NAME", "NDAuthTable"),
		},
		JWT: JWTConfig{
			SecretKey:     getEnv("JWT_SECRET_KEY", ""),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
			ClockSkew:     getEnvAsDuration("JWT_CLOCK_SKEW", 0),
		},
		Cookie: CookieConfig{
			Domain: getEnv("COOKIE_DOMAIN", ""),
		},
		Ledger: LedgerConfig{
			Backend: getEnv("LEDGER_BACKEND", LedgerBackendRedis),
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is required")
	}

	if len(cfg.JWT.SecretKey) < 32 {
		return nil, fmt.Errorf("JWT_SECRET_KEY must be at least 32 bytes (256 bits)")
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("DATABASE_DSN environment variable is required")
	}

	switch cfg.Ledger.Backend {
	case LedgerBackendRedis, LedgerBackendDynamo, LedgerBackendMemory:
	default:
		return nil, fmt.Errorf("unknown LEDGER_BACKEND %q", cfg.Ledger.Backend)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
