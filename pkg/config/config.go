package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DatabaseURL        string
	JWTSecret          string
	GoogleClientID     string
	GoogleClientSecret string

	// Outbound Google API limits, shared by every account
	RemoteConcurrency int
	RemoteQPS         float64
	RemoteTimeout     time.Duration
	RemotePageSize    int64

	SyncSchedule           string
	SyncSpaceConcurrency   int
	SyncAccountConcurrency int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:                   getEnv("PORT", "8080"),
		DatabaseURL:            getEnv("DATABASE_URL", buildDSN()),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		GoogleClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:     getEnv("GOOGLE_CLIENT_SECRET", ""),
		RemoteConcurrency:      getEnvInt("REMOTE_CONCURRENCY", 5),
		RemoteQPS:              getEnvFloat("REMOTE_QPS", 10),
		RemoteTimeout:          getEnvDuration("REMOTE_TIMEOUT", 30*time.Second),
		RemotePageSize:         int64(getEnvInt("REMOTE_PAGE_SIZE", 100)),
		SyncSchedule:           getEnv("SYNC_SCHEDULE", "@every 15m"),
		SyncSpaceConcurrency:   getEnvInt("SYNC_SPACE_CONCURRENCY", 4),
		SyncAccountConcurrency: getEnvInt("SYNC_ACCOUNT_CONCURRENCY", 2),
	}
}

func buildDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "chatsync"),
		getEnv("DB_SSLMODE", "disable"),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
