// Package config loads matching's process configuration from the
// environment, with the same flat env-var/default-value shape used
// across the rest of the platform.
package config

import (
	"os"
	"strconv"

	"github.com/exchange/clob/pkg/tracing"
)

// Config is matching's full process configuration.
type Config struct {
	// Service
	ServiceName string
	HTTPPort    int
	MetricsPort int

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Streams
	InputStream   string
	OutputStream  string
	ConsumerGroup string
	ConsumerName  string

	// Worker
	WorkerID int64

	// Postgres, for startup order recovery (internal/recovery)
	DatabaseDSN string

	// Tracing
	Tracing tracing.Config

	// Expiry sweep (internal/scheduler)
	ExpirySweepCron string
}

// Load reads Config from the environment, falling back to defaults
// suited to local development.
func Load() *Config {
	return &Config{
		ServiceName: getEnv("SERVICE_NAME", "clob-matching"),
		HTTPPort:    getEnvInt("HTTP_PORT", 8082),
		MetricsPort: getEnvInt("METRICS_PORT", 9082),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		InputStream:   getEnv("INPUT_STREAM", "clob:orders"),
		OutputStream:  getEnv("OUTPUT_STREAM", "clob:events"),
		ConsumerGroup: getEnv("CONSUMER_GROUP", "matching-group"),
		ConsumerName:  getEnv("CONSUMER_NAME", "matching-1"),

		WorkerID: int64(getEnvInt("WORKER_ID", 1)),

		DatabaseDSN: getEnv("DATABASE_DSN", "postgres://localhost:5432/exchange?sslmode=disable"),

		Tracing: tracing.Config{
			ServiceName: getEnv("SERVICE_NAME", "clob-matching"),
			Endpoint:    getEnv("JAEGER_ENDPOINT", ""),
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			SampleRate:  getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},

		// Every minute by default; CancelExpiredOrders is cheap enough
		// to run this often even with many symbols.
		ExpirySweepCron: getEnv("EXPIRY_SWEEP_CRON", "* * * * *"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
