// Package config builds runtime configuration from the environment so main
// stays lean. A .env file, when present, is loaded by main via godotenv
// before FromEnv runs.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything the server needs to wire its dependencies.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  string
	ActivityTopic string
	JWTSigningKey string

	TxTimeout time.Duration

	// GeneralNotificationWindow is the dedup window for the one-shot
	// "audit scheduled" broadcast.
	GeneralNotificationWindow time.Duration
}

// FromEnv reads configuration from environment variables, applying
// development defaults where unset.
func FromEnv() Config {
	cfg := Config{
		Addr:                      getEnv("AUDITFLOW_ADDR", ":8080"),
		DatabaseURL:               os.Getenv("AUDITFLOW_DATABASE_URL"),
		RedisURL:                  os.Getenv("AUDITFLOW_REDIS_URL"),
		KafkaBrokers:              os.Getenv("AUDITFLOW_KAFKA_BROKERS"),
		ActivityTopic:             getEnv("AUDITFLOW_ACTIVITY_TOPIC", "auditflow.activity"),
		JWTSigningKey:             getEnv("AUDITFLOW_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TxTimeout:                 getDuration("AUDITFLOW_TX_TIMEOUT", 5*time.Second),
		GeneralNotificationWindow: getDuration("AUDITFLOW_GENERAL_NOTIFICATION_WINDOW", 5*time.Minute),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
