// Package testkit spins up throwaway Postgres and Redis instances for
// integration tests, backed by testcontainers with env-var escape hatches
// for pointing tests at externally managed services.
package testkit

import (
	"os"
	"strconv"
	"time"
)

// Config controls how the test harness provisions its backing services.
type Config struct {
	PostgresImage string
	RedisImage    string

	// ExternalPostgresDSN and ExternalRedisAddr, when non-empty, bypass
	// container startup and point the harness at running services.
	ExternalPostgresDSN string
	ExternalRedisAddr   string

	StartupTimeout time.Duration
	KeepContainers bool // leave containers running after the test run for inspection
}

// ConfigFromEnv assembles a Config from TEST_* environment variables,
// falling back to pinned defaults.
func ConfigFromEnv() Config {
	return Config{
		PostgresImage:       stringFromEnv("TEST_POSTGRES_IMAGE", "postgres:18.1-alpine"),
		RedisImage:          stringFromEnv("TEST_REDIS_IMAGE", "redis:8.4.0-alpine"),
		ExternalPostgresDSN: os.Getenv("TEST_POSTGRES_DSN"),
		ExternalRedisAddr:   os.Getenv("TEST_REDIS_ADDR"),
		StartupTimeout:      durationFromEnv("TEST_CONTAINER_TIMEOUT", 2*time.Minute),
		KeepContainers:      boolFromEnv("TEST_KEEP_CONTAINERS"),
	}
}

func stringFromEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func boolFromEnv(key string) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && b
}
