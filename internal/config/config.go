package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the chat backend.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// Presence knobs. The eviction threshold should stay at roughly twice the
	// heartbeat interval so network jitter does not cause false evictions.
	HeartbeatInterval time.Duration
	EvictionThreshold time.Duration
	SweepInterval     time.Duration

	JWTSecret string
	JWTExpiry time.Duration

	DatabaseURL string
	RedisURL    string

	MediaDir     string
	MediaBaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "widechat"),
		AllowAnyOrigin:    false,
		ShutdownTimeout:   15 * time.Second,
		HeartbeatInterval: 15 * time.Second,
		EvictionThreshold: 30 * time.Second,
		SweepInterval:     15 * time.Second,
		JWTSecret:         trimmedEnv("JWT_SECRET"),
		JWTExpiry:         24 * time.Hour,
		DatabaseURL:       trimmedEnv("DATABASE_URL"),
		RedisURL:          trimmedEnv("REDIS_URL"),
		MediaDir:          envOrDefault("MEDIA_DIR", ".media"),
		MediaBaseURL:      envOrDefault("MEDIA_BASE_URL", "http://localhost:8080/media"),
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.HeartbeatInterval, err = durationFromEnv("PRESENCE_HEARTBEAT_INTERVAL", cfg.HeartbeatInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.EvictionThreshold, err = durationFromEnv("PRESENCE_EVICTION_THRESHOLD", cfg.EvictionThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.SweepInterval, err = durationFromEnv("PRESENCE_SWEEP_INTERVAL", cfg.SweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.JWTExpiry, err = durationFromEnv("JWT_EXPIRY", cfg.JWTExpiry)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.HeartbeatInterval < time.Second {
		return Config{}, fmt.Errorf("PRESENCE_HEARTBEAT_INTERVAL must be at least 1s")
	}
	if cfg.SweepInterval < time.Second {
		return Config{}, fmt.Errorf("PRESENCE_SWEEP_INTERVAL must be at least 1s")
	}
	if cfg.EvictionThreshold <= cfg.HeartbeatInterval {
		return Config{}, fmt.Errorf("PRESENCE_EVICTION_THRESHOLD must exceed the heartbeat interval")
	}
	if cfg.JWTExpiry < time.Minute {
		return Config{}, fmt.Errorf("JWT_EXPIRY must be at least 1m")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
