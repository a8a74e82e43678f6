package config

import (
	"os"
	"strconv"
	"time"
)

// ObjectStoreConfig targets the S3-compatible bucket holding profile pictures.
type ObjectStoreConfig struct {
	Region        string
	Bucket        string
	Endpoint      string
	PublicBaseURL string
}

// Config captures the runtime configuration for the BetweenUs backend service.
type Config struct {
	AppPort int

	RecordStoreURL           string
	RecordStoreAdminEmail    string
	RecordStoreAdminPassword string
	RecordStoreTimeout       time.Duration

	SessionDatabaseURL string
	SessionTTL         time.Duration

	ObjectStore ObjectStoreConfig

	ServerTokenSecret string

	RateLimitPerMinute int
	RateLimitBurst     int

	LogLevel string
}

// Load reads configuration from environment variables, applying sensible defaults
// for local development while allowing overrides through environment variables.
func Load() (Config, error) {
	cfg := Config{
		AppPort:                  getInt("BETWEENUS_PORT", 8080),
		RecordStoreURL:           getString("BETWEENUS_RECORD_STORE_URL", "http://localhost:8090"),
		RecordStoreAdminEmail:    getString("BETWEENUS_RECORD_STORE_ADMIN_EMAIL", ""),
		RecordStoreAdminPassword: getString("BETWEENUS_RECORD_STORE_ADMIN_PASSWORD", ""),
		RecordStoreTimeout:       getDuration("BETWEENUS_RECORD_STORE_TIMEOUT", 5*time.Second),
		SessionDatabaseURL:       getString("BETWEENUS_SESSION_DATABASE_URL", ""),
		SessionTTL:               getDuration("BETWEENUS_SESSION_TTL", 30*24*time.Hour),
		ObjectStore: ObjectStoreConfig{
			Region:        getString("BETWEENUS_OBJECT_STORE_REGION", "us-east-1"),
			Bucket:        getString("BETWEENUS_OBJECT_STORE_BUCKET", ""),
			Endpoint:      getString("BETWEENUS_OBJECT_STORE_ENDPOINT", ""),
			PublicBaseURL: getString("BETWEENUS_OBJECT_STORE_PUBLIC_URL", ""),
		},
		ServerTokenSecret:  getString("BETWEENUS_SERVER_TOKEN_SECRET", ""),
		RateLimitPerMinute: getInt("BETWEENUS_RATE_LIMIT_PER_MINUTE", 60),
		RateLimitBurst:     getInt("BETWEENUS_RATE_LIMIT_BURST", 10),
		LogLevel:           getString("BETWEENUS_LOG_LEVEL", "info"),
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
