package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all server settings in correct types
type Config struct {
	Port                   string
	TempDir                string
	StreamTimeout          time.Duration
	MaxConcurrentDownloads int
	QueueDepth             int
	MaxArtifactAge         time.Duration
	JanitorInterval        time.Duration
}

// Load: The only way to get config in the app
func Load() *Config {
	cfg := &Config{
		Port:                   getEnv("PORT", ":3001"),
		TempDir:                getEnv("TEMP_DIR", "temp"),
		StreamTimeout:          time.Duration(getEnvAsInt("STREAM_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxConcurrentDownloads: getEnvAsInt("MAX_CONCURRENT_DOWNLOADS", 3),
		QueueDepth:             getEnvAsInt("PROGRESS_QUEUE_DEPTH", 256),
		MaxArtifactAge:         time.Duration(getEnvAsInt("MAX_ARTIFACT_AGE_MINUTES", 30)) * time.Minute,
		JanitorInterval:        time.Duration(getEnvAsInt("JANITOR_INTERVAL_MINUTES", 5)) * time.Minute,
	}

	// 🛡️ Post-load Validation
	validate(cfg)

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	str := getEnv(key, "")
	if val, err := strconv.Atoi(str); err == nil {
		return val
	}
	return fallback
}

// validate ensures the server won't crash due to misconfiguration
func validate(cfg *Config) {
	if cfg.MaxConcurrentDownloads < 1 {
		log.Println("⚠️ Warning: MAX_CONCURRENT_DOWNLOADS must be at least 1. Resetting to 3.")
		cfg.MaxConcurrentDownloads = 3
	}
	if cfg.QueueDepth < 1 {
		log.Println("⚠️ Warning: PROGRESS_QUEUE_DEPTH must be at least 1. Resetting to 256.")
		cfg.QueueDepth = 256
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 30 * time.Second
	}
}
