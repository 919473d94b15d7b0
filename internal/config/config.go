package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Port          int
	DataDir       string
	IconCacheDir  string
	FetchTimeout  time.Duration
	MaxIconBytes  int64
	LogLevel      string
	AllowedOrigin string
}

func Load() *Config {
	dataDir := getEnv("DATA_DIR", "/data")

	cfg := &Config{
		Port:          getEnvInt("PORT", 8080),
		DataDir:       dataDir,
		IconCacheDir:  getEnv("ICON_CACHE_DIR", filepath.Join(dataDir, "icons")),
		FetchTimeout:  time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 15)) * time.Second,
		MaxIconBytes:  getEnvInt64("MAX_ICON_BYTES", 5242880), // 5MB default
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", ""),
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
