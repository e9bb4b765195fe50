package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port          int
	DBPath        string
	EngineURL     string
	Region        string
	QuotaDebounce time.Duration
	RetentionDays int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnvInt("BRANDLENS_PORT", 8080),
		DBPath:        ExpandPath(getEnv("BRANDLENS_DB_PATH", "./data/brandlens.db")),
		EngineURL:     strings.TrimRight(getEnv("BRANDLENS_ENGINE_URL", "http://127.0.0.1:8765"), "/"),
		Region:        getEnv("BRANDLENS_REGION", "local"),
		QuotaDebounce: time.Duration(getEnvInt("BRANDLENS_QUOTA_DEBOUNCE_MS", 500)) * time.Millisecond,
		RetentionDays: getEnvInt("BRANDLENS_RETENTION_DAYS", 90),
	}
}

// EventsURL derives the engine's websocket event endpoint from the
// HTTP base URL.
func (c *Config) EventsURL() string {
	url := c.EngineURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + "/ws/events"
}

// ExpandPath expands a leading ~ to the user's home directory and
// cleans the result.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return filepath.Clean(path)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
