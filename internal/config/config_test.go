package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home dir: %v", err)
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		// Empty path
		{"empty", "", ""},

		// Absolute paths (unchanged except for cleaning)
		{"absolute path", "/usr/local/bin", "/usr/local/bin"},
		{"absolute with trailing slash", "/usr/local/bin/", "/usr/local/bin"},

		// Home expansion
		{"tilde only", "~", home},
		{"tilde with path", "~/documents", filepath.Join(home, "documents")},
		{"tilde nested", "~/a/b/c", filepath.Join(home, "a/b/c")},

		// Relative paths (cleaned but not made absolute)
		{"relative", "foo/bar", "foo/bar"},
		{"relative with dots", "foo/../bar", "bar"},
		{"relative with double dots", "./foo/./bar", "foo/bar"},

		// Path cleaning
		{"redundant slashes", "/usr//local///bin", "/usr/local/bin"},
		{"dot segments", "/usr/./local/../bin", "/usr/bin"},

		// Edge cases
		{"tilde in middle (not expanded)", "/home/~user", "/home/~user"},
		{"tilde not at start (not expanded)", "foo/~/bar", "foo/~/bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandPath(tt.input)
			if got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name       string
		envKey     string
		envValue   string
		defaultVal int
		want       int
	}{
		{"empty env", "TEST_INT_EMPTY", "", 42, 42},
		{"valid int", "TEST_INT_VALID", "123", 42, 123},
		{"invalid int", "TEST_INT_INVALID", "not-a-number", 42, 42},
		{"negative int", "TEST_INT_NEG", "-5", 42, -5},
		{"zero", "TEST_INT_ZERO", "0", 42, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.envKey, tt.envValue)
				defer os.Unsetenv(tt.envKey)
			} else {
				os.Unsetenv(tt.envKey)
			}

			got := getEnvInt(tt.envKey, tt.defaultVal)
			if got != tt.want {
				t.Errorf("getEnvInt(%q, %d) = %d, want %d", tt.envKey, tt.defaultVal, got, tt.want)
			}
		})
	}
}

func TestEventsURL(t *testing.T) {
	tests := []struct {
		name      string
		engineURL string
		want      string
	}{
		{"http", "http://127.0.0.1:8765", "ws://127.0.0.1:8765/ws/events"},
		{"https", "https://engine.example.com", "wss://engine.example.com/ws/events"},
		{"no scheme", "engine:8765", "engine:8765/ws/events"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{EngineURL: tt.engineURL}
			if got := cfg.EventsURL(); got != tt.want {
				t.Errorf("EventsURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"BRANDLENS_PORT", "BRANDLENS_DB_PATH", "BRANDLENS_ENGINE_URL",
		"BRANDLENS_REGION", "BRANDLENS_QUOTA_DEBOUNCE_MS", "BRANDLENS_RETENTION_DAYS",
	} {
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.EngineURL != "http://127.0.0.1:8765" {
		t.Errorf("EngineURL = %q", cfg.EngineURL)
	}
	if cfg.Region != "local" {
		t.Errorf("Region = %q, want local", cfg.Region)
	}
	if cfg.QuotaDebounce != 500*time.Millisecond {
		t.Errorf("QuotaDebounce = %v, want 500ms", cfg.QuotaDebounce)
	}
	if cfg.RetentionDays != 90 {
		t.Errorf("RetentionDays = %d, want 90", cfg.RetentionDays)
	}
}

func TestLoadOverrides(t *testing.T) {
	os.Setenv("BRANDLENS_ENGINE_URL", "http://localhost:9999/")
	os.Setenv("BRANDLENS_QUOTA_DEBOUNCE_MS", "250")
	defer os.Unsetenv("BRANDLENS_ENGINE_URL")
	defer os.Unsetenv("BRANDLENS_QUOTA_DEBOUNCE_MS")

	cfg := Load()

	if cfg.EngineURL != "http://localhost:9999" {
		t.Errorf("EngineURL = %q, want trailing slash trimmed", cfg.EngineURL)
	}
	if cfg.QuotaDebounce != 250*time.Millisecond {
		t.Errorf("QuotaDebounce = %v, want 250ms", cfg.QuotaDebounce)
	}
}
