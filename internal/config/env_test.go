package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	if got := GetEnv("DEPLOYD_TEST_NONEXISTENT_VAR", "default"); got != "default" {
		t.Errorf("Expected 'default', got %q", got)
	}

	t.Setenv("DEPLOYD_TEST_GET_ENV", "custom")
	if got := GetEnv("DEPLOYD_TEST_GET_ENV", "default"); got != "custom" {
		t.Errorf("Expected 'custom', got %q", got)
	}
}

func TestGetIntEnv(t *testing.T) {
	if got := GetIntEnv("DEPLOYD_TEST_NONEXISTENT_INT", 42); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}

	t.Setenv("DEPLOYD_TEST_INT_ENV", "123")
	if got := GetIntEnv("DEPLOYD_TEST_INT_ENV", 42); got != 123 {
		t.Errorf("Expected 123, got %d", got)
	}

	t.Setenv("DEPLOYD_TEST_INVALID_INT", "not-a-number")
	if got := GetIntEnv("DEPLOYD_TEST_INVALID_INT", 42); got != 42 {
		t.Errorf("Expected 42 for invalid int, got %d", got)
	}
}

func TestGetBoolEnv(t *testing.T) {
	if got := GetBoolEnv("DEPLOYD_TEST_NONEXISTENT_BOOL", true); !got {
		t.Error("Expected default true")
	}

	t.Setenv("DEPLOYD_TEST_BOOL_ENV", "1")
	if got := GetBoolEnv("DEPLOYD_TEST_BOOL_ENV", false); !got {
		t.Error("Expected true for '1'")
	}

	t.Setenv("DEPLOYD_TEST_INVALID_BOOL", "maybe")
	if got := GetBoolEnv("DEPLOYD_TEST_INVALID_BOOL", false); got {
		t.Error("Expected default false for invalid bool")
	}
}

func TestGetDurationEnv(t *testing.T) {
	defaultDuration := 5 * time.Second

	if got := GetDurationEnv("DEPLOYD_TEST_NONEXISTENT_DURATION", defaultDuration); got != defaultDuration {
		t.Errorf("Expected %v, got %v", defaultDuration, got)
	}

	t.Setenv("DEPLOYD_TEST_DURATION_ENV", "300s")
	if got := GetDurationEnv("DEPLOYD_TEST_DURATION_ENV", defaultDuration); got != 300*time.Second {
		t.Errorf("Expected 300s, got %v", got)
	}

	t.Setenv("DEPLOYD_TEST_INVALID_DURATION", "not-a-duration")
	if got := GetDurationEnv("DEPLOYD_TEST_INVALID_DURATION", defaultDuration); got != defaultDuration {
		t.Errorf("Expected %v for invalid duration, got %v", defaultDuration, got)
	}
}

func TestGetSecretFile(t *testing.T) {
	if got := GetSecretFile(""); got != "" {
		t.Errorf("Expected empty string for empty path, got %q", got)
	}
	if got := GetSecretFile("/nonexistent/path/to/secret"); got != "" {
		t.Errorf("Expected empty string for nonexistent file, got %q", got)
	}

	path := filepath.Join(t.TempDir(), "jwt-secret")
	if err := os.WriteFile(path, []byte("s3cret\n"), 0o600); err != nil {
		t.Fatalf("Failed to write secret: %v", err)
	}
	if got := GetSecretFile(path); got != "s3cret" {
		t.Errorf("Expected %q, got %q", "s3cret", got)
	}
}

func TestLoadServiceConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_DIR", "/etc/deployd")
	cfg := LoadServiceConfig()

	if cfg.UsersFile != "/etc/deployd/users.json" {
		t.Errorf("Expected users file under config dir, got %q", cfg.UsersFile)
	}
	if cfg.Tools.ShellTimeout != 30*time.Second {
		t.Errorf("Expected shell timeout 30s, got %v", cfg.Tools.ShellTimeout)
	}
	if cfg.Tools.RemoteTimeout != 300*time.Second {
		t.Errorf("Expected remote timeout 300s, got %v", cfg.Tools.RemoteTimeout)
	}
	if cfg.MaxConcurrentJobs != 0 {
		t.Errorf("Expected unlimited concurrency by default, got %d", cfg.MaxConcurrentJobs)
	}
}
