package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadClient_Defaults(t *testing.T) {
	cfg, err := LoadClient("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "http://localhost:8080" {
		t.Errorf("Expected default api url, got %q", cfg.APIURL)
	}
	if cfg.Timeout() != 120*time.Second {
		t.Errorf("Expected 120s timeout, got %s", cfg.Timeout())
	}
}

func TestLoadClient_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quill.yaml")
	body := "api_url: http://example.test/\nuser_token: from-file\ntimeout_seconds: 15\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("QUILL_USER_TOKEN", "from-env")

	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "http://example.test" {
		t.Errorf("Expected trailing slash trimmed, got %q", cfg.APIURL)
	}
	if cfg.UserToken != "from-env" {
		t.Errorf("Expected env to override file, got %q", cfg.UserToken)
	}
	if cfg.TimeoutSeconds != 15 {
		t.Errorf("Expected 15, got %d", cfg.TimeoutSeconds)
	}
}

func TestLoadClient_MissingFile(t *testing.T) {
	if _, err := LoadClient(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}
