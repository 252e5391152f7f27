package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
	if filepath.Base(cfg.DataDir) != ".aide" {
		t.Errorf("DataDir should end with .aide, got %q", filepath.Base(cfg.DataDir))
	}
	if cfg.Server.Port != 8080 || cfg.Server.Host != "localhost" {
		t.Errorf("Server = %+v, want localhost:8080", cfg.Server)
	}
	if cfg.Dialogue.HistoryWindow != 10 {
		t.Errorf("HistoryWindow = %d, want 10", cfg.Dialogue.HistoryWindow)
	}
	if cfg.Dialogue.MailFlowTimeout != 15*time.Minute {
		t.Errorf("MailFlowTimeout = %v, want 15m", cfg.Dialogue.MailFlowTimeout)
	}
	if cfg.Dialogue.ScheduleTimeout != 10*time.Minute {
		t.Errorf("ScheduleTimeout = %v, want 10m", cfg.Dialogue.ScheduleTimeout)
	}
}

func TestDefaultAPIKeyFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key-12345")

	cfg := Default()
	if cfg.Claude.APIKey != "test-key-12345" {
		t.Errorf("Claude.APIKey = %q, want the env value", cfg.Claude.APIKey)
	}
}

func TestLoadNonExistentFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("/non/existent/path/config.json")
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for a missing file", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want the default 8080", cfg.Server.Port)
	}
}

func TestLoadValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	body := `{
		"server": {"host": "0.0.0.0", "port": 9090},
		"dialogue": {"history_window": 20}
	}`
	if err := os.WriteFile(configPath, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Dialogue.HistoryWindow != 20 {
		t.Errorf("HistoryWindow = %d, want 20", cfg.Dialogue.HistoryWindow)
	}
	// Fields missing from the file keep their defaults
	if cfg.Dialogue.ScheduleTimeout != 10*time.Minute {
		t.Errorf("ScheduleTimeout = %v, want the default", cfg.Dialogue.ScheduleTimeout)
	}
}

func TestLoadEnvOverridesFileSecrets(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	os.WriteFile(configPath, []byte(`{"claude": {"api_key": "file-key"}}`), 0644)

	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Claude.APIKey != "env-key" {
		t.Errorf("Claude.APIKey = %q, want the env override", cfg.Claude.APIKey)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	os.WriteFile(configPath, []byte("{ invalid json }"), 0644)

	if _, err := Load(configPath); err == nil {
		t.Error("Load() should fail on invalid JSON")
	}
}

func TestSaveStripsSecrets(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	cfg := Default()
	cfg.Claude.APIKey = "super-secret"
	cfg.Google.ClientSecret = "also-secret"

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "super-secret") || strings.Contains(string(data), "also-secret") {
		t.Error("secrets written to disk")
	}

	// The in-memory config keeps them
	if cfg.Claude.APIKey != "super-secret" {
		t.Error("Save() mutated the config")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	original := Default()
	original.DataDir = tmpDir
	original.Server.Port = 5000

	if err := original.Save(configPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Server.Port != 5000 {
		t.Errorf("loaded Server.Port = %d, want 5000", loaded.Server.Port)
	}
}

func TestSaveFilePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.json")

	cfg := Default()
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}

func TestConfigJSONRoundTrip(t *testing.T) {
	original := Default()
	original.Dialogue.SessionIdleExpiry = 2 * time.Hour

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if loaded.Dialogue.SessionIdleExpiry != 2*time.Hour {
		t.Errorf("SessionIdleExpiry = %v, want 2h", loaded.Dialogue.SessionIdleExpiry)
	}
}
