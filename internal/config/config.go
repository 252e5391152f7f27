// Package config handles aide configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config holds all configuration
type Config struct {
	// Paths
	DataDir string `json:"data_dir"`

	// Server
	Server ServerConfig `json:"server"`

	// Services
	Claude ClaudeConfig `json:"claude"`
	Google GoogleConfig `json:"google"`

	// Dialogue tuning
	Dialogue DialogueConfig `json:"dialogue"`

	// Logging
	LogLevel string `json:"log_level"`
}

// ServerConfig for the HTTP server
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ClaudeConfig for the completion gateway
type ClaudeConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// GoogleConfig for Calendar/Gmail OAuth
type GoogleConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURL  string `json:"redirect_url"`
	TokenPath    string `json:"token_path"`
}

// DialogueConfig tunes flow timeouts and history bounds
type DialogueConfig struct {
	HistoryWindow     int           `json:"history_window"`
	MailFlowTimeout   time.Duration `json:"mail_flow_timeout"`
	ScheduleTimeout   time.Duration `json:"schedule_timeout"`
	SessionIdleExpiry time.Duration `json:"session_idle_expiry"`
}

// Default returns default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".aide")

	return &Config{
		DataDir: dataDir,
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Claude: ClaudeConfig{
			APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
			BaseURL: "https://api.anthropic.com",
			Model:   "claude-sonnet-4-20250514",
		},
		Google: GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  "http://localhost:8765/callback",
			TokenPath:    filepath.Join(dataDir, "google-token.json"),
		},
		Dialogue: DialogueConfig{
			HistoryWindow:     10,
			MailFlowTimeout:   15 * time.Minute,
			ScheduleTimeout:   10 * time.Minute,
			SessionIdleExpiry: time.Hour,
		},
		LogLevel: "INFO",
	}
}

// Load loads config from file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.json")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Env always wins for secrets
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Claude.APIKey = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Google.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Google.ClientSecret = v
	}

	return cfg, nil
}

// Save saves config to file
func (c *Config) Save(path string) error {
	if path == "" {
		path = filepath.Join(c.DataDir, "config.json")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	// Secrets never land in the file
	safe := *c
	safe.Claude.APIKey = ""
	safe.Google.ClientSecret = ""

	data, err := json.MarshalIndent(safe, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
