package config

import (
	"os"
	"path/filepath"
	"testing"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

func TestLoadWritesDefaults(t *testing.T) {
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("default provider = %q", cfg.LLM.Provider)
	}
	if cfg.Complaint.PollSchedule == "" {
		t.Error("default poll schedule missing")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("defaults not persisted: %v", err)
	}
}

func TestSaveReloadRoundTrip(t *testing.T) {
	path := tempConfigPath(t)

	original := &Config{
		DataDir:       "/tmp/test-data",
		LogLevel:      "debug",
		MaxConcurrent: 4,
	}
	original.LLM.Provider = "openai"
	original.LLM.BaseURL = "https://api.openai.com/v1"
	original.LLM.APIKey = "sk-test-round-trip"
	original.LLM.Model = "gpt-4"
	original.LLM.MaxTokens = 4000
	original.LLM.Temperature = 0.5
	original.Complaint.BaseURL = "https://cert.example/api/complaint"
	original.Telegram.Token = "tg-token"

	if err := Save(path, original); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.LLM.Model != "gpt-4" || loaded.MaxConcurrent != 4 {
		t.Errorf("round trip lost values: %+v", loaded)
	}
	if loaded.Complaint.BaseURL != original.Complaint.BaseURL {
		t.Errorf("complaint URL = %q", loaded.Complaint.BaseURL)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := tempConfigPath(t)
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("COMPLAINT_API_URL", "https://env.example/api/complaint")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LLM.APIKey != "sk-from-env" {
		t.Errorf("env API key not applied: %q", cfg.LLM.APIKey)
	}
	if cfg.Complaint.BaseURL != "https://env.example/api/complaint" {
		t.Errorf("env complaint URL not applied: %q", cfg.Complaint.BaseURL)
	}
}
