package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "aura.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv blanks all AURA_* variables for the duration of a test so the
// host environment cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("AURA_OPENAI_API_KEY", "test-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.OpenAI.ChatModel != "gpt-4o-mini" {
		t.Errorf("OpenAI.ChatModel = %q, want %q", cfg.OpenAI.ChatModel, "gpt-4o-mini")
	}
	if cfg.OpenAI.EmbedModel != "text-embedding-3-small" {
		t.Errorf("OpenAI.EmbedModel = %q, want %q", cfg.OpenAI.EmbedModel, "text-embedding-3-small")
	}
	if cfg.OpenAI.EmbedDimensions != 1536 {
		t.Errorf("OpenAI.EmbedDimensions = %d, want 1536", cfg.OpenAI.EmbedDimensions)
	}
	if cfg.Clinic.DemoClinicID != DemoClinicID {
		t.Errorf("Clinic.DemoClinicID = %q, want %q", cfg.Clinic.DemoClinicID, DemoClinicID)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("Retrieval.TopK = %d, want 3", cfg.Retrieval.TopK)
	}
}

func TestMissingAPIKey(t *testing.T) {
	clearEnv(t)

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}
	if !strings.Contains(err.Error(), "OpenAI API key") {
		t.Errorf("error = %q, want mention of OpenAI API key", err)
	}
}

func TestFileValues(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
server:
  port: 9000
openai:
  api_key: file-key
  embed_dimensions: 8
whatsapp:
  verify_token: hunter2
retrieval:
  top_k: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.OpenAI.APIKey != "file-key" {
		t.Errorf("OpenAI.APIKey = %q, want %q", cfg.OpenAI.APIKey, "file-key")
	}
	if cfg.OpenAI.EmbedDimensions != 8 {
		t.Errorf("OpenAI.EmbedDimensions = %d, want 8", cfg.OpenAI.EmbedDimensions)
	}
	if cfg.WhatsApp.VerifyToken != "hunter2" {
		t.Errorf("WhatsApp.VerifyToken = %q, want %q", cfg.WhatsApp.VerifyToken, "hunter2")
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("Retrieval.TopK = %d, want 5", cfg.Retrieval.TopK)
	}
	// Untouched keys keep their defaults.
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want default", cfg.Server.Host)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
openai:
  api_key: file-key
  chat_model: file-model
`)

	t.Setenv("AURA_OPENAI_API_KEY", "env-key")
	t.Setenv("AURA_OPENAI_CHAT_MODEL", "env-model")
	t.Setenv("AURA_SERVER_PORT", "7777")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.OpenAI.APIKey != "env-key" {
		t.Errorf("OpenAI.APIKey = %q, want env-key", cfg.OpenAI.APIKey)
	}
	if cfg.OpenAI.ChatModel != "env-model" {
		t.Errorf("OpenAI.ChatModel = %q, want env-model", cfg.OpenAI.ChatModel)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777", cfg.Server.Port)
	}
}

func TestInvalidIntEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("AURA_OPENAI_API_KEY", "test-key")
	t.Setenv("AURA_SERVER_PORT", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want default 8000", cfg.Server.Port)
	}
}

func TestBadConfigFile(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "server: [not a map")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed YAML, got nil")
	}
}
