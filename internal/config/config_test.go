package config

import (
	"testing"
)

// memBackend is an in-memory ConfigBackend for tests.
type memBackend struct {
	data map[string]any
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]any)}
}

func (b *memBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (b *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (b *memBackend) SetString(key, val string) error {
	b.data[key] = val
	return nil
}

func (b *memBackend) SetInt(key string, val int) error {
	b.data[key] = val
	return nil
}

func (b *memBackend) Delete(key string) error {
	delete(b.data, key)
	return nil
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 7860 {
		t.Errorf("Server.Port = %d, want 7860", cfg.Server.Port)
	}
	if cfg.Ollama.ChatModel != "gemma3n:e4b" {
		t.Errorf("Ollama.ChatModel = %q", cfg.Ollama.ChatModel)
	}
	if cfg.Speech.Engine != "auto" {
		t.Errorf("Speech.Engine = %q", cfg.Speech.Engine)
	}
	if cfg.Cleanup.MaxAgeDays != 30 || cfg.Cleanup.MaxSessions != 100 || cfg.Cleanup.IntervalHours != 24 {
		t.Errorf("Cleanup = %+v", cfg.Cleanup)
	}
}

func TestLoad_BackendOverrides(t *testing.T) {
	b := newMemBackend()
	b.data["server.port"] = 9000
	b.data["ollama.chat_model"] = "gemma3n:e2b"
	b.data["speech.engine"] = "espeak"
	b.data["cleanup.max_sessions"] = 10

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Ollama.ChatModel != "gemma3n:e2b" {
		t.Errorf("Ollama.ChatModel = %q", cfg.Ollama.ChatModel)
	}
	if cfg.Speech.Engine != "espeak" {
		t.Errorf("Speech.Engine = %q", cfg.Speech.Engine)
	}
	if cfg.Cleanup.MaxSessions != 10 {
		t.Errorf("Cleanup.MaxSessions = %d, want 10", cfg.Cleanup.MaxSessions)
	}
}

func TestLoad_EnvOverridesBackend(t *testing.T) {
	b := newMemBackend()
	b.data["server.port"] = 9000
	t.Setenv("AGROVOICE_SERVER_PORT", "9001")
	t.Setenv("AGROVOICE_OLLAMA_BASE_URL", "http://10.0.0.5:11434")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 9001 {
		t.Errorf("Server.Port = %d, want 9001", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://10.0.0.5:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
}

func TestLoad_GeneratesAndPersistsToken(t *testing.T) {
	b := newMemBackend()

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Token == "" {
		t.Fatal("expected a generated token")
	}
	if len(cfg.Server.Token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(cfg.Server.Token))
	}

	// Second load reuses the persisted token.
	cfg2, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg2.Server.Token != cfg.Server.Token {
		t.Error("token was regenerated instead of reused")
	}
}

func TestLoad_TokenFromEnv(t *testing.T) {
	t.Setenv("AGROVOICE_API_TOKEN", "env-token")

	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Token != "env-token" {
		t.Errorf("Token = %q, want env-token", cfg.Server.Token)
	}
}

func TestShowAll_HidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Server.Token = "secret-token"

	for _, info := range ShowAll(cfg) {
		if info.Key == "server.api_token" {
			t.Error("ShowAll leaked the api token key")
		}
		if info.Value == "secret-token" {
			t.Error("ShowAll leaked the api token value")
		}
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	want := map[string]bool{
		"server.port":       false,
		"ollama.chat_model": false,
		"speech.engine":     false,
		"log.level":         false,
	}
	for _, k := range keys {
		if k == "server.api_token" {
			t.Error("secret key listed as valid")
		}
		if k == "server.mcp_port" {
			t.Errorf("unexpected key %q: the MCP server runs on stdio", k)
		}
		if _, ok := want[k]; ok {
			want[k] = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("key %q missing from ValidKeys", k)
		}
	}
}
