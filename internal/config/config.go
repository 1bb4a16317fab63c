// Package config loads daemon configuration from a JSON file backend with
// environment variable overrides.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

type Config struct {
	Server  ServerConfig
	Ollama  OllamaConfig
	Speech  SpeechConfig
	Storage StorageConfig
	Cleanup CleanupConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port  int
	Token string
}

type OllamaConfig struct {
	BaseURL   string
	ChatModel string
}

type SpeechConfig struct {
	// ASRURL is the whisper.cpp server base URL. Empty disables transcription.
	ASRURL string
	// TTSURL is the Coqui TTS server base URL.
	TTSURL string
	// Engine selects the synthesis engine: auto, coqui, espeak, or off.
	Engine string
}

type StorageConfig struct {
	DataDir string
}

type CleanupConfig struct {
	MaxAgeDays    int
	MaxSessions   int
	IntervalHours int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 7860,
		},
		Ollama: OllamaConfig{
			BaseURL:   "http://localhost:11434",
			ChatModel: "gemma3n:e4b",
		},
		Speech: SpeechConfig{
			ASRURL: "http://localhost:8080",
			TTSURL: "http://localhost:5002",
			Engine: "auto",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Cleanup: CleanupConfig{
			MaxAgeDays:    30,
			MaxSessions:   100,
			IntervalHours: 24,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/agrovoice/config.json, then applies AGROVOICE_*
// environment variable overrides. A missing API token is generated and
// persisted on first load.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Server.Token == "" {
		token, err := generateToken()
		if err != nil {
			return Config{}, fmt.Errorf("generating api token: %w", err)
		}
		if err := b.SetString("server.api_token", token); err != nil {
			return Config{}, fmt.Errorf("persisting api token: %w", err)
		}
		cfg.Server.Token = token
	}

	return cfg, nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
