package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "AGROVOICE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "AGROVOICE_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "ollama.base_url", typ: kString, env: "AGROVOICE_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "AGROVOICE_OLLAMA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "speech.asr_url", typ: kString, env: "AGROVOICE_SPEECH_ASR_URL",
		apply:   func(cfg *Config, v any) { cfg.Speech.ASRURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Speech.ASRURL },
	},
	{
		key: "speech.tts_url", typ: kString, env: "AGROVOICE_SPEECH_TTS_URL",
		apply:   func(cfg *Config, v any) { cfg.Speech.TTSURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Speech.TTSURL },
	},
	{
		key: "speech.engine", typ: kString, env: "AGROVOICE_SPEECH_ENGINE",
		apply:   func(cfg *Config, v any) { cfg.Speech.Engine = v.(string) },
		extract: func(cfg Config) any { return cfg.Speech.Engine },
	},
	{
		key: "storage.data_dir", typ: kString, env: "AGROVOICE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "cleanup.max_age_days", typ: kInt, env: "AGROVOICE_CLEANUP_MAX_AGE_DAYS",
		apply:   func(cfg *Config, v any) { cfg.Cleanup.MaxAgeDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Cleanup.MaxAgeDays },
	},
	{
		key: "cleanup.max_sessions", typ: kInt, env: "AGROVOICE_CLEANUP_MAX_SESSIONS",
		apply:   func(cfg *Config, v any) { cfg.Cleanup.MaxSessions = v.(int) },
		extract: func(cfg Config) any { return cfg.Cleanup.MaxSessions },
	},
	{
		key: "cleanup.interval_hours", typ: kInt, env: "AGROVOICE_CLEANUP_INTERVAL_HOURS",
		apply:   func(cfg *Config, v any) { cfg.Cleanup.IntervalHours = v.(int) },
		extract: func(cfg Config) any { return cfg.Cleanup.IntervalHours },
	},
	{
		key: "log.level", typ: kString, env: "AGROVOICE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
