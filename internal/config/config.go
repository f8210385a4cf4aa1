package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"docsray/internal/mistral"
)

// Config is the resolved runtime configuration. Layering order is defaults,
// then the TOML config file, then dotenv/env, then CLI flag overrides.
type Config struct {
	Mistral MistralConfig `toml:"mistral"`
	Server  ServerConfig  `toml:"server"`
	Cache   CacheConfig   `toml:"cache"`
	Log     LogConfig     `toml:"log"`
	Limits  LimitsConfig  `toml:"limits"`
}

type MistralConfig struct {
	// APIKey is never written to the config file; it comes from the
	// environment or the secret file the config wizard creates.
	APIKey       string `toml:"-"`
	BaseURL      string `toml:"base_url"`
	ChatModel    string `toml:"chat_model"`
	SummaryModel string `toml:"summary_model"`
	OCRModel     string `toml:"ocr_model"`
	Enabled      bool   `toml:"enabled"`
	RateRPS      int    `toml:"rate_rps"`
	// TimeoutSeconds caps one HTTP round trip to the API; OCR on large
	// documents is the slow path that sets the ceiling.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

type ServerConfig struct {
	Listen         string `toml:"listen"`
	MCPPath        string `toml:"mcp_path"`
	Public         bool   `toml:"public"`
	RateLimitRPS   int    `toml:"rate_limit_rps"`
	RateLimitBurst int    `toml:"rate_limit_burst"`
}

type CacheConfig struct {
	Dir       string `toml:"dir"`
	MaxFileMB int    `toml:"max_file_mb"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type LimitsConfig struct {
	// MaxExcerptChars bounds raw provider text quoted in diagnostics.
	MaxExcerptChars int `toml:"max_excerpt_chars"`
	// MaxContextChars bounds the combined prompt size sent upstream.
	MaxContextChars int `toml:"max_context_chars"`
	// SampleChars is the per-page sample taken for classification input.
	SampleChars int `toml:"sample_chars"`
}

func Default() Config {
	return Config{
		Mistral: MistralConfig{
			BaseURL:        "",
			ChatModel:      mistral.DefaultChatModel,
			SummaryModel:   mistral.DefaultSummaryModel,
			OCRModel:       mistral.DefaultOCRModel,
			Enabled:        true,
			RateRPS:        5,
			TimeoutSeconds: 120,
		},
		Server: ServerConfig{
			Listen:         "127.0.0.1:0",
			MCPPath:        "/mcp",
			Public:         false,
			RateLimitRPS:   60,
			RateLimitBurst: 20,
		},
		Cache: CacheConfig{
			Dir:       filepath.Join(".", ".docsray"),
			MaxFileMB: 100,
		},
		Log: LogConfig{
			Level: "info",
		},
		Limits: LimitsConfig{
			MaxExcerptChars: 500,
			MaxContextChars: 200000,
			SampleChars:     70,
		},
	}
}

// SaveFile writes the persistable part of cfg as TOML. The API key is
// deliberately excluded.
func SaveFile(path string, cfg Config) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write config file %s: %w", path, err)
	}
	return nil
}
