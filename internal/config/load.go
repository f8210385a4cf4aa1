package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Options for loading config. ConfigPath is relative to RootDir when not
// absolute.
type Options struct {
	ConfigPath   string
	RootDir      string
	SkipValidate bool
	// Overrides apply last (flags > env > file > defaults). Nil means no
	// CLI overrides.
	Overrides *Overrides
}

// Overrides holds CLI flag values that take precedence over env/file/defaults.
// Only non-nil fields are applied.
type Overrides struct {
	ServerListen  *string
	ServerMCPPath *string
	ServerPublic  *bool
	MistralAPIKey *string
	LogLevel      *string
}

// Load builds config with precedence: defaults -> .docsray.toml -> dotenv/env
// -> Overrides.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	// Local dotenv files for developer ergonomics. Explicit env always wins;
	// godotenv.Load never overwrites existing variables.
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("CONFIG_INVALID: failed loading %s: %w", name, err)
		}
	}

	configPath := strings.TrimSpace(opts.ConfigPath)
	if configPath != "" {
		if !filepath.IsAbs(configPath) && opts.RootDir != "" {
			configPath = filepath.Join(opts.RootDir, configPath)
		}
		if _, err := os.Stat(configPath); err == nil {
			if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
				return nil, fmt.Errorf("CONFIG_INVALID: malformed TOML in %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("CONFIG_INVALID: cannot read config file %s: %w", configPath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if opts.Overrides != nil {
		applyOverrides(&cfg, opts.Overrides)
	}

	if !opts.SkipValidate {
		if err := Validate(&cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MISTRAL_API_KEY"); v != "" {
		cfg.Mistral.APIKey = v
	}
	if v := os.Getenv("DOCSRAY_MISTRAL_API_KEY"); v != "" {
		cfg.Mistral.APIKey = v
	}
	if v := os.Getenv("DOCSRAY_MISTRAL_BASE_URL"); v != "" {
		cfg.Mistral.BaseURL = v
	}
	if v := os.Getenv("DOCSRAY_MISTRAL_MODEL"); v != "" {
		cfg.Mistral.ChatModel = v
	}
	if v := os.Getenv("DOCSRAY_MISTRAL_ENABLED"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Mistral.Enabled = parsed
		}
	}
	if v := os.Getenv("DOCSRAY_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("DOCSRAY_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("DOCSRAY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o.ServerListen != nil {
		cfg.Server.Listen = *o.ServerListen
	}
	if o.ServerMCPPath != nil {
		cfg.Server.MCPPath = *o.ServerMCPPath
	}
	if o.ServerPublic != nil {
		cfg.Server.Public = *o.ServerPublic
	}
	if o.MistralAPIKey != nil {
		cfg.Mistral.APIKey = *o.MistralAPIKey
	}
	if o.LogLevel != nil {
		cfg.Log.Level = *o.LogLevel
	}
}
