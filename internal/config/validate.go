package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate rejects configurations that would fail at first use. Errors carry
// the CONFIG_INVALID prefix so CLI wiring can map them to the right exit
// code.
func Validate(cfg *Config) error {
	if host, _, err := net.SplitHostPort(cfg.Server.Listen); err != nil {
		return fmt.Errorf("CONFIG_INVALID: server.listen %q is not host:port: %w", cfg.Server.Listen, err)
	} else if cfg.Server.Public && (host == "127.0.0.1" || host == "localhost" || host == "::1") {
		return fmt.Errorf("CONFIG_INVALID: server.public requires a non-loopback listen address, got %q", cfg.Server.Listen)
	}

	if !strings.HasPrefix(cfg.Server.MCPPath, "/") {
		return fmt.Errorf("CONFIG_INVALID: server.mcp_path must start with '/', got %q", cfg.Server.MCPPath)
	}
	if cfg.Server.RateLimitRPS < 0 || cfg.Server.RateLimitBurst < 0 {
		return fmt.Errorf("CONFIG_INVALID: server rate limit values must be >= 0")
	}
	if cfg.Cache.MaxFileMB < 1 {
		return fmt.Errorf("CONFIG_INVALID: cache.max_file_mb must be >= 1, got %d", cfg.Cache.MaxFileMB)
	}
	if cfg.Limits.MaxExcerptChars < 1 {
		return fmt.Errorf("CONFIG_INVALID: limits.max_excerpt_chars must be >= 1")
	}
	if cfg.Limits.MaxContextChars < 200 {
		return fmt.Errorf("CONFIG_INVALID: limits.max_context_chars must be >= 200")
	}
	if cfg.Limits.SampleChars < 1 {
		return fmt.Errorf("CONFIG_INVALID: limits.sample_chars must be >= 1")
	}
	if cfg.Mistral.TimeoutSeconds < 1 {
		return fmt.Errorf("CONFIG_INVALID: mistral.timeout_seconds must be >= 1")
	}
	if cfg.Mistral.Enabled && strings.TrimSpace(cfg.Mistral.ChatModel) == "" {
		return fmt.Errorf("CONFIG_INVALID: mistral.chat_model is required while mistral.enabled is true")
	}
	return nil
}
