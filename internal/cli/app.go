package cli

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"docsray/internal/config"
	"docsray/internal/docintel"
	"docsray/internal/document"
	"docsray/internal/log"
	"docsray/internal/mcp"
	"docsray/internal/mistral"
	"docsray/internal/store"
)

// app holds the wired server and the pieces a command may want to report on.
type app struct {
	cfg    *config.Config
	server *mcp.Server
	store  *store.SQLiteStore
}

// buildApp loads config and wires the full pipeline. Commands that serve
// traffic call this; commands that only read config use config.Load directly.
func buildApp(overrides *config.Overrides) (*app, error) {
	rootDir, err := filepath.Abs(globalFlags.Dir)
	if err != nil {
		return nil, fmt.Errorf("root directory inaccessible: %w", err)
	}
	info, err := os.Stat(rootDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("root directory not found or not a directory: %s", globalFlags.Dir)
	}

	cfg, err := config.Load(config.Options{
		ConfigPath: resolveConfigPath(rootDir),
		RootDir:    rootDir,
		Overrides:  overrides,
	})
	if err != nil {
		return nil, err
	}

	logger := log.New(cfg.Log.Level)

	client := mistral.NewClient(cfg.Mistral.BaseURL, cfg.Mistral.APIKey)
	client.DefaultChatModel = cfg.Mistral.ChatModel
	client.OCRModel = cfg.Mistral.OCRModel
	if cfg.Mistral.TimeoutSeconds > 0 {
		client.HTTPClient = &http.Client{Timeout: time.Duration(cfg.Mistral.TimeoutSeconds) * time.Second}
	}
	if cfg.Mistral.RateRPS > 0 {
		client.Limiter = rate.NewLimiter(rate.Limit(cfg.Mistral.RateRPS), cfg.Mistral.RateRPS)
	}
	client.ExcerptChars = cfg.Limits.MaxExcerptChars

	cacheDir := cfg.Cache.Dir
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(rootDir, cacheDir)
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("cache directory: %w", err)
	}
	sqliteStore := store.NewSQLiteStore(filepath.Join(cacheDir, "docsray.sqlite"))

	docs := &document.Service{
		RootDir:      rootDir,
		MaxFileBytes: int64(cfg.Cache.MaxFileMB) * 1024 * 1024,
		SampleChars:  cfg.Limits.SampleChars,
		HTTPClient:   &http.Client{Timeout: 60 * time.Second},
		OCR:          client,
		Cache:        sqliteStore,
		Logger:       logger,
	}

	provider := docintel.NewProvider(client, cfg.Mistral.ChatModel, cfg.Mistral.SummaryModel, logger)
	provider.ExcerptChars = cfg.Limits.MaxExcerptChars

	server := mcp.NewServer(mcp.Options{
		Config:   cfg,
		Provider: provider,
		Docs:     docs,
		Store:    sqliteStore,
		Logger:   logger,
		Version:  version,
	})

	return &app{cfg: cfg, server: server, store: sqliteStore}, nil
}

func resolveConfigPath(rootDir string) string {
	if filepath.IsAbs(globalFlags.ConfigPath) {
		return globalFlags.ConfigPath
	}
	return filepath.Join(rootDir, globalFlags.ConfigPath)
}
