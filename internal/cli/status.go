package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"docsray/internal/config"
	"docsray/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and cache status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	rootDir, err := filepath.Abs(globalFlags.Dir)
	if err != nil {
		return err
	}
	cfg, err := config.Load(config.Options{
		ConfigPath:   resolveConfigPath(rootDir),
		RootDir:      rootDir,
		SkipValidate: true,
	})
	if err != nil {
		exitWith(ExitConfigInvalid, "ERROR: "+err.Error())
	}

	st := newStyles(os.Stdout, globalFlags.JSON)
	fmt.Println(st.sectionHeader("docsray status"))
	fmt.Println(st.kv("Root", rootDir))
	fmt.Println(st.kv("Provider", providerStatus(cfg)))
	fmt.Println(st.kv("Chat model", cfg.Mistral.ChatModel))
	fmt.Println(st.kv("Summary model", cfg.Mistral.SummaryModel))

	cacheDir := cfg.Cache.Dir
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(rootDir, cacheDir)
	}
	dbPath := filepath.Join(cacheDir, "docsray.sqlite")
	if _, statErr := os.Stat(dbPath); statErr != nil {
		fmt.Println(st.kv("Cache", "empty (run a tool to populate it)"))
		return nil
	}

	s := store.NewSQLiteStore(dbPath)
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	docs, pages, statsErr := s.Stats(ctx)
	if statsErr != nil {
		fmt.Println(st.warnPrefix(), "cache unreadable:", statsErr.Error())
		return nil
	}
	fmt.Println(st.kv("Cache", dbPath))
	fmt.Printf("  %s %s\n", st.stat("documents", docs), st.stat("page_texts", pages))
	return nil
}
