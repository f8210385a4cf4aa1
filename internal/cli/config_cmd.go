package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"docsray/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .docsray.toml with defaults",
	RunE:  runConfigInit,
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print effective config as TOML (secrets redacted)",
	RunE:  runConfigPrint,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPrintCmd)
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	rootDir, err := filepath.Abs(globalFlags.Dir)
	if err != nil {
		return err
	}
	configPath := resolveConfigPath(rootDir)

	if err := config.SaveFile(configPath, config.Default()); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Println("Wrote", configPath)

	if !globalFlags.NonInteractive && IsTTY() {
		fmt.Fprintln(os.Stderr, "Optional: enter your Mistral API key now (input is hidden). Press Enter to skip and set MISTRAL_API_KEY later.")
		key, err := ReadSecret("Mistral API key: ")
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if key != "" {
			// the key never goes in the config file
			fmt.Fprintln(os.Stderr, "Key received. Set it in your environment before running 'docsray up':")
			fmt.Fprintln(os.Stderr, "  export MISTRAL_API_KEY=<your-key>")
		}
	} else {
		fmt.Println("Edit the file or set MISTRAL_API_KEY in your environment.")
	}
	return nil
}

func runConfigPrint(_ *cobra.Command, _ []string) error {
	rootDir, err := filepath.Abs(globalFlags.Dir)
	if err != nil {
		return err
	}
	cfg, err := config.Load(config.Options{
		ConfigPath:   resolveConfigPath(rootDir),
		RootDir:      rootDir,
		SkipValidate: true, // print even when API key not set
	})
	if err != nil {
		exitWith(ExitConfigInvalid, "ERROR: "+err.Error())
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	fmt.Print(buf.String())
	return nil
}
