package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes
const (
	ExitSuccess          = 0
	ExitGenericError     = 1
	ExitConfigInvalid    = 2
	ExitRootInaccessible = 3
	ExitBindFailure      = 4
)

// GlobalFlags holds flags shared across all commands.
type GlobalFlags struct {
	Dir            string
	ConfigPath     string
	JSON           bool
	NonInteractive bool
	Quiet          bool
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:   "docsray",
	Short: "MCP server for AI document processing",
	Long:  "docsray exposes Mistral-backed page classification, field extraction and summarization as standard MCP tools.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.Dir, "dir", ".", "root directory for local document access")
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", ".docsray.toml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "emit NDJSON events for automation/logging")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.NonInteractive, "non-interactive", false, "disable prompts; fail fast when config is missing")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Quiet, "quiet", false, "reduce output")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(stdioCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command and returns an error; exit code is set by RunE.
func Execute() error {
	return rootCmd.Execute()
}

// exitWith prints message to stderr and exits with code.
func exitWith(code int, msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(code)
}
