package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve MCP over stdin/stdout (for 'command' transport clients)",
	RunE:  runStdio,
}

func runStdio(_ *cobra.Command, _ []string) error {
	a, err := buildApp(nil)
	if err != nil {
		exitWith(ExitConfigInvalid, "ERROR: "+err.Error())
	}
	defer a.store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol; all logging already goes to stderr.
	return a.server.RunStdio(ctx)
}
