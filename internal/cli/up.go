package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docsray/internal/config"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the MCP server over streamable HTTP",
	RunE:  runUp,
}

var (
	upListen  string
	upMcpPath string
	upPublic  bool
)

func init() {
	upCmd.Flags().StringVar(&upListen, "listen", "127.0.0.1:0", "host:port to listen on")
	upCmd.Flags().StringVar(&upMcpPath, "mcp-path", "/mcp", "HTTP path for MCP endpoint")
	upCmd.Flags().BoolVar(&upPublic, "public", false, "bind a non-loopback address")
}

func runUp(cmd *cobra.Command, _ []string) error {
	listenOverride := upListen
	if upPublic && listenOverride == "127.0.0.1:0" {
		listenOverride = "0.0.0.0:0"
	}
	overrides := &config.Overrides{
		ServerListen:  &listenOverride,
		ServerMCPPath: &upMcpPath,
		ServerPublic:  &upPublic,
	}

	a, err := buildApp(overrides)
	if err != nil {
		exitWith(ExitConfigInvalid, "ERROR: "+err.Error())
	}
	defer a.store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bound := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe(ctx, bound)
	}()

	select {
	case addr := <-bound:
		mcpURL := "http://" + addr + a.cfg.Server.MCPPath
		if globalFlags.JSON {
			emitNDJSON("server_started", map[string]interface{}{"url": mcpURL})
			emitNDJSON("connection", map[string]interface{}{
				"transport": "mcp_streamable_http",
				"url":       mcpURL,
			})
		} else if !globalFlags.Quiet {
			st := newStyles(os.Stdout, false)
			fmt.Println(st.banner(), st.dim(version))
			fmt.Println()
			fmt.Println(st.sectionHeader("MCP endpoint"))
			fmt.Println(st.kv("URL", mcpURL))
			fmt.Println(st.kv("Transport", "streamable HTTP"))
			fmt.Println(st.kv("Provider", providerStatus(a.cfg)))
			fmt.Println()
		}
	case err := <-errCh:
		if err != nil {
			exitWith(ExitBindFailure, "ERROR: server bind failure: "+err.Error())
		}
		return nil
	}

	return <-errCh
}

func providerStatus(cfg *config.Config) string {
	if !cfg.Mistral.Enabled {
		return "mistral (disabled)"
	}
	if cfg.Mistral.APIKey == "" {
		return "mistral (no API key)"
	}
	return "mistral (" + cfg.Mistral.ChatModel + ")"
}

func emitNDJSON(event string, data map[string]interface{}) {
	out := map[string]interface{}{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "info",
		"event": event,
		"data":  data,
	}
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(out)
}
