package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"docsray/internal/config"
	"docsray/internal/docintel"
	"docsray/internal/document"
	"docsray/internal/store"
)

const serverName = "docsray"

// Server wires the document pipeline behind the MCP tool surface. One
// instance serves both stdio and streamable HTTP transports.
type Server struct {
	cfg      *config.Config
	provider *docintel.Provider
	docs     *document.Service
	store    *store.SQLiteStore
	logger   *slog.Logger

	version   string
	startedAt time.Time
}

type Options struct {
	Config   *config.Config
	Provider *docintel.Provider
	Docs     *document.Service
	Store    *store.SQLiteStore
	Logger   *slog.Logger
	Version  string
}

func NewServer(opts Options) *Server {
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	return &Server{
		cfg:       opts.Config,
		provider:  opts.Provider,
		docs:      opts.Docs,
		store:     opts.Store,
		logger:    opts.Logger,
		version:   version,
		startedAt: time.Now(),
	}
}

func (s *Server) newSDKServer() *sdk.Server {
	srv := sdk.NewServer(&sdk.Implementation{
		Name:    serverName,
		Version: s.version,
	}, nil)
	s.registerTools(srv)
	return srv
}

// RunStdio serves a single MCP session over stdin/stdout and blocks until
// the client disconnects or ctx is cancelled.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.newSDKServer().Run(ctx, &sdk.StdioTransport{})
}

// ListenAndServe starts the streamable HTTP transport. It returns the bound
// address on a channel so callers can print it when listen uses port 0.
func (s *Server) ListenAndServe(ctx context.Context, bound chan<- string) error {
	handler := sdk.NewStreamableHTTPHandler(func(*http.Request) *sdk.Server {
		return s.newSDKServer()
	}, nil)

	limiter := newIPRateLimiter(s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst)

	mux := http.NewServeMux()
	mux.Handle(s.cfg.Server.MCPPath, limiter.middleware(handler))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	listener, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return err
	}
	if bound != nil {
		bound <- listener.Addr().String()
	}

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
