// CLAUDE:SUMMARY Entry point for the nbpipe MCP server — stdio by default, streamable HTTP behind chi.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/nbpipe"
	"github.com/hazyhaar/nbpipe/audit"
)

const version = "0.1.0"

func main() {
	fileCfg := &nbpipe.FileConfig{}
	if path := os.Getenv("NBPIPE_CONFIG"); path != "" {
		fc, err := nbpipe.LoadFileConfig(path)
		if err != nil {
			slog.Error("config file", "error", err)
			os.Exit(1)
		}
		fileCfg = fc
	}

	logLevel := env("LOG_LEVEL", fileCfg.LogLevel, "info")
	transport := env("MCP_TRANSPORT", fileCfg.Transport, "stdio")
	httpAddr := env("HTTP_ADDR", fileCfg.HTTPAddr, ":8087")
	auditPath := env("AUDIT_DB", fileCfg.AuditDB, "")

	// Logging. Stdout belongs to the stdio transport; logs go to stderr.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := nbpipe.Config{
		MaxFileSize: fileCfg.MaxFileSize,
		Logger:      logger,
	}

	// Optional invocation log.
	if auditPath != "" {
		db, err := audit.Open(auditPath)
		if err != nil {
			slog.Error("audit db", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		auditLog := audit.NewLogger(db)
		if err := auditLog.Init(); err != nil {
			slog.Error("audit init", "error", err)
			os.Exit(1)
		}
		defer auditLog.Close()
		cfg.Audit = auditLog
	}

	pipe := nbpipe.New(cfg)
	srv := mcp.NewServer(&mcp.Implementation{Name: "nbpipe", Version: version}, nil)
	pipe.RegisterMCP(srv)

	switch transport {
	case "http":
		handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)

		r := chi.NewRouter()
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		r.Handle("/mcp", handler)

		httpSrv := &http.Server{
			Addr:              httpAddr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			slog.Info("mcp http starting", "addr", httpAddr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("server error", "error", err)
				os.Exit(1)
			}
		}()

		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "error", err)
		}

	default:
		slog.Info("mcp stdio starting")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			slog.Error("mcp server", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("server stopped")
}

// env returns the environment value for key, or the first non-empty fallback.
func env(key string, fallbacks ...string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	for _, f := range fallbacks {
		if f != "" {
			return f
		}
	}
	return ""
}
