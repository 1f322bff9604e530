package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/covlens/covlens/internal/adapters/http"
	mcpadapter "github.com/covlens/covlens/internal/adapters/mcp"
	"github.com/covlens/covlens/internal/bootstrap"
	"github.com/covlens/covlens/internal/config"
	"github.com/covlens/covlens/internal/observability/logging"
	"github.com/covlens/covlens/internal/observability/metrics"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("covlens-api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if report, err := app.RefAdmin.SyncReferenceData(ctx); err != nil {
		slog.Warn("reference data sync failed, serving existing store", "error", err)
	} else {
		slog.Info("reference data synced",
			"coverages", report.Coverages,
			"disease_codes", report.DiseaseCodes,
			"groups", report.Groups,
			"scopes", report.Scopes,
		)
	}

	httpMetrics := metrics.NewHTTPMetrics()
	router := httpadapter.NewRouter(
		cfg,
		app.IngestUC,
		app.Documents,
		app.CompareUC,
		app.Universe,
		app.RefAdmin,
		httpMetrics,
	).Handler()

	mux := http.NewServeMux()
	mux.Handle("/", router)
	if cfg.MCPEnabled {
		mcpServer := mcpadapter.NewServer(version, app.CompareUC, app.Universe, app.RefAdmin, app.Lineage)
		mux.Handle("/mcp", mcpServer.Handler())
		slog.Info("mcp surface enabled", "path", "/mcp")
	}

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		slog.Error("listen failed", "addr", server.Addr, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	go func() {
		slog.Info("api listening", "addr", server.Addr)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("api server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("api shutdown incomplete", "error", err)
	}
}
