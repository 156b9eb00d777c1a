package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcp-daemon/mcp-daemon/internal/config"
	"github.com/mcp-daemon/mcp-daemon/internal/daemon"
	"github.com/mcp-daemon/mcp-daemon/internal/logging"
	"github.com/mcp-daemon/mcp-daemon/internal/mcperr"
)

// main is the daemon's entrypoint: load config, stand up logging, bind
// the IPC endpoint, and run until signalled or idle-timed-out. Grounded
// on the teacher's cmd/server/main.go startup sequence (load config →
// validate → logger → run until shutdown), generalized from an HTTP
// webhook server to the IPC accept loop in internal/daemon.
func main() {
	configPath := os.Getenv("MCP_CONFIG_PATH")
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			configPath = os.Args[i+1]
		}
	}

	cfg, err := config.FindAndLoad(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, logCleanup := logging.Setup(cfg.Log)
	defer logCleanup()
	slog.SetDefault(logger)

	d, err := daemon.New(cfg, logger)
	if err != nil {
		if mcperr.KindOf(err) == mcperr.KindEndpointInUse {
			// Another daemon already owns the endpoint; exit quietly so a
			// racing EnsureDaemon spawn just talks to the winner.
			logger.Info("endpoint already in use, exiting")
			os.Exit(0)
		}
		logger.Error("daemon startup failed", "error", err)
		os.Exit(1)
	}

	metricsServer := startMetricsServer(logger)
	if metricsServer != nil {
		defer metricsServer.Close()
	}

	logger.Info("daemon started", "servers", len(cfg.Servers), "daemon_ttl", cfg.DaemonTTL)
	if err := d.Run(context.Background()); err != nil {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("daemon stopped")
}

// startMetricsServer binds an optional loopback-only HTTP endpoint for
// Prometheus scraping and pprof, gated on MCP_DAEMON_METRICS_ADDR so a
// default install never opens a network listener — spec.md §6.
func startMetricsServer(logger *slog.Logger) *http.Server {
	addr := os.Getenv("MCP_DAEMON_METRICS_ADDR")
	if addr == "" {
		return nil
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil || !isLoopback(host) {
		logger.Error("MCP_DAEMON_METRICS_ADDR must be a loopback address", "addr", addr)
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	// net/http/pprof registers its handlers on http.DefaultServeMux.
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("metrics server listening", "addr", addr)
	return srv
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
