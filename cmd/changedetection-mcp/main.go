// Command changedetection-mcp is an MCP server exposing changedetection.io
// monitoring operations as tools over stdio.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/changedetection-mcp/internal/cdio"
	"github.com/MrWong99/changedetection-mcp/internal/config"
	"github.com/MrWong99/changedetection-mcp/internal/health"
	"github.com/MrWong99/changedetection-mcp/internal/metrics"
	"github.com/MrWong99/changedetection-mcp/internal/observe"
	"github.com/MrWong99/changedetection-mcp/internal/ratelimit"
	"github.com/MrWong99/changedetection-mcp/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional; environment variables apply either way)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "changedetection-mcp: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// Stdout carries the MCP wire protocol, so all logging goes to stderr.
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("changedetection-mcp starting",
		"version", server.Version,
		"upstream", cfg.Upstream.BaseURL,
		"rate_limit_enabled", cfg.RateLimit.Enabled,
		"metrics_enabled", cfg.Metrics.Enabled,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	var obs *observe.Metrics
	if cfg.Metrics.Enabled {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    "changedetection-mcp",
			ServiceVersion: server.Version,
		})
		if err != nil {
			slog.Error("failed to initialise telemetry", "err", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
		}()
		obs = observe.DefaultMetrics()
	}

	// ── Upstream client and dispatcher ────────────────────────────────────────
	var clientOpts []cdio.Option
	if obs != nil {
		clientOpts = append(clientOpts, cdio.WithMetrics(obs))
	}
	client := cdio.New(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, clientOpts...)

	dispatcher, err := server.New(server.Config{
		Client:         client,
		Limiter:        ratelimit.New(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, cfg.RateLimit.Enabled),
		Collector:      metrics.New(),
		Metrics:        obs,
		MetricsEnabled: cfg.Metrics.Enabled,
		Debug:          cfg.Server.Debug,
	})
	if err != nil {
		slog.Error("failed to build dispatcher", "err", err)
		return 1
	}

	// ── Metrics and health endpoints ──────────────────────────────────────────
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		health.New(health.Upstream(client)).Register(mux)

		httpSrv := &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("metrics endpoint listening", "addr", cfg.Metrics.ListenAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics endpoint error", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("metrics endpoint shutdown error", "err", err)
			}
		}()
	}

	// ── Serve MCP over stdio ──────────────────────────────────────────────────
	srv := server.NewMCPServer(dispatcher)
	slog.Info("serving MCP over stdio")

	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("shutting down")
	return 0
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
