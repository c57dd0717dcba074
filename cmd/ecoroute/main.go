package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NERVsystems/ecoroute/pkg/config"
	"github.com/NERVsystems/ecoroute/pkg/estimator"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
	"github.com/NERVsystems/ecoroute/pkg/server"
	"github.com/NERVsystems/ecoroute/pkg/session"
	"github.com/NERVsystems/ecoroute/pkg/tools"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
	ver "github.com/NERVsystems/ecoroute/pkg/version"
)

const (
	probeInterval   = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

var (
	showVersionFlag bool
	configPath      string
	generateConfig  string
	mergeOnly       bool

	// flagConfig receives the values of the flags registered by the config
	// package. Only flags set on the command line override the file.
	flagConfig = config.Default()
)

func init() {
	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.StringVar(&configPath, "config", "", "TOML configuration file")
	flag.StringVar(&generateConfig, "generate-config", "", "Write an MCP client config file for this binary at the specified path")
	flag.BoolVar(&mergeOnly, "merge-only", false, "Keep other servers in an existing client config")

	config.RegisterFlags(flag.CommandLine, &flagConfig)
}

func main() {
	flag.Parse()

	if showVersionFlag {
		fmt.Println(ver.String())
		return
	}

	cfg, err := loadConfig(configPath, flagConfig, flag.CommandLine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ecoroute: %v\n", err)
		os.Exit(2)
	}

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if generateConfig != "" {
		if err := generateClientConfig(generateConfig, mergeOnly, os.Args[0], clientArgs(configPath)); err != nil {
			logger.Error("failed to generate config", "error", err)
			os.Exit(1)
		}
		logger.Info("generated MCP client config", "path", generateConfig)
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// loadConfig layers the config file, if any, over the defaults and applies
// the flags set on fs on top.
func loadConfig(path string, flags config.Config, fs *flag.FlagSet) (config.Config, error) {
	base := config.Default()
	if path != "" {
		var err error
		if base, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}

	cfg := config.Merge(base, flags, fs)
	if cfg.HTTP.Only {
		cfg.HTTP.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newEstimator builds the estimator over the configured provider, with the
// route cache in front when enabled. cached is nil when caching is off.
func newEstimator(cfg config.Config) (est *estimator.Estimator, cached *estimator.CachedProvider, err error) {
	hooks := monitoring.EstimatorHooks(tracing.CacheTypeRoutes)

	var provider estimator.Provider = estimator.SyntheticProvider{}
	if cfg.Estimator.Fixture != "" {
		fixture, err := estimator.OpenFixture(cfg.Estimator.Fixture)
		if err != nil {
			return nil, nil, err
		}
		provider = fixture
	}

	if cfg.Estimator.CacheSize > 0 {
		cached, err = estimator.NewCachedProvider(provider, cfg.Estimator.CacheSize, hooks)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create route cache: %w", err)
		}
		provider = cached
	}

	opts := cfg.EstimatorOptions()
	opts.Hooks = hooks
	return estimator.New(provider, opts), cached, nil
}

// run starts every configured transport and blocks until a shutdown signal
// arrives or the stdio client disconnects.
func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		// Tracing is optional
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
	}

	est, cached, err := newEstimator(cfg)
	if err != nil {
		return err
	}

	sessions := session.NewStore(cfg.Session.TTL.Duration, cfg.Session.MaxSessions)
	defer sessions.Close()

	registry := tools.NewRegistry(logger, est, sessions)
	s := server.NewServer(registry)

	logger.Info("starting ecoroute MCP server",
		"version", ver.BuildVersion,
		"debug", cfg.Debug,
		"fixture", cfg.Estimator.Fixture,
		"failure_rate", cfg.Estimator.FailureRate,
		"min_delay", cfg.Estimator.MinDelay.Duration,
		"max_delay", cfg.Estimator.MaxDelay.Duration,
		"top_n", cfg.Estimator.TopN,
		"cache_size", cfg.Estimator.CacheSize,
		"session_ttl", cfg.Session.TTL.Duration,
		"http_enabled", cfg.HTTP.Enabled,
		"monitoring_enabled", cfg.Monitoring.Enabled)

	var healthChecker *monitoring.HealthChecker
	if cfg.Monitoring.Enabled {
		healthChecker = monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)
		defer healthChecker.Shutdown()

		healthChecker.RegisterGauge(monitoring.GaugeActiveSessions, sessions.Len)
		if cached != nil {
			healthChecker.RegisterGauge(monitoring.GaugeRouteCache, cached.Len)
		}

		probe := monitoring.NewComponentMonitor("estimator", healthChecker, est.Probe, probeInterval, 5*time.Second)
		probe.Start()
		defer probe.Stop()

		monitoringServer := startMonitoringServer(cfg.Monitoring.Addr, healthChecker, logger)
		defer shutdownHTTP(monitoringServer.Shutdown, "monitoring server", logger)
	}

	if cfg.HTTP.Enabled {
		transport := server.NewHTTPTransport(s.GetMCPServer(), server.TransportConfig(cfg.HTTP), logger)
		transport.Handle("/routes", server.NewHandler(logger, registry))
		if healthChecker != nil {
			transport.SetHealthChecker(healthChecker)
			healthChecker.SetTransport(monitoring.TransportInfo{Type: "http_sse", HTTPAddr: cfg.HTTP.Addr})
		}

		go func() {
			if err := transport.Start(); err != nil {
				logger.Error("HTTP transport error", "error", err)
				stop()
			}
		}()
		defer shutdownHTTP(transport.Shutdown, "HTTP transport", logger)
	}

	switch {
	case !cfg.HTTP.Enabled:
		logger.Info("transport_enabled", "type", "stdio", "mode", "blocking")
		return s.RunWithContext(ctx)
	case cfg.HTTP.Only:
		logger.Info("server_ready", "transports", []string{"http"}, "http_only", true)
	default:
		go func() {
			logger.Info("transport_enabled", "type", "stdio", "mode", "background")
			if err := s.RunWithContext(ctx); err != nil {
				logger.Error("stdio transport error", "error", err)
			}
		}()
		logger.Info("server_ready", "transports", []string{"stdio", "http"})
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

// startMonitoringServer serves /metrics and the health endpoints.
func startMonitoringServer(addr string, hc *monitoring.HealthChecker, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", hc.HealthHandler())
	mux.HandleFunc("/ready", hc.ReadinessHandler())
	mux.HandleFunc("/live", hc.LivenessHandler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting Prometheus metrics server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("monitoring server error", "error", err)
		}
	}()

	return srv
}

func shutdownHTTP(shutdown func(context.Context) error, name string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Error("failed to shutdown "+name, "error", err)
	}
}

// clientArgs returns the arguments an MCP client should start us with.
func clientArgs(configPath string) []string {
	if configPath == "" {
		return nil
	}
	if abs, err := filepath.Abs(configPath); err == nil {
		configPath = abs
	}
	return []string{"-config", configPath}
}

// generateClientConfig writes an MCP client config with an "ecoroute"
// server entry. With mergeOnly, other servers already in the file are kept.
func generateClientConfig(path string, mergeOnly bool, command string, args []string) error {
	if path == "" {
		return fmt.Errorf("config path cannot be empty")
	}
	if !strings.HasSuffix(path, ".json") {
		return fmt.Errorf("config file must have .json extension")
	}

	cleanPath := filepath.Clean(path)
	if err := validateSafePath(cleanPath); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := map[string]any{}
	if mergeOnly {
		if data, err := os.ReadFile(cleanPath); err == nil {
			if err := json.Unmarshal(data, &cfg); err != nil {
				return fmt.Errorf("failed to parse existing config: %w", err)
			}
		}
	}

	servers, _ := cfg["mcpServers"].(map[string]any)
	if servers == nil {
		servers = map[string]any{}
	}

	if abs, err := filepath.Abs(command); err == nil {
		command = abs
	}
	entry := map[string]any{"command": command}
	if len(args) > 0 {
		entry["args"] = args
	}
	servers["ecoroute"] = entry
	cfg["mcpServers"] = servers

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cleanPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// validateSafePath rejects absolute paths and paths outside the working
// directory.
func validateSafePath(path string) error {
	if filepath.IsAbs(path) {
		return fmt.Errorf("absolute paths are not allowed")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current working directory: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	relPath, err := filepath.Rel(cwd, absPath)
	if err != nil {
		return fmt.Errorf("failed to determine relative path: %w", err)
	}

	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s", relPath)
	}
	return nil
}
