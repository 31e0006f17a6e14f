package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/star/impactsim/internal/api"
	"github.com/star/impactsim/internal/auth"
	"github.com/star/impactsim/internal/geodesy"
	"github.com/star/impactsim/internal/logging"
	"github.com/star/impactsim/internal/montecarlo"
	"github.com/star/impactsim/internal/results"
	"github.com/star/impactsim/internal/runs"
	"github.com/star/impactsim/internal/scenario"
	"github.com/star/impactsim/internal/stream"
	"github.com/star/impactsim/web"
)

func main() {
	logger, logCloser, err := logging.New(logging.Config{
		Level: os.Getenv("IMPACTSIM_LOG_LEVEL"),
		File:  os.Getenv("IMPACTSIM_LOG_FILE"),
	})
	if err != nil {
		logger.Warn("invalid IMPACTSIM_LOG_LEVEL value, using info", "error", err)
	}
	defer logCloser.Close()

	addr := os.Getenv("IMPACTSIM_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scenarios := scenario.NewStore()
	loadScenarios(ctx, logger, scenarios)

	conv, err := geodesy.NewConverter(geodesy.DefaultConfig())
	if err != nil {
		logger.Error("invalid projection configuration", "error", err)
		os.Exit(1)
	}

	resultsCfg := loadResultsConfig(logger)
	store, err := results.NewStore(resultsCfg, logger)
	if err != nil {
		logger.Error("failed to create result store", "error", err)
		os.Exit(1)
	}

	engineCfg, runsCfg := loadEngineConfig(logger)
	engine := montecarlo.NewEngine(engineCfg, logger)
	manager := runs.NewManager(ctx, engine, store, runsCfg, logger)

	streamCfg := loadStreamConfig(logger)
	streamHandler := stream.NewHandler(manager, streamCfg, logger)

	srv := api.NewServer(addr, logger, authCfg, api.Deps{
		Scenarios: scenarios,
		Runs:      manager,
		Converter: conv,
		Stream:    streamHandler,
		Web:       web.Content,
	})

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "scenarios", scenarios.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	// Live runs were cancelled with ctx; wait for them to be archived.
	manager.Wait()
	logger.Info("server stopped")
}

// loadScenarios adds scenario files from IMPACTSIM_SCENARIO_DIR and the
// document at IMPACTSIM_SCENARIO_URL to the built-in data set.
func loadScenarios(ctx context.Context, logger *slog.Logger, store *scenario.Store) {
	if dir := os.Getenv("IMPACTSIM_SCENARIO_DIR"); dir != "" {
		n, err := store.LoadDir(dir, logger)
		if err != nil {
			logger.Warn("failed to load scenario dir", "dir", dir, "error", err)
		} else {
			logger.Info("loaded scenarios", "dir", dir, "count", n)
		}
	}

	if url := os.Getenv("IMPACTSIM_SCENARIO_URL"); url != "" {
		fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		f := scenario.NewFetcher(url)
		sc, err := f.Fetch(fetchCtx)
		if err != nil {
			logger.Warn("failed to fetch scenario", "url", f.SourceURL(), "error", err)
			return
		}
		if sc.Name == "" {
			sc.Name = "remote"
		}
		if err := store.Put(sc); err != nil {
			logger.Warn("fetched scenario is invalid", "url", f.SourceURL(), "error", err)
			return
		}
		logger.Info("loaded remote scenario", "url", f.SourceURL(), "name", sc.Name)
	}
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("IMPACTSIM_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("IMPACTSIM_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("IMPACTSIM_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("IMPACTSIM_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

// positiveInt reads a positive integer variable, warning and keeping def
// when it is set but invalid.
func positiveInt(logger *slog.Logger, name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

func loadEngineConfig(logger *slog.Logger) (montecarlo.Config, runs.Config) {
	cfg := montecarlo.Config{
		Workers:   positiveInt(logger, "IMPACTSIM_WORKERS", runtime.NumCPU()),
		BatchSize: positiveInt(logger, "IMPACTSIM_BATCH_SIZE", montecarlo.DefaultBatchSize),
	}
	runsCfg := runs.Config{
		MaxIterations: positiveInt(logger, "IMPACTSIM_MAX_ITERATIONS", 100_000_000),
	}

	logger.Info("engine config",
		"workers", cfg.Workers,
		"batch_size", cfg.BatchSize,
		"max_iterations", runsCfg.MaxIterations,
	)

	return cfg, runsCfg
}

func loadResultsConfig(logger *slog.Logger) results.Config {
	cfg := results.Config{
		Dir:       "/tmp/impactsim/runs",
		MaxFiles:  positiveInt(logger, "IMPACTSIM_RESULTS_MAX_FILES", 20),
		CacheSize: positiveInt(logger, "IMPACTSIM_RESULTS_CACHE_SIZE", 8),
	}

	// An explicitly empty value disables the archive.
	if v, ok := os.LookupEnv("IMPACTSIM_RESULTS_DIR"); ok {
		cfg.Dir = v
	}

	logger.Info("results config",
		"dir", cfg.Dir,
		"max_files", cfg.MaxFiles,
		"cache_size", cfg.CacheSize,
	)

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: positiveInt(logger, "IMPACTSIM_STREAM_MAX_CONCURRENT", 10),
		Interval:           time.Duration(positiveInt(logger, "IMPACTSIM_STREAM_INTERVAL_MS", 1000)) * time.Millisecond,
		KeepaliveInterval:  time.Duration(positiveInt(logger, "IMPACTSIM_STREAM_KEEPALIVE_INTERVAL", 30)) * time.Second,
	}

	if v := os.Getenv("IMPACTSIM_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid IMPACTSIM_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"interval_ms", cfg.Interval.Milliseconds(),
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}
