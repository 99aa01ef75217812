/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the tranche loan engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Build the zap logger and Prometheus metrics
  3. Initialize SQLite store
  4. Connect the result cache (Redis, or in-process with a sweeper)
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (optional)
  -port    HTTP server port, overrides config
  -db      SQLite database path, overrides config
           Use ":memory:" for in-memory database

ENVIRONMENT:
  TRANCHE_PORT, TRANCHE_DB_PATH, TRANCHE_REDIS_ADDR, TRANCHE_CACHE_TTL,
  TRANCHE_LOG_LEVEL, TRANCHE_LOG_FORMAT, TRANCHE_CORS_ORIGINS

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the cache sweeper, close cache and database
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/loans.db"

  # Run with in-memory database and Redis
  TRANCHE_REDIS_ADDR=localhost:6379 ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/tranche-engine/api"
	"github.com/warp/tranche-engine/cache"
	"github.com/warp/tranche-engine/config"
	"github.com/warp/tranche-engine/observability"
	"github.com/warp/tranche-engine/store/sqlite"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := observability.NewLogger(observability.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	defer logger.Sync()

	metrics := observability.NewMetrics()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, logger, metrics)
	handler.CacheTTL = cfg.CacheTTL
	closeCache := connectCache(cfg, handler, logger)
	defer closeCache()

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db", cfg.DBPath),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// connectCache sets the handler's cache: Redis when configured and
// reachable, otherwise an in-process cache with a background sweeper. The
// returned func releases it.
func connectCache(cfg *config.Config, h *api.Handler, logger *zap.Logger) func() {
	if cfg.RedisAddr != "" {
		rdb := cache.NewRedis(cfg.RedisAddr, "tranche:")
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		err := rdb.Ping(ctx)
		if err == nil {
			logger.Info("result cache: redis", zap.String("addr", cfg.RedisAddr))
			h.Cache = rdb
			return func() { rdb.Close() }
		}
		logger.Warn("redis unreachable, using in-process cache",
			zap.String("addr", cfg.RedisAddr),
			zap.Error(err),
		)
		rdb.Close()
	}

	mem := cache.NewMemory()
	sweeper := cache.NewSweeper(mem, logger)
	sweeper.Start()

	logger.Info("result cache: in-process", zap.Duration("ttl", cfg.CacheTTL))
	h.Cache = mem
	return sweeper.Stop
}
