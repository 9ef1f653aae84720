// Package main provides the entry point for the SecureWatch server: the
// ingestion API plus, when no external queue is configured, an in-process
// alert worker.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/securewatch/securewatch/internal/api"
	"github.com/securewatch/securewatch/internal/broadcast"
	"github.com/securewatch/securewatch/internal/config"
	"github.com/securewatch/securewatch/internal/detection"
	"github.com/securewatch/securewatch/internal/intel"
	"github.com/securewatch/securewatch/internal/logging"
	"github.com/securewatch/securewatch/internal/metrics"
	"github.com/securewatch/securewatch/internal/pipeline"
	"github.com/securewatch/securewatch/internal/playbook"
	"github.com/securewatch/securewatch/internal/queue"
	"github.com/securewatch/securewatch/internal/search"
	"github.com/securewatch/securewatch/internal/store"
	"github.com/securewatch/securewatch/internal/worker"
)

// Version information (injected at build time via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("SecureWatch %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load failed (%v), using defaults\n", err)
		cfg = config.DefaultConfig()
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting SecureWatch", zap.String("version", Version))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Entity store: Postgres when a DSN is configured, in-memory otherwise.
	var st store.Store
	if cfg.Database.DSN != "" {
		pg, err := store.NewPostgresStore(cfg.Database)
		if err != nil {
			logger.Fatal("Database connection failed", zap.Error(err))
		}
		st = pg
		logger.Info("Connected to Postgres")
	} else {
		st = store.NewMemoryStore()
		logger.Warn("No database configured, using in-memory store")
	}
	defer st.Close()

	// Search-index sink.
	var indexer search.Indexer = search.NopIndexer{}
	if cfg.Search.Enabled {
		ri, err := search.NewRedisIndexer(ctx, cfg.Search)
		if err != nil {
			logger.Warn("Search indexer unavailable", zap.Error(err))
		} else {
			indexer = ri
			defer ri.Close()
		}
	}

	// Live-update sink. A nil broadcaster is a valid no-op.
	var broadcaster *broadcast.Broadcaster
	if cfg.Broadcast.Enabled {
		broadcaster, err = broadcast.Connect(cfg.Broadcast, logger)
		if err != nil {
			logger.Warn("Broadcast sink unavailable", zap.Error(err))
		} else {
			defer broadcaster.Close()
		}
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	detector := detection.NewDetector(cfg.Model, logger)
	enricher := intel.NewEnricher(cfg.ThreatIntel, logger)
	engine := playbook.NewEngine(cfg.Playbook, logger)

	// Task queue: Redis for cross-process delivery, otherwise an in-process
	// queue drained by an inline worker.
	var dispatcher queue.Dispatcher
	var consumer queue.Consumer
	if cfg.Queue.UseRedis {
		rq, err := queue.NewRedisQueue(ctx, cfg.Queue.Redis)
		if err != nil {
			logger.Fatal("Redis queue connection failed", zap.Error(err))
		}
		dispatcher = rq
		defer rq.Close()
		logger.Info("Using Redis task queue", zap.String("key", cfg.Queue.Redis.Key))
	} else {
		mq := queue.NewMemoryQueue(cfg.Queue.BufferSize)
		dispatcher = mq
		consumer = mq
		logger.Info("Using in-process task queue")
	}

	if consumer != nil {
		wk := worker.New(st, enricher, engine, broadcaster, dispatcher, m, logger)
		go wk.Run(ctx, consumer)
	}

	coordinator := pipeline.NewCoordinator(detector, st, dispatcher, indexer, broadcaster, m, logger)
	handler := api.NewHandler(coordinator, st, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	if cfg.RateLimit.Enabled {
		rlClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.Addr,
			Password: cfg.RateLimit.Password,
			DB:       cfg.RateLimit.DB,
		})
		defer rlClient.Close()
		limiter := api.NewRateLimiter(rlClient, cfg.RateLimit, logger)
		r.Use(limiter.Middleware)
		logger.Info("Rate limiting enabled",
			zap.Int("requests_per_minute", cfg.RateLimit.RequestsPerMinute))
	}

	r.Get("/health", handleHealth)
	r.Get("/ready", handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	handler.Routes(r)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutting down", zap.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","version":"` + Version + `"}`))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
