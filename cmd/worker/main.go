// Package main provides the standalone alert worker: it drains the Redis
// task queue and materializes alerts, enrichment, and playbook runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/securewatch/securewatch/internal/broadcast"
	"github.com/securewatch/securewatch/internal/config"
	"github.com/securewatch/securewatch/internal/intel"
	"github.com/securewatch/securewatch/internal/logging"
	"github.com/securewatch/securewatch/internal/metrics"
	"github.com/securewatch/securewatch/internal/playbook"
	"github.com/securewatch/securewatch/internal/queue"
	"github.com/securewatch/securewatch/internal/store"
	"github.com/securewatch/securewatch/internal/worker"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	metricsAddr := flag.String("metrics-addr", ":9091", "Metrics listen address")
	flag.Parse()

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Database.DSN == "" {
		logger.Fatal("The standalone worker requires a database DSN")
	}
	st, err := store.NewPostgresStore(cfg.Database)
	if err != nil {
		logger.Fatal("Database connection failed", zap.Error(err))
	}
	defer st.Close()

	rq, err := queue.NewRedisQueue(ctx, cfg.Queue.Redis)
	if err != nil {
		logger.Fatal("Redis queue connection failed", zap.Error(err))
	}
	defer rq.Close()

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

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			logger.Warn("Metrics server stopped", zap.Error(err))
		}
	}()

	enricher := intel.NewEnricher(cfg.ThreatIntel, logger)
	engine := playbook.NewEngine(cfg.Playbook, logger)
	wk := worker.New(st, enricher, engine, broadcaster, rq, m, logger)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	wk.Run(ctx, rq)
}
