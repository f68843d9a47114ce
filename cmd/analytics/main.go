// Command analytics starts the standalone analytics aggregation service.
//
// It consumes search events and index announcements from Kafka, aggregates
// them in memory, snapshots the totals to PostgreSQL when it is reachable,
// and serves GET /api/v1/analytics.
//
// Usage:
//
//	go run ./cmd/analytics [-config quotex.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults and QX_* variables when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)
	if !cfg.Kafka.Enabled() {
		slog.Error("analytics service needs kafka brokers (kafka.brokers or QX_KAFKA_BROKERS)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	agg := analytics.NewAggregator()
	checker := health.NewChecker()

	var saved chan struct{}
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer db.Close()
		snapshots := aggregator.NewStore(db)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare snapshot table", "error", err)
			os.Exit(1)
		}
		latest, err := snapshots.LatestSnapshot(ctx)
		if err != nil {
			slog.Warn("could not restore latest snapshot", "error", err)
		} else if latest != nil {
			agg.Restore(*latest)
			slog.Info("analytics restored", "total_searches", latest.TotalSearches)
		}
		saved = make(chan struct{})
		go func() {
			defer close(saved)
			aggregator.RunPeriodicSave(ctx, snapshots, agg, cfg.Analytics.SnapshotInterval)
		}()
		checker.Register("postgres", health.PingCheck(db.Ping, true))
	}

	consumers := []*kafka.Consumer{
		kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleSearchEvent(agg)),
		kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexPublished, analytics.HandleIndexPublished(agg)),
	}
	for _, c := range consumers {
		go func(c *kafka.Consumer) {
			if err := c.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}(c)
	}
	slog.Info("analytics consumers started",
		"topics", []string{cfg.Kafka.Topics.AnalyticsEvents, cfg.Kafka.Topics.IndexPublished},
		"group", cfg.Kafka.ConsumerGroup,
	)

	mux := http.NewServeMux()
	analytics.NewHandler(agg).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	if saved != nil {
		<-saved
	}

	slog.Info("analytics service stopped")
}
