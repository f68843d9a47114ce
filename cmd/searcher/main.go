// Command searcher loads the current index generation and serves the search
// API. It refuses to listen until a generation has been loaded, and swaps in
// newly published generations while running.
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
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/store"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/quotex/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/resilience"
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
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"data_dir", cfg.Index.DataDir,
		"tagger", cfg.Normalizer.Tagger,
		"lemmatizer", cfg.Normalizer.Lemmatizer,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdownMetrics(context.Background())
	}

	n, err := normalizer.NewFromConfig(cfg.Normalizer.Tagger, cfg.Normalizer.Lemmatizer)
	if err != nil {
		slog.Error("failed to load linguistic resources", "error", err)
		os.Exit(1)
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Search.CacheEnabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, cache.WithMetrics(m))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	holder := &store.Holder{}
	reloadOpts := []reload.Option{
		reload.WithMetrics(m),
		reload.WithRetry(resilience.RetryConfig{
			MaxAttempts:  cfg.Index.LoadAttempts,
			InitialDelay: cfg.Index.LoadBackoff,
		}),
	}
	if queryCache != nil {
		reloadOpts = append(reloadOpts, reload.WithCache(queryCache))
	}
	reloader := reload.New(cfg.Index.DataDir, holder, reloadOpts...)
	if err := reloader.LoadCurrent(ctx); err != nil {
		slog.Error("failed to load index", "data_dir", cfg.Index.DataDir, "error", err)
		os.Exit(1)
	}

	var collector *analytics.Collector
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, cfg.Analytics.BufferSize)
		collector.Start(ctx)
		defer collector.Close()

		reloadConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexPublished,
			reload.HandleMessage(reloader), kafka.Broadcast())
		go func() {
			if err := reloadConsumer.Start(ctx); err != nil {
				slog.Error("reload consumer error", "error", err)
			}
		}()
		slog.Info("kafka wiring enabled",
			"analytics_topic", cfg.Kafka.Topics.AnalyticsEvents,
			"reload_topic", cfg.Kafka.Topics.IndexPublished,
		)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		s := holder.Current()
		if s == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no generation loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%s, %d documents", s.Generation(), s.DocCount()),
		}
	})
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, true))
	}

	exec := executor.New(holder, parser.New(n), m)
	h := handler.New(exec, queryCache, collector, m)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr, "generation", holder.Current().Generation())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// In-flight requests still track analytics events; let them finish
	// before the deferred collector shutdown.
	<-shutdownDone

	slog.Info("search service stopped")
}
