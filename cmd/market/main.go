// Package main runs the market core: the scheduler and its workers, the
// websocket virality ingest, and the Prometheus metrics endpoint.
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

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"viraltrade/internal/cache"
	"viraltrade/internal/candles"
	"viraltrade/internal/config"
	"viraltrade/internal/market"
	"viraltrade/internal/observability"
	"viraltrade/internal/orderbook"
	"viraltrade/internal/pricing"
	"viraltrade/internal/scheduler"
	feed "viraltrade/internal/signal"
	"viraltrade/internal/storage"
	chstore "viraltrade/internal/storage/clickhouse"
	"viraltrade/internal/storage/memory"
	"viraltrade/internal/storage/migrations"
	pgstore "viraltrade/internal/storage/postgres"
	"viraltrade/internal/symbols"
	"viraltrade/internal/trending"
)

type stores struct {
	topics    storage.TopicStore
	symbols   storage.SymbolStore
	prices    storage.PriceRecordStore
	candles   storage.CandleStore
	snapshots storage.SnapshotStore
}

func main() {
	configPath := flag.String("config", "", "Path to config file (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of Postgres/ClickHouse")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM; second signal forces exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
		select {
		case <-sigCh:
			logger.Warn("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	st, cleanup, err := openStores(ctx, cfg, *useMemory)
	if err != nil {
		logger.Fatal("open stores", zap.Error(err))
	}
	defer cleanup()

	c, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		logger.Fatal("open cache", zap.Error(err))
	}
	defer closeCache()

	metrics := observability.NewMetrics("viraltrade")

	var normalizerOpts []symbols.NormalizerOption
	if cfg.StrictSymbols {
		normalizerOpts = append(normalizerOpts, symbols.WithStrictMode())
	}
	registry := symbols.NewRegistry(st.symbols, st.snapshots, symbols.NewNormalizer(normalizerOpts...), c, logger)

	source := feed.NewStoreSource(st.snapshots, st.topics)
	books := &orderbook.StaticClient{}

	engine := pricing.NewEngine(st.symbols, st.prices, source, books, c,
		pricing.Config{VelocityMultiplier: cfg.VelocityMultiplier}, logger)
	aggregator := candles.NewAggregator(st.snapshots, st.candles, st.symbols, st.prices, c, logger)
	ranker := trending.NewRanker(st.symbols, st.prices, c, logger)

	sched := scheduler.New(cfg.Workers, logger, metrics)
	service := market.NewService(st.symbols, st.topics, st.candles,
		engine, aggregator, ranker, registry, source, books, c, metrics,
		market.Config{RetentionDays: cfg.RetentionDays, TrendingLimit: cfg.TrendingLimit}, logger)
	service.RegisterJobs(sched)

	if cfg.SignalURL != "" {
		ingest := feed.NewIngest(cfg.SignalURL, feed.DefaultIngestConfig(), st.snapshots, st.topics, logger)
		go func() {
			if err := ingest.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("signal ingest stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("no signal endpoint configured, running without live ingest")
	}

	go serveMetrics(cfg.MetricsAddr, logger)

	logger.Info("market core started",
		zap.Int("workers", cfg.Workers),
		zap.Bool("memory_storage", *useMemory))

	sched.Start(ctx)
	logger.Info("shutdown complete")
}

// openStores wires either the in-memory stores or Postgres + ClickHouse
// with migrations applied.
func openStores(ctx context.Context, cfg *config.Config, useMemory bool) (*stores, func(), error) {
	if useMemory {
		return &stores{
			topics:    memory.NewTopicStore(),
			symbols:   memory.NewSymbolStore(),
			prices:    memory.NewPriceRecordStore(),
			candles:   memory.NewCandleStore(),
			snapshots: memory.NewSnapshotStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		pool.Close()
		conn.Close()
	}
	return &stores{
		topics:    pgstore.NewTopicStore(pool),
		symbols:   pgstore.NewSymbolStore(pool),
		prices:    pgstore.NewPriceRecordStore(pool),
		candles:   chstore.NewCandleStore(conn),
		snapshots: chstore.NewSnapshotStore(conn),
	}, cleanup, nil
}

// openCache selects Redis when configured, in-memory otherwise.
func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(), error) {
	if cfg.RedisAddr == "" {
		m := cache.NewMemory()
		return m, m.Close, nil
	}

	r, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return r, func() { _ = r.Close() }, nil
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
