// Package main rebuilds historical candles from stored virality
// snapshots. Use after changing aggregation logic or importing a
// snapshot dump.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"viraltrade/internal/cache"
	"viraltrade/internal/candles"
	"viraltrade/internal/config"
	"viraltrade/internal/domain"
	chstore "viraltrade/internal/storage/clickhouse"
	"viraltrade/internal/storage/migrations"
	pgstore "viraltrade/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (optional)")
	symbol := flag.String("symbol", "", "Symbol to backfill (empty backfills every active symbol)")
	intervalFlag := flag.String("interval", "", "Interval to rebuild (empty rebuilds all)")
	days := flag.Int("days", 30, "Number of trailing days to rebuild")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *days < 1 {
		logger.Fatal("days must be at least 1", zap.Int("days", *days))
	}

	intervals := domain.Intervals()
	if *intervalFlag != "" {
		interval, err := domain.ParseInterval(*intervalFlag)
		if err != nil {
			logger.Fatal("invalid interval", zap.String("interval", *intervalFlag), zap.Error(err))
		}
		intervals = []domain.Interval{interval}
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatal("postgres migrations", zap.Error(err))
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		logger.Fatal("clickhouse migrations", zap.Error(err))
	}
	defer conn.Close()

	symbolStore := pgstore.NewSymbolStore(pool)
	priceStore := pgstore.NewPriceRecordStore(pool)
	candleStore := chstore.NewCandleStore(conn)
	snapshotStore := chstore.NewSnapshotStore(conn)

	c := cache.NewMemory()
	defer c.Close()

	aggregator := candles.NewAggregator(snapshotStore, candleStore, symbolStore, priceStore, c, logger)

	var targets []string
	if *symbol != "" {
		targets = []string{*symbol}
	} else {
		active, err := symbolStore.GetActive(ctx)
		if err != nil {
			logger.Fatal("load active symbols", zap.Error(err))
		}
		for _, sym := range active {
			targets = append(targets, sym.Symbol)
		}
	}

	end := time.Now().UTC()
	start := end.Add(-time.Duration(*days) * 24 * time.Hour)

	var total int
	for _, target := range targets {
		for _, interval := range intervals {
			n, err := aggregator.SyncHistorical(ctx, target, interval, start, end)
			if err != nil {
				logger.Error("backfill failed",
					zap.String("symbol", target),
					zap.String("interval", string(interval)),
					zap.Error(err))
				continue
			}
			total += n
			logger.Info("backfilled",
				zap.String("symbol", target),
				zap.String("interval", string(interval)),
				zap.Int("candles", n))
		}
	}

	logger.Info("backfill complete",
		zap.Int("symbols", len(targets)),
		zap.Int("candles", total))
}
