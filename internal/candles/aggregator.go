// Package candles buckets raw virality snapshots into OHLCV market candles.
package candles

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"viraltrade/internal/cache"
	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
)

// Aggregator produces interval-aligned candles from the snapshot stream.
// Aggregation is idempotent: candles are upserted by (symbol, interval,
// bucket start), so re-running an identical window yields an identical set.
type Aggregator struct {
	snapshots storage.SnapshotStore
	candles   storage.CandleStore
	symbols   storage.SymbolStore
	prices    storage.PriceRecordStore
	cache     cache.Cache
	logger    *zap.Logger
	now       func() time.Time
}

// NewAggregator creates a candle aggregator.
func NewAggregator(snapshots storage.SnapshotStore, candleStore storage.CandleStore, symbols storage.SymbolStore, prices storage.PriceRecordStore, c cache.Cache, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		snapshots: snapshots,
		candles:   candleStore,
		symbols:   symbols,
		prices:    prices,
		cache:     c,
		logger:    logger,
		now:       time.Now,
	}
}

// Aggregate fetches ordered snapshots for the symbol's topic in [start, end),
// partitions them into calendar-aligned buckets and upserts the resulting
// candles. An empty input range yields an empty result, not an error.
func (a *Aggregator) Aggregate(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) ([]*domain.MarketCandle, error) {
	if !interval.Valid() {
		return nil, fmt.Errorf("%w: interval %q", storage.ErrInvalidInput, interval)
	}
	if !end.After(start) {
		return nil, nil
	}

	sym, err := a.symbols.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load symbol %s: %w", symbol, err)
	}

	snaps, err := a.snapshots.GetByTimeRange(ctx, sym.TopicID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load snapshots for %s: %w", symbol, err)
	}
	if len(snaps) == 0 {
		return nil, nil
	}

	built := BuildCandles(symbol, interval, snaps)
	if err := a.candles.Upsert(ctx, built); err != nil {
		return nil, fmt.Errorf("upsert candles for %s: %w", symbol, err)
	}

	// History pages for this symbol are stale now.
	if err := a.cache.DeleteByPrefix(ctx, "history:"+symbol+":"); err != nil {
		a.logger.Warn("history cache invalidation failed",
			zap.String("symbol", symbol), zap.Error(err))
	}

	return built, nil
}

// BuildCandles partitions snapshots into fixed-width buckets. Bucket start
// is the snapshot timestamp with sub-interval fields zeroed. Per bucket:
// open/close from first/last virality index, high/low from extremes, volume
// from summed engagement, plus derived means and population-stddev
// volatility. Output is ordered by bucket start ASC.
func BuildCandles(symbol string, interval domain.Interval, snaps []*domain.ViralitySnapshot) []*domain.MarketCandle {
	if len(snaps) == 0 {
		return nil
	}

	buckets := make(map[time.Time][]*domain.ViralitySnapshot)
	for _, s := range snaps {
		key := interval.Truncate(s.Timestamp)
		buckets[key] = append(buckets[key], s)
	}

	result := make([]*domain.MarketCandle, 0, len(buckets))
	for bucketStart, group := range buckets {
		sort.Slice(group, func(i, j int) bool {
			return group[i].Timestamp.Before(group[j].Timestamp)
		})
		result = append(result, buildCandle(symbol, interval, bucketStart, group))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].BucketStart.Before(result[j].BucketStart)
	})
	return result
}

// buildCandle aggregates one bucket's snapshots, already sorted by time.
func buildCandle(symbol string, interval domain.Interval, bucketStart time.Time, group []*domain.ViralitySnapshot) *domain.MarketCandle {
	c := &domain.MarketCandle{
		Symbol:      symbol,
		Interval:    interval,
		BucketStart: bucketStart,
		Open:        group[0].ViralityIndex,
		Close:       group[len(group)-1].ViralityIndex,
		High:        group[0].ViralityIndex,
		Low:         group[0].ViralityIndex,
		SampleCount: len(group),
	}

	var sentimentSum, velocitySum float64
	for _, s := range group {
		if s.ViralityIndex > c.High {
			c.High = s.ViralityIndex
		}
		if s.ViralityIndex < c.Low {
			c.Low = s.ViralityIndex
		}
		c.Volume += s.EngagementTotal
		sentimentSum += s.SentimentMean
		velocitySum += s.Velocity
	}

	n := float64(len(group))
	c.SentimentMean = sentimentSum / n
	c.VelocityMean = velocitySum / n
	c.EngagementRate = c.Volume / float64(interval.Seconds())

	// Momentum: mean first-difference of the virality index.
	if len(group) > 1 {
		var diffSum float64
		for i := 1; i < len(group); i++ {
			diffSum += group[i].ViralityIndex - group[i-1].ViralityIndex
		}
		c.Momentum = diffSum / float64(len(group)-1)
	}

	// Volatility: population standard deviation of the virality index.
	var mean float64
	for _, s := range group {
		mean += s.ViralityIndex
	}
	mean /= n
	var variance float64
	for _, s := range group {
		variance += (s.ViralityIndex - mean) * (s.ViralityIndex - mean)
	}
	c.Volatility = math.Sqrt(variance / n)

	return c
}
