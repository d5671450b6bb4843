// Package trending scores and ranks active symbols. The score is an
// ordinal heuristic over fixed tier boundaries, not a normalized statistic.
package trending

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"viraltrade/internal/cache"
	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
)

// DefaultTimeframe uses the precomputed 24h rollup fields on each symbol.
const DefaultTimeframe = "24h"

// ErrInvalidTimeframe rejects timeframes outside the closed set.
var ErrInvalidTimeframe = errors.New("invalid trending timeframe")

// timeframeWindows maps non-default timeframes to their trailing windows.
// These are ranked from raw price history instead of 24h rollups.
var timeframeWindows = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// Ranker computes trending snapshots and swaps them into the cache
// atomically: the full snapshot is written under a fresh key first and the
// current-pointer is flipped last, so readers never see a partial list.
type Ranker struct {
	symbols storage.SymbolStore
	prices  storage.PriceRecordStore
	cache   cache.Cache
	logger  *zap.Logger
	now     func() time.Time
}

// NewRanker creates a trending ranker.
func NewRanker(symbols storage.SymbolStore, prices storage.PriceRecordStore, c cache.Cache, logger *zap.Logger) *Ranker {
	return &Ranker{
		symbols: symbols,
		prices:  prices,
		cache:   c,
		logger:  logger,
		now:     time.Now,
	}
}

// Rank scores all active symbols over the timeframe, sorts descending with
// ties kept in stable input order, caps the list at limit and publishes the
// snapshot to the cache. Returns the published snapshot.
func (r *Ranker) Rank(ctx context.Context, timeframe string, limit int) (*domain.TrendingSnapshot, error) {
	if timeframe == "" {
		timeframe = DefaultTimeframe
	}
	if _, ok := timeframeWindows[timeframe]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeframe, timeframe)
	}

	symbols, err := r.symbols.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active symbols: %w", err)
	}

	now := r.now().UTC()
	entries := make([]domain.TrendingEntry, 0, len(symbols))
	for _, sym := range symbols {
		entry, err := r.scoreSymbol(ctx, sym, timeframe, now)
		if err != nil {
			// Per-symbol failures are isolated; ranking continues.
			r.logger.Warn("scoring failed",
				zap.String("symbol", sym.Symbol), zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	snapshot := &domain.TrendingSnapshot{
		ID:          uuid.NewString(),
		Timeframe:   timeframe,
		Entries:     entries,
		GeneratedAt: now,
	}
	if err := r.publish(ctx, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Cached returns the currently published snapshot for a timeframe, or nil
// when none is published.
func (r *Ranker) Cached(ctx context.Context, timeframe string) (*domain.TrendingSnapshot, error) {
	if timeframe == "" {
		timeframe = DefaultTimeframe
	}

	var id string
	found, err := r.cache.Get(ctx, cache.TrendingPointerKey(timeframe), &id)
	if err != nil || !found {
		return nil, err
	}

	var snapshot domain.TrendingSnapshot
	found, err = r.cache.Get(ctx, cache.TrendingSnapshotKey(id), &snapshot)
	if err != nil || !found {
		return nil, err
	}
	return &snapshot, nil
}

// publish writes the snapshot body first, then flips the pointer.
func (r *Ranker) publish(ctx context.Context, snapshot *domain.TrendingSnapshot) error {
	if err := r.cache.Set(ctx, cache.TrendingSnapshotKey(snapshot.ID), snapshot, cache.TTLDailyAnalytics); err != nil {
		return fmt.Errorf("write trending snapshot: %w", err)
	}
	if err := r.cache.Set(ctx, cache.TrendingPointerKey(snapshot.Timeframe), snapshot.ID, cache.TTLDailyAnalytics); err != nil {
		return fmt.Errorf("flip trending pointer: %w", err)
	}
	return nil
}

// scoreSymbol computes one symbol's entry. The default timeframe reads the
// precomputed 24h rollups; other timeframes join raw price history over the
// requested window.
func (r *Ranker) scoreSymbol(ctx context.Context, sym *domain.Symbol, timeframe string, now time.Time) (domain.TrendingEntry, error) {
	volume := sym.Volume24h
	changePct := sym.ChangePct24h

	if timeframe != DefaultTimeframe {
		var err error
		volume, changePct, err = r.windowStats(ctx, sym, timeframeWindows[timeframe], now)
		if err != nil {
			return domain.TrendingEntry{}, err
		}
	}

	score := volumeTier(volume) + changeTier(math.Abs(changePct)) + viralityTier(sym.LastViralityScore)
	return domain.TrendingEntry{
		Symbol:       sym.Symbol,
		Score:        score,
		CurrentPrice: sym.CurrentPrice,
		ChangePct:    changePct,
		Volume:       volume,
		GeneratedAt:  now,
	}, nil
}

// windowStats recomputes volume and price change over an arbitrary window
// from raw price records.
func (r *Ranker) windowStats(ctx context.Context, sym *domain.Symbol, window time.Duration, now time.Time) (volume, changePct float64, err error) {
	start := now.Add(-window)

	records, err := r.prices.GetByTimeRange(ctx, sym.Symbol, start, now)
	if err != nil {
		return 0, 0, err
	}
	for _, rec := range records {
		volume += rec.Volume
	}

	reference := sym.BasePrice
	if rec, err := r.prices.LatestBefore(ctx, sym.Symbol, start); err == nil {
		reference = rec.Close
	} else if !errors.Is(err, storage.ErrNotFound) {
		return 0, 0, err
	} else if len(records) > 0 {
		reference = records[0].Close
	}

	if reference != 0 {
		changePct = (sym.CurrentPrice - reference) / reference * 100
	}
	return volume, changePct, nil
}

// Tier tables. Values carry their weight directly: volume is worth up to 40
// points, price change and virality up to 30 each.

func volumeTier(volume float64) float64 {
	switch {
	case volume > 100_000:
		return 40
	case volume > 50_000:
		return 30
	case volume > 10_000:
		return 20
	case volume > 1_000:
		return 10
	default:
		return 0
	}
}

func changeTier(absChangePct float64) float64 {
	switch {
	case absChangePct > 20:
		return 30
	case absChangePct > 10:
		return 20
	case absChangePct > 5:
		return 15
	case absChangePct > 1:
		return 10
	default:
		return 0
	}
}

func viralityTier(virality float64) float64 {
	switch {
	case virality > 80:
		return 30
	case virality > 50:
		return 20
	case virality > 30:
		return 15
	case virality > 10:
		return 10
	default:
		return 0
	}
}
