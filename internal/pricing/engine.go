// Package pricing converts virality measurements into symbol prices.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"viraltrade/internal/cache"
	"viraltrade/internal/domain"
	"viraltrade/internal/orderbook"
	"viraltrade/internal/signal"
	"viraltrade/internal/storage"
)

// minPrice is the hard floor for any computed price.
const minPrice = 0.01

// velocityFallbackDepth is how many recent records feed the velocity
// fallback when the snapshot carries none.
const velocityFallbackDepth = 10

// Config tunes the pricing formula.
type Config struct {
	// VelocityMultiplier scales the virality delta. Default 2.0.
	VelocityMultiplier float64
}

// DefaultConfig returns the default pricing configuration.
func DefaultConfig() Config {
	return Config{VelocityMultiplier: 2.0}
}

// Engine computes prices, writes price records and keeps the per-symbol
// virality baseline. All baseline mutation is serialized per symbol.
type Engine struct {
	symbols storage.SymbolStore
	prices  storage.PriceRecordStore
	source  signal.Source
	books   orderbook.Client
	cache   cache.Cache
	logger  *zap.Logger
	cfg     Config

	locks *keyedMutex
	now   func() time.Time
}

// NewEngine creates a pricing engine.
func NewEngine(symbols storage.SymbolStore, prices storage.PriceRecordStore, source signal.Source, books orderbook.Client, c cache.Cache, cfg Config, logger *zap.Logger) *Engine {
	if cfg.VelocityMultiplier == 0 {
		cfg.VelocityMultiplier = DefaultConfig().VelocityMultiplier
	}
	return &Engine{
		symbols: symbols,
		prices:  prices,
		source:  source,
		books:   books,
		cache:   c,
		logger:  logger,
		cfg:     cfg,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

// ComputePrice computes the next price for a symbol from its latest
// virality snapshot (or the override), writes a PriceRecord, advances the
// baseline and invalidates the symbol's cache keys.
//
//	viralityDelta   = virality - lastViralityScore
//	priceChange     = delta * velocityMultiplier * (1 + 0.5*sentiment) * (1 + 0.1*imbalance)
//	newPrice        = max(0.01, basePrice + priceChange), rounded to 2 decimals
//
// A snapshot not newer than the recorded baseline is a duplicate or
// re-ordered job execution; it is skipped without mutation and the current
// price is returned. Returns storage.ErrNotFound for unknown symbols.
func (e *Engine) ComputePrice(ctx context.Context, symbol string, override *domain.ViralitySnapshot) (float64, error) {
	unlock := e.locks.lock(symbol)
	defer unlock()

	sym, err := e.symbols.GetBySymbol(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("load symbol %s: %w", symbol, err)
	}

	snap := override
	if snap == nil {
		snap, err = e.latestSnapshot(ctx, sym.TopicID)
		if errors.Is(err, storage.ErrNotFound) {
			// No measurements yet; nothing to price from.
			return sym.CurrentPrice, nil
		}
		if err != nil {
			return 0, fmt.Errorf("load snapshot for %s: %w", symbol, err)
		}
	}

	// Idempotency gate: duplicate and out-of-order executions are discarded.
	if !snap.Timestamp.After(sym.BaselineAt) {
		return sym.CurrentPrice, nil
	}

	imbalance, err := e.books.Imbalance(ctx, symbol)
	if err != nil {
		// Order-book outage degrades to a neutral factor.
		e.logger.Warn("order book unavailable, using neutral imbalance",
			zap.String("symbol", symbol), zap.Error(err))
		imbalance = 0
	}

	velocity := snap.Velocity
	if velocity == 0 {
		velocity = e.fallbackVelocity(ctx, symbol)
	}

	newPrice := computeFormula(sym.BasePrice, sym.LastViralityScore, snap.ViralityIndex, snap.SentimentMean, imbalance, e.cfg.VelocityMultiplier)

	now := e.now().UTC()
	record := &domain.PriceRecord{
		Symbol:        symbol,
		Open:          sym.CurrentPrice,
		High:          math.Max(sym.CurrentPrice, newPrice),
		Low:           math.Min(sym.CurrentPrice, newPrice),
		Close:         newPrice,
		Volume:        snap.EngagementTotal,
		ViralityScore: snap.ViralityIndex,
		Velocity:      velocity,
		Sentiment:     snap.SentimentMean,
		Imbalance:     imbalance,
		Timestamp:     now,
		Interval:      domain.Interval1m,
	}
	if err := e.prices.Insert(ctx, record); err != nil {
		return 0, fmt.Errorf("insert price record for %s: %w", symbol, err)
	}

	sym.CurrentPrice = newPrice
	if newPrice > sym.High24h {
		sym.High24h = newPrice
	}
	if newPrice < sym.Low24h || sym.Low24h == 0 {
		sym.Low24h = newPrice
	}
	sym.LastViralityScore = snap.ViralityIndex
	sym.LastVelocity = velocity
	sym.LastSentiment = snap.SentimentMean
	sym.BaselineAt = snap.Timestamp
	sym.BaselineSeq++
	sym.UpdatedAt = now

	if err := e.symbols.Update(ctx, sym); err != nil {
		return 0, fmt.Errorf("update symbol %s: %w", symbol, err)
	}

	e.invalidate(ctx, symbol)
	return newPrice, nil
}

// computeFormula applies the pricing formula with 2-decimal rounding and
// the 0.01 floor.
func computeFormula(basePrice, lastVirality, virality, sentiment, imbalance, velocityMultiplier float64) float64 {
	delta := decimal.NewFromFloat(virality).Sub(decimal.NewFromFloat(lastVirality))
	sentimentWeight := decimal.NewFromFloat(1).Add(decimal.NewFromFloat(0.5).Mul(decimal.NewFromFloat(sentiment)))
	orderBookFactor := decimal.NewFromFloat(1).Add(decimal.NewFromFloat(0.1).Mul(decimal.NewFromFloat(imbalance)))

	change := delta.
		Mul(decimal.NewFromFloat(velocityMultiplier)).
		Mul(sentimentWeight).
		Mul(orderBookFactor)

	price := decimal.NewFromFloat(basePrice).Add(change).Round(2)
	if price.LessThan(decimal.NewFromFloat(minPrice)) {
		return minPrice
	}
	return price.InexactFloat64()
}

// latestSnapshot returns the topic's newest snapshot, cache-backed with the
// virality TTL.
func (e *Engine) latestSnapshot(ctx context.Context, topicID string) (*domain.ViralitySnapshot, error) {
	key := cache.ViralityKey(topicID)

	var cached domain.ViralitySnapshot
	if found, err := e.cache.Get(ctx, key, &cached); err == nil && found {
		return &cached, nil
	}

	snap, err := e.source.Latest(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if err := e.cache.Set(ctx, key, snap, cache.TTLVirality); err != nil {
		e.logger.Warn("cache snapshot", zap.String("topic_id", topicID), zap.Error(err))
	}
	return snap, nil
}

// fallbackVelocity is the mean signed fractional change across the last 10
// price records. Zero when history is too short.
func (e *Engine) fallbackVelocity(ctx context.Context, symbol string) float64 {
	records, err := e.prices.GetRecent(ctx, symbol, velocityFallbackDepth)
	if err != nil || len(records) < 2 {
		return 0
	}

	// records are newest-first; walk consecutive pairs.
	var sum float64
	var n int
	for i := 0; i < len(records)-1; i++ {
		prev := records[i+1].Close
		if prev == 0 {
			continue
		}
		sum += (records[i].Close - prev) / prev
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// invalidate deletes every cache key a price mutation makes stale.
func (e *Engine) invalidate(ctx context.Context, symbol string) {
	keys := append(cache.SymbolKeys(symbol), cache.SummaryKey())
	if err := e.cache.Delete(ctx, keys...); err != nil {
		e.logger.Warn("cache invalidation failed", zap.String("symbol", symbol), zap.Error(err))
	}
}
