// Package market is the read facade over the market core and the owner
// of the scheduler job handlers. All mutation flows through jobs; the
// read methods are cache-backed and never write market state.
package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"viraltrade/internal/cache"
	"viraltrade/internal/candles"
	"viraltrade/internal/domain"
	"viraltrade/internal/observability"
	"viraltrade/internal/orderbook"
	"viraltrade/internal/pricing"
	"viraltrade/internal/signal"
	"viraltrade/internal/storage"
	"viraltrade/internal/symbols"
	"viraltrade/internal/trending"
)

const (
	defaultRetentionDays = 90
	defaultTrendingLimit = 50
)

// Sort orders accepted by TrendingSymbols.
const (
	SortByScore  = "score"
	SortByVolume = "volume"
	SortByChange = "change"
)

// Config tunes the service and its job handlers.
type Config struct {
	RetentionDays int
	TrendingLimit int
}

// DefaultServiceConfig returns the production defaults.
func DefaultServiceConfig() Config {
	return Config{
		RetentionDays: defaultRetentionDays,
		TrendingLimit: defaultTrendingLimit,
	}
}

// Service exposes the read-only market surface and executes the
// scheduler jobs that mutate it.
type Service struct {
	symbolStore storage.SymbolStore
	topicStore  storage.TopicStore
	candleStore storage.CandleStore

	engine     *pricing.Engine
	aggregator *candles.Aggregator
	ranker     *trending.Ranker
	registry   *symbols.Registry
	source     signal.Source
	books      orderbook.Client
	cache      cache.Cache

	metrics *observability.Metrics
	logger  *zap.Logger
	cfg     Config
	now     func() time.Time
}

// NewService wires the market facade.
func NewService(
	symbolStore storage.SymbolStore,
	topicStore storage.TopicStore,
	candleStore storage.CandleStore,
	engine *pricing.Engine,
	aggregator *candles.Aggregator,
	ranker *trending.Ranker,
	registry *symbols.Registry,
	source signal.Source,
	books orderbook.Client,
	c cache.Cache,
	metrics *observability.Metrics,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	if cfg.TrendingLimit <= 0 {
		cfg.TrendingLimit = defaultTrendingLimit
	}
	return &Service{
		symbolStore: symbolStore,
		topicStore:  topicStore,
		candleStore: candleStore,
		engine:      engine,
		aggregator:  aggregator,
		ranker:      ranker,
		registry:    registry,
		source:      source,
		books:       books,
		cache:       c,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// SymbolData is the composite view of one symbol for the API layer.
type SymbolData struct {
	Symbol      *domain.Symbol           `json:"symbol"`
	Virality    *domain.ViralitySnapshot `json:"virality,omitempty"`
	OrderBook   *domain.OrderBook        `json:"orderBook,omitempty"`
	GeneratedAt time.Time                `json:"generatedAt"`
}

// SymbolWithLatestData returns a symbol with its latest virality
// snapshot and order book attached.
func (s *Service) SymbolWithLatestData(ctx context.Context, symbol string) (*SymbolData, error) {
	key := cache.SymbolKey(symbol)
	var cached SymbolData
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	sym, err := s.symbolStore.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load symbol %s: %w", symbol, err)
	}

	data := &SymbolData{
		Symbol:      sym,
		GeneratedAt: s.now().UTC(),
	}

	snap, err := s.source.Latest(ctx, sym.TopicID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("latest snapshot unavailable",
			zap.String("symbol", symbol), zap.Error(err))
	} else if err == nil {
		data.Virality = snap
	}

	book, err := s.books.Book(ctx, symbol)
	if err != nil {
		s.logger.Warn("order book unavailable",
			zap.String("symbol", symbol), zap.Error(err))
	} else {
		data.OrderBook = book
	}

	if err := s.cache.Set(ctx, key, data, cache.TTLSymbol); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return data, nil
}

// ActiveSymbols returns all listed symbols with the active flag set.
func (s *Service) ActiveSymbols(ctx context.Context) ([]*domain.Symbol, error) {
	key := cache.ActiveSymbolsKey()
	var cached []*domain.Symbol
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	active, err := s.symbolStore.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active symbols: %w", err)
	}

	if err := s.cache.Set(ctx, key, active, cache.TTLSymbol); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return active, nil
}

// TrendingSymbols returns the current trending ranking re-sorted by the
// requested order. An empty timeframe means the default ranking window;
// an empty sortBy means score order.
func (s *Service) TrendingSymbols(ctx context.Context, limit int, sortBy, timeframe string) ([]domain.TrendingEntry, error) {
	if timeframe == "" {
		timeframe = trending.DefaultTimeframe
	}
	if sortBy == "" {
		sortBy = SortByScore
	}
	if sortBy != SortByScore && sortBy != SortByVolume && sortBy != SortByChange {
		return nil, fmt.Errorf("sort order %q: %w", sortBy, storage.ErrInvalidInput)
	}
	if limit <= 0 || limit > s.cfg.TrendingLimit {
		limit = s.cfg.TrendingLimit
	}

	snapshot, err := s.ranker.Cached(ctx, timeframe)
	if err != nil {
		return nil, fmt.Errorf("trending %s: %w", timeframe, err)
	}
	if snapshot == nil {
		// No ranking cycle published yet for this timeframe.
		snapshot, err = s.ranker.Rank(ctx, timeframe, s.cfg.TrendingLimit)
		if err != nil {
			return nil, fmt.Errorf("trending %s: %w", timeframe, err)
		}
	}

	entries := make([]domain.TrendingEntry, len(snapshot.Entries))
	copy(entries, snapshot.Entries)

	switch sortBy {
	case SortByVolume:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Volume > entries[j].Volume
		})
	case SortByChange:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].ChangePct > entries[j].ChangePct
		})
	}

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// PriceHistory returns the newest candles for a symbol and interval in
// ascending bucket order, capped at limit.
func (s *Service) PriceHistory(ctx context.Context, symbol string, interval domain.Interval, limit int) ([]*domain.MarketCandle, error) {
	if !interval.Valid() {
		return nil, fmt.Errorf("interval %q: %w", interval, storage.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 100
	}

	key := cache.HistoryKey(symbol, interval, limit)
	var cached []*domain.MarketCandle
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	recent, err := s.candleStore.GetRecent(ctx, symbol, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("load candles %s/%s: %w", symbol, interval, err)
	}

	// Stored newest-first; charts consume oldest-first.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	if err := s.cache.Set(ctx, key, recent, cache.TTLHistory); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return recent, nil
}

// MarketStats returns the 24h aggregate view of a symbol.
func (s *Service) MarketStats(ctx context.Context, symbol string) (*pricing.MarketStats, error) {
	key := cache.StatsKey(symbol)
	var cached pricing.MarketStats
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	stats, err := s.engine.ComputeMarketStats(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, stats, cache.TTLSymbol); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return stats, nil
}

// MarketSummary is the whole-market aggregate view.
type MarketSummary struct {
	ActiveSymbols  int       `json:"activeSymbols"`
	TotalVolume24h float64   `json:"totalVolume24h"`
	Gainers        int       `json:"gainers"`
	Losers         int       `json:"losers"`
	TopGainer      string    `json:"topGainer,omitempty"`
	TopLoser       string    `json:"topLoser,omitempty"`
	TopGainerPct   float64   `json:"topGainerPct"`
	TopLoserPct    float64   `json:"topLoserPct"`
	GeneratedAt    time.Time `json:"generatedAt"`
}

// MarketSummary aggregates 24h stats across all active symbols.
func (s *Service) MarketSummary(ctx context.Context) (*MarketSummary, error) {
	key := cache.SummaryKey()
	var cached MarketSummary
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	active, err := s.symbolStore.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active symbols: %w", err)
	}

	summary := &MarketSummary{
		ActiveSymbols: len(active),
		GeneratedAt:   s.now().UTC(),
	}
	for _, sym := range active {
		summary.TotalVolume24h += sym.Volume24h
		switch {
		case sym.ChangePct24h > 0:
			summary.Gainers++
		case sym.ChangePct24h < 0:
			summary.Losers++
		}
		if sym.ChangePct24h > summary.TopGainerPct {
			summary.TopGainerPct = sym.ChangePct24h
			summary.TopGainer = sym.Symbol
		}
		if sym.ChangePct24h < summary.TopLoserPct {
			summary.TopLoserPct = sym.ChangePct24h
			summary.TopLoser = sym.Symbol
		}
	}

	if err := s.cache.Set(ctx, key, summary, cache.TTLSymbol); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return summary, nil
}
