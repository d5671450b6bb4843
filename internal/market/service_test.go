package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"viraltrade/internal/cache"
	"viraltrade/internal/candles"
	"viraltrade/internal/domain"
	"viraltrade/internal/orderbook"
	"viraltrade/internal/pricing"
	"viraltrade/internal/signal"
	"viraltrade/internal/storage"
	"viraltrade/internal/storage/memory"
	"viraltrade/internal/symbols"
	"viraltrade/internal/trending"
)

type serviceFixture struct {
	service   *Service
	symbols   *memory.SymbolStore
	prices    *memory.PriceRecordStore
	snapshots *memory.SnapshotStore
	candles   *memory.CandleStore
	topics    *memory.TopicStore
	cache     *cache.Memory
	engine    *pricing.Engine
	registry  *symbols.Registry
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		symbols:   memory.NewSymbolStore(),
		prices:    memory.NewPriceRecordStore(),
		snapshots: memory.NewSnapshotStore(),
		candles:   memory.NewCandleStore(),
		topics:    memory.NewTopicStore(),
		cache:     cache.NewMemory(),
	}
	t.Cleanup(f.cache.Close)

	logger := zap.NewNop()
	source := signal.NewStoreSource(f.snapshots, f.topics)
	books := &orderbook.StaticClient{}
	f.engine = pricing.NewEngine(f.symbols, f.prices, source, books, f.cache, pricing.DefaultConfig(), logger)
	aggregator := candles.NewAggregator(f.snapshots, f.candles, f.symbols, f.prices, f.cache, logger)
	ranker := trending.NewRanker(f.symbols, f.prices, f.cache, logger)
	f.registry = symbols.NewRegistry(f.symbols, f.snapshots, symbols.NewNormalizer(), f.cache, logger)

	f.service = NewService(f.symbols, f.topics, f.candles, f.engine, aggregator, ranker, f.registry,
		source, books, f.cache, nil, DefaultServiceConfig(), logger)
	return f
}

func (f *serviceFixture) listSymbol(t *testing.T, sym *domain.Symbol) {
	t.Helper()
	if sym.Status == "" {
		sym.Status = domain.StatusActive
		sym.Active = true
	}
	require.NoError(t, f.symbols.Insert(context.Background(), sym))
}

func TestSymbolWithLatestData(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.listSymbol(t, &domain.Symbol{
		Symbol:       "VIRAL/SA_MUSIC_AMAPIANO_001",
		TopicID:      "topic-1",
		BasePrice:    100,
		CurrentPrice: 120,
	})
	require.NoError(t, f.snapshots.Insert(ctx, &domain.ViralitySnapshot{
		TopicID:       "topic-1",
		ViralityIndex: 72,
		Timestamp:     time.Now().UTC(),
	}))

	data, err := f.service.SymbolWithLatestData(ctx, "VIRAL/SA_MUSIC_AMAPIANO_001")
	require.NoError(t, err)
	assert.Equal(t, 120.0, data.Symbol.CurrentPrice)
	require.NotNil(t, data.Virality)
	assert.Equal(t, 72.0, data.Virality.ViralityIndex)
	require.NotNil(t, data.OrderBook)

	// Second read is served from cache.
	hit, err := f.cache.Get(ctx, cache.SymbolKey("VIRAL/SA_MUSIC_AMAPIANO_001"), &SymbolData{})
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestSymbolWithLatestData_UnknownSymbol(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.SymbolWithLatestData(context.Background(), "VIRAL/XX_TREND_NOPE_001")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSymbolWithLatestData_NoSnapshotYet(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.listSymbol(t, &domain.Symbol{
		Symbol:  "VIRAL/US_TECH_AI_AGENTS_001",
		TopicID: "topic-2",
	})

	data, err := f.service.SymbolWithLatestData(ctx, "VIRAL/US_TECH_AI_AGENTS_001")
	require.NoError(t, err)
	assert.Nil(t, data.Virality)
}

func TestActiveSymbols_ExcludesDelisted(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.listSymbol(t, &domain.Symbol{Symbol: "VIRAL/SA_MUSIC_A_001", TopicID: "t1"})
	f.listSymbol(t, &domain.Symbol{
		Symbol: "VIRAL/SA_MUSIC_B_001", TopicID: "t2",
		Status: domain.StatusDelisted, Active: false,
	})

	active, err := f.service.ActiveSymbols(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "VIRAL/SA_MUSIC_A_001", active[0].Symbol)
}

func TestActiveSymbols_DelistDropsCachedList(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.listSymbol(t, &domain.Symbol{Symbol: "VIRAL/SA_MUSIC_A_001", TopicID: "t1"})

	// Prime the cached active list, then delist through the registry.
	active, err := f.service.ActiveSymbols(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, f.registry.Delist(ctx, "VIRAL/SA_MUSIC_A_001"))

	active, err = f.service.ActiveSymbols(ctx)
	require.NoError(t, err)
	assert.Empty(t, active, "delisted symbol must not keep serving from the cached list")
}

func TestSymbolWithLatestData_DelistDropsComposite(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.listSymbol(t, &domain.Symbol{Symbol: "VIRAL/US_MEME_C_001", TopicID: "t3"})

	_, err := f.service.SymbolWithLatestData(ctx, "VIRAL/US_MEME_C_001")
	require.NoError(t, err)

	require.NoError(t, f.registry.Delist(ctx, "VIRAL/US_MEME_C_001"))

	got, err := f.service.SymbolWithLatestData(ctx, "VIRAL/US_MEME_C_001")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelisted, got.Symbol.Status,
		"composite read reflects the delist immediately, not after TTL expiry")
}

func TestPriceHistory_AscendingAndCached(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var cs []*domain.MarketCandle
	for i := 0; i < 3; i++ {
		cs = append(cs, &domain.MarketCandle{
			Symbol:      "VIRAL/SA_MUSIC_A_001",
			Interval:    domain.Interval1h,
			BucketStart: base.Add(time.Duration(i) * time.Hour),
			Open:        float64(10 + i),
			High:        float64(10 + i),
			Low:         float64(10 + i),
			Close:       float64(10 + i),
		})
	}
	require.NoError(t, f.candles.Upsert(ctx, cs))

	history, err := f.service.PriceHistory(ctx, "VIRAL/SA_MUSIC_A_001", domain.Interval1h, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].BucketStart.Before(history[1].BucketStart))
	assert.True(t, history[1].BucketStart.Before(history[2].BucketStart))

	hit, err := f.cache.Get(ctx, cache.HistoryKey("VIRAL/SA_MUSIC_A_001", domain.Interval1h, 10), &[]*domain.MarketCandle{})
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestPriceHistory_InvalidInterval(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.PriceHistory(context.Background(), "VIRAL/SA_MUSIC_A_001", domain.Interval("2w"), 10)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestTrendingSymbols_SortOrders(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.listSymbol(t, &domain.Symbol{
		Symbol: "VIRAL/SA_MUSIC_BIG_001", TopicID: "t1",
		BasePrice: 100, CurrentPrice: 130, ChangePct24h: 30,
		Volume24h: 150_000, LastViralityScore: 85,
	})
	f.listSymbol(t, &domain.Symbol{
		Symbol: "VIRAL/SA_MUSIC_SMALL_001", TopicID: "t2",
		BasePrice: 100, CurrentPrice: 145, ChangePct24h: 45,
		Volume24h: 500, LastViralityScore: 5,
	})

	byScore, err := f.service.TrendingSymbols(ctx, 10, SortByScore, "")
	require.NoError(t, err)
	require.Len(t, byScore, 2)
	assert.Equal(t, "VIRAL/SA_MUSIC_BIG_001", byScore[0].Symbol)

	byChange, err := f.service.TrendingSymbols(ctx, 10, SortByChange, "")
	require.NoError(t, err)
	assert.Equal(t, "VIRAL/SA_MUSIC_SMALL_001", byChange[0].Symbol)

	byVolume, err := f.service.TrendingSymbols(ctx, 10, SortByVolume, "")
	require.NoError(t, err)
	assert.Equal(t, "VIRAL/SA_MUSIC_BIG_001", byVolume[0].Symbol)
}

func TestTrendingSymbols_InvalidSortBy(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.TrendingSymbols(context.Background(), 10, "alphabetical", "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestMarketSummary(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.listSymbol(t, &domain.Symbol{
		Symbol: "VIRAL/SA_MUSIC_UP_001", TopicID: "t1",
		ChangePct24h: 12, Volume24h: 1000,
	})
	f.listSymbol(t, &domain.Symbol{
		Symbol: "VIRAL/SA_MUSIC_DOWN_001", TopicID: "t2",
		ChangePct24h: -4, Volume24h: 500,
	})
	f.listSymbol(t, &domain.Symbol{
		Symbol: "VIRAL/SA_MUSIC_FLAT_001", TopicID: "t3",
		ChangePct24h: 0, Volume24h: 0,
	})

	summary, err := f.service.MarketSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ActiveSymbols)
	assert.Equal(t, 1500.0, summary.TotalVolume24h)
	assert.Equal(t, 1, summary.Gainers)
	assert.Equal(t, 1, summary.Losers)
	assert.Equal(t, "VIRAL/SA_MUSIC_UP_001", summary.TopGainer)
	assert.Equal(t, "VIRAL/SA_MUSIC_DOWN_001", summary.TopLoser)
}

func TestMarketStats_Cached(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.listSymbol(t, &domain.Symbol{
		Symbol: "VIRAL/SA_MUSIC_A_001", TopicID: "t1",
		BasePrice: 100, CurrentPrice: 110,
	})

	stats, err := f.service.MarketStats(ctx, "VIRAL/SA_MUSIC_A_001")
	require.NoError(t, err)
	assert.Equal(t, 110.0, stats.CurrentPrice)

	hit, err := f.cache.Get(ctx, cache.StatsKey("VIRAL/SA_MUSIC_A_001"), &pricing.MarketStats{})
	require.NoError(t, err)
	assert.True(t, hit)
}
