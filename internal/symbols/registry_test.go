package symbols

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"viraltrade/internal/cache"
	"viraltrade/internal/domain"
	"viraltrade/internal/storage/memory"
)

func TestRegistry_EnsureSymbolIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSymbolStore()
	reg := NewRegistry(store, nil, NewNormalizer(), nil, zap.NewNop())

	topic := mkTopic("Amapiano remix", "music", "SA")

	first, err := reg.EnsureSymbol(ctx, topic)
	require.NoError(t, err)
	assert.True(t, IsValid(first.Symbol))
	assert.Equal(t, domain.StatusActive, first.Status)
	assert.True(t, first.Active)

	second, err := reg.EnsureSymbol(ctx, topic)
	require.NoError(t, err)
	assert.Equal(t, first.Symbol, second.Symbol, "re-listing the same topic returns the existing row")
}

func TestRegistry_CollisionWalksAlternatives(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSymbolStore()
	norm := NewNormalizer()
	reg := NewRegistry(store, nil, norm, nil, zap.NewNop())

	topic := mkTopic("Colliding trend", "meme", "US")
	canonical, err := norm.Normalize(topic)
	require.NoError(t, err)

	// Another topic already owns the canonical symbol.
	require.NoError(t, store.Insert(ctx, &domain.Symbol{
		Symbol:  canonical,
		TopicID: "other-topic",
		Active:  true,
	}))

	sym, err := reg.EnsureSymbol(ctx, topic)
	require.NoError(t, err)
	assert.NotEqual(t, canonical, sym.Symbol)
	assert.Equal(t, norm.GenerateAlternativeSymbols(canonical, 1)[0], sym.Symbol,
		"first alternative suffix is used on collision")
}

func TestRegistry_BasePriceFromSnapshot(t *testing.T) {
	ctx := context.Background()
	symStore := memory.NewSymbolStore()
	snapStore := memory.NewSnapshotStore()
	reg := NewRegistry(symStore, snapStore, NewNormalizer(), nil, zap.NewNop())

	topic := mkTopic("Priced trend", "music", "GB")
	require.NoError(t, snapStore.Insert(ctx, &domain.ViralitySnapshot{
		TopicID:       topic.TopicID,
		ViralityIndex: 62.5,
		Velocity:      1.5,
		SentimentMean: 0.3,
		Timestamp:     time.Now().UTC(),
	}))

	sym, err := reg.EnsureSymbol(ctx, topic)
	require.NoError(t, err)
	assert.Equal(t, 62.5, sym.BasePrice, "listing anchors at the latest virality index")
	assert.Equal(t, 62.5, sym.CurrentPrice)
	assert.Equal(t, 62.5, sym.LastViralityScore, "baseline seeded from the listing snapshot")
}

func TestRegistry_DelistIsSoft(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSymbolStore()
	reg := NewRegistry(store, nil, NewNormalizer(), nil, zap.NewNop())

	sym, err := reg.EnsureSymbol(ctx, mkTopic("Short lived trend", "meme", "US"))
	require.NoError(t, err)

	require.NoError(t, reg.Delist(ctx, sym.Symbol))

	got, err := store.GetBySymbol(ctx, sym.Symbol)
	require.NoError(t, err, "delisted symbol row survives")
	assert.Equal(t, domain.StatusDelisted, got.Status)
	assert.False(t, got.Active)
}

func TestRegistry_WritesInvalidateCache(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSymbolStore()
	c := cache.NewMemory()
	t.Cleanup(c.Close)
	reg := NewRegistry(store, nil, NewNormalizer(), c, zap.NewNop())

	prime := func() {
		require.NoError(t, c.Set(ctx, cache.ActiveSymbolsKey(), []string{"stale"}, time.Minute))
	}
	miss := func() bool {
		var v []string
		found, err := c.Get(ctx, cache.ActiveSymbolsKey(), &v)
		require.NoError(t, err)
		return !found
	}

	prime()
	sym, err := reg.EnsureSymbol(ctx, mkTopic("Fresh listing", "music", "US"))
	require.NoError(t, err)
	assert.True(t, miss(), "listing drops the active-symbol list")

	prime()
	require.NoError(t, c.Set(ctx, cache.SymbolKey(sym.Symbol), sym, time.Minute))
	require.NoError(t, reg.Delist(ctx, sym.Symbol))
	assert.True(t, miss(), "delisting drops the active-symbol list")
	var cached domain.Symbol
	found, err := c.Get(ctx, cache.SymbolKey(sym.Symbol), &cached)
	require.NoError(t, err)
	assert.False(t, found, "delisting drops the symbol's own keys")

	sym2, err := reg.EnsureSymbol(ctx, mkTopic("Paused trend", "meme", "GB"))
	require.NoError(t, err)
	prime()
	require.NoError(t, reg.Suspend(ctx, sym2.Symbol))
	assert.True(t, miss(), "suspending drops the active-symbol list")
}
