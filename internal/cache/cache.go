// Package cache is the shared low-latency store between the persistent
// stores and every read path. Entries carry per-key TTLs; write paths
// delete their keys explicitly instead of waiting for expiry, so the next
// read recomputes from the source of truth.
package cache

import (
	"context"
	"fmt"
	"time"

	"viraltrade/internal/domain"
)

// Per-key TTL policy. Staleness tolerance shrinks with read frequency.
const (
	TTLPrice          = 1 * time.Second   // raw current price
	TTLMarketData     = 5 * time.Second   // computed market data, order book
	TTLVirality       = 30 * time.Second  // virality snapshot, sentiment
	TTLSymbol         = 60 * time.Second  // symbol composite, stats, summary
	TTLHistory        = 300 * time.Second // price-history pages
	TTLDailyAnalytics = 1 * time.Hour     // daily analytics
)

// Cache is a key-value store with per-key TTL and explicit invalidation.
//
// Get unmarshals the stored JSON into dest and reports whether the key was
// present. Values are serialized on write and deserialized on read; values
// read back as generic maps need RehydrateDates to restore typed times.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// Key builders. All cached state lives under these conventions; invalidation
// code uses the same builders so writes and deletes cannot drift apart.

func PriceKey(symbol string) string {
	return "price:current:" + symbol
}

func MarketDataKey(symbol string) string {
	return "market:data:" + symbol
}

func OrderBookKey(symbol string) string {
	return "market:book:" + symbol
}

func ViralityKey(topicID string) string {
	return "virality:latest:" + topicID
}

func SymbolKey(symbol string) string {
	return "symbol:composite:" + symbol
}

func StatsKey(symbol string) string {
	return "symbol:stats:" + symbol
}

func ActiveSymbolsKey() string {
	return "symbol:active"
}

func SummaryKey() string {
	return "market:summary"
}

func HistoryKey(symbol string, interval domain.Interval, limit int) string {
	return fmt.Sprintf("history:%s:%s:%d", symbol, interval, limit)
}

// TrendingPointerKey holds the id of the current trending snapshot. The
// ranking engine writes a full snapshot under TrendingSnapshotKey first and
// flips this pointer last, so readers never observe a partial update.
func TrendingPointerKey(timeframe string) string {
	return "trending:current:" + timeframe
}

func TrendingSnapshotKey(id string) string {
	return "trending:snapshot:" + id
}

// SymbolKeys returns every per-symbol key a price mutation must invalidate.
func SymbolKeys(symbol string) []string {
	return []string{
		PriceKey(symbol),
		MarketDataKey(symbol),
		SymbolKey(symbol),
		StatsKey(symbol),
	}
}
