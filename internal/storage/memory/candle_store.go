package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MarketCandle // keyed by (symbol, interval, bucket start)
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{data: make(map[string]*domain.MarketCandle)}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// candleKey generates a unique key for a candle.
func candleKey(symbol string, interval domain.Interval, bucket time.Time) string {
	return fmt.Sprintf("%s|%s|%d", symbol, interval, bucket.UnixMilli())
}

// Upsert inserts or replaces candles by (symbol, interval, bucket start).
func (s *CandleStore) Upsert(_ context.Context, candles []*domain.MarketCandle) error {
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range candles {
		if c == nil || c.Symbol == "" || !c.Interval.Valid() {
			return storage.ErrInvalidInput
		}
		candleCopy := *c
		s.data[candleKey(c.Symbol, c.Interval, c.BucketStart)] = &candleCopy
	}
	return nil
}

// GetRecent retrieves the newest candles for a symbol+interval, newest first,
// capped at limit.
func (s *CandleStore) GetRecent(_ context.Context, symbol string, interval domain.Interval, limit int) ([]*domain.MarketCandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketCandle
	for _, c := range s.data {
		if c.Symbol == symbol && c.Interval == interval {
			candleCopy := *c
			result = append(result, &candleCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BucketStart.After(result[j].BucketStart)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetByTimeRange retrieves candles for a symbol+interval with bucket start
// within [start, end), ordered by bucket start ASC.
func (s *CandleStore) GetByTimeRange(_ context.Context, symbol string, interval domain.Interval, start, end time.Time) ([]*domain.MarketCandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketCandle
	for _, c := range s.data {
		if c.Symbol == symbol && c.Interval == interval &&
			!c.BucketStart.Before(start) && c.BucketStart.Before(end) {
			candleCopy := *c
			result = append(result, &candleCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BucketStart.Before(result[j].BucketStart)
	})
	return result, nil
}

// DeleteRange removes candles for a symbol+interval with bucket start within [start, end).
func (s *CandleStore) DeleteRange(_ context.Context, symbol string, interval domain.Interval, start, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, c := range s.data {
		if c.Symbol == symbol && c.Interval == interval &&
			!c.BucketStart.Before(start) && c.BucketStart.Before(end) {
			delete(s.data, key)
		}
	}
	return nil
}

// DeleteOlderThan removes candles of one interval with bucket start before
// the cutoff, across all symbols.
func (s *CandleStore) DeleteOlderThan(_ context.Context, interval domain.Interval, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, c := range s.data {
		if c.Interval == interval && c.BucketStart.Before(cutoff) {
			delete(s.data, key)
			deleted++
		}
	}
	return deleted, nil
}
