package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
)

// PriceRecordStore is an in-memory implementation of storage.PriceRecordStore.
type PriceRecordStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.PriceRecord // keyed by symbol, timestamp ASC
}

// NewPriceRecordStore creates a new in-memory price record store.
func NewPriceRecordStore() *PriceRecordStore {
	return &PriceRecordStore{data: make(map[string][]*domain.PriceRecord)}
}

// Compile-time interface check.
var _ storage.PriceRecordStore = (*PriceRecordStore)(nil)

// Insert adds a new record.
func (s *PriceRecordStore) Insert(_ context.Context, r *domain.PriceRecord) error {
	if r == nil || r.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recCopy := *r
	records := append(s.data[r.Symbol], &recCopy)
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	s.data[r.Symbol] = records
	return nil
}

// GetRecent retrieves the newest records for a symbol, newest first, capped at limit.
func (s *PriceRecordStore) GetRecent(_ context.Context, symbol string, limit int) ([]*domain.PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.data[symbol]
	var result []*domain.PriceRecord
	for i := len(records) - 1; i >= 0 && (limit <= 0 || len(result) < limit); i-- {
		recCopy := *records[i]
		result = append(result, &recCopy)
	}
	return result, nil
}

// GetByTimeRange retrieves records for a symbol within [start, end), ordered by timestamp ASC.
func (s *PriceRecordStore) GetByTimeRange(_ context.Context, symbol string, start, end time.Time) ([]*domain.PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceRecord
	for _, r := range s.data[symbol] {
		if !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			recCopy := *r
			result = append(result, &recCopy)
		}
	}
	return result, nil
}

// LatestBefore retrieves the newest record at or before t.
func (s *PriceRecordStore) LatestBefore(_ context.Context, symbol string, t time.Time) (*domain.PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.data[symbol]
	for i := len(records) - 1; i >= 0; i-- {
		if !records[i].Timestamp.After(t) {
			recCopy := *records[i]
			return &recCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// DeleteOlderThan prunes records older than the cutoff across all symbols.
func (s *PriceRecordStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for symbol, records := range s.data {
		kept := records[:0]
		for _, r := range records {
			if r.Timestamp.Before(cutoff) {
				deleted++
			} else {
				kept = append(kept, r)
			}
		}
		s.data[symbol] = kept
	}
	return deleted, nil
}
