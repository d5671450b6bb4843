package memory

import (
	"context"
	"sort"
	"sync"

	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
)

// SymbolStore is an in-memory implementation of storage.SymbolStore.
type SymbolStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Symbol // keyed by canonical symbol
}

// NewSymbolStore creates a new in-memory symbol store.
func NewSymbolStore() *SymbolStore {
	return &SymbolStore{data: make(map[string]*domain.Symbol)}
}

// Compile-time interface check.
var _ storage.SymbolStore = (*SymbolStore)(nil)

// Insert adds a new symbol. Returns ErrDuplicateKey if the canonical id exists.
func (s *SymbolStore) Insert(_ context.Context, sym *domain.Symbol) error {
	if sym == nil || sym.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sym.Symbol]; exists {
		return storage.ErrDuplicateKey
	}
	symCopy := *sym
	s.data[sym.Symbol] = &symCopy
	return nil
}

// GetBySymbol retrieves a symbol by canonical id. Returns ErrNotFound if not exists.
func (s *SymbolStore) GetBySymbol(_ context.Context, symbol string) (*domain.Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sym, ok := s.data[symbol]
	if !ok {
		return nil, storage.ErrNotFound
	}
	symCopy := *sym
	return &symCopy, nil
}

// GetByTopicID retrieves the symbol listed for a topic. Returns ErrNotFound if not exists.
func (s *SymbolStore) GetByTopicID(_ context.Context, topicID string) (*domain.Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sym := range s.data {
		if sym.TopicID == topicID {
			symCopy := *sym
			return &symCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetActive retrieves all symbols with the active flag set, ordered by
// canonical id for deterministic output.
func (s *SymbolStore) GetActive(_ context.Context) ([]*domain.Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Symbol
	for _, sym := range s.data {
		if sym.Active {
			symCopy := *sym
			result = append(result, &symCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}

// Update replaces a symbol row by canonical id. Returns ErrNotFound if not exists.
func (s *SymbolStore) Update(_ context.Context, sym *domain.Symbol) error {
	if sym == nil || sym.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sym.Symbol]; !exists {
		return storage.ErrNotFound
	}
	symCopy := *sym
	s.data[sym.Symbol] = &symCopy
	return nil
}
