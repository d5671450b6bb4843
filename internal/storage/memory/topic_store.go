package memory

import (
	"context"
	"sync"
	"time"

	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
)

// TopicStore is an in-memory implementation of storage.TopicStore.
type TopicStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Topic // keyed by topic_id
}

// NewTopicStore creates a new in-memory topic store.
func NewTopicStore() *TopicStore {
	return &TopicStore{data: make(map[string]*domain.Topic)}
}

// Compile-time interface check.
var _ storage.TopicStore = (*TopicStore)(nil)

// Upsert inserts or replaces a topic by topic_id.
func (s *TopicStore) Upsert(_ context.Context, t *domain.Topic) error {
	if t == nil || t.TopicID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	topicCopy := *t
	s.data[t.TopicID] = &topicCopy
	return nil
}

// GetByID retrieves a topic. Returns ErrNotFound if not exists.
func (s *TopicStore) GetByID(_ context.Context, topicID string) (*domain.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data[topicID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	topicCopy := *t
	return &topicCopy, nil
}

// UpdatedSince retrieves topics whose UpdatedAt is after the cutoff.
func (s *TopicStore) UpdatedSince(_ context.Context, since time.Time) ([]*domain.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Topic
	for _, t := range s.data {
		if t.UpdatedAt.After(since) {
			topicCopy := *t
			result = append(result, &topicCopy)
		}
	}
	return result, nil
}
