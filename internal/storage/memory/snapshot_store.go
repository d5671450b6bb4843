package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.ViralitySnapshot // keyed by topic_id, timestamp ASC
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{data: make(map[string][]*domain.ViralitySnapshot)}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a snapshot.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.ViralitySnapshot) error {
	return s.InsertBulk(ctx, []*domain.ViralitySnapshot{snap})
}

// InsertBulk adds multiple snapshots.
func (s *SnapshotStore) InsertBulk(_ context.Context, snapshots []*domain.ViralitySnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[string]struct{})
	for _, snap := range snapshots {
		if snap == nil || snap.TopicID == "" {
			return storage.ErrInvalidInput
		}
		snapCopy := *snap
		s.data[snap.TopicID] = append(s.data[snap.TopicID], &snapCopy)
		touched[snap.TopicID] = struct{}{}
	}
	for topicID := range touched {
		series := s.data[topicID]
		sort.Slice(series, func(i, j int) bool {
			return series[i].Timestamp.Before(series[j].Timestamp)
		})
	}
	return nil
}

// Latest retrieves the newest snapshot for a topic.
func (s *SnapshotStore) Latest(_ context.Context, topicID string) (*domain.ViralitySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.data[topicID]
	if len(series) == 0 {
		return nil, storage.ErrNotFound
	}
	snapCopy := *series[len(series)-1]
	return &snapCopy, nil
}

// GetByTimeRange retrieves snapshots for a topic within [start, end), ordered by timestamp ASC.
func (s *SnapshotStore) GetByTimeRange(_ context.Context, topicID string, start, end time.Time) ([]*domain.ViralitySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ViralitySnapshot
	for _, snap := range s.data[topicID] {
		if !snap.Timestamp.Before(start) && snap.Timestamp.Before(end) {
			snapCopy := *snap
			result = append(result, &snapCopy)
		}
	}
	return result, nil
}
