// Package signal exposes the virality measurement stream the market core
// prices from. The stream is append-only and queried newest-first; the core
// treats it as an external collaborator and never writes measurements of
// its own.
package signal

import (
	"context"
	"time"

	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
)

// Source is the query surface over the virality snapshot stream.
type Source interface {
	// Latest returns the newest snapshot for a topic.
	// Returns storage.ErrNotFound when the topic has no snapshots.
	Latest(ctx context.Context, topicID string) (*domain.ViralitySnapshot, error)

	// Range returns snapshots for a topic within [start, end), timestamp ASC.
	Range(ctx context.Context, topicID string, start, end time.Time) ([]*domain.ViralitySnapshot, error)

	// UpdatedTopics returns ids of topics with snapshot activity after the
	// cutoff.
	UpdatedTopics(ctx context.Context, since time.Time) ([]string, error)
}

// StoreSource reads the snapshot stream from local storage, which the
// websocket ingest keeps appended.
type StoreSource struct {
	snapshots storage.SnapshotStore
	topics    storage.TopicStore
}

// NewStoreSource creates a store-backed Source.
func NewStoreSource(snapshots storage.SnapshotStore, topics storage.TopicStore) *StoreSource {
	return &StoreSource{snapshots: snapshots, topics: topics}
}

// Compile-time interface check.
var _ Source = (*StoreSource)(nil)

// Latest returns the newest snapshot for a topic.
func (s *StoreSource) Latest(ctx context.Context, topicID string) (*domain.ViralitySnapshot, error) {
	return s.snapshots.Latest(ctx, topicID)
}

// Range returns snapshots for a topic within [start, end), timestamp ASC.
func (s *StoreSource) Range(ctx context.Context, topicID string, start, end time.Time) ([]*domain.ViralitySnapshot, error) {
	return s.snapshots.GetByTimeRange(ctx, topicID, start, end)
}

// UpdatedTopics returns ids of topics updated after the cutoff.
func (s *StoreSource) UpdatedTopics(ctx context.Context, since time.Time) ([]string, error) {
	topics, err := s.topics.UpdatedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(topics))
	for _, t := range topics {
		ids = append(ids, t.TopicID)
	}
	return ids, nil
}
