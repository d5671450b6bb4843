package clickhouse

import (
	"context"
	"fmt"
	"time"

	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a snapshot.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.ViralitySnapshot) error {
	return s.InsertBulk(ctx, []*domain.ViralitySnapshot{snap})
}

// InsertBulk adds multiple snapshots.
func (s *SnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.ViralitySnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO virality_snapshots (
			topic_id, virality_index, velocity, sentiment_mean, engagement_total, ts
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare snapshot batch: %w", err)
	}

	for _, snap := range snapshots {
		err = batch.Append(
			snap.TopicID, snap.ViralityIndex, snap.Velocity,
			snap.SentimentMean, snap.EngagementTotal, snap.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("append snapshot to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send snapshot batch: %w", err)
	}
	return nil
}

// Latest retrieves the newest snapshot for a topic.
// Returns ErrNotFound when the topic has no snapshots.
func (s *SnapshotStore) Latest(ctx context.Context, topicID string) (*domain.ViralitySnapshot, error) {
	query := `
		SELECT topic_id, virality_index, velocity, sentiment_mean, engagement_total, ts
		FROM virality_snapshots
		WHERE topic_id = ?
		ORDER BY ts DESC
		LIMIT 1
	`

	var snap domain.ViralitySnapshot
	err := s.conn.QueryRow(ctx, query, topicID).Scan(
		&snap.TopicID, &snap.ViralityIndex, &snap.Velocity,
		&snap.SentimentMean, &snap.EngagementTotal, &snap.Timestamp,
	)
	if err != nil {
		if isNoRowsError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return &snap, nil
}

// GetByTimeRange retrieves snapshots for a topic within [start, end),
// oldest first.
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, topicID string, start, end time.Time) ([]*domain.ViralitySnapshot, error) {
	query := `
		SELECT topic_id, virality_index, velocity, sentiment_mean, engagement_total, ts
		FROM virality_snapshots
		WHERE topic_id = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, topicID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query snapshots by range: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.ViralitySnapshot
	for rows.Next() {
		var snap domain.ViralitySnapshot
		err := rows.Scan(
			&snap.TopicID, &snap.ViralityIndex, &snap.Velocity,
			&snap.SentimentMean, &snap.EngagementTotal, &snap.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, &snap)
	}
	return snapshots, rows.Err()
}
