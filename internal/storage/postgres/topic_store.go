package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
)

// TopicStore implements storage.TopicStore using PostgreSQL.
type TopicStore struct {
	pool *Pool
}

// NewTopicStore creates a new TopicStore.
func NewTopicStore(pool *Pool) *TopicStore {
	return &TopicStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TopicStore = (*TopicStore)(nil)

// Upsert inserts or replaces a topic by topic_id.
func (s *TopicStore) Upsert(ctx context.Context, t *domain.Topic) error {
	query := `
		INSERT INTO topics (topic_id, title, category, region, keywords, platforms, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (topic_id) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			region = EXCLUDED.region,
			keywords = EXCLUDED.keywords,
			platforms = EXCLUDED.platforms,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		t.TopicID, t.Title, t.Category, t.Region, t.Keywords, t.Platforms, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert topic: %w", err)
	}
	return nil
}

// GetByID retrieves a topic. Returns ErrNotFound if not exists.
func (s *TopicStore) GetByID(ctx context.Context, topicID string) (*domain.Topic, error) {
	query := `
		SELECT topic_id, title, category, region, keywords, platforms, created_at, updated_at
		FROM topics
		WHERE topic_id = $1
	`

	t, err := scanTopic(s.pool.QueryRow(ctx, query, topicID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return t, nil
}

// UpdatedSince retrieves topics whose UpdatedAt is after the cutoff.
func (s *TopicStore) UpdatedSince(ctx context.Context, since time.Time) ([]*domain.Topic, error) {
	query := `
		SELECT topic_id, title, category, region, keywords, platforms, created_at, updated_at
		FROM topics
		WHERE updated_at > $1
		ORDER BY updated_at DESC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query updated topics: %w", err)
	}
	defer rows.Close()

	var topics []*domain.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// scanTopic scans a single row into a Topic.
func scanTopic(row pgx.Row) (*domain.Topic, error) {
	var t domain.Topic
	err := row.Scan(
		&t.TopicID, &t.Title, &t.Category, &t.Region,
		&t.Keywords, &t.Platforms, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
