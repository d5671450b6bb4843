package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
)

func TestTopicStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTopicStore(pool)

	now := time.Now().UTC().Truncate(time.Millisecond)
	topic := &domain.Topic{
		TopicID:   "topic-1",
		Title:     "Amapiano Dance Challenge",
		Category:  "music",
		Region:    "SA",
		Keywords:  []string{"amapiano", "dance"},
		Platforms: []string{"tiktok", "instagram"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Upsert(ctx, topic))

	retrieved, err := store.GetByID(ctx, "topic-1")
	require.NoError(t, err)
	assert.Equal(t, topic.Title, retrieved.Title)
	assert.Equal(t, topic.Keywords, retrieved.Keywords)
	assert.Equal(t, topic.Platforms, retrieved.Platforms)

	// Re-upsert replaces metadata for the same topic_id.
	topic.Title = "Amapiano Challenge"
	topic.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, store.Upsert(ctx, topic))

	retrieved, err = store.GetByID(ctx, "topic-1")
	require.NoError(t, err)
	assert.Equal(t, "Amapiano Challenge", retrieved.Title)
}

func TestTopicStore_GetUnknown(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewTopicStore(pool).GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTopicStore_UpdatedSince(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTopicStore(pool)

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.Upsert(ctx, &domain.Topic{
		TopicID: "topic-old", Title: "Old", CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, store.Upsert(ctx, &domain.Topic{
		TopicID: "topic-new", Title: "New", CreatedAt: now, UpdatedAt: now,
	}))

	topics, err := store.UpdatedSince(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "topic-new", topics[0].TopicID)
}
