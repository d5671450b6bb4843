package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
	"viraltrade/internal/storage/memory"
)

// feedServer serves one websocket connection, waits for the subscribe
// message, then pushes the given payloads.
func feedServer(t *testing.T, payloads []snapshotMessage) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub map[string]string
		require.NoError(t, conn.ReadJSON(&sub))
		assert.Equal(t, "subscribe", sub["action"])

		for _, p := range payloads {
			data, err := json.Marshal(p)
			require.NoError(t, err)
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
		}

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestIngest_StoresSnapshotsAndMirrorsTopics(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := feedServer(t, []snapshotMessage{
		{
			TopicID:         "topic-1",
			ViralityIndex:   42.5,
			Velocity:        3.1,
			SentimentMean:   0.4,
			EngagementTotal: 9000,
			Timestamp:       ts,
			Title:           "Quantum Cats",
			Category:        "science",
			Region:          "US",
			Platforms:       []string{"twitter", "tiktok"},
		},
		{TopicID: "topic-1", ViralityIndex: 44.0, Timestamp: ts.Add(time.Minute)},
		{TopicID: "", ViralityIndex: 99},
	})

	snapshots := memory.NewSnapshotStore()
	topics := memory.NewTopicStore()
	in := NewIngest(wsURL(srv), DefaultIngestConfig(), snapshots, topics, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	require.Eventually(t, func() bool {
		snap, err := snapshots.Latest(context.Background(), "topic-1")
		return err == nil && snap.ViralityIndex == 44.0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("ingest did not stop after cancel")
	}

	topic, err := topics.GetByID(context.Background(), "topic-1")
	require.NoError(t, err)
	assert.Equal(t, "Quantum Cats", topic.Title, "metadata from the first message survives the sparse second one")
	assert.Equal(t, "science", topic.Category)
	assert.Equal(t, []string{"twitter", "tiktok"}, topic.Platforms)
	assert.Equal(t, ts.Add(time.Minute), topic.UpdatedAt)
	assert.Equal(t, ts, topic.CreatedAt)

	all, err := snapshots.GetByTimeRange(context.Background(), "topic-1", ts, ts.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestIngest_SkipsMalformedMessages(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"topicId":"topic-ok","viralityIndex":1,"timestamp":"2026-03-01T00:00:00Z"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	snapshots := memory.NewSnapshotStore()
	topics := memory.NewTopicStore()
	in := NewIngest(wsURL(srv), DefaultIngestConfig(), snapshots, topics, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go in.Run(ctx)

	require.Eventually(t, func() bool {
		_, err := snapshots.Latest(context.Background(), "topic-ok")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStoreSource_UpdatedTopics(t *testing.T) {
	topics := memory.NewTopicStore()
	snapshots := memory.NewSnapshotStore()
	src := NewStoreSource(snapshots, topics)

	now := time.Now().UTC()
	require.NoError(t, topics.Upsert(context.Background(), &domain.Topic{TopicID: "stale", UpdatedAt: now.Add(-time.Hour)}))
	require.NoError(t, topics.Upsert(context.Background(), &domain.Topic{TopicID: "fresh", UpdatedAt: now}))

	ids, err := src.UpdatedTopics(context.Background(), now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids)
}

func TestStoreSource_LatestNotFound(t *testing.T) {
	src := NewStoreSource(memory.NewSnapshotStore(), memory.NewTopicStore())
	_, err := src.Latest(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
