package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
)

// IngestConfig configures websocket ingest behavior.
type IngestConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential reconnect backoff.
	MaxReconnectDelay time.Duration
	// ReadTimeout bounds a single message read.
	ReadTimeout time.Duration
	// WriteTimeout bounds a single message write.
	WriteTimeout time.Duration
}

// DefaultIngestConfig returns the default ingest configuration.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// snapshotMessage is the wire shape of one virality measurement. Topic
// metadata rides along so new topics can be mirrored without a separate
// registry call.
type snapshotMessage struct {
	TopicID         string    `json:"topicId"`
	ViralityIndex   float64   `json:"viralityIndex"`
	Velocity        float64   `json:"velocity"`
	SentimentMean   float64   `json:"sentimentMean"`
	EngagementTotal float64   `json:"engagementTotal"`
	Timestamp       time.Time `json:"timestamp"`

	Title     string   `json:"title,omitempty"`
	Category  string   `json:"category,omitempty"`
	Region    string   `json:"region,omitempty"`
	Platforms []string `json:"platforms,omitempty"`
}

// Ingest consumes the external virality feed over websocket and appends
// snapshots to local storage. Connection loss triggers reconnect with
// capped exponential backoff; the subscribe message is resent after every
// reconnect.
type Ingest struct {
	endpoint  string
	config    IngestConfig
	snapshots storage.SnapshotStore
	topics    storage.TopicStore
	logger    *zap.Logger
}

// NewIngest creates a websocket ingest.
func NewIngest(endpoint string, config IngestConfig, snapshots storage.SnapshotStore, topics storage.TopicStore, logger *zap.Logger) *Ingest {
	return &Ingest{
		endpoint:  endpoint,
		config:    config,
		snapshots: snapshots,
		topics:    topics,
		logger:    logger,
	}
}

// Run connects and consumes until the context is cancelled.
func (in *Ingest) Run(ctx context.Context) error {
	delay := in.config.ReconnectDelay

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := in.consume(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return ctx.Err()
		}

		in.logger.Warn("virality feed disconnected",
			zap.Error(err),
			zap.Duration("reconnect_in", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > in.config.MaxReconnectDelay {
			delay = in.config.MaxReconnectDelay
		}
	}
}

// consume runs one connection lifetime: dial, subscribe, read until error.
func (in *Ingest) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, in.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(in.config.WriteTimeout))
	if err := conn.WriteJSON(map[string]string{"action": "subscribe", "stream": "virality"}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	in.logger.Info("virality feed connected", zap.String("endpoint", in.endpoint))

	for {
		conn.SetReadDeadline(time.Now().Add(in.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}

		var msg snapshotMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			in.logger.Warn("malformed snapshot message", zap.Error(err))
			continue
		}
		if msg.TopicID == "" {
			continue
		}

		if err := in.store(ctx, &msg); err != nil {
			in.logger.Error("store snapshot",
				zap.String("topic_id", msg.TopicID),
				zap.Error(err))
		}
	}
}

// store appends the snapshot and touches the topic mirror so the virality
// sync trigger picks the topic up.
func (in *Ingest) store(ctx context.Context, msg *snapshotMessage) error {
	snap := &domain.ViralitySnapshot{
		TopicID:         msg.TopicID,
		ViralityIndex:   msg.ViralityIndex,
		Velocity:        msg.Velocity,
		SentimentMean:   msg.SentimentMean,
		EngagementTotal: msg.EngagementTotal,
		Timestamp:       msg.Timestamp.UTC(),
	}
	if err := in.snapshots.Insert(ctx, snap); err != nil {
		return err
	}

	topic := &domain.Topic{
		TopicID:   msg.TopicID,
		Title:     msg.Title,
		Category:  msg.Category,
		Region:    msg.Region,
		Platforms: msg.Platforms,
		UpdatedAt: snap.Timestamp,
	}
	if existing, err := in.topics.GetByID(ctx, msg.TopicID); err == nil {
		// Keep registry metadata when the message omits it.
		if topic.Title == "" {
			topic.Title = existing.Title
		}
		if topic.Category == "" {
			topic.Category = existing.Category
		}
		if topic.Region == "" {
			topic.Region = existing.Region
		}
		if len(topic.Platforms) == 0 {
			topic.Platforms = existing.Platforms
		}
		topic.CreatedAt = existing.CreatedAt
	} else {
		topic.CreatedAt = snap.Timestamp
	}
	return in.topics.Upsert(ctx, topic)
}
