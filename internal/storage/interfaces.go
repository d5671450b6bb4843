package storage

import (
	"context"
	"time"

	"viraltrade/internal/domain"
)

// TopicStore provides read access to the topic registry mirror.
type TopicStore interface {
	// Upsert inserts or replaces a topic by topic_id.
	Upsert(ctx context.Context, t *domain.Topic) error

	// GetByID retrieves a topic. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, topicID string) (*domain.Topic, error)

	// UpdatedSince retrieves topics whose UpdatedAt is after the cutoff.
	UpdatedSince(ctx context.Context, since time.Time) ([]*domain.Topic, error)
}

// SymbolStore provides access to symbols storage.
type SymbolStore interface {
	// Insert adds a new symbol. Returns ErrDuplicateKey if the canonical id exists.
	Insert(ctx context.Context, s *domain.Symbol) error

	// GetBySymbol retrieves a symbol by canonical id. Returns ErrNotFound if not exists.
	GetBySymbol(ctx context.Context, symbol string) (*domain.Symbol, error)

	// GetByTopicID retrieves the symbol listed for a topic. Returns ErrNotFound if not exists.
	GetByTopicID(ctx context.Context, topicID string) (*domain.Symbol, error)

	// GetActive retrieves all symbols with the active flag set.
	GetActive(ctx context.Context) ([]*domain.Symbol, error)

	// Update replaces a symbol row by canonical id. Returns ErrNotFound if not exists.
	Update(ctx context.Context, s *domain.Symbol) error
}

// PriceRecordStore provides access to the append-only price history.
type PriceRecordStore interface {
	// Insert adds a new record. Records are immutable once written.
	Insert(ctx context.Context, r *domain.PriceRecord) error

	// GetRecent retrieves the newest records for a symbol, newest first,
	// capped at limit.
	GetRecent(ctx context.Context, symbol string, limit int) ([]*domain.PriceRecord, error)

	// GetByTimeRange retrieves records for a symbol within [start, end),
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.PriceRecord, error)

	// LatestBefore retrieves the newest record at or before t.
	// Returns ErrNotFound when no such record exists.
	LatestBefore(ctx context.Context, symbol string, t time.Time) (*domain.PriceRecord, error)

	// DeleteOlderThan prunes records older than the cutoff across all
	// symbols. Returns the number of rows removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CandleStore provides access to market candle storage.
type CandleStore interface {
	// Upsert inserts or replaces candles by (symbol, interval, bucket start).
	// Re-upserting an identical candle set is idempotent.
	Upsert(ctx context.Context, candles []*domain.MarketCandle) error

	// GetRecent retrieves the newest candles for a symbol+interval, newest
	// first, capped at limit.
	GetRecent(ctx context.Context, symbol string, interval domain.Interval, limit int) ([]*domain.MarketCandle, error)

	// GetByTimeRange retrieves candles for a symbol+interval with bucket
	// start within [start, end), ordered by bucket start ASC.
	GetByTimeRange(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) ([]*domain.MarketCandle, error)

	// DeleteRange removes candles for a symbol+interval with bucket start
	// within [start, end).
	DeleteRange(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) error

	// DeleteOlderThan removes candles of one interval with bucket start
	// before the cutoff, across all symbols. Returns the number removed.
	DeleteOlderThan(ctx context.Context, interval domain.Interval, cutoff time.Time) (int64, error)
}

// SnapshotStore provides access to the append-only virality snapshot stream.
type SnapshotStore interface {
	// Insert adds a snapshot.
	Insert(ctx context.Context, s *domain.ViralitySnapshot) error

	// InsertBulk adds multiple snapshots.
	InsertBulk(ctx context.Context, snapshots []*domain.ViralitySnapshot) error

	// Latest retrieves the newest snapshot for a topic.
	// Returns ErrNotFound when the topic has no snapshots.
	Latest(ctx context.Context, topicID string) (*domain.ViralitySnapshot, error)

	// GetByTimeRange retrieves snapshots for a topic within [start, end),
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, topicID string, start, end time.Time) ([]*domain.ViralitySnapshot, error)
}
