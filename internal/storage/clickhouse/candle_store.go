package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
//
// Upsert semantics come from ReplacingMergeTree: re-inserting a bucket
// writes a newer version and reads deduplicate with FINAL, so
// re-aggregation of the same window is idempotent.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

const candleColumns = `
	symbol, interval, bucket_start,
	open, high, low, close, volume,
	sentiment_mean, velocity_mean, engagement_rate, momentum, volatility, sample_count
`

// Upsert inserts or replaces candles by (symbol, interval, bucket start).
func (s *CandleStore) Upsert(ctx context.Context, candles []*domain.MarketCandle) error {
	if len(candles) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_candles (`+candleColumns+`)
	`)
	if err != nil {
		return fmt.Errorf("prepare candle batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			c.Symbol, string(c.Interval), c.BucketStart,
			c.Open, c.High, c.Low, c.Close, c.Volume,
			c.SentimentMean, c.VelocityMean, c.EngagementRate, c.Momentum, c.Volatility,
			uint32(c.SampleCount),
		)
		if err != nil {
			return fmt.Errorf("append candle to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send candle batch: %w", err)
	}
	return nil
}

// GetRecent retrieves the newest candles for a symbol+interval, newest first.
func (s *CandleStore) GetRecent(ctx context.Context, symbol string, interval domain.Interval, limit int) ([]*domain.MarketCandle, error) {
	query := `
		SELECT ` + candleColumns + `
		FROM market_candles FINAL
		WHERE symbol = ? AND interval = ?
		ORDER BY bucket_start DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, symbol, string(interval), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent candles: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetByTimeRange retrieves candles with bucket start within [start, end),
// oldest first.
func (s *CandleStore) GetByTimeRange(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) ([]*domain.MarketCandle, error) {
	query := `
		SELECT ` + candleColumns + `
		FROM market_candles FINAL
		WHERE symbol = ? AND interval = ? AND bucket_start >= ? AND bucket_start < ?
		ORDER BY bucket_start ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, string(interval), start, end)
	if err != nil {
		return nil, fmt.Errorf("query candles by range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// DeleteRange removes candles with bucket start within [start, end).
func (s *CandleStore) DeleteRange(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) error {
	query := `
		DELETE FROM market_candles
		WHERE symbol = ? AND interval = ? AND bucket_start >= ? AND bucket_start < ?
	`

	if err := s.conn.Exec(ctx, query, symbol, string(interval), start, end); err != nil {
		return fmt.Errorf("delete candle range: %w", err)
	}
	return nil
}

// DeleteOlderThan removes candles of one interval with bucket start before
// the cutoff, across all symbols. The count is read before deleting because
// lightweight deletes do not report affected rows.
func (s *CandleStore) DeleteOlderThan(ctx context.Context, interval domain.Interval, cutoff time.Time) (int64, error) {
	var count uint64
	countQuery := `
		SELECT count() FROM market_candles FINAL
		WHERE interval = ? AND bucket_start < ?
	`
	if err := s.conn.QueryRow(ctx, countQuery, string(interval), cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("count old candles: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	query := `DELETE FROM market_candles WHERE interval = ? AND bucket_start < ?`
	if err := s.conn.Exec(ctx, query, string(interval), cutoff); err != nil {
		return 0, fmt.Errorf("delete old candles: %w", err)
	}
	return int64(count), nil
}

func scanCandles(rows driver.Rows) ([]*domain.MarketCandle, error) {
	var candles []*domain.MarketCandle
	for rows.Next() {
		var (
			c           domain.MarketCandle
			interval    string
			sampleCount uint32
		)
		err := rows.Scan(
			&c.Symbol, &interval, &c.BucketStart,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume,
			&c.SentimentMean, &c.VelocityMean, &c.EngagementRate, &c.Momentum, &c.Volatility,
			&sampleCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Interval = domain.Interval(interval)
		c.SampleCount = int(sampleCount)
		candles = append(candles, &c)
	}
	return candles, rows.Err()
}
