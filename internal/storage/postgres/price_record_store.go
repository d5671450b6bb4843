package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
)

// PriceRecordStore implements storage.PriceRecordStore using PostgreSQL.
type PriceRecordStore struct {
	pool *Pool
}

// NewPriceRecordStore creates a new PriceRecordStore.
func NewPriceRecordStore(pool *Pool) *PriceRecordStore {
	return &PriceRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceRecordStore = (*PriceRecordStore)(nil)

const priceRecordColumns = `
	symbol, open, high, low, close, volume,
	virality_score, velocity, sentiment, imbalance, ts, interval
`

// Insert adds a new record. Records are immutable once written.
func (s *PriceRecordStore) Insert(ctx context.Context, r *domain.PriceRecord) error {
	query := `
		INSERT INTO price_records (` + priceRecordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		r.Symbol, r.Open, r.High, r.Low, r.Close, r.Volume,
		r.ViralityScore, r.Velocity, r.Sentiment, r.Imbalance, r.Timestamp, r.Interval,
	)
	if err != nil {
		return fmt.Errorf("insert price record: %w", err)
	}
	return nil
}

// GetRecent retrieves the newest records for a symbol, newest first.
func (s *PriceRecordStore) GetRecent(ctx context.Context, symbol string, limit int) ([]*domain.PriceRecord, error) {
	query := `
		SELECT ` + priceRecordColumns + `
		FROM price_records
		WHERE symbol = $1
		ORDER BY ts DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent price records: %w", err)
	}
	defer rows.Close()

	return collectPriceRecords(rows)
}

// GetByTimeRange retrieves records for a symbol within [start, end), oldest first.
func (s *PriceRecordStore) GetByTimeRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.PriceRecord, error) {
	query := `
		SELECT ` + priceRecordColumns + `
		FROM price_records
		WHERE symbol = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query price records by range: %w", err)
	}
	defer rows.Close()

	return collectPriceRecords(rows)
}

// LatestBefore retrieves the newest record at or before t.
// Returns ErrNotFound when no such record exists.
func (s *PriceRecordStore) LatestBefore(ctx context.Context, symbol string, t time.Time) (*domain.PriceRecord, error) {
	query := `
		SELECT ` + priceRecordColumns + `
		FROM price_records
		WHERE symbol = $1 AND ts <= $2
		ORDER BY ts DESC
		LIMIT 1
	`

	r, err := scanPriceRecord(s.pool.QueryRow(ctx, query, symbol, t))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest price record before: %w", err)
	}
	return r, nil
}

// DeleteOlderThan prunes records older than the cutoff across all symbols.
func (s *PriceRecordStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM price_records WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old price records: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectPriceRecords(rows pgx.Rows) ([]*domain.PriceRecord, error) {
	var records []*domain.PriceRecord
	for rows.Next() {
		r, err := scanPriceRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan price record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// scanPriceRecord scans a single row into a PriceRecord.
func scanPriceRecord(row pgx.Row) (*domain.PriceRecord, error) {
	var r domain.PriceRecord
	err := row.Scan(
		&r.Symbol, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume,
		&r.ViralityScore, &r.Velocity, &r.Sentiment, &r.Imbalance, &r.Timestamp, &r.Interval,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
