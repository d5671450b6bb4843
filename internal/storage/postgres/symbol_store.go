package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
)

// SymbolStore implements storage.SymbolStore using PostgreSQL.
type SymbolStore struct {
	pool *Pool
}

// NewSymbolStore creates a new SymbolStore.
func NewSymbolStore(pool *Pool) *SymbolStore {
	return &SymbolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SymbolStore = (*SymbolStore)(nil)

const symbolColumns = `
	symbol, topic_id, name,
	base_price, current_price,
	high_24h, low_24h, change_24h, change_pct_24h, volume_24h,
	last_virality_score, last_velocity, last_sentiment, baseline_at, baseline_seq,
	status, active, created_at, updated_at
`

// Insert adds a new symbol. Returns ErrDuplicateKey when the canonical id
// or the topic is already listed.
func (s *SymbolStore) Insert(ctx context.Context, sym *domain.Symbol) error {
	query := `
		INSERT INTO symbols (` + symbolColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := s.pool.Exec(ctx, query,
		sym.Symbol, sym.TopicID, sym.Name,
		sym.BasePrice, sym.CurrentPrice,
		sym.High24h, sym.Low24h, sym.Change24h, sym.ChangePct24h, sym.Volume24h,
		sym.LastViralityScore, sym.LastVelocity, sym.LastSentiment, sym.BaselineAt, sym.BaselineSeq,
		sym.Status, sym.Active, sym.CreatedAt, sym.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert symbol: %w", err)
	}
	return nil
}

// GetBySymbol retrieves a symbol by canonical id. Returns ErrNotFound if not exists.
func (s *SymbolStore) GetBySymbol(ctx context.Context, symbol string) (*domain.Symbol, error) {
	query := `SELECT ` + symbolColumns + ` FROM symbols WHERE symbol = $1`

	sym, err := scanSymbol(s.pool.QueryRow(ctx, query, symbol))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get symbol: %w", err)
	}
	return sym, nil
}

// GetByTopicID retrieves the symbol listed for a topic. Returns ErrNotFound if not exists.
func (s *SymbolStore) GetByTopicID(ctx context.Context, topicID string) (*domain.Symbol, error) {
	query := `SELECT ` + symbolColumns + ` FROM symbols WHERE topic_id = $1`

	sym, err := scanSymbol(s.pool.QueryRow(ctx, query, topicID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get symbol by topic: %w", err)
	}
	return sym, nil
}

// GetActive retrieves all symbols with the active flag set.
func (s *SymbolStore) GetActive(ctx context.Context) ([]*domain.Symbol, error) {
	query := `SELECT ` + symbolColumns + ` FROM symbols WHERE active ORDER BY symbol`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active symbols: %w", err)
	}
	defer rows.Close()

	var symbols []*domain.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// Update replaces a symbol row by canonical id. Returns ErrNotFound if not exists.
func (s *SymbolStore) Update(ctx context.Context, sym *domain.Symbol) error {
	query := `
		UPDATE symbols SET
			name = $2,
			base_price = $3, current_price = $4,
			high_24h = $5, low_24h = $6, change_24h = $7, change_pct_24h = $8, volume_24h = $9,
			last_virality_score = $10, last_velocity = $11, last_sentiment = $12,
			baseline_at = $13, baseline_seq = $14,
			status = $15, active = $16, updated_at = $17
		WHERE symbol = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		sym.Symbol, sym.Name,
		sym.BasePrice, sym.CurrentPrice,
		sym.High24h, sym.Low24h, sym.Change24h, sym.ChangePct24h, sym.Volume24h,
		sym.LastViralityScore, sym.LastVelocity, sym.LastSentiment,
		sym.BaselineAt, sym.BaselineSeq,
		sym.Status, sym.Active, sym.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update symbol: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanSymbol scans a single row into a Symbol.
func scanSymbol(row pgx.Row) (*domain.Symbol, error) {
	var sym domain.Symbol
	err := row.Scan(
		&sym.Symbol, &sym.TopicID, &sym.Name,
		&sym.BasePrice, &sym.CurrentPrice,
		&sym.High24h, &sym.Low24h, &sym.Change24h, &sym.ChangePct24h, &sym.Volume24h,
		&sym.LastViralityScore, &sym.LastVelocity, &sym.LastSentiment, &sym.BaselineAt, &sym.BaselineSeq,
		&sym.Status, &sym.Active, &sym.CreatedAt, &sym.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sym, nil
}
