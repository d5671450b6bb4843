package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"viraltrade/internal/storage"
)

// MarketStats is the 24h aggregate view of a symbol.
type MarketStats struct {
	Symbol       string    `json:"symbol"`
	CurrentPrice float64   `json:"currentPrice"`
	Price24hAgo  float64   `json:"price24hAgo"`
	Change24h    float64   `json:"change24h"`
	ChangePct24h float64   `json:"changePct24h"`
	High24h      float64   `json:"high24h"`
	Low24h       float64   `json:"low24h"`
	Volume24h    float64   `json:"volume24h"`
	GeneratedAt  time.Time `json:"generatedAt"`
}

// ComputeMarketStats aggregates current price, price-24h-ago and 24h
// extremes/volume from the price history. Sparse history degrades to
// neutral values instead of failing: a symbol with no records reports its
// current price for every price field and zero volume.
func (e *Engine) ComputeMarketStats(ctx context.Context, symbol string) (*MarketStats, error) {
	sym, err := e.symbols.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load symbol %s: %w", symbol, err)
	}

	now := e.now().UTC()
	dayAgo := now.Add(-24 * time.Hour)

	stats := &MarketStats{
		Symbol:       symbol,
		CurrentPrice: sym.CurrentPrice,
		Price24hAgo:  sym.BasePrice,
		High24h:      sym.CurrentPrice,
		Low24h:       sym.CurrentPrice,
		GeneratedAt:  now,
	}

	if rec, err := e.prices.LatestBefore(ctx, symbol, dayAgo); err == nil {
		stats.Price24hAgo = rec.Close
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("price 24h ago for %s: %w", symbol, err)
	}

	records, err := e.prices.GetByTimeRange(ctx, symbol, dayAgo, now)
	if err != nil {
		return nil, fmt.Errorf("price history for %s: %w", symbol, err)
	}
	for _, r := range records {
		if r.Close > stats.High24h {
			stats.High24h = r.Close
		}
		if r.Close < stats.Low24h {
			stats.Low24h = r.Close
		}
		stats.Volume24h += r.Volume
	}

	stats.Change24h = stats.CurrentPrice - stats.Price24hAgo
	if stats.Price24hAgo != 0 {
		stats.ChangePct24h = stats.Change24h / stats.Price24hAgo * 100
	}
	return stats, nil
}

// RefreshSymbolStats recomputes a symbol's 24h rollup fields and persists
// them, invalidating the symbol's cache keys. Driven by the market-stats
// recompute job.
func (e *Engine) RefreshSymbolStats(ctx context.Context, symbol string) error {
	unlock := e.locks.lock(symbol)
	defer unlock()

	stats, err := e.ComputeMarketStats(ctx, symbol)
	if err != nil {
		return err
	}

	sym, err := e.symbols.GetBySymbol(ctx, symbol)
	if err != nil {
		return fmt.Errorf("load symbol %s: %w", symbol, err)
	}

	sym.High24h = stats.High24h
	sym.Low24h = stats.Low24h
	sym.Change24h = stats.Change24h
	sym.ChangePct24h = stats.ChangePct24h
	sym.Volume24h = stats.Volume24h
	sym.UpdatedAt = e.now().UTC()

	if err := e.symbols.Update(ctx, sym); err != nil {
		return fmt.Errorf("update symbol %s: %w", symbol, err)
	}

	e.invalidate(ctx, symbol)
	return nil
}
