// Package orderbook defines the external order-book collaborator the
// pricing engine reads from. The market core never mutates order books.
package orderbook

import (
	"context"

	"viraltrade/internal/domain"
)

// Client is the order-book service surface the core consumes.
type Client interface {
	// Imbalance returns the normalized buy/sell pending-volume difference
	// for a symbol, in [-1, 1].
	Imbalance(ctx context.Context, symbol string) (float64, error)

	// Book returns the current order book for a symbol.
	Book(ctx context.Context, symbol string) (*domain.OrderBook, error)
}

// StaticClient returns fixed values. It serves tests and deployments
// without an order-book service; a zero imbalance leaves the order-book
// factor neutral in the pricing formula.
type StaticClient struct {
	ImbalanceValue float64
}

// Compile-time interface check.
var _ Client = (*StaticClient)(nil)

// Imbalance returns the configured static imbalance.
func (c *StaticClient) Imbalance(_ context.Context, _ string) (float64, error) {
	return clamp(c.ImbalanceValue), nil
}

// Book returns an empty book.
func (c *StaticClient) Book(_ context.Context, symbol string) (*domain.OrderBook, error) {
	return &domain.OrderBook{Symbol: symbol}, nil
}

// clamp bounds imbalance to [-1, 1].
func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
