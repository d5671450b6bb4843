package domain

import "time"

// PriceRecord is one pricing-cycle output for a symbol, immutable once
// written. Corresponds to the price_records table in Postgres; pruned in
// bulk after the retention window.
//
// Close is the effective price of the cycle and is always > 0 (the pricing
// engine floors it at 0.01).
type PriceRecord struct {
	Symbol string

	Open  float64 // price before this cycle
	High  float64
	Low   float64
	Close float64 // computed price

	Volume float64 // engagement total driving this cycle

	// Input snapshot the price was computed from.
	ViralityScore float64
	Velocity      float64
	Sentiment     float64
	Imbalance     float64 // order-book imbalance in [-1, 1]

	Timestamp time.Time
	Interval  Interval // cadence tag, Interval1m for the 30s refresh cycle
}
