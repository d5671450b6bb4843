package domain

import "time"

// MarketCandle is an OHLCV aggregate of virality snapshots over one bucket.
// Corresponds to the market_candles table in ClickHouse. Uniquely keyed by
// (symbol, interval, bucket start); upserts are idempotent.
//
// Invariants: High >= max(Open, Close), Low <= min(Open, Close),
// BucketStart is aligned to the interval boundary.
type MarketCandle struct {
	Symbol      string
	Interval    Interval
	BucketStart time.Time // interval-aligned, UTC

	Open  float64 // first virality index in the bucket
	High  float64
	Low   float64
	Close float64 // last virality index in the bucket

	Volume float64 // sum of engagement totals

	// Derived means over the bucket.
	SentimentMean  float64
	VelocityMean   float64
	EngagementRate float64 // volume per second of interval width
	Momentum       float64 // mean first-difference of the virality index

	Volatility  float64 // population stddev of the virality index
	SampleCount int     // snapshots aggregated
}
