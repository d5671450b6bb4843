package domain

import "time"

// TrendingEntry is one scored symbol in a ranking cycle's output.
type TrendingEntry struct {
	Symbol       string
	Score        float64
	Rank         int // 1-based
	CurrentPrice float64
	ChangePct    float64 // price change percent over the ranking timeframe
	Volume       float64 // volume over the ranking timeframe
	GeneratedAt  time.Time
}

// TrendingSnapshot is one complete ranking cycle's output. The cached list
// is always replaced wholesale with a new snapshot, never merged, so readers
// observe exactly one cycle at a time.
type TrendingSnapshot struct {
	ID          string // snapshot identity for the atomic alias swap
	Timeframe   string
	Entries     []TrendingEntry
	GeneratedAt time.Time
}
