package domain

import "time"

// SymbolStatus is the listing state of a symbol.
type SymbolStatus string

const (
	StatusActive    SymbolStatus = "ACTIVE"
	StatusSuspended SymbolStatus = "SUSPENDED"
	StatusDelisted  SymbolStatus = "DELISTED"
)

// Symbol is a tradable synthetic asset backed by a trending topic.
// Corresponds to the symbols table in Postgres.
//
// The Last* fields are the virality baseline: the pricing engine computes
// each cycle's delta against them and then advances them. BaselineAt and
// BaselineSeq make the read-modify-write detectable: a pricing run driven
// by a snapshot not newer than BaselineAt is a duplicate or re-ordered
// execution and is discarded.
type Symbol struct {
	Symbol  string // canonical id, unique and immutable
	TopicID string // backing topic reference
	Name    string // display name derived from topic title

	BasePrice    float64 // listing price, anchor for price computation
	CurrentPrice float64 // latest computed price

	// Rolling 24h stats, recomputed by the stats job.
	High24h      float64
	Low24h       float64
	Change24h    float64
	ChangePct24h float64
	Volume24h    float64

	// Virality baseline for the next cycle's delta.
	LastViralityScore float64
	LastVelocity      float64
	LastSentiment     float64
	BaselineAt        time.Time
	BaselineSeq       int64

	Status SymbolStatus
	Active bool // false once suspended or delisted

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Delisted reports whether the symbol has been soft-deleted. Symbols are
// never hard-deleted while price history exists.
func (s *Symbol) Delisted() bool {
	return s.Status == StatusDelisted
}
