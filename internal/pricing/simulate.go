package pricing

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// defaultVolatility seeds the random walk when a symbol has no usable
// price history.
const defaultVolatility = 0.02

// SimulatedPoint is one step of a synthetic price path.
type SimulatedPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// SimulatePriceMovement produces a synthetic hourly price path over the
// trailing window, for chart backfill where no real history exists. The
// walk is seeded by volume-weighted volatility of recent records plus a
// trend-influence term that decays linearly to zero across the window.
// This is an explicit simulation, not a reconstruction.
//
// rng may be nil; a time-seeded source is used then. Passing a fixed-seed
// source makes the path deterministic.
func (e *Engine) SimulatePriceMovement(ctx context.Context, symbol string, hours int, rng *rand.Rand) ([]SimulatedPoint, error) {
	if hours <= 0 {
		return nil, nil
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	sym, err := e.symbols.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load symbol %s: %w", symbol, err)
	}

	volatility := e.weightedVolatility(ctx, symbol)

	// Total trend influence over the window: drift back from the current
	// price toward it, spread across all steps and decaying to zero.
	var trendTotal float64
	if sym.BasePrice != 0 {
		trendTotal = (sym.CurrentPrice - sym.BasePrice) / sym.BasePrice
	}

	start := e.now().UTC().Truncate(time.Hour).Add(-time.Duration(hours-1) * time.Hour)
	price := sym.CurrentPrice

	points := make([]SimulatedPoint, 0, hours)
	for i := 0; i < hours; i++ {
		decay := 1 - float64(i)/float64(hours)
		step := price * (volatility*rng.NormFloat64() + trendTotal*decay/float64(hours))
		price = math.Max(minPrice, price+step)
		points = append(points, SimulatedPoint{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Price:     math.Round(price*100) / 100,
		})
	}
	return points, nil
}

// weightedVolatility is the volume-weighted standard deviation of
// fractional price changes over recent records. Zero-volume records weigh
// one so sparse data still contributes.
func (e *Engine) weightedVolatility(ctx context.Context, symbol string) float64 {
	records, err := e.prices.GetRecent(ctx, symbol, 24)
	if err != nil || len(records) < 2 {
		return defaultVolatility
	}

	type sample struct {
		change float64
		weight float64
	}
	var samples []sample
	var weightSum float64
	for i := 0; i < len(records)-1; i++ {
		prev := records[i+1].Close
		if prev == 0 {
			continue
		}
		w := records[i].Volume
		if w <= 0 {
			w = 1
		}
		samples = append(samples, sample{change: (records[i].Close - prev) / prev, weight: w})
		weightSum += w
	}
	if len(samples) == 0 || weightSum == 0 {
		return defaultVolatility
	}

	var mean float64
	for _, s := range samples {
		mean += s.change * s.weight
	}
	mean /= weightSum

	var variance float64
	for _, s := range samples {
		variance += s.weight * (s.change - mean) * (s.change - mean)
	}
	variance /= weightSum

	vol := math.Sqrt(variance)
	if vol == 0 {
		return defaultVolatility
	}
	return vol
}
