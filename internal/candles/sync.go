package candles

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"viraltrade/internal/domain"
)

// syncBatch bounds one re-aggregation window so memory stays flat
// regardless of the total range.
const syncBatch = 7 * 24 * time.Hour

// SyncHistorical rebuilds candles for an exact window: existing candles in
// [start, end) are deleted, then the range is re-aggregated in bounded
// 7-day batches. Returns the number of candles written.
func (a *Aggregator) SyncHistorical(ctx context.Context, symbol string, interval domain.Interval, start, end time.Time) (int, error) {
	if !interval.Valid() {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	if !end.After(start) {
		return 0, nil
	}

	if err := a.candles.DeleteRange(ctx, symbol, interval, start, end); err != nil {
		return 0, fmt.Errorf("clear candle window for %s: %w", symbol, err)
	}

	var total int
	for batchStart := start; batchStart.Before(end); batchStart = batchStart.Add(syncBatch) {
		batchEnd := batchStart.Add(syncBatch)
		if batchEnd.After(end) {
			batchEnd = end
		}

		built, err := a.Aggregate(ctx, symbol, interval, batchStart, batchEnd)
		if err != nil {
			return total, fmt.Errorf("aggregate batch [%s, %s): %w", batchStart, batchEnd, err)
		}
		total += len(built)
	}

	a.logger.Info("historical sync complete",
		zap.String("symbol", symbol),
		zap.String("interval", string(interval)),
		zap.Int("candles", total))
	return total, nil
}
