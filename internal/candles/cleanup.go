package candles

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"viraltrade/internal/domain"
)

// CleanupReport holds per-granularity deletion counts from one retention run.
type CleanupReport struct {
	SubDaily     map[domain.Interval]int64
	Daily        int64
	PriceRecords int64
}

// Total returns the overall number of deleted candles.
func (r *CleanupReport) Total() int64 {
	total := r.Daily
	for _, n := range r.SubDaily {
		total += n
	}
	return total
}

// Cleanup irreversibly deletes aged history: sub-daily candles older than
// retentionDays, daily candles older than 4x that, and raw price records
// older than retentionDays.
func (a *Aggregator) Cleanup(ctx context.Context, retentionDays int) (*CleanupReport, error) {
	if retentionDays <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", retentionDays)
	}

	now := a.now().UTC()
	subDailyCutoff := now.AddDate(0, 0, -retentionDays)
	dailyCutoff := now.AddDate(0, 0, -4*retentionDays)

	report := &CleanupReport{SubDaily: make(map[domain.Interval]int64)}

	for _, interval := range domain.Intervals() {
		if !interval.SubDaily() {
			continue
		}
		deleted, err := a.candles.DeleteOlderThan(ctx, interval, subDailyCutoff)
		if err != nil {
			return report, fmt.Errorf("cleanup %s candles: %w", interval, err)
		}
		report.SubDaily[interval] = deleted
	}

	deleted, err := a.candles.DeleteOlderThan(ctx, domain.Interval1d, dailyCutoff)
	if err != nil {
		return report, fmt.Errorf("cleanup daily candles: %w", err)
	}
	report.Daily = deleted

	pruned, err := a.prices.DeleteOlderThan(ctx, subDailyCutoff)
	if err != nil {
		return report, fmt.Errorf("prune price records: %w", err)
	}
	report.PriceRecords = pruned

	a.logger.Info("retention cleanup complete",
		zap.Int("retention_days", retentionDays),
		zap.Int64("candles_deleted", report.Total()),
		zap.Int64("price_records_deleted", report.PriceRecords))
	return report, nil
}
