package candles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viraltrade/internal/domain"
)

func TestCleanup_RetentionTiers(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	put := func(iv domain.Interval, age time.Duration) {
		require.NoError(t, f.candles.Upsert(ctx, []*domain.MarketCandle{{
			Symbol:      "S",
			Interval:    iv,
			BucketStart: iv.Truncate(now.Add(-age)),
			Open:        1, High: 1, Low: 1, Close: 1,
		}}))
	}

	// Sub-daily: one older than 90 days, one newer.
	put(domain.Interval1h, 100*24*time.Hour)
	put(domain.Interval1h, 10*24*time.Hour)
	// Daily: one older than 360 days, one merely older than 90.
	put(domain.Interval1d, 400*24*time.Hour)
	put(domain.Interval1d, 100*24*time.Hour)

	// Aged price record plus a fresh one.
	require.NoError(t, f.prices.Insert(ctx, &domain.PriceRecord{
		Symbol: "S", Close: 1, Timestamp: now.Add(-100 * 24 * time.Hour), Interval: domain.Interval1m,
	}))
	require.NoError(t, f.prices.Insert(ctx, &domain.PriceRecord{
		Symbol: "S", Close: 1, Timestamp: now.Add(-time.Hour), Interval: domain.Interval1m,
	}))

	report, err := f.agg.Cleanup(ctx, 90)
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.SubDaily[domain.Interval1h], "sub-daily candles older than 90d removed")
	assert.Equal(t, int64(1), report.Daily, "daily candles kept 4x longer")
	assert.Equal(t, int64(1), report.PriceRecords)
	assert.Equal(t, int64(2), report.Total())

	// Survivors intact.
	hourly, _ := f.candles.GetRecent(ctx, "S", domain.Interval1h, 10)
	assert.Len(t, hourly, 1)
	daily, _ := f.candles.GetRecent(ctx, "S", domain.Interval1d, 10)
	assert.Len(t, daily, 1)
}

func TestCleanup_RejectsNonPositiveRetention(t *testing.T) {
	f := newAggFixture(t)

	_, err := f.agg.Cleanup(context.Background(), 0)
	assert.Error(t, err)
}

func TestSyncHistorical_RebuildsExactWindow(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 20) // forces three 7-day batches

	// A stale candle inside the window that no snapshot backs anymore.
	require.NoError(t, f.candles.Upsert(ctx, []*domain.MarketCandle{{
		Symbol: "S", Interval: domain.Interval1d, BucketStart: start.AddDate(0, 0, 2),
		Open: 99, High: 99, Low: 99, Close: 99,
	}}))

	// Real snapshots on days 1, 8 and 15, one per batch.
	for _, day := range []int{1, 8, 15} {
		f.addSnap(t, 50, 100, start.AddDate(0, 0, day).Add(6*time.Hour))
	}

	total, err := f.agg.SyncHistorical(ctx, "S", domain.Interval1d, start, end)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	stored, err := f.candles.GetByTimeRange(ctx, "S", domain.Interval1d, start, end)
	require.NoError(t, err)
	require.Len(t, stored, 3, "stale candle deleted, only re-aggregated candles remain")
	for _, c := range stored {
		assert.Equal(t, 50.0, c.Close)
	}
}
