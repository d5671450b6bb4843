package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"viraltrade/internal/cache"
	"viraltrade/internal/domain"
	"viraltrade/internal/scheduler"
	"viraltrade/internal/storage"
	"viraltrade/internal/trending"
)

// Trigger cadences. Each trigger expands its scope at fire time, so a
// symbol listed between firings is picked up on the next cycle.
const (
	priceRefreshEvery = 30 * time.Second
	priceJitterMax    = 5 * time.Second
	statsEvery        = 5 * time.Minute
	aggregateEvery    = 5 * time.Minute
	trendingEvery     = 1 * time.Hour
	viralitySyncEvery = 2 * time.Minute
	cleanupEvery      = 24 * time.Hour
	healthEvery       = 10 * time.Minute
	aggregateLookback = 2 // trailing buckets re-aggregated per cycle
)

// RegisterJobs binds the service's handlers and triggers to the
// scheduler. Call once before scheduler.Start.
func (s *Service) RegisterJobs(sched *scheduler.Scheduler) {
	sched.Register(scheduler.JobPriceRefresh, s.handlePriceRefresh)
	sched.Register(scheduler.JobStatsRecompute, s.handleStatsRecompute)
	sched.Register(scheduler.JobTrendingRecompute, s.handleTrendingRecompute)
	sched.Register(scheduler.JobViralitySync, s.handleViralitySync)
	sched.Register(scheduler.JobCandleAggregate, s.handleCandleAggregate)
	sched.Register(scheduler.JobRetentionCleanup, s.handleRetentionCleanup)
	sched.Register(scheduler.JobHealthCheck, sched.CheckHealth)

	sched.AddTrigger(scheduler.Trigger{
		Name:  "price-refresh",
		Every: priceRefreshEvery,
		Jobs: func(ctx context.Context) ([]*scheduler.Job, error) {
			return s.perSymbolJobs(ctx, scheduler.JobPriceRefresh, scheduler.PriorityNormal, func(j *scheduler.Job) {
				j.WithDelay(s.now(), sched.Jitter(priceJitterMax))
			})
		},
	})
	sched.AddTrigger(scheduler.Trigger{
		Name:  "stats-recompute",
		Every: statsEvery,
		Jobs: func(ctx context.Context) ([]*scheduler.Job, error) {
			return s.perSymbolJobs(ctx, scheduler.JobStatsRecompute, scheduler.PriorityLow, nil)
		},
	})
	sched.AddTrigger(scheduler.Trigger{
		Name:  "candle-aggregate",
		Every: aggregateEvery,
		Jobs: func(ctx context.Context) ([]*scheduler.Job, error) {
			return s.perSymbolJobs(ctx, scheduler.JobCandleAggregate, scheduler.PriorityLow, nil)
		},
	})
	sched.AddTrigger(scheduler.Trigger{
		Name:  "trending-recompute",
		Every: trendingEvery,
		Jobs: func(ctx context.Context) ([]*scheduler.Job, error) {
			return []*scheduler.Job{
				scheduler.NewJob(scheduler.JobTrendingRecompute, scheduler.PriorityHigh),
			}, nil
		},
	})
	sched.AddTrigger(scheduler.Trigger{
		Name:  "virality-sync",
		Every: viralitySyncEvery,
		Jobs:  s.viralitySyncJobs,
	})
	sched.AddTrigger(scheduler.Trigger{
		Name:  "retention-cleanup",
		Every: cleanupEvery,
		Jobs: func(ctx context.Context) ([]*scheduler.Job, error) {
			return []*scheduler.Job{
				scheduler.NewJob(scheduler.JobRetentionCleanup, scheduler.PriorityNormal),
			}, nil
		},
	})
	sched.AddTrigger(scheduler.Trigger{
		Name:  "health-check",
		Every: healthEvery,
		Jobs: func(ctx context.Context) ([]*scheduler.Job, error) {
			return []*scheduler.Job{
				scheduler.NewJob(scheduler.JobHealthCheck, scheduler.PriorityLow),
			}, nil
		},
	})
}

// perSymbolJobs expands a trigger into one job per active symbol.
func (s *Service) perSymbolJobs(ctx context.Context, jobType scheduler.JobType, priority scheduler.Priority, customize func(*scheduler.Job)) ([]*scheduler.Job, error) {
	active, err := s.symbolStore.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("expand %s trigger: %w", jobType, err)
	}

	jobs := make([]*scheduler.Job, 0, len(active))
	for _, sym := range active {
		j := scheduler.NewJob(jobType, priority).WithSymbol(sym.Symbol)
		if customize != nil {
			customize(j)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// viralitySyncJobs enqueues one highest priority job per topic that
// received snapshots since the last firing, deduplicated by topic.
func (s *Service) viralitySyncJobs(ctx context.Context) ([]*scheduler.Job, error) {
	since := s.now().UTC().Add(-viralitySyncEvery)
	topics, err := s.source.UpdatedTopics(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("expand virality-sync trigger: %w", err)
	}

	seen := make(map[string]bool, len(topics))
	jobs := make([]*scheduler.Job, 0, len(topics))
	for _, topicID := range topics {
		if seen[topicID] {
			continue
		}
		seen[topicID] = true
		jobs = append(jobs, scheduler.NewJob(scheduler.JobViralitySync, scheduler.PriorityHighest).WithTopic(topicID))
	}
	return jobs, nil
}

func (s *Service) handlePriceRefresh(ctx context.Context, job *scheduler.Job, progress func(float64)) error {
	_, err := s.engine.ComputePrice(ctx, job.Symbol, nil)
	if err != nil {
		if s.metrics != nil {
			s.metrics.PriceComputeErrors.Inc()
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.PriceUpdates.Inc()
	}
	progress(1)
	return nil
}

func (s *Service) handleStatsRecompute(ctx context.Context, job *scheduler.Job, progress func(float64)) error {
	if err := s.engine.RefreshSymbolStats(ctx, job.Symbol); err != nil {
		return err
	}
	// The summary aggregates per-symbol rollups, so it is stale now.
	if err := s.cache.Delete(ctx, cache.SummaryKey()); err != nil {
		s.logger.Warn("summary invalidation failed", zap.Error(err))
	}
	progress(1)
	return nil
}

func (s *Service) handleTrendingRecompute(ctx context.Context, job *scheduler.Job, progress func(float64)) error {
	if _, err := s.ranker.Rank(ctx, trending.DefaultTimeframe, s.cfg.TrendingLimit); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.TrendingCycles.Inc()
	}
	progress(1)
	return nil
}

// handleViralitySync refreshes one topic's market state from its newest
// snapshot. Topics without a listed symbol get listed here, so the
// trending feed grows the market.
func (s *Service) handleViralitySync(ctx context.Context, job *scheduler.Job, progress func(float64)) error {
	sym, err := s.symbolStore.GetByTopicID(ctx, job.TopicID)
	if errors.Is(err, storage.ErrNotFound) {
		topic, terr := s.topicStore.GetByID(ctx, job.TopicID)
		if terr != nil {
			return fmt.Errorf("load topic %s: %w", job.TopicID, terr)
		}
		sym, err = s.registry.EnsureSymbol(ctx, topic)
	}
	if err != nil {
		return fmt.Errorf("resolve symbol for topic %s: %w", job.TopicID, err)
	}
	if !sym.Active {
		return nil
	}
	progress(0.5)

	snap, err := s.source.Latest(ctx, job.TopicID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("latest snapshot for topic %s: %w", job.TopicID, err)
	}

	// Drop the cached snapshot so subsequent reads see the fresh one,
	// then price directly from it.
	if cerr := s.cache.Delete(ctx, cache.ViralityKey(job.TopicID)); cerr != nil {
		s.logger.Warn("virality invalidation failed", zap.Error(cerr))
	}
	if _, err := s.engine.ComputePrice(ctx, sym.Symbol, snap); err != nil {
		return err
	}
	progress(1)
	return nil
}

// handleCandleAggregate re-aggregates the trailing buckets of every
// interval for one symbol. Per-interval failures are isolated.
func (s *Service) handleCandleAggregate(ctx context.Context, job *scheduler.Job, progress func(float64)) error {
	now := s.now().UTC()
	intervals := domain.Intervals()

	var failed int
	for i, interval := range intervals {
		start := interval.Truncate(now.Add(-time.Duration(aggregateLookback) * interval.Duration()))
		built, err := s.aggregator.Aggregate(ctx, job.Symbol, interval, start, now)
		if err != nil {
			failed++
			s.logger.Error("candle aggregation failed",
				zap.String("symbol", job.Symbol),
				zap.String("interval", string(interval)),
				zap.Error(err))
			continue
		}
		if s.metrics != nil {
			s.metrics.CandlesUpserted.Add(float64(len(built)))
		}
		progress(float64(i+1) / float64(len(intervals)))
	}

	if failed == len(intervals) {
		return fmt.Errorf("candle aggregation failed for all intervals of %s", job.Symbol)
	}
	return nil
}

func (s *Service) handleRetentionCleanup(ctx context.Context, job *scheduler.Job, progress func(float64)) error {
	report, err := s.aggregator.Cleanup(ctx, s.cfg.RetentionDays)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.CandlesDeleted.Add(float64(report.Total()))
	}
	s.logger.Info("retention cleanup completed",
		zap.Int("retentionDays", s.cfg.RetentionDays),
		zap.Int64("removed", report.Total()))
	progress(1)
	return nil
}
