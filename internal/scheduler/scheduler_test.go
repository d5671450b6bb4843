package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScheduler(workers int) *Scheduler {
	return New(workers, zap.NewNop(), nil)
}

func TestScheduler_ExecuteRetriesWithBackoff(t *testing.T) {
	s := newTestScheduler(1)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s.now = clock
	s.queue.withClock(clock)

	var attempts int
	s.Register(JobPriceRefresh, func(ctx context.Context, job *Job, progress func(float64)) error {
		attempts++
		return errors.New("transient")
	})

	job := NewJob(JobPriceRefresh, PriorityNormal).WithSymbol("VIRAL/SA_MUSIC_TEST_001")
	require.Equal(t, 2, job.MaxRetries)

	s.execute(context.Background(), job)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, job.Attempt)
	assert.Equal(t, now.Add(2*time.Second), job.RunAt)
	assert.Equal(t, 1, s.queue.Depth())

	require.Nil(t, s.queue.TryPop(), "retry should be delayed, not immediately due")

	now = now.Add(3 * time.Second)
	requeued := s.queue.TryPop()
	require.NotNil(t, requeued)

	s.execute(context.Background(), requeued)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 2, requeued.Attempt)
	// Second retry backs off twice as long.
	assert.Equal(t, now.Add(4*time.Second), requeued.RunAt)
}

func TestScheduler_ExecuteExhaustsRetries(t *testing.T) {
	s := newTestScheduler(1)

	var attempts int
	s.Register(JobStatsRecompute, func(ctx context.Context, job *Job, progress func(float64)) error {
		attempts++
		return errors.New("permanent")
	})

	job := NewJob(JobStatsRecompute, PriorityLow)
	job.Attempt = job.MaxRetries

	s.execute(context.Background(), job)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 0, s.queue.Depth(), "exhausted job must not be requeued")
}

func TestScheduler_ExecuteRecoversPanic(t *testing.T) {
	s := newTestScheduler(1)

	s.Register(JobTrendingRecompute, func(ctx context.Context, job *Job, progress func(float64)) error {
		panic("boom")
	})

	job := NewJob(JobTrendingRecompute, PriorityHigh)

	require.NotPanics(t, func() {
		s.execute(context.Background(), job)
	})
	assert.Equal(t, 1, job.Attempt, "panic counts as a failed attempt")
	assert.Equal(t, 1, s.queue.Depth())
}

func TestScheduler_UnregisteredTypeNotRequeued(t *testing.T) {
	s := newTestScheduler(1)

	job := NewJob(JobType("unknown"), PriorityNormal)
	s.execute(context.Background(), job)

	assert.Equal(t, 0, s.queue.Depth())
	assert.Equal(t, 0, job.Attempt)
}

func TestScheduler_WorkersDrainQueue(t *testing.T) {
	s := newTestScheduler(3)

	const jobs = 12
	var done sync.WaitGroup
	done.Add(jobs)
	var completed atomic.Int64

	s.Register(JobPriceRefresh, func(ctx context.Context, job *Job, progress func(float64)) error {
		completed.Add(1)
		done.Done()
		return nil
	})

	for i := 0; i < jobs; i++ {
		s.Enqueue(NewJob(JobPriceRefresh, PriorityNormal))
	}

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(finished)
	}()

	done.Wait()
	cancel()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not shut down")
	}
	assert.Equal(t, int64(jobs), completed.Load())
	assert.Equal(t, 0, s.Depth())
}

func TestScheduler_TriggerEnqueuesJobs(t *testing.T) {
	s := newTestScheduler(2)

	var ran atomic.Int64
	s.Register(JobViralitySync, func(ctx context.Context, job *Job, progress func(float64)) error {
		ran.Add(1)
		return nil
	})
	s.AddTrigger(Trigger{
		Name:  "virality-sync",
		Every: 20 * time.Millisecond,
		Jobs: func(ctx context.Context) ([]*Job, error) {
			return []*Job{
				NewJob(JobViralitySync, PriorityHighest).WithTopic("topic-1"),
				NewJob(JobViralitySync, PriorityHighest).WithTopic("topic-2"),
			}, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(finished)
	}()

	require.Eventually(t, func() bool {
		return ran.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-finished
}

func TestScheduler_JitterWithinBounds(t *testing.T) {
	s := newTestScheduler(1)

	for i := 0; i < 100; i++ {
		d := s.Jitter(5 * time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 5*time.Second)
	}
	assert.Equal(t, time.Duration(0), s.Jitter(0))
}

func TestScheduler_HealthCheckNeverFails(t *testing.T) {
	s := newTestScheduler(1)

	err := s.CheckHealth(context.Background(), NewJob(JobHealthCheck, PriorityLow), func(float64) {})
	assert.NoError(t, err)
}
