package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PriorityOrdering(t *testing.T) {
	q := NewQueue()

	low := NewJob(JobStatsRecompute, PriorityLow)
	normal := NewJob(JobPriceRefresh, PriorityNormal)
	highest := NewJob(JobViralitySync, PriorityHighest)
	high := NewJob(JobTrendingRecompute, PriorityHigh)

	q.Push(low)
	q.Push(normal)
	q.Push(highest)
	q.Push(high)

	var order []Priority
	for j := q.TryPop(); j != nil; j = q.TryPop() {
		order = append(order, j.Priority)
	}

	assert.Equal(t, []Priority{PriorityHighest, PriorityHigh, PriorityNormal, PriorityLow}, order)
}

func TestQueue_FIFOWithinPriority(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := NewQueue().withClock(func() time.Time { return base })

	first := NewJob(JobPriceRefresh, PriorityNormal).WithSymbol("A")
	second := NewJob(JobPriceRefresh, PriorityNormal).WithSymbol("B")
	third := NewJob(JobPriceRefresh, PriorityNormal).WithSymbol("C")

	q.Push(first)
	q.Push(second)
	q.Push(third)

	assert.Equal(t, "A", q.TryPop().Symbol)
	assert.Equal(t, "B", q.TryPop().Symbol)
	assert.Equal(t, "C", q.TryPop().Symbol)
}

func TestQueue_DelayedJobNotDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := NewQueue().withClock(func() time.Time { return now })

	delayed := NewJob(JobPriceRefresh, PriorityHighest)
	delayed.RunAt = now.Add(5 * time.Second)
	due := NewJob(JobStatsRecompute, PriorityLow)

	q.Push(delayed)
	q.Push(due)

	// The delayed job has higher priority but is not due, so the low
	// priority job runs first.
	got := q.TryPop()
	require.NotNil(t, got)
	assert.Equal(t, JobStatsRecompute, got.Type)
	assert.Nil(t, q.TryPop())

	now = now.Add(6 * time.Second)
	got = q.TryPop()
	require.NotNil(t, got)
	assert.Equal(t, JobPriceRefresh, got.Type)
}

func TestQueue_DepthByPriority(t *testing.T) {
	q := NewQueue()

	q.Push(NewJob(JobPriceRefresh, PriorityNormal))
	q.Push(NewJob(JobPriceRefresh, PriorityNormal))
	q.Push(NewJob(JobViralitySync, PriorityHighest))

	assert.Equal(t, 3, q.Depth())
	depths := q.DepthByPriority()
	assert.Equal(t, 2, depths[PriorityNormal])
	assert.Equal(t, 1, depths[PriorityHighest])
	assert.Equal(t, 0, depths[PriorityLow])
}

func TestQueue_PopRespectsContext(t *testing.T) {
	q := NewQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
