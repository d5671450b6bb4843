// Package scheduler provides a priority job queue with periodic
// triggers, a worker pool, and retry with exponential backoff.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRetriesExhausted is returned when a job failed on every allowed attempt.
var ErrRetriesExhausted = errors.New("scheduler: retries exhausted")

// JobType identifies the kind of work a job performs.
type JobType string

const (
	JobPriceRefresh      JobType = "price_refresh"
	JobStatsRecompute    JobType = "stats_recompute"
	JobTrendingRecompute JobType = "trending_recompute"
	JobViralitySync      JobType = "virality_sync"
	JobCandleAggregate   JobType = "candle_aggregate"
	JobRetentionCleanup  JobType = "retention_cleanup"
	JobHealthCheck       JobType = "health_check"
)

// Priority orders jobs in the queue. Higher values run first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityHighest
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityHighest:
		return "highest"
	default:
		return "unknown"
	}
}

// MaxRetriesFor returns the retry budget for a priority level.
// High priority work gets one extra attempt.
func MaxRetriesFor(p Priority) int {
	if p >= PriorityHigh {
		return 3
	}
	return 2
}

// Job is a single unit of queued work. Symbol and TopicID scope the
// job to one entity; both empty means a global job.
type Job struct {
	ID         string
	Type       JobType
	Symbol     string
	TopicID    string
	Priority   Priority
	RunAt      time.Time
	Attempt    int
	MaxRetries int
	EnqueuedAt time.Time

	// seq breaks ties between jobs with equal priority and RunAt,
	// preserving enqueue order.
	seq uint64
}

// NewJob creates a job with a fresh ID, ready to run immediately.
func NewJob(jobType JobType, priority Priority) *Job {
	return &Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Priority:   priority,
		MaxRetries: MaxRetriesFor(priority),
	}
}

// WithSymbol scopes the job to a single symbol.
func (j *Job) WithSymbol(symbol string) *Job {
	j.Symbol = symbol
	return j
}

// WithTopic scopes the job to a single topic.
func (j *Job) WithTopic(topicID string) *Job {
	j.TopicID = topicID
	return j
}

// WithDelay schedules the job to run no earlier than now+d.
func (j *Job) WithDelay(now time.Time, d time.Duration) *Job {
	j.RunAt = now.Add(d)
	return j
}

// Handler executes one job. The progress callback receives a fraction
// in [0, 1] and may be called any number of times, including never.
type Handler func(ctx context.Context, job *Job, progress func(float64)) error
