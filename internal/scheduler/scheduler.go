package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"viraltrade/internal/observability"
)

const (
	// backoffBase is the delay before the first retry. It doubles on
	// every subsequent attempt.
	backoffBase = 2 * time.Second

	// depthWarnThreshold is the queue depth above which the health
	// check logs a warning.
	depthWarnThreshold = 1000
)

// Trigger periodically expands into a batch of jobs. Jobs is called at
// every firing and returns the jobs to enqueue, so scope expansion
// (per symbol, per topic) happens at fire time.
type Trigger struct {
	Name  string
	Every time.Duration
	Jobs  func(ctx context.Context) ([]*Job, error)
}

// Scheduler owns the job queue, the periodic triggers, and the worker
// pool that drains the queue. Handler failures are retried with
// exponential backoff and never crash the scheduler.
type Scheduler struct {
	queue   *Queue
	workers int
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
	rng     *rand.Rand
	rngMu   sync.Mutex

	mu       sync.RWMutex
	handlers map[JobType]Handler
	triggers []Trigger

	wg sync.WaitGroup
}

// New creates a scheduler with the given worker pool size.
func New(workers int, logger *zap.Logger, metrics *observability.Metrics) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		queue:    NewQueue(),
		workers:  workers,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		handlers: make(map[JobType]Handler),
	}
}

// Register binds a handler to a job type. Jobs of an unregistered type
// fail immediately without retries.
func (s *Scheduler) Register(jobType JobType, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[jobType] = h
}

// AddTrigger registers a periodic trigger. Must be called before Start.
func (s *Scheduler) AddTrigger(t Trigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers = append(s.triggers, t)
}

// Enqueue adds a job to the queue.
func (s *Scheduler) Enqueue(job *Job) {
	s.queue.Push(job)
	if s.metrics != nil {
		s.metrics.JobsEnqueued.WithLabelValues(string(job.Type)).Inc()
	}
	s.updateDepthGauges()
}

// Jitter returns a random delay in [0, max). It spreads bursts of
// per-symbol jobs produced by a single trigger firing.
func (s *Scheduler) Jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return time.Duration(s.rng.Int63n(int64(max)))
}

// Depth returns the current total queue depth.
func (s *Scheduler) Depth() int {
	return s.queue.Depth()
}

// Start launches the worker pool and the trigger loops, and blocks
// until the context is cancelled and all workers have drained.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.RLock()
	triggers := make([]Trigger, len(s.triggers))
	copy(triggers, s.triggers)
	s.mu.RUnlock()

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
	for _, t := range triggers {
		s.wg.Add(1)
		go s.runTrigger(ctx, t)
	}

	s.wg.Wait()
}

func (s *Scheduler) runTrigger(ctx context.Context, t Trigger) {
	defer s.wg.Done()

	ticker := time.NewTicker(t.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, t)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, t Trigger) {
	jobs, err := t.Jobs(ctx)
	if err != nil {
		s.logger.Error("trigger expansion failed",
			zap.String("trigger", t.Name),
			zap.Error(err))
		return
	}
	for _, job := range jobs {
		s.Enqueue(job)
	}
	if len(jobs) > 0 {
		s.logger.Debug("trigger fired",
			zap.String("trigger", t.Name),
			zap.Int("jobs", len(jobs)))
	}
}

// CheckHealth logs the queue depth and warns when it exceeds the
// threshold. Wired as the health check job handler.
func (s *Scheduler) CheckHealth(ctx context.Context, job *Job, progress func(float64)) error {
	depth := s.queue.Depth()
	if depth > depthWarnThreshold {
		s.logger.Warn("job queue depth above threshold",
			zap.Int("depth", depth),
			zap.Int("threshold", depthWarnThreshold))
	} else {
		s.logger.Debug("job queue healthy", zap.Int("depth", depth))
	}
	s.updateDepthGauges()
	return nil
}

func (s *Scheduler) updateDepthGauges() {
	if s.metrics == nil {
		return
	}
	depths := s.queue.DepthByPriority()
	for _, p := range []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityHighest} {
		s.metrics.QueueDepth.WithLabelValues(p.String()).Set(float64(depths[p]))
	}
}

func backoffDelay(attempt int) time.Duration {
	d := backoffBase
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}

func jobDesc(job *Job) string {
	scope := job.Symbol
	if scope == "" {
		scope = job.TopicID
	}
	if scope == "" {
		return string(job.Type)
	}
	return fmt.Sprintf("%s[%s]", job.Type, scope)
}
