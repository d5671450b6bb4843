package scheduler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

func (s *Scheduler) worker(ctx context.Context, id int) {
	defer s.wg.Done()

	for {
		job, err := s.queue.Pop(ctx)
		if err != nil {
			return
		}
		s.execute(ctx, job)
		s.updateDepthGauges()
	}
}

// execute runs one job attempt. On failure within the retry budget the
// job is requeued with exponential backoff; once the budget is spent
// the failure is logged and counted.
func (s *Scheduler) execute(ctx context.Context, job *Job) {
	s.mu.RLock()
	handler, ok := s.handlers[job.Type]
	s.mu.RUnlock()

	if !ok {
		s.logger.Error("no handler registered for job type",
			zap.String("type", string(job.Type)),
			zap.String("jobId", job.ID))
		if s.metrics != nil {
			s.metrics.JobsFailed.WithLabelValues(string(job.Type)).Inc()
		}
		return
	}

	start := s.now()
	err := s.runHandler(ctx, handler, job)
	elapsed := s.now().Sub(start)

	if s.metrics != nil {
		s.metrics.JobDuration.WithLabelValues(string(job.Type)).Observe(elapsed.Seconds())
	}

	if err == nil {
		if s.metrics != nil {
			s.metrics.JobsCompleted.WithLabelValues(string(job.Type)).Inc()
		}
		s.logger.Debug("job completed",
			zap.String("job", jobDesc(job)),
			zap.String("jobId", job.ID),
			zap.Duration("elapsed", elapsed))
		return
	}

	if ctx.Err() != nil {
		// Shutting down. Drop the job without counting the attempt as a
		// failure; the queue dies with the process and the periodic
		// triggers regenerate the work on the next start.
		return
	}

	if job.Attempt < job.MaxRetries {
		job.Attempt++
		job.RunAt = s.now().Add(backoffDelay(job.Attempt - 1))
		s.logger.Warn("job failed, retrying",
			zap.String("job", jobDesc(job)),
			zap.String("jobId", job.ID),
			zap.Int("attempt", job.Attempt),
			zap.Int("maxRetries", job.MaxRetries),
			zap.Time("runAt", job.RunAt),
			zap.Error(err))
		if s.metrics != nil {
			s.metrics.JobsRetried.WithLabelValues(string(job.Type)).Inc()
		}
		s.queue.Push(job)
		return
	}

	s.logger.Error("job failed permanently",
		zap.String("job", jobDesc(job)),
		zap.String("jobId", job.ID),
		zap.Int("attempts", job.Attempt+1),
		zap.Error(errors.Join(ErrRetriesExhausted, err)))
	if s.metrics != nil {
		s.metrics.JobsFailed.WithLabelValues(string(job.Type)).Inc()
	}
}

// runHandler invokes the handler with panic recovery so a misbehaving
// job cannot take down a worker.
func (s *Scheduler) runHandler(ctx context.Context, handler Handler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	progress := func(frac float64) {
		s.logger.Debug("job progress",
			zap.String("job", jobDesc(job)),
			zap.String("jobId", job.ID),
			zap.Float64("progress", frac))
	}
	return handler(ctx, job, progress)
}
