package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// pollInterval bounds how long a worker sleeps before re-checking the
// head of the queue for a job whose RunAt has arrived.
const pollInterval = 50 * time.Millisecond

// jobHeap orders jobs by priority descending, then RunAt ascending,
// then insertion order.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	if !h[i].RunAt.Equal(h[j].RunAt) {
		return h[i].RunAt.Before(h[j].RunAt)
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(*Job)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return j
}

// Queue is a thread-safe priority queue of jobs. Jobs with a future
// RunAt stay in the heap until due and never occupy a worker.
type Queue struct {
	mu   sync.Mutex
	heap jobHeap
	seq  uint64
	now  func() time.Time
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{now: time.Now}
}

// withClock overrides the queue clock for tests.
func (q *Queue) withClock(now func() time.Time) *Queue {
	q.now = now
	return q
}

// Push adds a job to the queue. A zero RunAt means run immediately.
func (q *Queue) Push(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = q.now()
	}
	if job.RunAt.IsZero() {
		job.RunAt = job.EnqueuedAt
	}
	q.seq++
	job.seq = q.seq
	heap.Push(&q.heap, job)
}

// TryPop removes and returns the highest priority job whose RunAt has
// arrived, or nil if no job is due.
func (q *Queue) TryPop() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == 0 {
		return nil
	}
	// The head is the best candidate, but a lower priority job may be
	// due while a higher priority one is still delayed. Scan for the
	// best due job.
	now := q.now()
	best := -1
	for i, j := range q.heap {
		if j.RunAt.After(now) {
			continue
		}
		if best == -1 || q.heap.Less(i, best) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	return heap.Remove(&q.heap, best).(*Job)
}

// Pop blocks until a job is due or the context is cancelled.
func (q *Queue) Pop(ctx context.Context) (*Job, error) {
	for {
		if j := q.TryPop(); j != nil {
			return j, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Depth returns the total number of queued jobs, due or delayed.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// DepthByPriority returns queued job counts keyed by priority.
func (q *Queue) DepthByPriority() map[Priority]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	depths := make(map[Priority]int)
	for _, j := range q.heap {
		depths[j.Priority]++
	}
	return depths
}
