package merge

import (
	"context"
	"errors"
	"sync"
)

var ErrQueueClosed = errors.New("upsert queue closed")

// Job is one unit of background persistence.
type Job func(ctx context.Context) error

// UpsertQueue runs jobs asynchronously. Jobs sharing a key run one at a time in
// submission order; different keys run concurrently. A lane goroutine exists
// only while its key has pending work.
type UpsertQueue struct {
	ctx     context.Context
	onError func(key string, err error)

	mu      sync.Mutex
	idle    *sync.Cond
	lanes   map[string][]Job
	pending int
	closed  bool
}

func NewUpsertQueue(ctx context.Context, onError func(key string, err error)) *UpsertQueue {
	if onError == nil {
		onError = func(string, error) {}
	}
	q := &UpsertQueue{ctx: ctx, onError: onError, lanes: map[string][]Job{}}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Submit enqueues job on the lane for key. It never blocks on the job itself.
func (q *UpsertQueue) Submit(key string, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.pending++
	queued, running := q.lanes[key]
	q.lanes[key] = append(queued, job)
	if !running {
		go q.drain(key)
	}
	return nil
}

func (q *UpsertQueue) drain(key string) {
	for {
		q.mu.Lock()
		queued := q.lanes[key]
		if len(queued) == 0 {
			delete(q.lanes, key)
			q.mu.Unlock()
			return
		}
		job := queued[0]
		q.lanes[key] = queued[1:]
		q.mu.Unlock()

		if err := job(q.ctx); err != nil {
			q.onError(key, err)
		}
		q.mu.Lock()
		q.pending--
		if q.pending == 0 {
			q.idle.Broadcast()
		}
		q.mu.Unlock()
	}
}

// Wait blocks until every job submitted so far has finished.
func (q *UpsertQueue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.pending > 0 {
		q.idle.Wait()
	}
}

// Close rejects further submissions and waits for queued jobs.
func (q *UpsertQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.Wait()
}

// Pending is the number of submitted jobs that have not finished.
func (q *UpsertQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}
