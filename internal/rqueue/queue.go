// Package rqueue implements the Message Queue component (spec.md §4.1):
// a strict-FIFO, unbounded queue of wire.Record guarded by a mutex with
// one condition variable signalling non-empty.
//
// Grounded on the teacher's postCh/workCh pairing in
// transport/base.go's streamBase (a channel signalling "the queue has
// work"), reworked here as the explicit mutex+cond the spec calls for
// so Dequeue can observe strict FIFO order without channel-buffering
// surprises.
package rqueue

import (
	"context"
	"sync"

	"github.com/rdpmux/rdpmux/internal/wire"
)

// Queue is a FIFO of wire.Record. The zero value is not usable; use New.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	records []wire.Record
}

// New returns an empty Queue with the given initial backing capacity
// (rdpcfg.Config.QueueInitialCap).
func New(initialCap int) *Queue {
	q := &Queue{records: make([]wire.Record, 0, initialCap)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends rec to the tail and signals one waiter. Enqueue never
// blocks (spec.md §4.1: "unbounded; enqueue cannot block").
func (q *Queue) Enqueue(rec wire.Record) {
	q.mu.Lock()
	q.records = append(q.records, rec)
	q.mu.Unlock()
	q.cond.Signal()
}

// Dequeue blocks until a record is available or ctx is done, then pops
// and returns the head (strict FIFO, spec.md property 5).
func (q *Queue) Dequeue(ctx context.Context) (wire.Record, bool) {
	// Wake blocked waiters when ctx is cancelled; cond.Wait has no
	// native context support, so a one-shot goroutine broadcasts once
	// per call. It exits immediately once Dequeue returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			q.cond.Broadcast()
		case <-done:
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.records) == 0 {
		if ctx.Err() != nil {
			return nil, false
		}
		q.cond.Wait()
	}
	rec := q.records[0]
	q.records = q.records[1:]
	return rec, true
}

// TryDequeue pops the head without blocking, reporting false if the
// queue is currently empty. Used by the Main I/O Thread's drain step
// (spec.md §4.8 step 1), which already knows not to wait.
func (q *Queue) TryDequeue() (wire.Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.records) == 0 {
		return nil, false
	}
	rec := q.records[0]
	q.records = q.records[1:]
	return rec, true
}

// TryEmpty reports whether the queue currently holds no records,
// without blocking.
func (q *Queue) TryEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records) == 0
}

// Len reports the current queue depth, used for the prometheus queue
// depth gauge (internal/ioloop).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Clear drops all queued records (spec.md §4.1, and used by
// DisplaySwitch/Cleanup to invalidate stale records — spec.md property 3).
func (q *Queue) Clear() {
	q.mu.Lock()
	q.records = q.records[:0]
	q.mu.Unlock()
}
