package rqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/rdpmux/rdpmux/internal/rqueue"
	"github.com/rdpmux/rdpmux/internal/wire"
)

// FIFO: enqueuing r1...rN and draining yields exactly r1...rN
// (spec.md §8, property 5).
func TestFIFOOrder(t *testing.T) {
	q := rqueue.New(4)
	want := []wire.Record{
		wire.DisplayUpdate{X: 1},
		wire.DisplayUpdate{X: 2},
		wire.DisplayUpdate{X: 3},
	}
	for _, r := range want {
		q.Enqueue(r)
	}

	ctx := context.Background()
	for i, w := range want {
		got, ok := q.Dequeue(ctx)
		if !ok {
			t.Fatalf("dequeue %d: queue unexpectedly empty", i)
		}
		if got != w {
			t.Fatalf("dequeue %d: got %+v, want %+v", i, got, w)
		}
	}
	if !q.TryEmpty() {
		t.Fatalf("expected queue empty after draining")
	}
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := rqueue.New(1)
	done := make(chan wire.Record, 1)
	go func() {
		rec, ok := q.Dequeue(context.Background())
		if ok {
			done <- rec
		}
	}()

	select {
	case <-done:
		t.Fatalf("dequeue returned before any enqueue")
	case <-time.After(20 * time.Millisecond):
	}

	q.Enqueue(wire.Shutdown{})
	select {
	case rec := <-done:
		if rec != wire.Record(wire.Shutdown{}) {
			t.Fatalf("got %+v, want Shutdown", rec)
		}
	case <-time.After(time.Second):
		t.Fatalf("dequeue did not unblock after enqueue")
	}
}

func TestDequeueCancelledByContext(t *testing.T) {
	q := rqueue.New(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(ctx)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected dequeue to report !ok after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatalf("dequeue did not return after context cancellation")
	}
}

func TestClear(t *testing.T) {
	q := rqueue.New(2)
	q.Enqueue(wire.DisplayUpdate{})
	q.Enqueue(wire.DisplayUpdate{})
	q.Clear()
	if !q.TryEmpty() {
		t.Fatalf("expected empty queue after Clear")
	}
	if q.Len() != 0 {
		t.Fatalf("expected Len()==0 after Clear, got %d", q.Len())
	}
}
