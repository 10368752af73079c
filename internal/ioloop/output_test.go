package ioloop

import (
	"context"
	"testing"
	"time"

	"github.com/rdpmux/rdpmux/internal/dirty"
	"github.com/rdpmux/rdpmux/internal/refresh"
	"github.com/rdpmux/rdpmux/internal/rqueue"
	"github.com/rdpmux/rdpmux/internal/wire"
)

// S7 — Ack wakes output thread: prime out with a rectangle, the output
// thread publishes it to the queue and blocks on the ack condvar; once
// an UpdateAck arrives the frame lock is released within one
// scheduling quantum and a fresh publish succeeds.
func TestOutputThreadWakesOnAck(t *testing.T) {
	fs := refresh.NewFrameSync()
	queue := rqueue.New(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunOutput(ctx, fs, queue)

	fs.Lock()
	fs.PublishLocked(dirty.Rect{X1: 0, Y1: 0, X2: 16, Y2: 16})
	fs.Unlock()

	deadline := time.After(time.Second)
	for queue.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for output thread to enqueue the rect")
		case <-time.After(time.Millisecond):
		}
	}

	rec, ok := queue.TryDequeue()
	if !ok {
		t.Fatal("expected a record in the outgoing queue")
	}
	du, ok := rec.(wire.DisplayUpdate)
	if !ok || du.W != 16 || du.H != 16 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// Output thread is now blocked in AckCond.Wait holding the frame
	// lock; a second TryLock must fail until the ack arrives.
	if fs.TryLock() {
		fs.Unlock()
		t.Fatal("expected frame lock to be held by the output thread pending ack")
	}

	fs.Lock()
	fs.SignalAckLocked(true)
	fs.Unlock()

	deadline = time.After(time.Second)
	for {
		if fs.TryLock() {
			fs.Unlock()
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for output thread to release the frame lock after ack")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestOutputThreadStopsOnStopLocked(t *testing.T) {
	fs := refresh.NewFrameSync()
	queue := rqueue.New(4)

	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		RunOutput(ctx, fs, queue)
		close(done)
	}()

	fs.Lock()
	fs.StopLocked()
	fs.Unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("output thread did not exit after StopLocked")
	}
}
