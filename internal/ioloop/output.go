package ioloop

import (
	"context"

	"github.com/rdpmux/rdpmux/internal/nlog"
	"github.com/rdpmux/rdpmux/internal/refresh"
	"github.com/rdpmux/rdpmux/internal/rqueue"
	"github.com/rdpmux/rdpmux/internal/wire"
)

// RunOutput is the Output Thread entry point (spec.md §4.7). It owns
// the "frame in flight" handshake: it holds the frame lock from the
// moment it moves a published rect onto the outgoing queue until the
// corresponding UpdateAck arrives, so the shared region is never
// rewritten while the consumer is still reading it.
//
// Grounded on aistore's transport/bundle/shared_dm.go distribution-
// manager loop: a dedicated goroutine blocking on a condvar for
// "there's a shard to ship", moving it to an outbound channel, and
// waiting for completion before accepting the next one.
func RunOutput(ctx context.Context, fs *refresh.FrameSync, queue *rqueue.Queue) {
	for {
		fs.Lock()
		for !fs.OutPendingLocked() {
			fs.UpdateCond.Wait()
		}
		if fs.StoppedLocked() {
			fs.Unlock()
			return
		}
		rect, ok := fs.TakeOutLocked()
		if !ok {
			// Not reached in practice: OutPendingLocked only lets an
			// empty `out` through when stopped, which returned above.
			fs.Unlock()
			continue
		}

		queue.Enqueue(wire.DisplayUpdate{
			X: rect.X1,
			Y: rect.Y1,
			W: rect.X2 - rect.X1,
			H: rect.Y2 - rect.Y1,
		})
		nlog.Infof("output: published %+v to outgoing queue", rect)

		// Step 3: wait on the ack condvar, still holding the frame
		// lock, so a second refresh() cannot republish into `out`
		// while the consumer reads the shared region (property 2).
		for !fs.StoppedLocked() {
			acked, done := fs.TryTakeAckLocked()
			if done {
				_ = acked
				break
			}
			fs.AckCond.Wait()
		}
		stopped := fs.StoppedLocked()
		fs.Unlock()

		if stopped {
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
