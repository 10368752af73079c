package ioloop

import (
	"context"
	"time"

	"github.com/rdpmux/rdpmux/internal/nlog"
	"github.com/rdpmux/rdpmux/internal/refresh"
	"github.com/rdpmux/rdpmux/internal/rqueue"
	"github.com/rdpmux/rdpmux/internal/transport"
	"github.com/rdpmux/rdpmux/internal/wire"
)

// drainWait bounds how long step 1 blocks waiting for the next
// outgoing record before yielding to the inbound poll. It is
// context-cancellable (internal/rqueue.Queue.Dequeue) so the errgroup's
// cancellation on Shutdown unblocks this wait immediately instead of
// waiting out the full budget.
const drainWait = 1 * time.Millisecond

// RunMainIO is the Main I/O Thread entry point (spec.md §4.8). It owns
// the transport in both directions: draining the outgoing queue to the
// wire, and polling for inbound frames to verify, decode, and dispatch.
//
// identity is the configured VM uuid; inbound frames whose identity
// does not match are discarded without reaching the callbacks
// (spec.md property 6, scenario S6). onSendErr, if non-nil, is called
// with every Send failure so rdpmux.Handle can fold it into its
// cleanup error summary. metrics may be nil (most unit tests don't
// care about the queue-depth gauge).
func RunMainIO(ctx context.Context, adapter *transport.Adapter, queue *rqueue.Queue, fs *refresh.FrameSync, identity string, cb Callbacks, onStop func(), onSendErr func(error), metrics *refresh.Metrics) {
	cfg := adapter.Config()
	pollBackoff := cfg.PollErrBackoffBase

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		drainOutgoing(ctx, adapter, queue, onSendErr)
		if metrics != nil {
			metrics.QueueDepth.Set(float64(queue.Len()))
		}

		readable, err := adapter.Poll(cfg.PollTick)
		if err != nil {
			nlog.Errorf("ioloop: poll error: %v", err)
			// A persistent error (dead socket) returns immediately on
			// every call, unlike a timeout; back off so this doesn't
			// busy-spin until display_switch reconnects the transport
			// (internal/transport.Adapter.Reconnect).
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollBackoff):
			}
			pollBackoff *= 2
			if pollBackoff > cfg.PollErrBackoffMax {
				pollBackoff = cfg.PollErrBackoffMax
			}
			continue
		}
		pollBackoff = cfg.PollErrBackoffBase
		if !readable {
			continue
		}

		from, payload, err := adapter.Recv()
		if err != nil {
			nlog.Warningf("ioloop: recv error: %v", err)
			continue
		}
		if from != identity {
			nlog.Warningf("ioloop: dropping frame with identity %q (want %q)", from, identity)
			continue
		}

		rec, err := wire.Decode(payload)
		if err != nil {
			nlog.Warningf("ioloop: decode error: %v", err)
			continue
		}

		dispatch(rec, fs, cb, onStop)
	}
}

// step 1: drain the outgoing queue, serializing and sending each
// record in order (spec.md §4.8 step 1). Send already retries
// internally with bounded backoff (internal/transport.Adapter.Send).
//
// The first pop blocks up to drainWait on queue.Dequeue so the thread
// doesn't busy-spin through an idle queue between poll ticks; whatever
// has piled up after that is drained without blocking again via
// TryDequeue, preserving the burst-drain shape spec.md §4.8 step 1
// describes.
func drainOutgoing(ctx context.Context, adapter *transport.Adapter, queue *rqueue.Queue, onSendErr func(error)) {
	dctx, cancel := context.WithTimeout(ctx, drainWait)
	rec, ok := queue.Dequeue(dctx)
	cancel()
	if !ok {
		return
	}
	sendRecord(adapter, rec, onSendErr)

	for {
		rec, ok := queue.TryDequeue()
		if !ok {
			return
		}
		sendRecord(adapter, rec, onSendErr)
	}
}

func sendRecord(adapter *transport.Adapter, rec wire.Record, onSendErr func(error)) {
	payload, err := wire.Encode(rec)
	if err != nil {
		nlog.Errorf("ioloop: encode error for %v: %v", rec.Tag(), err)
		return
	}
	if err := adapter.Send(payload); err != nil {
		nlog.Errorf("ioloop: send error for %v: %v", rec.Tag(), err)
		if onSendErr != nil {
			onSendErr(err)
		}
	}
}

func dispatch(rec wire.Record, fs *refresh.FrameSync, cb Callbacks, onStop func()) {
	switch r := rec.(type) {
	case wire.MouseEvent:
		if cb.Mouse != nil {
			cb.Mouse(r.X, r.Y, r.Flags)
		}
	case wire.KeyboardEvent:
		if cb.Keyboard != nil {
			cb.Keyboard(r.Keycode, r.Flags)
		}
	case wire.UpdateAck:
		fs.Lock()
		fs.SignalAckLocked(r.Success)
		fs.Unlock()
	case wire.Shutdown:
		if onStop != nil {
			onStop()
		}
	default:
		nlog.Warningf("ioloop: no dispatch handler for %v", rec.Tag())
	}
}
