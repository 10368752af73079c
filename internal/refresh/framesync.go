package refresh

import (
	"sync"

	"github.com/rdpmux/rdpmux/internal/dirty"
)

// FrameSync is the frame lock plus the two condition variables and the
// `out` slot spec.md §3/§4.6/§4.7 describe: it guards `out`, the
// shared-memory region, and arbitrates the ack handshake between the
// Refresh Engine (producer) and the Output Thread (consumer).
//
// Grounded on aistore's streamBase.term (transport/base.go): a small
// struct combining a mutex with the state it protects, rather than a
// bare sync.Mutex floating next to unrelated fields.
type FrameSync struct {
	mu         sync.Mutex
	UpdateCond *sync.Cond // signalled when `out` becomes non-empty
	AckCond    *sync.Cond // signalled when an UpdateAck has been decoded
	out        dirty.Rect
	outSet     bool
	stopped    bool
	ackPending bool
	ackSuccess bool
}

func NewFrameSync() *FrameSync {
	fs := &FrameSync{}
	fs.UpdateCond = sync.NewCond(&fs.mu)
	fs.AckCond = sync.NewCond(&fs.mu)
	return fs
}

// TryLock attempts to acquire the frame lock without blocking
// (spec.md §4.6 step 2): refresh back-pressure depends on this never
// stalling the emulator's calling thread.
func (fs *FrameSync) TryLock() bool { return fs.mu.TryLock() }

func (fs *FrameSync) Lock()   { fs.mu.Lock() }
func (fs *FrameSync) Unlock() { fs.mu.Unlock() }

// PublishLocked merges r into `out` (first publish, or union with a
// pending one — spec.md §4.6 step 6) and signals UpdateCond. Must be
// called with the frame lock held.
func (fs *FrameSync) PublishLocked(r dirty.Rect) {
	if !fs.outSet {
		fs.out = r
		fs.outSet = true
	} else {
		fs.out = dirty.Union(fs.out, r)
	}
	fs.UpdateCond.Signal()
}

// TakeOutLocked returns the published rect and clears `out`. Must be
// called with the frame lock held (internal/ioloop's Output Thread,
// step 2 of spec.md §4.7).
func (fs *FrameSync) TakeOutLocked() (dirty.Rect, bool) {
	if !fs.outSet {
		return dirty.Rect{}, false
	}
	r := fs.out
	fs.out = dirty.Rect{}
	fs.outSet = false
	return r, true
}

// OutPendingLocked reports whether `out` is non-empty, for the Output
// Thread's UpdateCond.Wait() loop guard.
func (fs *FrameSync) OutPendingLocked() bool { return fs.outSet || fs.stopped }

// StopLocked marks the sync as stopped and wakes any waiter, used on
// Shutdown so the Output Thread's condvar waits don't block forever
// (spec.md §9, Open Question "shutdown": stop flag + drain + join).
func (fs *FrameSync) StopLocked() {
	fs.stopped = true
	fs.UpdateCond.Broadcast()
	fs.AckCond.Broadcast()
}

func (fs *FrameSync) StoppedLocked() bool { return fs.stopped }

// SignalAckLocked records a decoded UpdateAck and wakes the Output
// Thread's ack wait (spec.md §4.8 step 3, §5: "the ack condvar is
// signalled only after decoding that ack"). Must be called with the
// frame lock held.
func (fs *FrameSync) SignalAckLocked(success bool) {
	fs.ackPending = true
	fs.ackSuccess = success
	fs.AckCond.Signal()
}

// TryTakeAckLocked consumes a pending ack, reporting (success,
// consumed). Must be called with the frame lock held, from the Output
// Thread's AckCond.Wait() loop (spec.md §4.7 step 3).
func (fs *FrameSync) TryTakeAckLocked() (success bool, consumed bool) {
	if !fs.ackPending {
		return false, false
	}
	success = fs.ackSuccess
	fs.ackPending = false
	return success, true
}
