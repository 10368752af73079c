// Package rdpmux is a hypervisor-side display multiplexing library. It
// lives inside a virtual machine monitor, receives callbacks when the
// guest's emulated framebuffer changes, and forwards those updates
// over a local transport to an out-of-process RDP server. It receives
// keyboard and mouse events from that server in return and hands them
// to host-registered callbacks.
//
// There is no package-level singleton: every entry point takes or
// returns a *Handle, so a host process can run multiple VMs, and tests
// can tear down and reinitialize between cases.
package rdpmux

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/rdpmux/rdpmux/internal/cos"
	"github.com/rdpmux/rdpmux/internal/discovery"
	"github.com/rdpmux/rdpmux/internal/ioloop"
	"github.com/rdpmux/rdpmux/internal/nlog"
	"github.com/rdpmux/rdpmux/internal/rdpcfg"
	"github.com/rdpmux/rdpmux/internal/refresh"
	"github.com/rdpmux/rdpmux/internal/rqueue"
	"github.com/rdpmux/rdpmux/internal/shm"
	"github.com/rdpmux/rdpmux/internal/transport"
	"github.com/rdpmux/rdpmux/internal/wire"
)

// Handle is the opaque per-VM session the host holds for the lifetime
// of one guest (spec.md §9: "Global state → explicit handle").
type Handle struct {
	identity   string
	numericID  int64
	loghdr     string // prefixes every log line from this Handle, set once in Init
	cfg        *rdpcfg.Config
	queue      *rqueue.Queue
	sync       *refresh.FrameSync
	engine     *refresh.Engine
	metrics    *refresh.Metrics
	transport  *transport.Adapter
	shared     *shm.Frame
	callbacks  ioloop.Callbacks
	stopped    atomic.Bool
	cancel     context.CancelFunc
	group      *errgroup.Group
	mu         sync.Mutex // guards callbacks registration and shared

	// shmErr/transportErr accumulate failures from their respective
	// components for Cleanup to log as a single summary line instead
	// of one line per retry (spec.md §7: no error is user-visible
	// except through log output).
	shmErr       cos.ErrValue
	transportErr cos.ErrValue
}

// Init validates uuid (must parse as a 36-character UUID string, spec.md
// §4.9), allocates a Handle, and wires up the queues and sync
// primitives. numericID is the supplemental per-VM numeric identity
// carried over from original_source/ (see SPEC_FULL.md §11); pass 0 if
// the host has no use for it.
func Init(vmID string, numericID int64) (*Handle, error) {
	if len(vmID) != 36 {
		return nil, errors.Errorf("rdpmux: init: vm id must be 36 characters, got %d", len(vmID))
	}
	if _, err := uuid.Parse(vmID); err != nil {
		return nil, errors.Wrap(err, "rdpmux: init: invalid vm id")
	}

	cfg := rdpcfg.Default()
	fs := refresh.NewFrameSync()
	metrics := refresh.NewMetrics(nil)

	h := &Handle{
		identity:  vmID,
		numericID: numericID,
		loghdr:    fmt.Sprintf("rdpmux[vm %d %s]", numericID, vmID),
		cfg:       cfg,
		queue:     rqueue.New(cfg.QueueInitialCap),
		sync:      fs,
		engine:    refresh.NewEngine(cfg, fs, metrics),
		metrics:   metrics,
		transport: transport.New(cfg),
	}
	nlog.Infoln(h.loghdr, "initialized")
	return h, nil
}

// String implements fmt.Stringer, returning the log prefix every
// Handle-originated log line carries (common.h's numeric vm_id
// alongside the uuid, matching the teacher's streamBase.loghdr).
func (h *Handle) String() string { return h.loghdr }

// RegisterCallbacks stores the keyboard and mouse callbacks. Must be
// called before Start (spec.md §4.9 / §5: callbacks are published once
// before the I/O threads start and read lock-free thereafter).
func (h *Handle) RegisterCallbacks(kb ioloop.KeyboardFunc, mouse ioloop.MouseFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cos.Assert(h.group == nil, "rdpmux: register_callbacks called after start for vm", h.identity)
	h.callbacks = ioloop.Callbacks{Keyboard: kb, Mouse: mouse}
}

// Connect configures the transport identity to the VM uuid and dials
// path. If path is empty, it first resolves one via get_socket_path
// over D-Bus (spec.md §6), using busName/objectPath.
func (h *Handle) Connect(ctx context.Context, busName, objectPath, path string) error {
	if path == "" {
		resolved, err := discovery.GetSocketPath(ctx, busName, objectPath, h.identity)
		if err != nil {
			return errors.Wrap(err, "rdpmux: connect: resolve socket path")
		}
		path = resolved
	}
	if err := h.transport.Connect(path, h.identity); err != nil {
		return errors.Wrap(err, "rdpmux: connect")
	}
	return nil
}

// Start launches the Output Thread, the Main I/O Thread, and the
// vestigial buffer-update thread as errgroup members (spec.md §4.9:
// "Three threads ... are launched by the host after connect"). Start
// returns immediately; call Wait to block until all threads have exited.
func (h *Handle) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	h.cancel = cancel
	h.group = g

	g.Go(func() error {
		ioloop.RunOutput(gctx, h.sync, h.queue)
		return nil
	})
	g.Go(func() error {
		h.mu.Lock()
		cb := h.callbacks
		h.mu.Unlock()
		ioloop.RunMainIO(gctx, h.transport, h.queue, h.sync, h.identity, cb, h.onShutdownReceived, h.onSendErr, h.metrics)
		return nil
	})
	g.Go(func() error {
		ioloop.RunBufferUpdate(gctx)
		return nil
	})
}

// Wait blocks until all I/O threads have exited (normal shutdown or a
// propagated error).
func (h *Handle) Wait() error {
	if h.group == nil {
		return nil
	}
	return h.group.Wait()
}

// onSendErr records a Main I/O Thread send failure for Cleanup's
// summary log; see shmErr/transportErr above.
func (h *Handle) onSendErr(err error) {
	h.transportErr.Store(err)
}

func (h *Handle) onShutdownReceived() {
	if h.stopped.CompareAndSwap(false, true) {
		nlog.Infoln(h.loghdr, "shutdown record received, stopping")
		h.stopAndDrain()
	}
}

// DisplayUpdate folds a dirty-rectangle notification from the emulator
// into the tracker (spec.md §4.5, public API `display_update`).
func (h *Handle) DisplayUpdate(x, y, w, height int32) {
	h.engine.Update(x, y, w, height)
}

// DisplaySwitch announces new framebuffer geometry. On first call it
// creates and maps the shared region; subsequent calls reuse it
// (spec.md §4.4). It also clears the outgoing queue and enqueues the
// new DisplaySwitch record directly, so the consumer never sees a
// stale DisplayUpdate for the old geometry (spec.md property 3,
// scenario S4).
//
// If Poll has seen the transport dead since the last successful
// Connect/Reconnect (internal/transport.Adapter.Down), it
// is reconnected here before anything else — the supplement described
// in SPEC_FULL.md §11, grounded on original_source/src/rdpmux.c
// recreating its zmq socket across display switches.
func (h *Handle) DisplaySwitch(format, w, hpx int32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.transport.Down() {
		if err := h.transport.Reconnect(); err != nil {
			h.transportErr.Store(err)
			nlog.Warningln(h.loghdr, "display_switch: reconnect failed:", err)
		} else {
			nlog.Infoln(h.loghdr, "display_switch: transport reconnected after a dead connection")
		}
	}

	if h.shared == nil {
		frame, err := shm.Open(shm.Name(h.identity), h.cfg.SharedFrameSize())
		if err != nil {
			h.shmErr.Store(err)
			return errors.Wrap(err, "rdpmux: display_switch: open shared frame")
		}
		h.shared = frame
	}
	h.engine.SetSharedFrame(h.shared)

	h.queue.Clear()
	h.queue.Enqueue(wire.DisplaySwitch{Format: format, W: w, H: hpx, ShmID: h.shared.Name})
	nlog.Infoln(h.loghdr, fmt.Sprintf("display switch to %dx%d format=%d", w, hpx, format))
	return nil
}

// DisplayRefresh runs one refresh tick (spec.md §4.6): copies any
// dirty strip into shared memory and publishes the aligned rect for
// the Output Thread to pick up. It never blocks the caller.
func (h *Handle) DisplayRefresh(surface refresh.FrameSurface) (bool, error) {
	return h.engine.Refresh(surface)
}

// stopAndDrain is the first stage of teardown: it clears the outgoing
// queue, marks FrameSync stopped (waking the Output Thread), and cancels
// the I/O threads' context. Cleanup closes the transport and the shared
// region afterwards.
func (h *Handle) stopAndDrain() {
	h.queue.Clear()
	h.sync.Lock()
	h.sync.StopLocked()
	h.sync.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
}

// Cleanup tears the session down: stops the I/O threads, clears the
// outgoing queue, disconnects the transport, and unmaps/unlinks the
// shared region. Independent teardown failures are accumulated rather
// than discarding all but the last (spec.md §4.9; grounded on
// garaekz-tfx's use of multierr.Append for the analogous case of
// multiple independent terminal-restore failures).
func (h *Handle) Cleanup() error {
	h.stopAndDrain()

	var err error
	if werr := h.Wait(); werr != nil {
		err = multierr.Append(err, errors.Wrap(werr, "rdpmux: cleanup: io threads"))
	}
	if terr := h.transport.Close(); terr != nil {
		err = multierr.Append(err, errors.Wrap(terr, "rdpmux: cleanup: transport close"))
	}
	h.mu.Lock()
	shared := h.shared
	h.shared = nil
	h.mu.Unlock()
	if shared != nil {
		if serr := shared.Close(); serr != nil {
			err = multierr.Append(err, errors.Wrap(serr, "rdpmux: cleanup: shared frame close"))
		}
	}

	if summary := h.transportErr.Err(); summary != nil {
		nlog.Warningln(h.loghdr, "cleanup: transport errors observed during session:", summary)
	}
	if summary := h.shmErr.Err(); summary != nil {
		nlog.Warningln(h.loghdr, "cleanup: shm errors observed during session:", summary)
	}

	nlog.Infoln(h.loghdr, "cleanup complete")
	return err
}
